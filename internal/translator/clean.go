package translator

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// MaxLinkLength bounds link details, in runes.
const MaxLinkLength = 185

const ellipsis = " ..."

// ';' is the field delimiter of The Brain's importer.
var cleaner = strings.NewReplacer(
	"\r", "",
	"\n", " ",
	";", ",",
	"\"", "'",
	"“", "'",
	"”", "'",
	"„", "'",
	"‘", "'",
	"’", "'",
)

// Clean flattens text onto a single line that The Brain can import.
func Clean(text string) string {
	return cleaner.Replace(text)
}

var absolutePath = regexp.MustCompile(`^(/|[A-Za-z]:\\)`)

// Link turns absolute filesystem paths into file:// URLs and bounds the result
// to MaxLinkLength runes.
func Link(text string) string {
	if absolutePath.MatchString(text) {
		text = fileURL(text)
	}
	runes := []rune(text)
	if len(runes) <= MaxLinkLength {
		return text
	}
	return string(runes[:MaxLinkLength-len(ellipsis)]) + ellipsis
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: strings.ReplaceAll(path, `\`, "/")}
	// EscapedPath encodes '?' as %3F and '#' as %23
	return u.String()
}

// StripHTML returns the text content of an HTML fragment.
// Block boundaries become line breaks, which Clean later folds into spaces.
func StripHTML(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteString("\n")
			}
		}
	}
}

var blockTags = map[string]bool{
	"p": true, "br": true, "div": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true,
}
