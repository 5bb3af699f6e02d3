package translator

import (
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"emperror.dev/errors"
	"github.com/takak2166/zotero2brain/internal/logger"
	"github.com/takak2166/zotero2brain/internal/models"
)

// Revision selects between the two published behaviours of the translator.
type Revision string

const (
	// RevisionLegacy is the first release: raw links, HTML notes,
	// "citations: n" lines and the bare item key.
	RevisionLegacy Revision = "legacy"
	// RevisionCurrent adds file:// links, plain-text notes,
	// the five-digit citation count and zotero:// deep links.
	RevisionCurrent Revision = "current"
)

func ParseRevision(s string) (Revision, error) {
	switch Revision(strings.ToLower(strings.TrimSpace(s))) {
	case "", RevisionCurrent:
		return RevisionCurrent, nil
	case RevisionLegacy:
		return RevisionLegacy, nil
	}
	return "", errors.Errorf("unknown revision %q", s)
}

type Options struct {
	Revision    Revision
	ExportNotes bool
}

func DefaultOptions() Options {
	return Options{
		Revision:    RevisionCurrent,
		ExportNotes: DefaultMetadata().DisplayOptions.ExportNotes,
	}
}

// ErrUnexpectedURI is returned when a deep link cannot be built from an item URI.
var ErrUnexpectedURI = errors.New("unexpected item uri")

// Source yields items one at a time and returns io.EOF when exhausted.
type Source interface {
	Next(ctx context.Context) (*models.Item, error)
}

// SliceSource serves items from memory.
type SliceSource struct {
	items []*models.Item
	pos   int
}

func NewSliceSource(items []*models.Item) *SliceSource {
	return &SliceSource{items: items}
}

func (s *SliceSource) Next(_ context.Context) (*models.Item, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item, nil
}

// child records are folded into their parent by the source
var ignored = map[string]bool{
	"attachment": true,
	"note":       true,
}

var (
	legacyCitations  = regexp.MustCompile(`^citations:\s*[0-9]+$`)
	currentCitations = regexp.MustCompile(`^[0-9]{5}$`)
	libraryURI       = regexp.MustCompile(`/(users|groups)/((?:local/)?[^/]+)/items/([^/]+)$`)
	capitalRun       = regexp.MustCompile(`([A-Z]+)`)
)

// Exporter renders Zotero items as The Brain import records.
type Exporter struct {
	opts  Options
	dates DateParser
}

func New(opts Options, dates DateParser) *Exporter {
	if opts.Revision == "" {
		opts.Revision = RevisionCurrent
	}
	if dates == nil {
		dates = StrToDate
	}
	return &Exporter{opts: opts, dates: dates}
}

type Stats struct {
	Exported int
	Skipped  int
}

// Export pulls every item from src and writes its record to dst.
func (e *Exporter) Export(ctx context.Context, src Source, dst Sink) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		item, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, errors.Wrap(err, "cannot read next item")
		}

		rec, err := e.Render(item)
		if err != nil {
			return stats, err
		}
		if rec == nil {
			stats.Skipped++
			logger.Debug("Skipping child item", map[string]interface{}{
				"itemType": item.ItemType,
				"uri":      item.URI,
			})
			continue
		}
		if err := dst.WriteRecord(ctx, rec); err != nil {
			return stats, errors.Wrapf(err, "cannot write record for %s", item.URI)
		}
		stats.Exported++
	}

	logger.Info("Export completed", map[string]interface{}{
		"revision": string(e.opts.Revision),
		"exported": stats.Exported,
		"skipped":  stats.Skipped,
	})
	return stats, nil
}

// Render builds the record for one item. Attachment and note items yield nil.
func (e *Exporter) Render(source *models.Item) (*Record, error) {
	if ignored[source.ItemType] {
		return nil, nil
	}
	item := Canonicalize(source)
	current := e.opts.Revision == RevisionCurrent

	names := creatorNames(item.Creators)
	year := e.dates.ParseDate(item.Field("date")).Year

	rec := &Record{Title: TitleLine(item.Field("title"), Reference(names, year))}

	e.link(rec, item.Field("url"))
	for _, att := range item.Attachments {
		if current {
			e.link(rec, firstOf(att.LocalPath, att.DefaultPath, att.URL))
		} else {
			e.link(rec, firstOf(att.URL, att.LocalPath, att.DefaultPath))
		}
	}

	rec.add(RoleProse, item.Field("abstractNote"))
	if e.opts.ExportNotes {
		for _, note := range item.Notes {
			text := note.Note
			if current {
				text = StripHTML(text)
			}
			rec.add(RoleProse, text)
		}
	}

	if year != 0 {
		rec.add(RoleMeta, strconv.Itoa(year))
	}
	rec.add(RoleMeta, item.Field("publicationTitle"))
	for _, name := range names {
		rec.add(RoleMeta, name)
	}
	for _, tag := range item.Tags {
		if tag.Type == models.TagAutomatic || tag.Tag == "" {
			continue
		}
		rec.add(RoleMeta, tag.Tag)
		rec.Tags = append(rec.Tags, tag.Tag)
	}
	rec.add(RoleMeta, HumanizeItemType(item.ItemType))

	if current {
		rec.add(RoleRaw, currentCitation(item.Field("extra")))
	} else {
		for _, line := range legacyCitationLines(item.Field("extra")) {
			rec.add(RoleRaw, line)
		}
	}

	rec.Key = lastSegment(item.URI)
	if current {
		link, err := DeepLink(item.URI)
		if err != nil {
			return nil, err
		}
		rec.add(RoleRaw, link)
	} else {
		rec.add(RoleRaw, rec.Key)
	}
	return rec, nil
}

func (e *Exporter) link(rec *Record, text string) {
	if text == "" {
		return
	}
	if e.opts.Revision == RevisionCurrent {
		text = Link(text)
	}
	rec.add(RoleLink, text)
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func extraLines(extra string) []string {
	if extra == "" {
		return nil
	}
	lines := strings.Split(extra, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}

func legacyCitationLines(extra string) []string {
	var found []string
	for _, line := range extraLines(extra) {
		if legacyCitations.MatchString(line) {
			found = append(found, line)
		}
	}
	return found
}

// currentCitation reads the zero-padded citation count kept on the
// second line of extra.
func currentCitation(extra string) string {
	lines := extraLines(extra)
	if len(lines) < 2 || !currentCitations.MatchString(lines[1]) {
		return ""
	}
	count := strings.TrimLeft(lines[1], "0")
	if count == "" {
		count = "0"
	}
	return " Citations: " + count
}

// HumanizeItemType turns "journalArticle" into "Journal Article".
func HumanizeItemType(itemType string) string {
	if itemType == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(itemType)
	s := string(unicode.ToUpper(r)) + itemType[size:]
	return strings.TrimSpace(capitalRun.ReplaceAllString(s, " $1"))
}

func lastSegment(uri string) string {
	return uri[strings.LastIndex(uri, "/")+1:]
}

// DeepLink converts a Zotero item URI into a zotero://select link.
func DeepLink(uri string) (string, error) {
	m := libraryURI.FindStringSubmatch(uri)
	if m == nil {
		return "", errors.Wrapf(ErrUnexpectedURI, "cannot build deep link from %q", uri)
	}
	if m[1] == "users" {
		return "zotero://select/library/items/" + m[3], nil
	}
	return "zotero://select/groups/" + m[2] + "/items/" + m[3], nil
}
