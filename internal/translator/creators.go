package translator

import (
	"strconv"
	"strings"

	"github.com/takak2166/zotero2brain/internal/models"
)

// CreatorName renders a creator as "last, first", falling back to the
// single-field name used for institutional authors.
func CreatorName(c models.Creator) string {
	name := c.Name
	if c.LastName != "" {
		name = c.LastName
	}
	if c.FirstName != "" {
		if name != "" {
			name += ", "
		}
		name += c.FirstName
	}
	return name
}

func creatorNames(creators []models.Creator) []string {
	names := make([]string, 0, len(creators))
	for _, c := range creators {
		names = append(names, CreatorName(c))
	}
	return names
}

// Reference builds the short "author, year" citation shown after the title.
func Reference(names []string, year int) string {
	var parts []string
	switch len(names) {
	case 0:
	case 1:
		parts = append(parts, names[0])
	default:
		parts = append(parts, names[0]+" et al")
	}
	if year != 0 {
		parts = append(parts, strconv.Itoa(year))
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// TitleLine appends the reference to the title and cleans the result.
func TitleLine(title, reference string) string {
	if reference != "" {
		title += ", (" + reference + ")"
	}
	return Clean(title)
}
