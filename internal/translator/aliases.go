package translator

import "github.com/takak2166/zotero2brain/internal/models"

type alias struct {
	from, to string
}

// aliases maps type-specific Zotero fields onto the base field they specialise.
// Each item type carries at most one alias per base field.
var aliases = [...]alias{
	{"bookTitle", "publicationTitle"},
	{"thesisType", "type"},
	{"university", "publisher"},
	{"letterType", "type"},
	{"manuscriptType", "type"},
	{"interviewMedium", "medium"},
	{"distributor", "publisher"},
	{"videoRecordingFormat", "medium"},
	{"genre", "type"},
	{"artworkMedium", "medium"},
	{"websiteType", "type"},
	{"websiteTitle", "publicationTitle"},
	{"institution", "publisher"},
	{"reportType", "type"},
	{"reportNumber", "number"},
	{"billNumber", "number"},
	{"codeVolume", "volume"},
	{"codePages", "pages"},
	{"dateDecided", "date"},
	{"reporterVolume", "volume"},
	{"firstPage", "pages"},
	{"caseName", "title"},
	{"docketNumber", "number"},
	{"documentNumber", "number"},
	{"patentNumber", "number"},
	{"issueDate", "date"},
	{"dateEnacted", "date"},
	{"publicLawNumber", "number"},
	{"nameOfAct", "title"},
	{"subject", "title"},
	{"mapType", "type"},
	{"blogTitle", "publicationTitle"},
	{"postType", "type"},
	{"forumTitle", "publicationTitle"},
	{"audioRecordingFormat", "medium"},
	{"label", "publisher"},
	{"presentationType", "type"},
	{"studio", "publisher"},
	{"network", "publisher"},
	{"episodeNumber", "number"},
	{"programTitle", "publicationTitle"},
	{"audioFileType", "medium"},
	{"company", "publisher"},
	{"proceedingsTitle", "publicationTitle"},
	{"encyclopediaTitle", "publicationTitle"},
	{"dictionaryTitle", "publicationTitle"},
}

// Canonicalize returns a copy of item with every aliased field moved onto its
// base field. The source item is left untouched.
func Canonicalize(item *models.Item) *models.Item {
	c := item.Clone()
	for _, a := range aliases {
		if v := c.Field(a.from); v != "" {
			c.SetField(a.to, v)
			c.DeleteField(a.from)
		}
	}
	return c
}
