package translator

import (
	"encoding/json"
	"time"

	"emperror.dev/errors"
)

// Metadata is the registration header Zotero reads to list the translator.
type Metadata struct {
	TranslatorID   string         `json:"translatorID"`
	Label          string         `json:"label"`
	Description    string         `json:"description"`
	Creator        string         `json:"creator"`
	Target         string         `json:"target"`
	MinVersion     string         `json:"minVersion"`
	MaxVersion     string         `json:"maxVersion"`
	ConfigOptions  ConfigOptions  `json:"configOptions"`
	DisplayOptions DisplayOptions `json:"displayOptions"`
	TranslatorType int            `json:"translatorType"`
	BrowserSupport string         `json:"browserSupport"`
	Priority       int            `json:"priority"`
	InRepository   bool           `json:"inRepository"`
	LastUpdated    string         `json:"lastUpdated"`
}

type ConfigOptions struct {
	GetCollections bool `json:"getCollections"`
}

type DisplayOptions struct {
	ExportNotes bool `json:"exportNotes"`
}

const lastUpdatedLayout = "2006-01-02 15:04:05"

func DefaultMetadata() Metadata {
	return Metadata{
		TranslatorID:   "f045946a-4c6a-43ac-81b0-eaf52d892cbf",
		Label:          "The Brain",
		Description:    "exports references in a format that can be imported by The Brain",
		Creator:        "Emiliano Heyns",
		Target:         "txt",
		MinVersion:     "4.0.27",
		ConfigOptions:  ConfigOptions{GetCollections: true},
		DisplayOptions: DisplayOptions{ExportNotes: true},
		TranslatorType: 2,
		BrowserSupport: "gcsv",
		Priority:       99,
	}
}

// Header renders the metadata as the JSON block that prefixes a translator,
// stamped with the given modification time.
func (m Metadata) Header(modified time.Time) ([]byte, error) {
	m.LastUpdated = modified.UTC().Format(lastUpdatedLayout)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal translator metadata")
	}
	return append(data, '\n'), nil
}
