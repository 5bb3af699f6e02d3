package models

import (
	"encoding/json"
	"strings"

	"emperror.dev/errors"
)

// Export represents the root structure of a Zotero JSON export.
// Better BibTeX wraps the items in an object, plain exports are a bare array.
type Export struct {
	Items []*Item `json:"items"`
}

func (e *Export) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		return json.Unmarshal(data, &e.Items)
	}
	var wrapper struct {
		Items []*Item `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	e.Items = wrapper.Items
	return nil
}

// Item represents a single bibliographic record.
// All scalar fields, including the type-specific ones, live in Fields.
type Item struct {
	ItemType    string
	URI         string
	Fields      map[string]string
	Creators    []Creator
	Tags        []Tag
	Notes       []Note
	Attachments []Attachment
}

// Creator is an author, editor or other contributor.
type Creator struct {
	CreatorType string `json:"creatorType,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Tag types as used by Zotero
const (
	TagManual    int64 = 0
	TagAutomatic int64 = 1
)

type Tag struct {
	Tag  string `json:"tag"`
	Type int64  `json:"type,omitempty"`
}

// tags are exported either as plain strings or as objects
func (t *Tag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Tag{Tag: s}
		return nil
	}
	var obj struct {
		Tag  string          `json:"tag"`
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrapf(err, "invalid tag %s", string(data))
	}
	t.Tag = obj.Tag
	t.Type = TagManual
	if len(obj.Type) > 0 {
		var n json.Number
		if err := json.Unmarshal(obj.Type, &n); err == nil {
			t.Type, _ = n.Int64()
		}
	}
	return nil
}

type Note struct {
	Note string `json:"note"`
}

func (n *Note) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		n.Note = s
		return nil
	}
	var obj struct {
		Note string `json:"note"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrapf(err, "invalid note %s", string(data))
	}
	n.Note = obj.Note
	return nil
}

type Attachment struct {
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	LocalPath   string `json:"localPath,omitempty"`
	DefaultPath string `json:"defaultPath,omitempty"`
}

func (i *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Item{Fields: map[string]string{}}
	for key, value := range raw {
		var err error
		switch key {
		case "itemType":
			err = json.Unmarshal(value, &i.ItemType)
		case "uri":
			err = json.Unmarshal(value, &i.URI)
		case "creators":
			err = json.Unmarshal(value, &i.Creators)
		case "tags":
			err = json.Unmarshal(value, &i.Tags)
		case "notes":
			err = json.Unmarshal(value, &i.Notes)
		case "attachments":
			err = json.Unmarshal(value, &i.Attachments)
		default:
			if s, ok := scalar(value); ok {
				i.Fields[key] = s
			}
		}
		if err != nil {
			return errors.Wrapf(err, "cannot unmarshal %s", key)
		}
	}
	return nil
}

// scalar returns strings as-is and numbers as their literal text.
// Objects, arrays, booleans and null are not scalar fields.
func scalar(value json.RawMessage) (string, bool) {
	var v interface{}
	if err := json.Unmarshal(value, &v); err != nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strings.TrimSpace(string(value)), true
	}
	return "", false
}

// Field returns the named scalar field or an empty string.
func (i *Item) Field(name string) string {
	if i.Fields == nil {
		return ""
	}
	return i.Fields[name]
}

func (i *Item) SetField(name, value string) {
	if i.Fields == nil {
		i.Fields = map[string]string{}
	}
	i.Fields[name] = value
}

func (i *Item) DeleteField(name string) {
	delete(i.Fields, name)
}

// Clone returns a deep copy, so an item can be reshaped without touching the source.
func (i *Item) Clone() *Item {
	c := &Item{
		ItemType:    i.ItemType,
		URI:         i.URI,
		Fields:      make(map[string]string, len(i.Fields)),
		Creators:    append([]Creator(nil), i.Creators...),
		Tags:        append([]Tag(nil), i.Tags...),
		Notes:       append([]Note(nil), i.Notes...),
		Attachments: append([]Attachment(nil), i.Attachments...),
	}
	for k, v := range i.Fields {
		c.Fields[k] = v
	}
	return c
}
