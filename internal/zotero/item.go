package zotero

import (
	"encoding/json"
	"fmt"
	"strings"

	"emperror.dev/errors"
	"github.com/takak2166/zotero2brain/internal/models"
)

// Library identifies the user or group library an item belongs to.
type Library struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

type ItemMeta struct {
	CreatorSummary string `json:"creatorSummary,omitempty"`
	NumChildren    int64  `json:"numChildren,omitempty"`
}

// Item is the envelope the Web API wraps around item data.
type Item struct {
	Key     string          `json:"key"`
	Version int64           `json:"version"`
	Library Library         `json:"library"`
	Meta    ItemMeta        `json:"meta"`
	Data    json.RawMessage `json:"data"`
}

// LibraryPath normalises "user"/"users"/"group"/"groups" into the URL segment.
func LibraryPath(libraryType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(libraryType)) {
	case "user", "users", "":
		return "users", nil
	case "group", "groups":
		return "groups", nil
	}
	return "", errors.Errorf("unknown library type %q", libraryType)
}

// ItemURI builds the canonical zotero.org URI of an item.
func ItemURI(libraryPath string, libraryID interface{}, key string) string {
	return fmt.Sprintf("http://zotero.org/%s/%v/items/%s", libraryPath, libraryID, key)
}

// ItemFromData decodes the data object of an item as stored by the Web API and zsync.
func ItemFromData(libraryPath string, libraryID interface{}, key string, data []byte) (*models.Item, error) {
	if len(data) == 0 {
		return nil, errors.Errorf("item %v.%s has no data", libraryID, key)
	}
	item := &models.Item{}
	if err := json.Unmarshal(data, item); err != nil {
		return nil, errors.Wrapf(err, "cannot unmarshal data of item %v.%s", libraryID, key)
	}
	if key == "" {
		key = item.Field("key")
	}
	item.URI = ItemURI(libraryPath, libraryID, key)
	return item, nil
}

// Fold attaches a child note or attachment to its parent item, the way
// Zotero hands children to export translators.
func Fold(parent, child *models.Item) {
	switch child.ItemType {
	case "note":
		if note := child.Field("note"); note != "" {
			parent.Notes = append(parent.Notes, models.Note{Note: note})
		}
	case "attachment":
		parent.Attachments = append(parent.Attachments, models.Attachment{
			Title:     child.Field("title"),
			URL:       child.Field("url"),
			LocalPath: child.Field("path"),
		})
	}
}
