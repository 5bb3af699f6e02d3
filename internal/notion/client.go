package notion

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"emperror.dev/errors"
	"github.com/bluele/gcache"
	"github.com/jomei/notionapi"
	"github.com/takak2166/zotero2brain/internal/logger"
	"github.com/takak2166/zotero2brain/internal/translator"
)

const (
	// Notion rejects rich text objects and child lists above these sizes
	maxTextLength = 2000
	maxChildren   = 100

	createAttempts = 3
)

type Config struct {
	APIKey       string
	ParentPageID string
}

// Client writes records as Notion pages
type Client struct {
	client     NotionClient
	parentID   notionapi.PageID
	parentType notionapi.ParentType

	// tag name -> *notionapi.Database of its gallery
	galleries gcache.Cache

	RetryDelay time.Duration
}

// New creates a new Notion client
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("NOTION_API_KEY is not set")
	}
	if cfg.ParentPageID == "" {
		return nil, errors.New("NOTION_PARENT_PAGE_ID is not set")
	}

	return NewWithClient(newAPIClient(cfg.APIKey), cfg.ParentPageID), nil
}

// NewWithClient builds a Client on top of an existing API client
func NewWithClient(client NotionClient, parentPageID string) *Client {
	return &Client{
		client:     client,
		parentID:   notionapi.PageID(parentPageID),
		parentType: "page_id",
		galleries:  gcache.New(500).LRU().Build(),
		RetryDelay: time.Second,
	}
}

// WriteRecord creates one page per record
func (c *Client) WriteRecord(ctx context.Context, rec *translator.Record) error {
	return c.CreatePage(ctx, rec.Title, RecordBlocks(rec), rec.Tags)
}

// CreatePage creates a page under the parent page and lists it in the gallery of each tag
func (c *Client) CreatePage(ctx context.Context, title string, blocks []notionapi.Block, tags []string) error {
	logger.Debug("Creating Notion page", map[string]interface{}{
		"title": title,
		"tags":  tags,
	})

	first, rest := blocks, []notionapi.Block(nil)
	if len(blocks) > maxChildren {
		first, rest = blocks[:maxChildren], blocks[maxChildren:]
	}

	pageParams := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:   c.parentType,
			PageID: c.parentID,
		},
		Properties: notionapi.Properties{
			"title": notionapi.TitleProperty{
				Title: richText(title),
			},
		},
		Children: first,
	}

	// Retry page creation up to 3 times with a delay in between
	var page *notionapi.Page
	var err error
	for i := 0; i < createAttempts; i++ {
		if i > 0 {
			if err := c.wait(ctx); err != nil {
				return err
			}
		}
		page, err = c.client.Page().Create(ctx, pageParams)
		if err == nil {
			break
		}
		logger.Debug("Page creation failed", map[string]interface{}{
			"title":   title,
			"attempt": i + 1,
			"error":   err.Error(),
		})
	}
	if err != nil {
		return errors.Wrapf(err, "failed to create page after %d attempts", createAttempts)
	}

	for len(rest) > 0 {
		batch := rest
		if len(batch) > maxChildren {
			batch = batch[:maxChildren]
		}
		rest = rest[len(batch):]
		if _, err := c.client.Block().AppendChildren(ctx, notionapi.BlockID(page.ID), &notionapi.AppendBlockChildrenRequest{
			Children: batch,
		}); err != nil {
			return errors.Wrapf(err, "failed to append blocks to %s", title)
		}
	}

	for _, tag := range tags {
		if err := c.addPageToTagGallery(ctx, page, title, tag); err != nil {
			logger.Error("Failed to add page to tag gallery", err, map[string]interface{}{
				"tag":  tag,
				"page": title,
			})
		}
	}

	logger.Info("Successfully created Notion page", map[string]interface{}{
		"title": title,
		"tags":  tags,
	})

	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.RetryDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// addPageToTagGallery adds an entry pointing at the page to the gallery database of the tag
func (c *Client) addPageToTagGallery(ctx context.Context, page *notionapi.Page, title, tag string) error {
	gallery, err := c.tagGallery(ctx, tag)
	if err != nil {
		return err
	}

	createdTime := notionapi.Date(page.CreatedTime)
	entry := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       "database_id",
			DatabaseID: notionapi.DatabaseID(gallery.ID),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: richText(title),
			},
			"Created": notionapi.DateProperty{
				Date: &notionapi.DateObject{
					Start: &createdTime,
				},
			},
			"Page": notionapi.URLProperty{
				URL: page.URL,
			},
		},
	}

	if _, err := c.client.Page().Create(ctx, entry); err != nil {
		return errors.Wrap(err, "failed to create database entry")
	}
	return nil
}

// tagGallery returns the gallery database of a tag, creating it on first use
func (c *Client) tagGallery(ctx context.Context, tag string) (*notionapi.Database, error) {
	if cached, err := c.galleries.Get(tag); err == nil {
		db, ok := cached.(*notionapi.Database)
		if !ok {
			return nil, errors.Errorf("invalid type in cache for tag %s", tag)
		}
		return db, nil
	}

	db, err := c.createDatabase(ctx, tag, notionapi.PropertyConfigs{
		"Name": notionapi.TitlePropertyConfig{
			Type:  "title",
			Title: struct{}{},
		},
		"Created": notionapi.DatePropertyConfig{
			Type: "date",
			Date: struct{}{},
		},
		"Page": notionapi.URLPropertyConfig{
			Type: "url",
			URL:  struct{}{},
		},
	})
	if err != nil {
		return nil, err
	}
	if err := c.galleries.Set(tag, db); err != nil {
		return nil, errors.Wrapf(err, "cannot cache database of tag %s", tag)
	}
	return db, nil
}

// createDatabase creates a new database with the given name and properties if it doesn't already exist
func (c *Client) createDatabase(ctx context.Context, name string, properties notionapi.PropertyConfigs) (*notionapi.Database, error) {
	query := &notionapi.SearchRequest{
		Query: name,
		Filter: notionapi.SearchFilter{
			Property: "object",
			Value:    "database",
		},
	}

	results, err := c.client.Search().Do(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search for existing database")
	}

	for _, result := range results.Results {
		if db, ok := result.(*notionapi.Database); ok {
			if len(db.Title) > 0 && db.Title[0].Text != nil && db.Title[0].Text.Content == name {
				return db, nil
			}
		}
	}

	dbParams := &notionapi.DatabaseCreateRequest{
		Parent: notionapi.Parent{
			Type:   c.parentType,
			PageID: c.parentID,
		},
		Title:      richText(name),
		Properties: properties,
		IsInline:   true,
	}

	db, err := c.client.Database().Create(ctx, dbParams)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create database")
	}

	return db, nil
}

// RecordBlocks converts the details of a record to Notion blocks.
// Links and metadata become list items, prose becomes paragraphs.
func RecordBlocks(rec *translator.Record) []notionapi.Block {
	blocks := make([]notionapi.Block, 0, len(rec.Details))
	for _, d := range rec.Details {
		switch d.Role {
		case translator.RoleProse:
			blocks = append(blocks, createParagraphBlock(richText(d.Text)))
		case translator.RoleLink:
			blocks = append(blocks, createBulletedListBlock(linkText(d.Text)))
		default:
			blocks = append(blocks, createBulletedListBlock(richText(strings.TrimSpace(d.Text))))
		}
	}
	return blocks
}

func linkText(link string) []notionapi.RichText {
	rt := richText(link)
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		for i := range rt {
			rt[i].Text.Link = &notionapi.Link{Url: link}
		}
	}
	return rt
}

// richText splits text into chunks Notion accepts
func richText(text string) []notionapi.RichText {
	var rt []notionapi.RichText
	for text != "" {
		chunk := text
		if utf8.RuneCountInString(chunk) > maxTextLength {
			chunk = string([]rune(chunk)[:maxTextLength])
		}
		text = text[len(chunk):]
		rt = append(rt, notionapi.RichText{
			Text: &notionapi.Text{
				Content: chunk,
			},
		})
	}
	return rt
}

// createBulletedListBlock creates a bulleted list item block
func createBulletedListBlock(text []notionapi.RichText) notionapi.Block {
	return &notionapi.BulletedListItemBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: "block",
			Type:   notionapi.BlockTypeBulletedListItem,
		},
		BulletedListItem: notionapi.ListItem{
			RichText: text,
		},
	}
}

// createParagraphBlock creates a paragraph block
func createParagraphBlock(text []notionapi.RichText) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: "block",
			Type:   notionapi.BlockTypeParagraph,
		},
		Paragraph: notionapi.Paragraph{
			RichText: text,
		},
	}
}
