package notion_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/jomei/notionapi"
	"github.com/takak2166/zotero2brain/internal/notion"
	"github.com/takak2166/zotero2brain/internal/notion/mock_notion"
	"github.com/takak2166/zotero2brain/internal/translator"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		config      notion.Config
		expectError bool
	}{
		{
			name:        "Valid configuration",
			config:      notion.Config{APIKey: "test_key", ParentPageID: "test_page_id"},
			expectError: false,
		},
		{
			name:        "Missing API key",
			config:      notion.Config{ParentPageID: "test_page_id"},
			expectError: true,
		},
		{
			name:        "Missing parent page ID",
			config:      notion.Config{APIKey: "test_key"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := notion.New(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if client == nil {
					t.Error("Expected client, got nil")
				}
			}
		})
	}
}

type mocks struct {
	client   *mock_notion.MockNotionClient
	page     *mock_notion.MockPageService
	search   *mock_notion.MockSearchService
	block    *mock_notion.MockBlockService
	database *mock_notion.MockDatabaseService
}

func newMocks(ctrl *gomock.Controller) *mocks {
	m := &mocks{
		client:   mock_notion.NewMockNotionClient(ctrl),
		page:     mock_notion.NewMockPageService(ctrl),
		search:   mock_notion.NewMockSearchService(ctrl),
		block:    mock_notion.NewMockBlockService(ctrl),
		database: mock_notion.NewMockDatabaseService(ctrl),
	}
	m.client.EXPECT().Page().Return(m.page).AnyTimes()
	m.client.EXPECT().Search().Return(m.search).AnyTimes()
	m.client.EXPECT().Block().Return(m.block).AnyTimes()
	m.client.EXPECT().Database().Return(m.database).AnyTimes()
	return m
}

func testRecord(title string, tags ...string) *translator.Record {
	return &translator.Record{
		Title: title,
		Details: []translator.Detail{
			{Role: translator.RoleLink, Text: "https://doi.org/10.1016/j.ajem.2014.05.052"},
			{Role: translator.RoleProse, Text: "Abstract text"},
			{Role: translator.RoleMeta, Text: "Journal Article"},
		},
		Key:  "VUL8ZVJ8",
		Tags: tags,
	}
}

func TestWriteRecord(t *testing.T) {
	ctx := context.Background()
	createdPage := &notionapi.Page{
		Object: "page",
		ID:     "test_page_id",
		URL:    "https://www.notion.so/test_page_id",
	}
	tagDatabase := &notionapi.Database{
		Object: "database",
		ID:     "test_db_id",
		Title: []notionapi.RichText{
			{
				Text: &notionapi.Text{
					Content: "Flu",
				},
			},
		},
	}

	tests := map[string]struct {
		records     []*translator.Record
		setupMocks  func(m *mocks)
		expectError bool
	}{
		"Success - With Tags": {
			records: []*translator.Record{testRecord("Araz, 2014", "Flu"), testRecord("Other, 2015", "Flu")},
			setupMocks: func(m *mocks) {
				// the gallery is searched and created once, then served from the cache
				m.search.EXPECT().Do(ctx, gomock.Any()).Return(&notionapi.SearchResponse{}, nil).Times(1)
				m.database.EXPECT().Create(ctx, gomock.Any()).Return(tagDatabase, nil).Times(1)
				// two pages plus two gallery entries
				m.page.EXPECT().Create(ctx, gomock.Any()).Return(createdPage, nil).Times(4)
			},
		},

		"Success - Existing Gallery": {
			records: []*translator.Record{testRecord("Araz, 2014", "Flu")},
			setupMocks: func(m *mocks) {
				m.search.EXPECT().Do(ctx, gomock.Any()).Return(&notionapi.SearchResponse{
					Results: []notionapi.Object{tagDatabase},
				}, nil)
				m.page.EXPECT().Create(ctx, gomock.Any()).Return(createdPage, nil).Times(2)
			},
		},

		"Success - Without Tags": {
			records: []*translator.Record{testRecord("Araz, 2014")},
			setupMocks: func(m *mocks) {
				m.page.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
					func(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
						if req.Parent.PageID != "parent_page_id" {
							t.Errorf("Unexpected parent %v", req.Parent)
						}
						if len(req.Children) != 3 {
							t.Errorf("Expected 3 blocks, got %d", len(req.Children))
						}
						return createdPage, nil
					})
			},
		},

		"Success - Gallery Failure Is Logged": {
			records: []*translator.Record{testRecord("Araz, 2014", "Flu")},
			setupMocks: func(m *mocks) {
				m.page.EXPECT().Create(ctx, gomock.Any()).Return(createdPage, nil)
				m.search.EXPECT().Do(ctx, gomock.Any()).Return(nil, errors.New("rate limited"))
			},
		},

		"Success - Retry": {
			records: []*translator.Record{testRecord("Araz, 2014")},
			setupMocks: func(m *mocks) {
				gomock.InOrder(
					m.page.EXPECT().Create(ctx, gomock.Any()).Return(nil, errors.New("conflict")),
					m.page.EXPECT().Create(ctx, gomock.Any()).Return(createdPage, nil),
				)
			},
		},

		"Failure - Page Creation": {
			records: []*translator.Record{testRecord("Araz, 2014", "Flu")},
			setupMocks: func(m *mocks) {
				m.page.EXPECT().Create(ctx, gomock.Any()).Return(nil, errors.New("unauthorized")).Times(3)
			},
			expectError: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			m := newMocks(ctrl)
			tt.setupMocks(m)

			client := notion.NewWithClient(m.client, "parent_page_id")
			client.RetryDelay = 0

			var err error
			for _, rec := range tt.records {
				if err = client.WriteRecord(ctx, rec); err != nil {
					break
				}
			}
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
			}
		})
	}
}

func TestWriteRecordAppendsOverflow(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rec := &translator.Record{Title: "Long"}
	for i := 0; i < 150; i++ {
		rec.Details = append(rec.Details, translator.Detail{Role: translator.RoleProse, Text: fmt.Sprintf("line %d", i)})
	}

	m := newMocks(ctrl)
	m.page.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
			if len(req.Children) != 100 {
				t.Errorf("Expected 100 blocks on creation, got %d", len(req.Children))
			}
			return &notionapi.Page{ID: "long_page"}, nil
		})
	m.block.EXPECT().AppendChildren(ctx, notionapi.BlockID("long_page"), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ notionapi.BlockID, req *notionapi.AppendBlockChildrenRequest) (*notionapi.AppendBlockChildrenResponse, error) {
			if len(req.Children) != 50 {
				t.Errorf("Expected 50 appended blocks, got %d", len(req.Children))
			}
			return &notionapi.AppendBlockChildrenResponse{}, nil
		})

	client := notion.NewWithClient(m.client, "parent_page_id")
	if err := client.WriteRecord(ctx, rec); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
}

func TestRecordBlocks(t *testing.T) {
	rec := &translator.Record{
		Title: "Araz, 2014",
		Details: []translator.Detail{
			{Role: translator.RoleLink, Text: "https://doi.org/10.1016/j.ajem.2014.05.052"},
			{Role: translator.RoleLink, Text: "file:///home/emile/a.pdf"},
			{Role: translator.RoleProse, Text: "Abstract"},
			{Role: translator.RoleRaw, Text: " Citations: 57"},
		},
	}

	blocks := notion.RecordBlocks(rec)
	if len(blocks) != 4 {
		t.Fatalf("Expected 4 blocks, got %d", len(blocks))
	}

	web, ok := blocks[0].(*notionapi.BulletedListItemBlock)
	if !ok {
		t.Fatalf("Expected bulleted item for link, got %T", blocks[0])
	}
	if link := web.BulletedListItem.RichText[0].Text.Link; link == nil || link.Url != "https://doi.org/10.1016/j.ajem.2014.05.052" {
		t.Errorf("Expected link annotation, got %+v", link)
	}

	file := blocks[1].(*notionapi.BulletedListItemBlock)
	if file.BulletedListItem.RichText[0].Text.Link != nil {
		t.Error("file links must not carry a link annotation")
	}

	if _, ok := blocks[2].(*notionapi.ParagraphBlock); !ok {
		t.Errorf("Expected paragraph for prose, got %T", blocks[2])
	}

	raw := blocks[3].(*notionapi.BulletedListItemBlock)
	if got := raw.BulletedListItem.RichText[0].Text.Content; got != "Citations: 57" {
		t.Errorf("Unexpected raw content %q", got)
	}
}
