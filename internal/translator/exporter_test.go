package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/takak2166/zotero2brain/internal/models"
)

const arazItem = `{
	"itemType": "journalArticle",
	"title": "Flu Forecasting",
	"date": "2014-09-01",
	"url": "http://www.ajemjournal.com/article/S0735-6757(14)00421-5/abstract",
	"publicationTitle": "AJEM",
	"abstractNote": "Introduction\nED visits; influenza",
	"extra": "PMID: 25037278\n00057",
	"uri": "http://zotero.org/users/local/6z7M0kXV/items/VUL8ZVJ8",
	"creators": [{"lastName": "Araz", "firstName": "Ozgur M.", "creatorType": "author"}],
	"tags": [{"tag": "qwef"}, {"tag": "auto", "type": 1}],
	"notes": [{"note": "<p>stuf with <strong>bold</strong></p>"}],
	"attachments": [{
		"url": "",
		"localPath": "/home/emile/zotero/storage/UTUXSHXA/Araz et al. - 2014.pdf"
	}]
}`

func mustItem(t *testing.T, data string) *models.Item {
	t.Helper()
	var item models.Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		t.Fatalf("Failed to unmarshal item: %v", err)
	}
	return &item
}

func render(t *testing.T, opts Options, item *models.Item) string {
	t.Helper()
	rec, err := New(opts, nil).Render(item)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if rec == nil {
		return ""
	}
	var buf bytes.Buffer
	if _, err := rec.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	return buf.String()
}

func TestRenderCurrent(t *testing.T) {
	expected := "Flu Forecasting, (Araz, Ozgur M., 2014)\n" +
		"\t+ http://www.ajemjournal.com/article/S0735-6757(14)00421-5/abstract\n" +
		"\t+ file:///home/emile/zotero/storage/UTUXSHXA/Araz%20et%20al.%20-%202014.pdf\n" +
		"\t- Introduction ED visits, influenza\n" +
		"\t- stuf with bold\n" +
		"\t# 2014\n" +
		"\t# AJEM\n" +
		"\t# Araz, Ozgur M.\n" +
		"\t# qwef\n" +
		"\t# Journal Article\n" +
		"\t Citations: 57\n" +
		"\tzotero://select/library/items/VUL8ZVJ8\n"

	got := render(t, DefaultOptions(), mustItem(t, arazItem))
	if got != expected {
		t.Errorf("Unexpected output.\nExpected:\n%s\nGot:\n%s", expected, got)
	}
}

func TestRenderLegacy(t *testing.T) {
	item := mustItem(t, arazItem)
	item.Fields["extra"] = "PMID: 25037278\ncitations: 12"

	expected := "Flu Forecasting, (Araz, Ozgur M., 2014)\n" +
		"\t+ http://www.ajemjournal.com/article/S0735-6757(14)00421-5/abstract\n" +
		"\t+ /home/emile/zotero/storage/UTUXSHXA/Araz et al. - 2014.pdf\n" +
		"\t- Introduction ED visits, influenza\n" +
		"\t- <p>stuf with <strong>bold</strong></p>\n" +
		"\t# 2014\n" +
		"\t# AJEM\n" +
		"\t# Araz, Ozgur M.\n" +
		"\t# qwef\n" +
		"\t# Journal Article\n" +
		"\tcitations: 12\n" +
		"\tVUL8ZVJ8\n"

	got := render(t, Options{Revision: RevisionLegacy, ExportNotes: true}, item)
	if got != expected {
		t.Errorf("Unexpected output.\nExpected:\n%s\nGot:\n%s", expected, got)
	}
}

func TestRenderAttachmentPreference(t *testing.T) {
	item := &models.Item{
		ItemType: "book",
		URI:      "http://zotero.org/groups/42/items/ABCD1234",
		Fields:   map[string]string{"title": "T"},
		Attachments: []models.Attachment{
			{URL: "http://example.org/a.pdf", LocalPath: "/tmp/a.pdf"},
			{DefaultPath: "/tmp/b.pdf"},
		},
	}

	tests := []struct {
		name     string
		revision Revision
		links    []string
	}{
		{
			name:     "Legacy prefers url",
			revision: RevisionLegacy,
			links:    []string{"http://example.org/a.pdf", "/tmp/b.pdf"},
		},
		{
			name:     "Current prefers local path",
			revision: RevisionCurrent,
			links:    []string{"file:///tmp/a.pdf", "file:///tmp/b.pdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := New(Options{Revision: tt.revision}, nil).Render(item)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			var links []string
			for _, d := range rec.Details {
				if d.Role == RoleLink {
					links = append(links, d.Text)
				}
			}
			if strings.Join(links, "|") != strings.Join(tt.links, "|") {
				t.Errorf("Expected links %v, got %v", tt.links, links)
			}
		})
	}
}

func TestRenderIgnoredTypes(t *testing.T) {
	for _, itemType := range []string{"attachment", "note"} {
		t.Run(itemType, func(t *testing.T) {
			item := &models.Item{ItemType: itemType, Fields: map[string]string{"title": "child"}}
			if got := render(t, DefaultOptions(), item); got != "" {
				t.Errorf("Expected no output for %s, got %q", itemType, got)
			}
		})
	}
}

func TestRenderWithoutNotes(t *testing.T) {
	opts := DefaultOptions()
	opts.ExportNotes = false

	got := render(t, opts, mustItem(t, arazItem))
	if strings.Contains(got, "bold") {
		t.Errorf("Notes should not be exported:\n%s", got)
	}
}

func TestRenderMinimal(t *testing.T) {
	item := &models.Item{
		ItemType: "webpage",
		URI:      "http://zotero.org/users/12345/items/KEY00001",
		Fields:   map[string]string{"title": "Untitled \"quoted\""},
	}

	expected := "Untitled 'quoted'\n" +
		"\t# Webpage\n" +
		"\tzotero://select/library/items/KEY00001\n"

	if got := render(t, DefaultOptions(), item); got != expected {
		t.Errorf("Unexpected output.\nExpected:\n%s\nGot:\n%s", expected, got)
	}
}

func TestRenderCanonicalizesAliases(t *testing.T) {
	item := &models.Item{
		ItemType: "bookSection",
		URI:      "http://zotero.org/groups/42/items/ABCD1234",
		Fields: map[string]string{
			"title":     "Chapter",
			"bookTitle": "The Book",
		},
	}

	rec, err := New(DefaultOptions(), nil).Render(item)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	found := false
	for _, d := range rec.Details {
		if d.Role == RoleMeta && d.Text == "The Book" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected aliased publication title in details: %+v", rec.Details)
	}
	if item.Field("bookTitle") != "The Book" || item.Field("publicationTitle") != "" {
		t.Error("Render must not modify the source item")
	}
}

func TestRenderUnexpectedURI(t *testing.T) {
	item := &models.Item{
		ItemType: "book",
		URI:      "urn:isbn:0451450523",
		Fields:   map[string]string{"title": "T"},
	}

	_, err := New(DefaultOptions(), nil).Render(item)
	if !errors.Is(err, ErrUnexpectedURI) {
		t.Errorf("Expected ErrUnexpectedURI, got %v", err)
	}

	if _, err := New(Options{Revision: RevisionLegacy}, nil).Render(item); err != nil {
		t.Errorf("Legacy revision should not build deep links, got %v", err)
	}
}

func TestCitations(t *testing.T) {
	tests := []struct {
		name     string
		extra    string
		expected string
	}{
		{name: "Zero padded", extra: "PMID: 25037278\n00057", expected: " Citations: 57"},
		{name: "All zeros", extra: "PMID: 1\n00000", expected: " Citations: 0"},
		{name: "Padded with spaces", extra: "PMID: 1\r\n  01234  ", expected: " Citations: 1234"},
		{name: "Wrong width", extra: "PMID: 1\n0057", expected: ""},
		{name: "First line only", extra: "00057", expected: ""},
		{name: "Third line", extra: "a\nb\n00057", expected: ""},
		{name: "Empty", extra: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := currentCitation(tt.extra); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestLegacyCitationLines(t *testing.T) {
	got := legacyCitationLines("citations: 12\r\n  citations:3 \nCitations: 4\nsee citations: 5")
	expected := []string{"citations: 12", "citations:3"}
	if strings.Join(got, "|") != strings.Join(expected, "|") {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestHumanizeItemType(t *testing.T) {
	tests := map[string]string{
		"journalArticle":     "Journal Article",
		"book":               "Book",
		"webpage":            "Webpage",
		"conferencePaper":    "Conference Paper",
		"tvBroadcast":        "Tv Broadcast",
		"computerProgramABC": "Computer Program ABC",
		"":                   "",
	}

	for in, expected := range tests {
		if got := HumanizeItemType(in); got != expected {
			t.Errorf("HumanizeItemType(%q) = %q, expected %q", in, got, expected)
		}
	}
}

func TestDeepLink(t *testing.T) {
	tests := []struct {
		uri      string
		expected string
	}{
		{"http://zotero.org/users/local/6z7M0kXV/items/VUL8ZVJ8", "zotero://select/library/items/VUL8ZVJ8"},
		{"http://zotero.org/users/12345/items/ABCD1234", "zotero://select/library/items/ABCD1234"},
		{"http://zotero.org/groups/2474728/items/XBYUCYUR", "zotero://select/groups/2474728/items/XBYUCYUR"},
	}

	for _, tt := range tests {
		got, err := DeepLink(tt.uri)
		if err != nil {
			t.Errorf("DeepLink(%q) error = %v", tt.uri, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("DeepLink(%q) = %q, expected %q", tt.uri, got, tt.expected)
		}
	}
}

type recordingSink struct {
	titles []string
	err    error
}

func (s *recordingSink) WriteRecord(_ context.Context, rec *Record) error {
	if s.err != nil {
		return s.err
	}
	s.titles = append(s.titles, rec.Title)
	return nil
}

func TestExport(t *testing.T) {
	items := []*models.Item{
		mustItem(t, arazItem),
		{ItemType: "attachment", URI: "http://zotero.org/users/1/items/CHILD001"},
		{
			ItemType: "book",
			URI:      "http://zotero.org/users/1/items/BOOK0001",
			Fields:   map[string]string{"title": "Two Authors"},
			Creators: []models.Creator{{LastName: "A"}, {LastName: "B"}},
		},
	}

	sink := &recordingSink{}
	stats, err := New(DefaultOptions(), nil).Export(context.Background(), NewSliceSource(items), sink)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if stats.Exported != 2 || stats.Skipped != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	expected := []string{"Flu Forecasting, (Araz, Ozgur M., 2014)", "Two Authors, (A et al)"}
	if strings.Join(sink.titles, "|") != strings.Join(expected, "|") {
		t.Errorf("Expected titles %v, got %v", expected, sink.titles)
	}
}

func TestExportSinkError(t *testing.T) {
	sinkErr := errors.New("sink closed")
	sink := &recordingSink{err: sinkErr}

	_, err := New(DefaultOptions(), nil).Export(context.Background(), NewSliceSource([]*models.Item{mustItem(t, arazItem)}), sink)
	if !errors.Is(err, sinkErr) {
		t.Errorf("Expected sink error, got %v", err)
	}
}

func TestExportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultOptions(), nil).Export(ctx, NewSliceSource([]*models.Item{mustItem(t, arazItem)}), &recordingSink{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestMultiSink(t *testing.T) {
	first, second := &recordingSink{}, &recordingSink{}
	var buf bytes.Buffer
	sink := MultiSink{first, NewTextSink(&buf), second}

	rec := &Record{Title: "T", Details: []Detail{{Role: RoleMeta, Text: "Book"}}}
	if err := sink.WriteRecord(context.Background(), rec); err != nil {
		t.Fatalf("WriteRecord() error = %v", err)
	}
	if len(first.titles) != 1 || len(second.titles) != 1 {
		t.Error("Expected every sink to receive the record")
	}
	if buf.String() != "T\n\t# Book\n" {
		t.Errorf("Unexpected text output %q", buf.String())
	}
}

func TestParseRevision(t *testing.T) {
	tests := []struct {
		in          string
		expected    Revision
		expectError bool
	}{
		{in: "", expected: RevisionCurrent},
		{in: "current", expected: RevisionCurrent},
		{in: " Legacy ", expected: RevisionLegacy},
		{in: "2019", expectError: true},
	}

	for _, tt := range tests {
		got, err := ParseRevision(tt.in)
		if tt.expectError {
			if err == nil {
				t.Errorf("ParseRevision(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.expected {
			t.Errorf("ParseRevision(%q) = %q, %v; expected %q", tt.in, got, err, tt.expected)
		}
	}
}
