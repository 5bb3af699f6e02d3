package translator

import (
	"bytes"
	"context"
	"io"

	"emperror.dev/errors"
)

// Role marks what a detail line carries. The Brain uses it as the line prefix.
type Role byte

const (
	RoleRaw   Role = 0
	RoleLink  Role = '+'
	RoleProse Role = '-'
	RoleMeta  Role = '#'
)

type Detail struct {
	Role Role
	Text string
}

// Line renders the detail as a tab-indented line without the trailing newline.
func (d Detail) Line() string {
	if d.Role == RoleRaw {
		return "\t" + d.Text
	}
	return "\t" + string(d.Role) + " " + d.Text
}

// Record is the rendition of one item: a title line followed by details.
type Record struct {
	Title   string
	Details []Detail

	// Key and Tags are kept for sinks that need more than text
	Key  string
	Tags []string
}

func (r *Record) add(role Role, text string) {
	if text == "" {
		return
	}
	if role != RoleLink {
		text = Clean(text)
	}
	r.Details = append(r.Details, Detail{Role: role, Text: text})
}

// Lines returns the record lines without newlines.
func (r *Record) Lines() []string {
	lines := make([]string, 0, len(r.Details)+1)
	lines = append(lines, r.Title)
	for _, d := range r.Details {
		lines = append(lines, d.Line())
	}
	return lines
}

func (r *Record) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, line := range r.Lines() {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Sink receives rendered records in export order.
type Sink interface {
	WriteRecord(ctx context.Context, rec *Record) error
}

// TextSink writes records in The Brain's plain-text import format.
type TextSink struct {
	w io.Writer
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) WriteRecord(_ context.Context, rec *Record) error {
	if _, err := rec.WriteTo(s.w); err != nil {
		return errors.Wrap(err, "cannot write record")
	}
	return nil
}

// MultiSink hands every record to each sink in turn.
type MultiSink []Sink

func (m MultiSink) WriteRecord(ctx context.Context, rec *Record) error {
	for _, s := range m {
		if err := s.WriteRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
