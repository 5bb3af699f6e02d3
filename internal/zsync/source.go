// Package zsync reads items from the PostgreSQL mirror maintained by zsync.
package zsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"

	"emperror.dev/errors"
	_ "github.com/lib/pq"
	"github.com/takak2166/zotero2brain/internal/logger"
	"github.com/takak2166/zotero2brain/internal/models"
	"github.com/takak2166/zotero2brain/internal/zotero"
)

var errEmptyItem = errors.New("item has no data")

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	DSN         string
	Schema      string
	LibraryType string
	LibraryID   int64
}

// row is one line of the items table
type row struct {
	key  string
	data sql.NullString
}

// Source serves the top-level items of one library with their children folded in.
type Source struct {
	db      *sql.DB
	owned   bool
	schema  string
	library string
	id      int64

	items  []*models.Item
	loaded bool
}

// Open connects to the mirror with the postgres driver.
func Open(cfg Config) (*Source, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening database")
	}
	src, err := New(db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	src.owned = true
	return src, nil
}

func New(db *sql.DB, cfg Config) (*Source, error) {
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if !identifier.MatchString(cfg.Schema) {
		return nil, errors.Errorf("invalid schema name %q", cfg.Schema)
	}
	if cfg.LibraryType == "" {
		cfg.LibraryType = "groups"
	}
	library, err := zotero.LibraryPath(cfg.LibraryType)
	if err != nil {
		return nil, err
	}
	return &Source{
		db:      db,
		schema:  cfg.Schema,
		library: library,
		id:      cfg.LibraryID,
	}, nil
}

func (s *Source) Next(ctx context.Context) (*models.Item, error) {
	if !s.loaded {
		if err := s.load(ctx); err != nil {
			return nil, err
		}
		s.loaded = true
	}
	if len(s.items) == 0 {
		return nil, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

func (s *Source) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

func (s *Source) query() string {
	return fmt.Sprintf("SELECT key, data FROM %s.items"+
		" WHERE library=$1 AND NOT deleted AND NOT trashed"+
		" ORDER BY key", s.schema)
}

func (s *Source) load(ctx context.Context) error {
	sqlstr := s.query()
	rows, err := s.db.QueryContext(ctx, sqlstr, s.id)
	if err != nil {
		return errors.Wrapf(err, "cannot execute %s: %v", sqlstr, s.id)
	}
	defer rows.Close()

	var result []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.key, &r.data); err != nil {
			return errors.Wrapf(err, "cannot scan row")
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrapf(err, "cannot read rows of %s", sqlstr)
	}
	logger.Info("Loaded items from zsync mirror", map[string]interface{}{
		"library": s.id,
		"rows":    len(result),
	})

	items, err := assemble(s.library, s.id, result)
	if err != nil {
		return err
	}
	s.items = items
	return nil
}

// assemble splits rows into top-level items and children and folds the
// children into their parents.
func assemble(library string, id int64, rows []row) ([]*models.Item, error) {
	var top []*models.Item
	byKey := map[string]*models.Item{}
	children := map[string][]*models.Item{}

	for counter, r := range rows {
		item, parent, err := itemFromRow(library, id, r)
		if err != nil {
			if errors.Is(err, errEmptyItem) {
				logger.Warn(fmt.Sprintf("item #%v is empty. skipping", counter+1), map[string]interface{}{
					"key": r.key,
				})
				continue
			}
			return nil, errors.Wrapf(err, "cannot decode row %s", r.key)
		}
		if parent == "" {
			top = append(top, item)
			byKey[r.key] = item
			continue
		}
		children[parent] = append(children[parent], item)
	}

	parents := make([]string, 0, len(children))
	for parent := range children {
		parents = append(parents, parent)
	}
	sort.Strings(parents)
	for _, parent := range parents {
		item, ok := byKey[parent]
		if !ok {
			logger.Warn("parent of child items not found", map[string]interface{}{
				"parent":   parent,
				"children": len(children[parent]),
			})
			continue
		}
		for _, child := range children[parent] {
			zotero.Fold(item, child)
		}
	}
	return top, nil
}

func itemFromRow(library string, id int64, r row) (*models.Item, string, error) {
	if !r.data.Valid || r.data.String == "" {
		return nil, "", errors.WithStack(errEmptyItem)
	}
	item, err := zotero.ItemFromData(library, id, r.key, []byte(r.data.String))
	if err != nil {
		return nil, "", err
	}
	return item, parentKey([]byte(r.data.String)), nil
}

// parentKey reads data.parentItem, which zsync stores as a key or as false.
func parentKey(data []byte) string {
	var d struct {
		ParentItem json.RawMessage `json:"parentItem"`
	}
	if err := json.Unmarshal(data, &d); err != nil || len(d.ParentItem) == 0 {
		return ""
	}
	var key string
	if err := json.Unmarshal(d.ParentItem, &key); err != nil {
		return ""
	}
	return key
}
