package parser

import (
	"encoding/json"
	"os"

	"emperror.dev/errors"
	"github.com/takak2166/zotero2brain/internal/logger"
	"github.com/takak2166/zotero2brain/internal/models"
	"github.com/takak2166/zotero2brain/internal/translator"
)

// Parser reads Zotero JSON exports
type Parser struct {
	export *models.Export
}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// ParseFile reads and parses a Zotero JSON export file
func (p *Parser) ParseFile(filepath string) error {
	logger.Debug("Reading Zotero export file", map[string]interface{}{
		"filepath": filepath,
	})

	data, err := os.ReadFile(filepath)
	if err != nil {
		return errors.Wrapf(err, "failed to read file %s", filepath)
	}

	if err := p.Parse(data); err != nil {
		return errors.Wrapf(err, "failed to parse %s", filepath)
	}

	logger.Info("Successfully parsed Zotero export file", map[string]interface{}{
		"items_count": len(p.export.Items),
	})

	return nil
}

// Parse decodes an export already held in memory
func (p *Parser) Parse(data []byte) error {
	export := &models.Export{}
	if err := json.Unmarshal(data, export); err != nil {
		return errors.Wrap(err, "failed to parse JSON")
	}

	// drop null entries so the exporter never sees a nil item
	items := export.Items[:0]
	for _, item := range export.Items {
		if item != nil {
			items = append(items, item)
		}
	}
	export.Items = items
	p.export = export
	return nil
}

// GetItems returns all items from the parsed export
func (p *Parser) GetItems() []*models.Item {
	if p.export == nil {
		return nil
	}
	return p.export.Items
}

// Source serves the parsed items to the exporter in file order
func (p *Parser) Source() translator.Source {
	return translator.NewSliceSource(p.GetItems())
}
