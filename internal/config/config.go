package config

import (
	"io/fs"
	"os"
	"strconv"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ErrMissing is returned by Validate when a required setting is empty.
var ErrMissing = errors.New("missing configuration")

type Export struct {
	Revision    string `toml:"revision"`
	ExportNotes *bool  `toml:"exportNotes"`
	Output      string `toml:"output"`
}

type Zotero struct {
	Endpoint    string `toml:"endpoint"`
	APIKey      string `toml:"apikey"`
	LibraryType string `toml:"librarytype"`
	LibraryID   string `toml:"libraryid"`
	Collection  string `toml:"collection"`
	PageSize    int    `toml:"pagesize"`
}

type Database struct {
	DSN         string `toml:"dsn"`
	Schema      string `toml:"schema"`
	LibraryType string `toml:"librarytype"`
	LibraryID   int64  `toml:"libraryid"`
}

type S3 struct {
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"accessKeyId"`
	SecretAccessKey string `toml:"secretAccessKey"`
	UseSSL          bool   `toml:"useSSL"`
}

type Notion struct {
	APIKey       string `toml:"apikey"`
	ParentPageID string `toml:"parentpageid"`
}

type Config struct {
	Loglevel string   `toml:"loglevel"`
	Export   Export   `toml:"export"`
	Zotero   Zotero   `toml:"zotero"`
	Database Database `toml:"database"`
	S3       S3       `toml:"s3"`
	Notion   Notion   `toml:"notion"`
}

// Load reads .env from the working directory, then the optional TOML file.
// Environment variables win over file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "error loading .env file")
	}
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	conf := &Config{}
	if path != "" {
		if _, err := toml.DecodeFile(path, conf); err != nil {
			return nil, errors.Wrapf(err, "error on loading config %s", path)
		}
	}
	if err := conf.applyEnv(lookup); err != nil {
		return nil, err
	}
	if conf.Loglevel == "" {
		conf.Loglevel = "info"
	}
	return conf, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LOG_LEVEL":             &c.Loglevel,
		"EXPORT_REVISION":       &c.Export.Revision,
		"OUTPUT":                &c.Export.Output,
		"ZOTERO_ENDPOINT":       &c.Zotero.Endpoint,
		"ZOTERO_API_KEY":        &c.Zotero.APIKey,
		"ZOTERO_LIBRARY_TYPE":   &c.Zotero.LibraryType,
		"ZOTERO_LIBRARY_ID":     &c.Zotero.LibraryID,
		"ZOTERO_COLLECTION":     &c.Zotero.Collection,
		"ZSYNC_DSN":             &c.Database.DSN,
		"ZSYNC_SCHEMA":          &c.Database.Schema,
		"ZSYNC_LIBRARY_TYPE":    &c.Database.LibraryType,
		"S3_ENDPOINT":           &c.S3.Endpoint,
		"S3_ACCESS_KEY_ID":      &c.S3.AccessKeyID,
		"S3_SECRET_ACCESS_KEY":  &c.S3.SecretAccessKey,
		"NOTION_API_KEY":        &c.Notion.APIKey,
		"NOTION_PARENT_PAGE_ID": &c.Notion.ParentPageID,
	}
	for name, field := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*field = v
		}
	}

	if v, ok := lookup("ZOTERO_PAGE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid ZOTERO_PAGE_SIZE %q", v)
		}
		c.Zotero.PageSize = n
	}
	if v, ok := lookup("ZSYNC_LIBRARY_ID"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid ZSYNC_LIBRARY_ID %q", v)
		}
		c.Database.LibraryID = n
	}
	if v, ok := lookup("S3_USE_SSL"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid S3_USE_SSL %q", v)
		}
		c.S3.UseSSL = b
	}
	if v, ok := lookup("EXPORT_NOTES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid EXPORT_NOTES %q", v)
		}
		c.Export.ExportNotes = &b
	}
	return nil
}

// Validate checks the settings the chosen source needs.
func (c *Config) Validate(source string) error {
	switch source {
	case "file":
		return nil
	case "zotero":
		if c.Zotero.LibraryID == "" {
			return errors.Wrap(ErrMissing, "zotero.libraryid (ZOTERO_LIBRARY_ID)")
		}
		return nil
	case "zsync":
		if c.Database.DSN == "" {
			return errors.Wrap(ErrMissing, "database.dsn (ZSYNC_DSN)")
		}
		if c.Database.LibraryID == 0 {
			return errors.Wrap(ErrMissing, "database.libraryid (ZSYNC_LIBRARY_ID)")
		}
		return nil
	}
	return errors.Errorf("unknown source %q", source)
}

// ValidateS3 checks the object storage settings before an upload.
func (c *Config) ValidateS3() error {
	if c.S3.Endpoint == "" {
		return errors.Wrap(ErrMissing, "s3.endpoint (S3_ENDPOINT)")
	}
	return nil
}
