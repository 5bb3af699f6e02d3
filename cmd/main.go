package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"emperror.dev/errors"
	"github.com/takak2166/zotero2brain/internal/config"
	"github.com/takak2166/zotero2brain/internal/logger"
	"github.com/takak2166/zotero2brain/internal/notion"
	"github.com/takak2166/zotero2brain/internal/parser"
	"github.com/takak2166/zotero2brain/internal/storage"
	"github.com/takak2166/zotero2brain/internal/translator"
	"github.com/takak2166/zotero2brain/internal/zotero"
	"github.com/takak2166/zotero2brain/internal/zsync"
)

type flags struct {
	config   string
	source   string
	input    string
	output   string
	revision string
	notion   bool
	info     bool
}

func main() {
	// Parse command line flags
	var f flags
	flag.StringVar(&f.config, "config", "", "Path to TOML config file (optional)")
	flag.StringVar(&f.source, "source", "file", "Where items come from: file, zotero or zsync")
	flag.StringVar(&f.input, "input", "", "Path to Zotero JSON export file (source file)")
	flag.StringVar(&f.output, "output", "", "Output file, - for stdout or s3://bucket/key")
	flag.StringVar(&f.revision, "revision", "", "Export revision: current or legacy")
	flag.BoolVar(&f.notion, "notion", false, "Also create a Notion page per record")
	flag.BoolVar(&f.info, "info", false, "Print the translator metadata header and exit")
	flag.Parse()

	// records may go to stdout, logs never do
	logger.SetOutput(os.Stderr)

	conf, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(conf.Loglevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	if f.info {
		header, err := translator.DefaultMetadata().Header(time.Now())
		if err != nil {
			logger.Error("Failed to render metadata", err)
			os.Exit(1)
		}
		os.Stdout.Write(header)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, f, conf); err != nil {
		logger.Error("Export failed", err, map[string]interface{}{
			"source": f.source,
		})
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags, conf *config.Config) error {
	if err := conf.Validate(f.source); err != nil {
		return err
	}

	opts, err := exportOptions(f, conf)
	if err != nil {
		return err
	}

	src, closeSource, err := openSource(f, conf)
	if err != nil {
		return err
	}
	defer closeSource()

	output := f.output
	if output == "" {
		output = conf.Export.Output
	}
	if output == "" && !f.notion {
		output = "-"
	}

	var sinks translator.MultiSink
	var finish []func(context.Context) error

	switch {
	case output == "":
	case output == "-":
		w := bufio.NewWriter(os.Stdout)
		sinks = append(sinks, translator.NewTextSink(w))
		finish = append(finish, func(context.Context) error { return w.Flush() })
	case storage.IsTarget(output):
		if err := conf.ValidateS3(); err != nil {
			return err
		}
		target, err := storage.ParseTarget(output)
		if err != nil {
			return err
		}
		s3, err := storage.NewS3Sink(ctx, storage.Config{
			Endpoint:        conf.S3.Endpoint,
			AccessKeyID:     conf.S3.AccessKeyID,
			SecretAccessKey: conf.S3.SecretAccessKey,
			UseSSL:          conf.S3.UseSSL,
		}, target)
		if err != nil {
			return err
		}
		sinks = append(sinks, s3)
		finish = append(finish, s3.Close)
	default:
		file, err := os.Create(output)
		if err != nil {
			return errors.Wrapf(err, "failed to create output file %s", output)
		}
		defer file.Close()
		w := bufio.NewWriter(file)
		sinks = append(sinks, translator.NewTextSink(w))
		finish = append(finish, func(context.Context) error { return w.Flush() })
	}

	if f.notion {
		notionClient, err := notion.New(notion.Config{
			APIKey:       conf.Notion.APIKey,
			ParentPageID: conf.Notion.ParentPageID,
		})
		if err != nil {
			return errors.Wrap(err, "failed to initialize Notion client")
		}
		sinks = append(sinks, notionClient)
	}

	stats, err := translator.New(opts, nil).Export(ctx, src, sinks)
	if err != nil {
		return err
	}
	for _, fn := range finish {
		if err := fn(ctx); err != nil {
			return err
		}
	}

	logger.Info("Migration completed", map[string]interface{}{
		"exported": stats.Exported,
		"skipped":  stats.Skipped,
		"output":   output,
		"notion":   f.notion,
	})
	return nil
}

func exportOptions(f flags, conf *config.Config) (translator.Options, error) {
	opts := translator.DefaultOptions()

	revision := f.revision
	if revision == "" {
		revision = conf.Export.Revision
	}
	rev, err := translator.ParseRevision(revision)
	if err != nil {
		return opts, err
	}
	opts.Revision = rev
	if conf.Export.ExportNotes != nil {
		opts.ExportNotes = *conf.Export.ExportNotes
	}
	return opts, nil
}

func openSource(f flags, conf *config.Config) (translator.Source, func(), error) {
	nop := func() {}
	switch f.source {
	case "file":
		if f.input == "" {
			flag.Usage()
			return nil, nop, errors.New("input file is required")
		}
		p := parser.New()
		if err := p.ParseFile(f.input); err != nil {
			return nil, nop, errors.Wrap(err, "failed to parse input file")
		}
		return p.Source(), nop, nil
	case "zotero":
		client, err := zotero.New(zotero.Config{
			Endpoint:    conf.Zotero.Endpoint,
			APIKey:      conf.Zotero.APIKey,
			LibraryType: conf.Zotero.LibraryType,
			LibraryID:   conf.Zotero.LibraryID,
			Collection:  conf.Zotero.Collection,
			PageSize:    conf.Zotero.PageSize,
		})
		if err != nil {
			return nil, nop, err
		}
		return client, nop, nil
	case "zsync":
		src, err := zsync.Open(zsync.Config{
			DSN:         conf.Database.DSN,
			Schema:      conf.Database.Schema,
			LibraryType: conf.Database.LibraryType,
			LibraryID:   conf.Database.LibraryID,
		})
		if err != nil {
			return nil, nop, err
		}
		return src, func() {
			if err := src.Close(); err != nil {
				logger.Error("Failed to close database", err)
			}
		}, nil
	}
	return nil, nop, errors.Errorf("unknown source %q", f.source)
}
