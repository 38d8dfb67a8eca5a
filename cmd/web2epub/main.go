// web2epub: collect web articles into a draft and export them as EPUB.
//
// Aggregation mode:
//
//	web2epub -add <URL>        add an article to the current draft
//	web2epub -count            show how many articles the draft holds
//	web2epub -export           package the draft and upload (or -o file.epub)
//	web2epub -clear            discard the draft
//
// Single article mode:
//
//	web2epub -save <URL> [-o file.epub]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"web2epub/internal/article"
	"web2epub/internal/config"
	"web2epub/internal/draft"
	"web2epub/internal/export"
	"web2epub/internal/fetch"
	"web2epub/internal/images"
	"web2epub/internal/normalize"
	"web2epub/internal/upload"
)

// logOut is the writer for informational/progress output.
// In silent mode it is set to io.Discard so only errors reach the user.
var logOut io.Writer = os.Stderr

// cliConfig holds parsed command-line options.
type cliConfig struct {
	addURL     string
	saveURL    string
	exportMode bool
	countMode  bool
	clearMode  bool
	output     string
	configPath string
	draftPath  string
	timeout    time.Duration
	userAgent  string
}

// defaultDraftPath places the draft under the user config directory,
// falling back to the working directory when none is available.
func defaultDraftPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "draft.json"
	}
	return filepath.Join(dir, "web2epub", "draft.json")
}

// fetchArticle downloads a page and extracts its readable content.
func fetchArticle(ctx context.Context, client *fetch.Client, rawURL string) (article.Record, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return article.Record{}, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	htmlBytes, err := client.Page(ctx, rawURL)
	if err != nil {
		return article.Record{}, err
	}

	rec, err := article.Extract(htmlBytes, pageURL)
	if err != nil {
		return article.Record{}, err
	}
	fmt.Fprintf(logOut, "Title: %s\n", rec.Title)
	return rec, nil
}

// deliver writes the EPUB to -o when given, otherwise uploads it to the
// storage server. Returns an error when neither destination succeeded.
func deliver(ctx context.Context, cfg *config.Config, cli cliConfig, out export.Output, meta upload.Meta) error {
	if out.ImagesFailed > 0 {
		fmt.Fprintf(logOut, "Warning: %d/%d images could not be downloaded\n", out.ImagesFailed, out.ImagesTotal)
	}

	if cli.output != "" {
		if err := os.WriteFile(cli.output, out.EPUB, 0644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		fmt.Fprintf(logOut, "✓ %s (%d bytes)\n", cli.output, len(out.EPUB))
		return nil
	}

	client := upload.New(cfg.Upload.ServerURL, cfg.Upload.APIKey, cfg.Upload.Timeout)
	id, err := client.Send(ctx, out.EPUB, meta)
	if err != nil {
		return fmt.Errorf("uploading: %w", err)
	}
	fmt.Fprintf(logOut, "✓ uploaded %q (id %s)\n", out.Title, id)
	return nil
}

// run executes the main application logic, returning any error.
func run(cli cliConfig) error {
	cfg, err := config.Load(cli.configPath)
	if err != nil {
		return err
	}
	if cli.timeout != 0 {
		cfg.Images.Timeout = cli.timeout
	}
	if cli.userAgent != "" {
		cfg.Images.UserAgent = cli.userAgent
	}

	ctx := context.Background()
	manager := draft.NewManager(draft.NewFileStore(cli.draftPath))

	client := fetch.New(fetch.Options{
		Timeout:      cfg.Images.Timeout,
		UserAgent:    cfg.Images.UserAgent,
		MaxBytes:     cfg.Images.MaxBytes,
		AllowPrivate: cfg.Images.AllowPrivate,
	})
	exporter := &export.Exporter{
		Normalizer: normalize.New(normalize.Rules{
			RemovePhrases:   cfg.Normalize.RemovePhrases,
			RemoveSelectors: cfg.Normalize.RemoveSelectors,
			PhraseTextLimit: cfg.Normalize.PhraseTextLimit,
			FlattenLinks:    cfg.Normalize.FlattenLinks,
		}),
		Images:   images.New(client, cfg.Images.Concurrency, cfg.Images.Timeout, logOut),
		Creator:  cfg.Export.Creator,
		Language: cfg.Export.Language,
		Log:      logOut,
	}

	switch {
	case cli.countMode:
		n, err := manager.Count()
		if err != nil {
			return err
		}
		fmt.Printf("%d article(s) in draft\n", n)
		return nil

	case cli.clearMode:
		if err := manager.Clear(); err != nil {
			return err
		}
		fmt.Fprintln(logOut, "Draft cleared")
		return nil

	case cli.addURL != "":
		rec, err := fetchArticle(ctx, client, cli.addURL)
		if err != nil {
			return err
		}
		d, err := manager.Append(rec)
		if err != nil {
			return err
		}
		fmt.Fprintf(logOut, "✓ added (%d article(s) in draft)\n", len(d.Articles))
		return nil

	case cli.saveURL != "":
		rec, err := fetchArticle(ctx, client, cli.saveURL)
		if err != nil {
			return err
		}
		out, err := exporter.ExportSingle(ctx, rec)
		if err != nil {
			return err
		}
		return deliver(ctx, cfg, cli, out, upload.Meta{
			Title:     rec.Title,
			URL:       rec.URL,
			Domain:    rec.Domain,
			Timestamp: time.Now(),
		})

	case cli.exportMode:
		d, err := manager.Load()
		if err != nil {
			return err
		}
		if d == nil || len(d.Articles) == 0 {
			return fmt.Errorf("draft is empty, add articles with -add first")
		}
		fmt.Fprintf(logOut, "Building epub from %d article(s)...\n", len(d.Articles))
		out, err := exporter.ExportDraft(ctx, *d)
		if err != nil {
			return err
		}
		if err := deliver(ctx, cfg, cli, out, upload.Meta{
			Title:     out.Title,
			Timestamp: time.Now(),
		}); err != nil {
			return err
		}
		// Only a delivered export consumes the draft.
		return manager.Clear()
	}

	flag.Usage()
	return fmt.Errorf("no action given")
}

func main() {
	addURL := flag.String("add", "", "Add an article URL to the draft")
	saveURL := flag.String("save", "", "Export a single article URL directly")
	exportMode := flag.Bool("export", false, "Package the draft as an epub")
	countMode := flag.Bool("count", false, "Print the number of draft articles")
	clearMode := flag.Bool("clear", false, "Discard the current draft")
	output := flag.String("o", "", "Output file (default: upload to the storage server)")
	configPath := flag.String("config", "", "Path to config file")
	draftPath := flag.String("draft", defaultDraftPath(), "Path to the draft file")
	timeout := flag.Duration("timeout", 0, "HTTP fetch timeout (overrides config)")
	userAgent := flag.String("user-agent", "", "HTTP User-Agent header (overrides config)")
	silent := flag.Bool("silent", false, "Suppress all output except errors (for pipeline use)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: web2epub -add <URL> | -export | -save <URL> | -count | -clear\n\n")
		fmt.Fprintf(os.Stderr, "Collect web articles into a draft and export them as EPUB.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *silent {
		logOut = io.Discard
	}

	cli := cliConfig{
		addURL:     *addURL,
		saveURL:    *saveURL,
		exportMode: *exportMode,
		countMode:  *countMode,
		clearMode:  *clearMode,
		output:     *output,
		configPath: *configPath,
		draftPath:  *draftPath,
		timeout:    *timeout,
		userAgent:  *userAgent,
	}

	if err := run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
