// Package export runs the full pipeline for one export job: normalize
// each article, download its images, compose the cover, and package the
// EPUB.
package export

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"web2epub/internal/article"
	"web2epub/internal/cover"
	"web2epub/internal/draft"
	"web2epub/internal/epub"
	"web2epub/internal/images"
	"web2epub/internal/normalize"
)

// Exporter holds the pipeline pieces for repeated exports.
type Exporter struct {
	Normalizer *normalize.Normalizer
	Images     *images.Pipeline
	Creator    string
	Language   string
	Log        io.Writer
}

// Output is one finished export.
type Output struct {
	EPUB  []byte
	Title string

	// ImagesFailed / ImagesTotal feed the once-per-export warning line.
	ImagesFailed int
	ImagesTotal  int
}

func (e *Exporter) log() io.Writer {
	if e.Log == nil {
		return io.Discard
	}
	return e.Log
}

// ExportDraft packages every draft article, in insertion order, into a
// multi-chapter EPUB with a mosaic cover when any image downloaded.
func (e *Exporter) ExportDraft(ctx context.Context, d draft.Draft) (Output, error) {
	if len(d.Articles) == 0 {
		return Output{}, fmt.Errorf("draft is empty")
	}

	var (
		chapters []epub.Chapter
		assets   []images.Asset
		manifest []images.ManifestEntry
		failed   int
		total    int
		next     int
	)

	for i, rec := range d.Articles {
		content := e.Normalizer.Normalize(rec.Content)

		res, err := e.Images.Process(ctx, content, rec.URL, next)
		if err != nil {
			return Output{}, fmt.Errorf("processing images for article %d: %w", i+1, err)
		}
		next = res.NextIndex
		failed += res.Failed
		total += res.Total
		assets = append(assets, res.Assets...)
		manifest = append(manifest, res.Manifest...)

		chapters = append(chapters, epub.Chapter{
			Title:   rec.Title,
			Author:  rec.Author,
			Date:    rec.Date,
			Content: res.Content,
		})
	}

	exportDate := time.Now().Format("02/01/2006")
	title := fmt.Sprintf("Compilation %d articles - %s", len(d.Articles), exportDate)

	var coverJPEG []byte
	if len(assets) > 0 {
		tiles := make([][]byte, len(assets))
		for i, a := range assets {
			tiles[i] = a.Bytes
		}
		jpg, err := cover.Compose(tiles, captionFor(d.Articles), exportDate, e.log())
		if err != nil {
			// A missing cover never fails the archive.
			fmt.Fprintf(e.log(), "Warning: cover composition failed: %v\n", err)
		} else {
			coverJPEG = jpg
		}
	}

	book := epub.Book{
		Title:    title,
		Creator:  e.Creator,
		Language: e.Language,
		Chapters: chapters,
		Assets:   assets,
		Manifest: manifest,
		Cover:    coverJPEG,
	}
	data, err := epub.Build(book)
	if err != nil {
		return Output{}, fmt.Errorf("building epub: %w", err)
	}

	return Output{
		EPUB:         data,
		Title:        title,
		ImagesFailed: failed,
		ImagesTotal:  total,
	}, nil
}

// ExportSingle packages one article into a single-document EPUB.
func (e *Exporter) ExportSingle(ctx context.Context, rec article.Record) (Output, error) {
	content := e.Normalizer.Normalize(rec.Content)

	res, err := e.Images.Process(ctx, content, rec.URL, 0)
	if err != nil {
		return Output{}, fmt.Errorf("processing images: %w", err)
	}

	ch := epub.Chapter{
		Title:   rec.Title,
		Author:  rec.Author,
		Date:    rec.Date,
		Content: res.Content,
	}
	book := epub.Book{
		Title:    rec.Title,
		Creator:  e.Creator,
		Language: e.Language,
		Assets:   res.Assets,
		Manifest: res.Manifest,
	}
	data, err := epub.BuildSingle(ch, book)
	if err != nil {
		return Output{}, fmt.Errorf("building epub: %w", err)
	}

	return Output{
		EPUB:         data,
		Title:        rec.Title,
		ImagesFailed: res.Failed,
		ImagesTotal:  res.Total,
	}, nil
}

// captionFor derives the cover caption from the articles' domains,
// falling back to a generic label.
func captionFor(articles []article.Record) string {
	seen := map[string]bool{}
	var domains []string
	for _, a := range articles {
		d := strings.TrimPrefix(a.Domain, "www.")
		if d != "" && !seen[d] {
			seen[d] = true
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		return "Compilation"
	}
	sort.Strings(domains)
	if len(domains) > 3 {
		return fmt.Sprintf("%s et %d autres", domains[0], len(domains)-1)
	}
	return strings.Join(domains, " · ")
}
