// Package epub assembles the OCF container: content documents, package
// metadata, NCX navigation, and embedded image assets, serialized as a
// ZIP archive with the exact layout EPUB 2 readers expect.
package epub

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"web2epub/internal/images"
)

// Chapter is one article ready for packaging: normalized, image-rewritten
// XHTML body content plus display metadata.
type Chapter struct {
	Title   string
	Author  string
	Date    string
	Content string
}

// Book collects everything one export packages.
type Book struct {
	Title    string
	Creator  string
	Language string
	Chapters []Chapter
	Assets   []images.Asset
	Manifest []images.ManifestEntry

	// Cover holds the composed JPEG; empty means no cover page, no
	// cover manifest entry, and no <meta name="cover"> declaration.
	Cover []byte

	// Date defaults to today (YYYY-MM-DD) when empty.
	Date string

	// Identifier defaults to a fresh UUID when empty.
	Identifier string
}

func (b *Book) fillDefaults() {
	if b.Language == "" {
		b.Language = "fr"
	}
	if b.Creator == "" {
		b.Creator = "web2epub"
	}
	if b.Date == "" {
		b.Date = time.Now().Format("2006-01-02")
	}
	if b.Identifier == "" {
		b.Identifier = uuid.NewString()
	}
}

// Build serializes a multi-chapter book: cover page (if any), table of
// contents, one chapter document per article in order, image assets,
// OPF, and NCX.
func Build(book Book) ([]byte, error) {
	if len(book.Chapters) == 0 {
		return nil, fmt.Errorf("epub: no chapters to package")
	}
	book.fillDefaults()

	hasCover := len(book.Cover) > 0

	var entries []entry
	entries = append(entries, entry{name: "META-INF/container.xml", data: []byte(containerXML)})

	if hasCover {
		entries = append(entries, entry{name: "OEBPS/cover.xhtml", data: []byte(coverPageXHTML())})
	}
	entries = append(entries, entry{name: "OEBPS/toc.xhtml", data: []byte(tocPageXHTML(book.Chapters))})

	for i, ch := range book.Chapters {
		name := fmt.Sprintf("OEBPS/chapter_%d.xhtml", i+1)
		entries = append(entries, entry{name: name, data: []byte(chapterXHTML(ch))})
	}

	for _, a := range book.Assets {
		entries = append(entries, entry{name: "OEBPS/images/" + a.Filename, data: a.Bytes})
	}

	// Copied so the cover entry never lands in the caller's backing array.
	manifest := append([]images.ManifestEntry(nil), book.Manifest...)
	if hasCover {
		entries = append(entries, entry{name: "OEBPS/images/cover.jpg", data: book.Cover})
		manifest = append(manifest, images.ManifestEntry{
			ID:        "cover-image",
			Href:      "images/cover.jpg",
			MediaType: "image/jpeg",
		})
	}

	entries = append(entries,
		entry{name: "OEBPS/content.opf", data: []byte(contentOPF(book, manifest, hasCover))},
		entry{name: "OEBPS/toc.ncx", data: []byte(tocNCX(book))},
	)

	return writeArchive(entries)
}

// BuildSingle serializes a one-article EPUB: a lone content.xhtml, no
// table of contents and no cover.
func BuildSingle(ch Chapter, book Book) ([]byte, error) {
	book.Chapters = []Chapter{ch}
	if book.Title == "" {
		book.Title = ch.Title
	}
	book.fillDefaults()

	entries := []entry{
		{name: "META-INF/container.xml", data: []byte(containerXML)},
		{name: "OEBPS/content.xhtml", data: []byte(chapterXHTML(ch))},
	}
	for _, a := range book.Assets {
		entries = append(entries, entry{name: "OEBPS/images/" + a.Filename, data: a.Bytes})
	}
	entries = append(entries,
		entry{name: "OEBPS/content.opf", data: []byte(singleOPF(book, ch))},
		entry{name: "OEBPS/toc.ncx", data: []byte(singleNCX(book, ch))},
	)

	return writeArchive(entries)
}
