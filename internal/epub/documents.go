package epub

import (
	"fmt"
	"strings"

	"web2epub/internal/images"
	"web2epub/internal/normalize"
)

// escapeXML is the single escape path for every field interpolated into
// a generated document, markup and attribute values alike. Metadata
// fields arrive straight from scraped pages, so XML-invalid control
// characters are dropped here as well.
func escapeXML(s string) string {
	return xmlReplacer.Replace(normalize.StripInvalidXMLChars(s))
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const xhtmlDoctype = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.1//EN" "http://www.w3.org/TR/xhtml11/DTD/xhtml11.dtd">`

// chapterStyle makes images scale to the container width on every reader.
const chapterStyle = `    img {
      display: block;
      width: 100%;
      max-width: 100%;
      height: auto;
      margin: 1em 0;
      clear: both;
    }`

// coverPageXHTML is the wrapper document displaying the cover image.
func coverPageXHTML() string {
	var b strings.Builder
	b.WriteString(xhtmlDoctype)
	b.WriteString("\n<html xmlns=\"http://www.w3.org/1999/xhtml\">\n<head>\n")
	b.WriteString("  <title>Couverture</title>\n")
	b.WriteString("  <meta http-equiv=\"Content-Type\" content=\"text/html; charset=utf-8\" />\n")
	b.WriteString("  <style type=\"text/css\">\n")
	b.WriteString("    body { margin: 0; padding: 0; text-align: center; }\n")
	b.WriteString("    img { max-width: 100%; max-height: 100%; }\n")
	b.WriteString("  </style>\n</head>\n<body>\n")
	b.WriteString("  <img src=\"images/cover.jpg\" alt=\"Couverture\" />\n")
	b.WriteString("</body>\n</html>")
	return b.String()
}

// tocPageXHTML is the human-readable table of contents.
func tocPageXHTML(chapters []Chapter) string {
	var b strings.Builder
	b.WriteString(xhtmlDoctype)
	b.WriteString("\n<html xmlns=\"http://www.w3.org/1999/xhtml\">\n<head>\n")
	b.WriteString("  <title>Sommaire</title>\n")
	b.WriteString("  <meta http-equiv=\"Content-Type\" content=\"text/html; charset=utf-8\" />\n")
	b.WriteString("</head>\n<body>\n  <h1>Sommaire</h1>\n  <ul>\n")
	for i, ch := range chapters {
		fmt.Fprintf(&b, "    <li><a href=\"chapter_%d.xhtml\">%s</a></li>\n", i+1, escapeXML(ch.Title))
	}
	b.WriteString("  </ul>\n</body>\n</html>")
	return b.String()
}

// chapterXHTML embeds one article: escaped title/author/date header,
// then the processed content verbatim (already strict XHTML).
func chapterXHTML(ch Chapter) string {
	var b strings.Builder
	b.WriteString(xhtmlDoctype)
	b.WriteString("\n<html xmlns=\"http://www.w3.org/1999/xhtml\">\n<head>\n")
	fmt.Fprintf(&b, "  <title>%s</title>\n", escapeXML(ch.Title))
	b.WriteString("  <meta http-equiv=\"Content-Type\" content=\"text/html; charset=utf-8\" />\n")
	b.WriteString("  <style type=\"text/css\">\n")
	b.WriteString(chapterStyle)
	b.WriteString("\n  </style>\n</head>\n<body>\n")
	fmt.Fprintf(&b, "  <h1>%s</h1>\n", escapeXML(ch.Title))
	if ch.Author != "" {
		fmt.Fprintf(&b, "  <p><em>Par %s</em></p>\n", escapeXML(ch.Author))
	}
	if ch.Date != "" {
		fmt.Fprintf(&b, "  <p><em>%s</em></p>\n", escapeXML(ch.Date))
	}
	b.WriteString("  <hr />\n  ")
	b.WriteString(ch.Content)
	b.WriteString("\n</body>\n</html>")
	return b.String()
}

// contentOPF renders the multi-chapter package document. The manifest
// lists exactly the files written into OEBPS; the spine orders cover,
// table of contents, then chapters. Images never join the spine.
func contentOPF(book Book, manifest []images.ManifestEntry, hasCover bool) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<package xmlns=\"http://www.idpf.org/2007/opf\" unique-identifier=\"bookid\" version=\"2.0\">\n")
	b.WriteString("  <metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\">\n")
	fmt.Fprintf(&b, "    <dc:title>%s</dc:title>\n", escapeXML(book.Title))
	fmt.Fprintf(&b, "    <dc:creator>%s</dc:creator>\n", escapeXML(book.Creator))
	fmt.Fprintf(&b, "    <dc:language>%s</dc:language>\n", escapeXML(book.Language))
	fmt.Fprintf(&b, "    <dc:date>%s</dc:date>\n", escapeXML(book.Date))
	fmt.Fprintf(&b, "    <dc:identifier id=\"bookid\">%s</dc:identifier>\n", escapeXML(book.Identifier))
	if hasCover {
		b.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	}
	b.WriteString("  </metadata>\n  <manifest>\n")
	b.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	if hasCover {
		b.WriteString("    <item id=\"cover-page\" href=\"cover.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	}
	b.WriteString("    <item id=\"toc-page\" href=\"toc.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	for i := range book.Chapters {
		fmt.Fprintf(&b, "    <item id=\"chapter_%d\" href=\"chapter_%d.xhtml\" media-type=\"application/xhtml+xml\"/>\n", i+1, i+1)
	}
	for _, m := range manifest {
		fmt.Fprintf(&b, "    <item id=\"%s\" href=\"%s\" media-type=\"%s\"/>\n",
			escapeXML(m.ID), escapeXML(m.Href), escapeXML(m.MediaType))
	}
	b.WriteString("  </manifest>\n  <spine toc=\"ncx\">\n")
	if hasCover {
		b.WriteString("    <itemref idref=\"cover-page\"/>\n")
	}
	b.WriteString("    <itemref idref=\"toc-page\"/>\n")
	for i := range book.Chapters {
		fmt.Fprintf(&b, "    <itemref idref=\"chapter_%d\"/>\n", i+1)
	}
	b.WriteString("  </spine>\n</package>")
	return b.String()
}

// tocNCX renders the navigation map: one navPoint per chapter with a
// 1-based playOrder.
func tocNCX(book Book) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<ncx xmlns=\"http://www.daisy.org/z3986/2005/ncx/\" version=\"2005-1\">\n")
	b.WriteString("  <head>\n")
	fmt.Fprintf(&b, "    <meta name=\"dtb:uid\" content=\"%s\"/>\n", escapeXML(book.Identifier))
	b.WriteString("    <meta name=\"dtb:depth\" content=\"1\"/>\n")
	b.WriteString("    <meta name=\"dtb:totalPageCount\" content=\"0\"/>\n")
	b.WriteString("    <meta name=\"dtb:maxPageNumber\" content=\"0\"/>\n")
	b.WriteString("  </head>\n  <docTitle>\n")
	fmt.Fprintf(&b, "    <text>%s</text>\n", escapeXML(book.Title))
	b.WriteString("  </docTitle>\n  <navMap>\n")
	for i, ch := range book.Chapters {
		fmt.Fprintf(&b, "    <navPoint id=\"nav-%d\" playOrder=\"%d\">\n", i+1, i+1)
		b.WriteString("      <navLabel>\n")
		fmt.Fprintf(&b, "        <text>%s</text>\n", escapeXML(ch.Title))
		b.WriteString("      </navLabel>\n")
		fmt.Fprintf(&b, "      <content src=\"chapter_%d.xhtml\"/>\n", i+1)
		b.WriteString("    </navPoint>\n")
	}
	b.WriteString("  </navMap>\n</ncx>")
	return b.String()
}

// singleOPF is the one-article package document: a lone content item,
// no toc page, no cover.
func singleOPF(book Book, ch Chapter) string {
	creator := ch.Author
	if creator == "" {
		creator = book.Creator
	}
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<package xmlns=\"http://www.idpf.org/2007/opf\" unique-identifier=\"bookid\" version=\"2.0\">\n")
	b.WriteString("  <metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\">\n")
	fmt.Fprintf(&b, "    <dc:title>%s</dc:title>\n", escapeXML(book.Title))
	fmt.Fprintf(&b, "    <dc:creator>%s</dc:creator>\n", escapeXML(creator))
	fmt.Fprintf(&b, "    <dc:language>%s</dc:language>\n", escapeXML(book.Language))
	fmt.Fprintf(&b, "    <dc:date>%s</dc:date>\n", escapeXML(book.Date))
	fmt.Fprintf(&b, "    <dc:identifier id=\"bookid\">%s</dc:identifier>\n", escapeXML(book.Identifier))
	b.WriteString("  </metadata>\n  <manifest>\n")
	b.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	b.WriteString("    <item id=\"content\" href=\"content.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	for _, m := range book.Manifest {
		fmt.Fprintf(&b, "    <item id=\"%s\" href=\"%s\" media-type=\"%s\"/>\n",
			escapeXML(m.ID), escapeXML(m.Href), escapeXML(m.MediaType))
	}
	b.WriteString("  </manifest>\n  <spine toc=\"ncx\">\n")
	b.WriteString("    <itemref idref=\"content\"/>\n")
	b.WriteString("  </spine>\n</package>")
	return b.String()
}

func singleNCX(book Book, ch Chapter) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	b.WriteString("<ncx xmlns=\"http://www.daisy.org/z3986/2005/ncx/\" version=\"2005-1\">\n")
	b.WriteString("  <head>\n")
	fmt.Fprintf(&b, "    <meta name=\"dtb:uid\" content=\"%s\"/>\n", escapeXML(book.Identifier))
	b.WriteString("  </head>\n  <docTitle>\n")
	fmt.Fprintf(&b, "    <text>%s</text>\n", escapeXML(book.Title))
	b.WriteString("  </docTitle>\n  <navMap>\n")
	b.WriteString("    <navPoint id=\"content\" playOrder=\"1\">\n")
	b.WriteString("      <navLabel>\n")
	fmt.Fprintf(&b, "        <text>%s</text>\n", escapeXML(ch.Title))
	b.WriteString("      </navLabel>\n")
	b.WriteString("      <content src=\"content.xhtml\"/>\n")
	b.WriteString("    </navPoint>\n")
	b.WriteString("  </navMap>\n</ncx>")
	return b.String()
}
