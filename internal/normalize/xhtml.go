package normalize

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// voidElements are HTML elements that must be self-closing in XHTML.
var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Param: true, atom.Source: true,
	atom.Track: true, atom.Wbr: true,
}

var voidTagRe = regexp.MustCompile(`(?i)<(area|base|br|col|embed|hr|img|input|link|meta|param|source|track|wbr)(\b[^>]*?)?>`)

// EnforceVoidElements rewrites any bare void-element tag in an HTML
// string to its self-closed XHTML form. The tree renderer already emits
// self-closed tags; this is the string-level final pass for content that
// never went through the tree.
func EnforceVoidElements(s string) string {
	if s == "" {
		return ""
	}
	return voidTagRe.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasSuffix(match, "/>") {
			return match
		}
		return match[:len(match)-1] + " />"
	})
}

// validXMLChar reports whether a rune is allowed in XML 1.0 content:
// #x9 | #xA | #xD | [#x20-#xD7FF] | [#xE000-#xFFFD] | [#x10000-#x10FFFF].
func validXMLChar(r rune) bool {
	return r == 0x9 || r == 0xA || r == 0xD ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// StripInvalidXMLChars removes characters not allowed in XML 1.0 content.
func StripInvalidXMLChars(s string) string {
	return strings.Map(func(r rune) rune {
		if validXMLChar(r) {
			return r
		}
		return -1
	}, s)
}

// escapeText writes a text node, escaping XML specials, re-encoding
// canonicalized characters as numeric references, and dropping
// XML-invalid control characters.
func escapeText(buf *bytes.Buffer, s string) {
	for _, r := range s {
		switch r {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			if ref, ok := numericRefs[r]; ok {
				buf.WriteString(ref)
			} else if validXMLChar(r) {
				buf.WriteRune(r)
			}
		}
	}
}

// xmlNameRe matches the conservative subset of XML names we emit. The
// HTML tokenizer tolerates tag and attribute names (quotes, equals
// signs) that an XML parser rejects.
var xmlNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._:-]*$`)

// renderXHTML renders an html.Node tree as XHTML: self-closing void
// elements, escaped text and attributes, comments dropped. Namespace
// declarations are never emitted, so duplicates introduced upstream
// disappear here. Elements whose names are not valid XML render as
// their children; attributes with invalid or duplicate keys are
// dropped.
func renderXHTML(buf *bytes.Buffer, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		escapeText(buf, n.Data)
	case html.ElementNode:
		if !xmlNameRe.MatchString(n.Data) {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				renderXHTML(buf, c)
			}
			return
		}
		buf.WriteByte('<')
		buf.WriteString(n.Data)
		seen := map[string]bool{}
		for _, a := range n.Attr {
			if a.Key == "xmlns" || strings.HasPrefix(a.Key, "xmlns:") {
				continue
			}
			if seen[a.Key] || !xmlNameRe.MatchString(a.Key) {
				continue
			}
			seen[a.Key] = true
			buf.WriteByte(' ')
			buf.WriteString(a.Key)
			buf.WriteString(`="`)
			buf.WriteString(html.EscapeString(StripInvalidXMLChars(a.Val)))
			buf.WriteByte('"')
		}
		if voidElements[n.DataAtom] && n.FirstChild == nil {
			buf.WriteString(" />")
			return
		}
		buf.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderXHTML(buf, c)
		}
		buf.WriteString("</")
		buf.WriteString(n.Data)
		buf.WriteByte('>')
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderXHTML(buf, c)
		}
	case html.CommentNode:
		// dropped
	case html.RawNode:
		buf.WriteString(n.Data)
	}
}

// RenderBody parses an HTML fragment, renders it as XHTML, and returns
// the body content without the html/head/body wrapper the parser adds.
func RenderBody(doc *html.Node) string {
	var buf bytes.Buffer
	renderXHTML(&buf, doc)

	result := buf.String()
	if idx := strings.Index(result, "<body>"); idx >= 0 {
		result = result[idx+len("<body>"):]
		if end := strings.LastIndex(result, "</body>"); end >= 0 {
			result = result[:end]
		}
	}
	return result
}

// textContent returns the concatenated text of a node and its children.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
