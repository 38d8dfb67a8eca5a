// Package normalize converts messy site HTML into strict XHTML suitable
// for EPUB content documents: named entities become numeric references,
// dangerous and editorial elements are stripped, and every void element
// is self-closed.
package normalize

import (
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

// Rules holds the deployment-specific cleanup lists.
type Rules struct {
	// RemovePhrases matches element text case-insensitively. An exact
	// match always removes the element; a substring match only does so
	// when the element's total text is shorter than PhraseTextLimit.
	RemovePhrases []string

	// RemoveSelectors are substrings matched against class and id values.
	RemoveSelectors []string

	PhraseTextLimit int

	// FlattenLinks replaces anchors with their plain text, so a static
	// EPUB carries no dead or tracking links.
	FlattenLinks bool
}

// Normalizer applies the cleanup pipeline with a fixed rule set.
type Normalizer struct {
	rules Rules
}

func New(rules Rules) *Normalizer {
	if rules.PhraseTextLimit == 0 {
		rules.PhraseTextLimit = 50
	}
	return &Normalizer{rules: rules}
}

// strippedTags are removed wholesale, content included.
var strippedTags = map[string]bool{
	"script":   true,
	"noscript": true,
	"iframe":   true,
	"style":    true,
}

// Normalize runs the full pipeline. It never fails: the HTML parser
// recovers from malformed input, and empty input yields an empty string.
func (nm *Normalizer) Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	// Entity canonicalization happens before parsing so the table's named
	// forms survive as numeric references end to end; the renderer
	// re-emits the same characters numerically.
	raw = canonicalizeEntities(raw)

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		// Parser is lenient; an actual error means input beyond repair.
		return EnforceVoidElements(raw)
	}

	nm.clean(doc)

	return EnforceVoidElements(RenderBody(doc))
}

// clean walks the tree depth-first, removing stripped tags, event
// handler attributes, boilerplate elements, and (optionally) anchors.
func (nm *Normalizer) clean(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if nm.shouldRemove(c) {
			n.RemoveChild(c)
		} else {
			nm.clean(c)
		}
		c = next
	}

	if n.Type != html.ElementNode {
		return
	}

	// Attribute-level stripping: any on* handler goes.
	var kept []html.Attribute
	for _, a := range n.Attr {
		if strings.HasPrefix(strings.ToLower(a.Key), "on") {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept

	if nm.rules.FlattenLinks && dom.NodeName(n) == "a" && n.Parent != nil {
		flattenAnchor(n)
	}
}

// shouldRemove reports whether an element should be dropped entirely.
func (nm *Normalizer) shouldRemove(n *html.Node) bool {
	if n.Type == html.CommentNode {
		return true
	}
	if n.Type != html.ElementNode {
		return false
	}

	name := dom.NodeName(n)
	if strippedTags[name] {
		return true
	}
	// Never remove the structural wrappers the parser adds.
	if name == "html" || name == "head" || name == "body" {
		return false
	}

	return nm.isBoilerplate(n)
}

// isBoilerplate applies the two editorial heuristics: phrase match on the
// element's own text (gated by length so real paragraphs survive), and
// substring match on class/id values.
func (nm *Normalizer) isBoilerplate(n *html.Node) bool {
	class := strings.ToLower(dom.GetAttributeOr(n, "class", ""))
	id := strings.ToLower(dom.GetAttributeOr(n, "id", ""))

	for _, sel := range nm.rules.RemoveSelectors {
		sel = strings.ToLower(sel)
		if sel == "" {
			continue
		}
		if strings.Contains(class, sel) || strings.Contains(id, sel) {
			return true
		}
	}

	text := strings.ToLower(strings.TrimSpace(textContent(n)))
	if text == "" {
		return false
	}

	for _, phrase := range nm.rules.RemovePhrases {
		phrase = strings.ToLower(phrase)
		if phrase == "" {
			continue
		}
		if text == phrase {
			return true
		}
		if len(text) < nm.rules.PhraseTextLimit && strings.Contains(text, phrase) {
			return true
		}
		// Sites often bake the phrase into class names with hyphens or
		// underscores ("lire-aussi", "voir_aussi").
		hyphen := strings.ReplaceAll(phrase, " ", "-")
		underscore := strings.ReplaceAll(phrase, " ", "_")
		if strings.Contains(class, hyphen) || strings.Contains(class, underscore) || strings.Contains(id, hyphen) {
			return true
		}
	}
	return false
}

// flattenAnchor replaces an <a> element with a text node holding its
// plain text content.
func flattenAnchor(n *html.Node) {
	text := textContent(n)
	parent := n.Parent
	if text != "" {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text}, n)
	}
	parent.RemoveChild(n)
}
