// Package article defines the record the pipeline consumes and extracts
// it from fetched pages.
package article

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability"
	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
)

// Record is one captured article; one record becomes one EPUB chapter.
// Content is raw HTML until the pipeline normalizes it.
type Record struct {
	Title   string `json:"title"`
	Author  string `json:"author,omitempty"`
	Date    string `json:"date,omitempty"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// Extract runs readability over a fetched page and fills in author and
// date from the page's metadata tags.
func Extract(htmlBytes []byte, pageURL *url.URL) (Record, error) {
	art, err := readability.FromReader(bytes.NewReader(htmlBytes), pageURL)
	if err != nil {
		return Record{}, fmt.Errorf("readability extraction failed: %w", err)
	}
	if art.Content == "" {
		return Record{}, fmt.Errorf("readability extracted no content from %s", pageURL)
	}

	rec := Record{
		Title:   strings.TrimSpace(art.Title),
		Content: art.Content,
		URL:     pageURL.String(),
		Domain:  pageURL.Hostname(),
	}
	if rec.Title == "" {
		rec.Title = "Sans titre"
	}

	rec.Author, rec.Date = scrapePageMeta(htmlBytes)
	return rec, nil
}

// scrapePageMeta pulls author and publication date from the usual meta
// tags and time elements.
func scrapePageMeta(htmlBytes []byte) (author, date string) {
	doc, err := html.Parse(bytes.NewReader(htmlBytes))
	if err != nil {
		return "", ""
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch dom.NodeName(n) {
			case "meta":
				name := strings.ToLower(dom.GetAttributeOr(n, "name", ""))
				prop := strings.ToLower(dom.GetAttributeOr(n, "property", ""))
				content := strings.TrimSpace(dom.GetAttributeOr(n, "content", ""))
				if content == "" {
					break
				}
				if author == "" && (name == "author" || prop == "article:author") {
					author = content
				}
				if date == "" && (prop == "article:published_time" || name == "date") {
					date = content
				}
			case "time":
				if date == "" {
					if dt := strings.TrimSpace(dom.GetAttributeOr(n, "datetime", "")); dt != "" {
						date = dt
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return author, date
}
