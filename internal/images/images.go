// Package images discovers image references in normalized article
// content, downloads them, and rewrites the references to archive-local
// paths. Failures remove the offending element but never abort the
// article.
package images

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"

	"web2epub/internal/normalize"
)

// Asset is one successfully downloaded image, owned by the packager for
// the duration of a single export.
type Asset struct {
	Index    int
	Filename string
	MimeType string
	Bytes    []byte
}

// ManifestEntry describes an asset for the OPF manifest.
type ManifestEntry struct {
	ID        string
	Href      string
	MediaType string
}

// Result reports the outcome of processing one article's images.
type Result struct {
	Content   string
	Assets    []Asset
	Manifest  []ManifestEntry
	Succeeded int
	Failed    int
	Total     int
	NextIndex int
}

// Fetcher downloads a single image and reports its MIME type.
type Fetcher interface {
	Image(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Pipeline downloads article images with bounded concurrency.
type Pipeline struct {
	fetcher     Fetcher
	concurrency int
	timeout     time.Duration
	log         io.Writer
}

func New(fetcher Fetcher, concurrency int, timeout time.Duration, log io.Writer) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = io.Discard
	}
	return &Pipeline{
		fetcher:     fetcher,
		concurrency: concurrency,
		timeout:     timeout,
		log:         log,
	}
}

// lazySrcAttrs is the ordered fallback list for lazy-loaded images.
var lazySrcAttrs = []string{
	"data-src",
	"data-lazy-src",
	"data-original",
	"data-srcset",
	"data-src-retina",
	"data-lazy",
	"srcset",
}

// srcsetAttrs carry comma-separated candidate lists; every other source
// attribute holds a single URL, where commas are legitimate path
// characters (CDN transform segments).
var srcsetAttrs = map[string]bool{
	"srcset":      true,
	"data-srcset": true,
}

// Process handles every <img> in document order. startIndex is the next
// global image index for the export; the returned NextIndex carries it
// forward to the following article. All tree mutation happens on the
// calling goroutine after the downloads complete.
func (p *Pipeline) Process(ctx context.Context, content, baseURL string, startIndex int) (Result, error) {
	res := Result{NextIndex: startIndex}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		res.Content = content
		return res, nil
	}

	imgs := findImages(doc)
	res.Total = len(imgs)
	if len(imgs) == 0 {
		res.Content = normalize.RenderBody(doc)
		return res, nil
	}

	type outcome struct {
		data []byte
		mime string
		err  error
	}
	outcomes := make([]outcome, len(imgs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency)

	for i, img := range imgs {
		rawSrc := resolveSource(img)
		abs, gateErr := p.gate(rawSrc, baseURL)

		wg.Add(1)
		go func(i int, abs string, gateErr error) {
			defer wg.Done()
			if gateErr != nil {
				outcomes[i] = outcome{err: gateErr}
				return
			}
			sem <- struct{}{}
			defer func() { <-sem }()

			fetchCtx := ctx
			if p.timeout > 0 {
				var cancel context.CancelFunc
				fetchCtx, cancel = context.WithTimeout(ctx, p.timeout)
				defer cancel()
			}

			data, mime, err := p.fetcher.Image(fetchCtx, abs)
			outcomes[i] = outcome{data: data, mime: mime, err: err}
		}(i, abs, gateErr)
	}
	wg.Wait()

	// Rewrite and prune in document order; index assignment stays
	// deterministic regardless of download completion order.
	for i, img := range imgs {
		o := outcomes[i]
		if o.err != nil {
			fmt.Fprintf(p.log, "Warning: image %d skipped: %v\n", i+1, o.err)
			removeWithParent(img, doc)
			res.Failed++
			continue
		}

		res.NextIndex++
		n := res.NextIndex
		ext := extensionFor(o.mime)
		filename := fmt.Sprintf("image_%d.%s", n, ext)

		setAttr(img, "src", "images/"+filename)
		stripLazyAttrs(img)

		res.Assets = append(res.Assets, Asset{
			Index:    n,
			Filename: filename,
			MimeType: o.mime,
			Bytes:    o.data,
		})
		res.Manifest = append(res.Manifest, ManifestEntry{
			ID:        fmt.Sprintf("img_%d", n),
			Href:      "images/" + filename,
			MediaType: o.mime,
		})
		res.Succeeded++
	}

	res.Content = normalize.RenderBody(doc)
	return res, nil
}

// gate validates and absolutizes an image source. Only http and https
// survive; relative references resolve against the article URL.
func (p *Pipeline) gate(rawSrc, baseURL string) (string, error) {
	if rawSrc == "" {
		return "", fmt.Errorf("no usable source attribute")
	}

	u, err := url.Parse(strings.TrimSpace(rawSrc))
	if err != nil {
		return "", fmt.Errorf("unparseable source %q: %w", rawSrc, err)
	}

	if u.Scheme == "" && baseURL != "" {
		base, err := url.Parse(baseURL)
		if err == nil {
			u = base.ResolveReference(u)
		}
	}

	switch u.Scheme {
	case "http", "https":
		return u.String(), nil
	default:
		return "", fmt.Errorf("disallowed scheme %q", u.Scheme)
	}
}

// findImages returns every img element in document order.
func findImages(n *html.Node) []*html.Node {
	var imgs []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && dom.NodeName(n) == "img" {
			imgs = append(imgs, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return imgs
}

// resolveSource picks the best source value for an img element: src
// unless missing, empty, or a data URI, then the lazy-load fallbacks in
// order. Only srcset-shaped attributes are treated as candidate lists;
// plain URL attributes pass through untouched.
func resolveSource(img *html.Node) string {
	src := strings.TrimSpace(dom.GetAttributeOr(img, "src", ""))
	if src != "" && !strings.HasPrefix(src, "data:") {
		return src
	}
	for _, attr := range lazySrcAttrs {
		v := strings.TrimSpace(dom.GetAttributeOr(img, attr, ""))
		if v == "" {
			continue
		}
		if srcsetAttrs[attr] {
			return pickBestCandidate(v)
		}
		return v
	}
	return ""
}

// pickBestCandidate parses a srcset-style value and selects the entry
// with the largest declared width; ties and descriptor-less lists fall
// back to the first candidate.
func pickBestCandidate(val string) string {
	entries := strings.Split(val, ",")
	best := ""
	bestWidth := -1
	for _, entry := range entries {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		width := 0
		if len(fields) > 1 {
			desc := fields[1]
			if strings.HasSuffix(desc, "w") {
				if w, err := strconv.Atoi(strings.TrimSuffix(desc, "w")); err == nil {
					width = w
				}
			}
		}
		if width > bestWidth {
			best = fields[0]
			bestWidth = width
		}
	}
	return best
}

// removeWithParent drops a failed img element. When its parent is a real
// element (typically a figure or caption wrapper), the parent goes too,
// since an emptied wrapper renders as a broken box.
func removeWithParent(img *html.Node, doc *html.Node) {
	parent := img.Parent
	if parent == nil {
		return
	}
	name := dom.NodeName(parent)
	if parent.Type == html.ElementNode && name != "body" && name != "html" && parent.Parent != nil {
		parent.Parent.RemoveChild(parent)
		return
	}
	parent.RemoveChild(img)
}

// extensionFor derives a file extension from a MIME type, defaulting to
// jpeg when the type is missing or malformed.
func extensionFor(mime string) string {
	parts := strings.SplitN(mime, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "jpeg"
	}
	ext := parts[1]
	// image/svg+xml and friends
	if i := strings.Index(ext, "+"); i > 0 {
		ext = ext[:i]
	}
	return ext
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// stripLazyAttrs removes the lazy-load and srcset attributes once src
// points into the archive; stale descriptors confuse EPUB readers.
func stripLazyAttrs(n *html.Node) {
	drop := map[string]bool{"loading": true, "sizes": true}
	for _, a := range lazySrcAttrs {
		drop[a] = true
	}
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if drop[a.Key] {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}
