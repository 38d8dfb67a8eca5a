package images

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubFetcher serves canned responses keyed by URL and records every
// request, safe for the pipeline's concurrent calls.
type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]stubResponse
	requested []string
}

type stubResponse struct {
	data []byte
	mime string
	err  error
}

func (s *stubFetcher) Image(_ context.Context, rawURL string) ([]byte, string, error) {
	s.mu.Lock()
	s.requested = append(s.requested, rawURL)
	s.mu.Unlock()

	r, ok := s.responses[rawURL]
	if !ok {
		return nil, "", fmt.Errorf("unexpected URL %s", rawURL)
	}
	return r.data, r.mime, r.err
}

func (s *stubFetcher) urls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.requested...)
	sort.Strings(out)
	return out
}

func newPipeline(f Fetcher) *Pipeline {
	return New(f, 2, 5*time.Second, io.Discard)
}

func TestProcess_ThreeImagesOneFails(t *testing.T) {
	f := &stubFetcher{responses: map[string]stubResponse{
		"https://site.fr/a.jpg": {data: []byte("aaa"), mime: "image/jpeg"},
		"https://site.fr/b.jpg": {err: fmt.Errorf("HTTP 404")},
		"https://site.fr/c.png": {data: []byte("ccc"), mime: "image/png"},
	}}
	content := `<p>un</p>` +
		`<img src="https://site.fr/a.jpg" />` +
		`<figure><img src="https://site.fr/b.jpg" /><figcaption>cassée</figcaption></figure>` +
		`<img src="https://site.fr/c.png" />`

	res, err := newPipeline(f).Process(context.Background(), content, "https://site.fr/article", 0)
	if err != nil {
		t.Fatal(err)
	}

	if res.Total != 3 || res.Succeeded != 2 || res.Failed != 1 {
		t.Errorf("total/succeeded/failed = %d/%d/%d, want 3/2/1", res.Total, res.Succeeded, res.Failed)
	}
	if res.NextIndex != 2 {
		t.Errorf("NextIndex = %d, want 2", res.NextIndex)
	}

	// Indexes cover successes only, in document order.
	if len(res.Assets) != 2 {
		t.Fatalf("assets = %d, want 2", len(res.Assets))
	}
	if res.Assets[0].Filename != "image_1.jpeg" || res.Assets[1].Filename != "image_2.png" {
		t.Errorf("filenames = %q, %q", res.Assets[0].Filename, res.Assets[1].Filename)
	}
	if res.Manifest[0].ID != "img_1" || res.Manifest[1].ID != "img_2" {
		t.Errorf("manifest ids = %q, %q", res.Manifest[0].ID, res.Manifest[1].ID)
	}

	if !strings.Contains(res.Content, `src="images/image_1.jpeg"`) {
		t.Errorf("first image not rewritten: %s", res.Content)
	}
	if !strings.Contains(res.Content, `src="images/image_2.png"`) {
		t.Errorf("third image not rewritten: %s", res.Content)
	}
	// The failed image leaves with its figure wrapper.
	if strings.Contains(res.Content, "b.jpg") || strings.Contains(res.Content, "figure") || strings.Contains(res.Content, "cassée") {
		t.Errorf("failed image wrapper survived: %s", res.Content)
	}
	if !strings.Contains(res.Content, "<p>un</p>") {
		t.Errorf("text content lost: %s", res.Content)
	}
}

func TestProcess_LazySrcFallback(t *testing.T) {
	f := &stubFetcher{responses: map[string]stubResponse{
		"https://site.fr/lazy.jpg":   {data: []byte("x"), mime: "image/jpeg"},
		"https://site.fr/retina.jpg": {data: []byte("y"), mime: "image/jpeg"},
	}}
	content := `<img data-src="https://site.fr/lazy.jpg" />` +
		`<img src="data:image/gif;base64,R0lGOD" data-src-retina="https://site.fr/retina.jpg" />`

	res, err := newPipeline(f).Process(context.Background(), content, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 2 {
		t.Fatalf("succeeded = %d, want 2 (%v)", res.Succeeded, f.urls())
	}
	// Lazy attributes are stripped after rewriting.
	if strings.Contains(res.Content, "data-src") {
		t.Errorf("lazy attribute survived: %s", res.Content)
	}
}

func TestProcess_SrcsetPicksWidest(t *testing.T) {
	tests := []struct {
		name   string
		srcset string
		want   string
	}{
		{"widest wins", "https://s.fr/a.jpg 320w, https://s.fr/b.jpg 1280w, https://s.fr/c.jpg 640w", "https://s.fr/b.jpg"},
		{"tie keeps first", "https://s.fr/a.jpg 640w, https://s.fr/b.jpg 640w", "https://s.fr/a.jpg"},
		{"no descriptors keeps first", "https://s.fr/a.jpg, https://s.fr/b.jpg", "https://s.fr/a.jpg"},
		{"density descriptors ignored", "https://s.fr/a.jpg 2x, https://s.fr/b.jpg 1024w", "https://s.fr/b.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &stubFetcher{responses: map[string]stubResponse{
				tt.want: {data: []byte("x"), mime: "image/jpeg"},
			}}
			content := `<img srcset="` + tt.srcset + `" />`
			res, err := newPipeline(f).Process(context.Background(), content, "", 0)
			if err != nil {
				t.Fatal(err)
			}
			if res.Succeeded != 1 {
				t.Fatalf("succeeded = %d, requested %v", res.Succeeded, f.urls())
			}
			if got := f.urls(); len(got) != 1 || got[0] != tt.want {
				t.Errorf("requested %v, want [%s]", got, tt.want)
			}
		})
	}
}

func TestProcess_CommaURLsNotSplit(t *testing.T) {
	// CDN transform paths use commas inside a single URL; only srcset
	// attributes carry candidate lists.
	cdnURL := "https://res.cloudinary.com/demo/image/upload/w_300,h_200,c_fill/sample.jpg"
	lazyURL := "https://img.site.fr/crop,600x400/photo.jpg"
	f := &stubFetcher{responses: map[string]stubResponse{
		cdnURL:  {data: []byte("x"), mime: "image/jpeg"},
		lazyURL: {data: []byte("y"), mime: "image/jpeg"},
	}}
	content := `<img src="` + cdnURL + `" /><img data-src="` + lazyURL + `" />`

	res, err := newPipeline(f).Process(context.Background(), content, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 2 {
		t.Fatalf("succeeded = %d, requested %v", res.Succeeded, f.urls())
	}
	want := []string{cdnURL, lazyURL}
	sort.Strings(want)
	got := f.urls()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("requested %v, want %v", got, want)
		}
	}
}

func TestProcess_SchemeGate(t *testing.T) {
	f := &stubFetcher{responses: map[string]stubResponse{}}
	content := `<img src="ftp://site.fr/x.jpg" /><img src="data:image/gif;base64,R0lGOD" /><img src="file:///etc/passwd" />`

	res, err := newPipeline(f).Process(context.Background(), content, "https://site.fr/a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 3 || res.Succeeded != 0 {
		t.Errorf("failed/succeeded = %d/%d, want 3/0", res.Failed, res.Succeeded)
	}
	if got := f.urls(); len(got) != 0 {
		t.Errorf("no fetch expected, got %v", got)
	}
	if strings.Contains(res.Content, "img") {
		t.Errorf("gated images survived: %s", res.Content)
	}
}

func TestProcess_ResolvesRelativeAgainstArticleURL(t *testing.T) {
	f := &stubFetcher{responses: map[string]stubResponse{
		"https://site.fr/img/photo.jpg":       {data: []byte("x"), mime: "image/jpeg"},
		"https://site.fr/section/inline.webp": {data: []byte("y"), mime: "image/webp"},
	}}
	content := `<img src="/img/photo.jpg" /><img src="inline.webp" />`

	res, err := newPipeline(f).Process(context.Background(), content, "https://site.fr/section/article", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Succeeded != 2 {
		t.Fatalf("succeeded = %d, requested %v", res.Succeeded, f.urls())
	}
	want := []string{"https://site.fr/img/photo.jpg", "https://site.fr/section/inline.webp"}
	if got := f.urls(); got[0] != want[0] || got[1] != want[1] {
		t.Errorf("requested %v, want %v", got, want)
	}
}

func TestProcess_IndexContinuesAcrossArticles(t *testing.T) {
	f := &stubFetcher{responses: map[string]stubResponse{
		"https://site.fr/d.jpg": {data: []byte("x"), mime: "image/jpeg"},
	}}
	res, err := newPipeline(f).Process(context.Background(), `<img src="https://site.fr/d.jpg" />`, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.NextIndex != 3 {
		t.Errorf("NextIndex = %d, want 3", res.NextIndex)
	}
	if res.Assets[0].Filename != "image_3.jpeg" {
		t.Errorf("filename = %q, want image_3.jpeg", res.Assets[0].Filename)
	}
}

func TestProcess_NoImages(t *testing.T) {
	f := &stubFetcher{responses: map[string]stubResponse{}}
	res, err := newPipeline(f).Process(context.Background(), `<p>texte seul</p>`, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 0 || res.NextIndex != 0 {
		t.Errorf("total/next = %d/%d, want 0/0", res.Total, res.NextIndex)
	}
	if !strings.Contains(res.Content, "<p>texte seul</p>") {
		t.Errorf("content lost: %s", res.Content)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{"image/jpeg", "jpeg"},
		{"image/png", "png"},
		{"image/webp", "webp"},
		{"image/svg+xml", "svg"},
		{"", "jpeg"},
		{"garbage", "jpeg"},
	}
	for _, tt := range tests {
		if got := extensionFor(tt.mime); got != tt.want {
			t.Errorf("extensionFor(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}
