package fetch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testClient(maxBytes int64) *Client {
	return New(Options{
		Timeout:      5 * time.Second,
		MaxBytes:     maxBytes,
		AllowPrivate: true,
	})
}

func TestPage_Success(t *testing.T) {
	expected := "<html><body>Bonjour</body></html>"
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(expected))
	}))
	defer srv.Close()

	body, err := testClient(0).Page(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != expected {
		t.Errorf("body = %q, want %q", body, expected)
	}
	if !strings.Contains(gotUA, "Firefox") {
		t.Errorf("User-Agent = %q, want a browser string", gotUA)
	}
}

func TestPage_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	_, err := testClient(0).Page(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 in error, got: %v", err)
	}
}

func TestPage_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 2048))
	}))
	defer srv.Close()

	if _, err := testClient(1024).Page(context.Background(), srv.URL); err == nil {
		t.Error("expected error for oversized body")
	}
	if _, err := testClient(4096).Page(context.Background(), srv.URL); err != nil {
		t.Errorf("body under the cap should pass: %v", err)
	}
}

func TestImage_MimeFromHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/webp; charset=binary")
		w.Write([]byte("webpdata"))
	}))
	defer srv.Close()

	data, mime, err := testClient(0).Image(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if mime != "image/webp" {
		t.Errorf("mime = %q, want image/webp", mime)
	}
	if string(data) != "webpdata" {
		t.Errorf("data = %q", data)
	}
}

func TestImage_MimeSniffedWhenGeneric(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	_, mime, err := testClient(0).Image(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if mime != "image/png" {
		t.Errorf("mime = %q, want image/png (sniffed)", mime)
	}
}

func TestImage_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	if _, _, err := testClient(0).Image(context.Background(), srv.URL); err == nil {
		t.Error("expected error for empty body")
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"169.254.0.1", true},
		{"::1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"93.184.216.34", false},
		{"2001:4860:4860::8888", false},
	}
	for _, tt := range tests {
		if got := isPrivateIP(net.ParseIP(tt.ip)); got != tt.want {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestPage_BlocksPrivateHosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secret"))
	}))
	defer srv.Close()

	guarded := New(Options{Timeout: 5 * time.Second})
	_, err := guarded.Page(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected private-host fetch to be blocked")
	}
	if !strings.Contains(err.Error(), "private") {
		t.Errorf("error should mention the private-IP guard, got: %v", err)
	}
}
