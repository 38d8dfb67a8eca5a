// Package upload submits generated EPUBs to the storage server.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Meta carries the display fields accompanying an EPUB submission.
type Meta struct {
	Title     string
	URL       string
	Domain    string
	Timestamp time.Time
}

// Client talks to the storage server's upload endpoint, authenticating
// with a pre-shared key header.
type Client struct {
	serverURL string
	apiKey    string
	http      *http.Client
}

func New(serverURL, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		apiKey:    apiKey,
		http:      &http.Client{Timeout: timeout},
	}
}

// Send posts the EPUB as a multipart submission and returns the stored
// entry's id. Non-2xx responses surface the server's error message when
// the body carries one.
func (c *Client) Send(ctx context.Context, epubBytes []byte, meta Meta) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	filename := sanitizeFilename(meta.Title) + ".epub"
	fw, err := mw.CreateFormFile("epub", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(epubBytes); err != nil {
		return "", err
	}

	ts := meta.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fields := map[string]string{
		"title":     meta.Title,
		"timestamp": ts.UTC().Format(time.RFC3339),
		"url":       meta.URL,
		"domain":    meta.Domain,
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			return "", fmt.Errorf("server rejected upload: %s", e.Error)
		}
		return "", fmt.Errorf("server rejected upload: HTTP %d", resp.StatusCode)
	}

	var ok struct {
		Success bool   `json:"success"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &ok); err != nil {
		return "", fmt.Errorf("unreadable server response: %w", err)
	}
	if !ok.Success {
		return "", fmt.Errorf("server reported failure")
	}
	return ok.ID, nil
}

var unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// sanitizeFilename reduces a title to a safe lowercase filename stem.
func sanitizeFilename(title string) string {
	s := unsafeFilenameRe.ReplaceAllString(title, "_")
	s = strings.Trim(s, "_")
	s = strings.ToLower(s)
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "export"
	}
	return s
}
