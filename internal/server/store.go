package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// Entry is one stored EPUB's metadata record.
type Entry struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	Title        string `json:"title"`
	Size         int64  `json:"size"`
	UploadedAt   string `json:"uploadedAt"`
	URL          string `json:"url,omitempty"`
	Domain       string `json:"domain,omitempty"`
}

// ErrNotFound reports a missing entry id.
var ErrNotFound = errors.New("entry not found")

// Store keeps uploaded EPUB files under uploads/ with a metadata.json
// index, newest first. All index mutation is serialized and written
// atomically.
type Store struct {
	mu       sync.Mutex
	root     string
	uploads  string
	metaPath string
}

func NewStore(root string) (*Store, error) {
	s := &Store{
		root:     root,
		uploads:  filepath.Join(root, "uploads"),
		metaPath: filepath.Join(root, "metadata.json"),
	}
	if err := os.MkdirAll(s.uploads, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}
	if _, err := os.Stat(s.metaPath); errors.Is(err, os.ErrNotExist) {
		if err := s.writeIndex(nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

var unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Save writes the file to disk and prepends its entry to the index.
func (s *Store) Save(originalName, title, uploadedAt, sourceURL, domain string, data []byte) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sanitized := unsafeNameRe.ReplaceAllString(originalName, "_")
	filename := strconv.FormatInt(now.UnixMilli(), 10) + "_" + sanitized

	if err := os.WriteFile(filepath.Join(s.uploads, filename), data, 0o644); err != nil {
		return Entry{}, fmt.Errorf("writing upload: %w", err)
	}

	if uploadedAt == "" {
		uploadedAt = now.UTC().Format(time.RFC3339)
	}
	if title == "" {
		title = sanitized
	}
	e := Entry{
		ID:           strconv.FormatInt(now.UnixNano(), 10),
		Filename:     filename,
		OriginalName: originalName,
		Title:        title,
		Size:         int64(len(data)),
		UploadedAt:   uploadedAt,
		URL:          sourceURL,
		Domain:       domain,
	}

	index, err := s.readIndex()
	if err != nil {
		return Entry{}, err
	}
	index = append([]Entry{e}, index...)
	if err := s.writeIndex(index); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// List returns all entries, newest first.
func (s *Store) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndex()
}

// Open returns the entry and the on-disk path of its file.
func (s *Store) Open(id string) (Entry, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex()
	if err != nil {
		return Entry{}, "", err
	}
	for _, e := range index {
		if e.ID == id {
			path := filepath.Join(s.uploads, e.Filename)
			if _, err := os.Stat(path); err != nil {
				return Entry{}, "", ErrNotFound
			}
			return e, path, nil
		}
	}
	return Entry{}, "", ErrNotFound
}

// Delete removes the entry and its file.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.readIndex()
	if err != nil {
		return err
	}
	for i, e := range index {
		if e.ID == id {
			_ = os.Remove(filepath.Join(s.uploads, e.Filename))
			index = append(index[:i], index[i+1:]...)
			return s.writeIndex(index)
		}
	}
	return ErrNotFound
}

func (s *Store) readIndex() ([]Entry, error) {
	data, err := os.ReadFile(s.metaPath)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	var index []Entry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return index, nil
}

func (s *Store) writeIndex(index []Entry) error {
	if index == nil {
		index = []Entry{}
	}
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".metadata-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.metaPath)
}
