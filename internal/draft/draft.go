// Package draft keeps the ordered collection of captured articles
// awaiting a multi-chapter export. A single persisted slot holds the
// serialized draft; appends are read-modify-write under a lock so rapid
// double-invocations never overwrite each other.
package draft

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"web2epub/internal/article"
)

// Draft is the persisted aggregate. Articles keep insertion order, which
// becomes chapter order; duplicates are allowed.
type Draft struct {
	Articles  []article.Record `json:"articles"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Store is the single-slot persistence port.
type Store interface {
	// Get returns the serialized draft, or ok=false when the slot is empty.
	Get() (data []byte, ok bool, err error)
	Set(data []byte) error
	Remove() error
	// Lock takes exclusive ownership of the slot, including against
	// other processes, and returns the release function.
	Lock() (release func(), err error)
}

// Manager owns access to the draft slot.
type Manager struct {
	mu    sync.Mutex
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Append adds an article to the draft, creating it on first use, and
// returns the updated draft.
func (m *Manager) Append(rec article.Record) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Each CLI invocation is its own process, so the mutex alone cannot
	// serialize two rapid adds. Hold the store lock across the whole
	// read-modify-write.
	release, err := m.store.Lock()
	if err != nil {
		return Draft{}, err
	}
	defer release()

	d, err := m.load()
	if err != nil {
		return Draft{}, err
	}
	if d == nil {
		d = &Draft{CreatedAt: time.Now().UTC()}
	}
	d.Articles = append(d.Articles, rec)

	if err := m.save(d); err != nil {
		return Draft{}, err
	}
	return *d, nil
}

// Load returns the current draft, or nil when none exists.
func (m *Manager) Load() (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

// Count returns the number of articles in the draft; an empty slot
// counts zero.
func (m *Manager) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, err := m.load()
	if err != nil {
		return 0, err
	}
	if d == nil {
		return 0, nil
	}
	return len(d.Articles), nil
}

// Clear removes the draft slot.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Remove()
}

func (m *Manager) load() (*Draft, error) {
	data, ok, err := m.store.Get()
	if err != nil {
		return nil, fmt.Errorf("loading draft: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding draft: %w", err)
	}
	return &d, nil
}

func (m *Manager) save(d *Draft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding draft: %w", err)
	}
	if err := m.store.Set(data); err != nil {
		return fmt.Errorf("saving draft: %w", err)
	}
	return nil
}
