package draft

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	lockRetryInterval = 10 * time.Millisecond
	lockWait          = 5 * time.Second
	lockStaleAfter    = 10 * time.Second
)

// FileStore persists the draft slot as a JSON file. Writes go through a
// temp file and rename, so a concurrent reader sees either the previous
// or the new draft, never a torn one.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Get() ([]byte, bool, error) {
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (fs *FileStore) Set(data []byte) error {
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".draft-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing draft: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, fs.path)
}

// Lock acquires an exclusive lock file next to the draft. O_EXCL makes
// creation atomic across processes; contenders poll until the holder
// releases. A lock older than lockStaleAfter belongs to a dead process
// and gets broken.
func (fs *FileStore) Lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return nil, err
	}
	lockPath := fs.path + ".lock"
	deadline := time.Now().Add(lockWait)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("acquiring draft lock: %w", err)
		}
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			os.Remove(lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("draft locked by another process: %s", lockPath)
		}
		time.Sleep(lockRetryInterval)
	}
}

func (fs *FileStore) Remove() error {
	err := os.Remove(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
