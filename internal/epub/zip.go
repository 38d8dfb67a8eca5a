package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// entry is one named file destined for the archive.
type entry struct {
	name string
	data []byte
}

// writeArchive serializes the entries as an OCF zip. The mimetype entry
// is written first and stored uncompressed so readers can sniff it from
// the fixed offset the format requires.
func writeArchive(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	mt, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return nil, fmt.Errorf("creating mimetype entry: %w", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		return nil, fmt.Errorf("writing mimetype entry: %w", err)
	}

	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("writing %s: %w", e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	return buf.Bytes(), nil
}
