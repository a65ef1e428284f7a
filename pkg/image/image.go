// Package image moves volume images between memory and files.
package image

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Persister writes a complete image to w.
type Persister interface {
	Persist(w io.Writer) error
}

// Load reads the image stored at path.
func Load(path string) ([]byte, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error loading image: %w", err)
	}
	return img, nil
}

// Save writes the image produced by p to path. The image is written to a
// temporary file next to path which is renamed over path once complete, so
// an interrupted save leaves the previous image in place.
func Save(path string, p Persister) (err error) {
	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("error creating temporary image: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if err := p.Persist(f); err != nil {
		return fmt.Errorf("error saving image: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("error syncing image: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing image: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error replacing image: %w", err)
	}
	return nil
}
