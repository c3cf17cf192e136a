package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/amensah/pantry/internal/imaging"
)

// Store keeps item photos as files under a single flat directory. Filenames
// are generated server-side, so nothing from the client reaches the path.
type Store struct {
	Dir string
}

// NewStore ensures the uploads directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Save normalizes the uploaded image and writes it under a fresh name,
// returning the stored filename.
func (s *Store) Save(r io.Reader) (string, error) {
	data, err := imaging.Normalize(r)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s.jpg", time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8])
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return name, nil
}

// Open returns a reader for a stored image. The name is reduced to its base
// so path traversal cannot escape the directory.
func (s *Store) Open(name string) (*os.File, error) {
	return os.Open(filepath.Join(s.Dir, filepath.Base(name)))
}

// Remove deletes a stored image, ignoring one that is already gone.
func (s *Store) Remove(name string) error {
	err := os.Remove(filepath.Join(s.Dir, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing image: %w", err)
	}
	return nil
}

// List returns the names of all stored images.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading uploads directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
