package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidPath = errors.New("invalid media path")

// LocalStorage keeps uploaded media under a root directory. Stored paths are
// slash separated and relative to the root, e.g. "inspection/plate/<uuid>.jpg".
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalStorage{root: root}, nil
}

// Save writes r to folder under a fresh uuid name that keeps filename's extension.
func (s *LocalStorage) Save(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(filepath.Base(filename)))
	rel := path.Join(path.Clean("/" + folder)[1:], uuid.NewString()+ext)

	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("LocalStorage.Save (mkdir): %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("LocalStorage.Save (create): %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("LocalStorage.Save (write): %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("LocalStorage.Save (close): %w", err)
	}
	return rel, nil
}

// Open returns the content of a path previously returned by Save.
func (s *LocalStorage) Open(rel string) (io.ReadCloser, error) {
	full, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("LocalStorage.Open: %w", err)
	}
	return f, nil
}

// ReadAll is Open followed by a full read.
func (s *LocalStorage) ReadAll(rel string) ([]byte, error) {
	rc, err := s.Open(rel)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *LocalStorage) resolve(rel string) (string, error) {
	if rel == "" || path.IsAbs(rel) {
		return "", ErrInvalidPath
	}
	clean := path.Clean(rel)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
