package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements port.MediaStore on a directory that the HTTP server
// exposes under /media.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the media directory if needed.
func NewLocalStore(dir, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Dir returns the directory served as static media.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes data under filename and returns its public URL.
// Existing files with the same name are overwritten.
func (s *LocalStore) Save(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name, err := cleanName(filename)
	if err != nil {
		return "", fmt.Errorf("save media: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("save media: %w", err)
	}
	return s.baseURL + "/media/" + url.PathEscape(name), nil
}

// Delete removes a saved file. A file that is already gone is not an error.
func (s *LocalStore) Delete(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := cleanName(filename)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

// cleanName reduces filename to a single path element inside the media dir.
func cleanName(filename string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return name, nil
}
