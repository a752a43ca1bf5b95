package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore reads objects from the local filesystem. Relative paths are
// resolved against Root when it is set.
type FileStore struct {
	Root string
}

// Get implements Store.
func (f FileStore) Get(_ context.Context, u *url.URL) (*Object, error) {
	p := u.Path
	if u.Host != "" && u.Host != "localhost" {
		// file://relative/dir parses "relative" as the host
		p = filepath.Join(u.Host, p)
	}
	if f.Root != "" && !filepath.IsAbs(p) {
		p = filepath.Join(f.Root, p)
	}

	file, err := os.Open(filepath.Clean(p))
	if err != nil {
		return nil, mapFileError(p, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, mapFileError(p, err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fmt.Errorf("%s is a directory: %w", p, ErrNotFound)
	}
	return &Object{Body: file, Size: info.Size()}, nil
}

func mapFileError(p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%s: %w", p, ErrAccessDenied)
	default:
		return fmt.Errorf("failed to open %s: %w", p, err)
	}
}
