package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vivesbank/backend/shared/apperrors"
)

var logger = log.With().Str("pkg", "storage").Logger()

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// FileStore keeps uploaded images in a flat directory on local disk. Stored
// names are generated, so callers never control the path.
type FileStore struct {
	dir      string
	maxBytes int64
}

func NewFileStore(dir string, maxBytes int64) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, maxBytes: maxBytes}, nil
}

// Save writes r under a new name derived from prefix and the extension of
// originalName, and returns that name.
func (s *FileStore) Save(prefix, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !imageExtensions[ext] {
		return "", apperrors.BadRequest(fmt.Sprintf("unsupported image type %q", ext))
	}
	name := prefix + "-" + uuid.NewString() + ext
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}
	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = apperrors.BadRequest(fmt.Sprintf("file exceeds %d bytes", s.maxBytes))
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, apperrors.ErrBadRequest) {
			return "", err
		}
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	logger.Debug().Str("file", name).Int64("bytes", n).Msg("file stored")
	return name, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (s *FileStore) Remove(name string) error {
	if name == "" {
		return nil
	}
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// Path returns the on-disk path of a stored file.
func (s *FileStore) Path(name string) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperrors.NotFound("file", name)
		}
		return "", fmt.Errorf("failed to stat %s: %w", name, err)
	}
	return path, nil
}

func (s *FileStore) resolve(name string) (string, error) {
	if name != filepath.Base(name) || name == "." || name == ".." {
		return "", apperrors.BadRequest("invalid file name")
	}
	return filepath.Join(s.dir, name), nil
}
