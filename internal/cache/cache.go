package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when reading a key that is not in the cache.
var ErrNotFound = errors.New("cache: entry not found")

// Store is a file-per-key cache in a local directory. Presence of the file is
// the only hit signal, so writes go through a temp file and a rename.
type Store struct {
	dir string
}

// New creates the cache directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// Path returns the file backing key. The file may or may not exist.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, key)
}

func validKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("cache: invalid key %q", key)
	}
	return nil
}

func (s *Store) Exists(key string) bool {
	if validKey(key) != nil {
		return false
	}
	info, err := os.Stat(s.Path(key))
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) Read(key string) ([]byte, error) {
	rc, err := s.Open(key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Open returns a reader over the entry for streaming decoders.
func (s *Store) Open(key string) (io.ReadCloser, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return f, nil
}

func (s *Store) Write(key string, data []byte) error {
	_, _, err := s.WriteFrom(key, bytes.NewReader(data))
	return err
}

// WriteFrom streams r into key and returns the final path and byte count.
// The entry only becomes visible once the copy has completed.
func (s *Store) WriteFrom(key string, r io.Reader) (string, int64, error) {
	if err := validKey(key); err != nil {
		return "", 0, err
	}
	tmp, err := os.CreateTemp(s.dir, "."+key+".*.partial")
	if err != nil {
		return "", 0, fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", n, fmt.Errorf("write %s: %w", key, err)
	}

	dst := s.Path(key)
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return "", n, fmt.Errorf("commit %s: %w", key, err)
	}
	return dst, n, nil
}

// Invalidate removes key. Missing entries are not an error.
func (s *Store) Invalidate(key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(s.Path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}
