// Package blob stores the binary payloads of Local entries as plain files,
// one directory per context.
package blob

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Key addresses one payload.
type Key struct {
	Context string
	Entry   string
}

func (k Key) String() string {
	return k.Context + "/" + k.Entry
}

// Store is the file collaborator used by the repository.
type Store interface {
	// Read returns the payload. A missing payload yields an error matching
	// fs.ErrNotExist.
	Read(k Key) ([]byte, error)

	// Write replaces the payload atomically and returns its size.
	Write(k Key, data []byte) (int64, error)

	// Delete removes the payload. Deleting a missing payload is not an error.
	Delete(k Key) error

	// Size returns the payload size, or false when there is none.
	Size(k Key) (int64, bool, error)
}

// FileStore keeps payloads under Dir/<context>/<entry>.
type FileStore struct {
	Dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(k Key) (string, error) {
	for _, part := range []string{k.Context, k.Entry} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid blob key %q", k)
		}
	}
	return filepath.Join(s.Dir, k.Context, k.Entry), nil
}

func (s *FileStore) Read(k Key) ([]byte, error) {
	p, err := s.path(k)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", k, err)
	}
	return data, nil
}

// Write goes through a temp file and rename so a failed write never leaves
// a truncated payload behind.
func (s *FileStore) Write(k Key, data []byte) (int64, error) {
	p, err := s.path(k)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create blob dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+k.Entry+".*")
	if err != nil {
		return 0, fmt.Errorf("write blob %s: %w", k, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write blob %s: %w", k, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("write blob %s: %w", k, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return 0, fmt.Errorf("write blob %s: %w", k, err)
	}
	return int64(len(data)), nil
}

func (s *FileStore) Delete(k Key) error {
	p, err := s.path(k)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", k, err)
	}
	return nil
}

func (s *FileStore) Size(k Key) (int64, bool, error) {
	p, err := s.path(k)
	if err != nil {
		return 0, false, err
	}
	fi, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("stat blob %s: %w", k, err)
	}
	return fi.Size(), true, nil
}
