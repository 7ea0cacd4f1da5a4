package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotFound reports a key with no stored object.
	ErrNotFound = errors.New("storage: object not found")
	// ErrInvalidKey reports an empty key or one resolving to the root.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Object is an opened stored file. Callers close it.
type Object struct {
	io.ReadCloser
	Key     string
	Size    int64
	ModTime time.Time
}

// DiskStore keeps rendered exports under a root directory. Keys are
// slash-separated and can never resolve outside the root.
type DiskStore struct {
	root string
}

// NewDiskStore creates root if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if root == "" {
		root = "./exports"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (d *DiskStore) locate(key string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(strings.TrimSpace(key)))
	if clean == "/" {
		return "", ErrInvalidKey
	}
	return filepath.Join(d.root, filepath.FromSlash(clean[1:])), nil
}

// Put stores data under key. The write goes to a temporary file first so a
// concurrent Open never sees a partial document.
func (d *DiskStore) Put(key string, data []byte) error {
	target, err := d.locate(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", key, err)
	}
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// Open returns the object stored under key.
func (d *DiskStore) Open(key string) (*Object, error) {
	target, err := d.locate(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		if err == nil {
			err = ErrNotFound
		}
		return nil, err
	}
	return &Object{ReadCloser: f, Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// RemoveAll deletes key and, when it names a directory, everything below it.
func (d *DiskStore) RemoveAll(key string) error {
	target, err := d.locate(key)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Sweep deletes files last modified before cutoff, then prunes directories
// left empty. It returns the removed keys in walk order.
func (d *DiskStore) Sweep(cutoff time.Time) ([]string, error) {
	var (
		removed []string
		dirs    []string
	)
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if p != d.root {
				dirs = append(dirs, p)
			}
			return nil
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		removed = append(removed, filepath.ToSlash(rel))
		return nil
	})
	// children were appended after their parents
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
	if err != nil {
		return removed, fmt.Errorf("sweep storage: %w", err)
	}
	return removed, nil
}
