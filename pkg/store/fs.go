package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// FS is the storage the store reads and commits through.
type FS interface {
	ReadFile(name string) ([]byte, error)
	// WriteFileAtomic replaces name with data so readers see either the old
	// or the new content, never a mix.
	WriteFileAtomic(name string, data []byte) error
}

// OSFS is the host filesystem.
type OSFS struct{}

var _ FS = OSFS{}

// ReadFile reads the whole file.
func (OSFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFileAtomic writes data to a temp file in the same directory, syncs it
// and renames it over name.
func (OSFS) WriteFileAtomic(name string, data []byte) error {
	dir := filepath.Dir(name)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Keep the original file mode.
	if fi, err := os.Stat(name); err == nil {
		if err := os.Chmod(tmpName, fi.Mode().Perm()); err != nil {
			return fmt.Errorf("chmod temp file: %w", err)
		}
	}

	if err := os.Rename(tmpName, name); err != nil {
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	committed = true

	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
