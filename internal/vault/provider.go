// Package vault is the file-storage and metadata-cache layer over the
// local notes vault. All paths are vault-relative and use forward slashes.
package vault

import (
	"bytes"
	"errors"
	"io/fs"
	"time"
)

// FileInfo describes one vault entry.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Provider is the interface for vault file operations.
type Provider interface {
	// Stat describes the entry at path. Missing entries return an error
	// matching fs.ErrNotExist.
	Stat(path string) (FileInfo, error)
	// List returns every .md file under dir, skipping dot-directories.
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent folders.
	Write(path string, content []byte) error
	// Create writes a new file and fails with apperr.ErrAlreadyExists if
	// path is taken.
	Create(path string, content []byte) error
	// Move renames oldPath to newPath and fails if newPath is taken.
	Move(oldPath, newPath string) error
	// Trash moves path into the vault trash and returns its new location.
	Trash(path string) (string, error)
	// EnsureDir creates dir and its parents.
	EnsureDir(dir string) error
}

// IsFile reports whether path exists and is a regular file.
func IsFile(p Provider, path string) bool {
	info, err := p.Stat(path)
	return err == nil && !info.IsDir
}

// IsDir reports whether path exists and is a directory.
func IsDir(p Provider, path string) bool {
	info, err := p.Stat(path)
	return err == nil && info.IsDir
}

// IsNotExist reports whether err means the entry is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// WriteIfChanged writes content only when it differs from what is on disk
// and reports whether a write happened.
func WriteIfChanged(p Provider, path string, content []byte) (bool, error) {
	existing, err := p.Read(path)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err != nil && !IsNotExist(err) {
		return false, err
	}
	if err := p.Write(path, content); err != nil {
		return false, err
	}
	return true, nil
}
