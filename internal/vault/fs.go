package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/dinosync/internal/apperr"
)

// TrashDir is the vault-relative folder deleted notes are moved into.
const TrashDir = ".trash"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
	now  func() time.Time
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault: root is not a directory: %s", abs)
	}
	return &FS{root: abs, now: time.Now}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string {
	return f.root
}

// Rel converts an absolute path under the root into a vault path.
func (f *FS) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// safePath resolves a vault path against the root and rejects any result
// that escapes it.
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" || rel == "." || rel == "/" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("vault: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("vault: path escapes vault root: %s", rel)
	}
	return abs, nil
}

// Stat describes the entry at path.
func (f *FS) Stat(p string) (FileInfo, error) {
	abs, err := f.safePath(p)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return FileInfo{}, fmt.Errorf("vault: stat %s: %w", p, err)
	}
	return FileInfo{Path: p, Size: info.Size(), ModTime: info.ModTime(), IsDir: info.IsDir()}, nil
}

// List walks dir and returns every .md file, skipping hidden directories
// such as .trash and .obsidian.
func (f *FS) List(dir string) ([]FileInfo, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []FileInfo
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == base {
				return walkErr
			}
			return nil
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, ok := f.Rel(p)
		if !ok {
			return nil
		}
		out = append(out, FileInfo{Path: rel, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(p string) ([]byte, error) {
	abs, err := f.safePath(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", p, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(p string, content []byte) error {
	abs, err := f.safePath(p)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vault: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dinosync-tmp-*")
	if err != nil {
		return fmt.Errorf("vault: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("vault: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("vault: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("vault: rename: %w", err)
	}
	success = true
	return nil
}

// Create writes a new file, refusing to replace an existing one.
func (f *FS) Create(p string, content []byte) error {
	abs, err := f.safePath(p)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(abs); err == nil {
		return fmt.Errorf("vault: create %s: %w", p, apperr.ErrAlreadyExists)
	}
	return f.Write(p, content)
}

// Move renames a file within the vault.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.safePath(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newPath)
	if err != nil {
		return err
	}
	if absOld == absNew {
		return nil
	}
	// Case-only renames on case-insensitive file systems stat as existing.
	if _, err := os.Lstat(absNew); err == nil && !strings.EqualFold(absOld, absNew) {
		return fmt.Errorf("vault: move to %s: %w", newPath, apperr.ErrAlreadyExists)
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("vault: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("vault: move: %w", err)
	}
	return nil
}

// Trash moves a file into TrashDir, suffixing the name with a timestamp
// when the trash already holds a file of the same name.
func (f *FS) Trash(p string) (string, error) {
	base := path.Base(filepath.ToSlash(p))
	dest := path.Join(TrashDir, base)
	if _, err := f.Stat(dest); err == nil {
		ext := path.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		dest = path.Join(TrashDir, fmt.Sprintf("%s %s%s", stem, f.now().Format("20060102150405.000"), ext))
	}
	if err := f.Move(p, dest); err != nil {
		return "", fmt.Errorf("vault: trash %s: %w", p, err)
	}
	return dest, nil
}

// EnsureDir creates dir and its parents.
func (f *FS) EnsureDir(dir string) error {
	abs, err := f.safePath(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("vault: mkdir %s: %w", dir, err)
	}
	return nil
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
