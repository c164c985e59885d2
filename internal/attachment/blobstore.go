package attachment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hazardwatch/hazardwatch/internal/errors"
)

// BlobStore keeps attachment files under a root directory. Paths handed out
// are relative to the root and use forward slashes.
type BlobStore struct {
	root string
	now  func() time.Time
}

// NewBlobStore creates the root directory if needed.
func NewBlobStore(root string) (*BlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fileError(fmt.Errorf("creating media root: %w", err), "mkdir")
	}
	return &BlobStore{root: root, now: time.Now}, nil
}

// Root returns the media root directory.
func (b *BlobStore) Root() string {
	return b.root
}

// Path resolves a stored relative path, rejecting paths escaping the root.
func (b *BlobStore) Path(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.New(fmt.Errorf("path %q escapes media root", rel)).
			Component("attachment").
			Category(errors.CategoryValidation).
			Build()
	}
	return filepath.Join(b.root, clean), nil
}

// newRelPath allocates attachments/YYYY/MM/<uuid><ext> for filename.
func (b *BlobStore) newRelPath(filename string) string {
	now := b.now().UTC()
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("attachments/%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.NewString(), ext)
}

// Import moves the file at src into the store and returns its relative path.
// src no longer exists afterwards.
func (b *BlobStore) Import(src, filename string) (string, error) {
	rel := b.newRelPath(filename)
	dst, err := b.Path(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fileError(err, "mkdir")
	}

	// Rename fails across filesystems, e.g. tmpfs to disk
	if err := os.Rename(src, dst); err == nil {
		return rel, nil
	}
	if err := copyFile(src, dst); err != nil {
		return "", fileError(err, "import")
	}
	_ = os.Remove(src)
	return rel, nil
}

// Copy duplicates a stored file and returns the relative path of the copy.
func (b *BlobStore) Copy(rel string) (string, error) {
	src, err := b.Path(rel)
	if err != nil {
		return "", err
	}
	newRel := b.newRelPath(rel)
	dst, err := b.Path(newRel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fileError(err, "mkdir")
	}
	if err := copyFile(src, dst); err != nil {
		return "", fileError(err, "copy")
	}
	return newRel, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (b *BlobStore) Remove(rel string) error {
	p, err := b.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fileError(err, "remove")
	}
	return nil
}

// Open opens a stored file for reading.
func (b *BlobStore) Open(rel string) (*os.File, error) {
	p, err := b.Path(rel)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fileError(err, "open")
	}
	return f, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	_, err = io.Copy(out, in)
	return err
}

func fileError(err error, operation string) error {
	return errors.New(err).
		Component("attachment").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Build()
}
