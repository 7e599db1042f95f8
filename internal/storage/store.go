// Package storage persists uploaded assets on the local filesystem, one
// directory per content category.
//
// Names are reduced to a single path element and are never overwritten: when
// a name is already taken the store picks a new one by appending a short
// random suffix, and reports the name it actually used.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Category groups assets by content type.
type Category string

const (
	CategoryImage Category = "image"
	CategoryFile  Category = "file"
)

const (
	maxNameLength = 255
	maxClaimTries = 8
	tempDirName   = ".incoming"
)

var (
	// ErrNotFound is returned when a requested asset does not exist.
	ErrNotFound = errors.New("storage: asset not found")
	// ErrInvalidName is returned for names that cannot be stored safely.
	ErrInvalidName = errors.New("storage: invalid asset name")
	// ErrUnknownCategory is returned for categories other than image and file.
	ErrUnknownCategory = errors.New("storage: unknown category")
)

// Asset describes a stored upload.
type Asset struct {
	Category Category
	Name     string
	Size     int64
}

// Store saves and opens assets under a root directory.
type Store struct {
	root string
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Root returns the directory the store writes under.
func (s *Store) Root() string {
	return s.root
}

// CleanName reduces a client-supplied name to its final path element and
// rejects names that cannot be stored. Backslashes are treated as
// separators since Windows clients send full paths that way.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return "", ErrInvalidName
	}

	base := path.Base(name)
	switch {
	case base == "." || base == ".." || base == "/":
		return "", ErrInvalidName
	case strings.ContainsRune(base, 0):
		return "", ErrInvalidName
	case len(base) > maxNameLength:
		return "", ErrInvalidName
	}
	return base, nil
}

func (s *Store) categoryDir(category Category) (string, error) {
	switch category {
	case CategoryImage, CategoryFile:
		return filepath.Join(s.root, string(category)), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
}

// Save streams r into the category directory under name. The asset becomes
// visible only once the whole body has been written. If name is taken, a
// unique variant is used instead; the returned Asset carries the final name.
func (s *Store) Save(ctx context.Context, category Category, name string, r io.Reader) (Asset, error) {
	clean, err := CleanName(name)
	if err != nil {
		return Asset{}, err
	}

	dir, err := s.categoryDir(category)
	if err != nil {
		return Asset{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Asset{}, fmt.Errorf("create %s dir: %w", category, err)
	}

	tmpDir := filepath.Join(s.root, tempDirName)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return Asset{}, fmt.Errorf("create temp dir: %w", err)
	}

	tmp, err := os.CreateTemp(tmpDir, "upload-*")
	if err != nil {
		return Asset{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, copyErr := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	closeErr := tmp.Close()
	if copyErr != nil {
		return Asset{}, fmt.Errorf("write %s: %w", clean, copyErr)
	}
	if closeErr != nil {
		return Asset{}, fmt.Errorf("flush %s: %w", clean, closeErr)
	}

	stored, err := claim(tmpPath, dir, clean)
	if err != nil {
		return Asset{}, err
	}

	return Asset{Category: category, Name: stored, Size: size}, nil
}

// claim links the completed temp file into dir under name, or under a
// mangled variant if name already exists. Linking fails atomically when the
// target exists, so concurrent uploads never replace each other.
func claim(tmpPath, dir, name string) (string, error) {
	candidate := name
	for i := 0; i < maxClaimTries; i++ {
		err := os.Link(tmpPath, filepath.Join(dir, candidate))
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("store %s: %w", candidate, err)
		}
		candidate = mangle(name)
	}
	return "", fmt.Errorf("store %s: no free name after %d attempts", name, maxClaimTries)
}

// mangle inserts a short random suffix before the extension:
// photo.png becomes photo-1a2b3c4d.png.
func mangle(name string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return stem + "-" + suffix + ext
}

// Open returns the named asset for reading. Names that are not already in
// clean form are reported as not found.
func (s *Store) Open(category Category, name string) (*os.File, fs.FileInfo, error) {
	clean, err := CleanName(name)
	if err != nil || clean != name {
		return nil, nil, ErrNotFound
	}

	dir, err := s.categoryDir(category)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(dir, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("open %s: %w", clean, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", clean, err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, ErrNotFound
	}

	return f, info, nil
}

// ImageContentType returns the image MIME type for name's extension, or an
// empty string when the extension is not a known image type.
func ImageContentType(name string) string {
	ct := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return ""
}

// SniffImageType detects the image type of f from its leading bytes and
// rewinds f. Content that does not look like an image is reported as
// application/octet-stream.
func SniffImageType(f io.ReadSeeker) (string, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("sniff content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind after sniff: %w", err)
	}
	if ct := http.DetectContentType(buf[:n]); strings.HasPrefix(ct, "image/") {
		return ct, nil
	}
	return "application/octet-stream", nil
}

// IsImage reports whether a declared Content-Type denotes an image.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
