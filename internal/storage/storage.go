// Package storage keeps uploaded images on the local filesystem under a
// media root and hands back URL paths relative to the media URL prefix.
package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/inkpress/inkpress/internal/shared"
)

// Subdirectories used by the domain packages.
const (
	DirUsers      = "users"
	DirPosts      = "posts"
	DirCategories = "categories"
)

var allowedExt = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// Store saves and removes uploaded files.
type Store interface {
	Save(ctx context.Context, subdir, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, urlPath string) error
}

// Local stores files below Root and exposes them under URLPrefix.
type Local struct {
	Root      string
	URLPrefix string
}

// NewLocal constructs a Local store.
func NewLocal(root, urlPrefix string) *Local {
	return &Local{Root: root, URLPrefix: "/" + strings.Trim(urlPrefix, "/")}
}

// Save writes r to Root/subdir/<uuid><ext> and returns the URL path
// URLPrefix/subdir/<uuid><ext>. Only image extensions whose content
// sniffs as an image are accepted.
func (l *Local) Save(ctx context.Context, subdir, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExt[ext]; !ok {
		return "", shared.NewValidationError("image", "unsupported file type")
	}
	subdir = strings.Trim(filepath.Clean("/"+subdir), "/")

	br := bufio.NewReader(r)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("storage: read upload: %w", err)
	}
	if len(head) == 0 {
		return "", shared.NewValidationError("image", "is empty")
	}
	if !strings.HasPrefix(http.DetectContentType(head), "image/") {
		return "", shared.NewValidationError("image", "is not an image")
	}

	dir := filepath.Join(l.Root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + ext
	full := filepath.Join(dir, name)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create: %w", err)
	}
	if _, err := io.Copy(f, contextReader{ctx: ctx, r: br}); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("storage: write: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("storage: close: %w", err)
	}
	return path.Join(l.URLPrefix, subdir, name), nil
}

// Remove deletes the file behind urlPath. Paths outside URLPrefix and
// missing files are ignored.
func (l *Local) Remove(_ context.Context, urlPath string) error {
	rel, ok := strings.CutPrefix(urlPath, l.URLPrefix+"/")
	if !ok || rel == "" {
		return nil
	}
	full := filepath.Join(l.Root, filepath.FromSlash(path.Clean("/"+rel)))
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove: %w", err)
	}
	return nil
}

// PublicURL prefixes a stored URL path with baseURL. Empty paths stay empty.
func PublicURL(baseURL, urlPath string) string {
	if urlPath == "" || strings.HasPrefix(urlPath, "http://") || strings.HasPrefix(urlPath, "https://") {
		return urlPath
	}
	return strings.TrimRight(baseURL, "/") + urlPath
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
