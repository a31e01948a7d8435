package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotImage = errors.New("file is not an image")
	ErrTooLarge = errors.New("file exceeds size limit")
	ErrEmpty    = errors.New("file is empty")
)

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Local stores uploaded images below Dir and serves them from BaseURL.
type Local struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
}

// NewLocal creates the base directory if it does not exist.
func NewLocal(dir, baseURL string, maxBytes int64) (*Local, error) {
	if dir == "" {
		dir = "./media"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &Local{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), MaxBytes: maxBytes}, nil
}

// SaveImage writes fh to a temp file, verifies it is an image within the size
// cap and renames it to <prefix>/<uuid><ext>. It returns the public URL.
func (s *Local) SaveImage(ctx context.Context, prefix string, fh *multipart.FileHeader) (string, error) {
	if fh == nil || fh.Size == 0 {
		return "", ErrEmpty
	}
	if s.MaxBytes > 0 && fh.Size > s.MaxBytes {
		return "", ErrTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", ErrEmpty
	}
	ctype := http.DetectContentType(head)
	ext, ok := imageExt[ctype]
	if !ok {
		return "", ErrNotImage
	}

	dir := filepath.Join(s.Dir, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	var body io.Reader = io.MultiReader(bytes.NewReader(head), src)
	if s.MaxBytes > 0 {
		body = io.LimitReader(body, s.MaxBytes+1)
	}
	written, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if s.MaxBytes > 0 && written > s.MaxBytes {
		return "", ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	committed = true
	return s.BaseURL + "/" + filepath.ToSlash(filepath.Join(prefix, name)), nil
}

// Delete removes the file behind a URL returned by SaveImage. URLs that do
// not belong to this store are ignored.
func (s *Local) Delete(ctx context.Context, url string) error {
	if url == "" || !strings.HasPrefix(url, s.BaseURL+"/") {
		return nil
	}
	rel := strings.TrimPrefix(url, s.BaseURL+"/")
	clean := filepath.Clean(filepath.FromSlash(rel))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.Dir, clean)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
