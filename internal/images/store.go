package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrEmpty           = errors.New("image is empty")
	ErrTooLarge        = errors.New("image exceeds the maximum size")
	ErrUnsupportedType = errors.New("file is not an image")
)

// sniffLen is how much of the upload mimetype needs to recognise images.
const sniffLen = 3072

// storedExt maps the raster formats browsers render as images to the only
// extension a stored file may carry. The client's file name never decides
// how the file is served. SVG is absent: it can carry script.
var storedExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Store writes avatars under Root and hands back the path they are served
// from under PublicPath.
type Store struct {
	Root       string
	PublicPath string
	MaxBytes   int64
}

func NewStore(root, publicPath string, maxBytes int64) *Store {
	return &Store{
		Root:       root,
		PublicPath: "/" + strings.Trim(publicPath, "/"),
		MaxBytes:   maxBytes,
	}
}

// Save stores the bytes under a fresh UUID name whose extension follows the
// detected format and returns the web-relative path, e.g.
// /UserImages/<uuid>.png. originalName is only used for logging by callers.
func (s *Store) Save(ctx context.Context, r io.Reader, originalName string) (string, error) {
	head, ext, err := sniff(r)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	name := uuid.NewString() + ext
	full := filepath.Join(s.Root, name)

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	written, err := io.Copy(f, s.limit(io.MultiReader(bytes.NewReader(head), r)))
	closeErr := f.Close()

	if err == nil && s.MaxBytes > 0 && written > s.MaxBytes {
		err = ErrTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = os.Remove(full)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write image: %w", err)
	}

	return path.Join(s.PublicPath, name), nil
}

// Inspect checks an upload before anything else is written. size is the
// length the client declared, zero when unknown. The returned reader yields
// the full content again.
func (s *Store) Inspect(r io.Reader, size int64) (io.Reader, error) {
	if s.MaxBytes > 0 && size > s.MaxBytes {
		return nil, ErrTooLarge
	}

	head, _, err := sniff(r)
	if err != nil {
		return nil, err
	}

	return io.MultiReader(bytes.NewReader(head), r), nil
}

// sniff reads the start of r, requires a supported raster format and
// returns the extension the file is stored under.
func sniff(r io.Reader) ([]byte, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	if n == 0 {
		return nil, "", ErrEmpty
	}

	ext, ok := storedExt[mimetype.Detect(head).String()]
	if !ok {
		return nil, "", ErrUnsupportedType
	}

	return head, ext, nil
}

// limit lets one byte past MaxBytes through so oversize uploads are detected.
func (s *Store) limit(r io.Reader) io.Reader {
	if s.MaxBytes <= 0 {
		return r
	}
	return io.LimitReader(r, s.MaxBytes+1)
}

// Remove deletes the file behind a web path returned by Save. A file that is
// already gone is not an error.
func (s *Store) Remove(ctx context.Context, webPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.Path(webPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

// Path maps a stored web path back to the file on disk.
func (s *Store) Path(webPath string) string {
	return filepath.Join(s.Root, path.Base(webPath))
}
