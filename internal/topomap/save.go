package topomap

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
)

// Supported output extensions.
const (
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// IsSupportedFormat tells whether images can be written with the given extension.
func IsSupportedFormat(ext string) bool {
	switch strings.ToLower(ext) {
	case FormatPNG, FormatWebP:
		return true
	default:
		return false
	}
}

// Encode writes img to w in the format named by ext.
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{Lossless: true})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Save writes img as folder/name.ext, creating the folder when missing, and returns the path.
func Save(img image.Image, folder, name, ext string) (string, error) {
	if !IsSupportedFormat(ext) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	path := filepath.Join(folder, name+"."+strings.ToLower(ext))
	file, err := createFile(path)
	if err != nil {
		return "", err
	}

	if err = Encode(file, img, ext); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err = file.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	return path, nil
}

// createFile creates path. When the parent directory is missing it is created and the file
// creation is retried once.
func createFile(path string) (*os.File, error) {
	file, err := os.Create(path)
	if errors.Is(err, fs.ErrNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, mkErr)
		}
		file, err = os.Create(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	return file, nil
}
