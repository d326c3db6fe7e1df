// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging validates and stores uploaded product images.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// PublicPrefix is the URL prefix under which saved images are served.
const PublicPrefix = "/uploads/"

// MaxDimension bounds the longest side of a stored image.
const MaxDimension = 1600

// jpegQuality is used when re-encoding JPEG uploads.
const jpegQuality = 90

// maxNameAttempts bounds the O_EXCL retry loop on file name collisions.
const maxNameAttempts = 100

// ErrInvalidImage is returned when an upload is not a decodable JPEG, PNG,
// GIF or WebP image.
var ErrInvalidImage = errors.New("invalid image")

// Processor writes uploads into a single flat directory.
type Processor struct {
	uploadDir string
	now       func() time.Time
}

// NewProcessor creates a processor storing files in uploadDir.
func NewProcessor(uploadDir string) *Processor {
	return &Processor{
		uploadDir: uploadDir,
		now:       time.Now,
	}
}

// Dir returns the directory files are written to.
func (p *Processor) Dir() string {
	return p.uploadDir
}

// Save validates the uploaded image, normalises it and writes it as
// <UnixNano><ext>. It returns the public path, e.g. /uploads/1700000000000000000.png.
// originalName is only used for logging by callers; the extension always
// follows the detected format.
func (p *Processor) Save(r io.Reader, originalName string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read image data: %w", err)
	}

	format := detectFormat(data)
	if format == "" {
		return "", fmt.Errorf("%w: unsupported format for %q", ErrInvalidImage, filepath.Base(originalName))
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	// WebP cannot be encoded in pure Go, so validated WebP bytes are kept as-is.
	processed := data
	if format != "webp" {
		orientation := readExifOrientation(bytes.NewReader(data))
		img = applyOrientation(img, orientation)
		img = fitWithin(img, MaxDimension)

		processed, err = encodeImage(img, format, jpegQuality)
		if err != nil {
			return "", fmt.Errorf("failed to encode image: %w", err)
		}
	}

	name, err := p.writeUnique(formatExtension(format), processed)
	if err != nil {
		return "", err
	}
	return PublicPrefix + name, nil
}

// Remove deletes the file behind a public path returned by Save. Empty
// paths and files that are already gone are not errors.
func (p *Processor) Remove(publicPath string) error {
	if publicPath == "" {
		return nil
	}
	name, err := p.fileName(publicPath)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(p.uploadDir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

// fileName maps a public path back to a bare file name inside uploadDir.
func (p *Processor) fileName(publicPath string) (string, error) {
	if !strings.HasPrefix(publicPath, PublicPrefix) {
		return "", fmt.Errorf("image path %q is outside %s", publicPath, PublicPrefix)
	}
	name := strings.TrimPrefix(publicPath, PublicPrefix)
	if name == "" || name != path.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid image path %q", publicPath)
	}
	return name, nil
}

// writeUnique creates <UnixNano><ext> with O_EXCL, moving to the next
// nanosecond value when the name is taken.
func (p *Processor) writeUnique(ext string, data []byte) (string, error) {
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	stamp := p.now().UnixNano()
	for range maxNameAttempts {
		name := strconv.FormatInt(stamp, 10) + ext
		target := filepath.Join(p.uploadDir, name)

		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			stamp++
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create image file: %w", err)
		}

		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			_ = os.Remove(target)
			return "", fmt.Errorf("failed to write image file: %w", errors.Join(werr, cerr))
		}
		return name, nil
	}
	return "", fmt.Errorf("failed to pick a free file name after %d attempts", maxNameAttempts)
}

// fitWithin shrinks img so neither side exceeds limit; smaller images are untouched.
func fitWithin(img image.Image, limit int) image.Image {
	b := img.Bounds()
	if b.Dx() <= limit && b.Dy() <= limit {
		return img
	}
	return imaging.Fit(img, limit, limit, imaging.Lanczos)
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation applies EXIF orientation transformation to an image.
// Orientation values:
// 1: Normal
// 2: Flip horizontal
// 3: Rotate 180°
// 4: Flip vertical
// 5: Rotate 90° CW + flip horizontal
// 6: Rotate 90° CW
// 7: Rotate 90° CCW + flip horizontal
// 8: Rotate 90° CCW
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

func formatExtension(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
