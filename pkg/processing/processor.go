package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Processor decodes and encodes images for the cropping pipeline
type Processor struct {
	autoOrient  bool
	jpegQuality int
}

// Option configures a Processor
type Option func(*Processor)

// WithAutoOrientation applies the EXIF orientation tag while decoding
func WithAutoOrientation(enabled bool) Option {
	return func(p *Processor) { p.autoOrient = enabled }
}

// WithJPEGQuality sets the quality used by the JPEG encoder (1-100)
func WithJPEGQuality(quality int) Option {
	return func(p *Processor) { p.jpegQuality = quality }
}

// NewProcessor creates a new image processor
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{jpegQuality: 90}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LoadImage decodes the image at path
func (p *Processor) LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(p.autoOrient))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode %s: empty image", filepath.Base(path))
	}
	return img, nil
}

// EncoderFor returns the output format for a source path: the two JPEG
// extensions map to JPEG, every other extension maps to PNG.
func EncoderFor(path string) imaging.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return imaging.JPEG
	default:
		return imaging.PNG
	}
}

// SaveImage writes img to path with the encoder chosen from the path's extension
func (p *Processor) SaveImage(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	encErr := imaging.Encode(f, img, EncoderFor(path), imaging.JPEGQuality(p.jpegQuality))
	closeErr := f.Close()
	if encErr != nil {
		os.Remove(path)
		return fmt.Errorf("encode %s: %w", filepath.Base(path), encErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", path, closeErr)
	}
	return nil
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Dimensions returns the width and height of img
func Dimensions(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}
