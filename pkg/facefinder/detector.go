package facefinder

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/nfnt/resize"

	"github.com/menta2k/portrait-crop/pkg/types"
)

// Default cascade parameters
const (
	DefaultMinSize      = 20
	DefaultMaxSize      = 2000
	DefaultShiftFactor  = 0.1
	DefaultScaleFactor  = 1.1
	DefaultIoUThreshold = 0.2
	DefaultMinQuality   = 5.0
	DefaultMaxDimension = 1024
)

// Config holds the pigo cascade parameters
type Config struct {
	CascadePath  string  `json:"cascade_path"`
	MinSize      int     `json:"min_size"`
	MaxSize      int     `json:"max_size"`
	ShiftFactor  float64 `json:"shift_factor"`
	ScaleFactor  float64 `json:"scale_factor"`
	IoUThreshold float64 `json:"iou_threshold"`
	MinQuality   float32 `json:"min_quality"`
	// MaxDimension bounds the longest side of the image the cascade runs on.
	// Zero disables prescaling.
	MaxDimension int `json:"max_dimension"`
}

// DefaultConfig returns the cascade defaults without a cascade path
func DefaultConfig() Config {
	return Config{
		MinSize:      DefaultMinSize,
		MaxSize:      DefaultMaxSize,
		ShiftFactor:  DefaultShiftFactor,
		ScaleFactor:  DefaultScaleFactor,
		IoUThreshold: DefaultIoUThreshold,
		MinQuality:   DefaultMinQuality,
		MaxDimension: DefaultMaxDimension,
	}
}

// Detector runs the pigo facefinder cascade
type Detector struct {
	classifier *pigo.Pigo
	config     Config
}

// New loads and unpacks the cascade file named in config
func New(config Config) (*Detector, error) {
	if config.CascadePath == "" {
		return nil, fmt.Errorf("no cascade file configured; %s", CascadeHint)
	}
	data, err := os.ReadFile(config.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read cascade file: %w; %s", err, CascadeHint)
	}
	return NewFromBytes(data, config)
}

// CascadeHint tells the user where the facefinder cascade comes from
const CascadeHint = "download cascade/facefinder from https://github.com/esimov/pigo and point --cascade or detector.pigo.cascade_path at it"

// NewFromBytes unpacks an in-memory cascade
func NewFromBytes(cascade []byte, config Config) (*Detector, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack cascade: %w", err)
	}
	return &Detector{classifier: classifier, config: withDefaults(config)}, nil
}

func withDefaults(c Config) Config {
	d := DefaultConfig()
	if c.MinSize <= 0 {
		c.MinSize = d.MinSize
	}
	if c.MaxSize <= 0 {
		c.MaxSize = d.MaxSize
	}
	if c.ShiftFactor <= 0 {
		c.ShiftFactor = d.ShiftFactor
	}
	if c.ScaleFactor <= 1 {
		c.ScaleFactor = d.ScaleFactor
	}
	if c.IoUThreshold <= 0 {
		c.IoUThreshold = d.IoUThreshold
	}
	return c
}

// DetectFaces returns every clustered detection whose quality passes MinQuality,
// mapped back to the coordinates of img
func (d *Detector) DetectFaces(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := img.Bounds()
	low, factor := prescale(img, d.config.MaxDimension)

	src := pigo.ImgToNRGBA(low)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	params := pigo.CascadeParams{
		MinSize:     d.config.MinSize,
		MaxSize:     d.config.MaxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	candidates := make([]types.Candidate, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.config.MinQuality {
			continue
		}
		box := clipBox(detectionBox(det.Row, det.Col, det.Scale, factor), b.Dx(), b.Dy())
		if !box.Valid() {
			continue
		}
		candidates = append(candidates, types.Candidate{Box: box, Confidence: float64(det.Q)})
	}
	return candidates, nil
}

// prescale shrinks img so its longest side is at most maxDim. The returned
// factor maps prescaled coordinates back to the original image.
func prescale(img image.Image, maxDim int) (image.Image, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img, 1.0
	}
	if w >= h {
		low := resize.Resize(uint(maxDim), 0, img, resize.Bilinear)
		return low, float64(w) / float64(low.Bounds().Dx())
	}
	low := resize.Resize(0, uint(maxDim), img, resize.Bilinear)
	return low, float64(h) / float64(low.Bounds().Dy())
}

// detectionBox converts a pigo detection (centre and side length) to a box
// in original image coordinates
func detectionBox(row, col, scale int, factor float64) types.BoundingBox {
	half := float64(scale) / 2
	return types.BoundingBox{
		X0: int(math.Round((float64(col) - half) * factor)),
		Y0: int(math.Round((float64(row) - half) * factor)),
		X1: int(math.Round((float64(col) + half) * factor)),
		Y1: int(math.Round((float64(row) + half) * factor)),
	}
}

func clipBox(box types.BoundingBox, w, h int) types.BoundingBox {
	box.X0 = max(0, min(box.X0, w))
	box.Y0 = max(0, min(box.Y0, h))
	box.X1 = max(0, min(box.X1, w))
	box.Y1 = max(0, min(box.Y1, h))
	return box
}
