package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/menta2k/portrait-crop/pkg/types"
)

// ErrNoDetector is returned by NewDetector when no backend is supplied
var ErrNoDetector = errors.New("no face detector backend configured")

// FaceDetector returns zero or more candidate face regions for an image.
// Returning an error means the detector itself failed, not that no face was found.
type FaceDetector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]types.Candidate, error)
}

// FaceDetectorFunc adapts a function to the FaceDetector interface
type FaceDetectorFunc func(ctx context.Context, img image.Image) ([]types.Candidate, error)

// DetectFaces calls f
func (f FaceDetectorFunc) DetectFaces(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	return f(ctx, img)
}

// Detector picks the single face a portrait is anchored on
type Detector struct {
	backend FaceDetector
	logger  *slog.Logger
}

// NewDetector creates a detector around a backend
func NewDetector(backend FaceDetector, logger *slog.Logger) (*Detector, error) {
	if backend == nil {
		return nil, ErrNoDetector
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{backend: backend, logger: logger}, nil
}

// Locate returns the largest detected face, or nil when the image has none.
// A non-nil error means detection failed; backend panics are reported the same way.
func (d *Detector) Locate(ctx context.Context, img image.Image) (face *types.BoundingBox, err error) {
	defer func() {
		if r := recover(); r != nil {
			face = nil
			err = fmt.Errorf("face detector panicked: %v", r)
		}
	}()

	candidates, err := d.backend.DetectFaces(ctx, img)
	if err != nil {
		return nil, err
	}

	best, ok := SelectLargest(candidates)
	d.logger.Debug("face detection", "candidates", len(candidates), "found", ok)
	if !ok {
		return nil, nil
	}
	d.logger.Debug("selected face", "box", best.String(), "area", best.Area())
	return &best, nil
}

// SelectLargest returns the candidate box with the largest area. Boxes without
// a positive width and height are ignored; on equal areas the first one wins.
func SelectLargest(candidates []types.Candidate) (types.BoundingBox, bool) {
	var best types.BoundingBox
	bestArea := 0
	for _, c := range candidates {
		if area := c.Box.Area(); area > bestArea {
			best = c.Box
			bestArea = area
		}
	}
	return best, bestArea > 0
}
