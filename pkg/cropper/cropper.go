package cropper

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/portrait-crop/pkg/types"
)

// ErrCropOutOfBounds is returned when a crop rectangle does not fit inside the image
var ErrCropOutOfBounds = errors.New("crop rectangle exceeds image bounds")

// AspectRatio represents a width:height ratio
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Ratio returns width divided by height
func (a AspectRatio) Ratio() float64 {
	return float64(a.Width) / float64(a.Height)
}

// Portrait is the 3:4 output ratio
var Portrait = AspectRatio{3, 4, "portrait"}

const (
	// DefaultVerticalExpansion is the crop height relative to the face height
	DefaultVerticalExpansion = 1.8
	// DefaultHorizontalPadding is the minimum crop width relative to the face width
	DefaultHorizontalPadding = 1.1
	// DefaultVerticalAnchor is the fraction of crop height above the face's top edge
	DefaultVerticalAnchor = 0.23
)

// Params holds the constants of the face-anchored crop geometry
type Params struct {
	AspectRatio       float64 `json:"aspect_ratio"`
	VerticalExpansion float64 `json:"vertical_expansion"`
	HorizontalPadding float64 `json:"horizontal_padding"`
	VerticalAnchor    float64 `json:"vertical_anchor"`
}

// DefaultParams returns the standard 3:4 portrait geometry
func DefaultParams() Params {
	return Params{
		AspectRatio:       Portrait.Ratio(),
		VerticalExpansion: DefaultVerticalExpansion,
		HorizontalPadding: DefaultHorizontalPadding,
		VerticalAnchor:    DefaultVerticalAnchor,
	}
}

// Validate checks that every factor is usable
func (p Params) Validate() error {
	if p.AspectRatio <= 0 {
		return fmt.Errorf("aspect ratio must be positive, got %v", p.AspectRatio)
	}
	if p.VerticalExpansion <= 0 {
		return fmt.Errorf("vertical expansion must be positive, got %v", p.VerticalExpansion)
	}
	if p.HorizontalPadding <= 0 {
		return fmt.Errorf("horizontal padding must be positive, got %v", p.HorizontalPadding)
	}
	if p.VerticalAnchor < 0 || p.VerticalAnchor >= 1 {
		return fmt.Errorf("vertical anchor must be in [0,1), got %v", p.VerticalAnchor)
	}
	return nil
}

// ComputeCrop maps a face box and image size to a portrait crop using DefaultParams
func ComputeCrop(face types.BoundingBox, imgW, imgH int) types.CropRect {
	return DefaultParams().Compute(face, imgW, imgH)
}

// Compute maps a face box and image size to a crop rectangle.
//
// The crop height is the face height scaled by VerticalExpansion and the width
// follows from AspectRatio. When that width would be narrower than the padded
// face, the crop is recomputed from the padded face width instead. The face's
// top edge sits VerticalAnchor of the crop height below the crop's top, and the
// crop is centered horizontally on the face. The origin is then clamped into
// the image; if the crop is larger than the image the clamp range is empty and
// the result extends past the image, which Crop reports as ErrCropOutOfBounds.
func (p Params) Compute(face types.BoundingBox, imgW, imgH int) types.CropRect {
	faceW := float64(face.Width())
	faceH := float64(face.Height())

	cropH := round(faceH * p.VerticalExpansion)
	cropW := round(float64(cropH) * p.AspectRatio)

	if float64(cropW) < faceW*p.HorizontalPadding {
		cropW = round(faceW * p.HorizontalPadding)
		cropH = round(float64(cropW) / p.AspectRatio)
	}

	y0 := round(float64(face.Y0) - float64(cropH)*p.VerticalAnchor)
	x0 := round(float64(face.X0+face.X1)/2 - float64(cropW)/2)

	x0 = clamp(x0, 0, imgW-cropW)
	y0 = clamp(y0, 0, imgH-cropH)

	return types.CropRect{X0: x0, Y0: y0, X1: x0 + cropW, Y1: y0 + cropH}
}

// Crop extracts rect from img. The rectangle is interpreted relative to the
// image origin and must lie fully inside the image.
func Crop(img image.Image, rect types.CropRect) (image.Image, error) {
	bounds := img.Bounds()
	if !rect.Within(bounds.Dx(), bounds.Dy()) {
		return nil, fmt.Errorf("%w: crop %s, image %dx%d", ErrCropOutOfBounds, rect, bounds.Dx(), bounds.Dy())
	}
	return imaging.Crop(img, rect.Rect().Add(bounds.Min)), nil
}

func round(v float64) int {
	return int(math.Round(v))
}

// clamp applies max(lo, min(v, hi)); when hi < lo the result is lo.
func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
