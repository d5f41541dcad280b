package types

import (
	"fmt"
	"image"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ToPixels converts a normalized box into a pixel bounding box for an image of the given size
func (b Box) ToPixels(imgW, imgH int) BoundingBox {
	x0 := int(clamp(b.X, 0, 1)*float64(imgW) + 0.5)
	y0 := int(clamp(b.Y, 0, 1)*float64(imgH) + 0.5)
	x1 := int(clamp(b.X+b.W, 0, 1)*float64(imgW) + 0.5)
	y1 := int(clamp(b.Y+b.H, 0, 1)*float64(imgH) + 0.5)
	return BoundingBox{X0: x0, Y0: y0, X1: x1, Y1: y1}
}

// BoundingBox is a detected face rectangle in source-image pixel coordinates.
// A usable box has X1 > X0 and Y1 > Y0.
type BoundingBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Width returns the horizontal extent of the box
func (b BoundingBox) Width() int { return b.X1 - b.X0 }

// Height returns the vertical extent of the box
func (b BoundingBox) Height() int { return b.Y1 - b.Y0 }

// Area returns the box area, or 0 for degenerate boxes
func (b BoundingBox) Area() int {
	if !b.Valid() {
		return 0
	}
	return b.Width() * b.Height()
}

// Valid reports whether the box has a positive width and height
func (b BoundingBox) Valid() bool {
	return b.X1 > b.X0 && b.Y1 > b.Y0
}

// Rect returns the box as an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X0, b.Y0, b.X1, b.Y1)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", b.X0, b.Y0, b.X1, b.Y1)
}

// CropRect is the rectangle extracted from the source image and saved as output
type CropRect struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Width returns the crop width
func (c CropRect) Width() int { return c.X1 - c.X0 }

// Height returns the crop height
func (c CropRect) Height() int { return c.Y1 - c.Y0 }

// Rect returns the crop as an image.Rectangle
func (c CropRect) Rect() image.Rectangle {
	return image.Rect(c.X0, c.Y0, c.X1, c.Y1)
}

// Within reports whether the crop lies entirely inside [0,imgW] x [0,imgH]
func (c CropRect) Within(imgW, imgH int) bool {
	return c.X0 >= 0 && c.Y0 >= 0 && c.X1 <= imgW && c.Y1 <= imgH && c.X1 > c.X0 && c.Y1 > c.Y0
}

func (c CropRect) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", c.X0, c.Y0, c.X1, c.Y1)
}

// Candidate is one face region reported by a detector
type Candidate struct {
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ModelFace is one face reported by a vision model in normalized coordinates
type ModelFace struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// FaceAnalysis is the JSON document a vision model returns for face location
type FaceAnalysis struct {
	Faces []ModelFace `json:"faces"`
}
