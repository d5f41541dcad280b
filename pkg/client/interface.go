package client

import (
	"context"
	"strings"

	"github.com/menta2k/portrait-crop/pkg/types"
)

// FaceRequest is one image sent to a vision model for face location
type FaceRequest struct {
	Model  string
	Prompt string
	// Image holds the base64 encoded payload
	Image string
	// Format is the encoding of Image, "png" or "jpg"
	Format string
}

// MIMEType returns the media type matching the request's image format
func (r FaceRequest) MIMEType() string {
	switch strings.ToLower(strings.TrimPrefix(r.Format, ".")) {
	case "png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}

// DataURI returns the image as a data URI for OpenAI style content parts
func (r FaceRequest) DataURI() string {
	return "data:" + r.MIMEType() + ";base64," + r.Image
}

// VisionClient sends an image to a vision model and returns the faces it located
type VisionClient interface {
	LocateFaces(ctx context.Context, req FaceRequest) (*types.FaceAnalysis, error)
}
