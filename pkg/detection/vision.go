package detection

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/portrait-crop/pkg/client"
	"github.com/menta2k/portrait-crop/pkg/processing"
	"github.com/menta2k/portrait-crop/pkg/types"
)

// VisionConfig controls how images are sent to a vision model
type VisionConfig struct {
	Model         string
	Prompt        string
	SendFormat    string
	SendSize      int
	SendQuality   int
	MinConfidence float64
}

// VisionDetector locates faces by asking a vision model
type VisionDetector struct {
	client    client.VisionClient
	processor *processing.Processor
	config    VisionConfig
}

// NewVisionDetector creates a FaceDetector backed by a vision model client
func NewVisionDetector(c client.VisionClient, processor *processing.Processor, config VisionConfig) *VisionDetector {
	if config.Prompt == "" {
		config.Prompt = client.FacePrompt
	}
	if processor == nil {
		processor = processing.NewProcessor()
	}
	return &VisionDetector{client: c, processor: processor, config: config}
}

// DetectFaces sends a downsized copy of img to the model and converts the
// normalized boxes it returns into pixel boxes on the original image
func (v *VisionDetector) DetectFaces(ctx context.Context, img image.Image) ([]types.Candidate, error) {
	imgB64, err := v.processor.PrepareImageForModel(img, v.config.SendFormat, v.config.SendSize, v.config.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("prepare image for model: %w", err)
	}

	result, err := v.client.LocateFaces(ctx, client.FaceRequest{
		Model:  v.config.Model,
		Prompt: v.config.Prompt,
		Image:  imgB64,
		Format: v.config.SendFormat,
	})
	if err != nil {
		return nil, err
	}

	imgW, imgH := processing.Dimensions(img)
	candidates := make([]types.Candidate, 0, len(result.Faces))
	for _, f := range result.Faces {
		if f.Confidence < v.config.MinConfidence {
			continue
		}
		candidates = append(candidates, types.Candidate{
			Box:        f.Box.ToPixels(imgW, imgH),
			Confidence: f.Confidence,
		})
	}
	return candidates, nil
}
