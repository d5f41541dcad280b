// Package portraitcrop turns photos into face-anchored 3:4 portraits.
//
// A face detector locates the largest face in each image, the crop geometry
// expands that face box into a portrait rectangle with headroom above it, and
// the batch pipeline applies the crop to every PNG or JPEG under an input
// directory, mirroring the directory tree into an output directory.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		portraitcrop "github.com/menta2k/portrait-crop"
//		"github.com/menta2k/portrait-crop/pkg/facefinder"
//		"github.com/menta2k/portrait-crop/pkg/pipeline"
//	)
//
//	func main() {
//		cfg := facefinder.DefaultConfig()
//		cfg.CascadePath = "cascade/facefinder"
//		backend, err := facefinder.New(cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		pc, err := portraitcrop.New(backend, portraitcrop.DefaultOptions(), nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		report, err := pc.Run(context.Background(), "photos", "portraits", pipeline.Callbacks{})
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Println(report.Summary())
//	}
//
// The package consists of these components:
//
// 1. Cropper (pkg/cropper): the crop geometry and its application
// 2. Detection (pkg/detection): the face detector contract and largest-face selection
// 3. Facefinder, Ollama, llama.cpp (pkg/facefinder, pkg/ollama, pkg/llamacpp): detector backends
// 4. Processing (pkg/processing): decoding, encoding and debug overlays
// 5. Pipeline (pkg/pipeline): the batch run with progress and per-file outcomes
package portraitcrop

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/menta2k/portrait-crop/internal/config"
	"github.com/menta2k/portrait-crop/pkg/cropper"
	"github.com/menta2k/portrait-crop/pkg/detection"
	"github.com/menta2k/portrait-crop/pkg/facefinder"
	"github.com/menta2k/portrait-crop/pkg/llamacpp"
	"github.com/menta2k/portrait-crop/pkg/ollama"
	"github.com/menta2k/portrait-crop/pkg/pipeline"
	"github.com/menta2k/portrait-crop/pkg/processing"
	"github.com/menta2k/portrait-crop/pkg/types"
)

// Version of the portrait cropper
const Version = "1.0.0"

// Options configures a PortraitCropper built around an existing detector
type Options struct {
	Pipeline    pipeline.Options
	JPEGQuality int
	AutoOrient  bool
}

// DefaultOptions returns the standard portrait settings
func DefaultOptions() Options {
	return Options{
		Pipeline:    pipeline.DefaultOptions(),
		JPEGQuality: 90,
		AutoOrient:  true,
	}
}

// PortraitCropper provides a high-level interface for face-anchored cropping
type PortraitCropper struct {
	processor *processing.Processor
	detector  *detection.Detector
	pipeline  *pipeline.Pipeline
	params    cropper.Params
	logger    *slog.Logger
}

// New creates a PortraitCropper around a face detector backend
func New(backend detection.FaceDetector, opts Options, logger *slog.Logger) (*PortraitCropper, error) {
	return newWithProcessor(backend, newProcessor(opts), opts, logger)
}

// NewFromConfig validates cfg, builds the configured detector backend and
// wires it into a PortraitCropper. The backend and the pipeline share one
// processor.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*PortraitCropper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts := OptionsFromConfig(cfg)
	processor := newProcessor(opts)
	backend, err := BuildDetector(cfg.Detector, processor)
	if err != nil {
		return nil, err
	}

	return newWithProcessor(backend, processor, opts, logger)
}

func newProcessor(opts Options) *processing.Processor {
	return processing.NewProcessor(
		processing.WithAutoOrientation(opts.AutoOrient),
		processing.WithJPEGQuality(opts.JPEGQuality),
	)
}

func newWithProcessor(backend detection.FaceDetector, processor *processing.Processor, opts Options, logger *slog.Logger) (*PortraitCropper, error) {
	if logger == nil {
		logger = slog.Default()
	}

	detector, err := detection.NewDetector(backend, logger)
	if err != nil {
		return nil, err
	}

	p, err := pipeline.New(detector, processor, opts.Pipeline, logger)
	if err != nil {
		return nil, err
	}

	return &PortraitCropper{
		processor: processor,
		detector:  detector,
		pipeline:  p,
		params:    opts.Pipeline.Params,
		logger:    logger,
	}, nil
}

// OptionsFromConfig maps the file configuration onto Options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Pipeline: pipeline.Options{
			Workers: cfg.Pipeline.Workers,
			DryRun:  cfg.Output.DryRun,
			Overlay: cfg.Output.Overlay,
			OverlayOptions: processing.OverlayOptions{
				Format:  cfg.Output.OverlayFormat,
				Quality: cfg.Output.OverlayQuality,
			},
			Params: cfg.Crop,
		},
		JPEGQuality: cfg.Output.JPEGQuality,
		AutoOrient:  cfg.Output.AutoOrient,
	}
}

// BuildDetector constructs the face detector backend named in cfg
func BuildDetector(cfg config.DetectorConfig, processor *processing.Processor) (detection.FaceDetector, error) {
	switch cfg.Backend {
	case config.BackendPigo:
		d, err := facefinder.New(cfg.Pigo)
		if err != nil {
			return nil, fmt.Errorf("pigo detector: %w", err)
		}
		return d, nil

	case config.BackendOllama:
		c, err := ollama.NewClient(cfg.Vision.URL)
		if err != nil {
			return nil, fmt.Errorf("ollama detector: %w", err)
		}
		return detection.NewVisionDetector(c, processor, visionConfig(cfg.Vision)), nil

	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.Vision.URL)
		if err != nil {
			return nil, fmt.Errorf("llama.cpp detector: %w", err)
		}
		return detection.NewVisionDetector(c, processor, visionConfig(cfg.Vision)), nil
	}
	return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
}

func visionConfig(v config.VisionConfig) detection.VisionConfig {
	return detection.VisionConfig{
		Model:         v.Model,
		SendFormat:    v.SendFormat,
		SendSize:      v.SendSize,
		SendQuality:   v.SendQuality,
		MinConfidence: v.MinConfidence,
	}
}

// LoadImage loads an image from file
func (pc *PortraitCropper) LoadImage(path string) (image.Image, error) {
	return pc.processor.LoadImage(path)
}

// SaveImage saves an image, choosing the encoder from the path's extension
func (pc *PortraitCropper) SaveImage(img image.Image, path string) error {
	return pc.processor.SaveImage(img, path)
}

// ComputeCrop returns the portrait rectangle for a face box
func (pc *PortraitCropper) ComputeCrop(face types.BoundingBox, imgW, imgH int) types.CropRect {
	return pc.params.Compute(face, imgW, imgH)
}

// LocateFace returns the largest face in img, or nil when there is none
func (pc *PortraitCropper) LocateFace(ctx context.Context, img image.Image) (*types.BoundingBox, error) {
	return pc.detector.Locate(ctx, img)
}

// CropPortrait detects the face in img and returns the cropped portrait.
// The returned image is nil when no face was found.
func (pc *PortraitCropper) CropPortrait(ctx context.Context, img image.Image) (image.Image, *types.CropRect, error) {
	face, err := pc.LocateFace(ctx, img)
	if err != nil {
		return nil, nil, fmt.Errorf("face detection failed: %w", err)
	}
	if face == nil {
		return nil, nil, nil
	}

	w, h := processing.Dimensions(img)
	rect := pc.ComputeCrop(*face, w, h)
	cropped, err := cropper.Crop(img, rect)
	if err != nil {
		return nil, &rect, err
	}
	return cropped, &rect, nil
}

// Run crops every eligible image under inputRoot into outputRoot
func (pc *PortraitCropper) Run(ctx context.Context, inputRoot, outputRoot string, cb pipeline.Callbacks) (*pipeline.Report, error) {
	return pc.pipeline.Run(ctx, inputRoot, outputRoot, cb)
}

// Start runs the batch in the background; see pipeline.Pipeline.Start
func (pc *PortraitCropper) Start(ctx context.Context, inputRoot, outputRoot string, cb pipeline.Callbacks) (<-chan *pipeline.Report, error) {
	return pc.pipeline.Start(ctx, inputRoot, outputRoot, cb)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
