package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/menta2k/portrait-crop/internal/utils"
	"github.com/menta2k/portrait-crop/pkg/cropper"
	"github.com/menta2k/portrait-crop/pkg/detection"
	"github.com/menta2k/portrait-crop/pkg/processing"
	"github.com/menta2k/portrait-crop/pkg/types"
)

// ErrRunInProgress is returned when Run or Start is called while a run is active
var ErrRunInProgress = errors.New("a batch run is already in progress")

// DebugDirName is the directory under the output root that receives overlays
const DebugDirName = "_debug"

// Callbacks are the front-end notifications of a run. Any of them may be nil.
// Calls are serialized: no two callbacks run at the same time.
type Callbacks struct {
	OnEvent    func(types.Event)
	OnProgress func(percent int)
	OnFinished func()
}

// Options configures a Pipeline
type Options struct {
	// Workers bounds how many files are processed at once; values below 1 mean 1
	Workers int
	// DryRun computes crops without writing any file
	DryRun bool
	// Overlay writes a debug image per file under <output>/_debug
	Overlay        bool
	OverlayOptions processing.OverlayOptions
	Params         cropper.Params
}

// DefaultOptions returns a sequential, writing pipeline with the portrait geometry
func DefaultOptions() Options {
	return Options{
		Workers:        1,
		OverlayOptions: processing.OverlayOptions{Format: "png", Quality: 90},
		Params:         cropper.DefaultParams(),
	}
}

// Pipeline crops every eligible image under an input root into an output root
type Pipeline struct {
	detector  *detection.Detector
	processor *processing.Processor
	opts      Options
	logger    *slog.Logger
	running   atomic.Bool
}

// New creates a pipeline. A nil processor uses processing defaults and a nil
// logger uses slog.Default.
func New(detector *detection.Detector, processor *processing.Processor, opts Options, logger *slog.Logger) (*Pipeline, error) {
	if detector == nil {
		return nil, detection.ErrNoDetector
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crop parameters: %w", err)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if processor == nil {
		processor = processing.NewProcessor()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{detector: detector, processor: processor, opts: opts, logger: logger}, nil
}

// Start runs the batch on a background goroutine. The returned channel receives
// the report after OnFinished has been called, then is closed.
func (p *Pipeline) Start(ctx context.Context, inputRoot, outputRoot string, cb Callbacks) (<-chan *Report, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}

	done := make(chan *Report, 1)
	go func() {
		report := p.run(ctx, inputRoot, outputRoot, cb)
		p.running.Store(false)
		done <- report
		close(done)
	}()
	return done, nil
}

// Run processes the batch and blocks until OnFinished has been called.
// Per-file failures never abort the batch; they are reported as outcomes.
func (p *Pipeline) Run(ctx context.Context, inputRoot, outputRoot string, cb Callbacks) (*Report, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)
	return p.run(ctx, inputRoot, outputRoot, cb), nil
}

func (p *Pipeline) run(ctx context.Context, inputRoot, outputRoot string, cb Callbacks) *Report {
	r := &run{
		cb: cb,
		report: &Report{
			InputRoot:  inputRoot,
			OutputRoot: outputRoot,
			DryRun:     p.opts.DryRun,
			StartedAt:  time.Now(),
		},
	}
	defer r.finish()

	files, err := utils.ListImageFiles(inputRoot, []string{outputRoot}, func(path string, err error) {
		p.logger.Warn("skipping unreadable path", "path", path, "error", err)
		r.notice(fmt.Sprintf("⚠️ Skipped %s: %v", path, err))
	})
	if err != nil {
		p.logger.Error("scan failed", "input", inputRoot, "error", err)
		r.notice(fmt.Sprintf("⚠️ Error scanning %s: %v", inputRoot, err))
		return r.report
	}
	if len(files) == 0 {
		r.notice(EmptyInputLine)
		return r.report
	}

	r.report.Total = len(files)
	p.logger.Info("batch started", "input", inputRoot, "output", outputRoot,
		"files", len(files), "workers", p.opts.Workers, "dry_run", p.opts.DryRun)

	// A slot is taken before each dispatch and the context is checked again
	// once it is held, so no file starts after cancellation.
	slots := semaphore.NewWeighted(int64(p.opts.Workers))
	var g errgroup.Group
	for _, path := range files {
		if err := slots.Acquire(ctx, 1); err != nil {
			r.report.Cancelled = true
			break
		}
		if ctx.Err() != nil {
			slots.Release(1)
			r.report.Cancelled = true
			break
		}
		g.Go(func() error {
			defer slots.Release(1)
			r.complete(p.processFile(ctx, inputRoot, outputRoot, path))
			return nil
		})
	}
	g.Wait()

	if r.report.Cancelled {
		p.logger.Warn("batch cancelled", "completed", r.completed, "total", r.report.Total)
		r.notice(fmt.Sprintf("Cancelled after %d of %d files.", r.completed, r.report.Total))
	}
	p.logger.Info("batch finished", "cropped", r.report.Cropped, "no_face", r.report.NoFace,
		"failed", r.report.Failed, "elapsed", time.Since(r.report.StartedAt))
	return r.report
}

// processFile takes one file to its outcome. It never panics.
func (p *Pipeline) processFile(ctx context.Context, inputRoot, outputRoot, path string) (job *types.FileJob) {
	job = &types.FileJob{Path: path}
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("panic while processing file", "path", path, "panic", rec)
			job.Outcome = types.Failed(fmt.Sprintf("internal error: %v", rec))
		}
	}()

	rel, out, err := utils.MirrorPath(inputRoot, outputRoot, path)
	if err != nil {
		job.Outcome = types.Failed(err.Error())
		return job
	}
	job.RelPath, job.OutputPath = rel, out

	img, err := p.processor.LoadImage(path)
	if err != nil {
		job.Outcome = types.Failed(err.Error())
		return job
	}
	job.Width, job.Height = processing.Dimensions(img)

	job.Outcome = p.cropFace(ctx, img, job)
	if p.opts.Overlay {
		p.writeOverlay(img, outputRoot, job)
	}
	return job
}

func (p *Pipeline) cropFace(ctx context.Context, img image.Image, job *types.FileJob) types.Outcome {
	face, err := p.detector.Locate(ctx, img)
	if err != nil {
		p.logger.Warn("face detector failed", "path", job.Path, "error", err)
		return types.NoFaceFound(err.Error())
	}
	if face == nil {
		return types.NoFaceFound("")
	}
	job.Face = face

	rect := p.opts.Params.Compute(*face, job.Width, job.Height)
	job.Crop = &rect
	p.logger.Debug("crop computed", "path", job.RelPath, "face", face.String(), "crop", rect.String())

	cropped, err := cropper.Crop(img, rect)
	if err != nil {
		return types.Failed(err.Error())
	}
	if p.opts.DryRun {
		return types.Cropped()
	}

	if err := utils.EnsureDir(filepath.Dir(job.OutputPath)); err != nil {
		return types.Failed(fmt.Sprintf("create output directory: %v", err))
	}
	if err := p.processor.SaveImage(cropped, job.OutputPath); err != nil {
		return types.Failed(err.Error())
	}
	return types.Cropped()
}

// writeOverlay failures are logged and never change the file's outcome
func (p *Pipeline) writeOverlay(img image.Image, outputRoot string, job *types.FileJob) {
	if p.opts.DryRun {
		return
	}
	path := processing.OverlayPath(filepath.Join(outputRoot, DebugDirName), job.RelPath, p.opts.OverlayOptions.Format)
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		p.logger.Warn("overlay directory", "path", path, "error", err)
		return
	}
	overlay := p.processor.CreateDebugOverlay(img, job.Face, job.Crop, job.Outcome.Status.String())
	if err := p.processor.SaveOverlay(overlay, path, p.opts.OverlayOptions); err != nil {
		p.logger.Warn("overlay not written", "path", path, "error", err)
	}
}

// run holds the mutable state of one batch. Its mutex serializes callbacks so
// the completed counter and progress values only ever grow.
type run struct {
	mu        sync.Mutex
	cb        Callbacks
	report    *Report
	completed int
}

func (r *run) complete(job *types.FileJob) {
	line := FormatLine(job)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	r.report.add(job, line)
	if r.cb.OnEvent != nil {
		r.cb.OnEvent(types.Event{Line: line, Job: job})
	}
	if r.cb.OnProgress != nil {
		r.cb.OnProgress(types.ProgressEvent{Completed: r.completed, Total: r.report.Total}.Percent())
	}
}

func (r *run) notice(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Lines = append(r.report.Lines, line)
	if r.cb.OnEvent != nil {
		r.cb.OnEvent(types.Event{Line: line})
	}
}

func (r *run) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.FinishedAt = time.Now()
	if r.cb.OnFinished != nil {
		r.cb.OnFinished()
	}
}
