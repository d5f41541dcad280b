package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	portraitcrop "github.com/menta2k/portrait-crop"
	"github.com/menta2k/portrait-crop/internal/config"
	"github.com/menta2k/portrait-crop/internal/store"
	"github.com/menta2k/portrait-crop/pkg/facefinder"
	"github.com/menta2k/portrait-crop/pkg/pipeline"
	"github.com/menta2k/portrait-crop/pkg/types"
)

type cropFlags struct {
	workers       int
	backend       string
	cascade       string
	model         string
	url           string
	quality       int
	overlay       bool
	overlayFormat string
	dryRun        bool
	noProgress    bool
}

func newCropCmd(a *app) *cobra.Command {
	f := &cropFlags{}

	cmd := &cobra.Command{
		Use:   "crop <input-dir> <output-dir>",
		Short: "Crop every PNG/JPEG under input-dir into output-dir",
		Long: "Finds the largest face in every .png, .jpg and .jpeg file under input-dir, " +
			"crops a 3:4 portrait around it and writes it to the same relative path under output-dir.\n\n" +
			"The default pigo backend needs the facefinder cascade file: " + facefinder.CascadeHint + ".",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, a.cfg)
			return runCrop(cmd.Context(), a, args[0], args[1], !f.noProgress, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&f.workers, "workers", "w", 1, "files processed concurrently")
	flags.StringVar(&f.backend, "backend", "", "face detector: pigo|ollama|llamacpp")
	flags.StringVar(&f.cascade, "cascade", "", "pigo facefinder cascade file")
	flags.StringVar(&f.model, "model", "", "vision model name")
	flags.StringVar(&f.url, "url", "", "vision server URL")
	flags.IntVar(&f.quality, "quality", 0, "JPEG output quality (1-100)")
	flags.BoolVar(&f.overlay, "overlay", false, "write debug overlays under <output-dir>/"+pipeline.DebugDirName)
	flags.StringVar(&f.overlayFormat, "overlay-format", "", "debug overlay format: png|jpg|webp")
	flags.BoolVar(&f.dryRun, "dry-run", false, "detect and compute crops without writing files")
	flags.BoolVar(&f.noProgress, "no-progress", false, "disable the progress bar")
	return cmd
}

// apply copies explicitly set flags over the loaded configuration
func (f *cropFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Pipeline.Workers = f.workers
	}
	if flags.Changed("backend") {
		cfg.Detector.Backend = f.backend
	}
	if flags.Changed("cascade") {
		cfg.Detector.Pigo.CascadePath = f.cascade
	}
	if flags.Changed("model") {
		cfg.Detector.Vision.Model = f.model
	}
	if flags.Changed("url") {
		cfg.Detector.Vision.URL = f.url
	}
	if flags.Changed("quality") {
		cfg.Output.JPEGQuality = f.quality
	}
	if flags.Changed("overlay") {
		cfg.Output.Overlay = f.overlay
	}
	if flags.Changed("overlay-format") {
		cfg.Output.OverlayFormat = f.overlayFormat
	}
	if flags.Changed("dry-run") {
		cfg.Output.DryRun = f.dryRun
	}
}

func runCrop(ctx context.Context, a *app, inputDir, outputDir string, showProgress bool, out io.Writer) error {
	pc, err := portraitcrop.NewFromConfig(a.cfg, a.logger)
	if err != nil {
		return err
	}

	history, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	var runID int64
	if history != nil {
		defer history.Close(context.Background())
		if runID, err = history.BeginRun(ctx, inputDir, outputDir, a.cfg.Output.DryRun); err != nil {
			a.logger.Warn("run history disabled", "error", err)
			history = nil
		}
	}

	fmt.Fprintln(out, headerStyle.Render("portrait-crop "+portraitcrop.Version))

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetDescription("Cropping"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	cb := pipeline.Callbacks{
		OnEvent: func(e types.Event) {
			if bar != nil {
				bar.Clear()
			}
			fmt.Fprintln(out, styleEvent(e))
			if history != nil && e.Job != nil {
				if err := history.RecordFile(ctx, runID, e.Job); err != nil {
					a.logger.Warn("failed to record file", "path", e.Job.RelPath, "error", err)
				}
			}
		},
		OnProgress: func(percent int) {
			if bar != nil {
				bar.Set(percent)
			}
		},
		OnFinished: func() {
			if bar != nil {
				bar.Finish()
			}
			fmt.Fprintln(out, bannerStyle.Render(pipeline.CompleteBanner))
		},
	}

	report, err := pc.Run(ctx, inputDir, outputDir, cb)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, infoStyle.Render(fmt.Sprintf("%s in %s", report.Summary(), report.Duration().Round(time.Millisecond))))

	if history != nil {
		// the command context may already be cancelled by Ctrl+C
		if err := history.FinishRun(context.Background(), runID, totals(report)); err != nil {
			a.logger.Warn("failed to finish run record", "run", runID, "error", err)
		}
	}
	return nil
}

func totals(r *pipeline.Report) store.Totals {
	return store.Totals{
		Total:     r.Total,
		Cropped:   r.Cropped,
		NoFace:    r.NoFace,
		Failed:    r.Failed,
		Cancelled: r.Cancelled,
	}
}
