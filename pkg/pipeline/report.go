package pipeline

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/menta2k/portrait-crop/pkg/types"
)

// Batch-level log lines
const (
	EmptyInputLine = "No supported images found."
	CompleteBanner = "*** BATCH COMPLETE ***"
)

// FormatLine renders the log line for a finished file
func FormatLine(job *types.FileJob) string {
	name := filepath.Base(job.Path)
	switch job.Outcome.Status {
	case types.StatusCropped:
		return "✅ Success: " + name
	case types.StatusNoFaceFound:
		if job.Outcome.Reason != "" {
			return fmt.Sprintf("❌ No face: %s (detector error: %s)", name, job.Outcome.Reason)
		}
		return "❌ No face: " + name
	default:
		return fmt.Sprintf("⚠️ Error %s: %s", name, job.Outcome.Reason)
	}
}

// Report summarizes one run. It is complete once OnFinished has been called.
type Report struct {
	InputRoot  string          `json:"input_root"`
	OutputRoot string          `json:"output_root"`
	Total      int             `json:"total"`
	Cropped    int             `json:"cropped"`
	NoFace     int             `json:"no_face"`
	Failed     int             `json:"failed"`
	Cancelled  bool            `json:"cancelled"`
	DryRun     bool            `json:"dry_run"`
	Lines      []string        `json:"lines"`
	Jobs       []types.FileJob `json:"jobs"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Processed returns how many files reached an outcome
func (r *Report) Processed() int {
	return r.Cropped + r.NoFace + r.Failed
}

// Duration returns the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns a one-line tally
func (r *Report) Summary() string {
	s := fmt.Sprintf("%d/%d processed: %d cropped, %d without face, %d failed",
		r.Processed(), r.Total, r.Cropped, r.NoFace, r.Failed)
	if r.Cancelled {
		s += " (cancelled)"
	}
	return s
}

func (r *Report) add(job *types.FileJob, line string) {
	switch job.Outcome.Status {
	case types.StatusCropped:
		r.Cropped++
	case types.StatusNoFaceFound:
		r.NoFace++
	default:
		r.Failed++
	}
	r.Lines = append(r.Lines, line)
	r.Jobs = append(r.Jobs, *job)
}
