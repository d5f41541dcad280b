package types

// Status is the terminal classification of one file's processing attempt
type Status int

const (
	StatusCropped Status = iota
	StatusNoFaceFound
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCropped:
		return "cropped"
	case StatusNoFaceFound:
		return "no_face"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome pairs a status with an optional reason. Failed outcomes always carry
// a reason; a NoFaceFound outcome carries one only when the detector errored.
type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Cropped returns a successful outcome
func Cropped() Outcome { return Outcome{Status: StatusCropped} }

// NoFaceFound returns a no-face outcome, optionally noting a detector error
func NoFaceFound(reason string) Outcome {
	return Outcome{Status: StatusNoFaceFound, Reason: reason}
}

// Failed returns a failure outcome
func Failed(reason string) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason}
}

// FileJob is one eligible input file and what happened to it
type FileJob struct {
	Path       string       `json:"path"`
	RelPath    string       `json:"rel_path"`
	OutputPath string       `json:"output_path,omitempty"`
	Width      int          `json:"width,omitempty"`
	Height     int          `json:"height,omitempty"`
	Face       *BoundingBox `json:"face,omitempty"`
	Crop       *CropRect    `json:"crop,omitempty"`
	Outcome    Outcome      `json:"outcome"`
}

// Event is emitted once per processed file, or once for batch-level notices
// (empty input, scan failure, cancellation) in which case Job is nil.
type Event struct {
	Line string   `json:"line"`
	Job  *FileJob `json:"job,omitempty"`
}

// ProgressEvent reports how many files of the initial listing are done
type ProgressEvent struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent returns round(Completed/Total*100), clamped to [0,100]
func (p ProgressEvent) Percent() int {
	if p.Total <= 0 {
		return 100
	}
	pct := (p.Completed*200 + p.Total) / (p.Total * 2)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
