package history

import (
	"time"

	"markad/internal/marks"
)

// Status is the outcome of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusReview    Status = "review"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// PassTiming summarises one refinement pass.
type PassTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Marks    int           `json:"marks"`
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Mark is a final mark as recorded for a run.
type Mark struct {
	Position int
	Kind     string
	Class    string
	Comment  string
	// OldClass and OldPosition are set for marks that were moved.
	OldClass    string
	OldPosition int
}

// Moved reports whether the mark carries a move origin.
func (m Mark) Moved() bool { return m.OldClass != "" }

// Run is one analysis of a recording.
type Run struct {
	ID           string
	Recording    string
	Channel      string
	Status       Status
	ErrorMessage string
	FrameRate    float64
	Frames       int
	Passes       []PassTiming
	StartedAt    time.Time
	FinishedAt   time.Time
	Marks        []Mark
}

// Duration returns the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FromMarks converts a mark sequence for recording.
func FromMarks(ms []*marks.Mark) []Mark {
	out := make([]Mark, 0, len(ms))
	for _, m := range ms {
		hm := Mark{
			Position: m.Position,
			Kind:     m.Type.Kind.String(),
			Class:    m.Type.Class.String(),
			Comment:  m.Comment,
		}
		if m.History != nil {
			hm.OldClass = m.History.OldType.Class.String()
			hm.OldPosition = m.History.OldPosition
		}
		out = append(out, hm)
	}
	return out
}
