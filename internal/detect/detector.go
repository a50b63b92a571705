package detect

import (
	"fmt"

	"markad/internal/marks"
	"markad/internal/media/frame"
)

// Event is one detected transition.
type Event struct {
	Class  marks.Class
	Kind   marks.Kind
	Frame  int
	Detail string
}

func (e Event) String() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s@%d", e.Kind, e.Class, e.Frame)
	}
	return fmt.Sprintf("%s %s@%d (%s)", e.Kind, e.Class, e.Frame, e.Detail)
}

// Detector inspects frames for one signal class.
type Detector interface {
	Class() marks.Class
	// Detect returns an event when f completes a transition.
	Detect(f *frame.Frame) (Event, bool)
	// Reset forgets all state, e.g. after a seek.
	Reset()
}

// Status is the visibility state of a signal.
type Status int

const (
	StatusUninitialized Status = iota
	StatusVisible
	StatusInvisible
)

func (s Status) String() string {
	switch s {
	case StatusVisible:
		return "visible"
	case StatusInvisible:
		return "invisible"
	default:
		return "uninitialized"
	}
}
