package marks

import (
	"fmt"
	"strings"
	"time"
)

// Class identifies the signal a mark came from. Values are ordered by
// strength: a later class outranks an earlier one.
type Class int

const (
	ClassAssumed Class = iota + 1
	ClassScene
	ClassBlack
	ClassLogo
	ClassVBorder
	ClassHBorder
	ClassAspect
	ClassAudioChannel
	ClassOverlap
	ClassRecording
)

var classNames = map[Class]string{
	ClassAssumed:      "assumed",
	ClassScene:        "scene",
	ClassBlack:        "black",
	ClassLogo:         "logo",
	ClassVBorder:      "vborder",
	ClassHBorder:      "hborder",
	ClassAspect:       "aspect",
	ClassAudioChannel: "channel",
	ClassOverlap:      "overlap",
	ClassRecording:    "recording",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Strength ranks classes; higher wins conflicts.
func (c Class) Strength() int { return int(c) }

// ParseClass maps a class name back to its value.
func ParseClass(name string) (Class, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range classNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Kind is the boundary direction of a mark.
type Kind int

const (
	Start Kind = iota + 1
	Stop
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Opposite returns the other kind.
func (k Kind) Opposite() Kind {
	if k == Start {
		return Stop
	}
	return Start
}

// Type combines the signal class with the boundary kind.
type Type struct {
	Class Class
	Kind  Kind
}

func (t Type) String() string { return t.Kind.String() + " " + t.Class.String() }

// Label returns comment led by t, replacing a leading "<kind> <class>" that
// names another type.
func (t Type) Label(comment string) string {
	comment = strings.TrimSpace(comment)
	kind, rest, _ := strings.Cut(comment, " ")
	class, tail, _ := strings.Cut(strings.TrimSpace(rest), " ")
	if kind == Start.String() || kind == Stop.String() {
		if _, ok := ParseClass(class); ok {
			comment = strings.TrimSpace(tail)
		}
	}
	if comment == "" {
		return t.String()
	}
	return t.String() + " " + comment
}

// Strength is derived from the class only.
func (t Type) Strength() int { return t.Class.Strength() }

// Move records where a mark came from before it was moved or reclassified.
type Move struct {
	OldType     Type
	OldPosition int
	Reason      string
}

// Mark is one boundary candidate.
type Mark struct {
	Type        Type
	Position    int
	Timestamp   time.Duration
	InBroadcast bool
	Comment     string
	// Confirmed pins an accepted boundary; alternation repair never removes it.
	Confirmed bool
	History   *Move
}

func (m *Mark) IsStart() bool { return m.Type.Kind == Start }

func (m *Mark) IsStop() bool { return m.Type.Kind == Stop }

func (m *Mark) String() string {
	return fmt.Sprintf("%s@%d", m.Type, m.Position)
}

// Match selects marks during traversal.
type Match func(*Mark) bool

// Any matches every mark.
func Any(*Mark) bool { return true }

// OfType matches marks of exactly t.
func OfType(t Type) Match {
	return func(m *Mark) bool { return m.Type == t }
}

// OfClass matches marks of class c.
func OfClass(c Class) Match {
	return func(m *Mark) bool { return m.Type.Class == c }
}

// OfKind matches starts or stops.
func OfKind(k Kind) Match {
	return func(m *Mark) bool { return m.Type.Kind == k }
}

// And combines predicates.
func (f Match) And(g Match) Match {
	return func(m *Mark) bool { return f(m) && g(m) }
}

// Not negates a predicate.
func Not(f Match) Match {
	return func(m *Mark) bool { return !f(m) }
}
