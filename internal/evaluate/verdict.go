package evaluate

// Verdict is a tri-state classification result.
type Verdict int

const (
	Unknown Verdict = iota
	No
	Yes
)

func (v Verdict) String() string {
	switch v {
	case No:
		return "no"
	case Yes:
		return "yes"
	default:
		return "unknown"
	}
}
