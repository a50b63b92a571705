package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement is an external binary markad executes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional requirements only degrade a refinement step when missing.
	Optional bool
}

// Status is the result of checking one requirement. Path is the resolved
// executable when Available.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, resolve(req))
	}
	return results
}

func resolve(req Requirement) Status {
	st := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if st.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(st.Command)
	if err != nil {
		st.Detail = fmt.Sprintf("binary %q not found", st.Command)
		return st
	}
	st.Path = path
	st.Available = true
	return st
}

// MissingRequired returns the unavailable statuses that are not optional.
func MissingRequired(statuses []Status) []Status {
	var out []Status
	for _, st := range statuses {
		if !st.Available && !st.Optional {
			out = append(out, st)
		}
	}
	return out
}
