// Package tracking decides whether scheduled collection may run.
package tracking

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// StartLayout is the format of a configured tracking start instant.
const StartLayout = "2006-01-02 15:04"

// formLayout is what an HTML datetime-local input submits.
const formLayout = "2006-01-02T15:04"

// Status is the outcome of evaluating the tracking window.
type Status struct {
	Active bool      `json:"active"`
	Start  time.Time `json:"start,omitzero"`
	Reason string    `json:"reason,omitempty"`
	// Err is set when the configured start could not be parsed.
	Err error `json:"-"`
}

// ParseStart parses a tracking start instant in loc (nil = time.Local).
// Both "YYYY-MM-DD HH:MM" and the "YYYY-MM-DDTHH:MM" form are accepted.
func ParseStart(start string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(start)
	if ts, err := time.ParseInLocation(StartLayout, s, loc); err == nil {
		return ts, nil
	}
	ts, err := time.ParseInLocation(formLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("tracking start %q is not in %q format", start, StartLayout)
	}
	return ts, nil
}

// Evaluate reports whether collection is permitted at now: the start must be
// present, parseable and not in the future. A bad start is inactive, never an error.
func Evaluate(start string, now time.Time) Status {
	if strings.TrimSpace(start) == "" {
		return Status{Reason: "tracking start is not configured"}
	}
	ts, err := ParseStart(start, now.Location())
	if err != nil {
		return Status{Reason: "tracking start is malformed", Err: err}
	}
	if now.Before(ts) {
		return Status{Start: ts, Reason: "tracking has not started yet"}
	}
	return Status{Active: true, Start: ts}
}

// IsActive is Evaluate reduced to a bool. Parse problems are logged.
func IsActive(start string, now time.Time) bool {
	st := Evaluate(start, now)
	if st.Err != nil {
		log.Printf("tracking: %v; treating tracking as inactive", st.Err)
	}
	return st.Active
}
