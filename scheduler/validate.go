package scheduler

import (
	"fmt"
	"time"
)

// RunParams is the set of inputs a single calculation is validated and
// launched with, historic or realtime.
type RunParams struct {
	Start, End time.Time
	StepMin    int

	RollingWindowValues int
	RollingWindowHours  float64

	OutputStepMin int

	CNNWetDry bool
	CNNTrim   int // N_cnn_trim
}

// ValidateRunParams runs the nine precondition checks a run must pass
// before a calculation may start. It returns the first violated rule's
// message, or "" if every rule holds.
func ValidateRunParams(p RunParams) string {
	if !p.End.After(p.Start) {
		return "end must be after start"
	}
	window := p.End.Sub(p.Start)
	if window < time.Hour {
		return "run window must span at least 1 hour"
	}
	if p.StepMin <= 0 {
		return "step must be positive"
	}
	steps := window.Minutes() / float64(p.StepMin)
	if steps < 12 {
		return "window must contain at least 12 steps"
	}
	if p.RollingWindowValues < 6 {
		return "rolling_window_values must be at least 6"
	}
	if p.RollingWindowHours*3600 > window.Seconds() {
		return "rolling_window_hours must not exceed the run window"
	}
	if p.OutputStepMin < p.StepMin {
		return "output_step must be at least step"
	}
	if p.StepMin > 59 {
		return "step must be at most 59 minutes"
	}
	if p.CNNWetDry && steps <= float64(p.CNNTrim) {
		return fmt.Sprintf("window must contain more than %d steps for CNN wet/dry trimming", p.CNNTrim)
	}
	return ""
}
