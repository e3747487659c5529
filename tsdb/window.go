package tsdb

import "time"

// SnapWindow snaps start up and end down to multiples of stepMin minutes,
// ("Boundary times are first snapped to step_minutes
// multiples (start rounded up, end truncated down)").
func SnapWindow(start, end time.Time, stepMin int) (time.Time, time.Time) {
	step := time.Duration(stepMin) * time.Minute
	return ceilTo(start, step), floorTo(end, step)
}

func floorTo(t time.Time, step time.Duration) time.Time {
	u := t.UTC()
	rem := u.Sub(u.Truncate(step))
	return u.Add(-rem)
}

func ceilTo(t time.Time, step time.Duration) time.Time {
	floored := floorTo(t, step)
	if floored.Equal(t.UTC()) {
		return floored
	}
	return floored.Add(step)
}
