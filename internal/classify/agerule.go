package classify

import "time"

// AgeRule decides whether a thread is old enough to be labeled history
// without consulting the model. The threshold is expressed in whole days
// and is compared against the thread's most recent message.
type AgeRule struct {
	ThresholdDays int
}

// IsHistory reports whether latest is at least ThresholdDays old relative
// to now. Both timestamps are normalized to UTC before comparison; a zero
// latest timestamp is never considered history. The comparison truncates
// to whole days, so a thread aged exactly ThresholdDays is history (>=).
func (r AgeRule) IsHistory(latest, now time.Time) bool {
	if latest.IsZero() {
		return false
	}
	age := now.UTC().Sub(latest.UTC())
	days := int(age.Hours() / 24)
	return days >= r.ThresholdDays
}
