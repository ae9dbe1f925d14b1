package driver

import "time"

// nextTarget computes the next cycle-boundary target time for a period of
// periodSeconds, from wall-clock time now. Boundaries align to the minute
// so every driver in the process (and every restart of the same driver)
// lands on the same slots, rather than drifting based on when it happened
// to start.
func nextTarget(now time.Time, periodSeconds int) time.Time {
	now = now.UTC()
	var target time.Time
	if periodSeconds < 60 {
		slotSec := (now.Second() / periodSeconds) * periodSeconds
		target = now.Truncate(time.Minute).Add(time.Duration(slotSec) * time.Second).Add(time.Duration(periodSeconds) * time.Second)
	} else {
		target = now.Truncate(time.Minute).Add(time.Duration(periodSeconds) * time.Second)
	}

	if interval := target.Sub(now); interval <= minReasonableInterval(periodSeconds) {
		target = target.Add(time.Duration(periodSeconds) * time.Second)
	}
	return target
}

// minReasonableInterval is the "too short" threshold: below it, producers
// wouldn't get a reasonable window before the next cycle fires, so the
// driver skips ahead by one more period.
func minReasonableInterval(periodSeconds int) time.Duration {
	switch {
	case periodSeconds <= 5:
		return 1 * time.Second
	case periodSeconds <= 10:
		return 2 * time.Second
	case periodSeconds <= 60:
		return 5 * time.Second
	default:
		return 15 * time.Second
	}
}

// roundedCycleStart decides what timestamp to publish for a cycle: if the
// worker woke close enough to its target (within 1500ms of scheduler
// jitter), publish the target itself so consecutive cycles stay exactly
// periodSeconds apart; otherwise publish the actual wake time rounded down
// to the second, since the drift is too large to paper over.
func roundedCycleStart(target, actual time.Time) time.Time {
	diff := actual.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	if diff <= 1500*time.Millisecond {
		return target
	}
	return actual.Truncate(time.Second)
}
