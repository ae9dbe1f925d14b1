package driver

import "time"

// shutdownPollSchedule is the cyclic {1,1,1,25,50,100,500}ms delay table
// named for callers polling Shutdown completion: three fast spins to catch
// a quick finish cheaply, then a widening tail so a stuck iteration doesn't
// get hammered. Unlike the driver's post-panic errBackoff, this sequence is
// fixed and wraps rather than growing monotonically, which is outside what
// github.com/jpillora/backoff's Min/Max/Factor model can express.
type shutdownPollSchedule struct {
	steps []time.Duration
	idx   int
}

func newShutdownPollSchedule() *shutdownPollSchedule {
	return &shutdownPollSchedule{
		steps: []time.Duration{
			time.Millisecond,
			time.Millisecond,
			time.Millisecond,
			25 * time.Millisecond,
			50 * time.Millisecond,
			100 * time.Millisecond,
			500 * time.Millisecond,
		},
	}
}

// Duration returns the next delay in the cycle, wrapping back to the start
// after the last step.
func (s *shutdownPollSchedule) Duration() time.Duration {
	d := s.steps[s.idx%len(s.steps)]
	s.idx++
	return d
}

// Reset restarts the cycle from its first step.
func (s *shutdownPollSchedule) Reset() { s.idx = 0 }
