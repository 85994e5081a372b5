package audio

import (
	"fmt"
	"time"
)

// State is the scheduler's cursor: the absolute time the next chunk
// should start. The zero value means no chunk is in flight.
type State struct {
	NextStart time.Time
}

// Idle reports whether nothing is scheduled.
func (s State) Idle() bool { return s.NextStart.IsZero() }

// Outcome classifies what Place decided to do with a chunk.
type Outcome int

const (
	// Scheduled means the chunk was appended seamlessly after the
	// previous one.
	Scheduled Outcome = iota
	// WarmupStarted means this is the first chunk of a stream and
	// playback begins after the buffer latency.
	WarmupStarted
	// Underrun means the cursor fell behind the clock. The chunk is
	// dropped and the stream restarts from idle.
	Underrun
)

func (o Outcome) String() string {
	switch o {
	case Scheduled:
		return "scheduled"
	case WarmupStarted:
		return "warmup"
	case Underrun:
		return "underrun"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Placement describes where a chunk landed.
type Placement struct {
	Outcome Outcome
	// StartAt is when the chunk begins playing. Zero on underrun.
	StartAt time.Time
}

// Place decides where a chunk of the given duration goes. From idle the
// chunk starts one latency window in the future, building headroom
// against network jitter. Otherwise it starts exactly when the previous
// chunk ends, unless that moment has already passed, in which case the
// chunk is dropped and the state resets so the next one re-enters
// warm-up.
func Place(s State, now time.Time, latency, duration time.Duration) (State, Placement) {
	if s.Idle() {
		start := now.Add(latency)
		return State{NextStart: start.Add(duration)}, Placement{
			Outcome: WarmupStarted,
			StartAt: start,
		}
	}
	if s.NextStart.Before(now) {
		return State{}, Placement{Outcome: Underrun}
	}
	start := s.NextStart
	return State{NextStart: start.Add(duration)}, Placement{
		Outcome: Scheduled,
		StartAt: start,
	}
}

// Scheduler feeds decoded chunks into a sink back to back. Callers must
// not invoke Schedule concurrently; the session loop is the only caller.
type Scheduler struct {
	latency time.Duration
	decode  DecodeFunc
	now     func() time.Time
	state   State
}

// NewScheduler builds a scheduler with the given warm-up latency. A nil
// clock defaults to time.Now.
func NewScheduler(latency time.Duration, decode DecodeFunc, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{latency: latency, decode: decode, now: now}
}

// Schedule decodes a raw chunk and hands it to the sink at the right
// moment. On underrun the chunk is dropped, the cursor resets, and the
// placement reports it so the caller can rebuffer. A decode or sink
// failure leaves the cursor untouched.
func (s *Scheduler) Schedule(raw []byte, sink Sink) (Placement, error) {
	buf, err := s.decode(raw)
	if err != nil {
		return Placement{}, fmt.Errorf("decode chunk: %w", err)
	}

	next, placement := Place(s.state, s.now(), s.latency, buf.Duration)
	if placement.Outcome == Underrun {
		s.state = next
		return placement, nil
	}
	if err := sink.Schedule(buf, placement.StartAt); err != nil {
		return placement, fmt.Errorf("schedule chunk: %w", err)
	}
	s.state = next
	return placement, nil
}

// Reset drops the cursor back to idle. The next chunk re-enters warm-up.
func (s *Scheduler) Reset() {
	s.state = State{}
}

// Cursor returns when the next chunk would start, or the zero time when
// idle.
func (s *Scheduler) Cursor() time.Time {
	return s.state.NextStart
}
