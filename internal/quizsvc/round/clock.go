package round

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type Phase string

const (
	PhasePrepare Phase = "prepare"
	PhaseActive  Phase = "active"
	PhaseScoring Phase = "scoring"
)

// Clock drives the fixed three-phase countdown for one called number:
// prepare, then the question window, then scoring. Host and every player
// run their own Clock off the same number-called event; there is no
// shared tick source, only the shared start signal, so the countdown is
// pure time arithmetic with no I/O.
type Clock struct {
	clock   clockwork.Clock
	prepare int
	active  int
	scoring int

	mu       sync.Mutex
	cancelCh chan struct{}
	started  bool
	stopped  bool
}

func NewClock(cw clockwork.Clock, prepareSec, activeSec, scoringSec int) *Clock {
	return &Clock{
		clock:    cw,
		prepare:  prepareSec,
		active:   activeSec,
		scoring:  scoringSec,
		cancelCh: make(chan struct{}),
	}
}

// Start begins ticking at phase=prepare. onTick fires once per remaining
// value per phase (starting with the full duration), onPhaseEnd fires at
// each phase boundary; after onPhaseEnd(PhaseScoring) the clock is done.
// Either callback may be nil. Start is a no-op on reuse.
func (c *Clock) Start(onTick func(Phase, int), onPhaseEnd func(Phase)) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.run(onTick, onPhaseEnd)
}

func (c *Clock) run(onTick func(Phase, int), onPhaseEnd func(Phase)) {
	phases := []struct {
		phase   Phase
		seconds int
	}{
		{PhasePrepare, c.prepare},
		{PhaseActive, c.active},
		{PhaseScoring, c.scoring},
	}

	for _, p := range phases {
		if !c.countdown(p.phase, p.seconds, onTick) {
			return
		}
		if onPhaseEnd != nil {
			onPhaseEnd(p.phase)
		}
	}
}

// countdown ticks one phase down to zero. Returns false when cancelled.
func (c *Clock) countdown(phase Phase, seconds int, onTick func(Phase, int)) bool {
	for remaining := seconds; remaining > 0; remaining-- {
		if onTick != nil {
			onTick(phase, remaining)
		}

		timer := c.clock.NewTimer(time.Second)
		select {
		case <-timer.Chan():
		case <-c.cancelCh:
			stopAndDrainTimer(timer)
			return false
		}
	}
	return true
}

// Cancel stops all pending ticks. Safe from any phase, after completion,
// and on repeat calls.
func (c *Clock) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.cancelCh)
}

// stopAndDrainTimer stops a timer and drains its channel so a fired timer
// cannot leak a pending value.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
