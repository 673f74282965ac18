// Package sequencer drives the signal transition protocol. It is a
// non-blocking state machine advanced by an external tick: every deadline is
// recorded as an absolute time in the current state, so detection updates are
// never held behind an in-progress phase.
package sequencer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crosslight-io/crosslight/engine/internal/arbiter"
	"github.com/crosslight-io/crosslight/engine/internal/config"
	"github.com/crosslight-io/crosslight/engine/internal/road"
)

// Phase is the sequencer's position in the transition protocol.
type Phase int

const (
	PhaseAllRed Phase = iota
	PhaseYellowIn
	PhaseGreen
	PhaseYellowOut
)

func (p Phase) String() string {
	switch p {
	case PhaseAllRed:
		return "ALL_RED"
	case PhaseYellowIn:
		return "YELLOW_ENTERING"
	case PhaseGreen:
		return "GREEN"
	case PhaseYellowOut:
		return "YELLOW_EXITING"
	}
	return "UNKNOWN"
}

// State is one position of the machine. It is a value: every transition
// replaces it wholesale.
type State struct {
	Phase Phase
	// Road is the single served approach, 0 while all approaches are red.
	Road int
	// Until is the absolute deadline of the current phase. Zero in ALL_RED.
	Until time.Time
	// GreenStart records when the green began; the minimum-green guarantee
	// is measured from it.
	GreenStart time.Time
}

// LightState is the color shown by one signal head.
type LightState int

const (
	LightRed LightState = iota
	LightYellow
	LightGreen
)

func (l LightState) String() string {
	switch l {
	case LightRed:
		return "RED"
	case LightYellow:
		return "YELLOW"
	case LightGreen:
		return "GREEN"
	}
	return "UNKNOWN"
}

// Lights expands the state into one LightState per road.
func (s State) Lights(numRoads int) []LightState {
	lights := make([]LightState, numRoads)
	if s.Road < 1 || s.Road > numRoads {
		return lights
	}
	switch s.Phase {
	case PhaseGreen:
		lights[s.Road-1] = LightGreen
	case PhaseYellowIn, PhaseYellowOut:
		lights[s.Road-1] = LightYellow
	}
	return lights
}

// ValidateLights enforces the mutual-exclusion invariant: at most one head
// may be non-red.
func ValidateLights(lights []LightState) error {
	nonRed := 0
	for _, l := range lights {
		if l != LightRed {
			nonRed++
		}
	}
	if nonRed > 1 {
		return fmt.Errorf("sequencer: %d roads non-red, want at most 1", nonRed)
	}
	return nil
}

// Observer is notified after every committed transition. Callbacks run on
// the tick goroutine and must not block.
type Observer interface {
	OnPhaseChange(from, to State)
}

// Sequencer executes the ALL_RED -> YELLOW_ENTERING -> GREEN ->
// YELLOW_EXITING -> ALL_RED protocol for the road the arbiter selects.
type Sequencer struct {
	cfg    config.Config
	store  *road.Store
	arb    *arbiter.Arbiter
	logger *slog.Logger

	mu           sync.Mutex
	state        State
	parked       bool
	lastServed   int
	pendingGreen time.Duration

	// notifyMu serializes observer delivery in commit order. It is acquired
	// while mu is still held, so two racing transitions can never reach the
	// observers reversed.
	notifyMu  sync.Mutex
	observers []Observer
}

// New creates a sequencer at ALL_RED, ready to tick.
func New(cfg config.Config, store *road.Store, arb *arbiter.Arbiter, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		cfg:    cfg,
		store:  store,
		arb:    arb,
		logger: logger,
	}
}

// AddObserver registers an observer. Not safe to call concurrently with Tick.
func (q *Sequencer) AddObserver(o Observer) {
	q.observers = append(q.observers, o)
}

// Current returns the machine's state.
func (q *Sequencer) Current() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// CurrentRoad returns the served road, if any phase is active.
func (q *Sequencer) CurrentRoad() (int, bool) {
	s := q.Current()
	return s.Road, s.Road != 0
}

// Tick advances the machine to now. A parked sequencer ignores ticks: the
// session controller's running check and a concurrent Stop are not atomic,
// so a tick may land after ForceAllRed and must not wake the machine.
func (q *Sequencer) Tick(now time.Time) {
	q.mu.Lock()
	if q.parked {
		q.mu.Unlock()
		return
	}
	from := q.state

	switch q.state.Phase {
	case PhaseAllRed:
		sel, ok := q.arb.SelectNext(q.store.Snapshot(), q.lastServed)
		if !ok {
			q.mu.Unlock()
			return
		}
		q.pendingGreen = sel.Green
		q.state = State{Phase: PhaseYellowIn, Road: sel.Road, Until: now.Add(q.cfg.Yellow)}
		if sel.Emergency {
			q.logger.Info("emergency selection", "road", sel.Road, "greenMs", sel.Green.Milliseconds())
		}

	case PhaseYellowIn:
		// Yellow dwells always run to completion.
		if now.Before(q.state.Until) {
			q.mu.Unlock()
			return
		}
		q.state = State{
			Phase:      PhaseGreen,
			Road:       q.state.Road,
			Until:      now.Add(q.pendingGreen),
			GreenStart: now,
		}

	case PhaseGreen:
		expired := !now.Before(q.state.Until)
		preempt := false
		if !expired {
			// Emergency on another road may cut the green short, but never
			// inside the minimum-green window.
			if target, ok := arbiter.EmergencyTarget(q.store.Snapshot()); ok && target != q.state.Road {
				preempt = !now.Before(q.state.GreenStart.Add(q.cfg.MinGreen))
			}
		}
		if !expired && !preempt {
			q.mu.Unlock()
			return
		}
		served := q.state.Road
		q.store.Reset(served)
		q.state = State{Phase: PhaseYellowOut, Road: served, Until: now.Add(q.cfg.Yellow)}
		if preempt {
			q.logger.Info("green preempted", "road", served)
		}

	case PhaseYellowOut:
		if now.Before(q.state.Until) {
			q.mu.Unlock()
			return
		}
		q.lastServed = q.state.Road
		q.state = State{Phase: PhaseAllRed}
	}

	to := q.state
	q.commit(from, to)
}

// ForceAllRed parks the machine immediately, even mid-green, and keeps it
// parked until Resume. Road demand is deliberately kept so a restart can
// resume informed by the last-known counts.
func (q *Sequencer) ForceAllRed() {
	q.mu.Lock()
	q.parked = true
	from := q.state
	if from.Phase == PhaseAllRed {
		q.mu.Unlock()
		return
	}
	q.lastServed = from.Road
	q.state = State{Phase: PhaseAllRed}
	to := q.state
	q.commit(from, to)
}

// Resume lets Tick advance the machine again after a ForceAllRed.
func (q *Sequencer) Resume() {
	q.mu.Lock()
	q.parked = false
	q.mu.Unlock()
}

// commit publishes one transition. The caller enters with mu held; commit
// chains into notifyMu before releasing it, so observers always see
// transitions in the order the state took them.
func (q *Sequencer) commit(from, to State) {
	q.notifyMu.Lock()
	q.mu.Unlock()
	defer q.notifyMu.Unlock()

	if err := ValidateLights(to.Lights(q.cfg.NumRoads)); err != nil {
		// Unreachable by construction; a failure here is a programming error.
		panic(err)
	}
	q.logger.Debug("phase change",
		"from", from.Phase.String(), "to", to.Phase.String(), "road", to.Road)
	for _, o := range q.observers {
		o.OnPhaseChange(from, to)
	}
}
