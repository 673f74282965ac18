// Package session owns the engine lifecycle: the STOPPED/RUNNING switch,
// the single tick source driving the sequencer, and the operations behind
// the external command surface.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crosslight-io/crosslight/engine/internal/config"
	"github.com/crosslight-io/crosslight/engine/internal/road"
	"github.com/crosslight-io/crosslight/engine/internal/sequencer"
	"github.com/crosslight-io/crosslight/engine/pkg/types"
)

// State is the session lifecycle state.
type State int

const (
	StateStopped State = iota
	StateRunning
)

// Controller ties the clock to the sequencer and exposes the start, stop,
// status and update operations. It survives start/stop cycles; road demand
// is kept across a stop so a restart resumes informed by last-known counts.
type Controller struct {
	cfg    config.Config
	store  *road.Store
	seq    *sequencer.Sequencer
	logger *slog.Logger

	mu              sync.Mutex
	state           State
	commandsHandled int64
	updatesApplied  int64
}

// NewController creates a stopped controller.
func NewController(cfg config.Config, store *road.Store, seq *sequencer.Sequencer, logger *slog.Logger) *Controller {
	return &Controller{
		cfg:    cfg,
		store:  store,
		seq:    seq,
		logger: logger,
	}
}

// Running reports whether the session is RUNNING.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateRunning
}

// Start moves STOPPED -> RUNNING. Road demand is not reset; the sequencer
// resumes ticking from ALL_RED.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		return types.NewError(types.ErrSession, "session already running",
			types.ErrTypeSession, false, "stop the session before starting it again")
	}
	c.state = StateRunning
	c.seq.Resume()
	c.logger.Info("session started")
	return nil
}

// Stop forces the sequencer to ALL_RED immediately, even mid-green, and
// parks the session. Vehicle counts and emergency flags are kept.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return types.NewError(types.ErrSession, "session already stopped",
			types.ErrTypeSession, false, "")
	}
	c.state = StateStopped
	c.mu.Unlock()

	c.seq.ForceAllRed()
	c.logger.Info("session stopped")
	return nil
}

// Update commits one detection result. Valid in both RUNNING and STOPPED
// sessions.
func (c *Controller) Update(roadID, count int, emergency bool) error {
	if err := c.store.Update(roadID, count, emergency); err != nil {
		return err
	}
	c.mu.Lock()
	c.updatesApplied++
	c.mu.Unlock()
	return nil
}

// Status reports the session state, the currently served road and a
// per-road demand snapshot.
func (c *Controller) Status() types.StatusResult {
	st := c.seq.Current()
	var current *int
	if st.Road != 0 {
		r := st.Road
		current = &r
	}

	snap := c.store.Snapshot()
	roads := make([]types.RoadStatus, len(snap))
	for i, r := range snap {
		roads[i] = types.RoadStatus{
			ID:              r.ID,
			VehicleCount:    r.VehicleCount,
			EmergencyActive: r.EmergencyActive,
		}
		if !r.UpdatedAt.IsZero() {
			roads[i].UpdatedAtMS = r.UpdatedAt.UnixMilli()
		}
	}

	return types.StatusResult{
		Running:     c.Running(),
		CurrentRoad: current,
		Phase:       st.Phase.String(),
		Roads:       roads,
	}
}

// IncrementCommands records one handled command for the health report.
func (c *Controller) IncrementCommands() {
	c.mu.Lock()
	c.commandsHandled++
	c.mu.Unlock()
}

// Stats returns the lifetime command and update counters.
func (c *Controller) Stats() (commandsHandled, updatesApplied int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandsHandled, c.updatesApplied
}

// Run drives the sequencer from a single ticker until ctx is cancelled.
// A tick while STOPPED is a no-op, not an error.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.seq.ForceAllRed()
			return nil
		case now := <-ticker.C:
			if c.Running() {
				c.seq.Tick(now)
			}
		}
	}
}
