package actuator

import (
	"context"
	"log/slog"
	"time"

	"github.com/crosslight-io/crosslight/engine/internal/sequencer"
)

// Notifier surfaces actuation events to external observers.
type Notifier func(method string, payload any)

// Bridge subscribes to the sequencer and drives an Actuator with the
// resulting frames. A failed actuation is surfaced to the operator but the
// logical state keeps advancing; the engine always reports the intended
// phase truthfully.
type Bridge struct {
	numRoads int
	act      Actuator
	logger   *slog.Logger
	notify   Notifier
	timeout  time.Duration
}

// NewBridge creates a bridge for numRoads signal heads.
func NewBridge(numRoads int, act Actuator, logger *slog.Logger, notify Notifier) *Bridge {
	if notify == nil {
		notify = func(string, any) {}
	}
	return &Bridge{
		numRoads: numRoads,
		act:      act,
		logger:   logger,
		notify:   notify,
		timeout:  time.Second,
	}
}

// OnPhaseChange implements sequencer.Observer.
func (b *Bridge) OnPhaseChange(_, to sequencer.State) {
	frame := Frame(to.Lights(b.numRoads))

	// A frame with two non-red heads must never reach real lights.
	if err := sequencer.ValidateLights(frame); err != nil {
		b.logger.Error("refusing unsafe frame", "frame", frame.String(), "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.act.Apply(ctx, frame); err != nil {
		b.logger.Error("actuation failed", "frame", frame.String(), "err", err)
		b.notify("actuation_failure", map[string]string{
			"frame": frame.String(),
			"error": err.Error(),
		})
	}
}

var _ sequencer.Observer = (*Bridge)(nil)
