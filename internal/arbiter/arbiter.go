// Package arbiter decides which approach is served next and for how long.
// Selection is a pure function of a demand snapshot plus the previously
// served road; it holds no state of its own.
package arbiter

import (
	"time"

	"github.com/crosslight-io/crosslight/engine/internal/config"
	"github.com/crosslight-io/crosslight/engine/internal/road"
)

// Selection is one arbitration outcome.
type Selection struct {
	Road      int
	Green     time.Duration
	Emergency bool
}

// Arbiter computes selections under a fixed timing plan.
type Arbiter struct {
	cfg config.Config
}

// New creates an Arbiter for cfg.
func New(cfg config.Config) *Arbiter {
	return &Arbiter{cfg: cfg}
}

// SelectNext picks the next road to serve. Precedence:
//
//  1. Any emergency-flagged road, lowest id first.
//  2. The road with the strictly highest vehicle count, ties to the lowest id.
//  3. With no demand at all, round-robin after current so an empty
//     intersection still cycles instead of parking on all-red forever.
//
// current is the previously served road, or 0 when none has been served yet;
// in that case rule 3 bootstraps to road 1. ok is false only for an empty
// snapshot.
func (a *Arbiter) SelectNext(snap []road.Road, current int) (Selection, bool) {
	if len(snap) == 0 {
		return Selection{}, false
	}

	if id, ok := EmergencyTarget(snap); ok {
		return Selection{Road: id, Green: a.cfg.EmergencyGreen, Emergency: true}, true
	}

	best := 0
	bestCount := 0
	for _, r := range snap {
		if r.VehicleCount > bestCount {
			best = r.ID
			bestCount = r.VehicleCount
		}
	}
	if best != 0 {
		return Selection{Road: best, Green: a.GreenFor(bestCount)}, true
	}

	// No demand anywhere: rotate.
	next := 1
	if current >= 1 {
		next = current%len(snap) + 1
	}
	return Selection{Road: next, Green: a.GreenFor(0)}, true
}

// EmergencyTarget returns the lowest-numbered road with an active emergency
// flag.
func EmergencyTarget(snap []road.Road) (int, bool) {
	for _, r := range snap {
		if r.EmergencyActive {
			return r.ID, true
		}
	}
	return 0, false
}

// GreenFor converts a vehicle count into a green duration, clamped to the
// configured [minGreen, maxGreen] window.
func (a *Arbiter) GreenFor(vehicleCount int) time.Duration {
	d := a.cfg.BaseGreen + time.Duration(vehicleCount)*a.cfg.PerVehicleExtension
	if d < a.cfg.MinGreen {
		d = a.cfg.MinGreen
	}
	if d > a.cfg.MaxGreen {
		d = a.cfg.MaxGreen
	}
	return d
}
