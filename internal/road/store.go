// Package road owns the per-approach demand state. The store is the only
// mutable resource shared between the detection feeds and the sequencer
// tick, so every access goes through one mutex.
package road

import (
	"sync"
	"time"

	"github.com/crosslight-io/crosslight/engine/pkg/types"
)

// Road is the last-reported demand for one approach.
type Road struct {
	ID              int
	VehicleCount    int
	EmergencyActive bool
	UpdatedAt       time.Time
}

// Store holds one Road per approach, ids 1..N. Updates are last-writer-wins
// per road; Snapshot never observes a half-applied write.
type Store struct {
	mu    sync.Mutex
	roads []Road
}

// NewStore creates a store with numRoads empty entries.
func NewStore(numRoads int) *Store {
	roads := make([]Road, numRoads)
	for i := range roads {
		roads[i].ID = i + 1
	}
	return &Store{roads: roads}
}

// NumRoads returns the configured road count.
func (s *Store) NumRoads() int {
	return len(s.roads)
}

// Update overwrites one road's count and emergency flag. It must return
// quickly: detection feeds call it concurrently and must never stall
// behind an in-progress phase transition.
func (s *Store) Update(roadID, vehicleCount int, emergencyActive bool) error {
	if roadID < 1 || roadID > len(s.roads) {
		return types.InvalidRoadID(roadID, len(s.roads))
	}
	if vehicleCount < 0 {
		return types.NewError(types.ErrInvalidCommand, "vehicle count must be non-negative",
			types.ErrTypeInvalidCommand, false, "")
	}

	s.mu.Lock()
	r := &s.roads[roadID-1]
	r.VehicleCount = vehicleCount
	r.EmergencyActive = emergencyActive
	r.UpdatedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// Snapshot returns a consistent copy of all roads for arbitration.
func (s *Store) Snapshot() []Road {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Road, len(s.roads))
	copy(out, s.roads)
	return out
}

// Reset clears one road's demand. The sequencer calls it when the road's
// green phase concludes, modeling that the served queue has drained.
// Out-of-range ids indicate a sequencer bug and panic.
func (s *Store) Reset(roadID int) {
	if roadID < 1 || roadID > len(s.roads) {
		panic("road: reset of out-of-range road id")
	}
	s.mu.Lock()
	r := &s.roads[roadID-1]
	r.VehicleCount = 0
	r.EmergencyActive = false
	r.UpdatedAt = time.Now()
	s.mu.Unlock()
}
