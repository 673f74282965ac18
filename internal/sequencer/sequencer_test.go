package sequencer

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosslight-io/crosslight/engine/internal/arbiter"
	"github.com/crosslight-io/crosslight/engine/internal/config"
	"github.com/crosslight-io/crosslight/engine/internal/road"
)

func testConfig() config.Config {
	return config.Config{
		NumRoads:            4,
		BaseGreen:           5 * time.Second,
		MinGreen:            2 * time.Second,
		MaxGreen:            20 * time.Second,
		EmergencyGreen:      10 * time.Second,
		PerVehicleExtension: 500 * time.Millisecond,
		Yellow:              time.Second,
		TickInterval:        50 * time.Millisecond,
	}
}

type capture struct {
	transitions []State
}

func (c *capture) OnPhaseChange(_, to State) {
	c.transitions = append(c.transitions, to)
}

func newTestSequencer(t *testing.T, cfg config.Config) (*Sequencer, *road.Store, *capture) {
	t.Helper()
	store := road.NewStore(cfg.NumRoads)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	seq := New(cfg, store, arbiter.New(cfg), logger)
	cap := &capture{}
	seq.AddObserver(cap)
	return seq, store, cap
}

func TestSequencer_FullCycleServesHighestDemand(t *testing.T) {
	cfg := testConfig()
	seq, store, _ := newTestSequencer(t, cfg)
	require.NoError(t, store.Update(1, 5, false))
	require.NoError(t, store.Update(2, 9, false))

	t0 := time.Now()

	// ALL_RED resolves to yellow-in for road 2 (highest count).
	seq.Tick(t0)
	st := seq.Current()
	assert.Equal(t, PhaseYellowIn, st.Phase)
	assert.Equal(t, 2, st.Road)
	assert.Equal(t, t0.Add(cfg.Yellow), st.Until)

	// Yellow holds until its deadline.
	seq.Tick(t0.Add(cfg.Yellow / 2))
	assert.Equal(t, PhaseYellowIn, seq.Current().Phase)

	// Green with the demand-scaled duration: clamp(5s + 9*500ms) = 9.5s.
	tGreen := t0.Add(cfg.Yellow)
	seq.Tick(tGreen)
	st = seq.Current()
	assert.Equal(t, PhaseGreen, st.Phase)
	assert.Equal(t, 2, st.Road)
	wantGreen := cfg.BaseGreen + 9*cfg.PerVehicleExtension
	assert.Equal(t, tGreen.Add(wantGreen), st.Until)

	// Still green before the deadline.
	seq.Tick(tGreen.Add(wantGreen - time.Millisecond))
	assert.Equal(t, PhaseGreen, seq.Current().Phase)

	// Expiry: yellow-out, and the served road's demand is reset.
	tOut := tGreen.Add(wantGreen)
	seq.Tick(tOut)
	st = seq.Current()
	assert.Equal(t, PhaseYellowOut, st.Phase)
	assert.Equal(t, 2, st.Road)
	snap := store.Snapshot()
	assert.Equal(t, 0, snap[1].VehicleCount)
	assert.False(t, snap[1].EmergencyActive)

	// Back to all-red, then the next tick serves road 1.
	seq.Tick(tOut.Add(cfg.Yellow))
	assert.Equal(t, PhaseAllRed, seq.Current().Phase)

	seq.Tick(tOut.Add(cfg.Yellow))
	st = seq.Current()
	assert.Equal(t, PhaseYellowIn, st.Phase)
	assert.Equal(t, 1, st.Road)
}

func TestSequencer_EmergencyPreemptionRespectsMinGreen(t *testing.T) {
	cfg := testConfig()
	seq, store, _ := newTestSequencer(t, cfg)
	require.NoError(t, store.Update(2, 9, false))

	t0 := time.Now()
	seq.Tick(t0) // -> yellow-in(2)
	tGreen := t0.Add(cfg.Yellow)
	seq.Tick(tGreen) // -> green(2)
	require.Equal(t, PhaseGreen, seq.Current().Phase)

	// Emergency appears on road 4 mid-green.
	require.NoError(t, store.Update(4, 0, true))

	// Before minGreen elapses the green must hold.
	seq.Tick(tGreen.Add(cfg.MinGreen - time.Millisecond))
	assert.Equal(t, PhaseGreen, seq.Current().Phase)

	// At minGreen the green is cut to yellow-out.
	seq.Tick(tGreen.Add(cfg.MinGreen))
	st := seq.Current()
	assert.Equal(t, PhaseYellowOut, st.Phase)
	assert.Equal(t, 2, st.Road)

	// The emergency road is served next, at the emergency duration.
	tRed := tGreen.Add(cfg.MinGreen + cfg.Yellow)
	seq.Tick(tRed) // -> all-red
	seq.Tick(tRed) // -> yellow-in(4)
	st = seq.Current()
	assert.Equal(t, PhaseYellowIn, st.Phase)
	assert.Equal(t, 4, st.Road)

	tEmGreen := tRed.Add(cfg.Yellow)
	seq.Tick(tEmGreen)
	st = seq.Current()
	assert.Equal(t, PhaseGreen, st.Phase)
	assert.Equal(t, 4, st.Road)
	assert.Equal(t, tEmGreen.Add(cfg.EmergencyGreen), st.Until)
}

func TestSequencer_EmergencyOnServedRoadDoesNotPreempt(t *testing.T) {
	cfg := testConfig()
	seq, store, _ := newTestSequencer(t, cfg)
	require.NoError(t, store.Update(2, 4, false))

	t0 := time.Now()
	seq.Tick(t0)
	tGreen := t0.Add(cfg.Yellow)
	seq.Tick(tGreen)
	require.Equal(t, PhaseGreen, seq.Current().Phase)

	// Emergency on the road already being served: green runs its course.
	require.NoError(t, store.Update(2, 4, true))
	seq.Tick(tGreen.Add(cfg.MinGreen + time.Second))
	assert.Equal(t, PhaseGreen, seq.Current().Phase)
}

func TestSequencer_YellowAlwaysRunsToCompletion(t *testing.T) {
	cfg := testConfig()
	seq, store, _ := newTestSequencer(t, cfg)
	require.NoError(t, store.Update(1, 3, false))

	t0 := time.Now()
	seq.Tick(t0) // -> yellow-in(1)

	// An emergency elsewhere does not cut a yellow short.
	require.NoError(t, store.Update(3, 0, true))
	seq.Tick(t0.Add(cfg.Yellow / 2))
	st := seq.Current()
	assert.Equal(t, PhaseYellowIn, st.Phase)
	assert.Equal(t, 1, st.Road)
}

func TestSequencer_MutualExclusionAcrossCycles(t *testing.T) {
	cfg := testConfig()
	seq, store, cap := newTestSequencer(t, cfg)

	now := time.Now()
	counts := []int{3, 0, 7, 1}
	for i := 0; i < 400; i++ {
		if i%17 == 0 {
			_ = store.Update(i%cfg.NumRoads+1, counts[i%len(counts)], i%13 == 0)
		}
		seq.Tick(now)
		now = now.Add(250 * time.Millisecond)
	}

	require.NotEmpty(t, cap.transitions)
	for _, st := range cap.transitions {
		assert.NoError(t, ValidateLights(st.Lights(cfg.NumRoads)))
	}
}

func TestSequencer_LivenessWithoutDemand(t *testing.T) {
	cfg := testConfig()
	seq, _, cap := newTestSequencer(t, cfg)

	// No updates at all: the round-robin fallback must still cycle every
	// road within a bounded number of ticks.
	now := time.Now()
	for i := 0; i < 2000; i++ {
		seq.Tick(now)
		now = now.Add(500 * time.Millisecond)
	}

	served := make(map[int]bool)
	for _, st := range cap.transitions {
		if st.Phase == PhaseGreen {
			served[st.Road] = true
		}
	}
	for id := 1; id <= cfg.NumRoads; id++ {
		assert.True(t, served[id], "road %d never served", id)
	}
}

func TestSequencer_ForceAllRedMidGreenKeepsDemand(t *testing.T) {
	cfg := testConfig()
	seq, store, _ := newTestSequencer(t, cfg)
	require.NoError(t, store.Update(1, 6, false))
	require.NoError(t, store.Update(3, 2, false))

	t0 := time.Now()
	seq.Tick(t0)
	seq.Tick(t0.Add(cfg.Yellow))
	require.Equal(t, PhaseGreen, seq.Current().Phase)

	seq.ForceAllRed()
	st := seq.Current()
	assert.Equal(t, PhaseAllRed, st.Phase)
	assert.Equal(t, 0, st.Road)

	// Stop does not discard demand; road 3 still has its two vehicles.
	snap := store.Snapshot()
	assert.Equal(t, 2, snap[2].VehicleCount)
}

func TestSequencer_ForceAllRedWhenParkedIsNoop(t *testing.T) {
	cfg := testConfig()
	seq, _, cap := newTestSequencer(t, cfg)

	seq.ForceAllRed()
	assert.Empty(t, cap.transitions)
}

func TestSequencer_ParkedIgnoresTicksUntilResume(t *testing.T) {
	cfg := testConfig()
	seq, store, cap := newTestSequencer(t, cfg)
	require.NoError(t, store.Update(2, 7, false))

	// A tick that lands after ForceAllRed must not wake the machine, even
	// with demand waiting.
	seq.ForceAllRed()
	seq.Tick(time.Now())
	assert.Equal(t, PhaseAllRed, seq.Current().Phase)
	assert.Empty(t, cap.transitions)

	seq.Resume()
	seq.Tick(time.Now())
	st := seq.Current()
	assert.Equal(t, PhaseYellowIn, st.Phase)
	assert.Equal(t, 2, st.Road)
}

func TestState_Lights(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  []LightState
	}{
		{"all red", State{Phase: PhaseAllRed}, []LightState{LightRed, LightRed, LightRed, LightRed}},
		{"green road 2", State{Phase: PhaseGreen, Road: 2}, []LightState{LightRed, LightGreen, LightRed, LightRed}},
		{"yellow in road 4", State{Phase: PhaseYellowIn, Road: 4}, []LightState{LightRed, LightRed, LightRed, LightYellow}},
		{"yellow out road 1", State{Phase: PhaseYellowOut, Road: 1}, []LightState{LightYellow, LightRed, LightRed, LightRed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Lights(4))
		})
	}
}

func TestValidateLights(t *testing.T) {
	ok := []LightState{LightRed, LightGreen, LightRed, LightRed}
	assert.NoError(t, ValidateLights(ok))

	bad := []LightState{LightGreen, LightGreen, LightRed, LightRed}
	assert.Error(t, ValidateLights(bad))
}
