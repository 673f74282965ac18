package arbiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
		Yellow:              2 * time.Second,
		TickInterval:        50 * time.Millisecond,
	}
}

func snapshot(counts []int, emergencies ...int) []road.Road {
	snap := make([]road.Road, len(counts))
	for i, c := range counts {
		snap[i] = road.Road{ID: i + 1, VehicleCount: c}
	}
	for _, id := range emergencies {
		snap[id-1].EmergencyActive = true
	}
	return snap
}

func TestSelectNext_HighestCount(t *testing.T) {
	a := New(testConfig())

	sel, ok := a.SelectNext(snapshot([]int{5, 9, 1, 0}), 0)
	require.True(t, ok)
	assert.Equal(t, 2, sel.Road)
	assert.False(t, sel.Emergency)
	assert.Equal(t, 5*time.Second+9*500*time.Millisecond, sel.Green)
}

func TestSelectNext_TieBreaksToLowestID(t *testing.T) {
	a := New(testConfig())

	sel, ok := a.SelectNext(snapshot([]int{0, 7, 7, 3}), 0)
	require.True(t, ok)
	assert.Equal(t, 2, sel.Road)
}

func TestSelectNext_EmergencyOverridesCounts(t *testing.T) {
	a := New(testConfig())

	// Road 3 has the emergency but only one vehicle; road 2 has nine.
	sel, ok := a.SelectNext(snapshot([]int{3, 9, 1, 0}, 3), 0)
	require.True(t, ok)
	assert.Equal(t, 3, sel.Road)
	assert.True(t, sel.Emergency)
	assert.Equal(t, testConfig().EmergencyGreen, sel.Green)
}

func TestSelectNext_EmergencyTieBreaksToLowestID(t *testing.T) {
	a := New(testConfig())

	sel, ok := a.SelectNext(snapshot([]int{0, 0, 0, 0}, 4, 2), 0)
	require.True(t, ok)
	assert.Equal(t, 2, sel.Road)
}

func TestSelectNext_BootstrapDefaultsToRoadOne(t *testing.T) {
	a := New(testConfig())

	sel, ok := a.SelectNext(snapshot([]int{0, 0, 0, 0}), 0)
	require.True(t, ok)
	assert.Equal(t, 1, sel.Road)
}

func TestSelectNext_RoundRobinWhenIdle(t *testing.T) {
	a := New(testConfig())
	empty := snapshot([]int{0, 0, 0, 0})

	current := 0
	var order []int
	for i := 0; i < 8; i++ {
		sel, ok := a.SelectNext(empty, current)
		require.True(t, ok)
		order = append(order, sel.Road)
		current = sel.Road
	}
	assert.Equal(t, []int{1, 2, 3, 4, 1, 2, 3, 4}, order)
}

func TestSelectNext_ZeroCountRoadNotPickedOverDemand(t *testing.T) {
	a := New(testConfig())

	sel, ok := a.SelectNext(snapshot([]int{0, 0, 1, 0}), 1)
	require.True(t, ok)
	assert.Equal(t, 3, sel.Road)
}

func TestSelectNext_EmptySnapshot(t *testing.T) {
	a := New(testConfig())

	_, ok := a.SelectNext(nil, 0)
	assert.False(t, ok)
}

func TestGreenFor_Clamping(t *testing.T) {
	cfg := testConfig()
	a := New(cfg)

	tests := []struct {
		name  string
		count int
		want  time.Duration
	}{
		{"zero vehicles uses base", 0, cfg.BaseGreen},
		{"scales per vehicle", 4, cfg.BaseGreen + 4*cfg.PerVehicleExtension},
		{"clamps to max", 1000, cfg.MaxGreen},
		{"huge count stays bounded", 1 << 30, cfg.MaxGreen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.GreenFor(tt.count)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, cfg.MinGreen)
			assert.LessOrEqual(t, got, cfg.MaxGreen)
		})
	}
}

func TestGreenFor_BaseBelowMinClampsUp(t *testing.T) {
	cfg := testConfig()
	cfg.BaseGreen = 500 * time.Millisecond
	a := New(cfg)

	assert.Equal(t, cfg.MinGreen, a.GreenFor(0))
}

func TestEmergencyTarget(t *testing.T) {
	id, ok := EmergencyTarget(snapshot([]int{1, 2, 3, 4}, 3))
	require.True(t, ok)
	assert.Equal(t, 3, id)

	_, ok = EmergencyTarget(snapshot([]int{1, 2, 3, 4}))
	assert.False(t, ok)
}
