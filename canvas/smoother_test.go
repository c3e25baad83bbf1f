package canvas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmootherFirstSightShowsNoMotion(t *testing.T) {
	s := NewSmoother(0.15)
	a := Asset{ID: "a1", X: 40, Y: 50, Width: 100, Height: 120, Rotation: 33}
	st := s.Step(a)
	assert.Equal(t, RenderState{X: 40, Y: 50, Width: 100, Height: 120, Rotation: 33}, st)
}

func TestSmootherConvergesTowardCanonical(t *testing.T) {
	s := NewSmoother(0.15)
	a := Asset{ID: "a1", X: 0, Y: 0, Width: 100, Height: 100}
	s.Step(a)
	a.X = 200
	prev := 0.0
	for i := 0; i < 100; i++ {
		st := s.Step(a)
		require.GreaterOrEqual(t, st.X, prev)
		prev = st.X
	}
	assert.InDelta(t, 200.0, prev, 0.01)
}

func TestSmootherRotationShortestPath(t *testing.T) {
	s := NewSmoother(0.5)
	a := Asset{ID: "a1", Rotation: 350}
	st := s.Step(a)
	require.Equal(t, 350.0, st.Rotation)

	a.Rotation = 10
	st = s.Step(a)
	// Shortest path from 350 to 10 is +20 degrees; half a step lands on the
	// 0/360 boundary rather than swinging back through 180.
	assert.InDelta(t, 360.0, st.Rotation, 1e-9)
}

func TestSmootherRotationScenario(t *testing.T) {
	s := NewSmoother(0.15)
	a := Asset{ID: "a1", Width: 100, Height: 100}
	s.Step(a)

	a.Rotation = 350
	for i := 0; i < 300; i++ {
		s.Step(a)
	}
	a.Rotation = 10
	prev := s.Step(a).Rotation
	for i := 0; i < 300; i++ {
		st := s.Step(a)
		require.GreaterOrEqual(t, st.Rotation, prev-1e-9, "rotation must approach 10 monotonically")
		require.False(t, st.Rotation > 90 && st.Rotation < 270, "rotation must never pass near 180")
		prev = st.Rotation
	}
	normalized := math.Mod(prev+360, 360)
	assert.InDelta(t, 10.0, normalized, 0.5)
}

func TestSmootherDrop(t *testing.T) {
	s := NewSmoother(0.15)
	a := Asset{ID: "a1", X: 10}
	s.Step(a)
	s.Drop("a1")
	assert.Empty(t, s.states)

	// After a drop the next step reseeds with no motion.
	a.X = 99
	st := s.Step(a)
	assert.Equal(t, 99.0, st.X)
}
