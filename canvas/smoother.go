package canvas

import (
	"github.com/Kruhlmann/imgfloat-j/util"
)

// A RenderState is the continuously interpolated pose for one asset. It is
// cosmetic only; authoritative values live in the Store.
type RenderState struct {
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Rotation float64
}

// A Smoother converges per-asset render states toward the canonical assets,
// one interpolation step per frame.
type Smoother struct {
	factor float64
	states map[string]*RenderState
}

// NewSmoother creates a Smoother with the given per-frame factor.
func NewSmoother(factor float64) *Smoother {
	s := new(Smoother)
	s.factor = factor
	s.states = make(map[string]*RenderState)
	return s
}

// Step advances the smoothed state for the asset by one frame and returns it.
// A first sighting is seeded from the canonical asset, so a new asset shows
// no motion on its first frame. Rotation follows the shortest angular path,
// so 350 to 10 animates through 360 rather than back through 180.
func (s *Smoother) Step(a Asset) RenderState {
	st, ok := s.states[a.ID]
	if !ok {
		st = &RenderState{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height, Rotation: a.Rotation}
		s.states[a.ID] = st
		return *st
	}
	st.X = util.Lerp(st.X, a.X, s.factor)
	st.Y = util.Lerp(st.Y, a.Y, s.factor)
	st.Width = util.Lerp(st.Width, a.Width, s.factor)
	st.Height = util.Lerp(st.Height, a.Height, s.factor)
	st.Rotation += util.AngleDelta(st.Rotation, a.Rotation) * s.factor
	return *st
}

// Drop discards the state for a removed asset.
func (s *Smoother) Drop(id string) {
	delete(s.states, id)
}
