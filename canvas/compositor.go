package canvas

import (
	"context"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
)

// A ScriptRunner hosts code assets' lifecycle against the shared surface.
// The compositor ticks code assets through it in z-order instead of drawing
// them itself.
type ScriptRunner interface {
	// Tick runs one frame of the asset's script, loading and initializing it
	// first if needed.
	Tick(a Asset)
	// Drop discards the loaded program for a removed asset.
	Drop(id string)
}

// A Compositor owns the render-side state for one channel surface: the
// canonical store, the media and render-state caches and the draw loop. All
// mutation happens on the loop goroutine; timers and network callbacks post
// closures onto it.
type Compositor struct {
	channel  string
	surface  *Surface
	store    *Store
	resolver *Resolver
	smoother *Smoother
	scripts  ScriptRunner
	clock    Clock
	cfg      Config
	loop     chan func()
	onFrame  func([]byte)
	log      zerolog.Logger
}

// NewCompositor creates a Compositor and its caches.
func NewCompositor(cfg Config, surface *Surface, store *Store, fetch Fetcher, clock Clock, log zerolog.Logger) *Compositor {
	c := new(Compositor)
	c.channel = cfg.Channel
	c.surface = surface
	c.store = store
	c.clock = clock
	c.cfg = cfg
	c.loop = make(chan func(), 256)
	c.log = log.With().Str("component", "compositor").Logger()
	c.smoother = NewSmoother(cfg.SmoothingFactor())
	c.resolver = NewResolver(fetch, clock, c.Post, c.log)
	return c
}

// SetScripts attaches the code asset runtime.
func (c *Compositor) SetScripts(s ScriptRunner) {
	c.scripts = s
}

// SetOnFrame attaches the sink receiving each encoded frame.
func (c *Compositor) SetOnFrame(fn func([]byte)) {
	c.onFrame = fn
}

// Post schedules fn onto the compositor goroutine.
func (c *Compositor) Post(fn func()) {
	c.loop <- fn
}

// VisibleAssets is the read view of the registry handed to code assets.
func (c *Compositor) VisibleAssets() []Asset {
	return c.store.Visible()
}

// Run drives the loop until the context is cancelled. Every frame renders
// unconditionally so animated and video assets keep moving.
func (c *Compositor) Run(ctx context.Context) {
	tick, stop := c.clock.FrameTicker(c.cfg.FrameInterval())
	defer stop()
	for {
		select {
		case <-ctx.Done():
			c.resolver.ReleaseAll()
			return
		case fn := <-c.loop:
			fn()
		case <-tick:
			c.RenderFrame()
		}
	}
}

// Seed replaces the store contents from the bulk fetch.
func (c *Compositor) Seed(list []Asset) {
	c.store.Seed(list)
	c.log.Info().Int("assets", c.store.Len()).Msg("store seeded")
}

// ApplyEvent folds one sync event into the store and releases caches for any
// removed assets. Malformed events are ignored whole.
func (c *Compositor) ApplyEvent(evt SyncEvent) {
	removed, ok := c.store.Apply(evt)
	if !ok {
		c.log.Warn().Str("type", evt.Type).Str("asset", evt.AssetID).Msg("ignoring malformed sync event")
		return
	}
	for _, id := range removed {
		c.resolver.Drop(id)
		c.smoother.Drop(id)
		if c.scripts != nil {
			c.scripts.Drop(id)
		}
	}
}

// RenderFrame draws one complete frame: clear, z-ordered draw of every
// visible asset, then frame publication. Unready handles are skipped and
// retried next frame.
func (c *Compositor) RenderFrame() {
	c.surface.Clear()
	for _, a := range c.store.Visible() {
		if a.Code() {
			if c.scripts != nil {
				c.scripts.Tick(a)
			}
			continue
		}
		st := c.smoother.Step(a)
		h := c.resolver.Resolve(a)
		if !h.Ready() {
			continue
		}
		c.drawHandle(h, st)
	}
	if c.onFrame == nil {
		return
	}
	frame, err := c.surface.EncodeFrame()
	if err != nil {
		c.log.Error().Err(err).Msg("frame encode failed")
		return
	}
	c.onFrame(frame)
}

// drawHandle paints the handle scaled to the smoothed rect, rotated about
// its center.
func (c *Compositor) drawHandle(h MediaHandle, st RenderState) {
	dc := c.surface.Context()
	cx := st.X + st.Width/2
	cy := st.Y + st.Height/2
	dc.Push()
	dc.RotateAbout(gg.Radians(st.Rotation), cx, cy)
	h.Draw(dc, st.X, st.Y, st.Width, st.Height)
	dc.Pop()
}
