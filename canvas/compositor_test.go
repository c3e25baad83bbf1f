package canvas

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	order   []string
	dropped []string
}

func (r *recordingRunner) Tick(a Asset) {
	r.order = append(r.order, a.ID)
}

func (r *recordingRunner) Drop(id string) {
	r.dropped = append(r.dropped, id)
}

func newTestCompositor(t *testing.T, fetch Fetcher) (*Compositor, *Store, *recordingRunner) {
	t.Helper()
	cfg := Config{Channel: "ch"}
	cfg.Render.Width = 32
	cfg.Render.Height = 32
	surface, err := NewSurface(32, 32, "")
	require.NoError(t, err)
	store := NewStore(true)
	if fetch == nil {
		fetch = func(string) ([]byte, error) { return nil, errors.New("no media") }
	}
	comp := NewCompositor(cfg, surface, store, fetch, newFakeClock(), zerolog.Nop())
	runner := &recordingRunner{}
	comp.SetScripts(runner)
	return comp, store, runner
}

func codeAsset(id string, z int, created time.Time) Asset {
	return Asset{
		ID:        id,
		URL:       "/code/" + id,
		MediaType: ScriptMediaType,
		Width:     10,
		Height:    10,
		ZIndex:    z,
		CreatedAt: created,
	}
}

func TestCompositorDrawsInZOrder(t *testing.T) {
	comp, store, runner := newTestCompositor(t, nil)
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Seed order deliberately disagrees with draw order.
	store.Seed([]Asset{
		codeAsset("top", 2, t1),
		codeAsset("late", 1, t1.Add(time.Second)),
		codeAsset("early", 1, t1),
	})
	comp.RenderFrame()
	assert.Equal(t, []string{"early", "late", "top"}, runner.order)
}

func TestCompositorSkipsUnreadyHandles(t *testing.T) {
	comp, store, _ := newTestCompositor(t, nil)
	frames := 0
	comp.SetOnFrame(func([]byte) { frames++ })

	a := testAsset("m1")
	store.Seed([]Asset{a})

	// The handle never becomes ready; the frame still completes and the
	// asset is retried every render.
	comp.RenderFrame()
	comp.RenderFrame()
	assert.Equal(t, 2, frames)
	assert.Contains(t, comp.resolver.handles, "m1")
}

func TestCompositorDrawsReadyHandle(t *testing.T) {
	comp, store, _ := newTestCompositor(t, func(string) ([]byte, error) { return pngBytes(t), nil })
	var frame []byte
	comp.SetOnFrame(func(b []byte) { frame = b })

	a := testAsset("m1")
	a.X, a.Y, a.Width, a.Height, a.Rotation = 4, 4, 16, 16, 45
	store.Seed([]Asset{a})

	comp.RenderFrame() // resolve kicks off the fetch
	runPost(t, comp.loop) // decode completion
	comp.RenderFrame()
	require.NotEmpty(t, frame)
}

func TestCompositorApplyEventReleasesCaches(t *testing.T) {
	comp, store, runner := newTestCompositor(t, nil)
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	media := testAsset("m1")
	store.Seed([]Asset{media, codeAsset("c1", 1, t1)})
	comp.RenderFrame()
	require.Contains(t, comp.resolver.handles, "m1")
	require.Contains(t, comp.smoother.states, "m1")

	comp.ApplyEvent(SyncEvent{Type: EventDeleted, AssetID: "m1"})
	assert.NotContains(t, comp.resolver.handles, "m1")
	assert.NotContains(t, comp.smoother.states, "m1")

	comp.ApplyEvent(SyncEvent{Type: EventDeleted, AssetID: "c1"})
	assert.Contains(t, runner.dropped, "c1")
}

func TestCompositorApplyEventHiddenReleasesCaches(t *testing.T) {
	comp, store, _ := newTestCompositor(t, nil)
	media := testAsset("m1")
	store.Seed([]Asset{media})
	comp.RenderFrame()

	hidden := media
	hidden.Hidden = true
	comp.ApplyEvent(SyncEvent{Type: EventUpdated, AssetID: "m1", Payload: &hidden})
	assert.NotContains(t, comp.resolver.handles, "m1")
	assert.NotContains(t, comp.smoother.states, "m1")
	assert.Equal(t, 0, store.Len())
}

func TestCompositorIgnoresMalformedEvent(t *testing.T) {
	comp, store, _ := newTestCompositor(t, nil)
	store.Seed([]Asset{testAsset("m1")})

	comp.ApplyEvent(SyncEvent{Type: EventUpdated, AssetID: "m1"})
	assert.Equal(t, 1, store.Len())
}
