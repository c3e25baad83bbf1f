package canvas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAsset(id string) Asset {
	return Asset{
		ID:        id,
		URL:       "/api/channels/ch/assets/" + id + "/content",
		MediaType: "image/png",
		Width:     100,
		Height:    100,
		ZIndex:    1,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStoreFoldsEventsInArrivalOrder(t *testing.T) {
	s := NewStore(true)

	a1 := testAsset("a1")
	_, ok := s.Apply(SyncEvent{Type: EventCreated, AssetID: "a1", Payload: &a1})
	require.True(t, ok)

	moved := a1
	moved.X = 42
	_, ok = s.Apply(SyncEvent{Type: EventUpdated, AssetID: "a1", Payload: &moved})
	require.True(t, ok)

	a2 := testAsset("a2")
	_, ok = s.Apply(SyncEvent{Type: EventCreated, AssetID: "a2", Payload: &a2})
	require.True(t, ok)

	removed, ok := s.Apply(SyncEvent{Type: EventDeleted, AssetID: "a1"})
	require.True(t, ok)
	assert.Equal(t, []string{"a1"}, removed)

	assert.Equal(t, 1, s.Len())
	_, found := s.Get("a1")
	assert.False(t, found)
	got, found := s.Get("a2")
	require.True(t, found)
	assert.Equal(t, a2, got)
}

func TestStoreUpdateWins(t *testing.T) {
	s := NewStore(true)
	a := testAsset("a1")
	s.Apply(SyncEvent{Type: EventCreated, AssetID: "a1", Payload: &a})
	rotated := a
	rotated.Rotation = 350
	s.Apply(SyncEvent{Type: EventUpdated, AssetID: "a1", Payload: &rotated})

	got, _ := s.Get("a1")
	assert.Equal(t, 350.0, got.Rotation)
}

func TestStoreHiddenRemovedOnViewer(t *testing.T) {
	s := NewStore(true)
	a := testAsset("a1")
	s.Apply(SyncEvent{Type: EventCreated, AssetID: "a1", Payload: &a})

	hidden := a
	hidden.Hidden = true
	removed, ok := s.Apply(SyncEvent{Type: EventVisibility, AssetID: "a1", Payload: &hidden})
	require.True(t, ok)
	assert.Equal(t, []string{"a1"}, removed)
	assert.Equal(t, 0, s.Len())
}

func TestStoreHiddenKeptOnEditor(t *testing.T) {
	s := NewStore(false)
	a := testAsset("a1")
	a.Hidden = true
	_, ok := s.Apply(SyncEvent{Type: EventCreated, AssetID: "a1", Payload: &a})
	require.True(t, ok)
	assert.Equal(t, 1, s.Len())
	// Hidden assets stay stored but never enter the draw list.
	assert.Empty(t, s.Visible())
}

func TestStoreIgnoresMalformedEvents(t *testing.T) {
	s := NewStore(true)
	a := testAsset("a1")
	s.Apply(SyncEvent{Type: EventCreated, AssetID: "a1", Payload: &a})

	cases := []SyncEvent{
		{Type: EventDeleted},                        // delete without id
		{Type: EventUpdated, AssetID: "a1"},         // update without payload
		{Type: EventCreated, Payload: &Asset{}},     // payload without id
		{Type: "REPLACED", AssetID: "a1", Payload: &a}, // unknown type
	}
	for _, evt := range cases {
		removed, ok := s.Apply(evt)
		assert.False(t, ok)
		assert.Empty(t, removed)
	}
	assert.Equal(t, 1, s.Len())
}

func TestStoreSeedDropsHiddenOnViewer(t *testing.T) {
	s := NewStore(true)
	a := testAsset("a1")
	hidden := testAsset("a2")
	hidden.Hidden = true
	s.Seed([]Asset{a, hidden})
	assert.Equal(t, 1, s.Len())
}

func TestVisibleOrdersByZThenCreatedAt(t *testing.T) {
	s := NewStore(true)
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	top := testAsset("top")
	top.ZIndex = 2
	late := testAsset("late")
	late.CreatedAt = t2
	early := testAsset("early")
	early.CreatedAt = t1

	// Insertion order deliberately disagrees with draw order.
	for _, a := range []Asset{top, late, early} {
		a := a
		s.Apply(SyncEvent{Type: EventCreated, AssetID: a.ID, Payload: &a})
	}

	var ids []string
	for _, a := range s.Visible() {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"early", "late", "top"}, ids)
}

func TestAssetDefaults(t *testing.T) {
	a := Asset{}
	assert.Equal(t, 1.0, a.PlaybackSpeed())
	assert.True(t, a.IsMuted())
	assert.Equal(t, 1, a.ZLayer())
	assert.False(t, a.Code())

	zero := 0.0
	negative := -2.0
	unmuted := false
	a.Speed = &zero
	assert.Equal(t, 0.0, a.PlaybackSpeed())
	a.Speed = &negative
	assert.Equal(t, 0.0, a.PlaybackSpeed())
	a.Muted = &unmuted
	assert.False(t, a.IsMuted())

	a.MediaType = ScriptMediaType
	assert.True(t, a.Code())
}
