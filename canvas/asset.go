package canvas

import (
	"sort"
	"time"
)

// ScriptMediaType marks an asset whose drawable behaviour is a user script
// rather than a media file.
const ScriptMediaType = "text/x-imgfloat-script"

// An Asset is one visual item on the broadcast canvas. The shape mirrors the
// backend's asset view record.
type Asset struct {
	ID                string    `json:"id"`
	Broadcaster       string    `json:"broadcaster"`
	Name              string    `json:"name"`
	URL               string    `json:"url"`
	X                 float64   `json:"x"`
	Y                 float64   `json:"y"`
	Width             float64   `json:"width"`
	Height            float64   `json:"height"`
	Rotation          float64   `json:"rotation"`
	Speed             *float64  `json:"speed"`
	Muted             *bool     `json:"muted"`
	MediaType         string    `json:"mediaType"`
	OriginalMediaType string    `json:"originalMediaType"`
	ZIndex            int       `json:"zIndex"`
	Hidden            bool      `json:"hidden"`
	CreatedAt         time.Time `json:"createdAt"`
}

// PlaybackSpeed is the playback-rate multiplier; 0 means paused, unset means 1.
func (a *Asset) PlaybackSpeed() float64 {
	if a.Speed == nil {
		return 1
	}
	if *a.Speed < 0 {
		return 0
	}
	return *a.Speed
}

// IsMuted reports whether the asset's audio is muted. Unset means muted.
func (a *Asset) IsMuted() bool {
	if a.Muted == nil {
		return true
	}
	return *a.Muted
}

// Code reports whether the asset is script-backed.
func (a *Asset) Code() bool {
	return a.MediaType == ScriptMediaType
}

// ZLayer is the layering index, at least 1.
func (a *Asset) ZLayer() int {
	if a.ZIndex < 1 {
		return 1
	}
	return a.ZIndex
}

// Sync event types mirrored from the backend protocol.
const (
	EventCreated    = "CREATED"
	EventUpdated    = "UPDATED"
	EventVisibility = "VISIBILITY"
	EventDeleted    = "DELETED"
)

// A SyncEvent is one inbound message on the channel topic. DELETED carries
// only the id; the other types carry the full current asset.
type SyncEvent struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	AssetID string `json:"assetId"`
	Payload *Asset `json:"payload"`
}

// A Store is the canonical asset mapping for one channel, mutated only by
// sync events and the bulk seed.
type Store struct {
	viewer bool
	assets map[string]Asset
}

// NewStore creates an empty Store. A viewer store drops hidden assets
// entirely; an editing-surface store keeps them.
func NewStore(viewer bool) *Store {
	s := new(Store)
	s.viewer = viewer
	s.assets = make(map[string]Asset)
	return s
}

// Seed replaces the store contents with a bulk-fetched asset list.
func (s *Store) Seed(list []Asset) {
	s.assets = make(map[string]Asset, len(list))
	for _, a := range list {
		if a.ID == "" || (s.viewer && a.Hidden) {
			continue
		}
		s.assets[a.ID] = a
	}
}

// Apply folds one sync event into the store. It returns the ids whose cached
// resources must be released, and reports whether the event was well formed.
// Malformed events leave the store untouched.
func (s *Store) Apply(evt SyncEvent) (removed []string, ok bool) {
	switch evt.Type {
	case EventDeleted:
		if evt.AssetID == "" {
			return nil, false
		}
		delete(s.assets, evt.AssetID)
		return []string{evt.AssetID}, true
	case EventCreated, EventUpdated, EventVisibility:
		if evt.Payload == nil || evt.Payload.ID == "" {
			return nil, false
		}
		a := *evt.Payload
		if s.viewer && a.Hidden {
			delete(s.assets, a.ID)
			return []string{a.ID}, true
		}
		s.assets[a.ID] = a
		return nil, true
	}
	return nil, false
}

// Get returns the asset with the given id.
func (s *Store) Get(id string) (Asset, bool) {
	a, ok := s.assets[id]
	return a, ok
}

// Len returns the number of stored assets.
func (s *Store) Len() int {
	return len(s.assets)
}

// Visible returns the draw list: assets with hidden=false ordered by zIndex
// ascending, then createdAt ascending, then id.
func (s *Store) Visible() []Asset {
	out := make([]Asset, 0, len(s.assets))
	for _, a := range s.assets {
		if a.Hidden {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZLayer() != out[j].ZLayer() {
			return out[i].ZLayer() < out[j].ZLayer()
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
