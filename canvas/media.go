package canvas

import (
	"image"
	"strings"

	"github.com/fogleman/gg"
	"github.com/h2non/filetype"
	"github.com/rs/zerolog"
)

// A Fetcher loads the bytes behind a media reference.
type Fetcher func(url string) ([]byte, error)

// A MediaHandle resolves one asset into something drawable. Variants cover
// static images, videos and animated sequences; code assets bypass the
// resolver entirely and draw through the script runtime.
type MediaHandle interface {
	// URL is the media reference the handle was created from.
	URL() string
	// Ready reports whether the handle can be drawn this frame.
	Ready() bool
	// Draw paints the handle onto dc scaled into the given rect. The caller
	// has already applied the rotation transform.
	Draw(dc *gg.Context, x, y, w, h float64)
	// Apply re-applies the asset's mutable playback state.
	Apply(a Asset)
	// Release stops timers and decoders and frees the handle's resources.
	// A released handle never publishes another frame.
	Release()
}

// fallible handles failed to open their decoder and are replaced with a
// static fallback on the next resolve.
type fallible interface {
	Failed() bool
}

// A Resolver caches drawable handles per asset, keyed by (id, url). A url
// change releases the old handle before the replacement is created, so two
// decode loops never race for the same id.
type Resolver struct {
	fetch   Fetcher
	clock   Clock
	post    func(func())
	handles map[string]MediaHandle
	log     zerolog.Logger
}

// NewResolver creates a Resolver. Async completions are posted back onto the
// compositor goroutine through post.
func NewResolver(fetch Fetcher, clock Clock, post func(func()), log zerolog.Logger) *Resolver {
	r := new(Resolver)
	r.fetch = fetch
	r.clock = clock
	r.post = post
	r.handles = make(map[string]MediaHandle)
	r.log = log
	return r
}

// Resolve returns the handle for the asset, creating or replacing it when
// the url changed. Mutable playback state is re-applied on every call so
// operator edits take effect without recreating the handle.
func (r *Resolver) Resolve(a Asset) MediaHandle {
	h, ok := r.handles[a.ID]
	if ok && h.URL() == a.URL {
		if f, bad := h.(fallible); bad && f.Failed() {
			h.Release()
			h = newStaticHandle(a, r.fetch, r.post, r.log)
			r.handles[a.ID] = h
		}
		h.Apply(a)
		return h
	}
	if ok {
		h.Release()
	}
	h = r.create(a)
	r.handles[a.ID] = h
	h.Apply(a)
	return h
}

func (r *Resolver) create(a Asset) MediaHandle {
	switch {
	case isVideoType(a.MediaType):
		return newVideoHandle(a, r.fetch, r.clock, r.post, r.log)
	case isAnimatedType(a.MediaType):
		return newAnimatedHandle(a, r.fetch, r.clock, r.post, r.log)
	case a.MediaType == "":
		// Legacy assets carry no media type; sniff the bytes.
		return newSniffedHandle(a, r.fetch, r.clock, r.post, r.log)
	default:
		return newStaticHandle(a, r.fetch, r.post, r.log)
	}
}

// Drop releases and forgets the handle for a removed or hidden asset.
func (r *Resolver) Drop(id string) {
	if h, ok := r.handles[id]; ok {
		h.Release()
		delete(r.handles, id)
	}
}

// ReleaseAll tears down every cached handle, used on surface detach.
func (r *Resolver) ReleaseAll() {
	for id, h := range r.handles {
		h.Release()
		delete(r.handles, id)
	}
}

func isVideoType(mediaType string) bool {
	return strings.HasPrefix(mediaType, "video/")
}

func isAnimatedType(mediaType string) bool {
	return mediaType == "image/gif"
}

func drawImageScaled(dc *gg.Context, img image.Image, x, y, w, h float64) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	dc.Push()
	dc.Translate(x, y)
	dc.Scale(w/float64(b.Dx()), h/float64(b.Dy()))
	dc.DrawImage(img, 0, 0)
	dc.Pop()
}

// A sniffedHandle fetches the bytes once, classifies them, then defers to the
// matching concrete handle built from the prefetched bytes.
type sniffedHandle struct {
	url       string
	inner     MediaHandle
	cancelled bool
	pending   Asset
}

func newSniffedHandle(a Asset, fetch Fetcher, clock Clock, post func(func()), log zerolog.Logger) *sniffedHandle {
	h := new(sniffedHandle)
	h.url = a.URL
	h.pending = a
	go func() {
		data, err := fetch(a.URL)
		if err != nil {
			log.Warn().Err(err).Str("asset", a.ID).Msg("media fetch failed")
			return
		}
		prefetched := func(string) ([]byte, error) { return data, nil }
		post(func() {
			if h.cancelled {
				return
			}
			kind, _ := filetype.Match(data)
			switch {
			case filetype.IsVideo(data):
				h.inner = newVideoHandle(a, prefetched, clock, post, log)
			case kind.MIME.Value == "image/gif":
				h.inner = newAnimatedHandle(a, prefetched, clock, post, log)
			default:
				h.inner = newStaticHandle(a, prefetched, post, log)
			}
			h.inner.Apply(h.pending)
		})
	}()
	return h
}

func (h *sniffedHandle) URL() string {
	return h.url
}

func (h *sniffedHandle) Ready() bool {
	return h.inner != nil && h.inner.Ready()
}

func (h *sniffedHandle) Draw(dc *gg.Context, x, y, w, hh float64) {
	if h.inner != nil {
		h.inner.Draw(dc, x, y, w, hh)
	}
}

// Failed forwards the inner handle's decode failure, so a legacy asset that
// sniffed as animated gets the same static fallback as a typed one.
func (h *sniffedHandle) Failed() bool {
	f, ok := h.inner.(fallible)
	return ok && f.Failed()
}

func (h *sniffedHandle) Apply(a Asset) {
	h.pending = a
	if h.inner != nil {
		h.inner.Apply(a)
	}
}

func (h *sniffedHandle) Release() {
	h.cancelled = true
	if h.inner != nil {
		h.inner.Release()
		h.inner = nil
	}
}
