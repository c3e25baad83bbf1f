package canvas

import (
	"bytes"
	"image"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
)

// A staticHandle is the MediaHandle for still images. It is ready once the
// image is fully fetched and decoded.
type staticHandle struct {
	url       string
	img       image.Image
	cancelled bool
}

func newStaticHandle(a Asset, fetch Fetcher, post func(func()), log zerolog.Logger) *staticHandle {
	h := new(staticHandle)
	h.url = a.URL
	go func() {
		data, err := fetch(a.URL)
		if err != nil {
			log.Warn().Err(err).Str("asset", a.ID).Msg("image fetch failed")
			return
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			log.Warn().Err(err).Str("asset", a.ID).Msg("image decode failed")
			return
		}
		post(func() {
			if h.cancelled {
				return
			}
			h.img = img
		})
	}()
	return h
}

func (h *staticHandle) URL() string {
	return h.url
}

func (h *staticHandle) Ready() bool {
	return h.img != nil
}

func (h *staticHandle) Draw(dc *gg.Context, x, y, w, hh float64) {
	if h.img == nil {
		return
	}
	drawImageScaled(dc, h.img, x, y, w, hh)
}

func (h *staticHandle) Apply(a Asset) {}

func (h *staticHandle) Release() {
	h.cancelled = true
	h.img = nil
}
