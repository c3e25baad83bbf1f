package canvas

import (
	"bytes"
	"image"
	"image/draw"
	"image/gif"
	"time"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
)

const defaultFrameDelay = 100 * time.Millisecond

// An animatedHandle steps through an animated image sequence, holding one
// live frame at a time. Each step publishes a frame and schedules the next
// one after the frame's declared duration; the sequence loops indefinitely.
// Once cancelled, no continuation publishes or reschedules, even if a step
// was already in flight.
type animatedHandle struct {
	url         string
	assetID     string
	seq         *gif.GIF
	index       int
	buffer      *image.RGBA
	frame       image.Image
	cancelTimer func()
	cancelled   bool
	failed      bool
	clock       Clock
	post        func(func())
	log         zerolog.Logger
}

func newAnimatedHandle(a Asset, fetch Fetcher, clock Clock, post func(func()), log zerolog.Logger) *animatedHandle {
	h := new(animatedHandle)
	h.url = a.URL
	h.assetID = a.ID
	h.clock = clock
	h.post = post
	h.log = log
	go func() {
		data, err := fetch(a.URL)
		if err != nil {
			log.Warn().Err(err).Str("asset", a.ID).Msg("animation fetch failed")
			post(func() { h.failed = true })
			return
		}
		seq, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil || len(seq.Image) == 0 {
			log.Warn().Err(err).Str("asset", a.ID).Msg("animation decode failed")
			post(func() { h.failed = true })
			return
		}
		post(func() {
			if h.cancelled {
				return
			}
			h.seq = seq
			w, hh := seq.Config.Width, seq.Config.Height
			if w == 0 || hh == 0 {
				b := seq.Image[0].Bounds()
				w, hh = b.Max.X, b.Max.Y
			}
			h.buffer = image.NewRGBA(image.Rect(0, 0, w, hh))
			h.step()
		})
	}()
	return h
}

// step decodes one frame, publishes it and schedules the next step.
func (h *animatedHandle) step() {
	if h.cancelled || h.seq == nil {
		return
	}
	if h.index == 0 {
		// Back at the first frame: reset the composition buffer.
		for i := range h.buffer.Pix {
			h.buffer.Pix[i] = 0
		}
	}
	src := h.seq.Image[h.index]
	draw.Draw(h.buffer, src.Bounds(), src, src.Bounds().Min, draw.Over)
	h.frame = h.buffer

	delay := time.Duration(h.seq.Delay[h.index]) * 10 * time.Millisecond
	if delay <= 0 {
		delay = defaultFrameDelay
	}

	h.index++
	if h.index >= len(h.seq.Image) {
		// Sequence exhausted; loop from the first frame.
		h.index = 0
	}
	h.cancelTimer = h.clock.After(delay, func() {
		h.post(h.step)
	})
}

func (h *animatedHandle) URL() string {
	return h.url
}

func (h *animatedHandle) Ready() bool {
	return h.frame != nil
}

func (h *animatedHandle) Failed() bool {
	return h.failed
}

func (h *animatedHandle) Draw(dc *gg.Context, x, y, w, hh float64) {
	if h.frame == nil {
		return
	}
	drawImageScaled(dc, h.frame, x, y, w, hh)
}

func (h *animatedHandle) Apply(a Asset) {}

func (h *animatedHandle) Release() {
	h.cancelled = true
	if h.cancelTimer != nil {
		h.cancelTimer()
		h.cancelTimer = nil
	}
	h.frame = nil
	h.buffer = nil
	h.seq = nil
}
