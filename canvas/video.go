package canvas

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"github.com/zergon321/reisen"
)

// A videoHandle plays a looping video. The fetched bytes are spooled to a
// temp file for the decoder; frames advance on one-shot timers scaled by the
// asset's playback rate. Audio streams are never opened: the broadcast
// surface is a silent overlay, so muted is recorded but has no playout here.
type videoHandle struct {
	url         string
	assetID     string
	media       *reisen.Media
	stream      *reisen.VideoStream
	frame       image.Image
	spf         time.Duration
	rate        float64
	paused      bool
	muted       bool
	tmp         string
	cancelTimer func()
	cancelled   bool
	scheduled   bool
	clock       Clock
	post        func(func())
	log         zerolog.Logger
}

func newVideoHandle(a Asset, fetch Fetcher, clock Clock, post func(func()), log zerolog.Logger) *videoHandle {
	h := new(videoHandle)
	h.url = a.URL
	h.assetID = a.ID
	h.rate = 1
	h.clock = clock
	h.post = post
	h.log = log
	go func() {
		data, err := fetch(a.URL)
		if err != nil {
			log.Warn().Err(err).Str("asset", a.ID).Msg("video fetch failed")
			return
		}
		tmp, err := spoolVideo(data)
		if err != nil {
			log.Warn().Err(err).Str("asset", a.ID).Msg("video spool failed")
			return
		}
		post(func() {
			if h.cancelled {
				os.Remove(tmp)
				return
			}
			h.tmp = tmp
			if err := h.open(); err != nil {
				h.log.Warn().Err(err).Str("asset", h.assetID).Msg("video open failed")
				h.closeDecoder()
			}
		})
	}()
	return h
}

func spoolVideo(data []byte) (string, error) {
	f, err := os.CreateTemp("", "imgfloat-video-*")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (h *videoHandle) open() error {
	media, err := reisen.NewMedia(h.tmp)
	if err != nil {
		return err
	}
	h.media = media
	if err := media.OpenDecode(); err != nil {
		return err
	}
	streams := media.VideoStreams()
	if len(streams) == 0 {
		return fmt.Errorf("no video streams in %s", h.url)
	}
	h.stream = streams[0]
	if err := h.stream.Open(); err != nil {
		return err
	}
	fps, _ := h.stream.FrameRate()
	if fps <= 0 {
		fps = 30
	}
	h.spf = time.Second / time.Duration(fps)

	frame, err := h.decodeFrame()
	if err != nil {
		return err
	}
	h.frame = frame
	h.schedule()
	return nil
}

// decodeFrame reads packets until the next video frame, rewinding at end of
// media so playback loops.
func (h *videoHandle) decodeFrame() (image.Image, error) {
	rewound := false
	for {
		packet, got, err := h.media.ReadPacket()
		if err != nil {
			return nil, err
		}
		if !got {
			if rewound {
				return nil, fmt.Errorf("no decodable frames in %s", h.url)
			}
			if err := h.stream.Rewind(0); err != nil {
				return nil, err
			}
			rewound = true
			continue
		}
		if packet.Type() != reisen.StreamVideo {
			continue
		}
		s := h.media.Streams()[packet.StreamIndex()].(*reisen.VideoStream)
		frame, gotFrame, err := s.ReadVideoFrame()
		if err != nil {
			return nil, err
		}
		if !gotFrame || frame == nil {
			continue
		}
		return frame.Image(), nil
	}
}

func (h *videoHandle) schedule() {
	if h.cancelled || h.paused || h.stream == nil {
		h.scheduled = false
		return
	}
	h.scheduled = true
	delay := time.Duration(float64(h.spf) / h.rate)
	h.cancelTimer = h.clock.After(delay, func() {
		h.post(h.step)
	})
}

func (h *videoHandle) step() {
	if h.cancelled || h.paused || h.stream == nil {
		h.scheduled = false
		return
	}
	frame, err := h.decodeFrame()
	if err != nil {
		// Abandoned: keep the last frame on screen, stop the decode loop.
		h.log.Warn().Err(err).Str("asset", h.assetID).Msg("video decode failed")
		h.scheduled = false
		h.closeDecoder()
		return
	}
	h.frame = frame
	h.schedule()
}

func (h *videoHandle) URL() string {
	return h.url
}

func (h *videoHandle) Ready() bool {
	return h.frame != nil
}

func (h *videoHandle) Draw(dc *gg.Context, x, y, w, hh float64) {
	if h.frame == nil {
		return
	}
	drawImageScaled(dc, h.frame, x, y, w, hh)
}

// Apply re-applies mute, rate and pause state on every resolve so operator
// edits take effect without recreating the handle.
func (h *videoHandle) Apply(a Asset) {
	h.muted = a.IsMuted()
	speed := a.PlaybackSpeed()
	if speed == 0 {
		h.paused = true
		if h.cancelTimer != nil {
			h.cancelTimer()
			h.cancelTimer = nil
		}
		h.scheduled = false
		return
	}
	h.rate = speed
	if h.rate < 0.01 {
		h.rate = 0.01
	}
	wasPaused := h.paused
	h.paused = false
	if (wasPaused || !h.scheduled) && h.frame != nil {
		h.schedule()
	}
}

func (h *videoHandle) closeDecoder() {
	if h.stream != nil {
		h.stream.Close()
		h.stream = nil
	}
	if h.media != nil {
		h.media.CloseDecode()
		h.media.Close()
		h.media = nil
	}
}

func (h *videoHandle) Release() {
	h.cancelled = true
	if h.cancelTimer != nil {
		h.cancelTimer()
		h.cancelTimer = nil
	}
	h.frame = nil
	h.closeDecoder()
	if h.tmp != "" {
		os.Remove(h.tmp)
		h.tmp = ""
	}
}
