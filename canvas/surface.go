package canvas

import (
	"bytes"
	"image/png"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
)

// A Surface is the drawing target shared by the compositor and code assets.
type Surface struct {
	dc          *gg.Context
	background  colorful.Color
	transparent bool
}

// NewSurface creates a Surface of the given size. An empty background keeps
// the canvas transparent, which is what an overlay normally wants.
func NewSurface(width int, height int, background string) (*Surface, error) {
	s := new(Surface)
	s.dc = gg.NewContext(width, height)
	if background == "" {
		s.transparent = true
		return s, nil
	}
	c, err := colorful.Hex(background)
	if err != nil {
		return nil, err
	}
	s.background = c
	return s, nil
}

// Context exposes the drawing context, also handed to code assets.
func (s *Surface) Context() *gg.Context {
	return s.dc
}

// Clear resets the surface for a new frame.
func (s *Surface) Clear() {
	if s.transparent {
		s.dc.SetRGBA(0, 0, 0, 0)
	} else {
		s.dc.SetRGB(s.background.R, s.background.G, s.background.B)
	}
	s.dc.Clear()
}

// EncodeFrame converts the current surface contents into a PNG frame for the
// viewer stream.
func (s *Surface) EncodeFrame() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Surface) Width() int {
	return s.dc.Width()
}

func (s *Surface) Height() int {
	return s.dc.Height()
}
