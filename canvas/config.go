package canvas

import (
	"fmt"
	"time"
)

type Config struct {
	Channel string `yaml:"channel"`
	Server  struct {
		BaseURL string `yaml:"baseUrl"`
		Listen  string `yaml:"listen"`
	} `yaml:"server"`
	Mqtt struct {
		URL      string `yaml:"url"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Topics   struct {
			Events       string `yaml:"events"`
			ScriptErrors string `yaml:"scriptErrors"`
		} `yaml:"topics"`
	} `yaml:"mqtt"`
	Render struct {
		Width      int     `yaml:"width"`
		Height     int     `yaml:"height"`
		FPS        int     `yaml:"fps"`
		Background string  `yaml:"background"`
		Smoothing  float64 `yaml:"smoothing"`
	} `yaml:"render"`
}

// EventsTopic is the channel-scoped topic carrying sync events.
func (c Config) EventsTopic() string {
	if c.Mqtt.Topics.Events != "" {
		return c.Mqtt.Topics.Events
	}
	return fmt.Sprintf("imgfloat/channels/%s/events", c.Channel)
}

// ScriptErrorsTopic is the operator-facing topic for code asset failures.
func (c Config) ScriptErrorsTopic() string {
	if c.Mqtt.Topics.ScriptErrors != "" {
		return c.Mqtt.Topics.ScriptErrors
	}
	return fmt.Sprintf("imgfloat/channels/%s/script-errors", c.Channel)
}

// FrameInterval is the render cadence, 30fps unless configured.
func (c Config) FrameInterval() time.Duration {
	fps := c.Render.FPS
	if fps <= 0 {
		fps = 30
	}
	return time.Second / time.Duration(fps)
}

// SmoothingFactor is the per-frame interpolation factor for render states.
func (c Config) SmoothingFactor() float64 {
	if c.Render.Smoothing > 0 && c.Render.Smoothing <= 1 {
		return c.Render.Smoothing
	}
	return 0.15
}

func (c Config) SurfaceWidth() int {
	if c.Render.Width > 0 {
		return c.Render.Width
	}
	return 1920
}

func (c Config) SurfaceHeight() int {
	if c.Render.Height > 0 {
		return c.Render.Height
	}
	return 1080
}
