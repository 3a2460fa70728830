// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigcapt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ManuGH/sigcapt/internal/log"
)

// Defaults match a 640x480 pad reached on the service's standard port.
const (
	DefaultWidth         = 640
	DefaultHeight        = 480
	DefaultInkWidth      = 0.7
	DefaultDetectTimeout = 1500 * time.Millisecond
	DefaultServicePort   = 8000
)

// ErrInvalidSettings is returned by Initialize for unusable settings.
var ErrInvalidSettings = errors.New("invalid settings")

// BitmapSettings shape the rendered signature image.
type BitmapSettings struct {
	Width    int     `yaml:"width" json:"width"`
	Height   int     `yaml:"height" json:"height"`
	PaddingX int     `yaml:"paddingX" json:"paddingX"`
	PaddingY int     `yaml:"paddingY" json:"paddingY"`
	InkWidth float64 `yaml:"inkWidth" json:"inkWidth"`
}

// Explicit marks override fields whose zero value is meant literally.
// Fields that must be positive need no flag: zero always keeps them.
type Explicit uint8

const (
	ExplicitLicence Explicit = 1 << iota
	ExplicitPaddingX
	ExplicitPaddingY
)

// Settings are supplied at Initialize and read-only for the session.
type Settings struct {
	Licence       string         `yaml:"licence" json:"licence"`
	Bitmap        BitmapSettings `yaml:"bitmap" json:"bitmap"`
	DetectTimeout time.Duration  `yaml:"detectTimeout" json:"detectTimeout"`
	ServicePort   int            `yaml:"servicePort" json:"servicePort"`

	// Output receives debug output. nil keeps it on the process logger.
	Output io.Writer `yaml:"-" json:"-"`

	// Explicit is only read from a Merge override.
	Explicit Explicit `yaml:"-" json:"-"`
}

// DefaultSettings returns the settings used before Initialize.
func DefaultSettings() Settings {
	return Settings{
		Bitmap: BitmapSettings{
			Width:    DefaultWidth,
			Height:   DefaultHeight,
			InkWidth: DefaultInkWidth,
		},
		DetectTimeout: DefaultDetectTimeout,
		ServicePort:   DefaultServicePort,
	}
}

// ConsoleOutput writes human readable debug lines to stderr.
func ConsoleOutput() io.Writer {
	return log.ConsoleSink(os.Stderr)
}

// FuncOutput delivers each debug line to fn.
func FuncOutput(fn func(line string)) io.Writer {
	return log.FuncSink(fn)
}

// Merge overlays override onto base. A zero field of override keeps the
// base value unless override.Explicit flags it, which clears the licence or
// resets a padding to 0.
func Merge(base, override Settings) Settings {
	out := base
	out.Explicit = 0
	if override.Licence != "" || override.Explicit&ExplicitLicence != 0 {
		out.Licence = override.Licence
	}
	if override.Bitmap.Width != 0 {
		out.Bitmap.Width = override.Bitmap.Width
	}
	if override.Bitmap.Height != 0 {
		out.Bitmap.Height = override.Bitmap.Height
	}
	if override.Bitmap.PaddingX != 0 || override.Explicit&ExplicitPaddingX != 0 {
		out.Bitmap.PaddingX = override.Bitmap.PaddingX
	}
	if override.Bitmap.PaddingY != 0 || override.Explicit&ExplicitPaddingY != 0 {
		out.Bitmap.PaddingY = override.Bitmap.PaddingY
	}
	if override.Bitmap.InkWidth != 0 {
		out.Bitmap.InkWidth = override.Bitmap.InkWidth
	}
	if override.DetectTimeout != 0 {
		out.DetectTimeout = override.DetectTimeout
	}
	if override.ServicePort != 0 {
		out.ServicePort = override.ServicePort
	}
	if override.Output != nil {
		out.Output = override.Output
	}
	return out
}

// Validate checks that the settings can drive a session.
func (s Settings) Validate() error {
	var errs []error
	if s.Bitmap.Width <= 0 || s.Bitmap.Height <= 0 {
		errs = append(errs, fmt.Errorf("bitmap size %dx%d must be positive", s.Bitmap.Width, s.Bitmap.Height))
	}
	if s.Bitmap.PaddingX < 0 || s.Bitmap.PaddingY < 0 {
		errs = append(errs, fmt.Errorf("bitmap padding %d/%d must not be negative", s.Bitmap.PaddingX, s.Bitmap.PaddingY))
	}
	if s.Bitmap.InkWidth <= 0 {
		errs = append(errs, fmt.Errorf("ink width %v must be positive", s.Bitmap.InkWidth))
	}
	if s.DetectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("detect timeout %s must be positive", s.DetectTimeout))
	}
	if s.ServicePort <= 0 || s.ServicePort > 65535 {
		errs = append(errs, fmt.Errorf("service port %d out of range", s.ServicePort))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}
