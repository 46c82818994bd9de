package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Preload modes.
const (
	PreloadAll     = "all"
	PreloadPartial = "partial"
	PreloadNone    = "none"
)

// Fill modes.
const (
	FillCover   = "cover"
	FillContain = "contain"
)

// Touch scroll modes.
const (
	ScrollPrevent = "preventPageScroll"
	ScrollAllow   = "allowPageScroll"
	ScrollTimer   = "pageScrollTimer"
)

// Responsive axes.
const (
	AxisWidth  = "width"
	AxisHeight = "height"
)

var (
	ErrTooFewImages        = errors.New("images must contain at least 2 entries")
	ErrNoFastPreviewImages = errors.New("fast preview requires its own images")
)

// FastPreview configures a small image set shown before the full set loads.
type FastPreview struct {
	Images   []string `yaml:"images"`
	FPSAfter float64  `yaml:"fps_after,omitempty"`
	// MatchFrame maps a frame of the preview set onto the full set. Frame 1
	// is used when it is nil.
	MatchFrame func(previewFrame int) int `yaml:"-"`
}

type Options struct {
	Images        []string `yaml:"images" env:"FRAMESEQ_IMAGES" envSeparator:","`
	Preload       string   `yaml:"preload" env:"FRAMESEQ_PRELOAD"`
	PreloadNumber int      `yaml:"preload_number" env:"FRAMESEQ_PRELOAD_NUMBER"`
	Poster        string   `yaml:"poster,omitempty" env:"FRAMESEQ_POSTER"`

	FPS      float64 `yaml:"fps" env:"FRAMESEQ_FPS"`
	Loop     bool    `yaml:"loop" env:"FRAMESEQ_LOOP"`
	Autoplay bool    `yaml:"autoplay" env:"FRAMESEQ_AUTOPLAY"`
	Reverse  bool    `yaml:"reverse" env:"FRAMESEQ_REVERSE"`

	Ratio            float64 `yaml:"ratio,omitempty" env:"FRAMESEQ_RATIO"`
	FillMode         string  `yaml:"fill_mode" env:"FRAMESEQ_FILL_MODE"`
	ResponsiveAspect string  `yaml:"responsive_aspect" env:"FRAMESEQ_RESPONSIVE_ASPECT"`

	Draggable            bool          `yaml:"draggable" env:"FRAMESEQ_DRAGGABLE"`
	Inversion            bool          `yaml:"inversion" env:"FRAMESEQ_INVERSION"`
	DragModifier         float64       `yaml:"drag_modifier" env:"FRAMESEQ_DRAG_MODIFIER"`
	TouchScrollMode      string        `yaml:"touch_scroll_mode" env:"FRAMESEQ_TOUCH_SCROLL_MODE"`
	PageScrollTimerDelay time.Duration `yaml:"page_scroll_timer_delay" env:"FRAMESEQ_PAGE_SCROLL_TIMER_DELAY"`

	FastPreview *FastPreview `yaml:"fast_preview,omitempty"`
}

// Default returns options with every default applied and no images.
func Default() Options {
	return Options{
		Preload:              PreloadAll,
		FPS:                  30,
		FillMode:             FillCover,
		ResponsiveAspect:     AxisWidth,
		DragModifier:         1,
		TouchScrollMode:      ScrollTimer,
		PageScrollTimerDelay: 1500 * time.Millisecond,
	}
}

// Load reads a yaml options file on top of Default.
func Load(path string) (*Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	o := Default()
	if err := yaml.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &o, nil
}

func Save(path string, o *Options) error {
	b, err := yaml.Marshal(o)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// ApplyEnv overrides o with any FRAMESEQ_* variables that are set.
func ApplyEnv(o *Options) error {
	if err := env.Parse(o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports construction errors. It does not change o.
func (o *Options) Validate() error {
	if len(o.Images) < 2 {
		return ErrTooFewImages
	}
	if o.FastPreview != nil && len(o.FastPreview.Images) == 0 {
		return ErrNoFastPreviewImages
	}
	return nil
}

// Normalize coerces or resets values that are out of their domain, logging a
// warning for each one it resets.
func (o *Options) Normalize(log zerolog.Logger) {
	def := Default()
	if !oneOf(o.Preload, PreloadAll, PreloadPartial, PreloadNone) {
		if o.Preload != "" {
			log.Warn().Str("option", "preload").Str("value", o.Preload).Msg("invalid value; using default")
		}
		o.Preload = def.Preload
	}
	if o.PreloadNumber < 0 {
		o.PreloadNumber = 0
	}
	if !ValidFPS(o.FPS) {
		if o.FPS != 0 {
			log.Warn().Str("option", "fps").Float64("value", o.FPS).Msg("invalid value; using default")
		}
		o.FPS = def.FPS
	}
	if !ValidFillMode(o.FillMode) {
		if o.FillMode != "" {
			log.Warn().Str("option", "fillMode").Str("value", o.FillMode).Msg("invalid value; using default")
		}
		o.FillMode = def.FillMode
	}
	if !oneOf(o.ResponsiveAspect, AxisWidth, AxisHeight) {
		o.ResponsiveAspect = def.ResponsiveAspect
	}
	if !ValidTouchScrollMode(o.TouchScrollMode) {
		o.TouchScrollMode = def.TouchScrollMode
	}
	if o.PageScrollTimerDelay < 0 {
		o.PageScrollTimerDelay = def.PageScrollTimerDelay
	}
	o.DragModifier = CoerceDragModifier(o.DragModifier)
	if o.Ratio < 0 || math.IsNaN(o.Ratio) || math.IsInf(o.Ratio, 0) {
		o.Ratio = 0
	}
}

// CoerceDragModifier makes the sensitivity factor non-negative.
func CoerceDragModifier(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Abs(v)
}

func ValidFPS(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func ValidFillMode(v string) bool {
	return oneOf(v, FillCover, FillContain)
}

func ValidTouchScrollMode(v string) bool {
	return oneOf(v, ScrollPrevent, ScrollAllow, ScrollTimer)
}

func oneOf(v string, set ...string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
