package frameseq

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ivlev/frameseq/internal/compositor"
	"github.com/ivlev/frameseq/internal/config"
)

// Option returns the current value of a named option. Callback names return
// the registered function. Unknown names are logged and report false.
func (p *Player) Option(name string) (any, bool) {
	o := p.s.Options()
	switch name {
	case "images":
		return append([]string(nil), o.Images...), true
	case "preload":
		return o.Preload, true
	case "preloadNumber":
		return o.PreloadNumber, true
	case "poster":
		return o.Poster, true
	case "fps":
		return o.FPS, true
	case "loop":
		return o.Loop, true
	case "autoplay":
		return o.Autoplay, true
	case "reverse":
		return o.Reverse, true
	case "ratio":
		return o.Ratio, true
	case "fillMode":
		return o.FillMode, true
	case "responsiveAspect":
		return o.ResponsiveAspect, true
	case "draggable":
		return o.Draggable, true
	case "inversion":
		return o.Inversion, true
	case "dragModifier":
		return o.DragModifier, true
	case "touchScrollMode":
		return o.TouchScrollMode, true
	case "pageScrollTimerDelay":
		return o.PageScrollTimerDelay, true
	case "fastPreview":
		return o.FastPreview, true
	case "onFastPreloadFinished":
		return p.cb.FastPreloadFinished, true
	case "onPreloadFinished":
		return p.cb.PreloadFinished, true
	case "onPosterLoaded":
		return p.cb.PosterLoaded, true
	case "onAnimationEnd":
		return p.cb.AnimationEnd, true
	case "onBeforeFrame":
		return p.cb.BeforeFrame, true
	case "onAfterFrame":
		return p.cb.AfterFrame, true
	}
	p.log.Warn().Str("option", name).Msg("not a valid option")
	return nil, false
}

// SetOption changes one option at runtime. Only fps, loop, reverse,
// inversion, ratio, fillMode, draggable, dragModifier, touchScrollMode,
// pageScrollTimerDelay and the callbacks may change; anything else, or a
// value of the wrong kind, is logged and ignored.
func (p *Player) SetOption(name string, value any) *Player {
	if err := p.setOption(name, value); err != nil {
		p.log.Warn().Str("option", name).Interface("value", value).Err(err).Msg("option not changed")
	}
	return p
}

var errNotAllowed = errors.New("not allowed in SetOption")

func (p *Player) setOption(name string, value any) error {
	s := p.s
	switch name {
	case "fps":
		v, err := number(value)
		if err != nil {
			return err
		}
		if !config.ValidFPS(v) {
			return fmt.Errorf("fps must be positive, got %v", v)
		}
		s.SetFPS(v)
	case "loop":
		v, err := boolean(value)
		if err != nil {
			return err
		}
		s.SetLoop(v)
	case "reverse":
		v, err := boolean(value)
		if err != nil {
			return err
		}
		s.SetReverse(v)
	case "inversion":
		v, err := boolean(value)
		if err != nil {
			return err
		}
		s.SetInversion(v)
	case "draggable":
		v, err := boolean(value)
		if err != nil {
			return err
		}
		s.SetDraggable(v)
	case "ratio":
		v, err := number(value)
		if err != nil {
			return err
		}
		if v <= 0 || math.IsInf(v, 0) {
			return fmt.Errorf("ratio must be positive, got %v", v)
		}
		s.SetRatio(v)
	case "fillMode":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("want a string, got %T", value)
		}
		mode, ok := compositor.ParseFillMode(v)
		if !ok {
			return fmt.Errorf("unknown fill mode %q", v)
		}
		s.SetFillMode(mode)
	case "dragModifier":
		v, err := number(value)
		if err != nil {
			return err
		}
		s.SetDragModifier(v)
	case "touchScrollMode":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("want a string, got %T", value)
		}
		if !config.ValidTouchScrollMode(v) {
			return fmt.Errorf("unknown touch scroll mode %q", v)
		}
		s.SetTouchScrollMode(v)
	case "pageScrollTimerDelay":
		d, err := duration(value)
		if err != nil {
			return err
		}
		s.SetPageScrollTimerDelay(d)
	case "onFastPreloadFinished", "onPreloadFinished", "onPosterLoaded", "onAnimationEnd":
		return p.setEventCallback(name, value)
	case "onBeforeFrame", "onAfterFrame":
		return p.setFrameCallback(name, value)
	default:
		return errNotAllowed
	}
	return nil
}

func (p *Player) setEventCallback(name string, value any) error {
	var fn func(*Player)
	switch v := value.(type) {
	case nil:
	case func(*Player):
		fn = v
	default:
		return fmt.Errorf("want func(*Player), got %T", value)
	}
	switch name {
	case "onFastPreloadFinished":
		p.cb.FastPreloadFinished = fn
	case "onPreloadFinished":
		p.cb.PreloadFinished = fn
	case "onPosterLoaded":
		p.cb.PosterLoaded = fn
	case "onAnimationEnd":
		p.cb.AnimationEnd = fn
	}
	return nil
}

func (p *Player) setFrameCallback(name string, value any) error {
	var fn func(*Player, FrameInfo)
	switch v := value.(type) {
	case nil:
	case func(*Player, FrameInfo):
		fn = v
	default:
		return fmt.Errorf("want func(*Player, FrameInfo), got %T", value)
	}
	if name == "onBeforeFrame" {
		p.cb.BeforeFrame = fn
	} else {
		p.cb.AfterFrame = fn
	}
	return nil
}

func number(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	default:
		return 0, fmt.Errorf("want a number, got %T", v)
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("want a number, got NaN")
	}
	return f, nil
}

func boolean(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("want a bool, got %T", v)
	}
	return b, nil
}

// duration accepts a time.Duration, a duration string or milliseconds.
func duration(v any) (time.Duration, error) {
	var d time.Duration
	switch x := v.(type) {
	case time.Duration:
		d = x
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return 0, err
		}
		d = parsed
	default:
		ms, err := number(v)
		if err != nil {
			return 0, err
		}
		d = time.Duration(ms * float64(time.Millisecond))
	}
	if d < 0 {
		return 0, fmt.Errorf("delay must not be negative, got %v", d)
	}
	return d, nil
}
