// Package frameseq plays pre-rendered image sequences frame by frame: 360°
// product turntables and similar "scrub through a sequence" animations.
//
// A Player draws onto a Surface and runs on a Host loop. Hosts call the
// loop once per display refresh; the player changes frames at the
// configured rate no matter how fast the display refreshes, loads images in
// the background and lets the user drag the sequence around.
package frameseq

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ivlev/frameseq/internal/compositor"
	"github.com/ivlev/frameseq/internal/config"
	"github.com/ivlev/frameseq/internal/events"
	"github.com/ivlev/frameseq/internal/gesture"
	"github.com/ivlev/frameseq/internal/host"
	"github.com/ivlev/frameseq/internal/preload"
	"github.com/ivlev/frameseq/internal/session"
	"github.com/ivlev/frameseq/internal/source"
)

var (
	ErrNoSurface           = errors.New("no drawing surface")
	ErrNoHost              = errors.New("no host loop")
	ErrTooFewImages        = config.ErrTooFewImages
	ErrNoFastPreviewImages = config.ErrNoFastPreviewImages
)

type (
	Options     = config.Options
	FastPreview = config.FastPreview
	Surface     = session.Surface
	Host        = host.Scheduler
	Loader      = preload.Loader
	LoaderFunc  = preload.LoaderFunc
	Event       = events.Event
	FrameInfo   = compositor.FrameInfo
	Sample      = gesture.Sample
	Result      = gesture.Result
)

// Event names, re-exported for listeners.
const (
	EventLoadingProgress     = events.LoadingProgress
	EventLoadingError        = events.LoadingError
	EventPreloadFinished     = events.PreloadFinished
	EventFastPreloadFinished = events.FastPreloadFinished
	EventPosterLoaded        = events.PosterLoaded
	EventAnimationEnd        = events.AnimationEnd
	EventDragStart           = events.DragStart
	EventDragChange          = events.DragChange
	EventDragEnd             = events.DragEnd
)

// Pointer phases for HandlePointer.
const (
	PointerStart  = gesture.Start
	PointerMove   = gesture.Move
	PointerEnd    = gesture.End
	PointerCancel = gesture.Cancel
)

// DefaultOptions returns every option at its default and no images.
func DefaultOptions() Options { return config.Default() }

// Callbacks run after the event of the same name is emitted.
type Callbacks struct {
	FastPreloadFinished func(*Player)
	PreloadFinished     func(*Player)
	PosterLoaded        func(*Player)
	AnimationEnd        func(*Player)
	BeforeFrame         func(*Player, FrameInfo)
	AfterFrame          func(*Player, FrameInfo)
}

type Config struct {
	Host    Host
	Surface Surface
	// Loader fetches frames and the poster; a source.FileLoader when nil.
	Loader Loader
	// Log defaults to the global zerolog logger.
	Log *zerolog.Logger
	// Concurrency bounds parallel image loads; zero sizes it from the machine.
	Concurrency int64
}

type Player struct {
	s   *session.Session
	log zerolog.Logger
	cb  Callbacks
}

// New validates opts and starts a player: the surface is sized, the poster
// and the configured preload start, then autoplay and drag are applied.
func New(cfg Config, opts Options, cb Callbacks) (*Player, error) {
	if cfg.Surface == nil {
		return nil, fmt.Errorf("frameseq: %w", ErrNoSurface)
	}
	if cfg.Host == nil {
		return nil, fmt.Errorf("frameseq: %w", ErrNoHost)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("frameseq: invalid options: %w", err)
	}

	logger := log.Logger
	if cfg.Log != nil {
		logger = *cfg.Log
	}
	logger = logger.With().Str("component", "frameseq").Logger()
	opts.Normalize(logger)

	loader := cfg.Loader
	if loader == nil {
		loader = source.NewFileLoader(logger)
	}

	p := &Player{log: logger, cb: cb}
	p.s = session.New(session.Config{
		Options:     opts,
		Surface:     cfg.Surface,
		Scheduler:   cfg.Host,
		Poster:      cfg.Host,
		Loader:      loader,
		Callbacks:   p.sessionCallbacks(),
		Log:         logger,
		Concurrency: cfg.Concurrency,
	})
	return p, nil
}

func (p *Player) sessionCallbacks() session.Callbacks {
	return session.Callbacks{
		FastPreloadFinished: func() {
			if p.cb.FastPreloadFinished != nil {
				p.cb.FastPreloadFinished(p)
			}
		},
		PreloadFinished: func() {
			if p.cb.PreloadFinished != nil {
				p.cb.PreloadFinished(p)
			}
		},
		PosterLoaded: func() {
			if p.cb.PosterLoaded != nil {
				p.cb.PosterLoaded(p)
			}
		},
		AnimationEnd: func() {
			if p.cb.AnimationEnd != nil {
				p.cb.AnimationEnd(p)
			}
		},
		BeforeFrame: func(info FrameInfo) {
			if p.cb.BeforeFrame != nil {
				p.cb.BeforeFrame(p, info)
			}
		},
		AfterFrame: func(info FrameInfo) {
			if p.cb.AfterFrame != nil {
				p.cb.AfterFrame(p, info)
			}
		},
	}
}

// On registers fn for the named event and returns a function removing it.
func (p *Player) On(name string, fn func(Event)) (remove func()) {
	return p.s.Bus().On(name, fn)
}

// Play starts an endless animation in the current direction.
func (p *Player) Play() *Player { p.s.Play(); return p }

func (p *Player) Stop() *Player { p.s.Stop(); return p }

func (p *Player) Toggle() *Player { p.s.Toggle(); return p }

// Next shows the following frame in the current direction.
func (p *Player) Next() *Player { p.s.Next(); return p }

func (p *Player) Prev() *Player { p.s.Prev(); return p }

// SetFrame shows frame n, floored and clamped into [1, TotalFrames].
func (p *Player) SetFrame(n float64) *Player { p.s.SetFrame(n); return p }

// Reset stops and shows the first frame.
func (p *Player) Reset() *Player { p.s.Reset(); return p }

// PlayTo plays until frame n. With shortestPath and loop it crosses the end
// of the sequence when that path is shorter.
func (p *Player) PlayTo(n float64, shortestPath bool) *Player {
	p.s.PlayTo(n, shortestPath)
	return p
}

// PlayFrames plays n frames in the current direction and stops.
func (p *Player) PlayFrames(n float64) *Player { p.s.PlayFrames(n); return p }

func (p *Player) SetReverse(reverse bool) *Player { p.s.SetReverse(reverse); return p }

func (p *Player) SetForward(forward bool) *Player { p.s.SetReverse(!forward); return p }

func (p *Player) Reverse() bool { return p.s.Reverse() }

// PreloadImages loads n more images; n <= 0 loads the rest.
func (p *Player) PreloadImages(n float64) *Player { p.s.PreloadImages(n); return p }

// UpdateCanvas re-runs sizing after the surface's layout size changed.
func (p *Player) UpdateCanvas() *Player { p.s.UpdateSurface(); return p }

// HandlePointer feeds one pointer sample. It is ignored unless the player
// is draggable.
func (p *Player) HandlePointer(s Sample) Result { return p.s.HandlePointer(s) }

func (p *Player) CurrentFrame() int         { return p.s.CurrentFrame() }
func (p *Player) TotalFrames() int          { return p.s.TotalFrames() }
func (p *Player) Ratio() float64            { return p.s.Ratio() }
func (p *Player) Animating() bool           { return p.s.Animating() }
func (p *Player) Dragging() bool            { return p.s.Dragging() }
func (p *Player) PreloadFinished() bool     { return p.s.PreloadFinished() }
func (p *Player) FastPreloadFinished() bool { return p.s.FastPreloadFinished() }
func (p *Player) LoadedWithErrors() bool    { return p.s.LoadedWithErrors() }
func (p *Player) Surface() Surface          { return p.s.Surface() }

// Destroy stops the animation, clears the surface, disables drag and drops
// loads still in flight. The player does nothing afterwards.
func (p *Player) Destroy() { p.s.Destroy() }
