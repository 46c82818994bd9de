// Package session owns the state of one player and is the only place that
// changes it. It wires the preload controller, the frame clock, the drag
// mapper, the compositor and the sizing controller together and decides the
// order in which they act.
package session

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/ivlev/frameseq/internal/clock"
	"github.com/ivlev/frameseq/internal/compositor"
	"github.com/ivlev/frameseq/internal/config"
	"github.com/ivlev/frameseq/internal/events"
	"github.com/ivlev/frameseq/internal/frames"
	"github.com/ivlev/frameseq/internal/gesture"
	"github.com/ivlev/frameseq/internal/host"
	"github.com/ivlev/frameseq/internal/preload"
	"github.com/ivlev/frameseq/internal/sizing"
)

// Surface is the drawing surface as seen by both layout and drawing.
type Surface interface {
	sizing.Element
	compositor.Canvas
}

// Callbacks are optional hooks run alongside the matching events.
type Callbacks struct {
	PreloadFinished     func()
	FastPreloadFinished func()
	PosterLoaded        func()
	AnimationEnd        func()
	BeforeFrame         func(compositor.FrameInfo)
	AfterFrame          func(compositor.FrameInfo)
}

// Action is a command waiting for the first set of frames.
type Action func()

// State is the shared frame state.
type State struct {
	CurrentFrame int
	TotalFrames  int
	// Frames holds the image of frame i+1 at index i. It is replaced whole
	// when a loading pass completes.
	Frames   []image.Image
	Rendered bool
	// Pending holds at most one command; a newer one replaces it.
	Pending Action
}

type Config struct {
	// Options must already be normalized.
	Options   config.Options
	Surface   Surface
	Scheduler host.Scheduler
	Poster    preload.Poster
	Loader    preload.Loader
	Bus       *events.Bus
	Callbacks Callbacks
	Log       zerolog.Logger
	// Concurrency bounds parallel image loads; zero picks one for the host.
	Concurrency int64
}

type Session struct {
	opts    config.Options
	log     zerolog.Logger
	bus     *events.Bus
	cb      Callbacks
	sched   host.Scheduler
	surface Surface

	state State

	preload *preload.Controller
	clock   *clock.Clock
	comp    *compositor.Compositor
	sizer   *sizing.Controller
	drag    *gesture.Mapper

	draggable bool
	poster    *poster
	destroyed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a session and runs its start-up sequence: size the surface,
// show the poster, start the configured preload, autoplay and enable drag.
func New(cfg Config) *Session {
	s := &Session{
		opts:    cfg.Options,
		log:     cfg.Log,
		bus:     cfg.Bus,
		cb:      cfg.Callbacks,
		sched:   cfg.Scheduler,
		surface: cfg.Surface,
	}
	if s.bus == nil {
		s.bus = &events.Bus{}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.state = State{CurrentFrame: 1, TotalFrames: len(s.opts.Images)}

	fill, _ := compositor.ParseFillMode(s.opts.FillMode)
	s.comp = &compositor.Compositor{
		Canvas: cfg.Surface,
		Mode:   fill,
		Before: func(info compositor.FrameInfo) {
			if s.cb.BeforeFrame != nil {
				s.cb.BeforeFrame(info)
			}
		},
		After: func(info compositor.FrameInfo) {
			if s.cb.AfterFrame != nil {
				s.cb.AfterFrame(info)
			}
		},
	}

	s.clock = clock.New(cfg.Scheduler, s, s.opts.FPS)
	s.clock.OnEnd = s.animationEnded

	s.drag = gesture.New(s, cfg.Scheduler.Now)
	s.applyDragOptions()
	s.drag.OnStart = func(frame int) {
		s.bus.Emit(events.Event{Name: events.DragStart, Frame: frame})
	}
	s.drag.OnChange = func(frame int, dir gesture.Direction) {
		s.bus.Emit(events.Event{Name: events.DragChange, Frame: frame, Direction: dir.String()})
	}
	s.drag.OnEnd = func(frame int, dir gesture.Direction) {
		s.bus.Emit(events.Event{Name: events.DragEnd, Frame: frame, Direction: dir.String()})
	}

	s.sizer = sizing.New(cfg.Surface, s.opts.Ratio, sizing.ParseAxis(s.opts.ResponsiveAspect))
	s.sizer.OnResize = s.resized

	var fast []string
	if s.opts.FastPreview != nil {
		fast = s.opts.FastPreview.Images
		s.state.TotalFrames = len(fast)
	}
	s.preload = preload.New(preload.Config{
		Images:      s.opts.Images,
		FastImages:  fast,
		Loader:      cfg.Loader,
		Poster:      cfg.Poster,
		Concurrency: cfg.Concurrency,
		Log:         s.log,
		OnProgress: func(p float64) {
			s.bus.Emit(events.Event{Name: events.LoadingProgress, Progress: p})
		},
		OnError: func(src string, err error) {
			s.bus.Emit(events.Event{Name: events.LoadingError, Src: src, Err: err})
		},
		OnPass: s.passCompleted,
	})
	s.clock.UpdateDuration()

	s.UpdateSurface()
	if s.opts.Poster != "" {
		s.poster = &poster{src: s.opts.Poster}
		s.loadPoster(cfg.Loader, cfg.Poster)
	}

	switch s.opts.Preload {
	case config.PreloadAll:
		s.preload.Start(0)
	case config.PreloadPartial:
		s.preload.Start(float64(s.opts.PreloadNumber))
	}
	if s.opts.Autoplay {
		s.Play()
	}
	if s.opts.Draggable {
		s.SetDraggable(true)
	}
	return s
}

// Bus returns the event bus of the surface.
func (s *Session) Bus() *events.Bus { return s.bus }

// State returns a copy of the frame state.
func (s *Session) State() State {
	st := s.state
	st.Frames = append([]image.Image(nil), s.state.Frames...)
	return st
}

// Options returns the current option values.
func (s *Session) Options() config.Options { return s.opts }

func (s *Session) SetCallbacks(cb Callbacks) { s.cb = cb }

// Surface returns the drawing surface.
func (s *Session) Surface() Surface { return s.surface }

func (s *Session) TotalFrames() int  { return s.state.TotalFrames }
func (s *Session) CurrentFrame() int { return s.state.CurrentFrame }
func (s *Session) Rendered() bool    { return s.state.Rendered }

func (s *Session) Ratio() float64        { return s.sizer.Ratio() }
func (s *Session) Animating() bool       { return s.clock.Animating() }
func (s *Session) Dragging() bool        { return s.drag.Dragging() }
func (s *Session) Draggable() bool       { return s.draggable }
func (s *Session) PreloadFinished() bool { return s.preload.FullDone() }
func (s *Session) FastPreloadFinished() bool {
	return s.preload.FastDone()
}
func (s *Session) LoadedWithErrors() bool { return s.preload.LoadedWithErrors() }
func (s *Session) PreloadState() preload.State {
	return s.preload.State()
}

// Ready reports whether any loading pass has completed.
func (s *Session) Ready() bool { return s.preload.AnyDone() }

// NextFrame applies the frame-advance rule in the configured direction.
func (s *Session) NextFrame(delta int) (int, bool) {
	return frames.Advance(s.state.CurrentFrame, delta, s.state.TotalFrames, s.opts.Reverse, s.opts.Loop)
}

// NextFrameDir applies the frame-advance rule in an explicit direction.
func (s *Session) NextFrameDir(delta int, reverse bool) int {
	n, _ := frames.Advance(s.state.CurrentFrame, delta, s.state.TotalFrames, reverse, s.opts.Loop)
	return n
}

// ChangeFrame draws frame n and makes it current. The same frame is not
// drawn twice, except for the very first draw.
func (s *Session) ChangeFrame(n int) {
	if n == s.state.CurrentFrame && s.state.Rendered {
		return
	}
	s.state.Rendered = true
	s.drawFrame(n)
	s.state.CurrentFrame = n
}

func (s *Session) drawFrame(n int) {
	s.comp.Clear()
	if n < 1 || n > len(s.state.Frames) {
		return
	}
	s.comp.Draw(s.state.Frames[n-1])
}

// BeginDrag stops playback; a drag after the fast preview commits to the
// full set.
func (s *Session) BeginDrag() {
	if s.preload.HasFastPreview() && !s.preload.FullDone() && s.preload.FastDone() {
		s.PreloadImages(0)
	}
	s.Stop()
}

// whenReady runs op if any set of frames is loaded. Otherwise self becomes
// the pending action and the default preload starts.
func (s *Session) whenReady(self Action, op func()) {
	if s.destroyed {
		return
	}
	if !s.preload.AnyDone() {
		s.state.Pending = self
		s.preload.Start(0)
		return
	}
	op()
	s.maybePreloadAll()
}

// maybePreloadAll starts the full set once a frame change was asked for
// while only the preview is loaded.
func (s *Session) maybePreloadAll() {
	if s.preload.HasFastPreview() && !s.preload.FullDone() {
		s.preload.Start(0)
	}
}

func (s *Session) Play() {
	if s.clock.Animating() {
		return
	}
	s.whenReady(s.Play, s.clock.Play)
}

func (s *Session) Stop() {
	s.clock.Stop()
}

func (s *Session) Toggle() {
	if s.clock.Animating() {
		s.Stop()
		return
	}
	s.Play()
}

func (s *Session) Next() {
	s.whenReady(s.Next, func() {
		s.Stop()
		s.ChangeFrame(s.NextFrameDir(1, s.opts.Reverse))
	})
}

func (s *Session) Prev() {
	s.whenReady(s.Prev, func() {
		s.Stop()
		s.ChangeFrame(s.NextFrameDir(1, !s.opts.Reverse))
	})
}

// SetFrame shows frame n, clamped into the sequence.
func (s *Session) SetFrame(n float64) {
	s.whenReady(func() { s.SetFrame(n) }, func() {
		s.Stop()
		s.ChangeFrame(frames.Normalize(n, s.state.TotalFrames))
	})
}

// Reset stops and shows the first frame.
func (s *Session) Reset() {
	s.whenReady(s.Reset, func() {
		s.Stop()
		s.ChangeFrame(frames.Normalize(1, s.state.TotalFrames))
	})
}

// PlayFrames plays n frames in the current direction. Before anything was
// drawn one extra frame is played, the first one.
func (s *Session) PlayFrames(n float64) {
	s.whenReady(func() { s.PlayFrames(n) }, func() {
		if math.IsNaN(n) {
			n = 0
		}
		n = math.Floor(n)
		if n < 0 {
			s.Stop()
			return
		}
		if !s.state.Rendered {
			n++
		}
		if n <= 0 {
			s.Stop()
			return
		}
		s.clock.SetFramesRemaining(int(math.Min(n, math.MaxInt32)))
		if !s.clock.Animating() {
			s.clock.Play()
		}
	})
}

// PlayTo plays until frame n. With shortest and loop set it may cross the
// end of the sequence when that is shorter.
func (s *Session) PlayTo(n float64, shortest bool) {
	target := frames.Normalize(n, s.state.TotalFrames)
	dist, reverse := frames.PathTo(s.state.CurrentFrame, target, s.state.TotalFrames, s.opts.Loop, shortest)
	s.SetReverse(reverse)
	s.PlayFrames(float64(dist))
}

func (s *Session) SetReverse(reverse bool) { s.opts.Reverse = reverse }

func (s *Session) Reverse() bool { return s.opts.Reverse }

// PreloadImages queues n more images of the active set, all when n <= 0.
func (s *Session) PreloadImages(n float64) {
	s.preload.Start(n)
}

// UpdateSurface re-reads the layout size and resizes the surface.
func (s *Session) UpdateSurface() {
	if s.destroyed {
		return
	}
	s.sizer.Update()
}

func (s *Session) resized(d sizing.Descriptor) {
	s.drag.UpdateThreshold(d.ClientWidth)
	s.maybeRedraw()
}

// maybeRedraw repaints after a resize cleared the surface.
func (s *Session) maybeRedraw() {
	if s.state.Rendered {
		s.drawFrame(s.state.CurrentFrame)
		return
	}
	if s.poster != nil && s.poster.loaded {
		s.comp.Draw(s.poster.img)
	}
}

// HandlePointer feeds a pointer sample to the drag mapper.
func (s *Session) HandlePointer(sample gesture.Sample) gesture.Result {
	if !s.draggable || s.destroyed {
		return gesture.Result{}
	}
	return s.drag.Handle(sample, s.surface.ClientWidth())
}

func (s *Session) SetDraggable(on bool) {
	if !on && s.draggable {
		s.drag.Reset()
	}
	s.draggable = on
	s.opts.Draggable = on
}

func (s *Session) SetFPS(fps float64) {
	s.opts.FPS = fps
	s.clock.SetFPS(fps)
}

func (s *Session) SetLoop(loop bool) { s.opts.Loop = loop }

func (s *Session) SetInversion(inv bool) {
	s.opts.Inversion = inv
	s.applyDragOptions()
}

func (s *Session) SetRatio(r float64) {
	s.opts.Ratio = r
	s.sizer.SetRatio(r)
	s.UpdateSurface()
}

func (s *Session) SetFillMode(mode compositor.FillMode) {
	s.opts.FillMode = mode.String()
	s.comp.Mode = mode
	s.UpdateSurface()
}

func (s *Session) SetDragModifier(v float64) {
	s.opts.DragModifier = config.CoerceDragModifier(v)
	s.applyDragOptions()
}

func (s *Session) SetTouchScrollMode(mode string) {
	s.opts.TouchScrollMode = mode
	s.applyDragOptions()
}

func (s *Session) SetPageScrollTimerDelay(d time.Duration) {
	s.opts.PageScrollTimerDelay = d
	s.applyDragOptions()
}

func (s *Session) applyDragOptions() {
	s.drag.Modifier = s.opts.DragModifier
	s.drag.Inversion = s.opts.Inversion
	s.drag.ScrollMode, _ = gesture.ParseScrollMode(s.opts.TouchScrollMode)
	s.drag.ScrollDelay = s.opts.PageScrollTimerDelay
}

// Destroy stops playback, clears the surface and drops pending loads.
func (s *Session) Destroy() {
	if s.destroyed {
		return
	}
	s.Stop()
	s.comp.Clear()
	s.SetDraggable(false)
	s.destroyed = true
	s.state.Pending = nil
	s.preload.Close()
	s.cancel()
}

func (s *Session) animationEnded() {
	s.bus.Emit(events.Event{Name: events.AnimationEnd, Frame: s.state.CurrentFrame})
	if s.cb.AnimationEnd != nil {
		s.cb.AnimationEnd()
	}
}
