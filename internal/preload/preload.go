// Package preload loads the frame images of a player, optionally in two
// passes: a small fast-preview set first and the full set after it.
//
// Loads run on their own goroutines, bounded by a semaphore. Every result is
// handed back through a Poster so that all bookkeeping happens on the host
// goroutine, one completion at a time.
package preload

import (
	"context"
	"errors"
	"image"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/ivlev/frameseq/internal/system"
)

var errNoImage = errors.New("loader returned no image")

// Loader fetches and decodes one image.
type Loader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, src string) (image.Image, error)

func (f LoaderFunc) Load(ctx context.Context, src string) (image.Image, error) {
	return f(ctx, src)
}

// Poster runs functions on the host goroutine.
type Poster interface {
	Post(fn func())
}

// Mode is the image set being loaded.
type Mode int

const (
	Fast Mode = iota
	Full
)

func (m Mode) String() string {
	if m == Fast {
		return "fast"
	}
	return "full"
}

// State is the progress of the controller through both passes.
type State int

const (
	NotStarted State = iota
	FastLoading
	FastDone
	FullLoading
	FullDone
)

var stateNames = [...]string{"not-started", "fast-loading", "fast-done", "full-loading", "full-done"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

var transitions = map[State][]State{
	NotStarted:  {FastLoading, FullLoading},
	FastLoading: {FastDone},
	FastDone:    {FullLoading},
	FullLoading: {FullDone},
}

// CanTransition reports whether the controller may move from one state to
// another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Pass is a completed loading pass. Images is dense: failed loads are
// removed and later frames move up.
type Pass struct {
	Mode   Mode
	Images []image.Image
	Failed []string
}

type Config struct {
	Images []string
	// FastImages enables the fast-preview pass when non-empty.
	FastImages []string

	Loader Loader
	Poster Poster
	// Concurrency bounds in-flight loads; system.LoadConcurrency when zero.
	Concurrency int64
	Log         zerolog.Logger

	OnProgress func(progress float64)
	OnError    func(src string, err error)
	// OnPass runs after the pass is published and, for the fast pass, after
	// the controller has switched to the full set.
	OnPass func(Pass)
}

type slot struct {
	src    string
	img    image.Image
	failed bool
}

type Controller struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted

	state State
	mode  Mode

	total     int
	offset    int
	completed int
	temp      []slot

	failed     []string
	withErrors bool
	fastDone   bool
	closed     bool
}

func New(cfg Config) *Controller {
	n := cfg.Concurrency
	if n <= 0 {
		n = system.LoadConcurrency()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(n),
		mode:   Full,
		total:  len(cfg.Images),
	}
	if len(cfg.FastImages) > 0 {
		c.mode = Fast
		c.total = len(cfg.FastImages)
	}
	return c
}

func (c *Controller) State() State { return c.state }

// Mode is the set the next Start loads from.
func (c *Controller) Mode() Mode { return c.mode }

// Total is the size of the active set.
func (c *Controller) Total() int { return c.total }

func (c *Controller) HasFastPreview() bool { return len(c.cfg.FastImages) > 0 }

func (c *Controller) AnyDone() bool { return c.fastDone || c.state == FullDone }

func (c *Controller) FastDone() bool { return c.fastDone }

func (c *Controller) FullDone() bool { return c.state == FullDone }

func (c *Controller) LoadedWithErrors() bool { return c.withErrors }

// Failed lists the sources that failed to load, across both passes.
func (c *Controller) Failed() []string {
	out := make([]string, len(c.failed))
	copy(out, c.failed)
	return out
}

// Start queues up to count more images of the active set; zero or less
// means all of them. It does nothing once the full set has completed or
// when every image of the active set is already queued.
func (c *Controller) Start(count float64) {
	if c.closed || c.state == FullDone {
		return
	}
	n := c.total
	if count > 0 && !math.IsInf(count, 0) {
		n = int(math.Round(count))
	}
	if unloaded := c.total - c.offset; n > unloaded {
		n = unloaded
	}
	if n <= 0 {
		return
	}

	switch c.state {
	case NotStarted:
		if c.mode == Fast {
			c.setState(FastLoading)
		} else {
			c.setState(FullLoading)
		}
	case FastDone:
		c.setState(FullLoading)
	}

	srcs := c.sources()
	if need := c.offset + n; len(c.temp) < need {
		c.temp = append(c.temp, make([]slot, need-len(c.temp))...)
	}
	for i := c.offset; i < c.offset+n; i++ {
		c.temp[i].src = srcs[i]
		go c.load(c.ctx, c.mode, i, srcs[i])
	}
	c.offset += n
	c.cfg.Log.Debug().Stringer("mode", c.mode).Int("queued", n).Int("offset", c.offset).Msg("preload queued")
}

func (c *Controller) sources() []string {
	if c.mode == Fast {
		return c.cfg.FastImages
	}
	return c.cfg.Images
}

func (c *Controller) load(ctx context.Context, mode Mode, i int, src string) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return
	}
	img, err := c.cfg.Loader.Load(ctx, src)
	c.sem.Release(1)
	if ctx.Err() != nil {
		return
	}
	c.cfg.Poster.Post(func() { c.complete(mode, i, img, err) })
}

func (c *Controller) complete(mode Mode, i int, img image.Image, err error) {
	if c.closed || mode != c.mode || i >= len(c.temp) {
		return
	}
	c.completed++
	src := c.temp[i].src
	if err == nil && img == nil {
		err = errNoImage
	}
	if err != nil {
		c.temp[i].failed = true
	} else {
		c.temp[i].img = img
	}

	progress := math.Floor(float64(c.completed)/float64(c.total)*1000) / 1000
	if c.cfg.OnProgress != nil {
		c.cfg.OnProgress(progress)
	}
	if err != nil {
		c.withErrors = true
		c.failed = append(c.failed, src)
		c.cfg.Log.Warn().Str("src", src).Err(err).Msg("image failed to load")
		if c.cfg.OnError != nil {
			c.cfg.OnError(src, err)
		}
	}

	if c.completed >= c.total {
		c.finish()
	}
}

func (c *Controller) finish() {
	pass := Pass{Mode: c.mode, Images: make([]image.Image, 0, len(c.temp))}
	for _, s := range c.temp {
		if s.failed || s.img == nil {
			pass.Failed = append(pass.Failed, s.src)
			continue
		}
		pass.Images = append(pass.Images, s.img)
	}

	if c.mode == Fast {
		c.fastDone = true
		c.setState(FastDone)
		c.switchToFull()
	} else {
		c.setState(FullDone)
		c.temp = nil
	}
	c.cfg.Log.Debug().
		Stringer("mode", pass.Mode).
		Int("frames", len(pass.Images)).
		Int("failed", len(pass.Failed)).
		Msg("preload pass finished")

	if c.cfg.OnPass != nil {
		c.cfg.OnPass(pass)
	}
}

// switchToFull makes the full set active with nothing queued yet.
func (c *Controller) switchToFull() {
	c.mode = Full
	c.temp = nil
	c.offset = 0
	c.completed = 0
	c.total = len(c.cfg.Images)
}

// Close cancels queued loads and drops results still in flight.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.temp = nil
}

func (c *Controller) setState(to State) {
	if !CanTransition(c.state, to) {
		c.cfg.Log.Error().Stringer("from", c.state).Stringer("to", to).Msg("invalid preload transition")
		return
	}
	c.state = to
}
