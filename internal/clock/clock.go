// Package clock turns display refreshes into frame changes at a target rate.
//
// Elapsed time is converted to a fractional number of frames. Whole frames
// are applied and the remainder is carried into the next refresh, so the
// average rate does not depend on the refresh rate of the display. A refresh
// that arrives after a long stall advances exactly one frame instead of
// jumping.
package clock

import (
	"math"
	"time"
)

// StallThreshold is the fraction of a full sequence duration above which a
// gap between refreshes counts as a stall.
const StallThreshold = 0.35

// Scheduler delivers display refreshes.
type Scheduler interface {
	RequestFrame(fn func(ts time.Duration))
	Now() time.Duration
}

// Target is the frame state the clock drives.
type Target interface {
	TotalFrames() int
	CurrentFrame() int
	// Rendered reports whether any frame has been drawn yet.
	Rendered() bool
	// NextFrame applies the frame-advance rule in the current direction.
	NextFrame(delta int) (frame int, hitBound bool)
	ChangeFrame(frame int)
}

// State is the animation state. It is independent of loading.
type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

type Clock struct {
	sched  Scheduler
	target Target

	fps      float64
	duration time.Duration

	state      State
	bounded    bool
	remaining  int
	lastUpdate time.Duration
	hasLast    bool
	carry      float64
	epoch      int

	// OnEnd runs when a running animation stops, after state is reset.
	OnEnd func()
}

func New(sched Scheduler, target Target, fps float64) *Clock {
	c := &Clock{sched: sched, target: target, fps: fps}
	c.UpdateDuration()
	return c
}

// SetFPS changes the target rate and recomputes the duration.
func (c *Clock) SetFPS(fps float64) {
	c.fps = fps
	c.UpdateDuration()
}

func (c *Clock) FPS() float64 { return c.fps }

// UpdateDuration recomputes the duration of one pass over every frame. Call
// it whenever the frame count or the rate changes.
func (c *Clock) UpdateDuration() {
	if c.fps <= 0 {
		c.duration = 0
		return
	}
	secs := float64(c.target.TotalFrames()) / c.fps
	c.duration = time.Duration(secs * float64(time.Second))
}

func (c *Clock) Duration() time.Duration { return c.duration }

func (c *Clock) State() State { return c.state }

func (c *Clock) Animating() bool { return c.state == Running }

// FramesRemaining returns the budget of a bounded play.
func (c *Clock) FramesRemaining() (n int, bounded bool) {
	return c.remaining, c.bounded
}

// SetFramesRemaining makes the next Play bounded to n frames.
func (c *Clock) SetFramesRemaining(n int) {
	c.remaining = n
	c.bounded = true
}

// Play starts the tick chain. Before the first frame has been drawn, frame 1
// is drawn right away and counted against a bounded budget.
func (c *Clock) Play() {
	c.state = Running
	if !c.target.Rendered() {
		c.target.ChangeFrame(1)
		if c.bounded {
			c.remaining--
		}
	}
	c.hasLast = false
	c.epoch++
	epoch := c.epoch
	c.sched.RequestFrame(func(ts time.Duration) { c.tick(epoch, ts) })
}

// Stop ends the animation. OnEnd runs only if it was running.
func (c *Clock) Stop() {
	was := c.state == Running
	c.state = Idle
	c.bounded = false
	c.remaining = 0
	if was && c.OnEnd != nil {
		c.OnEnd()
	}
}

func (c *Clock) tick(epoch int, ts time.Duration) {
	// a stop followed by a play leaves the old chain pending
	if c.state != Running || epoch != c.epoch {
		return
	}
	now := c.sched.Now()
	if !c.hasLast {
		c.lastUpdate = now
		c.hasLast = true
	}

	var delta float64
	stalled := false
	if c.duration > 0 {
		lag := math.Abs(float64(ts-now)) / float64(c.duration)
		progress := float64(ts-c.lastUpdate) / float64(c.duration)
		stalled = lag > StallThreshold || progress > StallThreshold
		if stalled {
			delta = 1
		} else {
			elapsed := float64(ts - c.lastUpdate)
			if elapsed < 0 {
				elapsed = 0
			}
			delta = elapsed*float64(c.target.TotalFrames())/float64(c.duration) + c.carry
		}
	}

	if delta >= 1 {
		c.step(delta, stalled, ts, now)
	}
	if c.state == Running {
		c.sched.RequestFrame(func(ts time.Duration) { c.tick(epoch, ts) })
	}
}

func (c *Clock) step(delta float64, stalled bool, ts, now time.Duration) {
	next := ts
	if stalled {
		next = now
	}
	c.carry = math.Mod(delta, 1)
	frames := int(math.Floor(delta))
	if total := c.target.TotalFrames(); total > 0 {
		frames %= total
	}
	// unbounded play never clamps
	if c.bounded && frames > c.remaining {
		frames = c.remaining
	}

	frame, hitBound := c.target.NextFrame(frames)
	if hitBound {
		c.Stop()
		if c.target.CurrentFrame() != frame {
			c.target.ChangeFrame(frame)
		}
		return
	}
	c.lastUpdate = next
	c.target.ChangeFrame(frame)
	if c.bounded {
		c.remaining -= frames
		if c.remaining <= 0 {
			c.Stop()
		}
	}
}
