// Package gesture maps pointer drags onto frame changes.
//
// Hosts normalize mouse and touch input into Samples. A drag that covers the
// full logical width of the surface turns the sequence exactly once at a
// sensitivity of 1; movement too small for a frame is banked for the next
// sample.
package gesture

import (
	"math"
	"time"
)

// Phase is the stage of an interaction a sample belongs to.
type Phase int

const (
	Start Phase = iota
	Move
	End
	Cancel
)

// Sample is one pointer or touch event in surface coordinates.
type Sample struct {
	X, Y  float64
	Phase Phase
	// Touch marks samples that come from a touch screen.
	Touch bool
	// Cancelable reports whether the host may still suppress page scrolling
	// for this touch.
	Cancelable bool
}

// Direction is a quantized drag direction.
type Direction int

const (
	None Direction = iota
	Left
	Right
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	}
	return ""
}

// DirectionOf quantizes the movement from (prevX, prevY) to (curX, curY).
// Angles within 60 degrees of horizontal are left or right.
func DirectionOf(prevX, prevY, curX, curY float64) Direction {
	angle := math.Round(math.Atan2(prevY-curY, prevX-curX) * 180 / math.Pi)
	if angle < 0 {
		angle += 360
	}
	switch {
	case angle <= 60 || angle >= 300:
		return Left
	case angle >= 120 && angle <= 240:
		return Right
	case angle >= 241 && angle <= 299:
		return Down
	}
	return Up
}

// ScrollMode decides whether a touch on the surface may scroll the page.
type ScrollMode int

const (
	// ScrollTimer blocks page scroll for a while after the last drag.
	ScrollTimer ScrollMode = iota
	ScrollPrevent
	ScrollAllow
)

// ParseScrollMode maps the option names; unknown names report false.
func ParseScrollMode(s string) (ScrollMode, bool) {
	switch s {
	case "pageScrollTimer":
		return ScrollTimer, true
	case "preventPageScroll":
		return ScrollPrevent, true
	case "allowPageScroll":
		return ScrollAllow, true
	}
	return ScrollTimer, false
}

// Target is the player state a drag works on.
type Target interface {
	TotalFrames() int
	CurrentFrame() int
	// Ready reports whether any set of frames has been loaded.
	Ready() bool
	// BeginDrag stops playback and commits to loading the full set.
	BeginDrag()
	NextFrameDir(delta int, reverse bool) int
	ChangeFrame(n int)
}

// Result tells the host what to do with the native event.
type Result struct {
	PreventScroll bool
}

type Mapper struct {
	target Target
	now    func() time.Duration

	Modifier    float64
	Inversion   bool
	ScrollMode  ScrollMode
	ScrollDelay time.Duration

	OnStart  func(frame int)
	OnChange func(frame int, dir Direction)
	OnEnd    func(frame int, dir Direction)

	dragging        bool
	prevX, prevY    float64
	bank            float64
	lastDir         Direction
	threshold       float64
	lastInteraction time.Duration
	hasInteraction  bool
}

// New returns a mapper with a sensitivity of 1. now is the clock used for
// the page scroll timer.
func New(target Target, now func() time.Duration) *Mapper {
	return &Mapper{
		target:      target,
		now:         now,
		Modifier:    1,
		ScrollDelay: 1500 * time.Millisecond,
	}
}

func (m *Mapper) Dragging() bool { return m.dragging }

func (m *Mapper) Threshold() float64 { return m.threshold }

// Bank is the horizontal movement carried into the next sample, in pixels.
func (m *Mapper) Bank() float64 { return m.bank }

// UpdateThreshold sets the width in logical pixels that moves one frame.
func (m *Mapper) UpdateThreshold(clientWidth float64) {
	total := m.target.TotalFrames()
	if total <= 0 {
		m.threshold = 0
		return
	}
	m.threshold = clientWidth / float64(total)
}

// Handle feeds one sample. clientWidth is the logical width of the surface.
func (m *Mapper) Handle(s Sample, clientWidth float64) Result {
	var res Result
	switch s.Phase {
	case Start:
		if s.Touch && s.Cancelable {
			res.PreventScroll = m.preventScroll()
		}
		m.start(s)
	case Move:
		if m.dragging && (s.X != m.prevX || s.Y != m.prevY) {
			m.move(s, clientWidth)
		}
	case End, Cancel:
		if m.dragging {
			m.end()
		}
	}
	return res
}

// Reset drops an interaction in progress without notifications.
func (m *Mapper) Reset() {
	m.dragging = false
}

func (m *Mapper) preventScroll() bool {
	switch m.ScrollMode {
	case ScrollPrevent:
		return true
	case ScrollTimer:
		if m.hasInteraction && m.now()-m.lastInteraction < m.ScrollDelay {
			return true
		}
		m.hasInteraction = false
	}
	return false
}

func (m *Mapper) start(s Sample) {
	if !m.target.Ready() {
		return
	}
	m.target.BeginDrag()
	m.dragging = true
	m.prevX, m.prevY = s.X, s.Y
	if m.OnStart != nil {
		m.OnStart(m.target.CurrentFrame())
	}
}

func (m *Mapper) move(s Sample, clientWidth float64) {
	dir := DirectionOf(m.prevX, m.prevY, s.X, s.Y)
	if m.lastDir != None && m.lastDir != dir {
		m.bank = 0
	}
	m.lastDir = dir

	dx := math.Abs(s.X - m.prevX)
	swipe := (dx + m.bank) * m.Modifier
	m.prevX, m.prevY = s.X, s.Y

	if (dir != Left && dir != Right) || swipe < m.threshold {
		m.bank += dx
		return
	}

	total := m.target.TotalFrames()
	if total <= 0 || clientWidth <= 0 {
		return
	}
	delta := int(math.Floor(swipe/clientWidth*float64(total))) % total
	if m.Modifier > 0 {
		m.bank = (swipe - m.threshold*float64(delta)) / m.Modifier
	} else {
		m.bank = 0
	}
	reverse := dir == Left
	if m.Inversion {
		reverse = !reverse
	}
	m.target.ChangeFrame(m.target.NextFrameDir(delta, reverse))
	if m.OnChange != nil {
		m.OnChange(m.target.CurrentFrame(), dir)
	}
}

func (m *Mapper) end() {
	m.dragging = false
	m.lastInteraction = m.now()
	m.hasInteraction = true
	if m.OnEnd != nil {
		m.OnEnd(m.target.CurrentFrame(), m.lastDir)
	}
}
