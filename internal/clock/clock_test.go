package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/frameseq/internal/frames"
	"github.com/ivlev/frameseq/internal/host"
)

type strip struct {
	total    int
	current  int
	rendered bool
	loop     bool
	reverse  bool
	changes  []int
}

func (s *strip) TotalFrames() int  { return s.total }
func (s *strip) CurrentFrame() int { return s.current }
func (s *strip) Rendered() bool    { return s.rendered }

func (s *strip) NextFrame(delta int) (int, bool) {
	return frames.Advance(s.current, delta, s.total, s.reverse, s.loop)
}

func (s *strip) ChangeFrame(n int) {
	if n == s.current && s.rendered {
		return
	}
	s.rendered = true
	s.current = n
	s.changes = append(s.changes, n)
}

// display drives a loop at a fixed refresh interval with a clock that
// matches the refresh timestamps.
type display struct {
	loop *host.Loop
	now  time.Duration
}

func newDisplay() *display {
	d := &display{loop: host.NewLoop()}
	d.loop.Clock = func() time.Duration { return d.now }
	return d
}

func (d *display) refresh(interval time.Duration) {
	d.now += interval
	d.loop.RunFrame(d.now)
}

func TestDuration(t *testing.T) {
	s := &strip{total: 90, current: 1}
	c := New(newDisplay().loop, s, 30)
	assert.Equal(t, 3*time.Second, c.Duration())

	c.SetFPS(60)
	assert.Equal(t, 1500*time.Millisecond, c.Duration())

	s.total = 30
	c.UpdateDuration()
	assert.Equal(t, 500*time.Millisecond, c.Duration())
}

func TestBoundedPlayFromFirstRender(t *testing.T) {
	d := newDisplay()
	s := &strip{total: 90, current: 1}
	c := New(d.loop, s, 30)
	ended := 0
	c.OnEnd = func() { ended++ }

	// playFrames(45) before anything was drawn asks for 46
	c.SetFramesRemaining(46)
	c.Play()
	assert.Equal(t, []int{1}, s.changes)
	n, bounded := c.FramesRemaining()
	assert.True(t, bounded)
	assert.Equal(t, 45, n)

	d.refresh(0) // first refresh only sets the baseline
	for i := 0; i < 15; i++ {
		require.True(t, c.Animating(), "stopped early at refresh %d", i)
		d.refresh(100 * time.Millisecond)
	}
	assert.Equal(t, 46, s.current)
	assert.False(t, c.Animating())
	assert.Equal(t, 1, ended)
	_, bounded = c.FramesRemaining()
	assert.False(t, bounded)
	assert.Zero(t, d.loop.Pending())
}

func TestRateIndependentOfRefresh(t *testing.T) {
	for _, hz := range []float64{30, 60, 75, 144, 240} {
		d := newDisplay()
		s := &strip{total: 90, current: 1, rendered: true, loop: true}
		c := New(d.loop, s, 30)
		c.Play()

		interval := time.Duration(float64(time.Second) / hz)
		d.refresh(0)
		advanced := 0
		prev := s.current
		for d.now < 3*time.Second {
			d.refresh(interval)
			step := s.current - prev
			if step < 0 {
				step += s.total
			}
			advanced += step
			prev = s.current
		}
		assert.InDelta(t, 90, advanced, 1, "%v Hz", hz)
	}
}

func TestStallAdvancesOneFrame(t *testing.T) {
	d := newDisplay()
	s := &strip{total: 90, current: 10, rendered: true, loop: true}
	c := New(d.loop, s, 30)
	c.Play()
	d.refresh(0)

	// 2s gap is far beyond 35% of the 3s duration
	d.refresh(2 * time.Second)
	assert.Equal(t, 11, s.current)

	d.refresh(100 * time.Millisecond)
	assert.Equal(t, 14, s.current)
}

func TestLaggingTimestampCountsAsStall(t *testing.T) {
	d := newDisplay()
	s := &strip{total: 90, current: 10, rendered: true, loop: true}
	c := New(d.loop, s, 30)
	c.Play()
	d.refresh(0)

	// the refresh was queued long before it ran
	d.now += 100 * time.Millisecond
	d.loop.Clock = func() time.Duration { return d.now + 1500*time.Millisecond }
	d.loop.RunFrame(d.now)
	assert.Equal(t, 11, s.current)
}

func TestSubFrameRefreshesCarry(t *testing.T) {
	d := newDisplay()
	s := &strip{total: 90, current: 1, rendered: true, loop: true}
	c := New(d.loop, s, 30)
	c.Play()
	d.refresh(0)

	// 30 fps: a frame every 33.3ms; 20ms refreshes give 0.6 frames each
	d.refresh(20 * time.Millisecond)
	assert.Equal(t, 1, s.current)
	d.refresh(20 * time.Millisecond)
	assert.Equal(t, 2, s.current)
	d.refresh(20 * time.Millisecond)
	assert.Equal(t, 2, s.current)
	d.refresh(20 * time.Millisecond)
	assert.Equal(t, 3, s.current)
	d.refresh(20 * time.Millisecond)
	d.refresh(20 * time.Millisecond)
	assert.Equal(t, 4, s.current)
}

func TestEdgeStopsWithoutLoop(t *testing.T) {
	d := newDisplay()
	s := &strip{total: 10, current: 8, rendered: true}
	c := New(d.loop, s, 10)
	ended := 0
	c.OnEnd = func() { ended++ }
	c.Play()
	d.refresh(0)

	// 10 frames in 1s: 300ms is 3 frames, past the end
	d.refresh(300 * time.Millisecond)
	assert.Equal(t, 10, s.current)
	assert.False(t, c.Animating())
	assert.Equal(t, 1, ended)
	assert.Equal(t, []int{10}, s.changes)
}

func TestEdgeSkipsRedundantDraw(t *testing.T) {
	d := newDisplay()
	s := &strip{total: 10, current: 10, rendered: true}
	c := New(d.loop, s, 10)
	c.Play()
	d.refresh(0)
	d.refresh(100 * time.Millisecond)
	assert.False(t, c.Animating())
	assert.Empty(t, s.changes)
}

func TestBoundedClampsFastRate(t *testing.T) {
	d := newDisplay()
	s := &strip{total: 100, current: 1, rendered: true, loop: true}
	c := New(d.loop, s, 100)
	c.SetFramesRemaining(3)
	c.Play()
	d.refresh(0)

	// 100 fps with 100ms refreshes asks for 10 frames, only 3 remain
	d.refresh(100 * time.Millisecond)
	assert.Equal(t, 4, s.current)
	assert.False(t, c.Animating())
}

func TestStopThenPlayKeepsOneChain(t *testing.T) {
	d := newDisplay()
	s := &strip{total: 90, current: 1, rendered: true, loop: true}
	c := New(d.loop, s, 30)
	c.Play()
	c.Stop()
	c.Play()
	assert.Equal(t, 2, d.loop.Pending())

	d.refresh(0)
	assert.Equal(t, 1, d.loop.Pending())
	d.refresh(100 * time.Millisecond)
	assert.Equal(t, 4, s.current)
	assert.Equal(t, 1, d.loop.Pending())
}

func TestStopWhenIdleIsSilent(t *testing.T) {
	s := &strip{total: 5, current: 1}
	c := New(newDisplay().loop, s, 30)
	ended := 0
	c.OnEnd = func() { ended++ }
	c.Stop()
	assert.Zero(t, ended)
}

func TestOnEndSeesResetState(t *testing.T) {
	d := newDisplay()
	s := &strip{total: 10, current: 1, rendered: true, loop: true}
	c := New(d.loop, s, 10)
	c.OnEnd = func() {
		assert.Equal(t, Idle, c.State())
		assert.False(t, c.Animating())
		_, bounded := c.FramesRemaining()
		assert.False(t, bounded)
	}
	c.SetFramesRemaining(2)
	c.Play()
	d.refresh(0)
	d.refresh(200 * time.Millisecond)
	assert.Equal(t, 3, s.current)
	assert.False(t, c.Animating())
}

func TestStateFollowsPlayAndStop(t *testing.T) {
	d := newDisplay()
	s := &strip{total: 4, current: 1, rendered: true}
	c := New(d.loop, s, 10)
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, "idle", c.State().String())

	c.Play()
	assert.Equal(t, Running, c.State())
	assert.Equal(t, "running", c.State().String())
	assert.True(t, c.Animating())

	c.Stop()
	assert.Equal(t, Idle, c.State())

	// a bounded play goes back to idle on its own
	c.SetFramesRemaining(1)
	c.Play()
	d.refresh(0)
	d.refresh(100 * time.Millisecond)
	assert.Equal(t, 2, s.current)
	assert.Equal(t, Idle, c.State())
}
