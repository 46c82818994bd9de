package frameseq

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/frameseq/internal/host"
	"github.com/ivlev/frameseq/internal/raster"
)

type harness struct {
	t    *testing.T
	loop *host.Loop
	now  time.Duration
	logs *bytes.Buffer
	cfg  Config
}

func newHarness(t *testing.T) *harness {
	h := &harness{t: t, loop: host.NewLoop(), logs: &bytes.Buffer{}}
	h.loop.Clock = func() time.Duration { return h.now }
	logger := zerolog.New(h.logs).Level(zerolog.WarnLevel)
	h.cfg = Config{
		Host:        h.loop,
		Surface:     raster.New(160, 80),
		Loader:      LoaderFunc(solidLoader),
		Log:         &logger,
		Concurrency: 4,
	}
	return h
}

func solidLoader(_ context.Context, src string) (image.Image, error) {
	if strings.HasPrefix(src, "missing") {
		return nil, fmt.Errorf("open %s: no such file", src)
	}
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img, nil
}

func (h *harness) player(opts Options, cb Callbacks) *Player {
	h.t.Helper()
	p, err := New(h.cfg, opts, cb)
	require.NoError(h.t, err)
	h.t.Cleanup(p.Destroy)
	return p
}

func (h *harness) settle(done func() bool) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(h.t, h.loop.RunUntil(ctx, done))
}

func (h *harness) refresh(d time.Duration) {
	h.now += d
	h.loop.RunFrame(h.now)
}

func images(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("img/%03d.jpg", i+1)
	}
	return out
}

func optionsWith(n int) Options {
	o := DefaultOptions()
	o.Images = images(n)
	return o
}

func TestNewRejectsBadSetup(t *testing.T) {
	h := newHarness(t)

	noSurface := h.cfg
	noSurface.Surface = nil
	_, err := New(noSurface, optionsWith(3), Callbacks{})
	assert.ErrorIs(t, err, ErrNoSurface)

	noHost := h.cfg
	noHost.Host = nil
	_, err = New(noHost, optionsWith(3), Callbacks{})
	assert.ErrorIs(t, err, ErrNoHost)

	_, err = New(h.cfg, optionsWith(1), Callbacks{})
	assert.ErrorIs(t, err, ErrTooFewImages)

	o := optionsWith(3)
	o.FastPreview = &FastPreview{}
	_, err = New(h.cfg, o, Callbacks{})
	assert.ErrorIs(t, err, ErrNoFastPreviewImages)
}

func TestDeferredPlayFrames(t *testing.T) {
	h := newHarness(t)
	o := optionsWith(90)
	o.Preload = "none"

	var ended, loaded *Player
	p := h.player(o, Callbacks{
		PreloadFinished: func(p *Player) { loaded = p },
		AnimationEnd:    func(p *Player) { ended = p },
	})
	p.PlayFrames(45)
	h.settle(p.PreloadFinished)
	assert.Same(t, p, loaded)

	h.refresh(0)
	for i := 0; i < 15; i++ {
		h.refresh(100 * time.Millisecond)
	}
	assert.Equal(t, 46, p.CurrentFrame())
	assert.False(t, p.Animating())
	assert.Same(t, p, ended)
}

func TestPlayToCrossesEdge(t *testing.T) {
	h := newHarness(t)
	o := optionsWith(50)
	o.Loop = true
	p := h.player(o, Callbacks{})
	h.settle(p.PreloadFinished)

	p.SetFrame(2).PlayTo(47, true)
	assert.True(t, p.Reverse())
	h.refresh(0)
	for i := 0; i < 100 && p.Animating(); i++ {
		h.refresh(16 * time.Millisecond)
	}
	assert.Equal(t, 47, p.CurrentFrame())
}

func TestSetForward(t *testing.T) {
	h := newHarness(t)
	p := h.player(optionsWith(3), Callbacks{})
	p.SetReverse(true)
	assert.True(t, p.Reverse())
	p.SetForward(true)
	assert.False(t, p.Reverse())
}

func TestSetOptionAllowList(t *testing.T) {
	h := newHarness(t)
	p := h.player(optionsWith(10), Callbacks{})

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"fps", 60, 60.0},
		{"loop", true, true},
		{"reverse", true, true},
		{"inversion", true, true},
		{"fillMode", "contain", "contain"},
		{"dragModifier", -2.5, 2.5},
		{"touchScrollMode", "allowPageScroll", "allowPageScroll"},
		{"pageScrollTimerDelay", 500, 500 * time.Millisecond},
		{"pageScrollTimerDelay", "2s", 2 * time.Second},
		{"draggable", true, true},
		{"ratio", 1.5, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.SetOption(tt.name, tt.value)
			got, ok := p.Option(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Empty(t, h.logs.String())
	assert.Equal(t, 1.5, p.Ratio())
}

func TestSetOptionRejects(t *testing.T) {
	h := newHarness(t)
	p := h.player(optionsWith(10), Callbacks{})

	tests := []struct {
		name  string
		value any
	}{
		{"fps", "fast"},
		{"fps", -1},
		{"fillMode", "stretch"},
		{"touchScrollMode", "sometimes"},
		{"loop", 1},
		{"ratio", 0},
		{"images", []string{"a", "b"}},
		{"autoplay", true},
		{"onAnimationEnd", func() {}},
	}
	before := p.Surface().(*raster.Surface).Width()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.logs.Reset()
			want, _ := p.Option(tt.name)
			p.SetOption(tt.name, tt.value)
			got, _ := p.Option(tt.name)
			if tt.name == "onAnimationEnd" {
				assert.Nil(t, got)
			} else {
				assert.Equal(t, want, got)
			}
			assert.Contains(t, h.logs.String(), `"option":"`+tt.name+`"`)
		})
	}
	assert.Equal(t, before, p.Surface().(*raster.Surface).Width())
}

func TestOptionUnknownName(t *testing.T) {
	h := newHarness(t)
	p := h.player(optionsWith(3), Callbacks{})
	_, ok := p.Option("speed")
	assert.False(t, ok)
	assert.Contains(t, h.logs.String(), "not a valid option")
}

func TestCallbacksSetAtRuntime(t *testing.T) {
	h := newHarness(t)
	p := h.player(optionsWith(4), Callbacks{})
	h.settle(p.PreloadFinished)

	var frames []string
	p.SetOption("onBeforeFrame", func(_ *Player, info FrameInfo) {
		frames = append(frames, fmt.Sprintf("before %dx%d", info.Width, info.Height))
	})
	p.SetOption("onAfterFrame", func(*Player, FrameInfo) { frames = append(frames, "after") })
	ends := 0
	p.SetOption("onAnimationEnd", func(*Player) { ends++ })

	p.Next()
	assert.Equal(t, []string{"before 160x80", "after"}, frames)

	p.Play().Stop()
	assert.Equal(t, 1, ends)

	p.SetOption("onAnimationEnd", nil)
	p.Play().Stop()
	assert.Equal(t, 1, ends)
}

func TestEventsAndErrors(t *testing.T) {
	h := newHarness(t)
	o := optionsWith(4)
	o.Images[2] = "missing.jpg"

	var failed []string
	var progress []float64
	p := h.player(o, Callbacks{})
	p.On(EventLoadingError, func(e Event) { failed = append(failed, e.Src) })
	p.On(EventLoadingProgress, func(e Event) { progress = append(progress, e.Progress) })
	h.settle(p.PreloadFinished)

	assert.Equal(t, []string{"missing.jpg"}, failed)
	assert.Len(t, progress, 4)
	assert.True(t, p.LoadedWithErrors())
	assert.Equal(t, 3, p.TotalFrames())
	assert.Contains(t, h.logs.String(), "image failed to load")
}

func TestDragThroughPlayer(t *testing.T) {
	h := newHarness(t)
	o := optionsWith(16)
	o.Draggable = true
	p := h.player(o, Callbacks{})
	h.settle(p.PreloadFinished)

	var dirs []string
	p.On(EventDragChange, func(e Event) { dirs = append(dirs, e.Direction) })

	p.HandlePointer(Sample{X: 100, Y: 10, Phase: PointerStart})
	assert.True(t, p.Dragging())
	// 160px for 16 frames: 25px left is two frames back, clamped at frame 1
	p.HandlePointer(Sample{X: 75, Y: 10, Phase: PointerMove})
	assert.Equal(t, 1, p.CurrentFrame())
	p.HandlePointer(Sample{X: 115, Y: 10, Phase: PointerMove})
	assert.Equal(t, 5, p.CurrentFrame())
	assert.Equal(t, []string{"left", "right"}, dirs)

	p.SetOption("draggable", false)
	assert.False(t, p.Dragging())
}

func TestDestroyClearsSurface(t *testing.T) {
	h := newHarness(t)
	p := h.player(optionsWith(3), Callbacks{})
	h.settle(p.PreloadFinished)
	p.SetFrame(2)

	surface := p.Surface().(*raster.Surface)
	assert.Equal(t, uint8(0xff), surface.Image().RGBAAt(80, 40).A)
	p.Destroy()
	assert.Equal(t, color.RGBA{}, surface.Image().RGBAAt(80, 40))
	assert.False(t, p.Animating())
}
