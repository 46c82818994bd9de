package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/frameseq"
	"github.com/ivlev/frameseq/internal/config"
	"github.com/ivlev/frameseq/internal/host"
	"github.com/ivlev/frameseq/internal/raster"
	"github.com/ivlev/frameseq/internal/system"
)

var errNoFrames = errors.New("no frame could be loaded")

// Job is one recording: a full turn of the sequence played by a headless
// player and sampled at Params.FPS.
type Job struct {
	Options frameseq.Options
	Loader  frameseq.Loader
	// Width and Height are the surface size; the height follows the ratio
	// option when one is set.
	Width, Height int
	Output        string
	Params        Params
	Log           zerolog.Logger
}

// Record loads every frame, then plays them once from frame 1 on a virtual
// clock and hands each refresh to enc. Rendering and encoding run as two
// stages of one errgroup.
func Record(ctx context.Context, job Job, enc VideoEncoder) error {
	loop := host.NewLoop()
	var now time.Duration
	loop.Clock = func() time.Duration { return now }

	opts := job.Options
	opts.Preload = config.PreloadAll
	opts.Autoplay = false
	opts.Draggable = false
	// only the full set is recorded
	opts.FastPreview = nil

	surface := raster.New(job.Width, job.Height)
	p, err := frameseq.New(frameseq.Config{
		Host:    loop,
		Surface: surface,
		Loader:  job.Loader,
		Log:     &job.Log,
	}, opts, frameseq.Callbacks{})
	if err != nil {
		return err
	}
	defer p.Destroy()

	start := time.Now()
	if err := loop.RunUntil(ctx, p.PreloadFinished); err != nil {
		return fmt.Errorf("preload: %w", err)
	}
	total := p.TotalFrames()
	if total == 0 {
		return errNoFrames
	}
	job.Log.Info().
		Int("frames", total).
		Bool("with_errors", p.LoadedWithErrors()).
		Dur("took", time.Since(start)).
		Msg("frames loaded")

	fps := job.Params.FPS
	if fps <= 0 {
		fps = int(opts.FPS)
	}
	if fps <= 0 {
		fps = 30
	}
	job.Params.FPS = fps
	w, h := surface.Size()

	frames := make(chan *image.RGBA, 4)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)
		emit := func() error {
			src := surface.Image()
			img := system.GetImage(src.Rect)
			copy(img.Pix, src.Pix)
			select {
			case frames <- img:
				return nil
			case <-gctx.Done():
				system.PutImage(img)
				return gctx.Err()
			}
		}

		p.SetFrame(1)
		if err := emit(); err != nil {
			return err
		}
		p.PlayFrames(float64(total - 1))
		loop.RunFrame(now)
		for i := 1; p.Animating(); i++ {
			now = refreshAt(i, fps)
			loop.RunFrame(now)
			if err := emit(); err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		return enc.Encode(gctx, frames, w, h, job.Output, job.Params)
	})

	return g.Wait()
}

// refreshAt is the timestamp of the i-th output frame, rounded up to the
// nanosecond so that each refresh covers at least one whole frame.
func refreshAt(i, fps int) time.Duration {
	return (time.Duration(i)*time.Second + time.Duration(fps) - 1) / time.Duration(fps)
}
