package session

import (
	"image"

	"github.com/ivlev/frameseq/internal/events"
	"github.com/ivlev/frameseq/internal/frames"
	"github.com/ivlev/frameseq/internal/preload"
)

// passCompleted publishes a finished loading pass and moves the session to
// the next mode. It runs as one host callback, so nothing observes a half
// applied pass.
func (s *Session) passCompleted(p preload.Pass) {
	if s.destroyed {
		return
	}
	shown := s.state.CurrentFrame
	s.state.Frames = p.Images
	s.state.TotalFrames = len(p.Images)
	if s.state.CurrentFrame > s.state.TotalFrames {
		s.state.CurrentFrame = frames.Normalize(float64(s.state.CurrentFrame), s.state.TotalFrames)
	}
	s.drag.UpdateThreshold(s.surface.ClientWidth())
	s.clock.UpdateDuration()

	switch {
	case p.Mode == preload.Fast:
		// the controller already switched to the full set
		if s.state.Pending != nil {
			s.preload.Start(0)
		}
	case s.preload.HasFastPreview():
		s.previewReplaced(shown)
	}

	if a := s.state.Pending; a != nil {
		s.state.Pending = nil
		a()
	}

	if p.Mode == preload.Fast {
		s.bus.Emit(events.Event{Name: events.FastPreloadFinished})
		if s.cb.FastPreloadFinished != nil {
			s.cb.FastPreloadFinished()
		}
		return
	}
	s.bus.Emit(events.Event{Name: events.PreloadFinished})
	if s.cb.PreloadFinished != nil {
		s.cb.PreloadFinished()
	}
}

// previewReplaced moves from the preview frames to the full set. shown is
// the preview frame on screen before the full set was published. Unbounded
// playback resumes; a bounded one cannot be mapped onto the new frames and
// stays stopped.
func (s *Session) previewReplaced(shown int) {
	fp := s.opts.FastPreview
	if fp.FPSAfter > 0 {
		s.SetFPS(fp.FPSAfter)
	}
	wasAnimating := s.clock.Animating()
	_, bounded := s.clock.FramesRemaining()

	target := 1
	if fp.MatchFrame != nil {
		target = fp.MatchFrame(shown)
	}
	s.SetFrame(float64(target))
	if wasAnimating && !bounded {
		s.Play()
	}
}

type poster struct {
	src    string
	img    image.Image
	loaded bool
}

// loadPoster fetches the poster once when nothing has been drawn yet. A
// failed poster is ignored.
func (s *Session) loadPoster(loader preload.Loader, post preload.Poster) {
	if s.state.Rendered {
		return
	}
	p := s.poster
	ctx := s.ctx
	go func() {
		img, err := loader.Load(ctx, p.src)
		if ctx.Err() != nil {
			return
		}
		post.Post(func() { s.posterLoaded(img, err) })
	}()
}

func (s *Session) posterLoaded(img image.Image, err error) {
	if s.destroyed {
		return
	}
	if err != nil || img == nil {
		s.log.Debug().Err(err).Str("src", s.poster.src).Msg("poster not loaded")
		return
	}
	s.poster.img = img
	s.poster.loaded = true
	s.bus.Emit(events.Event{Name: events.PosterLoaded, Src: s.poster.src})
	if s.cb.PosterLoaded != nil {
		s.cb.PosterLoaded()
	}
	// a frame drawn before the poster arrived wins
	if !s.state.Rendered {
		s.comp.Draw(img)
	}
}
