// Package raster is a headless drawing surface backed by an image.RGBA. It
// plays the role of both the layout element and the 2D canvas, which makes
// it the surface for tests, exports and any host without a display.
package raster

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/frameseq/internal/compositor"
)

// Surface implements sizing.Element and compositor.Canvas.
//
// A zero LockedWidth or LockedHeight means layout follows the backing store
// on that axis (client size = pixel size / DPR), like a canvas whose CSS
// leaves the axis auto.
type Surface struct {
	LockedWidth  float64
	LockedHeight float64
	DPR          float64

	// Scaler resamples on draw; ApproxBiLinear when nil.
	Scaler xdraw.Scaler

	img *image.RGBA
}

// New returns a surface with an intrinsic backing size of w×h.
func New(w, h int) *Surface {
	return &Surface{DPR: 1, img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func (s *Surface) Width() int  { return s.img.Rect.Dx() }
func (s *Surface) Height() int { return s.img.Rect.Dy() }

// SetWidth reallocates the backing store, which clears it.
func (s *Surface) SetWidth(w int) {
	if w < 0 {
		w = 0
	}
	s.img = image.NewRGBA(image.Rect(0, 0, w, s.Height()))
}

func (s *Surface) SetHeight(h int) {
	if h < 0 {
		h = 0
	}
	s.img = image.NewRGBA(image.Rect(0, 0, s.Width(), h))
}

func (s *Surface) ClientWidth() float64 {
	if s.LockedWidth > 0 {
		return s.LockedWidth
	}
	return float64(s.Width()) / s.DevicePixelRatio()
}

func (s *Surface) ClientHeight() float64 {
	if s.LockedHeight > 0 {
		return s.LockedHeight
	}
	return float64(s.Height()) / s.DevicePixelRatio()
}

func (s *Surface) DevicePixelRatio() float64 {
	if s.DPR <= 0 {
		return 1
	}
	return s.DPR
}

func (s *Surface) Size() (int, int) { return s.Width(), s.Height() }

func (s *Surface) Clear() {
	clear(s.img.Pix)
}

func (s *Surface) DrawImage(img image.Image, src, dst compositor.Rect) {
	scaler := s.Scaler
	if scaler == nil {
		scaler = xdraw.ApproxBiLinear
	}
	min := img.Bounds().Min
	sr := toRect(src).Add(min).Intersect(img.Bounds())
	dr := toRect(dst)
	if sr.Empty() || dr.Empty() {
		return
	}
	scaler.Scale(s.img, dr, img, sr, xdraw.Over, nil)
}

// Image returns the backing store. It is replaced on resize.
func (s *Surface) Image() *image.RGBA { return s.img }

func toRect(r compositor.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.W)),
		int(math.Round(r.Y+r.H)),
	)
}
