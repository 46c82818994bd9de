// Package compositor fits a frame image onto the drawing surface.
//
// Cover scales the image until it fills the surface and crops what overflows;
// contain scales it until it fits whole and leaves margins. Both center the
// image.
package compositor

import (
	"image"
	"math"
)

// FillMode selects the fitting policy.
type FillMode int

const (
	Cover FillMode = iota
	Contain
)

func (m FillMode) String() string {
	if m == Contain {
		return "contain"
	}
	return "cover"
}

// ParseFillMode reports false for anything but "cover" and "contain".
func ParseFillMode(s string) (FillMode, bool) {
	switch s {
	case "cover":
		return Cover, true
	case "contain":
		return Contain, true
	}
	return Cover, false
}

// Rect is a rectangle in fractional pixels.
type Rect struct {
	X, Y, W, H float64
}

// Size is a width and height in pixels.
type Size struct {
	W, H float64
}

const (
	offsetX = 0.5
	offsetY = 0.5
)

// CoverRects returns the source crop and destination rectangle that make an
// image of natural size img cover a surface of size dst.
func CoverRects(img, dst Size) (src, out Rect) {
	minRatio := math.Min(dst.W/img.W, dst.H/img.H)
	newW := img.W * minRatio
	newH := img.H * minRatio

	// grow whichever side leaves a gap
	ar := 1.0
	if newW < dst.W {
		ar = dst.W / newW
	}
	if math.Abs(ar-1) < 1e-14 && newH < dst.H {
		ar = dst.H / newH
	}
	newW *= ar
	newH *= ar

	src.W = img.W / (newW / dst.W)
	src.H = img.H / (newH / dst.H)
	src.X = (img.W - src.W) * offsetX
	src.Y = (img.H - src.H) * offsetY

	// never read outside the image
	if src.X < 0 {
		src.X = 0
	}
	if src.Y < 0 {
		src.Y = 0
	}
	if src.W > img.W {
		src.W = img.W
	}
	if src.H > img.H {
		src.H = img.H
	}
	return src, Rect{W: dst.W, H: dst.H}
}

// ContainRects returns the full-image source and the centered destination
// rectangle that fit an image of natural size img inside dst.
func ContainRects(img, dst Size) (src, out Rect) {
	r := math.Min(dst.W/img.W, dst.H/img.H)
	newW := img.W * r
	newH := img.H * r
	src = Rect{W: img.W, H: img.H}
	out = Rect{
		X: (dst.W - newW) * offsetX,
		Y: (dst.H - newH) * offsetY,
		W: newW,
		H: newH,
	}
	return src, out
}

// Canvas is a 2D drawing surface measured in device pixels. DrawImage reads
// src from img in coordinates relative to img.Bounds().Min.
type Canvas interface {
	Size() (w, h int)
	Clear()
	DrawImage(img image.Image, src, dst Rect)
}

// FrameInfo is handed to the draw hooks.
type FrameInfo struct {
	Canvas Canvas
	Width  int
	Height int
}

type Compositor struct {
	Canvas Canvas
	Mode   FillMode

	// Before and After bracket every draw.
	Before func(FrameInfo)
	After  func(FrameInfo)
}

func (c *Compositor) Clear() {
	c.Canvas.Clear()
}

// Rects computes the rectangles Draw would use for img.
func (c *Compositor) Rects(img image.Image) (src, dst Rect) {
	b := img.Bounds()
	w, h := c.Canvas.Size()
	natural := Size{W: float64(b.Dx()), H: float64(b.Dy())}
	surface := Size{W: float64(w), H: float64(h)}
	if c.Mode == Contain {
		return ContainRects(natural, surface)
	}
	return CoverRects(natural, surface)
}

// Draw paints img with the configured fill mode. It does not clear first.
func (c *Compositor) Draw(img image.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	w, h := c.Canvas.Size()
	if b.Empty() || w == 0 || h == 0 {
		return
	}
	src, dst := c.Rects(img)
	info := FrameInfo{Canvas: c.Canvas, Width: w, Height: h}
	if c.Before != nil {
		c.Before(info)
	}
	c.Canvas.DrawImage(img, src, dst)
	if c.After != nil {
		c.After(info)
	}
}
