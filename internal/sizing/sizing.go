// Package sizing resolves the pixel size of the drawing surface from its
// layout size, the device pixel ratio and the aspect policy.
package sizing

import "math"

// Element is the drawing surface as seen by layout. Width and Height are the
// backing store size in device pixels; the client sizes are the logical size
// imposed by layout. Setting a pixel size may change a client size when
// layout does not constrain that axis.
type Element interface {
	Width() int
	Height() int
	SetWidth(int)
	SetHeight(int)
	ClientWidth() float64
	ClientHeight() float64
	DevicePixelRatio() float64
}

// Axis is the side of the surface that follows layout.
type Axis int

const (
	AxisWidth Axis = iota
	AxisHeight
)

func (a Axis) String() string {
	if a == AxisHeight {
		return "height"
	}
	return "width"
}

// ParseAxis maps "height" to AxisHeight and anything else to AxisWidth.
func ParseAxis(s string) Axis {
	if s == "height" {
		return AxisHeight
	}
	return AxisWidth
}

// Descriptor is the resolved surface geometry.
type Descriptor struct {
	PixelWidth   int
	PixelHeight  int
	ClientWidth  float64
	ClientHeight float64
	DPR          float64
	Ratio        float64
}

// ratioLockTolerance is the relative ratio change above which a divergent
// secondary axis is treated as locked by layout rather than as rounding.
const ratioLockTolerance = 0.01

type Controller struct {
	el       Element
	explicit float64
	axis     Axis
	ratio    float64
	desc     Descriptor

	// OnResize runs at the end of every Update.
	OnResize func(Descriptor)
}

// New returns a controller for el. A positive ratio takes priority over the
// element's intrinsic size.
func New(el Element, ratio float64, axis Axis) *Controller {
	return &Controller{el: el, explicit: ratio, axis: axis}
}

// SetRatio replaces the explicit ratio; 0 keeps the current resolved ratio.
func (c *Controller) SetRatio(r float64) {
	if r < 0 || math.IsNaN(r) {
		r = 0
	}
	c.explicit = r
}

func (c *Controller) SetAxis(a Axis) { c.axis = a }

func (c *Controller) Ratio() float64 { return c.ratio }

func (c *Controller) Descriptor() Descriptor { return c.desc }

// Update recomputes the surface pixel size and returns the new descriptor.
func (c *Controller) Update() Descriptor {
	el := c.el
	if c.explicit > 0 {
		c.ratio = c.explicit
	} else if c.ratio == 0 && el.Height() > 0 {
		// the intrinsic ratio is read once, later sizes are ours
		c.ratio = float64(el.Width()) / float64(el.Height())
	}
	if c.ratio <= 0 || math.IsNaN(c.ratio) || math.IsInf(c.ratio, 0) {
		c.ratio = 2
	}

	dpr := math.Round(el.DevicePixelRatio()*100) / 100
	if dpr <= 0 || math.IsNaN(dpr) {
		dpr = 1
	}

	initialMain := c.clientMain()
	c.setMain(c.clientMain() * dpr)
	if initialMain != c.clientMain() {
		c.setMain(c.clientMain() * dpr)
	}

	var raw float64
	if c.axis == AxisWidth {
		raw = el.ClientWidth() / c.ratio
	} else {
		raw = el.ClientHeight() * c.ratio
	}
	c.setSecondary(math.Round(raw) * dpr)

	diff := math.Abs(float64(c.secondary()) - c.clientSecondary()*dpr)
	switch {
	case diff > dpr && el.ClientWidth() > 0 && el.ClientHeight() > 0:
		newRatio := el.ClientWidth() / el.ClientHeight()
		if math.Abs(c.ratio-newRatio)/c.ratio > ratioLockTolerance {
			c.setSecondary(c.clientSecondary() * dpr)
			c.ratio = newRatio
		} else {
			c.snapSecondary()
		}
	case diff > 0:
		c.snapSecondary()
	}

	c.desc = Descriptor{
		PixelWidth:   el.Width(),
		PixelHeight:  el.Height(),
		ClientWidth:  el.ClientWidth(),
		ClientHeight: el.ClientHeight(),
		DPR:          dpr,
		Ratio:        c.ratio,
	}
	if c.OnResize != nil {
		c.OnResize(c.desc)
	}
	return c.desc
}

// snapSecondary derives the secondary pixel size from the main one.
func (c *Controller) snapSecondary() {
	if c.axis == AxisWidth {
		c.setSecondary(float64(c.el.Width()) / c.ratio)
	} else {
		c.setSecondary(float64(c.el.Height()) * c.ratio)
	}
}

func (c *Controller) clientMain() float64 {
	if c.axis == AxisWidth {
		return c.el.ClientWidth()
	}
	return c.el.ClientHeight()
}

func (c *Controller) clientSecondary() float64 {
	if c.axis == AxisWidth {
		return c.el.ClientHeight()
	}
	return c.el.ClientWidth()
}

func (c *Controller) secondary() int {
	if c.axis == AxisWidth {
		return c.el.Height()
	}
	return c.el.Width()
}

// pixel sizes truncate like a canvas backing store does
func (c *Controller) setMain(v float64) {
	if c.axis == AxisWidth {
		c.el.SetWidth(int(v))
	} else {
		c.el.SetHeight(int(v))
	}
}

func (c *Controller) setSecondary(v float64) {
	if c.axis == AxisWidth {
		c.el.SetHeight(int(v))
	} else {
		c.el.SetWidth(int(v))
	}
}
