// Package frames holds the arithmetic shared by everything that moves the
// current frame: normalization of requested frame numbers, the advance rule
// used by the clock and the drag mapper, and playTo path selection.
//
// Frames are 1-indexed.
package frames

import "math"

// Normalize floors n and clamps it into [1, total].
func Normalize(n float64, total int) int {
	if math.IsNaN(n) {
		return 1
	}
	f := math.Floor(n)
	if f <= 0 {
		return 1
	}
	if f > float64(total) {
		if total < 1 {
			return 1
		}
		return total
	}
	return int(f)
}

// Advance moves current by delta frames forward, or backward when reverse is
// set. With loop the result wraps into [1, total]; without it the result is
// clamped and hitBound reports that an edge of the sequence was reached.
func Advance(current, delta, total int, reverse, loop bool) (frame int, hitBound bool) {
	if total < 1 {
		return 1, true
	}
	next := current + delta
	if reverse {
		next = current - delta
	}
	if loop {
		return wrap(next, total), false
	}
	if next <= 0 {
		return 1, true
	}
	if next > total {
		return total, true
	}
	return next, false
}

// wrap maps any integer onto [1, total]; 0 is total, total+1 is 1.
func wrap(n, total int) int {
	m := (n - 1) % total
	if m < 0 {
		m += total
	}
	return m + 1
}

// PathTo picks the direction and distance for playing from current to target.
// The inner path never crosses the sequence edge. The outer path wraps around
// it and is only taken when loop and shortest are set and it is strictly
// shorter.
func PathTo(current, target, total int, loop, shortest bool) (distance int, reverse bool) {
	inner := target - current
	if inner < 0 {
		inner = -inner
	}
	outer := total - inner
	if loop && shortest && outer < inner {
		return outer, target >= current
	}
	return inner, target <= current
}
