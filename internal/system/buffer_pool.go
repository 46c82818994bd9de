package system

import (
	"image"
	"sync"
)

// ImagePool reuses *image.RGBA frames of one size across a long export.
type ImagePool struct {
	mu    sync.RWMutex
	pools map[image.Point]*sync.Pool
}

var globalPool = NewImagePool()

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Point]*sync.Pool)}
}

// GetImage returns a frame buffer from the shared pool.
func GetImage(rect image.Rectangle) *image.RGBA {
	return globalPool.Get(rect)
}

// PutImage returns a frame buffer to the shared pool.
func PutImage(img *image.RGBA) {
	globalPool.Put(img)
}

// Get returns an image with the size of rect, origin at zero. A reused
// image keeps its old pixels.
func (p *ImagePool) Get(rect image.Rectangle) *image.RGBA {
	size := rect.Size()
	p.mu.RLock()
	pool, ok := p.pools[size]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		pool, ok = p.pools[size]
		if !ok {
			pool = &sync.Pool{
				New: func() any {
					return image.NewRGBA(image.Rectangle{Max: size})
				},
			}
			p.pools[size] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, ok := p.pools[img.Rect.Size()]
	p.mu.RUnlock()

	if ok {
		pool.Put(img)
	}
}
