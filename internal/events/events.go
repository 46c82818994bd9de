// Package events carries the notifications a player emits on its drawing
// surface. Listeners are called synchronously on the host thread.
package events

const prefix = "frameseq:"

// Event names.
const (
	LoadingProgress     = prefix + "loading-progress"
	LoadingError        = prefix + "loading-error"
	PreloadFinished     = prefix + "preload-finished"
	FastPreloadFinished = prefix + "fast-preload-finished"
	PosterLoaded        = prefix + "poster-loaded"
	AnimationEnd        = prefix + "animation-end"
	DragStart           = prefix + "drag-start"
	DragChange          = prefix + "drag-change"
	DragEnd             = prefix + "drag-end"
)

// Event is one notification. Only the fields relevant to Name are set.
type Event struct {
	Name      string
	Progress  float64 // LoadingProgress
	Frame     int     // drag events
	Direction string  // DragChange, DragEnd
	Src       string  // LoadingError
	Err       error   // LoadingError
}

type listener struct {
	id int
	fn func(Event)
}

// Bus dispatches events to listeners registered by name. The zero value is
// ready to use. Bus is not safe for concurrent use.
type Bus struct {
	nextID    int
	listeners map[string][]listener
}

// On registers fn for events called name and returns a function removing it.
func (b *Bus) On(name string, fn func(Event)) (remove func()) {
	if b.listeners == nil {
		b.listeners = make(map[string][]listener)
	}
	b.nextID++
	id := b.nextID
	b.listeners[name] = append(b.listeners[name], listener{id: id, fn: fn})
	return func() {
		ls := b.listeners[name]
		for i, l := range ls {
			if l.id == id {
				b.listeners[name] = append(ls[:i:i], ls[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every listener of e.Name in registration order.
func (b *Bus) Emit(e Event) {
	ls := b.listeners[e.Name]
	if len(ls) == 0 {
		return
	}
	// listeners may unsubscribe while we iterate
	snapshot := make([]listener, len(ls))
	copy(snapshot, ls)
	for _, l := range snapshot {
		l.fn(e)
	}
}
