package sessions

import (
	"context"
	"sync"
)

// Listener receives store events. It runs on the goroutine that mutated the
// store, after the store's locks are released, so it may call back into the store.
type Listener func(Event)

type listeners struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]Listener
}

func (l *listeners) add(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.byID == nil {
		l.byID = make(map[int]Listener)
	}
	id := l.nextID
	l.nextID++
	l.byID[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.byID, id)
		})
	}
}

func (l *listeners) publish(e Event) {
	l.mu.Lock()
	snapshot := make([]Listener, 0, len(l.byID))
	for _, fn := range l.byID {
		snapshot = append(snapshot, fn)
	}
	l.mu.Unlock()

	for _, fn := range snapshot {
		fn(e)
	}
}

// Subscribe registers fn for every future event and returns a func that
// unregisters it. The returned func is safe to call more than once.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	return s.listeners.add(fn)
}

const watchBuffer = 16

// Watch delivers events on a channel until ctx is done, then closes it.
// A watcher that falls more than watchBuffer events behind misses events;
// Status() is always authoritative.
func (s *Store) Watch(ctx context.Context) <-chan Event {
	w := &watcher{ch: make(chan Event, watchBuffer)}
	unsubscribe := s.Subscribe(w.send)
	go func() {
		<-ctx.Done()
		unsubscribe()
		w.close()
	}()
	return w.ch
}

type watcher struct {
	mu     sync.Mutex
	closed bool
	ch     chan Event
}

func (w *watcher) send(e Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.ch <- e:
	default:
	}
}

func (w *watcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	close(w.ch)
}
