// Package observable provides a single-writer broadcast cell that retains its
// current value and replays it to every new subscriber before streaming later
// updates.
//
// Delivery is serialized per Subject: observers never run concurrently with
// each other and each observer sees values in publish order, exactly once.
// Observers may call Next or Subscribe on the same Subject; such calls are
// queued and delivered once the running callback returns.
package observable

import "sync"

// Observer receives values from a Subject.
type Observer[T any] func(T)

type observer[T any] struct {
	fn     Observer[T]
	start  uint64 // sequence number of the replayed value
	active bool
}

type task[T any] struct {
	value T
	seq   uint64
	// replay targets a single new observer; nil means broadcast.
	replay *observer[T]
}

// Subject holds one current value and fans it out to observers.
type Subject[T any] struct {
	mu         sync.Mutex
	value      T
	seq        uint64
	observers  []*observer[T]
	queue      []task[T]
	delivering bool
}

// NewSubject returns a Subject whose current value is initial.
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{value: initial}
}

// Value returns the most recently published value.
func (s *Subject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Next replaces the current value and delivers it to all observers.
func (s *Subject[T]) Next(v T) {
	s.mu.Lock()
	s.value = v
	s.seq++
	s.queue = append(s.queue, task[T]{value: v, seq: s.seq})
	s.drainLocked()
}

// Update atomically computes the next value from the current one. When fn
// reports false nothing is published. Update reports whether a value was
// published.
func (s *Subject[T]) Update(fn func(cur T) (next T, ok bool)) bool {
	s.mu.Lock()
	v, ok := fn(s.value)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.value = v
	s.seq++
	s.queue = append(s.queue, task[T]{value: v, seq: s.seq})
	s.drainLocked()
	return true
}

// Subscribe registers fn. fn first receives the current value, then every
// later value. The returned function unsubscribes; it is safe to call more
// than once.
func (s *Subject[T]) Subscribe(fn Observer[T]) (unsubscribe func()) {
	s.mu.Lock()
	o := &observer[T]{fn: fn, start: s.seq, active: true}
	s.observers = append(s.observers, o)
	s.queue = append(s.queue, task[T]{value: s.value, seq: s.seq, replay: o})
	s.drainLocked()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !o.active {
			return
		}
		o.active = false
		for i, cur := range s.observers {
			if cur == o {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				break
			}
		}
	}
}

// drainLocked delivers queued tasks. It must be called with s.mu held and
// releases it before returning. Only one goroutine drains at a time; others
// leave their tasks for the active drainer.
func (s *Subject[T]) drainLocked() {
	if s.delivering {
		s.mu.Unlock()
		return
	}
	s.delivering = true
	for len(s.queue) > 0 {
		t := s.queue[0]
		s.queue = s.queue[1:]

		var targets []*observer[T]
		if t.replay != nil {
			targets = []*observer[T]{t.replay}
		} else {
			for _, o := range s.observers {
				if o.start < t.seq {
					targets = append(targets, o)
				}
			}
		}
		s.mu.Unlock()

		for _, o := range targets {
			s.mu.Lock()
			active := o.active
			s.mu.Unlock()
			if active {
				o.fn(t.value)
			}
		}

		s.mu.Lock()
	}
	s.delivering = false
	s.mu.Unlock()
}
