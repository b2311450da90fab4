package base

import "fmt"

// SubID identifies a single subscription on an Event so it can be removed.
type SubID int64

type subscriber[T any] struct {
	id   SubID
	nice int
	fn   func(T)
	once bool
}

// Event implements a generalization of the observer pattern with priority
// support. Subscribers with a lower nice value are called earlier; ties are
// broken by registration order. Negative priorities are reserved for the
// engine's own subscribers so they always run before user code.
//
// Events are not synchronized. They follow the engine's cooperative
// scheduling model: subscriptions and emissions for a given flow happen on
// the single logical execution context that drives it.
type Event[T any] struct {
	subs   []subscriber[T]
	nextID SubID
}

// MinNice and MaxNice bound subscription priorities. The negative range is
// for internal subscribers only.
const (
	MinNice = -5
	MaxNice = 10
)

// Sub registers a callback with the given priority and returns its
// subscription id. A nice value outside [MinNice, MaxNice] is a programmer
// error.
func (e *Event[T]) Sub(nice int, fn func(T)) SubID {
	return e.sub(nice, fn, false)
}

// SubOnce registers a callback that is removed after its first invocation.
func (e *Event[T]) SubOnce(nice int, fn func(T)) SubID {
	return e.sub(nice, fn, true)
}

func (e *Event[T]) sub(nice int, fn func(T), once bool) SubID {
	if nice < MinNice || nice > MaxNice {
		panic(fmt.Sprintf("event priority %d out of range [%d, %d]", nice, MinNice, MaxNice))
	}
	e.nextID++
	s := subscriber[T]{id: e.nextID, nice: nice, fn: fn, once: once}

	// Insert after all subscribers with nice <= s.nice to keep the slice
	// ordered by priority and stable by registration time.
	at := len(e.subs)
	for i, cur := range e.subs {
		if cur.nice > s.nice {
			at = i
			break
		}
	}
	e.subs = append(e.subs, subscriber[T]{})
	copy(e.subs[at+1:], e.subs[at:])
	e.subs[at] = s
	return s.id
}

// Unsub removes a subscription. Unknown ids are ignored.
func (e *Event[T]) Unsub(id SubID) {
	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// Emit invokes all subscribers in priority order and drops one-off
// subscriptions afterwards.
func (e *Event[T]) Emit(v T) {
	// Snapshot so callbacks may subscribe or unsubscribe during emission.
	snapshot := make([]subscriber[T], len(e.subs))
	copy(snapshot, e.subs)

	for _, s := range snapshot {
		s.fn(v)
	}
	for _, s := range snapshot {
		if s.once {
			e.Unsub(s.id)
		}
	}
}

// Clear drops all subscriptions.
func (e *Event[T]) Clear() {
	e.subs = nil
}

// Len reports the number of active subscriptions.
func (e *Event[T]) Len() int {
	return len(e.subs)
}
