// Package store holds process-wide, observable state snapshots.
//
// A Store keeps one immutable value. Writers replace it wholesale through
// Set or Update; every replacement is delivered synchronously, in order, to
// all observers registered at that moment. Snapshot values handed out by
// Get or to observers are shared and must be treated as read-only.
//
// Observers run while the store serializes writers, so an observer must not
// write to the store that is notifying it.
package store

import (
	"reflect"
	"sort"
	"sync"
)

type Store[T any] struct {
	// writeMu serializes read-modify-write cycles and their notification round
	writeMu sync.Mutex

	mu        sync.Mutex
	value     T
	observers map[uint64]func(T)
	nextID    uint64
}

// New creates a store holding initial.
func New[T any](initial T) *Store[T] {
	return &Store[T]{
		value:     initial,
		observers: make(map[uint64]func(T)),
	}
}

// Get returns the current snapshot.
func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the snapshot and notifies every observer once.
func (s *Store[T]) Set(next T) {
	s.Mutate(func(T) (T, bool) { return next, true })
}

// Update derives the next snapshot from the current one and notifies.
func (s *Store[T]) Update(fn func(prev T) T) T {
	next, _ := s.Mutate(func(prev T) (T, bool) { return fn(prev), true })
	return next
}

// Mutate runs fn against the current snapshot as a critical section. When fn
// reports no change the snapshot is kept and nobody is notified.
func (s *Store[T]) Mutate(fn func(prev T) (T, bool)) (T, bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next, changed := fn(s.value)
	if !changed {
		current := s.value
		s.mu.Unlock()
		return current, false
	}
	s.value = next
	observers := s.observerList()
	s.mu.Unlock()

	for _, observer := range observers {
		observer(next)
	}
	return next, true
}

// Subscribe registers onChange for every future snapshot. The returned
// function removes the observer and is safe to call more than once.
func (s *Store[T]) Subscribe(onChange func(T)) (unsubscribe func()) {
	_, unsubscribe = s.subscribe(func(T) func(T) { return onChange })
	return unsubscribe
}

// subscribe registers the observer built by newObserver from the snapshot
// current at registration time, so no replacement is missed or seen twice.
func (s *Store[T]) subscribe(newObserver func(current T) func(T)) (T, func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	current := s.value
	s.observers[id] = newObserver(current)
	s.mu.Unlock()

	var once sync.Once
	return current, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Observers returns how many observers are registered.
func (s *Store[T]) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers)
}

// observerList returns observers in registration order. Caller holds s.mu.
func (s *Store[T]) observerList() []func(T) {
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	list := make([]func(T), 0, len(ids))
	for _, id := range ids {
		list = append(list, s.observers[id])
	}
	return list
}

// SubscribeWithSelector notifies onChange only when the slice of state
// picked by selector changes. A nil equal compares with reflect.DeepEqual.
func SubscribeWithSelector[T, S any](s *Store[T], selector func(T) S, equal func(a, b S) bool, onChange func(S)) (unsubscribe func()) {
	if equal == nil {
		equal = func(a, b S) bool { return reflect.DeepEqual(a, b) }
	}

	_, unsubscribe = s.subscribe(func(current T) func(T) {
		last := selector(current)
		return func(next T) {
			selected := selector(next)
			if equal(last, selected) {
				return
			}
			last = selected
			onChange(selected)
		}
	})
	return unsubscribe
}

// Equal is the == comparison for comparable selections.
func Equal[S comparable](a, b S) bool {
	return a == b
}
