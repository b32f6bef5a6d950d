// Package memo provides a compute-once cell for lazily derived values.
//
// A Cell runs its compute function on first access and keeps the result for
// the lifetime of the owner. Failed computations are not cached, so a later
// call retries (an artifact written after a failed read becomes visible).
package memo

import "sync"

// Cell holds a lazily computed value of type T.
// The zero value is ready to use.
type Cell[T any] struct {
	mu   sync.Mutex
	done bool
	val  T
}

// Get returns the cached value, computing it with fn if needed.
func (c *Cell[T]) Get(fn func() (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return c.val, nil
	}

	v, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}

	c.val = v
	c.done = true
	return v, nil
}

// Loaded reports whether the value has been computed.
func (c *Cell[T]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
