// Package sharedref provides the use-counted ownership primitive for sub-objects
// shared between several entities. A shared object embeds Count; holders keep it
// alive through Handle values, which make the add-ref/release pairing explicit.
package sharedref

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrOverRelease is returned when Release is called on an object whose count is
// already zero.
var ErrOverRelease = errors.New("sharedref: release on object with zero use count")

// ErrDestroyed is returned when a handle is used after its object was destroyed.
var ErrDestroyed = errors.New("sharedref: object already destroyed")

// ErrShared is returned when an in-place mutation is attempted on an object that
// is visible through more than one reference.
var ErrShared = errors.New("sharedref: object is shared; clone before mutating")

// Counted is implemented by every use-counted sub-object.
type Counted interface {
	AddRef()
	Release() error
	UseCount() int64
}

// Count is the embeddable counter behind Counted. The zero value has a count of
// zero; the first holder must call AddRef.
type Count struct {
	n         atomic.Int64
	destroyed atomic.Bool
	onDestroy func()
}

// OnDestroy registers the function run exactly once when the count returns to zero.
func (c *Count) OnDestroy(fn func()) {
	c.onDestroy = fn
}

// AddRef increments the use count.
func (c *Count) AddRef() {
	c.n.Add(1)
}

// Release decrements the use count and destroys the object when it reaches zero.
func (c *Count) Release() error {
	for {
		cur := c.n.Load()
		if cur <= 0 {
			return ErrOverRelease
		}
		if c.n.CompareAndSwap(cur, cur-1) {
			if cur == 1 {
				c.destroy()
			}
			return nil
		}
	}
}

// UseCount reports the number of live references.
func (c *Count) UseCount() int64 {
	return c.n.Load()
}

// Destroyed reports whether the count has reached zero after being held.
func (c *Count) Destroyed() bool {
	return c.destroyed.Load()
}

func (c *Count) destroy() {
	if !c.destroyed.CompareAndSwap(false, true) {
		return
	}
	if c.onDestroy != nil {
		c.onDestroy()
	}
}

// Handle is a value wrapper that owns exactly one reference to its target. The
// zero Handle is empty.
type Handle[T Counted] struct {
	ptr T
	set bool
}

// New takes a reference to obj and returns a handle owning it.
func New[T Counted](obj T) Handle[T] {
	obj.AddRef()
	return Handle[T]{ptr: obj, set: true}
}

// Get returns the wrapped object. ok is false for an empty handle.
func (h Handle[T]) Get() (obj T, ok bool) {
	return h.ptr, h.set
}

// Ptr returns the wrapped object or the zero value.
func (h Handle[T]) Ptr() T {
	return h.ptr
}

// Valid reports whether the handle wraps an object.
func (h Handle[T]) Valid() bool {
	return h.set
}

// Copy returns a second handle to the same object, taking an extra reference.
func (h Handle[T]) Copy() Handle[T] {
	if !h.set {
		return Handle[T]{}
	}
	h.ptr.AddRef()
	return Handle[T]{ptr: h.ptr, set: true}
}

// Close releases the reference held by the handle and empties it.
func (h *Handle[T]) Close() error {
	if !h.set {
		return nil
	}
	obj := h.ptr
	var zero T
	h.ptr, h.set = zero, false
	return obj.Release()
}

// Reset points the handle at obj, taking the new reference before releasing the
// previous one so self-assignment is safe.
func (h *Handle[T]) Reset(obj T) error {
	obj.AddRef()
	old := *h
	h.ptr, h.set = obj, true
	if !old.set {
		return nil
	}
	return old.ptr.Release()
}

// Unique reports whether the handle holds the only reference.
func (h Handle[T]) Unique() bool {
	return h.set && h.ptr.UseCount() == 1
}

// Mutate runs fn against the object only when this handle is its sole owner.
func (h Handle[T]) Mutate(fn func(T)) error {
	if !h.set {
		return fmt.Errorf("sharedref: mutate empty handle")
	}
	if d, ok := any(h.ptr).(interface{ Destroyed() bool }); ok && d.Destroyed() {
		return ErrDestroyed
	}
	if h.ptr.UseCount() > 1 {
		return ErrShared
	}
	fn(h.ptr)
	return nil
}

// MakeUnique guarantees the handle is the sole owner of its object, replacing a
// shared target with clone(target). It reports whether a clone was made.
func (h *Handle[T]) MakeUnique(clone func(T) T) (bool, error) {
	if !h.set {
		return false, fmt.Errorf("sharedref: make unique on empty handle")
	}
	if h.ptr.UseCount() <= 1 {
		return false, nil
	}
	if err := h.Reset(clone(h.ptr)); err != nil {
		return true, err
	}
	return true, nil
}

// Target exposes the wrapped object through the Counted interface; nil when empty.
func (h Handle[T]) Target() Counted {
	if !h.set {
		return nil
	}
	return h.ptr
}
