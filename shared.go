package sharedptr

import (
	"reflect"
	"sync"

	"github.com/llxisdsh/pb"
)

// controlBlock pairs a managed value with its ownership counter. Blocks
// are recycled: once the counter sticks at zero the payload is destroyed
// and the block is retired to the default domain, whose cleanup returns
// it to a per-type pool only after no hazard pointer announces it.
type controlBlock[T any] struct {
	ObjBase
	counter StickyCounter
	deleter func(*T)
	pool    *sync.Pool
	value   T
}

// Reclaim returns the block to its pool.
func (cb *controlBlock[T]) Reclaim() {
	cb.pool.Put(cb)
}

// destroy runs the deleter and drops the payload. The block itself stays
// valid memory until its retirement is reclaimed.
func (cb *controlBlock[T]) destroy() {
	if cb.deleter != nil {
		cb.deleter(&cb.value)
		cb.deleter = nil
	}
	var zero T
	cb.value = zero
	DefaultDomain().Retire(cb)
}

// addRef takes n more references; false means the block already died.
func (cb *controlBlock[T]) addRef(n uint64) bool {
	return cb.counter.IncrementIfNotZero(n)
}

// releaseRef drops one reference, destroying the payload on the last one.
func (cb *controlBlock[T]) releaseRef() {
	if cb.counter.Decrement(1) {
		cb.destroy()
	}
}

// controlBlockPools holds one pool per payload type.
var controlBlockPools pb.MapOf[reflect.Type, *sync.Pool]

func controlBlockPool[T any]() *sync.Pool {
	t := reflect.TypeFor[T]()
	if p, ok := controlBlockPools.Load(t); ok {
		return p
	}
	p, _ := controlBlockPools.LoadOrStore(t, &sync.Pool{
		New: func() any { return new(controlBlock[T]) },
	})
	return p
}

func newControlBlock[T any](v T, deleter func(*T)) *controlBlock[T] {
	pool := controlBlockPool[T]()
	cb := pool.Get().(*controlBlock[T])
	cb.pool = pool
	cb.deleter = deleter
	cb.value = v
	cb.counter.Init(1)
	return cb
}

// Shared is a reference-counted handle to a value of type T. Copying a
// Shared does not add a reference: use Clone for a second owner and
// Release exactly once per owned handle. The zero value is the empty
// handle.
type Shared[T any] struct {
	cb *controlBlock[T]
}

// MakeShared allocates a control block holding v with a use count of one.
func MakeShared[T any](v T) Shared[T] {
	return Shared[T]{cb: newControlBlock(v, nil)}
}

// MakeSharedFunc is like MakeShared and additionally runs deleter on the
// value when the last reference is released.
func MakeSharedFunc[T any](v T, deleter func(*T)) Shared[T] {
	return Shared[T]{cb: newControlBlock(v, deleter)}
}

// Get returns a pointer to the managed value, or nil for the empty
// handle. The pointer is valid while the handle is owned.
func (s Shared[T]) Get() *T {
	if s.cb == nil {
		return nil
	}
	return &s.cb.value
}

// IsNil reports whether s is the empty handle.
func (s Shared[T]) IsNil() bool {
	return s.cb == nil
}

// UseCount returns the number of live handles sharing s's control block.
func (s Shared[T]) UseCount() uint64 {
	if s.cb == nil {
		return 0
	}
	return s.cb.counter.Load()
}

// Same reports whether s and o share a control block. Two handles to
// distinct blocks holding equal values are not the same.
func (s Shared[T]) Same(o Shared[T]) bool {
	return s.cb == o.cb
}

// Clone returns a new owned handle to the same value.
func (s Shared[T]) Clone() Shared[T] {
	if s.cb == nil {
		return Shared[T]{}
	}
	ok := s.cb.addRef(1)
	assert(ok, "Clone of a released handle")
	return s
}

// Release drops s's reference and empties s. Releasing the empty handle
// is a no-op.
func (s *Shared[T]) Release() {
	cb := s.cb
	if cb == nil {
		return
	}
	s.cb = nil
	cb.releaseRef()
}
