package storage

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/vessel/memutils"
)

// Storage is a block of capacity slots for values of T. Storage only acquires and releases memory:
// every slot it hands out is raw (zeroed), and it never constructs or destroys the values held in
// those slots. Tracking which slots hold live values is the job of whatever owns the Storage.
//
// The zero value is an empty Storage that will acquire blocks from DefaultAllocator.
type Storage[T any] struct {
	block     []T
	id        BlockID
	allocator *Allocator
}

// New acquires a block with exactly capacity slots from the provided allocator, or from
// DefaultAllocator if allocator is nil. A capacity of 0 performs no allocation. If the memory cannot
// be provided, an error wrapping memutils.OutOfMemoryError is returned and nothing is acquired.
func New[T any](allocator *Allocator, capacity int) (Storage[T], error) {
	s := Storage[T]{allocator: allocator}

	err := memutils.CheckNonNegative(capacity, "capacity")
	if err != nil {
		return s, err
	}

	if capacity == 0 {
		return s, nil
	}

	size, err := memutils.CheckedByteSize(capacity, ElementSize[T]())
	if err != nil {
		return s, err
	}

	alloc := s.Allocator()
	id, err := alloc.acquire(size)
	if err != nil {
		return s, err
	}

	block, err := makeSlots[T](capacity)
	if err != nil {
		alloc.release(id)
		return s, err
	}

	s.block = block
	s.id = id
	return s, nil
}

// Empty returns a Storage that owns no block but will acquire blocks from the provided allocator
func Empty[T any](allocator *Allocator) Storage[T] {
	return Storage[T]{allocator: allocator}
}

func makeSlots[T any](capacity int) (block []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(memutils.OutOfMemoryError, "could not make %d slots: %v", capacity, r)
		}
	}()

	return make([]T, capacity), nil
}

// ElementSize returns the number of bytes a single slot of T occupies
func ElementSize[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

// Allocator returns the allocator this storage acquires its blocks from
func (s *Storage[T]) Allocator() *Allocator {
	if s.allocator == nil {
		return DefaultAllocator()
	}

	return s.allocator
}

// Capacity returns the number of slots in the block
func (s *Storage[T]) Capacity() int { return len(s.block) }

// Bytes returns the size of the block in bytes
func (s *Storage[T]) Bytes() int { return len(s.block) * int(ElementSize[T]()) }

// ID returns the id of the owned block, or NoBlock
func (s *Storage[T]) ID() BlockID { return s.id }

// Slot returns the address of slot i. The index is not checked unless the debug_vessel build tag is
// present.
func (s *Storage[T]) Slot(i int) *T {
	memutils.DebugCheckIndex(i, len(s.block), "storage slot")
	return &s.block[i]
}

// Slots returns every slot in the block, live or not
func (s *Storage[T]) Slots() []T {
	return s.block
}

// Wipe returns slot i to the raw state without treating it as a live value
func (s *Storage[T]) Wipe(i int) {
	var zero T
	s.block[i] = zero
}

// Swap exchanges the blocks owned by two storage objects. It never fails and never touches
// the slots themselves.
func (s *Storage[T]) Swap(other *Storage[T]) {
	s.block, other.block = other.block, s.block
	s.id, other.id = other.id, s.id
	s.allocator, other.allocator = other.allocator, s.allocator
}

// Release returns the owned block to its allocator. Any values still live in the block are simply
// dropped: destroying them first is the responsibility of the owner. Releasing an empty storage is a
// no-op.
func (s *Storage[T]) Release() {
	if s.block == nil {
		return
	}

	s.Allocator().release(s.id)
	s.block = nil
	s.id = NoBlock
}

func (s *Storage[T]) Validate() error {
	if s.block == nil && s.id != NoBlock {
		return errors.Newf("storage has no block but carries block id %d", s.id)
	}
	if s.block != nil && s.id == NoBlock {
		return errors.New("storage has a block with no block id")
	}
	if cap(s.block) != len(s.block) {
		return errors.Newf("storage block has %d slots but %d capacity", len(s.block), cap(s.block))
	}

	return nil
}

func (s *Storage[T]) String() string {
	return fmt.Sprintf("Storage{id: %d, capacity: %d, bytes: %d}", s.id, s.Capacity(), s.Bytes())
}
