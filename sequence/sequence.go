package sequence

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/vessel/memutils"
	"github.com/vkngwrapper/vessel/storage"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// CreateOptions contains optional settings when creating a sequence
type CreateOptions[T any] struct {
	// Allocator is the allocator that storage blocks are acquired from. If nil,
	// storage.DefaultAllocator() is used.
	Allocator *storage.Allocator
	// Traits controls how elements are constructed, copied, moved and destroyed. If nil,
	// ValueTraits[T] is used.
	Traits Traits[T]
	// Logger receives debug records about reallocation. If nil, slog.Default() is used.
	Logger *slog.Logger
	// InitialCapacity is the number of slots to acquire up front
	InitialCapacity int
}

// Sequence is a resizable, contiguous container of T. It tracks how many of its storage slots hold
// live elements: slots [0, Len()) are live and slots [Len(), Cap()) are raw. Elements are only ever
// created and destroyed through the sequence's Traits.
//
// Every operation that can fail leaves the sequence as it was before the call (with the exception
// that a failed append may leave the capacity grown). Index preconditions are not checked unless the
// debug_vessel build tag is present.
//
// The zero value is an empty sequence that uses ValueTraits and the default allocator. A Sequence is
// not safe for concurrent use.
type Sequence[T any] struct {
	storage storage.Storage[T]
	length  int
	traits  Traits[T]
	logger  *slog.Logger
}

// New creates an empty sequence
//
// options - Optional parameters: it is valid to leave all the fields blank
func New[T any](options CreateOptions[T]) (*Sequence[T], error) {
	s := &Sequence[T]{
		traits: options.Traits,
		logger: options.Logger,
	}

	block, err := storage.New[T](options.Allocator, options.InitialCapacity)
	if err != nil {
		return nil, err
	}
	s.storage = block

	return s, nil
}

// NewFilled creates a sequence holding count copies of value, with exactly count slots of capacity.
// If any copy fails, everything copied so far is destroyed, the storage is released, and the error is
// returned.
func NewFilled[T any](count int, value T, options CreateOptions[T]) (*Sequence[T], error) {
	options.InitialCapacity = count
	s, err := New[T](options)
	if err != nil {
		return nil, err
	}

	err = s.ResizeFill(count, value)
	if err != nil {
		s.storage.Release()
		return nil, err
	}

	return s, nil
}

func (s *Sequence[T]) elementTraits() Traits[T] {
	if s.traits == nil {
		return ValueTraits[T]{}
	}
	return s.traits
}

func (s *Sequence[T]) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

// Len returns the number of live elements
func (s *Sequence[T]) Len() int { return s.length }

// Cap returns the number of slots in the sequence's storage
func (s *Sequence[T]) Cap() int { return s.storage.Capacity() }

// Allocator returns the allocator the sequence's storage is acquired from
func (s *Sequence[T]) Allocator() *storage.Allocator { return s.storage.Allocator() }

// At returns the address of element i. The address remains valid until the next operation that
// reallocates. i is not checked unless the debug_vessel build tag is present.
func (s *Sequence[T]) At(i int) *T {
	memutils.DebugCheckIndex(i, s.length, "sequence element")
	return s.storage.Slot(i)
}

// Get returns a copy of element i. i is not checked unless the debug_vessel build tag is present.
func (s *Sequence[T]) Get(i int) T {
	return *s.At(i)
}

// Slice returns the live elements. The slice aliases the sequence's storage and is invalidated by
// any operation that reallocates.
func (s *Sequence[T]) Slice() []T {
	return s.storage.Slots()[:s.length]
}

// Data returns the address of the first slot, or nil if the sequence has no storage
func (s *Sequence[T]) Data() *T {
	if s.storage.Capacity() == 0 {
		return nil
	}
	return s.storage.Slot(0)
}

// Equal reports whether both sequences hold the same number of elements and eq holds for every
// pair of elements at the same index.
func (s *Sequence[T]) Equal(other *Sequence[T], eq func(a, b T) bool) bool {
	return slices.EqualFunc(s.Slice(), other.Slice(), eq)
}

// destroyRange destroys the live elements in [from, to) of block
func (s *Sequence[T]) destroyRange(block *storage.Storage[T], from, to int) {
	traits := s.elementTraits()
	for i := from; i < to; i++ {
		traits.Destroy(block.Slot(i))
	}
}

// copyFrom acquires a block of the requested capacity and copies every live element of src into it.
// On failure the copies are destroyed and the block released before the error is returned.
func (s *Sequence[T]) copyFrom(src *Sequence[T], capacity int) (storage.Storage[T], error) {
	block, err := storage.New[T](s.storage.Allocator(), capacity)
	if err != nil {
		return block, err
	}

	traits := s.elementTraits()
	for i := 0; i < src.length; i++ {
		err = traits.Copy(block.Slot(i), src.storage.Slot(i))
		if err != nil {
			block.Wipe(i)
			s.destroyRange(&block, 0, i)
			block.Release()
			return block, errors.Wrapf(err, "failed to copy element %d", i)
		}
	}

	return block, nil
}

// reallocate moves the live elements into a new block of exactly capacity slots. Elements are
// relocated with Move when the traits promise it cannot fail, and with Copy otherwise.
//
// If appended is not nil, it constructs a new last element in the new block before any element is
// relocated, so it may safely read from the sequence's current elements. On success the length grows
// by one. If construction or relocation fails, the new block is unwound and the sequence is unchanged.
func (s *Sequence[T]) reallocate(capacity int, appended func(slot *T) error) error {
	block, err := storage.New[T](s.storage.Allocator(), capacity)
	if err != nil {
		return err
	}

	newLength := s.length
	if appended != nil {
		err = constructSlot(&block, s.length, appended)
		if err != nil {
			block.Release()
			return err
		}
		newLength++
	}

	traits := s.elementTraits()
	if traits.NoFailMove() {
		for i := 0; i < s.length; i++ {
			err = traits.Move(block.Slot(i), s.storage.Slot(i))
			if err != nil {
				panic(errors.Wrapf(err, "traits reported moves cannot fail, but moving element %d failed", i))
			}
		}
	} else {
		for i := 0; i < s.length; i++ {
			err = traits.Copy(block.Slot(i), s.storage.Slot(i))
			if err != nil {
				block.Wipe(i)
				s.destroyRange(&block, 0, i)
				s.destroyRange(&block, s.length, newLength)
				block.Release()
				return errors.Wrapf(err, "failed to relocate element %d", i)
			}
		}
	}

	s.log().Debug("Sequence::reallocate",
		slog.Int("OldCapacity", s.storage.Capacity()),
		slog.Int("NewCapacity", capacity),
		slog.Int("Length", newLength))

	s.storage.Swap(&block)
	s.destroyRange(&block, 0, s.length)
	block.Release()
	s.length = newLength

	return nil
}

// Clone creates a deep copy of the sequence, with the same capacity, traits, and allocator. If any
// element fails to copy, no sequence is created and the error is returned.
func (s *Sequence[T]) Clone() (*Sequence[T], error) {
	clone := &Sequence[T]{
		storage: storage.Empty[T](s.storage.Allocator()),
		traits:  s.traits,
		logger:  s.logger,
	}

	block, err := clone.copyFrom(s, s.storage.Capacity())
	if err != nil {
		return nil, err
	}
	clone.storage.Swap(&block)
	clone.length = s.length

	memutils.DebugValidate(clone)
	return clone, nil
}

// Assign replaces the contents of the sequence with copies of other's elements. The replacement is
// built in full before it is swapped in: if any copy fails, the sequence is unchanged and the error
// is returned.
func (s *Sequence[T]) Assign(other *Sequence[T]) error {
	if s == other {
		return nil
	}

	block, err := s.copyFrom(other, other.storage.Capacity())
	if err != nil {
		return err
	}

	oldLength := s.length
	s.storage.Swap(&block)
	s.length = other.length

	s.destroyRange(&block, 0, oldLength)
	block.Release()

	memutils.DebugValidate(s)
	return nil
}

// MoveFrom destroys the contents of the sequence and takes ownership of other's storage, elements,
// and traits. other is left empty with no storage.
func (s *Sequence[T]) MoveFrom(other *Sequence[T]) {
	if s == other {
		return
	}

	s.Destroy()
	s.Swap(other)
}

// Swap exchanges the storage, elements, and traits of two sequences. It never fails and never
// touches the elements themselves.
func (s *Sequence[T]) Swap(other *Sequence[T]) {
	s.storage.Swap(&other.storage)
	s.length, other.length = other.length, s.length
	s.traits, other.traits = other.traits, s.traits
	s.logger, other.logger = other.logger, s.logger
}

// Reserve grows the storage to exactly capacity slots if it currently has fewer. Reserve never
// reports failure: if the block cannot be acquired or the elements cannot be relocated, the sequence
// is left unchanged at its old capacity.
func (s *Sequence[T]) Reserve(capacity int) {
	if capacity <= s.storage.Capacity() {
		return
	}

	err := s.reallocate(capacity, nil)
	if err != nil {
		s.log().LogAttrs(context.Background(), slog.LevelDebug, "Sequence::Reserve left capacity unchanged",
			slog.Int("Capacity", s.storage.Capacity()),
			slog.Int("Requested", capacity),
			slog.Any("error", err))
	}

	memutils.DebugValidate(s)
}

// constructSlot brings the raw slot at index to life. If construction fails, the slot is wiped and
// the error is returned.
func constructSlot[T any](block *storage.Storage[T], index int, construct func(slot *T) error) error {
	err := construct(block.Slot(index))
	if err != nil {
		block.Wipe(index)
		return errors.Wrapf(err, "failed to construct element %d", index)
	}

	return nil
}

// appendElement constructs a new last element, moving to a block of capacity slots first when grow
// is true
func (s *Sequence[T]) appendElement(grow bool, capacity int, construct func(slot *T) error) error {
	var err error
	if grow {
		err = s.reallocate(capacity, construct)
	} else {
		err = constructSlot(&s.storage, s.length, construct)
		if err == nil {
			s.length++
		}
	}
	if err != nil {
		return err
	}

	memutils.DebugValidate(s)
	return nil
}

func (s *Sequence[T]) pushBack(construct func(slot *T) error) error {
	newCapacity := 1
	if s.length > 0 {
		newCapacity = s.length * 2
	}

	return s.appendElement(s.length == s.storage.Capacity(), newCapacity, construct)
}

// PushBack appends a copy of value. If the storage is full it is grown first, to 1 slot if empty and
// to twice its capacity otherwise. If the element cannot be copied, the sequence is unchanged.
func (s *Sequence[T]) PushBack(value T) error {
	traits := s.elementTraits()
	return s.pushBack(func(slot *T) error {
		return traits.Copy(slot, &value)
	})
}

// PushBackMove appends an element moved out of value, growing like PushBack. value remains live and
// is still owned by the caller. value may point at one of the sequence's own elements: when the
// storage grows, the new element is moved into the new block before the old elements are relocated.
func (s *Sequence[T]) PushBackMove(value *T) error {
	traits := s.elementTraits()
	return s.pushBack(func(slot *T) error {
		return traits.Move(slot, value)
	})
}

// EmplaceBack appends an element constructed directly in its slot by construct. The storage grows to
// (Cap()+1)*2 slots whenever the new element would fill it. If construct fails, the slot is wiped and
// the sequence is unchanged.
func (s *Sequence[T]) EmplaceBack(construct func(slot *T) error) error {
	return s.appendElement(s.length+1 >= s.storage.Capacity(), (s.storage.Capacity()+1)*2, construct)
}

// PopBack destroys the last element. Calling PopBack on an empty sequence is a precondition
// violation that is not checked unless the debug_vessel build tag is present.
func (s *Sequence[T]) PopBack() {
	memutils.DebugCheckIndex(s.length-1, s.length, "PopBack")

	s.length--
	s.elementTraits().Destroy(s.storage.Slot(s.length))
}

// Clear destroys every element. The capacity is unchanged.
func (s *Sequence[T]) Clear() {
	s.destroyRange(&s.storage, 0, s.length)
	s.length = 0
}

func (s *Sequence[T]) resize(count int, construct func(slot *T) error) error {
	err := memutils.CheckNonNegative(count, "count")
	if err != nil {
		return err
	}

	if count <= s.length {
		s.destroyRange(&s.storage, count, s.length)
		s.length = count
		return nil
	}

	if count > s.storage.Capacity() {
		err = s.reallocate(count, nil)
		if err != nil {
			return err
		}
	}

	for i := s.length; i < count; i++ {
		err = constructSlot(&s.storage, i, construct)
		if err != nil {
			s.destroyRange(&s.storage, s.length, i)
			return err
		}
	}
	s.length = count

	memutils.DebugValidate(s)
	return nil
}

// Resize changes the number of elements to count. Extra elements are destroyed from the end, and
// missing elements are default-constructed at the end, growing the storage to exactly count slots
// if needed. If any construction fails, the new elements are destroyed and the length is unchanged.
func (s *Sequence[T]) Resize(count int) error {
	return s.resize(count, s.elementTraits().Construct)
}

// ResizeFill behaves like Resize, but missing elements are copies of value
func (s *Sequence[T]) ResizeFill(count int, value T) error {
	traits := s.elementTraits()
	return s.resize(count, func(slot *T) error {
		return traits.Copy(slot, &value)
	})
}

// Destroy destroys every element and releases the storage. The sequence is empty afterwards and may
// be reused.
func (s *Sequence[T]) Destroy() {
	s.Clear()
	s.storage.Release()
}

// Validate performs internal consistency checks on the sequence
func (s *Sequence[T]) Validate() error {
	err := s.storage.Validate()
	if err != nil {
		return err
	}

	if s.length < 0 {
		return errors.Newf("sequence has a negative length %d", s.length)
	}
	if s.length > s.storage.Capacity() {
		return errors.Newf("sequence has length %d, which exceeds its capacity %d", s.length, s.storage.Capacity())
	}

	return nil
}

// AddStatistics sums this sequence's block and element usage into the provided statistics
func (s *Sequence[T]) AddStatistics(stats *memutils.Statistics) {
	if s.storage.Capacity() > 0 {
		stats.BlockCount++
		stats.BlockBytes += s.storage.Bytes()
	}

	stats.ElementCount += s.length
	stats.ElementBytes += s.length * int(storage.ElementSize[T]())
}

// BlockJsonData populates a json object with information about this sequence's storage
func (s *Sequence[T]) BlockJsonData(json jwriter.ObjectState) {
	json.Name("BlockID").Int(int(s.storage.ID()))
	json.Name("Length").Int(s.length)
	json.Name("Capacity").Int(s.storage.Capacity())
	json.Name("TotalBytes").Int(s.storage.Bytes())
	json.Name("UnusedBytes").Int((s.storage.Capacity() - s.length) * int(storage.ElementSize[T]()))
}
