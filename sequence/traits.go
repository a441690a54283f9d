package sequence

//go:generate mockgen -source traits.go -destination ./mocks/traits.go -package mock_sequence

// Traits describes how values of T are brought to life in, and removed from, the raw slots
// of a sequence's storage. A Sequence never writes a live value except through its Traits.
//
// Any method that returns an error must leave the destination slot raw: the sequence will wipe
// the slot itself and will not call Destroy on it.
type Traits[T any] interface {
	// Construct default-constructs a value in the raw slot
	Construct(slot *T) error
	// Copy constructs a copy of the live value at src in the raw slot dst
	Copy(dst, src *T) error
	// Move constructs a value in the raw slot dst from the live value at src. src remains live
	// and will still be destroyed by the sequence.
	Move(dst, src *T) error
	// NoFailMove reports whether Move can never return an error. Growth relocates elements with
	// Move only when this is true and falls back to Copy otherwise, so that a failed relocation
	// leaves the original elements untouched.
	NoFailMove() bool
	// Destroy ends the life of the value in slot, returning the slot to the raw state
	Destroy(slot *T)
}

// ValueTraits treats T as a plain value: construction produces the zero value, copy and move
// assign, and nothing ever fails. This is the Traits used when none is provided.
type ValueTraits[T any] struct{}

var _ Traits[int] = ValueTraits[int]{}

func (ValueTraits[T]) Construct(slot *T) error {
	var zero T
	*slot = zero
	return nil
}

func (ValueTraits[T]) Copy(dst, src *T) error {
	*dst = *src
	return nil
}

func (ValueTraits[T]) Move(dst, src *T) error {
	var zero T
	*dst = *src
	*src = zero
	return nil
}

func (ValueTraits[T]) NoFailMove() bool { return true }

func (ValueTraits[T]) Destroy(slot *T) {
	var zero T
	*slot = zero
}

// Cloner is implemented by types that know how to deep copy themselves
type Cloner[T any] interface {
	Clone() (T, error)
}

// CloneTraits copies elements with their Clone method, so that copies made by a sequence never
// alias the original's memory. Construction, moves and destruction behave as in ValueTraits.
type CloneTraits[T Cloner[T]] struct {
	ValueTraits[T]
}

func (CloneTraits[T]) Copy(dst, src *T) error {
	clone, err := (*src).Clone()
	if err != nil {
		return err
	}

	*dst = clone
	return nil
}

// FuncTraits builds a Traits out of individual functions. Any function left nil behaves as it
// does in ValueTraits.
type FuncTraits[T any] struct {
	ConstructFunc func(slot *T) error
	CopyFunc      func(dst, src *T) error
	MoveFunc      func(dst, src *T) error
	DestroyFunc   func(slot *T)
	// MoveMayFail must be set when MoveFunc can return an error
	MoveMayFail bool
}

func (f FuncTraits[T]) Construct(slot *T) error {
	if f.ConstructFunc == nil {
		return ValueTraits[T]{}.Construct(slot)
	}
	return f.ConstructFunc(slot)
}

func (f FuncTraits[T]) Copy(dst, src *T) error {
	if f.CopyFunc == nil {
		return ValueTraits[T]{}.Copy(dst, src)
	}
	return f.CopyFunc(dst, src)
}

func (f FuncTraits[T]) Move(dst, src *T) error {
	if f.MoveFunc == nil {
		return ValueTraits[T]{}.Move(dst, src)
	}
	return f.MoveFunc(dst, src)
}

func (f FuncTraits[T]) NoFailMove() bool {
	return f.MoveFunc == nil || !f.MoveMayFail
}

func (f FuncTraits[T]) Destroy(slot *T) {
	if f.DestroyFunc == nil {
		ValueTraits[T]{}.Destroy(slot)
		return
	}
	f.DestroyFunc(slot)
}
