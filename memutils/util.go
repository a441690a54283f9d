package memutils

import (
	"math"
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

func CheckNonNegative[T Number](number T, name string) error {
	if number < 0 {
		return cerrors.Wrapf(NegativeSizeError, "%s is %d", name, number)
	}
	return nil
}

// CheckedByteSize returns count * elementSize, or an error wrapping OutOfMemoryError if the product
// cannot be represented as an int.
func CheckedByteSize(count int, elementSize uintptr) (int, error) {
	if count < 0 {
		return 0, cerrors.Wrapf(NegativeSizeError, "element count is %d", count)
	}

	hi, lo := bits.Mul64(uint64(count), uint64(elementSize))
	if hi != 0 || lo > math.MaxInt {
		return 0, cerrors.Wrapf(OutOfMemoryError, "%d elements of %d bytes overflows the address space", count, elementSize)
	}

	return int(lo), nil
}
