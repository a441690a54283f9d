package memutils

import "github.com/pkg/errors"

// OutOfMemoryError is the error returned from CheckedByteSize, storage allocation, and every sequence
// operation that needs to acquire a block when the memory for that block could not be provided
var OutOfMemoryError error = errors.New("out of memory")

// NegativeSizeError is the error returned from CheckNonNegative or other methods if a capacity, count or
// index argument is below zero
var NegativeSizeError error = errors.New("size must not be negative")
