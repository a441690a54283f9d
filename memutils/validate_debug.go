//go:build debug_vessel

package memutils

import "fmt"

// DebugChecks reports whether this binary was built with the debug_vessel build tag
const DebugChecks = true

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_vessel build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckIndex panics if index does not fall within [0, length). Indexing into a sequence or
// storage is unchecked in ordinary builds; this method no-ops unless the debug_vessel build tag is present.
func DebugCheckIndex(index, length int, what string) {
	if index < 0 || index >= length {
		panic(fmt.Sprintf("%s: index %d out of range [0, %d)", what, index, length))
	}
}
