//go:build !debug_vessel

package memutils

// DebugChecks reports whether this binary was built with the debug_vessel build tag
const DebugChecks = false

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_vessel build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugCheckIndex panics if index does not fall within [0, length). Indexing into a sequence or
// storage is unchecked in ordinary builds; this method no-ops unless the debug_vessel build tag is present.
func DebugCheckIndex(index, length int, what string) {
}
