package utils

import (
	"sync"
)

// OptionalMutex is a mutex that only locks when UseMutex is set. Objects that are externally
// synchronized by their consumer leave it unset and pay nothing for locking.
type OptionalMutex struct {
	Mutex    sync.Mutex
	UseMutex bool
}

func (m *OptionalMutex) Lock() {
	if m.UseMutex {
		m.Mutex.Lock()
	}
}

func (m *OptionalMutex) Unlock() {
	if m.UseMutex {
		m.Mutex.Unlock()
	}
}
