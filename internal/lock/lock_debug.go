//go:build debug

package lock

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock-detecting mutex, enabled by building with -tags debug.
type Mutex = deadlock.Mutex

// RWMutex is a deadlock-detecting read-write mutex, enabled by building
// with -tags debug.
type RWMutex = deadlock.RWMutex
