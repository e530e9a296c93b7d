//go:build !debug

// Package lock re-exports the mutex types used throughout pkg/queries so
// that a debug build can swap in deadlock-detecting locks without
// touching call sites, backed by github.com/sasha-s/go-deadlock
// alongside the standard sync package.
package lock

import "sync"

// Mutex is a plain mutex in release builds. See lock_debug.go for the
// deadlock-detecting variant built under the "debug" tag.
type Mutex = sync.Mutex

// RWMutex is a plain read-write mutex in release builds.
type RWMutex = sync.RWMutex
