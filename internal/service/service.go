// Package service provides the small Start/Stop lifecycle base embedded
// by long-running components, grounded in
// github.com/tendermint/tendermint's libs/service.BaseService, which
// libs/pubsub.Server itself embeds.
package service

import (
	"errors"
	"sync/atomic"

	"github.com/tschof/subscriptions/internal/log"
)

// ErrAlreadyStarted is returned by Start when the service is already
// running or has already been stopped.
var ErrAlreadyStarted = errors.New("service: already started")

// ErrAlreadyStopped is returned by Stop when the service was never
// started or has already been stopped.
var ErrAlreadyStopped = errors.New("service: already stopped")

const (
	stateNew int32 = iota
	stateRunning
	stateStopped
)

// Impl is implemented by a concrete service; OnStart/OnStop run the
// component's actual startup/shutdown logic.
type Impl interface {
	OnStart() error
	OnStop()
}

// BaseService implements the start-once/stop-once bookkeeping embedded
// by transport/tcp.Server, mirroring tendermint's
// libs/service.BaseService.
type BaseService struct {
	Logger log.Logger
	name   string
	impl   Impl
	state  atomic.Int32
	quit   chan struct{}
}

// NewBaseService constructs a BaseService wrapping impl.
func NewBaseService(logger log.Logger, name string, impl Impl) *BaseService {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &BaseService{
		Logger: logger,
		name:   name,
		impl:   impl,
		quit:   make(chan struct{}),
	}
}

// Start transitions New -> Running and calls Impl.OnStart.
func (b *BaseService) Start() error {
	if !b.state.CompareAndSwap(stateNew, stateRunning) {
		return ErrAlreadyStarted
	}
	b.Logger.Info("starting service", "service", b.name)
	return b.impl.OnStart()
}

// Stop transitions Running -> Stopped, calls Impl.OnStop, and closes the
// Quit channel.
func (b *BaseService) Stop() error {
	if !b.state.CompareAndSwap(stateRunning, stateStopped) {
		return ErrAlreadyStopped
	}
	b.Logger.Info("stopping service", "service", b.name)
	b.impl.OnStop()
	close(b.quit)
	return nil
}

// IsRunning reports whether the service is between Start and Stop.
func (b *BaseService) IsRunning() bool {
	return b.state.Load() == stateRunning
}

// Quit returns a channel closed when the service has been stopped.
func (b *BaseService) Quit() <-chan struct{} {
	return b.quit
}
