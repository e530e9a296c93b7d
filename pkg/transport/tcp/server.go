// Package tcp implements the TCP acceptor and worker-pool plumbing that
// carries framed subscription traffic to and from the engine, grounded
// in Beam/Network/TcpServerSocket.hpp for the accept loop shape and
// golang.org/x/sync for the bounded worker pool.
package tcp

import (
	"context"
	"net"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tschof/subscriptions/internal/log"
	"github.com/tschof/subscriptions/internal/service"
)

// ConnHandler processes one accepted connection to completion. It is
// called with a context canceled when the Server is stopped.
type ConnHandler func(ctx context.Context, conn net.Conn)

// Server accepts TCP connections and dispatches each to a ConnHandler on
// a goroutine drawn from a bounded pool, embedding service.BaseService
// for its Start/Stop lifecycle.
type Server struct {
	*service.BaseService

	addr     string
	handler  ConnHandler
	maxConns int64

	listener net.Listener
	sem      *semaphore.Weighted
	group    *errgroup.Group
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewServer constructs a Server bound to addr that will dispatch to
// handler, admitting at most maxConns connections concurrently.
func NewServer(addr string, maxConns int64, handler ConnHandler, logger log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	s := &Server{
		addr:     addr,
		handler:  handler,
		maxConns: maxConns,
		sem:      semaphore.NewWeighted(maxConns),
		group:    group,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.BaseService = service.NewBaseService(logger, "TcpServer", s)
	return s
}

// OnStart implements service.Impl: it binds the listener and starts the
// accept loop on its own goroutine.
func (s *Server) OnStart() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	go s.acceptLoop()
	return nil
}

// OnStop implements service.Impl: it closes the listener and cancels the
// context passed to every in-flight ConnHandler.
func (s *Server) OnStop() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	_ = s.group.Wait()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.Logger.Error("accept failed", "err", err)
				return
			}
		}
		if err := s.sem.Acquire(s.ctx, 1); err != nil {
			_ = conn.Close()
			return
		}
		s.group.Go(func() error {
			defer s.sem.Release(1)
			defer conn.Close()
			s.handler(s.ctx, conn)
			return nil
		})
	}
}

// Addr returns the bound local address, valid once OnStart has returned
// without error.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
