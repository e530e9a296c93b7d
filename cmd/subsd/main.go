// Command subsd is an example server exercising the subscription engine
// end to end: it accepts TCP connections, frames requests and responses
// with pkg/wire, drives a pkg/queries.Registry, and exposes Prometheus
// metrics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tschof/subscriptions/internal/config"
	"github.com/tschof/subscriptions/internal/log"
	"github.com/tschof/subscriptions/pkg/exprquery"
	"github.com/tschof/subscriptions/pkg/metrics"
	"github.com/tschof/subscriptions/pkg/queries"
	"github.com/tschof/subscriptions/pkg/transport/tcp"
	"github.com/tschof/subscriptions/pkg/wire"
)

// tick is the example input type: a single named metric sample.
type tick struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Seq   uint64  `json:"seq"`
}

func tickAttrs(t tick) map[string]string {
	return map[string]string{"name": t.Name}
}

// clientConn identifies a subscribing peer by pointer, serving as the
// opaque client handle the registry keys subscriptions by. Its writer is
// shared between the per-connection request loop (for commit results)
// and the registry-wide publish sender (for live updates), both framed
// with pkg/wire so responses never interleave.
type clientConn struct {
	id     string
	conn   net.Conn
	writer *wire.Writer
}

// clientRegistry tracks live connections. Its send method is the Sender
// the producer loop passes to Publish; send writes through the client
// handle Publish hands it and does not consult the tracked set.
type clientRegistry struct {
	mu      sync.Mutex
	clients map[*clientConn]struct{}
}

func newClientRegistry() *clientRegistry {
	return &clientRegistry{clients: make(map[*clientConn]struct{})}
}

func (c *clientRegistry) add(client *clientConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[client] = struct{}{}
}

func (c *clientRegistry) remove(client *clientConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, client)
}

// send implements queries.Sender: it writes directly to the client
// connection the value belongs to.
func (c *clientRegistry) send(client *clientConn, id int32, value queries.SequencedValue[float64]) {
	payload, err := json.Marshal(struct {
		ID    int32                          `json:"id"`
		Value queries.SequencedValue[float64] `json:"value"`
	}{ID: id, Value: value})
	if err != nil {
		return
	}
	_ = client.writer.WriteFrame(payload)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "subsd",
		Short: "Example server for the streaming expression-query subscription engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a subsd config file")
	return root
}

func run(cfg config.Config) error {
	logger := log.NewLogger(os.Stdout)
	met := metrics.New(cfg.MetricsNamespace)
	met.MustRegister(prometheus.DefaultRegisterer)

	reg := queries.NewRegistry[tick, float64, *clientConn](
		queries.WithLogger[tick, float64, *clientConn](logger),
		queries.WithMetrics[tick, float64, *clientConn](met),
	)
	clients := newClientRegistry()

	go serveMetrics(logger)

	srv := tcp.NewServer(cfg.ListenAddr, cfg.MaxConnections, func(ctx context.Context, conn net.Conn) {
		handleConn(ctx, conn, reg, clients, logger)
	}, logger)

	if err := srv.Start(); err != nil {
		return err
	}
	logger.Info("subsd listening", "addr", cfg.ListenAddr)

	go producerLoop(srv.Quit(), reg, clients.send)

	<-srv.Quit()
	return nil
}

// producerLoop stands in for a real upstream data source: it publishes a
// monotonically sequenced synthetic tick every 100ms until stop is
// closed, exercising the full Initialize/Commit/Publish pipeline end to
// end.
func producerLoop(stop <-chan struct{}, reg *queries.Registry[tick, float64, *clientConn],
	send queries.Sender[float64, *clientConn]) {
	var seq atomic.Uint64
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n := seq.Add(1)
			reg.Publish(queries.NewSequencedValue(tick{
				Name:  "heartbeat",
				Value: float64(n),
				Seq:   n,
			}, queries.Sequence(n)), send)
		}
	}
}

func serveMetrics(logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":9464", mux); err != nil {
		logger.Error("metrics server stopped", "err", err)
	}
}

// request is the JSON request envelope read from each framed message.
type request struct {
	Op       string  `json:"op"` // "subscribe" | "commit" | "end" | "removeAll"
	ID       int32   `json:"id"`
	Query    string  `json:"query"`
	Policy   string  `json:"policy"` // "all" | "change"
	RangeEnd *uint64 `json:"rangeEnd,omitempty"`
}

func handleConn(ctx context.Context, conn net.Conn, reg *queries.Registry[tick, float64, *clientConn],
	clients *clientRegistry, logger log.Logger) {
	client := &clientConn{id: uuid.NewString(), conn: conn, writer: wire.NewWriter(conn)}
	reader := wire.NewReader(conn)
	clients.add(client)
	logger = logger.With("conn", client.id)
	defer clients.remove(client)
	defer reg.RemoveAll(client)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		frame, err := reader.ReadFrame()
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(frame, &req); err != nil {
			logger.Error("bad request", "err", err)
			continue
		}
		dispatch(client, req, reg, logger)
	}
}

func dispatch(client *clientConn, req request, reg *queries.Registry[tick, float64, *clientConn], logger log.Logger) {
	switch req.Op {
	case "subscribe":
		q, err := exprquery.Parse(req.Query)
		if err != nil {
			logger.Error("bad query", "err", err)
			return
		}
		filter := exprquery.ToEvaluator(q, tickAttrs)
		expression := queries.EvaluatorFunc[tick, float64](func(t tick) (float64, error) {
			return t.Value, nil
		})
		policy := queries.All
		if req.Policy == "change" {
			policy = queries.Change
		}
		rng := queries.NewRange(0, queries.Present)
		if req.RangeEnd != nil {
			rng.End = queries.Sequence(*req.RangeEnd)
		}
		if err := reg.Initialize(client, req.ID, rng, filter, policy, expression); err != nil {
			logger.Error("subscribe failed", "err", err)
		}
	case "commit":
		var result queries.QueryResult[queries.SequencedValue[float64]]
		result.QueryID = req.ID
		reg.Commit(client, queries.NewUnlimitedSnapshot(), result, nil,
			func(r queries.QueryResult[queries.SequencedValue[float64]]) {
				payload, err := json.Marshal(r)
				if err != nil {
					return
				}
				if err := client.writer.WriteFrame(payload); err != nil {
					logger.Error("commit send failed", "err", err)
				}
			})
	case "end":
		reg.End(client, req.ID)
	case "removeAll":
		reg.RemoveAll(client)
	default:
		logger.Error("unknown op", "op", req.Op)
	}
}
