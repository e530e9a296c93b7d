// Package ws adapts a gorilla/websocket connection into the Sender and
// CommitSender closures consumed by queries.Registry.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tschof/subscriptions/internal/log"
	"github.com/tschof/subscriptions/pkg/queries"
)

// Channel wraps one client's WebSocket connection. All sends are
// serialized behind writeMu because a gorilla/websocket.Conn permits at
// most one concurrent writer.
type Channel[O any] struct {
	logger log.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn
}

// NewChannel wraps conn.
func NewChannel[O any](conn *websocket.Conn, logger log.Logger) *Channel[O] {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Channel[O]{conn: conn, logger: logger}
}

// outgoingValue is the wire representation of one delivered output.
type outgoingValue[O any] struct {
	ID    int32             `json:"id"`
	Value queries.SequencedValue[O] `json:"value"`
}

// outgoingResult is the wire representation of a committed QueryResult.
type outgoingResult[O any] struct {
	QueryID  int32                       `json:"queryId"`
	Snapshot []queries.SequencedValue[O] `json:"snapshot"`
}

// Send frames value as a single WebSocket binary message. It takes no
// client handle (the Channel already belongs to exactly one client);
// the Sender function adapts it to queries.Sender.
func (c *Channel[O]) Send(id int32, value queries.SequencedValue[O]) error {
	payload, err := json.Marshal(outgoingValue[O]{ID: id, Value: value})
	if err != nil {
		return err
	}
	return c.writeBinary(payload)
}

// SendResult frames a committed QueryResult as a single WebSocket binary
// message; the CommitSender method adapts it to queries.CommitSender.
func (c *Channel[O]) SendResult(result queries.QueryResult[queries.SequencedValue[O]]) error {
	payload, err := json.Marshal(outgoingResult[O]{QueryID: result.QueryID, Snapshot: result.Snapshot})
	if err != nil {
		return err
	}
	return c.writeBinary(payload)
}

func (c *Channel[O]) writeBinary(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		c.logger.Error("websocket write failed", "err", err)
		return err
	}
	return nil
}

// Close closes the underlying connection.
func (c *Channel[O]) Close() error {
	return c.conn.Close()
}

// Sender adapts Channel.Send to queries.Sender[O, C]. The Registry never
// catches a send error on the caller's behalf, so a failed write is only
// logged here; closing the connection (and thus ending the
// subscriptions bound to it) is the host's responsibility, driven by the
// read loop observing the same error.
func Sender[O any, C any](channels func(C) *Channel[O]) queries.Sender[O, C] {
	return func(client C, id int32, value queries.SequencedValue[O]) {
		ch := channels(client)
		if ch == nil {
			return
		}
		_ = ch.Send(id, value)
	}
}

// CommitSender adapts a single Channel's SendResult to
// queries.CommitSender[O].
func (c *Channel[O]) CommitSender() queries.CommitSender[O] {
	return func(result queries.QueryResult[queries.SequencedValue[O]]) {
		_ = c.SendResult(result)
	}
}
