package ws_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tschof/subscriptions/pkg/queries"
	"github.com/tschof/subscriptions/pkg/transport/ws"
)

func TestChannelSendDeliversOverWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverConnCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConnCh <- conn
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer clientConn.Close()

	serverConn := <-serverConnCh
	defer serverConn.Close()

	channel := ws.NewChannel[int](serverConn, nil)
	require.NoError(t, channel.Send(7, queries.NewSequencedValue(42, 3)))

	require.NoError(t, clientConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := clientConn.ReadMessage()
	require.NoError(t, err)

	var decoded struct {
		ID    int32 `json:"id"`
		Value struct {
			Value    int `json:"Value"`
			Sequence int `json:"Sequence"`
		} `json:"value"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, int32(7), decoded.ID)
	assert.Equal(t, 42, decoded.Value.Value)
	assert.Equal(t, 3, decoded.Value.Sequence)
}
