package rpc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newHeadsServer accepts one websocket connection, acks the eth_subscribe
// request, then runs serve with the upgraded connection.
func newHeadsServer(t *testing.T, serve func(conn *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		ack := Response{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`"0xsubscription"`)}
		if err := conn.WriteJSON(ack); err != nil {
			return
		}
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func headFrame(number string) subscriptionNotice {
	var n subscriptionNotice
	n.Method = "eth_subscription"
	n.Params.Subscription = "0xsubscription"
	n.Params.Result = BlockHeader{Number: number, Hash: "0xhash", Timestamp: "0x1"}
	return n
}

func TestHeadSubscriber_DeliversHeads(t *testing.T) {
	wsURL := newHeadsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteJSON(headFrame("0x10"))
		_ = conn.WriteJSON(headFrame("0x11"))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sub := NewHeadSubscriber(wsURL, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	heads := make(chan BlockHeader, 2)
	done := make(chan error, 1)
	go func() {
		done <- sub.Run(ctx, func(h BlockHeader) error {
			heads <- h
			return nil
		})
	}()

	for _, want := range []string{"0x10", "0x11"} {
		select {
		case h := <-heads:
			require.Equal(t, want, h.Number)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for head %s", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not exit after cancellation")
	}
}

// A connection that dies silently sends no frames and no close; cancellation
// must still unblock the pending read and return promptly.
func TestHeadSubscriber_CancelUnblocksSilentConnection(t *testing.T) {
	established := make(chan struct{})
	wsURL := newHeadsServer(t, func(conn *websocket.Conn) {
		close(established)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sub := NewHeadSubscriber(wsURL, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- sub.Run(ctx, func(BlockHeader) error { return nil })
	}()

	select {
	case <-established:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was never established")
	}
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not exit after cancellation")
	}
}
