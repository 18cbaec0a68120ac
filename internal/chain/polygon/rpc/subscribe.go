package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultMaxReconnects  = 25
	defaultReconnectDelay = time.Second
)

// HeadSubscriber maintains an eth_subscribe("newHeads") WebSocket session and
// invokes the handler for every header received. The subscription is
// long-lived: no read deadline is applied, and dropped connections are
// re-dialed with linear backoff. The attempt counter resets after any
// successful connection, so only consecutive dial failures exhaust it.
type HeadSubscriber struct {
	wsURL          string
	logger         *slog.Logger
	maxReconnects  int
	reconnectDelay time.Duration
}

func NewHeadSubscriber(wsURL string, logger *slog.Logger) *HeadSubscriber {
	return &HeadSubscriber{
		wsURL:          wsURL,
		logger:         logger.With("component", "head_subscriber"),
		maxReconnects:  defaultMaxReconnects,
		reconnectDelay: defaultReconnectDelay,
	}
}

type subscriptionNotice struct {
	Method string `json:"method"`
	Params struct {
		Subscription string      `json:"subscription"`
		Result       BlockHeader `json:"result"`
	} `json:"params"`
}

// Run blocks until ctx is done or consecutive reconnect attempts are
// exhausted. Each received header is passed to handler; handler errors abort
// the subscription (they signal the consumer is gone).
func (s *HeadSubscriber) Run(ctx context.Context, handler func(BlockHeader) error) error {
	for attempt := 0; attempt < s.maxReconnects; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
		if err == nil {
			connectedAt := time.Now()
			err = s.listen(ctx, conn, handler)
			_ = conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil && !isConnectionError(err) {
				return err
			}
			s.logger.Warn("newHeads subscription dropped",
				"error", err,
				"uptime", time.Since(connectedAt).Round(time.Second),
			)
			attempt = 0
			continue
		}

		s.logger.Warn("failed to dial websocket",
			"attempt", attempt+1,
			"max_reconnects", s.maxReconnects,
			"error", err,
		)

		delay := time.Duration(attempt+1) * s.reconnectDelay
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("newHeads subscription: max reconnects (%d) reached", s.maxReconnects)
}

func (s *HeadSubscriber) listen(ctx context.Context, conn *websocket.Conn, handler func(BlockHeader) error) error {
	// A silent dead connection would hold ReadMessage forever; closing the
	// conn on cancellation unblocks the pending read.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watcherDone:
		}
	}()

	sub := Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_subscribe",
		Params:  []interface{}{"newHeads"},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return &connectionError{fmt.Errorf("send eth_subscribe: %w", err)}
	}

	// First frame is the subscription ack.
	var ack Response
	if err := conn.ReadJSON(&ack); err != nil {
		return &connectionError{fmt.Errorf("read subscribe ack: %w", err)}
	}
	if ack.Error != nil {
		return fmt.Errorf("eth_subscribe rejected: %w", ack.Error)
	}

	s.logger.Info("newHeads subscription established", "url", s.wsURL)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return &connectionError{fmt.Errorf("read message: %w", err)}
		}

		var notice subscriptionNotice
		if err := json.Unmarshal(data, &notice); err != nil {
			s.logger.Warn("unparseable subscription frame", "error", err, "data_len", len(data))
			continue
		}
		if notice.Method != "eth_subscription" {
			continue
		}

		if err := handler(notice.Params.Result); err != nil {
			return err
		}
	}
}

type connectionError struct {
	err error
}

func (e *connectionError) Error() string { return e.err.Error() }
func (e *connectionError) Unwrap() error { return e.err }

func isConnectionError(err error) bool {
	_, ok := err.(*connectionError)
	return ok
}
