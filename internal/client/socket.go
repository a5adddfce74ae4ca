package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/directchat/internal/proto"
)

// Socket is a live connection as the stores see it.
type Socket interface {
	OnOnlineUsers(fn func([]int64)) *Subscription
	OnNewMessage(fn func(proto.MessageDTO)) *Subscription
	Close() error
	Done() <-chan struct{}
}

// Dialer opens a live connection presenting the current session credential.
type Dialer func(ctx context.Context) (Socket, error)

// WSSocket is a Socket over a websocket connection.
type WSSocket struct {
	conn *websocket.Conn
	log  zerolog.Logger

	online   Emitter[[]int64]
	messages Emitter[proto.MessageDTO]

	// mu orders presence replay against presence delivery.
	mu         sync.Mutex
	lastOnline []int64

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// WSDialer dials url with the headers returned by header at dial time.
// Network failures are retried with exponential backoff; a rejected handshake is not.
func WSDialer(url string, header func() http.Header, logger *zerolog.Logger) Dialer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "socket").Logger()
	}

	return func(ctx context.Context) (Socket, error) {
		var conn *websocket.Conn
		op := func() error {
			c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header()})
			if err != nil {
				if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
					return backoff.Permanent(ErrHandshakeRejected)
				}
				l.Debug().Err(err).Msg("dial failed")
				return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
			}
			conn = c
			return nil
		}

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = 200 * time.Millisecond
		policy.MaxElapsedTime = 5 * time.Second
		if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, 3), ctx)); err != nil {
			return nil, err
		}

		s := &WSSocket{conn: conn, log: l, done: make(chan struct{})}
		go s.readLoop()
		return s, nil
	}
}

// OnOnlineUsers subscribes to presence snapshots. The latest snapshot, if any, is replayed
// immediately since the server sends one right after the handshake. Replay and delivery are
// serialized, so a subscriber never sees an older snapshot after a newer one.
func (s *WSSocket) OnOnlineUsers(fn func([]int64)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.online.Subscribe(fn)
	if s.lastOnline != nil {
		fn(s.lastOnline)
	}
	return sub
}

func (s *WSSocket) OnNewMessage(fn func(proto.MessageDTO)) *Subscription {
	return s.messages.Subscribe(fn)
}

// Ping asks the server for a pong; the answer is consumed by the read loop.
func (s *WSSocket) Ping(ctx context.Context) error {
	return wsjson.Write(ctx, s.conn, proto.Inbound{Type: proto.InboundTypePing})
}

// Close closes the connection normally so the server tears the session down.
func (s *WSSocket) Close() error {
	err := s.conn.Close(websocket.StatusNormalClosure, "logout")
	s.finish(nil)
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}
	return err
}

// Done is closed when the connection ends for any reason.
func (s *WSSocket) Done() <-chan struct{} {
	return s.done
}

// Err reports why the connection ended; nil after a local Close.
func (s *WSSocket) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *WSSocket) finish(err error) {
	s.closeOnce.Do(func() {
		s.err = err
		close(s.done)
	})
}

func (s *WSSocket) readLoop() {
	ctx := context.Background()
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, s.conn, &outbound); err != nil {
			s.finish(closeReason(err))
			return
		}
		s.dispatch(outbound)
	}
}

func (s *WSSocket) dispatch(outbound proto.Outbound) {
	if outbound.Type == proto.OutboundTypeError {
		if outbound.Error != nil {
			s.log.Warn().Str("code", outbound.Error.Code).Str("msg", outbound.Error.Msg).Msg("server error")
		}
		return
	}

	switch outbound.Event {
	case proto.EventOnlineUsers:
		var ids []int64
		if err := json.Unmarshal(outbound.Data, &ids); err != nil {
			s.log.Warn().Err(err).Msg("decode online users")
			return
		}
		if ids == nil {
			ids = []int64{}
		}
		s.mu.Lock()
		s.lastOnline = ids
		s.online.Emit(ids)
		s.mu.Unlock()
	case proto.EventNewMessage:
		var msg proto.MessageDTO
		if err := json.Unmarshal(outbound.Data, &msg); err != nil {
			s.log.Warn().Err(err).Msg("decode new message")
			return
		}
		s.messages.Emit(msg)
	}
}

func closeReason(err error) error {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure:
		return nil
	case 4001:
		return ErrSessionReplaced
	default:
		return err
	}
}
