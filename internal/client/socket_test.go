package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/directchat/internal/proto"
)

func wsURL(ts *httptest.Server) string {
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func TestWSSocketDispatchesAndReportsKick(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "jwt=token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()

		online, _ := proto.NewEvent(proto.EventOnlineUsers, []int64{1, 2})
		_ = wsjson.Write(ctx, conn, online)

		var ping proto.Inbound
		if err := wsjson.Read(ctx, conn, &ping); err != nil || ping.Type != proto.InboundTypePing {
			conn.Close(websocket.StatusPolicyViolation, "expected ping")
			return
		}

		msg, _ := proto.NewEvent(proto.EventNewMessage, proto.MessageDTO{ID: 5, SenderID: 2, ReceiverID: 1, Text: "yo"})
		_ = wsjson.Write(ctx, conn, msg)
		conn.Close(websocket.StatusCode(4001), "session replaced")
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dial := WSDialer(wsURL(ts), func() http.Header {
		return http.Header{"Cookie": []string{"jwt=token"}}
	}, nil)
	sock, err := dial(ctx)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ws := sock.(*WSSocket)

	onlineCh := make(chan []int64, 1)
	ws.OnOnlineUsers(func(ids []int64) {
		select {
		case onlineCh <- ids:
		default:
		}
	})
	msgCh := make(chan proto.MessageDTO, 1)
	ws.OnNewMessage(func(m proto.MessageDTO) { msgCh <- m })

	select {
	case ids := <-onlineCh:
		if len(ids) != 2 {
			t.Fatalf("unexpected online users %v", ids)
		}
	case <-ctx.Done():
		t.Fatalf("no presence snapshot")
	}

	if err := ws.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	select {
	case m := <-msgCh:
		if m.ID != 5 || m.Text != "yo" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-ctx.Done():
		t.Fatalf("no message")
	}

	select {
	case <-ws.Done():
	case <-ctx.Done():
		t.Fatalf("socket did not end")
	}
	if !errors.Is(ws.Err(), ErrSessionReplaced) {
		t.Fatalf("expected ErrSessionReplaced, got %v", ws.Err())
	}
}

func TestWSDialerDoesNotRetryRejectedHandshake(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	dial := WSDialer(wsURL(ts), func() http.Header { return http.Header{} }, nil)
	_, err := dial(context.Background())
	if !errors.Is(err, ErrHandshakeRejected) {
		t.Fatalf("expected ErrHandshakeRejected, got %v", err)
	}
	if n := attempts.Load(); n != 1 {
		t.Fatalf("rejected handshake must not be retried, got %d attempts", n)
	}
}

func TestHTTPClientWebSocketURL(t *testing.T) {
	c, err := NewHTTPClient("https://chat.example.com/", 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if got := c.WebSocketURL(); got != "wss://chat.example.com/ws" {
		t.Fatalf("unexpected ws url %q", got)
	}
}

func TestOnlineReplayNeverOverwritesNewerSnapshot(t *testing.T) {
	for i := 0; i < 50; i++ {
		ws := &WSSocket{done: make(chan struct{})}
		const rounds = 200

		finished := make(chan struct{})
		go func() {
			defer close(finished)
			for n := 1; n <= rounds; n++ {
				ids := make([]int64, n)
				for j := range ids {
					ids[j] = int64(j + 1)
				}
				ev, _ := proto.NewEvent(proto.EventOnlineUsers, ids)
				ws.dispatch(ev)
			}
		}()

		var (
			mu   sync.Mutex
			last []int64
		)
		ws.OnOnlineUsers(func(ids []int64) {
			mu.Lock()
			last = ids
			mu.Unlock()
		})
		<-finished

		mu.Lock()
		got := len(last)
		mu.Unlock()
		if got != rounds {
			t.Fatalf("run %d: subscriber ended on a snapshot of %d users, want %d", i, got, rounds)
		}
	}
}
