package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/directchat/internal/auth"
	"github.com/vovakirdan/directchat/internal/config"
	"github.com/vovakirdan/directchat/internal/core"
	"github.com/vovakirdan/directchat/internal/media"
	"github.com/vovakirdan/directchat/internal/proto"
	"github.com/vovakirdan/directchat/internal/service/messages"
	"github.com/vovakirdan/directchat/internal/store"
	"github.com/vovakirdan/directchat/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store store.Store
	auth  *auth.Service
	stop  context.CancelFunc
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.HandshakeRate = 0
	cfg.VerifyTimeout = time.Second
	cfg.MaxMessageBytes = 1 << 20
	return cfg
}

// startTestServer wires an in-memory store, a running hub and the full HTTP stack.
func startTestServer(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	images := media.NewImages(nil, 0)

	hub := core.NewHub(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	authService := auth.NewService(st, jwtConfig, images)
	server := NewServer(Deps{
		Hub:         hub,
		Verifier:    auth.NewVerifier(jwtConfig, st),
		AuthService: authService,
		Store:       st,
		Messages:    messages.New(st, images, hub),
	}, &cfg, nil)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub, store: st, auth: authService, stop: cancel}
}

// signup creates an account and returns its id and session credential.
func (e *testEnv) signup(t *testing.T, name string) (int64, string) {
	t.Helper()

	user, token, err := e.auth.Signup(context.Background(), name, strings.ToLower(name)+"@example.com", "secret123")
	if err != nil {
		t.Fatalf("signup %s: %v", name, err)
	}
	return user.ID, token
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.Dial(ctx, e.wsURL(), &websocket.DialOptions{
		HTTPHeader: http.Header{"Cookie": []string{"jwt=" + token}},
	})
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial: %v (status %d)", err, status)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

// request performs an API call with the session cookie.
func (e *testEnv) request(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	}
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// readEvent reads until an envelope with the given event name (or error type) arrives.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) proto.Outbound {
	t.Helper()

	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			t.Fatalf("read %s: %v", event, err)
		}
		if outbound.Event == event || (event == proto.OutboundTypeError && outbound.Type == proto.OutboundTypeError) {
			return outbound
		}
	}
}

// readOnline reads presence events until one equals want.
func readOnline(t *testing.T, ctx context.Context, conn *websocket.Conn, want ...int64) {
	t.Helper()

	for {
		ev := readEvent(t, ctx, conn, proto.EventOnlineUsers)
		var online []int64
		if err := json.Unmarshal(ev.Data, &online); err != nil {
			t.Fatalf("decode online users: %v", err)
		}
		if equalIDs(online, want) {
			return
		}
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func decodeData(ev proto.Outbound, v any) error {
	return json.Unmarshal(ev.Data, v)
}
