package client

import (
	"context"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/vovakirdan/directchat/internal/auth"
	"github.com/vovakirdan/directchat/internal/config"
	"github.com/vovakirdan/directchat/internal/core"
	"github.com/vovakirdan/directchat/internal/media"
	"github.com/vovakirdan/directchat/internal/proto"
	"github.com/vovakirdan/directchat/internal/service/messages"
	"github.com/vovakirdan/directchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/directchat/internal/transport/http"
)

// startServer runs the real HTTP stack over an in-memory store and a running hub.
func startServer(t *testing.T) (*httptest.Server, *core.Hub) {
	t.Helper()

	cfg := config.Default()
	cfg.HandshakeRate = 0
	cfg.VerifyTimeout = time.Second

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

	server := transporthttp.NewServer(transporthttp.Deps{
		Hub:         hub,
		Verifier:    auth.NewVerifier(jwtConfig, st),
		AuthService: auth.NewService(st, jwtConfig, images),
		Store:       st,
		Messages:    messages.New(st, images, hub),
	}, &cfg, nil)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return ts, hub
}

type endUser struct {
	api     *HTTPClient
	session *SessionStore
}

func newEndUser(t *testing.T, baseURL string) *endUser {
	t.Helper()

	api, err := NewHTTPClient(baseURL, 5*time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	session := NewSessionStore(api, WSDialer(api.WebSocketURL(), api.SessionHeader, nil), nil)
	t.Cleanup(session.DisconnectSocket)
	return &endUser{api: api, session: session}
}

func (u *endUser) id() int64 {
	return u.session.CurrentUserID()
}

func waitOnline(t *testing.T, hub *core.Hub, want ...int64) {
	t.Helper()
	slices.Sort(want)
	waitFor(t, "hub online set", func() bool { return slices.Equal(hub.Online(), want) })
}

func TestClientAgainstServer(t *testing.T) {
	ts, hub := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := newEndUser(t, ts.URL)
	if err := alice.session.Signup(ctx, "Alice", "alice@example.com", "secret123"); err != nil {
		t.Fatalf("alice signup: %v", err)
	}
	waitOnline(t, hub, alice.id())

	bob := newEndUser(t, ts.URL)
	if err := bob.session.Signup(ctx, "Bob", "bob@example.com", "secret123"); err != nil {
		t.Fatalf("bob signup: %v", err)
	}
	waitOnline(t, hub, alice.id(), bob.id())
	waitFor(t, "alice sees bob online", func() bool { return alice.session.State().IsOnline(bob.id()) })
	bobID := bob.id()

	// Logging out takes bob out of the registry and out of alice's view.
	if err := bob.session.Logout(ctx); err != nil {
		t.Fatalf("bob logout: %v", err)
	}
	waitOnline(t, hub, alice.id())
	waitFor(t, "alice sees bob offline", func() bool { return !alice.session.State().IsOnline(bobID) })

	// Alice writes to offline bob: persisted, shown once, nothing pending.
	aliceConv := NewConversationStore(alice.api, alice.session, ConversationOptions{})
	defer aliceConv.Close()
	if err := aliceConv.LoadContacts(ctx); err != nil {
		t.Fatalf("load contacts: %v", err)
	}
	contacts := aliceConv.State().Contacts
	i := slices.IndexFunc(contacts, func(u proto.UserDTO) bool { return u.ID == bobID })
	if i < 0 {
		t.Fatalf("bob missing from contacts %+v", contacts)
	}
	aliceConv.SelectPeer(&contacts[i])
	if err := aliceConv.SubscribeToMessages(); err != nil {
		t.Fatalf("alice subscribe: %v", err)
	}

	sent, err := aliceConv.SendMessage(ctx, SendInput{Text: "hi"})
	if err != nil {
		t.Fatalf("send to offline peer: %v", err)
	}
	if sent.ID == 0 || sent.Pending {
		t.Fatalf("expected a persisted message, got %+v", sent)
	}
	msgs := aliceConv.State().Messages
	if len(msgs) != 1 || msgs[0].ID != sent.ID || msgs[0].Pending {
		t.Fatalf("expected exactly the persisted message, got %+v", msgs)
	}

	// Bob comes back and finds the message in history, then gets the next one live.
	if err := bob.session.Login(ctx, "bob@example.com", "secret123"); err != nil {
		t.Fatalf("bob login: %v", err)
	}
	waitOnline(t, hub, alice.id(), bobID)

	bobConv := NewConversationStore(bob.api, bob.session, ConversationOptions{})
	defer bobConv.Close()
	bobConv.SelectPeer(alice.session.State().User)
	if err := bobConv.LoadMessages(ctx, alice.id()); err != nil {
		t.Fatalf("bob history: %v", err)
	}
	history := bobConv.State().Messages
	if len(history) != 1 || history[0].ID != sent.ID || history[0].Text != "hi" {
		t.Fatalf("history should hold the offline message, got %+v", history)
	}
	if err := bobConv.SubscribeToMessages(); err != nil {
		t.Fatalf("bob subscribe: %v", err)
	}

	live, err := aliceConv.SendMessage(ctx, SendInput{Text: "still there?"})
	if err != nil {
		t.Fatalf("send to online peer: %v", err)
	}
	waitFor(t, "bob receives the push", func() bool {
		got := bobConv.State().Messages
		return len(got) == 2 && got[1].ID == live.ID && got[1].Text == "still there?"
	})
}
