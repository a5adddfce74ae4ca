package messages

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vovakirdan/directchat/internal/core"
	"github.com/vovakirdan/directchat/internal/media"
	"github.com/vovakirdan/directchat/internal/store"
	"github.com/vovakirdan/directchat/internal/store/sqlite"
)

type recordingRelay struct {
	mu     sync.Mutex
	online map[int64]bool
	pushed []core.Message
}

func (r *recordingRelay) Deliver(msg core.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.online[msg.ReceiverID] {
		return false
	}
	r.pushed = append(r.pushed, msg)
	return true
}

func newTestService(t *testing.T, relay Relay) (*Service, store.Store, *store.User, *store.User) {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	alice, err := st.CreateUser(ctx, "Alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateUser(ctx, "Bob", "bob@example.com", "hash")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	return New(st, media.NewImages(nil, 0), relay), st, alice, bob
}

func TestSend_Validation(t *testing.T) {
	svc, _, alice, bob := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		receiver int64
		text     string
		image    string
		want     error
	}{
		{"empty", bob.ID, "  ", "", ErrEmptyMessage},
		{"self", alice.ID, "hi", "", ErrSelfMessage},
		{"unknown receiver", 9999, "hi", "", ErrReceiverNotFound},
		{"bad image", bob.ID, "", "not-an-image", ErrImageUnsupported},
		{"upload without storage", bob.ID, "", "data:image/png;base64,iVBORw0KGgo=", ErrImageUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(ctx, alice.ID, tt.receiver, tt.text, tt.image)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSend_OfflineReceiverPersistsWithoutPush(t *testing.T) {
	relay := &recordingRelay{online: map[int64]bool{}}
	svc, _, alice, bob := newTestService(t, relay)
	ctx := context.Background()

	res, err := svc.Send(ctx, alice.ID, bob.ID, "hi", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Message.ID == 0 {
		t.Fatalf("expected persisted id")
	}
	if res.Delivered || len(relay.pushed) != 0 {
		t.Fatalf("offline receiver must not get a push")
	}

	// Bob reads the history later and finds it.
	history, err := svc.History(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != res.Message.ID || history[0].Text != "hi" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestSend_OnlineReceiverGetsPush(t *testing.T) {
	relay := &recordingRelay{online: map[int64]bool{}}
	svc, _, alice, bob := newTestService(t, relay)
	relay.online[bob.ID] = true

	res, err := svc.Send(context.Background(), alice.ID, bob.ID, "hello", "https://cdn.example.com/a.png")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !res.Delivered || len(relay.pushed) != 1 {
		t.Fatalf("expected exactly one push, got %d", len(relay.pushed))
	}
	pushed := relay.pushed[0]
	if pushed.ID != res.Message.ID || pushed.SenderID != alice.ID || pushed.ImageRef != "https://cdn.example.com/a.png" {
		t.Fatalf("unexpected pushed message %+v", pushed)
	}
}

func TestContactsAndChatPartners(t *testing.T) {
	svc, st, alice, bob := newTestService(t, nil)
	ctx := context.Background()

	carol, err := st.CreateUser(ctx, "Carol", "carol@example.com", "hash")
	if err != nil {
		t.Fatalf("create carol: %v", err)
	}

	contacts, err := svc.Contacts(ctx, alice.ID)
	if err != nil {
		t.Fatalf("contacts: %v", err)
	}
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(contacts))
	}

	if _, err := svc.Send(ctx, alice.ID, bob.ID, "one", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Send(ctx, carol.ID, alice.ID, "two", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	partners, err := svc.ChatPartners(ctx, alice.ID)
	if err != nil {
		t.Fatalf("partners: %v", err)
	}
	if len(partners) != 2 || partners[0].ID != carol.ID || partners[1].ID != bob.ID {
		t.Fatalf("unexpected partners order: %+v", partners)
	}
}
