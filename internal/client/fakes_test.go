package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/directchat/internal/proto"
)

type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	user     proto.UserDTO
	authErr  error
	users    []proto.UserDTO
	history  []proto.MessageDTO
	sendFunc func(ctx context.Context, peerID int64, text, image string) (proto.MessageDTO, error)
	logout   func() error
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) CheckAuth(context.Context) (proto.UserDTO, error) {
	f.record("check")
	return f.user, f.authErr
}

func (f *fakeAPI) Signup(_ context.Context, fullName, email, _ string) (proto.UserDTO, error) {
	f.record("signup")
	if f.authErr != nil {
		return proto.UserDTO{}, f.authErr
	}
	return proto.UserDTO{ID: f.user.ID, FullName: fullName, Email: email}, nil
}

func (f *fakeAPI) Login(context.Context, string, string) (proto.UserDTO, error) {
	f.record("login")
	return f.user, f.authErr
}

func (f *fakeAPI) Logout(context.Context) error {
	f.record("logout")
	if f.logout != nil {
		return f.logout()
	}
	return nil
}

func (f *fakeAPI) UpdateProfile(_ context.Context, pic string) (proto.UserDTO, error) {
	f.record("update-profile")
	u := f.user
	u.ProfilePic = pic
	return u, nil
}

func (f *fakeAPI) Contacts(context.Context) ([]proto.UserDTO, error) {
	f.record("contacts")
	return f.users, nil
}

func (f *fakeAPI) ChatPartners(context.Context) ([]proto.UserDTO, error) {
	f.record("chats")
	return f.users, nil
}

func (f *fakeAPI) Messages(context.Context, int64) ([]proto.MessageDTO, error) {
	f.record("messages")
	return f.history, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, peerID int64, text, image string) (proto.MessageDTO, error) {
	f.record("send")
	return f.sendFunc(ctx, peerID, text, image)
}

type fakeSocket struct {
	online   Emitter[[]int64]
	messages Emitter[proto.MessageDTO]

	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{done: make(chan struct{})}
}

func (s *fakeSocket) OnOnlineUsers(fn func([]int64)) *Subscription {
	return s.online.Subscribe(fn)
}

func (s *fakeSocket) OnNewMessage(fn func(proto.MessageDTO)) *Subscription {
	return s.messages.Subscribe(fn)
}

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
		close(s.done)
	})
	return nil
}

func (s *fakeSocket) Done() <-chan struct{} {
	return s.done
}

func (s *fakeSocket) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// fakeSession satisfies SessionSource for conversation tests.
type fakeSession struct {
	socket Socket
	userID int64
}

func (f *fakeSession) Socket() Socket       { return f.socket }
func (f *fakeSession) CurrentUserID() int64 { return f.userID }

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []ChatMessage
}

func (n *recordingNotifier) Notify(msg ChatMessage) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
