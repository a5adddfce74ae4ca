package client

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/directchat/internal/proto"
)

// SessionStatus is the position of the session state machine.
type SessionStatus int

const (
	StatusUnauthenticated SessionStatus = iota
	StatusAuthenticating
	StatusAuthenticated
	StatusLoggedOut
)

func (s SessionStatus) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticating:
		return "authenticating"
	case StatusAuthenticated:
		return "authenticated"
	case StatusLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// SocketStatus tracks the live connection inside an authenticated session.
type SocketStatus int

const (
	SocketDisconnected SocketStatus = iota
	SocketConnecting
	SocketConnected
)

// SessionState is a snapshot of the session store. Slices are never shared with the store.
type SessionState struct {
	Status      SessionStatus
	User        *proto.UserDTO
	Socket      SocketStatus
	OnlineUsers []int64

	CheckingAuth bool
	SigningUp    bool
	LoggingIn    bool
}

// IsOnline reports whether userID is in the last presence snapshot.
func (s SessionState) IsOnline(userID int64) bool {
	return slices.Contains(s.OnlineUsers, userID)
}

func (s SessionState) clone() SessionState {
	out := s
	out.OnlineUsers = slices.Clone(s.OnlineUsers)
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}

// SessionStore owns the authenticated identity and the single live connection.
type SessionStore struct {
	api  API
	dial Dialer
	log  zerolog.Logger

	mu        sync.Mutex
	state     SessionState
	socket    Socket
	onlineSub *Subscription

	changes Emitter[SessionState]
}

// NewSessionStore builds a session store. dial opens the live connection after authentication.
func NewSessionStore(api API, dial Dialer, logger *zerolog.Logger) *SessionStore {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "session").Logger()
	}
	return &SessionStore{api: api, dial: dial, log: l}
}

// State returns a copy of the current state.
func (s *SessionStore) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Watch subscribes to state changes.
func (s *SessionStore) Watch(fn func(SessionState)) *Subscription {
	return s.changes.Subscribe(fn)
}

// Socket returns the live connection, or nil when none is held.
func (s *SessionStore) Socket() Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socket
}

// CurrentUserID returns the authenticated user's id, or 0.
func (s *SessionStore) CurrentUserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.User == nil {
		return 0
	}
	return s.state.User.ID
}

// update applies fn to the current state under the lock and notifies watchers.
func (s *SessionStore) update(fn func(SessionState) SessionState) {
	s.mu.Lock()
	s.state = fn(s.state)
	snapshot := s.state.clone()
	s.mu.Unlock()

	s.changes.Emit(snapshot)
}

// CheckAuth restores a session from the stored credential and connects on success.
func (s *SessionStore) CheckAuth(ctx context.Context) error {
	s.update(func(st SessionState) SessionState {
		st.CheckingAuth = true
		st.Status = StatusAuthenticating
		return st
	})

	user, err := s.api.CheckAuth(ctx)
	s.update(func(st SessionState) SessionState {
		st.CheckingAuth = false
		if err != nil {
			st.User = nil
			st.Status = StatusUnauthenticated
			return st
		}
		st.User = &user
		st.Status = StatusAuthenticated
		return st
	})
	if err != nil {
		return err
	}
	return s.ConnectSocket(ctx)
}

// Signup creates an account, authenticates and connects.
func (s *SessionStore) Signup(ctx context.Context, fullName, email, password string) error {
	s.update(func(st SessionState) SessionState {
		st.SigningUp = true
		st.Status = StatusAuthenticating
		return st
	})

	user, err := s.api.Signup(ctx, fullName, email, password)
	return s.finishAuth(ctx, user, err, func(st *SessionState) { st.SigningUp = false })
}

// Login authenticates and connects.
func (s *SessionStore) Login(ctx context.Context, email, password string) error {
	s.update(func(st SessionState) SessionState {
		st.LoggingIn = true
		st.Status = StatusAuthenticating
		return st
	})

	user, err := s.api.Login(ctx, email, password)
	return s.finishAuth(ctx, user, err, func(st *SessionState) { st.LoggingIn = false })
}

func (s *SessionStore) finishAuth(ctx context.Context, user proto.UserDTO, err error, clearFlag func(*SessionState)) error {
	s.update(func(st SessionState) SessionState {
		clearFlag(&st)
		if err != nil {
			if st.User == nil {
				st.Status = StatusUnauthenticated
			} else {
				st.Status = StatusAuthenticated
			}
			return st
		}
		st.User = &user
		st.Status = StatusAuthenticated
		return st
	})
	if err != nil {
		return err
	}
	return s.ConnectSocket(ctx)
}

// Logout closes the live connection first, then ends the session on the server.
// The socket is gone even if the server call fails; the identity is kept in that case.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.DisconnectSocket()

	if err := s.api.Logout(ctx); err != nil {
		return err
	}
	s.update(func(st SessionState) SessionState {
		st.User = nil
		st.OnlineUsers = nil
		st.Status = StatusLoggedOut
		return st
	})
	return nil
}

// UpdateProfile replaces the profile picture of the current user.
func (s *SessionStore) UpdateProfile(ctx context.Context, profilePic string) error {
	if s.CurrentUserID() == 0 {
		return ErrNotAuthenticated
	}
	user, err := s.api.UpdateProfile(ctx, profilePic)
	if err != nil {
		return err
	}
	s.update(func(st SessionState) SessionState {
		st.User = &user
		return st
	})
	return nil
}

// ConnectSocket opens the live connection if none is held or being opened.
// Repeated calls are no-ops, so one client never registers twice.
func (s *SessionStore) ConnectSocket(ctx context.Context) error {
	s.mu.Lock()
	if s.state.User == nil {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	if s.socket != nil || s.state.Socket == SocketConnecting {
		s.mu.Unlock()
		return nil
	}
	s.state.Socket = SocketConnecting
	snapshot := s.state.clone()
	s.mu.Unlock()
	s.changes.Emit(snapshot)

	sock, err := s.dial(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("connect socket failed")
		s.update(func(st SessionState) SessionState {
			st.Socket = SocketDisconnected
			return st
		})
		return err
	}

	s.mu.Lock()
	if s.state.User == nil || s.state.Socket != SocketConnecting {
		// Logged out or disconnected while dialing.
		s.mu.Unlock()
		_ = sock.Close()
		return nil
	}
	s.socket = sock
	s.state.Socket = SocketConnected
	snapshot = s.state.clone()
	s.mu.Unlock()
	s.changes.Emit(snapshot)

	sub := sock.OnOnlineUsers(func(ids []int64) {
		s.update(func(st SessionState) SessionState {
			if s.socket != sock {
				return st
			}
			st.OnlineUsers = slices.Clone(ids)
			return st
		})
	})
	s.mu.Lock()
	if s.socket == sock {
		s.onlineSub = sub
	} else {
		sub.Cancel()
	}
	s.mu.Unlock()

	go s.watchSocket(sock)
	return nil
}

// watchSocket clears socket state when the server ends the connection.
func (s *SessionStore) watchSocket(sock Socket) {
	<-sock.Done()
	s.mu.Lock()
	if s.socket != sock {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.log.Debug().Msg("live connection ended")
	s.DisconnectSocket()
}

// DisconnectSocket closes the live connection and clears socket state.
func (s *SessionStore) DisconnectSocket() {
	s.mu.Lock()
	sock, sub := s.socket, s.onlineSub
	s.socket, s.onlineSub = nil, nil
	s.state.Socket = SocketDisconnected
	s.state.OnlineUsers = nil
	snapshot := s.state.clone()
	s.mu.Unlock()

	sub.Cancel()
	if sock != nil {
		if err := sock.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close socket")
		}
	}
	s.changes.Emit(snapshot)
}
