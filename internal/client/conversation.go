package client

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/directchat/internal/proto"
	"github.com/vovakirdan/directchat/internal/utils"
)

// Tab is the list shown next to the conversation.
type Tab string

const (
	TabChats    Tab = "chats"
	TabContacts Tab = "contacts"
)

// ChatMessage is a message in the visible sequence. Provisional copies have a TempID,
// no ID and Pending set until the server answers.
type ChatMessage struct {
	ID         int64
	TempID     string
	SenderID   int64
	ReceiverID int64
	Text       string
	Image      string
	CreatedAt  time.Time
	Pending    bool
}

func chatMessageFrom(m proto.MessageDTO) ChatMessage {
	return ChatMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		CreatedAt:  m.CreatedAt,
	}
}

// ConversationState is a snapshot of the conversation store.
type ConversationState struct {
	Contacts     []proto.UserDTO
	Chats        []proto.UserDTO
	Messages     []ChatMessage
	ActiveTab    Tab
	SelectedPeer *proto.UserDTO

	UsersLoading    bool
	MessagesLoading bool
	SoundEnabled    bool
}

func (s ConversationState) clone() ConversationState {
	out := s
	out.Contacts = slices.Clone(s.Contacts)
	out.Chats = slices.Clone(s.Chats)
	out.Messages = slices.Clone(s.Messages)
	if s.SelectedPeer != nil {
		p := *s.SelectedPeer
		out.SelectedPeer = &p
	}
	return out
}

// SendInput is the payload of one send. At least one field must be set.
type SendInput struct {
	Text  string
	Image string
}

// SessionSource is the part of the session store the conversation needs.
type SessionSource interface {
	Socket() Socket
	CurrentUserID() int64
}

// Notifier is told about inbound messages accepted into the visible sequence while sound is on.
type Notifier interface {
	Notify(msg ChatMessage)
}

// ConversationOptions configures a conversation store.
type ConversationOptions struct {
	SoundEnabled bool
	Notifier     Notifier
	Logger       *zerolog.Logger
}

// ConversationStore owns the visible message sequence: optimistic sends and live inbound messages.
type ConversationStore struct {
	api      API
	session  SessionSource
	notifier Notifier
	log      zerolog.Logger

	mu    sync.Mutex
	state ConversationState
	sub   *Subscription

	changes Emitter[ConversationState]
}

// NewConversationStore builds a conversation store on top of a session.
func NewConversationStore(api API, session SessionSource, opts ConversationOptions) *ConversationStore {
	l := zerolog.Nop()
	if opts.Logger != nil {
		l = opts.Logger.With().Str("component", "conversation").Logger()
	}
	return &ConversationStore{
		api:      api,
		session:  session,
		notifier: opts.Notifier,
		log:      l,
		state: ConversationState{
			ActiveTab:    TabChats,
			SoundEnabled: opts.SoundEnabled,
		},
	}
}

// State returns a copy of the current state.
func (c *ConversationStore) State() ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Watch subscribes to state changes.
func (c *ConversationStore) Watch(fn func(ConversationState)) *Subscription {
	return c.changes.Subscribe(fn)
}

// update applies fn to the state current at apply time and notifies watchers.
func (c *ConversationStore) update(fn func(ConversationState) ConversationState) {
	c.mu.Lock()
	c.state = fn(c.state)
	snapshot := c.state.clone()
	c.mu.Unlock()

	c.changes.Emit(snapshot)
}

// SetActiveTab switches between chats and contacts.
func (c *ConversationStore) SetActiveTab(tab Tab) {
	c.update(func(st ConversationState) ConversationState {
		st.ActiveTab = tab
		return st
	})
}

// ToggleSound flips notifications for inbound messages and returns the new value.
func (c *ConversationStore) ToggleSound() bool {
	var enabled bool
	c.update(func(st ConversationState) ConversationState {
		st.SoundEnabled = !st.SoundEnabled
		enabled = st.SoundEnabled
		return st
	})
	return enabled
}

// SelectPeer switches the conversation. The inbound subscription of the previous
// peer is cancelled and the visible sequence is cleared; nil deselects.
func (c *ConversationStore) SelectPeer(peer *proto.UserDTO) {
	c.UnsubscribeFromMessages()

	var selected *proto.UserDTO
	if peer != nil {
		p := *peer
		selected = &p
	}
	c.update(func(st ConversationState) ConversationState {
		if st.SelectedPeer != nil && selected != nil && st.SelectedPeer.ID == selected.ID {
			st.SelectedPeer = selected
			return st
		}
		st.SelectedPeer = selected
		st.Messages = nil
		return st
	})
}

// LoadContacts fetches every other account.
func (c *ConversationStore) LoadContacts(ctx context.Context) error {
	return c.loadUsers(ctx, c.api.Contacts, func(st *ConversationState, users []proto.UserDTO) { st.Contacts = users })
}

// LoadChatPartners fetches the accounts with an existing conversation.
func (c *ConversationStore) LoadChatPartners(ctx context.Context) error {
	return c.loadUsers(ctx, c.api.ChatPartners, func(st *ConversationState, users []proto.UserDTO) { st.Chats = users })
}

func (c *ConversationStore) loadUsers(ctx context.Context, fetch func(context.Context) ([]proto.UserDTO, error), apply func(*ConversationState, []proto.UserDTO)) error {
	c.update(func(st ConversationState) ConversationState {
		st.UsersLoading = true
		return st
	})

	users, err := fetch(ctx)
	c.update(func(st ConversationState) ConversationState {
		st.UsersLoading = false
		if err == nil {
			apply(&st, users)
		}
		return st
	})
	return err
}

// LoadMessages replaces the visible sequence with the stored history with peerID.
func (c *ConversationStore) LoadMessages(ctx context.Context, peerID int64) error {
	c.update(func(st ConversationState) ConversationState {
		st.MessagesLoading = true
		return st
	})

	history, err := c.api.Messages(ctx, peerID)
	c.update(func(st ConversationState) ConversationState {
		st.MessagesLoading = false
		if err != nil || st.SelectedPeer == nil || st.SelectedPeer.ID != peerID {
			return st
		}
		msgs := make([]ChatMessage, 0, len(history))
		for _, m := range history {
			msgs = append(msgs, chatMessageFrom(m))
		}
		st.Messages = msgs
		return st
	})
	return err
}

// SendMessage applies a provisional copy at once, then replaces it with the persisted
// message or removes it when the request fails. The provisional copy never outlives the call.
func (c *ConversationStore) SendMessage(ctx context.Context, in SendInput) (ChatMessage, error) {
	in.Text = strings.TrimSpace(in.Text)
	in.Image = strings.TrimSpace(in.Image)

	c.mu.Lock()
	peer := c.state.SelectedPeer
	var peerID int64
	if peer != nil {
		peerID = peer.ID
	}
	c.mu.Unlock()
	if peer == nil {
		return ChatMessage{}, ErrNoPeerSelected
	}
	if in.Text == "" && in.Image == "" {
		return ChatMessage{}, ErrEmptyMessage
	}

	provisional := ChatMessage{
		TempID:     utils.NewTempID(),
		SenderID:   c.session.CurrentUserID(),
		ReceiverID: peerID,
		Text:       in.Text,
		Image:      in.Image,
		CreatedAt:  time.Now(),
		Pending:    true,
	}
	c.update(func(st ConversationState) ConversationState {
		st.Messages = append(slices.Clone(st.Messages), provisional)
		return st
	})

	persisted, err := c.api.SendMessage(ctx, peerID, in.Text, in.Image)
	if err != nil {
		c.update(func(st ConversationState) ConversationState {
			st.Messages = slices.DeleteFunc(slices.Clone(st.Messages), func(m ChatMessage) bool {
				return m.TempID == provisional.TempID
			})
			return st
		})
		return ChatMessage{}, classifySendError(err)
	}

	confirmed := chatMessageFrom(persisted)
	c.update(func(st ConversationState) ConversationState {
		msgs := slices.Clone(st.Messages)
		i := slices.IndexFunc(msgs, func(m ChatMessage) bool { return m.TempID == provisional.TempID })
		if i < 0 {
			// The conversation was switched while the request was in flight.
			return st
		}
		if slices.ContainsFunc(msgs, func(m ChatMessage) bool { return m.ID == confirmed.ID && m.TempID == "" }) {
			msgs = slices.Delete(msgs, i, i+1)
		} else {
			msgs[i] = confirmed
		}
		st.Messages = msgs
		return st
	})
	return confirmed, nil
}

func classifySendError(err error) error {
	if errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreWriteFailed, err)
}

// SubscribeToMessages listens for live messages from the selected peer.
// Any previous subscription is cancelled first, so handlers never accumulate.
func (c *ConversationStore) SubscribeToMessages() error {
	c.mu.Lock()
	hasPeer := c.state.SelectedPeer != nil
	c.mu.Unlock()
	if !hasPeer {
		return ErrNoPeerSelected
	}

	sock := c.session.Socket()
	if sock == nil {
		return ErrNotConnected
	}

	sub := sock.OnNewMessage(c.receive)

	c.mu.Lock()
	old := c.sub
	c.sub = sub
	c.mu.Unlock()
	old.Cancel()
	return nil
}

// UnsubscribeFromMessages cancels the live message subscription, if any.
func (c *ConversationStore) UnsubscribeFromMessages() {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	sub.Cancel()
}

// receive appends a live message only when it comes from the selected peer.
func (c *ConversationStore) receive(dto proto.MessageDTO) {
	msg := chatMessageFrom(dto)

	accepted, sound := false, false
	c.update(func(st ConversationState) ConversationState {
		if st.SelectedPeer == nil || msg.SenderID != st.SelectedPeer.ID {
			return st
		}
		if slices.ContainsFunc(st.Messages, func(m ChatMessage) bool { return m.ID == msg.ID && m.TempID == "" }) {
			return st
		}
		st.Messages = append(slices.Clone(st.Messages), msg)
		accepted, sound = true, st.SoundEnabled
		return st
	})

	if !accepted {
		c.log.Debug().Int64("sender_id", msg.SenderID).Msg("ignoring message outside the open conversation")
		return
	}
	if sound && c.notifier != nil {
		c.notifier.Notify(msg)
	}
}

// Close tears the store down.
func (c *ConversationStore) Close() {
	c.UnsubscribeFromMessages()
}
