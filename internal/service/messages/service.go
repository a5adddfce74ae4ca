package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/directchat/internal/core"
	"github.com/vovakirdan/directchat/internal/media"
	"github.com/vovakirdan/directchat/internal/store"
)

// Common errors for message operations.
var (
	ErrEmptyMessage     = errors.New("message must contain text or an image")
	ErrReceiverNotFound = errors.New("receiver not found")
	ErrSelfMessage      = errors.New("cannot send a message to yourself")
	ErrImageUnsupported = errors.New("unsupported image")
)

// Relay pushes a persisted message to its receiver if the receiver is online.
type Relay interface {
	Deliver(msg core.Message) bool
}

// ImageResolver turns an image payload into a stored reference.
type ImageResolver interface {
	Resolve(ctx context.Context, prefix, payload string) (string, error)
}

// Service provides direct message business logic.
type Service struct {
	store  store.Store
	images ImageResolver
	relay  Relay
}

// New creates a new message service. relay may be nil, in which case nothing is pushed live.
func New(st store.Store, images ImageResolver, relay Relay) *Service {
	return &Service{
		store:  st,
		images: images,
		relay:  relay,
	}
}

// SendResult is a persisted message and whether it was pushed to a live connection.
type SendResult struct {
	Message   *store.Message
	Delivered bool
}

// Send persists a message from senderID to receiverID and relays it to the receiver.
// The write always completes before the push is attempted.
func (s *Service) Send(ctx context.Context, senderID, receiverID int64, text, image string) (SendResult, error) {
	text = strings.TrimSpace(text)
	image = strings.TrimSpace(image)
	if text == "" && image == "" {
		return SendResult{}, ErrEmptyMessage
	}
	if senderID == receiverID {
		return SendResult{}, ErrSelfMessage
	}

	if _, err := s.store.GetUserByID(ctx, receiverID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return SendResult{}, ErrReceiverNotFound
		}
		return SendResult{}, fmt.Errorf("lookup receiver: %w", err)
	}

	var imageRef string
	if image != "" {
		ref, err := s.images.Resolve(ctx, fmt.Sprintf("messages/%d", senderID), image)
		if err != nil {
			if errors.Is(err, media.ErrInvalidImage) || errors.Is(err, media.ErrImageTooLarge) || errors.Is(err, media.ErrUploadsDisabled) {
				return SendResult{}, fmt.Errorf("%w: %v", ErrImageUnsupported, err)
			}
			return SendResult{}, err
		}
		imageRef = ref
	}

	msg := &store.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		ImageRef:   imageRef,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return SendResult{}, fmt.Errorf("create message: %w", err)
	}

	result := SendResult{Message: msg}
	if s.relay != nil {
		result.Delivered = s.relay.Deliver(ToCore(msg))
	}
	return result, nil
}

// History returns the conversation between userID and peerID in send order.
func (s *Service) History(ctx context.Context, userID, peerID int64) ([]*store.Message, error) {
	msgs, err := s.store.ListConversation(ctx, userID, peerID)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return msgs, nil
}

// Contacts lists every account except userID.
func (s *Service) Contacts(ctx context.Context, userID int64) ([]*store.User, error) {
	users, err := s.store.ListUsersExcept(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return users, nil
}

// ChatPartners lists accounts userID has exchanged messages with, most recent first.
func (s *Service) ChatPartners(ctx context.Context, userID int64) ([]*store.User, error) {
	users, err := s.store.ListChatPartners(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list chat partners: %w", err)
	}
	return users, nil
}

// ToCore converts a persisted message into the shape the hub relays.
func ToCore(msg *store.Message) core.Message {
	return core.Message{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Text:       msg.Text,
		ImageRef:   msg.ImageRef,
		CreatedAt:  msg.CreatedAt,
	}
}
