package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/directchat/internal/proto"
	"github.com/vovakirdan/directchat/internal/service/messages"
)

// MessageHandlers provides the direct message endpoints.
type MessageHandlers struct {
	messages *messages.Service
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(svc *messages.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{messages: svc, log: logger}
}

// SendMessageRequest represents the send body. At least one field is required.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// Contacts lists every other account.
// GET /api/messages/contacts
func (h *MessageHandlers) Contacts(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	users, err := h.messages.Contacts(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list contacts")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return
	}

	response := make([]proto.UserDTO, 0, len(users))
	for _, u := range users {
		response = append(response, userDTO(u))
	}
	c.JSON(http.StatusOK, response)
}

// Chats lists accounts the caller has exchanged messages with.
// GET /api/messages/chats
func (h *MessageHandlers) Chats(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}

	users, err := h.messages.ChatPartners(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list chat partners")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return
	}

	response := make([]proto.UserDTO, 0, len(users))
	for _, u := range users {
		response = append(response, userDTO(u))
	}
	c.JSON(http.StatusOK, response)
}

// History returns the conversation with :id.
// GET /api/messages/:id
func (h *MessageHandlers) History(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	peerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || peerID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid user id"})
		return
	}

	msgs, err := h.messages.History(c.Request.Context(), uid, peerID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Int64("peer_id", peerID).Msg("failed to load history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return
	}

	response := make([]proto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		response = append(response, messageDTO(m))
	}
	c.JSON(http.StatusOK, response)
}

// Send persists a message to :id and pushes it to the receiver if online.
// POST /api/messages/send/:id
func (h *MessageHandlers) Send(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	receiverID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || receiverID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid user id"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}

	res, err := h.messages.Send(c.Request.Context(), uid, receiverID, req.Text, req.Image)
	if err != nil {
		status, msg := sendErrorStatus(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Int64("user_id", uid).Int64("receiver_id", receiverID).Msg("failed to send message")
		}
		c.JSON(status, ErrorResponse{Message: msg})
		return
	}

	h.log.Debug().
		Int64("message_id", res.Message.ID).
		Int64("receiver_id", receiverID).
		Bool("delivered", res.Delivered).
		Msg("message sent")
	c.JSON(http.StatusCreated, messageDTO(res.Message))
}

// sendErrorStatus maps a messages.Service error to an HTTP status and short text.
func sendErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, messages.ErrEmptyMessage):
		return http.StatusBadRequest, messages.ErrEmptyMessage.Error()
	case errors.Is(err, messages.ErrSelfMessage):
		return http.StatusBadRequest, messages.ErrSelfMessage.Error()
	case errors.Is(err, messages.ErrImageUnsupported):
		return http.StatusBadRequest, messages.ErrImageUnsupported.Error()
	case errors.Is(err, messages.ErrReceiverNotFound):
		return http.StatusNotFound, messages.ErrReceiverNotFound.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
