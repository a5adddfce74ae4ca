package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/directchat/internal/auth"
	"github.com/vovakirdan/directchat/internal/core"
	"github.com/vovakirdan/directchat/internal/proto"
	"github.com/vovakirdan/directchat/internal/service/messages"
	"github.com/vovakirdan/directchat/internal/utils"
)

// StatusSessionReplaced is sent to a connection evicted by a newer one from the same user.
const StatusSessionReplaced websocket.StatusCode = 4001

var errConnClosed = errors.New("connection closed by hub")

// WSOptions tunes the live connection endpoint.
type WSOptions struct {
	CookieName      string
	VerifyTimeout   time.Duration
	MaxMessageBytes int64
	EventBuffer     int
	OriginPatterns  []string
	Limiter         *handshakeLimiter
}

// WSHandler authenticates live connections and bridges them to core.Conn.
type WSHandler struct {
	hub      *core.Hub
	verifier *auth.Verifier
	messages *messages.Service
	opts     WSOptions
	log      zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, verifier *auth.Verifier, svc *messages.Service, opts WSOptions, logger *zerolog.Logger) stdhttp.Handler {
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 5 * time.Second
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "ws").Logger()
	}
	return &WSHandler{hub: hub, verifier: verifier, messages: svc, opts: opts, log: l}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !h.opts.Limiter.allow(r) {
		writeJSONError(w, stdhttp.StatusTooManyRequests, ErrorResponse{Code: core.ErrCodeRateLimited, Message: "too many connection attempts"})
		return
	}

	client := core.NewConn(utils.NewID(), h.opts.EventBuffer)
	log := h.log.With().Str("conn_id", client.ID).Logger()

	// Verify before upgrading so a rejected handshake never becomes a live connection.
	verifyCtx, cancelVerify := context.WithTimeout(r.Context(), h.opts.VerifyTimeout)
	identity, err := h.verifier.Verify(verifyCtx, auth.TokenFromRequest(r, h.opts.CookieName))
	cancelVerify()
	if err != nil {
		client.Reject(core.ErrHandshakeRejected)
		log.Debug().Err(err).Msg("ws handshake rejected")
		writeJSONError(w, stdhttp.StatusUnauthorized, errUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		client.Reject(core.ErrTransportClosed)
		log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	if !client.Authenticate(identity.UserID, identity.FullName) {
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}
	log = log.With().Int64("user_id", identity.UserID).Logger()

	// Teardown runs once however the connection ends.
	defer h.hub.Unregister(client)
	if !h.hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, core.ErrServerShutdown.Error())
		return
	}
	log.Debug().Msg("ws connection authenticated")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, &log)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &log)
	}()

	err = <-errCh
	status, reason := closeStatus(client, err)
	if status == websocket.StatusInternalError {
		log.Warn().Err(err).Msg("ws connection closed with error")
	}
	// Cancelling the read context closes the socket without a frame, so the close
	// frame goes out before the loops are stopped.
	conn.Close(status, reason)
	cancel()
	<-errCh
}

// closeStatus picks the close frame for a finished connection.
func closeStatus(client *core.Conn, err error) (websocket.StatusCode, string) {
	switch client.Err() {
	case core.ErrSessionReplaced:
		return StatusSessionReplaced, core.ErrSessionReplaced.Error()
	case core.ErrServerShutdown:
		return websocket.StatusGoingAway, core.ErrServerShutdown.Error()
	}

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, errConnClosed) {
		return websocket.StatusNormalClosure, "closing"
	}
	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing"
	case websocket.StatusMessageTooBig:
		return websocket.StatusMessageTooBig, "message too big"
	case -1:
		return websocket.StatusInternalError, "internal error"
	default:
		return s, "closing"
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Conn, log *zerolog.Logger) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		switch inbound.Type {
		case proto.InboundTypePing:
			h.reply(client, &core.Event{Kind: core.EventPong}, log)
		case proto.InboundTypeSend:
			h.handleSend(ctx, client, inbound, log)
		default:
			h.reply(client, &core.Event{
				Kind:  core.EventError,
				Error: core.NewError(core.ErrCodeInvalidMessage, "unknown message type"),
			}, log)
		}
	}
}

// handleSend persists a message sent over the live connection and acknowledges it.
// The receiver gets its push from the messages service, exactly as for the REST path.
func (h *WSHandler) handleSend(ctx context.Context, client *core.Conn, inbound proto.Inbound, log *zerolog.Logger) {
	send, protoErr := parseSend(inbound)
	if protoErr != nil {
		h.reply(client, &core.Event{Kind: core.EventError, Error: core.NewError(protoErr.Code, protoErr.Msg)}, log)
		return
	}

	res, err := h.messages.Send(ctx, client.UserID, send.ReceiverID, send.Text, send.Image)
	if err != nil {
		status, msg := sendErrorStatus(err)
		code := core.ErrCodeBadRequest
		if status == stdhttp.StatusInternalServerError {
			code = core.ErrCodeSendFailed
			log.Error().Err(err).Int64("receiver_id", send.ReceiverID).Msg("ws send failed")
		}
		h.reply(client, &core.Event{Kind: core.EventError, Error: core.NewError(code, msg)}, log)
		return
	}

	h.reply(client, &core.Event{
		Kind:    core.EventAck,
		TempID:  send.TempID,
		Message: messages.ToCore(res.Message),
	}, log)
}

func (h *WSHandler) reply(client *core.Conn, ev *core.Event, log *zerolog.Logger) {
	if !client.Push(ev) {
		log.Warn().Str("event", ev.Kind.String()).Msg("dropping reply for full queue")
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Conn, log *zerolog.Logger) error {
	for {
		select {
		case event := <-client.Events():
			outbound, err := outboundFromEvent(event)
			if err != nil {
				log.Error().Err(err).Str("event", event.Kind.String()).Msg("encode ws event")
				continue
			}
			if err := wsjson.Write(ctx, conn, outbound); err != nil {
				return err
			}
		case <-client.Done():
			return errConnClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeJSONError(w stdhttp.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
