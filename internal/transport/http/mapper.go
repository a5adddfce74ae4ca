package http

import (
	"encoding/json"

	"github.com/vovakirdan/directchat/internal/core"
	"github.com/vovakirdan/directchat/internal/proto"
	"github.com/vovakirdan/directchat/internal/store"
)

func userDTO(u *store.User) proto.UserDTO {
	return proto.UserDTO{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		ProfilePic: u.ProfilePic,
	}
}

func messageDTO(m *store.Message) proto.MessageDTO {
	return proto.MessageDTO{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.ImageRef,
		CreatedAt:  m.CreatedAt,
	}
}

func coreMessageDTO(m core.Message) proto.MessageDTO {
	return proto.MessageDTO{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.ImageRef,
		CreatedAt:  m.CreatedAt,
	}
}

// parseSend decodes a send request. A nil request comes with the error to answer.
func parseSend(inbound proto.Inbound) (*proto.SendData, *proto.Error) {
	var send proto.SendData
	if err := json.Unmarshal(inbound.Data, &send); err != nil {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid send payload"}
	}
	if send.ReceiverID <= 0 {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "receiverId is required"}
	}
	return &send, nil
}

func outboundFromEvent(event *core.Event) (proto.Outbound, error) {
	switch event.Kind {
	case core.EventOnlineUsers:
		users := event.OnlineUsers
		if users == nil {
			users = []int64{}
		}
		return proto.NewEvent(proto.EventOnlineUsers, users)
	case core.EventNewMessage:
		return proto.NewEvent(proto.EventNewMessage, coreMessageDTO(event.Message))
	case core.EventAck:
		return proto.NewEvent(proto.EventAck, proto.AckData{
			TempID:  event.TempID,
			Message: coreMessageDTO(event.Message),
		})
	case core.EventPong:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventPong}, nil
	case core.EventError:
		if event.Error == nil {
			return proto.NewErrorOutbound("unknown", "unknown error"), nil
		}
		return proto.NewErrorOutbound(event.Error.Code, event.Error.Message), nil
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}, nil
	}
}
