package handlers

import (
	"time"

	"PShop/service/chat"
)

// MessageHandler relays a client chat line to every registered socket,
// the sender included.
type MessageHandler struct{}

func NewMessageHandler() chat.Handler { return &MessageHandler{} }

func (h *MessageHandler) Event() string { return chat.EventMessageFromClient }

func (h *MessageHandler) Handle(ctx *chat.Context, f *chat.Frame, conn *chat.WsConn) error {
	in, err := chat.DecodeChat(f.Data)
	if err != nil {
		return err
	}

	// 发送者已被挤下线时直接失败，不用空名字广播
	name, err := ctx.S.Registry().LookupDisplayName(conn.ID())
	if err != nil {
		return err
	}

	frame, err := chat.BuildChatFrame(name, in.Message)
	if err != nil {
		return err
	}
	ctx.S.Broadcast(frame)
	ctx.S.Publish(chat.SubjectMessage, chat.ChatEvent{
		ConnID:   conn.ID(),
		UserID:   conn.UserID,
		FullName: name,
		Message:  in.Message,
		Gateway:  ctx.S.GwID(),
		At:       time.Now().UnixMilli(),
	})
	return nil
}

// Register wires every frame handler into s.
func Register(s *chat.Server) {
	s.Disp().Register(NewMessageHandler())
}
