package chat

import (
	"encoding/json"

	"PShop/tools/errs"

	"github.com/go-playground/validator/v10"
)

const (
	EventClientsUpdated    = "clients-updated"
	EventMessageFromServer = "message-from-server"
	EventMessageFromClient = "message-from-client"
	EventError             = "error"
)

// Frame is the JSON envelope of every websocket text frame.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ChatInbound struct {
	Message string `json:"message" validate:"required,min=1"`
}

type ChatOutbound struct {
	FullName string `json:"fullName"`
	Message  string `json:"message"`
}

type ErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

var validate = validator.New()

func ParseFrameJSON(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errs.ErrArgs.WrapMsg("unmarshal frame", "err", err)
	}
	if f.Event == "" {
		return nil, errs.ErrArgs.WrapMsg("frame without event")
	}
	return f, nil
}

// DecodeChat unmarshals and validates a message-from-client payload.
func DecodeChat(data json.RawMessage) (ChatInbound, error) {
	var in ChatInbound
	if len(data) == 0 {
		return in, errs.ErrArgs.WrapMsg("empty payload")
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, errs.ErrArgs.WrapMsg("unmarshal chat", "err", err)
	}
	if err := validate.Struct(in); err != nil {
		return in, errs.ErrArgs.WrapMsg("invalid chat", "err", err)
	}
	return in, nil
}

func BuildFrame(event string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errs.WrapMsg(err, "marshal payload", "event", event)
	}
	return json.Marshal(Frame{Event: event, Data: data})
}

func BuildRosterFrame(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return BuildFrame(EventClientsUpdated, ids)
}

func BuildChatFrame(fullName, message string) ([]byte, error) {
	return BuildFrame(EventMessageFromServer, ChatOutbound{FullName: fullName, Message: message})
}

func BuildErrorFrame(err error) ([]byte, error) {
	p := ErrorPayload{Code: errs.ServerInternalError, Msg: "internal error"}
	if ce, ok := errs.AsCode(err); ok {
		p = ErrorPayload{Code: ce.Code, Msg: ce.Msg}
	}
	return BuildFrame(EventError, p)
}
