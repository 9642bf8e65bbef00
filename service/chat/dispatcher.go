package chat

import (
	"PShop/logger"
	"PShop/tools/errs"

	"go.uber.org/zap"
)

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Event()] = h }

func (d *Dispatcher) Dispatch(ctx *Context, f *Frame, conn *WsConn) error {
	h := d.GetHandler(f.Event)
	if h == nil {
		return errs.ErrArgs.WrapMsg("no handler", "event", f.Event)
	}
	return h.Handle(ctx, f, conn)
}

func (d *Dispatcher) GetHandler(event string) Handler {
	h, ok := d.handlers[event]
	if !ok {
		logger.Debug("[dispatch] no handler", zap.String("event", event))
		return nil
	}
	return h
}
