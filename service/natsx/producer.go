package natsx

import (
	"context"
	"time"

	"PShop/tools"
	"PShop/tools/errs"
)

const HeaderMsgID = "Nats-Msg-Id"

// NatsxProducer 生产端
type NatsxProducer struct{ c *NatsxClient }

func NewNatsxProducer(c *NatsxClient) *NatsxProducer { return &NatsxProducer{c: c} }

// Publish 按 Biz 路由发送
func (p *NatsxProducer) Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	r, ok := p.c.route(biz)
	if !ok {
		return errs.ErrArgs.WrapMsg("route not found", "biz", biz)
	}
	if r.Mode == JetStreamPush {
		return p.c.sendJS(ctx, r.Subject, data, hdr)
	}
	return p.c.sendCore(r.Subject, data, hdr)
}

// PublishOnce 带 Nats-Msg-Id 的发布；msgID 为空则自动生成
func (p *NatsxProducer) PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	out := make(map[string]string, len(hdr)+1)
	for k, v := range hdr {
		out[k] = v
	}
	if msgID == "" {
		msgID = tools.RandMsgID()
	}
	out[HeaderMsgID] = msgID
	return p.Publish(ctx, biz, data, out)
}

// NatsxSyncPublisher 同步发布器（带重试）
type NatsxSyncPublisher struct {
	P       *NatsxProducer
	Retries int
	Backoff time.Duration
}

func (sp *NatsxSyncPublisher) Publish(ctx context.Context, biz string, payload []byte, hdr map[string]string) error {
	// 重试共用一个 msgID，JetStream 侧据此去重
	msgID := tools.RandMsgID()
	var err error
	for i := 0; i <= sp.Retries; i++ {
		if err = sp.P.PublishOnce(ctx, biz, payload, hdr, msgID); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errs.WrapMsg(ctx.Err(), "publish retry aborted", "biz", biz, "last", err)
		case <-time.After(sp.Backoff):
		}
	}
	return err
}
