package natsx

import (
	"context"
	"time"

	"PShop/tools/errs"
)

// NatsManager 统一门面：对外只暴露这一个对象来用
type NatsManager struct {
	client   *NatsxClient
	producer *NatsxProducer
	consumer *NatsxConsumer
}

// NewNatsManager 初始化
func NewNatsManager(cfg NatsxConfig, middlewares ...NatsxMiddleware) (*NatsManager, error) {
	c, err := NewNatsxClient(cfg)
	if err != nil {
		return nil, err
	}
	return &NatsManager{
		client:   c,
		producer: NewNatsxProducer(c),
		consumer: NewNatsxConsumer(c, middlewares...),
	}, nil
}

// Close 释放资源（优雅关闭订阅与连接）
func (m *NatsManager) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}

// RegisterRoute 注册业务路由
func (m *NatsManager) RegisterRoute(r NatsxRoute) error {
	if m == nil || m.client == nil {
		return errs.New("nats manager not initialized")
	}
	return m.client.RegisterRoute(r)
}

// EnsureStream 见 NatsxClient.EnsureStream
func (m *NatsManager) EnsureStream(name string, maxAge time.Duration, subjects ...string) error {
	if m == nil || m.client == nil {
		return errs.New("nats manager not initialized")
	}
	return m.client.EnsureStream(name, maxAge, subjects...)
}

func (m *NatsManager) Producer() *NatsxProducer { return m.producer }

// Subscribe 订阅（Core/JetStream Push），同组内用 Queue 分摊；广播则 Queue 置空
func (m *NatsManager) Subscribe(biz string, h NatsxHandler) error {
	if m == nil || m.consumer == nil {
		return errs.New("nats manager not initialized")
	}
	return m.consumer.Subscribe(biz, h)
}

// EventBus publishes gateway events with the subject doubling as biz name.
// Subjects without a registered route go out on core NATS as is.
type EventBus struct {
	m    *NatsManager
	sync *NatsxSyncPublisher
}

func NewEventBus(m *NatsManager, retries int) *EventBus {
	return &EventBus{m: m, sync: &NatsxSyncPublisher{P: m.producer, Retries: retries}}
}

func (b *EventBus) Publish(ctx context.Context, subject string, data []byte) error {
	if _, ok := b.m.client.route(subject); !ok {
		if err := b.m.RegisterRoute(NatsxRoute{Biz: subject, Subject: subject, Mode: Core}); err != nil {
			return err
		}
	}
	return b.sync.Publish(ctx, subject, data, nil)
}
