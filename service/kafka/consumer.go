package kafka

import (
	"context"
	"sync"
	"time"

	"PShop/logger"
	"PShop/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// MessageHandler gets the event subject, not the raw topic.
type MessageHandler func(ctx context.Context, subject string, key, value []byte) error

// Router maps subjects to handlers.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]MessageHandler
}

func NewRouter() *Router { return &Router{handlers: make(map[string]MessageHandler)} }

func (r *Router) Handle(subject string, h MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[subject] = h
}

func (r *Router) Get(subject string) (MessageHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[subject]; ok {
		return h, nil
	}
	return nil, errs.ErrArgs.WrapMsg("no handler registered", "subject", subject)
}

func (r *Router) Subjects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for s := range r.handlers {
		out = append(out, s)
	}
	return out
}

type groupHandler struct {
	cfg    Config
	router *Router
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	logger.Info("[kafka] consumer group setup")
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	logger.Info("[kafka] consumer group cleanup")
	return nil
}

// ConsumeClaim marks every message; a failing handler is logged, not retried.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.dispatch(session.Context(), msg)
		session.MarkMessage(msg, "")
	}
	return nil
}

func (h *groupHandler) dispatch(ctx context.Context, msg *sarama.ConsumerMessage) {
	subject := h.cfg.SubjectOf(msg.Topic)
	handler, err := h.router.Get(subject)
	if err != nil {
		logger.Warn("[kafka] no handler", zap.String("topic", msg.Topic))
		return
	}
	if err := handler(ctx, subject, msg.Key, msg.Value); err != nil {
		logger.Warn("[kafka] handler error",
			zap.String("topic", msg.Topic),
			zap.Int32("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}
}

// RunConsumerGroup consumes every subject the router knows until ctx ends.
func RunConsumerGroup(ctx context.Context, cfg Config, groupID string, router *Router) error {
	group, err := sarama.NewConsumerGroup(cfg.Brokers, groupID, BuildBaseConfig(cfg))
	if err != nil {
		return errs.WrapMsg(err, "kafka consumer group", "group", groupID)
	}
	defer group.Close()

	go func() {
		for err := range group.Errors() {
			logger.Warn("[kafka] consumer group error", zap.Error(err))
		}
	}()

	subjects := router.Subjects()
	topics := make([]string, 0, len(subjects))
	for _, s := range subjects {
		topics = append(topics, cfg.TopicFor(s))
	}
	handler := &groupHandler{cfg: cfg, router: router}
	for ctx.Err() == nil {
		if err := group.Consume(ctx, topics, handler); err != nil {
			logger.Warn("[kafka] consume error", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
	return nil
}
