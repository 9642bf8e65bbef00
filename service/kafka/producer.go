package kafka

import (
	"context"
	"strings"
	"time"

	"PShop/logger"
	"PShop/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

func BuildBaseConfig(c Config) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = c.KafkaVersion
	if c.ClientID != "" {
		cfg.ClientID = c.ClientID
	}

	// Producer
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 1
	}
	cfg.Producer.Retry.Max = c.ProducerRetries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // Key 控制分区
	switch strings.ToLower(c.ProducerCompression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	// Consumer
	switch strings.ToLower(c.ConsumerInitialOffset) {
	case "oldest":
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	// Net
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

// Bus publishes gateway events to kafka, one topic per subject. Messages
// are keyed by the gateway id so one node's events stay ordered.
type Bus struct {
	cfg      Config
	key      string
	client   sarama.Client
	producer sarama.SyncProducer
}

func NewBus(c Config, key string) (*Bus, error) {
	client, err := sarama.NewClient(c.Brokers, BuildBaseConfig(c))
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka client", "brokers", c.Brokers)
	}
	p, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errs.WrapMsg(err, "kafka sync producer")
	}
	return &Bus{cfg: c, key: key, client: client, producer: p}, nil
}

// EnsureTopics creates the topics for subjects when AutoCreateTopics is on.
func (b *Bus) EnsureTopics(subjects ...string) error {
	if !b.cfg.AutoCreateTopics {
		return nil
	}
	admin, err := sarama.NewClusterAdminFromClient(b.client)
	if err != nil {
		return errs.WrapMsg(err, "kafka admin")
	}
	// admin 与 bus 共用 client，不能 Close
	topics := make([]string, 0, len(subjects))
	for _, s := range subjects {
		topics = append(topics, b.cfg.TopicFor(s))
	}
	return EnsureTopics(admin, topics, b.cfg)
}

// Publish is bounded by the producer's own timeouts; ctx only short-circuits
// calls made after it is already done.
func (b *Bus) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: b.cfg.TopicFor(subject),
		Key:   sarama.StringEncoder(b.key),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := b.producer.SendMessage(msg)
	if err != nil {
		return errs.WrapMsg(err, "kafka send", "topic", msg.Topic)
	}
	logger.Debug("[kafka] sent", zap.String("topic", msg.Topic), zap.Int32("partition", partition), zap.Int64("offset", offset))
	return nil
}

func (b *Bus) Close() error {
	if err := b.producer.Close(); err != nil {
		_ = b.client.Close()
		return err
	}
	return b.client.Close()
}
