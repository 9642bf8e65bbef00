package kafka

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"PShop/tools/errs"

	"github.com/Shopify/sarama"
)

func TestTopicMapping(t *testing.T) {
	c := DefaultConfig()
	topic := c.TopicFor("chat.roster")
	if topic != "pshop.chat.roster" {
		t.Fatalf("topic = %s", topic)
	}
	if s := c.SubjectOf(topic); s != "chat.roster" {
		t.Fatalf("subject = %s", s)
	}
}

func TestBuildBaseConfig(t *testing.T) {
	c := DefaultConfig()
	c.ProducerCompression = "LZ4"
	c.ConsumerInitialOffset = "oldest"
	c.ProducerRetries = 0

	sc := BuildBaseConfig(c)
	if sc.Producer.Compression != sarama.CompressionLZ4 {
		t.Fatalf("compression = %v", sc.Producer.Compression)
	}
	if sc.Consumer.Offsets.Initial != sarama.OffsetOldest {
		t.Fatalf("offset = %d", sc.Consumer.Offsets.Initial)
	}
	if sc.Producer.Retry.Max != 1 {
		t.Fatalf("retries = %d", sc.Producer.Retry.Max)
	}
	if err := sc.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter()
	var got string
	r.Handle("chat.message", func(_ context.Context, subject string, _, value []byte) error {
		got = subject + ":" + string(value)
		return nil
	})
	h := &groupHandler{cfg: DefaultConfig(), router: r}
	h.dispatch(context.Background(), &sarama.ConsumerMessage{Topic: "pshop.chat.message", Value: []byte("hi")})
	if got != "chat.message:hi" {
		t.Fatalf("got = %q", got)
	}

	if _, err := r.Get("nope"); !errs.ErrArgs.Is(err) {
		t.Fatalf("missing handler: %v", err)
	}
}

func TestTopicExistsDetection(t *testing.T) {
	if !isTopicExists(&sarama.TopicError{Err: sarama.ErrTopicAlreadyExists}) {
		t.Fatal("topic error not detected")
	}
	if isTopicExists(errors.New("other")) {
		t.Fatal("false positive")
	}
}

// Needs a broker: PSHOP_TEST_KAFKA=127.0.0.1:9092 go test ./service/kafka
func TestBusPublish(t *testing.T) {
	brokers := os.Getenv("PSHOP_TEST_KAFKA")
	if brokers == "" {
		t.Skip("PSHOP_TEST_KAFKA not set")
	}
	c := DefaultConfig()
	c.Brokers = strings.Split(brokers, ",")
	bus, err := NewBus(c, "gw-test")
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()
	if err := bus.EnsureTopics("chat.roster"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bus.Publish(ctx, "chat.roster", []byte(`{"ids":[]}`)); err != nil {
		t.Fatal(err)
	}
}
