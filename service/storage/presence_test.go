package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	predis "PShop/service/storage/redis"
)

func TestDecodeSlot(t *testing.T) {
	e := decodeSlot("mobile", "c9@gw-1")
	if e.Device != "mobile" || e.ConnID != "c9" || e.GatewayID != "gw-1" {
		t.Fatalf("decode = %+v", e)
	}
	e = decodeSlot("desktop", "bare")
	if e.ConnID != "bare" || e.GatewayID != "" {
		t.Fatalf("decode bare = %+v", e)
	}
}

// Needs a live redis: PSHOP_TEST_REDIS=127.0.0.1:6379 go test ./service/storage
func TestPresenceAgainstRedis(t *testing.T) {
	addr := os.Getenv("PSHOP_TEST_REDIS")
	if addr == "" {
		t.Skip("PSHOP_TEST_REDIS not set")
	}
	rdb, err := predis.NewClient(predis.Config{Addr: addr})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rdb.Close()

	ctx := context.Background()
	p := NewPresenceStore(rdb, PresenceConfig{KeyPrefix: fmt.Sprintf("test:presence:%d:", time.Now().UnixNano()), TTL: time.Minute})
	defer rdb.Del(ctx, p.key("u1"))

	if err := p.Online(ctx, "u1", "desktop", "c1", "gw"); err != nil {
		t.Fatal(err)
	}
	// c2 replaces c1 on the same device; c1's late offline must not clear it
	if err := p.Online(ctx, "u1", "desktop", "c2", "gw"); err != nil {
		t.Fatal(err)
	}
	if err := p.Offline(ctx, "u1", "desktop", "c1"); err != nil {
		t.Fatal(err)
	}
	// a touch from the replaced conn must not renew the hash
	if err := p.rdb.Expire(ctx, p.key("u1"), 5*time.Second).Err(); err != nil {
		t.Fatal(err)
	}
	if err := p.Touch(ctx, "u1", "desktop", "c1"); err != nil {
		t.Fatal(err)
	}
	if ttl := p.rdb.TTL(ctx, p.key("u1")).Val(); ttl > 5*time.Second {
		t.Fatalf("stale touch renewed ttl to %v", ttl)
	}
	if err := p.Touch(ctx, "u1", "desktop", "c2"); err != nil {
		t.Fatal(err)
	}
	if ttl := p.rdb.TTL(ctx, p.key("u1")).Val(); ttl <= 5*time.Second {
		t.Fatalf("touch left ttl at %v", ttl)
	}

	entries, err := p.Lookup(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ConnID != "c2" {
		t.Fatalf("entries = %+v", entries)
	}

	if err := p.Offline(ctx, "u1", "desktop", "c2"); err != nil {
		t.Fatal(err)
	}
	online, err := p.IsOnline(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if online {
		t.Fatal("still online after last offline")
	}
}
