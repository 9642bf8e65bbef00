package mgo

import (
	"context"
	"os"
	"testing"
	"time"

	"PShop/data/database"
	"PShop/data/database/mgo/mongoutil"
	"PShop/service/chat"
)

var (
	_ database.Table = (*ConnAudit)(nil)
	_ database.Table = (*ChatArchive)(nil)
	_ chat.AuditLog  = (*ConnAudit)(nil)
)

func TestNotReadyFailsFast(t *testing.T) {
	m := NewManager()
	audit := NewConnAudit(m)
	if err := audit.Record(context.Background(), chat.ConnEvent{Kind: chat.ConnEventRegistered}); err == nil {
		t.Fatal("record before ready should fail")
	}
	if err := NewChatArchive(m).Save(context.Background(), []byte(`{"connId":"c1"}`)); err == nil {
		t.Fatal("save before ready should fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.WaitReady(ctx); err == nil {
		t.Fatal("WaitReady should time out")
	}
}

func TestArchiveRejectsGarbage(t *testing.T) {
	if err := NewChatArchive(NewManager()).Save(context.Background(), []byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
}

// Needs mongo: PSHOP_TEST_MONGO=mongodb://127.0.0.1:27017 go test ./service/mgo
func TestAuditAgainstMongo(t *testing.T) {
	uri := os.Getenv("PSHOP_TEST_MONGO")
	if uri == "" {
		t.Skip("PSHOP_TEST_MONGO not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	m := NewManager()
	m.Start(ctx, &mongoutil.Config{Uri: uri, Database: "pshop_test"})
	if err := m.WaitReady(ctx); err != nil {
		t.Fatal(err)
	}
	audit := NewConnAudit(m)
	if err := audit.EnsureIndexes(ctx, 0); err != nil {
		t.Fatal(err)
	}
	user := "u-" + time.Now().Format("150405.000000")
	if err := audit.Record(ctx, chat.ConnEvent{Kind: chat.ConnEventRegistered, ConnID: "c1", UserID: user, At: time.Now()}); err != nil {
		t.Fatal(err)
	}
	hist, err := audit.History(ctx, user, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || hist[0].ConnID != "c1" {
		t.Fatalf("history = %+v", hist)
	}
}
