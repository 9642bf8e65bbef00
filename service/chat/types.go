package chat

import (
	"context"
	"time"
)

// CredentialVerifier turns a bearer token from the handshake into a claimed user id.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, token string) (userID string, err error)
}

// Presence mirrors the registry into a shared store so other nodes can see
// which gateway holds a user's device.
type Presence interface {
	Online(ctx context.Context, userID, device, connID, gatewayID string) error
	Offline(ctx context.Context, userID, device, connID string) error
	// Touch keeps a long-lived conn's slot from expiring.
	Touch(ctx context.Context, userID, device, connID string) error
}

const (
	ConnEventRegistered = "registered"
	ConnEventRemoved    = "removed"
	ConnEventEvicted    = "evicted"
	ConnEventRejected   = "rejected"
)

type ConnEvent struct {
	Kind      string
	ConnID    string
	UserID    string
	Device    string
	GatewayID string
	Reason    string
	At        time.Time
}

type AuditLog interface {
	Record(ctx context.Context, ev ConnEvent) error
}

const (
	SubjectRoster  = "chat.roster"
	SubjectMessage = "chat.message"
)

// RosterEvent is published on SubjectRoster after every roster change.
type RosterEvent struct {
	Gateway string   `json:"gateway"`
	IDs     []string `json:"ids"`
	At      int64    `json:"at"`
}

// ChatEvent is published on SubjectMessage for every relayed chat line.
type ChatEvent struct {
	ConnID   string `json:"connId"`
	UserID   string `json:"userId"`
	FullName string `json:"fullName"`
	Message  string `json:"message"`
	Gateway  string `json:"gateway"`
	At       int64  `json:"at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

type Handler interface {
	Event() string
	Handle(*Context, *Frame, *WsConn) error
}

type Context struct {
	S *Server
}

type nopPresence struct{}

func (nopPresence) Online(context.Context, string, string, string, string) error { return nil }
func (nopPresence) Offline(context.Context, string, string, string) error        { return nil }
func (nopPresence) Touch(context.Context, string, string, string) error          { return nil }

type nopAudit struct{}

func (nopAudit) Record(context.Context, ConnEvent) error { return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, []byte) error { return nil }
