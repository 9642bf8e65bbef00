package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"PShop/logger"
	"PShop/tools/safe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Options struct {
	RegisterTimeout time.Duration // bounds identity resolution; <=0 means 5s
	SideEffectWait  time.Duration // presence/audit/event calls; <=0 means 2s
	PresenceRefresh time.Duration // presence touch period; <=0 disables
	Presence        Presence
	Audit           AuditLog
	Events          EventPublisher
}

// Server is the broadcast gateway: it bridges socket lifecycle and inbound
// frames to the registry and fans results out to every socket.
type Server struct {
	reg      *Registry
	connMgr  *ConnManager
	verifier CredentialVerifier
	disp     *Dispatcher

	presence Presence
	audit    AuditLog
	events   EventPublisher

	registerTimeout time.Duration
	sideEffectWait  time.Duration

	// rosterMu keeps roster frames queued in snapshot order
	rosterMu sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
}

func NewServer(reg *Registry, connMgr *ConnManager, verifier CredentialVerifier, opts Options) *Server {
	safe.MustNotNil(reg, "registry")
	safe.MustNotNil(connMgr, "conn manager")
	safe.MustNotNil(verifier, "credential verifier")

	s := &Server{
		reg:             reg,
		connMgr:         connMgr,
		verifier:        verifier,
		disp:            NewDispatcher(),
		presence:        opts.Presence,
		audit:           opts.Audit,
		events:          opts.Events,
		registerTimeout: opts.RegisterTimeout,
		sideEffectWait:  opts.SideEffectWait,
		stop:            make(chan struct{}),
	}
	if s.presence == nil {
		s.presence = nopPresence{}
	}
	if s.audit == nil {
		s.audit = nopAudit{}
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.registerTimeout <= 0 {
		s.registerTimeout = 5 * time.Second
	}
	if s.sideEffectWait <= 0 {
		s.sideEffectWait = 2 * time.Second
	}
	if opts.PresenceRefresh > 0 {
		safe.Go("presence-refresh", func() { s.refreshLoop(opts.PresenceRefresh) })
	}
	return s
}

func (s *Server) Disp() *Dispatcher     { return s.disp }
func (s *Server) Registry() *Registry   { return s.reg }
func (s *Server) ConnMgr() *ConnManager { return s.connMgr }
func (s *Server) GwID() string          { return s.connMgr.GwID() }

func (s *Server) sideCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.sideEffectWait)
}

// BroadcastRoster sends the current roster to every socket and the event bus.
func (s *Server) BroadcastRoster() {
	s.rosterMu.Lock()
	ids := s.reg.ListConnIDs()
	frame, err := BuildRosterFrame(ids)
	if err != nil {
		s.rosterMu.Unlock()
		logger.Error("[gateway] build roster frame", zap.Error(err))
		return
	}
	s.connMgr.Broadcast(frame)
	s.rosterMu.Unlock()
	s.publish(SubjectRoster, RosterEvent{Gateway: s.GwID(), IDs: ids, At: time.Now().UnixMilli()})
}

// Broadcast sends an already encoded frame to every socket.
func (s *Server) Broadcast(frame []byte) {
	s.connMgr.Broadcast(frame)
}

func (s *Server) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("[gateway] marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}
	ctx, cancel := s.sideCtx()
	defer cancel()
	if err := s.events.Publish(ctx, subject, data); err != nil {
		logger.Warn("[gateway] publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}

// Publish exposes the bus to frame handlers.
func (s *Server) Publish(subject string, v any) { s.publish(subject, v) }

func (s *Server) recordEvent(kind string, rec ConnRecord, reason string) {
	ctx, cancel := s.sideCtx()
	defer cancel()
	ev := ConnEvent{
		Kind:      kind,
		ConnID:    rec.ConnID,
		UserID:    rec.UserID,
		Device:    string(rec.Device),
		GatewayID: s.GwID(),
		Reason:    reason,
		At:        time.Now(),
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		logger.Warn("[gateway] audit failed", zap.String("kind", kind), zap.String("conn", rec.ConnID), zap.Error(err))
	}
}

func (s *Server) afterRegister(res RegisterResult) {
	ctx, cancel := s.sideCtx()
	defer cancel()

	for _, ev := range res.Evicted {
		if err := s.presence.Offline(ctx, ev.UserID, string(ev.Device), ev.ConnID); err != nil {
			logger.Warn("[gateway] presence offline failed", zap.String("conn", ev.ConnID), zap.Error(err))
		}
		s.recordEvent(ConnEventEvicted, ev, "replaced by "+res.Record.ConnID)
	}
	rec := res.Record
	if err := s.presence.Online(ctx, rec.UserID, string(rec.Device), rec.ConnID, s.GwID()); err != nil {
		logger.Warn("[gateway] presence online failed", zap.String("conn", rec.ConnID), zap.Error(err))
	}
	s.recordEvent(ConnEventRegistered, rec, "")
}

func (s *Server) afterRemove(rec ConnRecord) {
	ctx, cancel := s.sideCtx()
	defer cancel()
	if err := s.presence.Offline(ctx, rec.UserID, string(rec.Device), rec.ConnID); err != nil {
		logger.Warn("[gateway] presence offline failed", zap.String("conn", rec.ConnID), zap.Error(err))
	}
	s.recordEvent(ConnEventRemoved, rec, "disconnect")
}

func (s *Server) refreshLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.RefreshPresence()
		case <-s.stop:
			return
		}
	}
}

// RefreshPresence renews the presence slot of every registered conn.
func (s *Server) RefreshPresence() {
	for _, rec := range s.reg.Records() {
		ctx, cancel := s.sideCtx()
		err := s.presence.Touch(ctx, rec.UserID, string(rec.Device), rec.ConnID)
		cancel()
		if err != nil {
			logger.Warn("[gateway] presence touch failed", zap.String("conn", rec.ConnID), zap.Error(err))
		}
	}
}

// Health reports node id and roster size.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"gateway":     s.GwID(),
		"registered":  s.reg.Len(),
		"connections": s.connMgr.Len(),
	})
}

// Shutdown closes every socket; registry records go with them.
func (s *Server) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.connMgr.Close()
	s.reg.CloseAll("server shutdown")
}
