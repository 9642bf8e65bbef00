package chat

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"PShop/logger"
	"PShop/tools/errs"
	"PShop/tools/safe"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ===== 配置 =====

type ManagerConf struct {
	SendQueue    int           // per-connection outbound queue
	WriteWait    time.Duration // deadline for a single write
	PongWait     time.Duration // read deadline, renewed on every pong
	PingInterval time.Duration // must be shorter than PongWait
	MaxMessage   int64         // read limit in bytes
}

func (c *ManagerConf) norm() {
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.MaxMessage <= 0 {
		c.MaxMessage = 64 << 10
	}
}

// ===== 数据结构 =====

// WsConn is one live websocket. It implements Handle for the registry.
type WsConn struct {
	SnowID    string
	UserID    string
	Device    DeviceClass
	Remote    net.Addr
	CreatedAt time.Time

	conn    *websocket.Conn
	send    chan []byte
	closing chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	code      int
	reason    string

	registered atomic.Bool
}

func (c *WsConn) ID() string { return c.SnowID }

// Terminate asks the write loop to send a close frame and drop the socket.
func (c *WsConn) Terminate(reason string) error {
	return c.closeWith(websocket.ClosePolicyViolation, reason)
}

func (c *WsConn) closeWith(code int, reason string) error {
	closed := false
	c.closeOnce.Do(func() {
		c.code, c.reason = code, reason
		close(c.closing)
		closed = true
	})
	if !closed {
		return errs.New("conn already closing", "conn", c.SnowID)
	}
	return nil
}

// Enqueue never blocks; false means the connection is closing or its queue is full.
func (c *WsConn) Enqueue(payload []byte) bool {
	select {
	case <-c.closing:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Registered reports whether the socket has joined the roster; only those
// receive broadcasts.
func (c *WsConn) Registered() bool { return c.registered.Load() }

func (c *WsConn) markRegistered(userID string, device DeviceClass) {
	c.UserID, c.Device = userID, device
	c.registered.Store(true)
}

// Done is closed once the socket has been closed by the write loop.
func (c *WsConn) Done() <-chan struct{} { return c.done }

func (c *WsConn) writeLoop(conf ManagerConf) {
	ticker := time.NewTicker(conf.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(conf.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug("[WS] write payload err", zap.String("snowID", c.SnowID), zap.Error(err))
				_ = c.closeWith(websocket.CloseAbnormalClosure, "write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(conf.WriteWait)); err != nil {
				logger.Debug("[WS] ping err", zap.String("snowID", c.SnowID), zap.Error(err))
				_ = c.closeWith(websocket.CloseAbnormalClosure, "ping failed")
				return
			}

		case <-c.closing:
			c.flush(conf)
			msg := websocket.FormatCloseMessage(c.code, c.reason)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(conf.WriteWait))
			return
		}
	}
}

// flush drains what is already queued so a terminated client still sees it.
func (c *WsConn) flush(conf ManagerConf) {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(conf.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}

// ConnManager owns every accepted socket, registered or not.
type ConnManager struct {
	mu     sync.RWMutex
	bySnow map[string]*WsConn

	conf   ManagerConf
	gwID   string
	idGen  func() string
	fanout *Fanout
}

func NewConnManager(gwID string, idGen func() string) *ConnManager {
	return NewConnManagerWithConf(ManagerConf{}, gwID, idGen)
}

func NewConnManagerWithConf(conf ManagerConf, gwID string, idGen func() string) *ConnManager {
	conf.norm()
	safe.MustNotNil(idGen, "idGen")
	m := &ConnManager{
		bySnow: make(map[string]*WsConn),
		conf:   conf,
		gwID:   gwID,
		idGen:  idGen,
	}
	m.fanout = NewFanout(1024, m.dropSlow)
	return m
}

func (m *ConnManager) GwID() string { return m.gwID }

func (m *ConnManager) Conf() ManagerConf { return m.conf }

// Add wraps ws, starts its write loop and tracks it under a fresh snow id.
func (m *ConnManager) Add(ws *websocket.Conn) *WsConn {
	c := &WsConn{
		SnowID:    m.idGen(),
		Remote:    ws.RemoteAddr(),
		CreatedAt: time.Now(),
		conn:      ws,
		send:      make(chan []byte, m.conf.SendQueue),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
	}

	ws.SetReadLimit(m.conf.MaxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(m.conf.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(m.conf.PongWait))
	})

	m.mu.Lock()
	m.bySnow[c.SnowID] = c
	m.mu.Unlock()

	safe.Go("ws-write-"+c.SnowID, func() { c.writeLoop(m.conf) })
	return c
}

// Remove forgets snowID; closing the socket is the caller's business.
func (m *ConnManager) Remove(snowID string) {
	m.mu.Lock()
	delete(m.bySnow, snowID)
	m.mu.Unlock()
}

func (m *ConnManager) Get(snowID string) (*WsConn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.bySnow[snowID]
	return c, ok
}

func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySnow)
}

// SendOne enqueues for a single connection.
func (m *ConnManager) SendOne(snowID string, data []byte) error {
	c, ok := m.Get(snowID)
	if !ok {
		return errs.ErrConnNotFound.WrapMsg("", "conn", snowID)
	}
	if !c.Enqueue(data) {
		return errs.New("send queue unavailable", "conn", snowID)
	}
	return nil
}

// Broadcast hands data to the fanout for every registered socket.
func (m *ConnManager) Broadcast(data []byte) {
	m.mu.RLock()
	conns := make([]*WsConn, 0, len(m.bySnow))
	for _, c := range m.bySnow {
		if c.Registered() {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()
	m.fanout.Broadcast(conns, data)
}

func (m *ConnManager) dropSlow(c *WsConn) {
	logger.Warn("[WS] slow consumer dropped", zap.String("snowID", c.SnowID), zap.String("user", c.UserID))
	_ = c.closeWith(websocket.CloseTryAgainLater, "slow consumer")
}

// Close terminates every socket and stops the fanout.
func (m *ConnManager) Close() {
	m.mu.Lock()
	conns := m.bySnow
	m.bySnow = make(map[string]*WsConn)
	m.mu.Unlock()

	for _, c := range conns {
		_ = c.closeWith(websocket.CloseGoingAway, "server shutdown")
	}
	m.fanout.Stop()
}
