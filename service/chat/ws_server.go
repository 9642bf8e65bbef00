package chat

import (
	"context"
	"net"
	"net/http"
	"strings"

	"PShop/logger"
	"PShop/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgraded = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(r *http.Request) bool { return true }}

const (
	HeaderAuthentication = "Authentication"
	HeaderDevice         = "X-Client-Device"
)

// HandleWS ===== WebSocket 处理 =====
//
// upgrade -> verify credential -> classify device -> register -> roster
// broadcast -> read loop -> remove -> roster broadcast.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgraded.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败
		logger.Info("[WS] upgrade failed", zap.Error(err))
		return
	}
	wc := s.connMgr.Add(ws)

	rec, ok := s.admit(c.Request, wc)
	if !ok {
		s.connMgr.Remove(wc.SnowID)
		<-wc.Done()
		return
	}
	logger.Info("[WS] registered",
		zap.String("snowID", rec.ConnID),
		zap.String("user", rec.UserID),
		zap.String("device", string(rec.Device)))

	s.readLoop(wc)

	// ---- 退出阶段 ----
	s.connMgr.Remove(wc.SnowID)
	if removed, ok := s.reg.Remove(wc.SnowID); ok {
		s.afterRemove(removed)
		s.BroadcastRoster()
	}
	_ = wc.closeWith(websocket.CloseNormalClosure, "")
	<-wc.Done()
}

// admit runs the handshake phase. A false return means wc has already been
// asked to terminate.
func (s *Server) admit(r *http.Request, wc *WsConn) (ConnRecord, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), s.registerTimeout)
	defer cancel()

	token := ExtractToken(r)
	userID, err := s.verifier.VerifyCredential(ctx, token)
	if err != nil {
		logger.Info("[WS] credential rejected", zap.String("snowID", wc.SnowID), zap.Error(err))
		s.reject(wc, "", "", "invalid credential", err)
		return ConnRecord{}, false
	}

	device := Classify(DeviceSignature(r))
	res, err := s.reg.Register(ctx, wc, userID, device)
	if err != nil {
		logger.Info("[WS] register failed",
			zap.String("snowID", wc.SnowID),
			zap.String("user", userID),
			zap.Error(err))
		s.reject(wc, userID, device, "registration failed", err)
		return ConnRecord{}, false
	}

	wc.markRegistered(userID, device)
	s.afterRegister(res)
	s.BroadcastRoster()
	return res.Record, true
}

func (s *Server) reject(wc *WsConn, userID string, device DeviceClass, reason string, cause error) {
	if frame, err := BuildErrorFrame(cause); err == nil {
		_ = wc.Enqueue(frame)
	}
	_ = wc.Terminate(reason)
	if ce, ok := errs.AsCode(cause); ok {
		reason += ": " + ce.EMsg()
	}
	s.recordEvent(ConnEventRejected, ConnRecord{ConnID: wc.SnowID, UserID: userID, Device: device}, reason)
}

// ---- 读循环：只读，不写；出错即退出（写协程收尾） ----
func (s *Server) readLoop(wc *WsConn) {
	ctx := &Context{S: s}
	for {
		mt, data, rerr := wc.conn.ReadMessage()
		if rerr != nil {
			logReadErr(wc.SnowID, rerr)
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		frame, perr := ParseFrameJSON(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Info("[WS] bad frame", zap.String("snowID", wc.SnowID), zap.ByteString("sample", sample), zap.Error(perr))
			s.replyError(wc, perr)
			continue
		}

		if err := s.disp.Dispatch(ctx, frame, wc); err != nil {
			logger.Info("[WS] handle frame failed",
				zap.String("snowID", wc.SnowID),
				zap.String("event", frame.Event),
				zap.Error(err))
			s.replyError(wc, err)
		}
	}
}

func (s *Server) replyError(wc *WsConn, cause error) {
	frame, err := BuildErrorFrame(cause)
	if err != nil {
		return
	}
	if err := s.connMgr.SendOne(wc.SnowID, frame); err != nil {
		logger.Debug("[WS] reply error dropped", zap.String("snowID", wc.SnowID), zap.Error(err))
	}
}

func logReadErr(snowID string, err error) {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		logger.Info("[WS] peer closed", zap.String("snowID", snowID), zap.Error(err))
	} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
		logger.Info("[WS] read timeout", zap.String("snowID", snowID), zap.Error(err))
	} else {
		logger.Debug("[WS] read err", zap.String("snowID", snowID), zap.Error(err))
	}
}

// ExtractToken looks at the Authentication header, then a bearer
// Authorization header, then the token query parameter.
func ExtractToken(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(HeaderAuthentication)); v != "" {
		return v
	}
	if v := r.Header.Get("Authorization"); len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// DeviceSignature picks the string the classifier looks at.
func DeviceSignature(r *http.Request) string {
	if v := r.Header.Get(HeaderDevice); v != "" {
		return v
	}
	if v := r.URL.Query().Get("device"); v != "" {
		return v
	}
	return r.UserAgent()
}
