package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"PShop/data/database/mgo/mongoutil"
	"PShop/logger"
	"PShop/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MongoManager keeps one client alive: it connects with backoff, pings on a
// ticker and reconnects after repeated failures.
type MongoManager struct {
	mu        sync.RWMutex
	client    *mongoutil.Client
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once

	lastErr atomic.Value // error
}

func NewManager() *MongoManager {
	return &MongoManager{readyCh: make(chan struct{})}
}

var globalMgr = NewManager()

func Manager() *MongoManager { return globalMgr }

// StartAsync: 一直运行到 ctx.Done()；首次连上时 close readyCh，后续掉线会自动重连
func StartAsync(ctx context.Context, cfg *mongoutil.Config) { globalMgr.Start(ctx, cfg) }

func (m *MongoManager) Start(ctx context.Context, cfg *mongoutil.Config) {
	go func() {
		for {
			if !m.connect(ctx, cfg) {
				return
			}
			m.watch(ctx) // 健康循环结束后回到外层进行重连
			if ctx.Err() != nil {
				return
			}
		}
	}()
}

// connect retries with exponential backoff; false means ctx ended first.
func (m *MongoManager) connect(ctx context.Context, cfg *mongoutil.Config) bool {
	const (
		baseBackoff = 200 * time.Millisecond
		maxBackoff  = 5 * time.Second
	)
	for attempt := 0; ; {
		if ctx.Err() != nil {
			return false
		}
		cli, err := mongoutil.NewMongoDB(ctx, cfg)
		if err == nil {
			m.mu.Lock()
			m.client = cli
			m.mu.Unlock()
			m.readyOnce.Do(func() { close(m.readyCh) })
			logger.Info("[mongo] connected", zap.String("database", cfg.Database))
			return true
		}
		m.lastErr.Store(err)
		logger.Warn("[mongo] connect failed", zap.Int("attempt", attempt), zap.Error(err))

		// 退避 + 抖动
		backoff := baseBackoff << attempt
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(rand.Int63n(int64(backoff / 5)))
		timer := time.NewTimer(backoff - jitter/2)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if attempt < 6 {
			attempt++
		}
	}
}

func (m *MongoManager) watch(ctx context.Context) {
	const (
		healthEvery = 10 * time.Second
		failThresh  = 3
	)
	ticker := time.NewTicker(healthEvery)
	defer ticker.Stop()
	fail := 0
	for {
		select {
		case <-ctx.Done():
			m.drop()
			return
		case <-ticker.C:
			m.mu.RLock()
			c := m.client
			m.mu.RUnlock()
			if c == nil {
				return
			}
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.Ping(pctx)
			cancel()
			if err == nil {
				fail = 0
				continue
			}
			fail++
			m.lastErr.Store(err)
			if fail >= failThresh {
				logger.Warn("[mongo] ping failed, reconnecting", zap.Error(err))
				m.drop()
				return
			}
		}
	}
}

func (m *MongoManager) drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Disconnect(context.Background())
		m.client = nil
	}
}

// Ready: 首次连接成功时会 close
func (m *MongoManager) Ready() <-chan struct{} { return m.readyCh }

// Err: 最近一次错误
func (m *MongoManager) Err() error {
	if v := m.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (m *MongoManager) TryGetDB() (*mongo.Database, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, false
	}
	return m.client.GetDB(), true
}

func (m *MongoManager) WaitReady(ctx context.Context) error {
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		return errs.WrapMsg(ctx.Err(), "mongo not ready", "lastErr", m.Err())
	}
}
