package storage

import (
	"context"
	"strings"
	"time"

	"PShop/tools/errs"

	"github.com/redis/go-redis/v9"
)

// ===== 配置 =====
type PresenceConfig struct {
	KeyPrefix string        // default "im:presence:"
	TTL       time.Duration // whole-hash TTL, renewed on Online and Touch; <=0 means 24h
}

// ===== Lua 脚本 =====

// 写入在线设备并续期
// KEYS[1] = presence hash (im:presence:<user>)
// ARGV[1] = device
// ARGV[2] = "<connId>@<gatewayId>"
// ARGV[3] = ttlSeconds
// 返回：被覆盖的旧值（不存在则空串）
const luaOnline = `
local old = redis.call("HGET", KEYS[1], ARGV[1])
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
redis.call("EXPIRE", KEYS[1], tonumber(ARGV[3]))
if old then
  return old
end
return ""
`

// 仅当字段仍指向该连接时删除，避免旧连接的下线覆盖新连接
// KEYS[1] = presence hash
// ARGV[1] = device
// ARGV[2] = connId
// 返回：1=删除；0=字段不存在或已被新连接占用（幂等）
const luaOffline = `
local cur = redis.call("HGET", KEYS[1], ARGV[1])
if not cur then
  return 0
end
local at = string.find(cur, "@", 1, true)
local id = cur
if at then
  id = string.sub(cur, 1, at - 1)
end
if id ~= ARGV[2] then
  return 0
end
redis.call("HDEL", KEYS[1], ARGV[1])
return 1
`

// 连接仍持有该设备时续期，长连接不会因 TTL 掉线
// KEYS[1] = presence hash
// ARGV[1] = device
// ARGV[2] = connId
// ARGV[3] = ttlSeconds
// 返回：1=续期；0=字段已被占用或不存在
const luaTouch = `
local cur = redis.call("HGET", KEYS[1], ARGV[1])
if not cur then
  return 0
end
local at = string.find(cur, "@", 1, true)
local id = cur
if at then
  id = string.sub(cur, 1, at - 1)
end
if id ~= ARGV[2] then
  return 0
end
redis.call("EXPIRE", KEYS[1], tonumber(ARGV[3]))
return 1
`

// PresenceEntry is one device slot of a user.
type PresenceEntry struct {
	Device    string `json:"device"`
	ConnID    string `json:"connId"`
	GatewayID string `json:"gatewayId"`
}

// PresenceStore mirrors the gateway registry into a redis hash per user:
// field = device class, value = connId@gatewayId.
type PresenceStore struct {
	rdb     redis.Cmdable
	conf    PresenceConfig
	online  *redis.Script
	offline *redis.Script
	touch   *redis.Script
}

func NewPresenceStore(rdb redis.Cmdable, conf PresenceConfig) *PresenceStore {
	if conf.KeyPrefix == "" {
		conf.KeyPrefix = "im:presence:"
	}
	if conf.TTL <= 0 {
		conf.TTL = 24 * time.Hour
	}
	return &PresenceStore{
		rdb:     rdb,
		conf:    conf,
		online:  redis.NewScript(luaOnline),
		offline: redis.NewScript(luaOffline),
		touch:   redis.NewScript(luaTouch),
	}
}

func (p *PresenceStore) key(userID string) string { return p.conf.KeyPrefix + userID }

func encodeSlot(connID, gatewayID string) string { return connID + "@" + gatewayID }

func decodeSlot(device, v string) PresenceEntry {
	e := PresenceEntry{Device: device, ConnID: v}
	if i := strings.IndexByte(v, '@'); i >= 0 {
		e.ConnID, e.GatewayID = v[:i], v[i+1:]
	}
	return e
}

func (p *PresenceStore) Online(ctx context.Context, userID, device, connID, gatewayID string) error {
	if userID == "" || device == "" || connID == "" {
		return errs.ErrArgs.WrapMsg("presence online", "user", userID, "device", device, "conn", connID)
	}
	ttl := int64(p.conf.TTL / time.Second)
	if err := p.online.Run(ctx, p.rdb, []string{p.key(userID)}, device, encodeSlot(connID, gatewayID), ttl).Err(); err != nil {
		return errs.WrapMsg(err, "presence online", "user", userID, "device", device)
	}
	return nil
}

func (p *PresenceStore) Offline(ctx context.Context, userID, device, connID string) error {
	_, err := p.offline.Run(ctx, p.rdb, []string{p.key(userID)}, device, connID).Int()
	if err != nil {
		return errs.WrapMsg(err, "presence offline", "user", userID, "device", device)
	}
	return nil
}

// Touch renews the hash TTL while connID still owns the device slot.
// A slot taken over by a newer conn is left alone.
func (p *PresenceStore) Touch(ctx context.Context, userID, device, connID string) error {
	ttl := int64(p.conf.TTL / time.Second)
	if err := p.touch.Run(ctx, p.rdb, []string{p.key(userID)}, device, connID, ttl).Err(); err != nil {
		return errs.WrapMsg(err, "presence touch", "user", userID, "device", device)
	}
	return nil
}

// Lookup returns every device slot currently held by userID.
func (p *PresenceStore) Lookup(ctx context.Context, userID string) ([]PresenceEntry, error) {
	m, err := p.rdb.HGetAll(ctx, p.key(userID)).Result()
	if err != nil {
		return nil, errs.WrapMsg(err, "presence lookup", "user", userID)
	}
	out := make([]PresenceEntry, 0, len(m))
	for device, v := range m {
		out = append(out, decodeSlot(device, v))
	}
	return out, nil
}

// IsOnline reports whether any device of userID is present.
func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := p.rdb.HLen(ctx, p.key(userID)).Result()
	if err != nil {
		return false, errs.WrapMsg(err, "presence hlen", "user", userID)
	}
	return n > 0, nil
}
