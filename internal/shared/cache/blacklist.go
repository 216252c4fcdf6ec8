// Package cache 缓存层抽象接口
//
// 提供临时状态的存取能力：当前只有刷新令牌黑名单，
// 配置了 Redis 时由 cache/redis 实现，否则使用进程内实现。
package cache

import (
	"context"
	"sync"
	"time"
)

// KeyTokenBlacklist 黑名单键前缀，后接令牌 jti
const KeyTokenBlacklist = "library:token:blacklist:"

// ============================================================================
// 缓存接口定义
// ============================================================================

// TokenBlacklist 已注销的刷新令牌
//
// 条目在 expiresAt 之后自动失效，令牌本身此时也已过期。
type TokenBlacklist interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	Close() error
}

// ============================================================================
// MemoryBlacklist - 进程内实现（单实例部署与测试）
// ============================================================================

// MemoryBlacklist 基于 map 的黑名单，读取时顺带清理过期条目
type MemoryBlacklist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryBlacklist 创建进程内黑名单
func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{entries: make(map[string]time.Time), now: time.Now}
}

func (b *MemoryBlacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !expiresAt.After(b.now()) {
		return nil
	}
	b.entries[jti] = expiresAt
	return nil
}

func (b *MemoryBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for k, exp := range b.entries {
		if !exp.After(now) {
			delete(b.entries, k)
		}
	}
	_, ok := b.entries[jti]
	return ok, nil
}

// Close 关闭缓存
func (b *MemoryBlacklist) Close() error {
	return nil
}

// 确保 MemoryBlacklist 实现了 TokenBlacklist 接口
var _ TokenBlacklist = (*MemoryBlacklist)(nil)
