// Package redis 基于 Redis 的刷新令牌黑名单，多个 api-server 实例共享
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"library-admin/internal/shared/cache"
)

// Blacklist 每个已注销令牌一个键，键过期即令牌过期
type Blacklist struct {
	client *redis.Client
	prefix string
}

// Dial 解析 URL 并确认 Redis 可达
func Dial(ctx context.Context, redisURL string) (*Blacklist, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return &Blacklist{client: client, prefix: cache.KeyTokenBlacklist}, nil
}

// Addr Redis 地址，仅用于日志
func (b *Blacklist) Addr() string {
	return b.client.Options().Addr
}

func (b *Blacklist) key(jti string) string {
	return b.prefix + jti
}

// Add 写入黑名单，TTL 与令牌剩余有效期一致
func (b *Blacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.key(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// IsBlacklisted 查询 jti 是否已注销
func (b *Blacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check token blacklist: %w", err)
	}
	return n > 0, nil
}

// Close 关闭连接
func (b *Blacklist) Close() error {
	return b.client.Close()
}

var _ cache.TokenBlacklist = (*Blacklist)(nil)
