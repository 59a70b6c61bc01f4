package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"classtrack/backend/config"
)

// Client Redis 客户端封装
// 承担三类职责：本地工作集的键值驱动、同步发件箱队列、Token 黑名单
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 键值 Blob 存储（本地持久化驱动）──

// LoadBlob 读取键对应的二进制内容；键不存在时返回 (nil, nil)
func (c *Client) LoadBlob(ctx context.Context, key string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// SaveBlob 整体覆盖写入键对应的二进制内容（无 TTL，本地集合为全量数组交换）
func (c *Client) SaveBlob(ctx context.Context, key string, data []byte) error {
	return c.rdb.Set(ctx, key, data, 0).Err()
}

// RemoveBlob 删除键；键不存在时为 no-op
func (c *Client) RemoveBlob(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// ── 同步发件箱 ──

const outboxKey = "sync:outbox"

// OutboxEnqueue 将同步任务载荷入队
func (c *Client) OutboxEnqueue(ctx context.Context, payload []byte) error {
	return c.rdb.LPush(ctx, outboxKey, payload).Err()
}

// OutboxDequeue 阻塞弹出一个同步任务载荷；超时无任务返回 (nil, nil)
func (c *Client) OutboxDequeue(ctx context.Context, timeout time.Duration) ([]byte, error) {
	res, err := c.rdb.BRPop(ctx, timeout, outboxKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	// BRPop 返回 [key, value]
	if len(res) != 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// OutboxLen 返回发件箱当前积压任务数
func (c *Client) OutboxLen(ctx context.Context) (int64, error) {
	return c.rdb.LLen(ctx, outboxKey).Result()
}

// ── Token 黑名单 ──

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // Token 已过期，无需加入黑名单
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ── 速率限制 ──

// CheckRateLimit 固定窗口计数器限流。
// 窗口内第一次请求时设置过期时间，计数超过 limit 返回 false。
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
