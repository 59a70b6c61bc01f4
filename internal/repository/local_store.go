package repository

import (
	"context"

	pkgredis "classtrack/backend/pkg/redis"
)

// LocalStore 本地持久化驱动 — 不透明的键值 Blob 存储
// 核心只依赖 load/save/remove 三个操作；键不存在时 Load 返回 (nil, nil)
type LocalStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

type redisLocalStore struct {
	client *pkgredis.Client
}

func (s *redisLocalStore) Load(ctx context.Context, key string) ([]byte, error) {
	return s.client.LoadBlob(ctx, key)
}

func (s *redisLocalStore) Save(ctx context.Context, key string, data []byte) error {
	return s.client.SaveBlob(ctx, key, data)
}

func (s *redisLocalStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveBlob(ctx, key)
}
