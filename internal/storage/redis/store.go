package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"voicebox/backend/internal/config"
	"voicebox/backend/internal/storage"
)

// keyPrefix 所有键统一加前缀，避免与同实例上的其他应用冲突。
const keyPrefix = "voicebox"

// Store 基于 Redis 的凭证存储，生产部署使用。
type Store struct {
	rdb *goredis.Client
	log *zap.Logger
}

// NewStore 创建 Redis 存储并验证连通性。
func NewStore(cfg *config.RedisConfig, log *zap.Logger) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("connected to Redis",
		zap.String("address", cfg.Address),
		zap.Int("db", cfg.DB),
	)

	return &Store{rdb: rdb, log: log}, nil
}

// fullKey 拼接带前缀的 Redis 键。
func fullKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, namespace, key)
}

// Get 读取键值。
func (s *Store) Get(ctx context.Context, namespace, key string) (string, error) {
	value, err := s.rdb.Get(ctx, fullKey(namespace, key)).Result()
	if err == goredis.Nil {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Put 写入键值，幂等覆盖，不设过期时间。
func (s *Store) Put(ctx context.Context, namespace, key, value string) error {
	return s.rdb.Set(ctx, fullKey(namespace, key), value, 0).Err()
}

// Delete 删除键，键不存在时返回 ErrNotFound。
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	deleted, err := s.rdb.Del(ctx, fullKey(namespace, key)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteSubtree 删除命名空间下的全部键。
//
// 使用 SCAN 遍历而非 KEYS，避免在大实例上阻塞服务端。
func (s *Store) DeleteSubtree(ctx context.Context, namespace string) error {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, namespace)

	var cursor uint64
	deleted := 0
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if deleted == 0 {
		return storage.ErrNotFound
	}

	s.log.Debug("sandbox subtree wiped",
		zap.String("namespace", namespace),
		zap.Int("keys", deleted),
	)
	return nil
}

// Health 健康检查。
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接。
func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		s.log.Error("failed to close Redis connection", zap.Error(err))
		return err
	}
	s.log.Info("Redis connection closed")
	return nil
}
