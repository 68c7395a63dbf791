package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound 键不存在
	ErrNotFound = errors.New("key not found")
)

// KV 定义凭证存储的键值操作。
//
// 命名空间对应一个沙箱（Asterisk 的 database tree），键在命名空间内
// 按信箱划分。Put 为幂等覆盖；Delete 对不存在的键返回 ErrNotFound，
// 调用方按契约容忍该错误。
type KV interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Put(ctx context.Context, namespace, key, value string) error
	Delete(ctx context.Context, namespace, key string) error
	// DeleteSubtree 删除命名空间下的全部键，仅沙箱重置路径使用。
	DeleteSubtree(ctx context.Context, namespace string) error

	// 工具方法
	Health() error
	Close() error
}
