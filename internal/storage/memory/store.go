package memory

import (
	"context"
	"sync"

	"voicebox/backend/internal/storage"
)

// Store 使用内存保存沙箱键值数据，主要用于开发验证与测试。
type Store struct {
	mu    sync.RWMutex
	trees map[string]map[string]string // namespace -> key -> value
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		trees: make(map[string]map[string]string),
	}
}

// Get 读取键值。
func (s *Store) Get(_ context.Context, namespace, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.trees[namespace]
	if !ok {
		return "", storage.ErrNotFound
	}
	value, ok := tree[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

// Put 写入键值，命名空间在首次写入时隐式创建。
func (s *Store) Put(_ context.Context, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, ok := s.trees[namespace]
	if !ok {
		tree = make(map[string]string)
		s.trees[namespace] = tree
	}
	tree[key] = value
	return nil
}

// Delete 删除键，键不存在时返回 ErrNotFound。
func (s *Store) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree, ok := s.trees[namespace]
	if !ok {
		return storage.ErrNotFound
	}
	if _, ok := tree[key]; !ok {
		return storage.ErrNotFound
	}
	delete(tree, key)
	return nil
}

// DeleteSubtree 删除命名空间下的全部键。
func (s *Store) DeleteSubtree(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trees[namespace]; !ok {
		return storage.ErrNotFound
	}
	delete(s.trees, namespace)
	return nil
}

// Health 健康检查，内存存储总是健康的。
func (s *Store) Health() error {
	return nil
}

// Close 关闭存储连接，内存存储无需操作。
func (s *Store) Close() error {
	return nil
}
