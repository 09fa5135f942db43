package xlru

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// maxSize 缓存最大条目数上限。
const maxSize = 1 << 24 // 16,777,216

// Cache 是并发安全的泛型 LRU 缓存。
// 必须通过 [New] 创建，零值不可用。
type Cache[K comparable, V any] struct {
	lru *lru.Cache[K, V]

	// computeMu 串行化 GetOrCompute 的未命中路径，
	// 避免相同键的计算函数被并发重复执行。
	computeMu sync.Mutex
}

// New 创建新的 LRU 缓存。
// 如果 size <= 0 返回 ErrInvalidSize，超过 16,777,216 返回 ErrSizeExceedsMax。
func New[K comparable, V any](size int) (*Cache[K, V], error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if size > maxSize {
		return nil, ErrSizeExceedsMax
	}

	inner, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{lru: inner}, nil
}

// Get 获取缓存值。键不存在时返回零值和 false。
func (c *Cache[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

// Set 设置缓存值。返回是否触发了 LRU 淘汰。
func (c *Cache[K, V]) Set(key K, value V) bool {
	return c.lru.Add(key, value)
}

// GetOrCompute 获取缓存值；未命中时调用 compute 生成并写入。
//
// 设计决策: 未命中路径在互斥锁内二次检查后再计算，保证同一键的
// compute 不会并发重复执行。命中路径无锁（底层库自带同步），
// 适合读多写少的配置缓存场景。compute 返回错误时不缓存。
func (c *Cache[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}

	c.computeMu.Lock()
	defer c.computeMu.Unlock()

	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}

	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, v)
	return v, nil
}

// Delete 删除缓存条目。返回 true 表示键存在并被删除。
func (c *Cache[K, V]) Delete(key K) bool {
	return c.lru.Remove(key)
}

// Contains 检查键是否存在，不更新 LRU 顺序。
func (c *Cache[K, V]) Contains(key K) bool {
	return c.lru.Contains(key)
}

// Peek 获取缓存值但不更新 LRU 顺序。
func (c *Cache[K, V]) Peek(key K) (V, bool) {
	return c.lru.Peek(key)
}

// Len 返回当前缓存条目数。
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// Clear 清空所有缓存条目。
func (c *Cache[K, V]) Clear() {
	c.lru.Purge()
}
