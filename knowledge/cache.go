// Package knowledge 管理外部文学知识的获取与缓存：
// 百科条目、文学批评、历史背景，按 (操作, 规范化查询) 记忆化.
package knowledge

import (
	"fmt"
	"strings"
	"sync"
)

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = fmt.Errorf("cache miss")

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return err == ErrCacheMiss
}

// Cache 外部知识缓存接口.
// 只缓存成功结果；失败由调用方直接返回，不进入缓存.
type Cache interface {
	// Get 获取缓存值，未命中返回 ErrCacheMiss.
	Get(key string) (string, error)

	// Set 写入缓存值.
	Set(key, value string) error

	// Close 释放底层资源.
	Close() error
}

// CacheKey 构造缓存键: <op>:<规范化查询>.
// 规范化与标题清洗一致：小写、压缩空白，保证同义查询命中同一条目.
func CacheKey(op OpKind, query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return string(op) + ":" + normalized
}

// MemoryCache 进程内缓存.
// 作品级条目数量有限（每部作品个位数条目），不做淘汰.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryCache 创建内存缓存.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

// Get 获取缓存值.
func (c *MemoryCache) Get(key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	return "", ErrCacheMiss
}

// Set 写入缓存值.
func (c *MemoryCache) Set(key, value string) error {
	c.mu.Lock()
	c.entries[key] = value
	c.mu.Unlock()
	return nil
}

// Len 返回条目数.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close 实现 Cache 接口，无资源可释放.
func (c *MemoryCache) Close() error { return nil }
