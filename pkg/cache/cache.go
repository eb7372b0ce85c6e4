package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Cache 通用缓存接口
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Size() int
}

type cacheItem[V any] struct {
	value     V
	expiresAt time.Time
}

// InMemoryCache 内存 TTL 缓存；过期项在 Set 时惰性清理，不启动后台 goroutine
type InMemoryCache[K comparable, V any] struct {
	mu         sync.RWMutex
	items      map[K]cacheItem[V]
	defaultTTL time.Duration
	now        func() time.Time
	sets       int
}

// NewInMemoryCache 创建新的内存缓存
func NewInMemoryCache[K comparable, V any](defaultTTL time.Duration) *InMemoryCache[K, V] {
	return &InMemoryCache[K, V]{
		items:      make(map[K]cacheItem[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get 获取缓存值，过期视为不存在
func (c *InMemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(item.expiresAt) {
		var zero V
		return zero, false
	}
	return item.value, true
}

// Set 设置缓存值；ttl 为 0 时使用默认 TTL
func (c *InMemoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.items[key] = cacheItem[V]{value: value, expiresAt: now.Add(ttl)}

	c.sets++
	if c.sets%128 == 0 {
		for k, it := range c.items {
			if !now.Before(it.expiresAt) {
				delete(c.items, k)
			}
		}
	}
}

// Delete 删除缓存项
func (c *InMemoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Size 当前条目数（可能包含尚未清理的过期项）
func (c *InMemoryCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// PriceLoader 从交易所读取价格
type PriceLoader func(ctx context.Context, symbol string) (decimal.Decimal, error)

// PriceCache 标记价格缓存，避免每个市价单都请求一次行情
type PriceCache struct {
	cache  *InMemoryCache[string, decimal.Decimal]
	ttl    time.Duration
	loader PriceLoader
}

// NewPriceCache ttl<=0 时默认 5 秒
func NewPriceCache(ttl time.Duration, loader PriceLoader) *PriceCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &PriceCache{
		cache:  NewInMemoryCache[string, decimal.Decimal](ttl),
		ttl:    ttl,
		loader: loader,
	}
}

// Get 只读缓存
func (pc *PriceCache) Get(symbol string) (decimal.Decimal, bool) {
	return pc.cache.Get(symbol)
}

// Set 写入价格
func (pc *PriceCache) Set(symbol string, price decimal.Decimal) {
	pc.cache.Set(symbol, price, pc.ttl)
}

// GetOrLoad 缓存未命中时调用 loader 并写回
func (pc *PriceCache) GetOrLoad(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if p, ok := pc.cache.Get(symbol); ok {
		return p, nil
	}
	if pc.loader == nil {
		return decimal.Zero, ErrNoLoader
	}
	p, err := pc.loader(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	pc.Set(symbol, p)
	return p, nil
}
