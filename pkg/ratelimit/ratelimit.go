package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MEXC 合约接口的端点分组
const (
	EndpointOrderSubmit = "mexc:order:submit"
	EndpointOrderCancel = "mexc:order:cancel"
	EndpointOrderModify = "mexc:order:modify"
	EndpointOrderQuery  = "mexc:order:query"
	EndpointMarket      = "mexc:market"
	EndpointGeneral     = "mexc:general"
)

// RateLimiter 速率限制器接口
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	Remaining() int
}

// TokenBucket 令牌桶：容量 capacity，每秒补充 ratePerSec 个（按经过时间连续补充）
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	ratePerSec float64
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket 创建新的令牌桶
func NewTokenBucket(capacity int, ratePerSec float64) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		ratePerSec: ratePerSec,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.ratePerSec
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// Allow 有令牌时消耗一个并返回 true
func (tb *TokenBucket) Allow() bool {
	_, ok := tb.reserve()
	return ok
}

// reserve 尝试取令牌；失败时返回需要等待的时长
func (tb *TokenBucket) reserve() (time.Duration, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		return 0, true
	}
	if tb.ratePerSec <= 0 {
		return time.Second, false
	}
	missing := 1 - tb.tokens
	return time.Duration(missing / tb.ratePerSec * float64(time.Second)), false
}

// Wait 阻塞直到拿到令牌或 ctx 结束
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		wait, ok := tb.reserve()
		if ok {
			return nil
		}
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Remaining 当前可用令牌数（向下取整）
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return int(tb.tokens)
}

// Manager 按端点分组管理限速器
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]RateLimiter
	fallback RateLimiter
}

// NewManager 创建带 MEXC 默认配额的管理器
func NewManager() *Manager {
	m := &Manager{
		limiters: make(map[string]RateLimiter),
		fallback: NewTokenBucket(20, 20),
	}
	// 交易类接口 20 次/2 秒，查询类更宽松
	m.limiters[EndpointOrderSubmit] = NewTokenBucket(20, 10)
	m.limiters[EndpointOrderCancel] = NewTokenBucket(20, 10)
	m.limiters[EndpointOrderModify] = NewTokenBucket(20, 10)
	m.limiters[EndpointOrderQuery] = NewTokenBucket(40, 20)
	m.limiters[EndpointMarket] = NewTokenBucket(40, 20)
	m.limiters[EndpointGeneral] = m.fallback
	return m
}

// Set 替换某端点的限速器
func (m *Manager) Set(endpoint string, l RateLimiter) {
	m.mu.Lock()
	m.limiters[endpoint] = l
	m.mu.Unlock()
}

// Limiter 获取端点限速器；未知端点使用通用限速器
func (m *Manager) Limiter(endpoint string) RateLimiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.limiters[endpoint]; ok {
		return l
	}
	return m.fallback
}

// Wait 等待端点配额
func (m *Manager) Wait(ctx context.Context, endpoint string) error {
	return m.Limiter(endpoint).Wait(ctx)
}

// Allow 非阻塞检查
func (m *Manager) Allow(endpoint string) bool {
	return m.Limiter(endpoint).Allow()
}
