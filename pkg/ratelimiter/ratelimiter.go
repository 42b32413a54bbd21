package ratelimiter

import (
	"sync"
	"time"
)

// RateLimiter 定义了限流器的通用接口。
type RateLimiter interface {
	Allow() bool
}

// TokenBucket 使用令牌桶算法实现 RateLimiter 接口，
// 允许不超过桶容量的突发请求。用于平滑对模型提供商的出站调用。
type TokenBucket struct {
	rate          float64   // 每秒生成的令牌数。
	capacity      float64   // 桶的最大令牌数。
	tokens        float64   // 当前令牌数。
	lastTokenTime time.Time // 上次补充令牌的时间。
	mutex         sync.Mutex
}

// NewTokenBucket 创建一个新的令牌桶。
// rate: 每秒生成的令牌数。
// capacity: 最大令牌数（突发上限）。
func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	return &TokenBucket{
		rate:          rate,
		capacity:      float64(capacity),
		tokens:        float64(capacity), // 初始为满桶。
		lastTokenTime: time.Now(),
	}
}

// Allow 检查一次请求是否被允许。
// 根据流逝的时间补充令牌，并尝试消费一个令牌。
func (tb *TokenBucket) Allow() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastTokenTime)

	if elapsed > 0 {
		tb.tokens += elapsed.Seconds() * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTokenTime = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}

	return false
}
