// 包 middleware：API 入口的通用中间件
package middleware

import (
	"net/http"
	"sync"
	"time"
)

// 文档注释：令牌桶限流（每秒）
// 背景：地理编码请求最终落到公共 Nominatim 实例，峰值时需要在入口限速，避免上游封禁与缓存层过载。
// 约束：简化实现，不做排队，超出配额直接返回 429；每个自然秒重置一次令牌。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	now      func() int64
	mu       sync.Mutex
}

// NewTokenBucket：qps 为每秒允许的请求数
func NewTokenBucket(qps int) *TokenBucket {
	now := func() int64 { return time.Now().Unix() }
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: now(), now: now}
}

// Allow：消耗一个令牌；当前秒已耗尽时返回 false
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wrap：限流中间件；拒绝时仅写 429 状态码
func (tb *TokenBucket) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.Allow() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit：按配置生成中间件；qps<=0 时原样返回 next
func RateLimit(qps int) func(http.Handler) http.Handler {
	if qps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return NewTokenBucket(qps).Wrap
}
