package geocode

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"geodata/internal/logger"
	"geodata/internal/metrics"
)

// 文档注释：结果缓存层契约
// 约束：Get 未命中返回 ok=false；Get/Set 的错误只影响缓存本身，调用方降级为直连上游。
type Cache interface {
	Name() string
	Get(ctx context.Context, key AddressKey) (Result, bool, error)
	Set(ctx context.Context, key AddressKey, r Result) error
}

// 文档注释：进程内 LRU 缓存
// 背景：同一会话内反复对相同地址列做编码，用进程内缓存挡住重复的远程查询；TTL 可调。
// 约束：容量 <=0 时退化为不缓存；过期条目在读取时淘汰。
type LRU struct {
	mu   sync.Mutex
	cap  int
	ttl  time.Duration
	lst  *list.List
	dict map[string]*list.Element
}

type lruEntry struct {
	k   string
	v   Result
	exp time.Time
}

func NewLRU(capacity int, ttl time.Duration) *LRU {
	return &LRU{cap: capacity, ttl: ttl, lst: list.New(), dict: make(map[string]*list.Element)}
}

func (c *LRU) Name() string { return "lru" }

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lst.Len()
}

func (c *LRU) Get(_ context.Context, key AddressKey) (Result, bool, error) {
	k := key.CacheKey()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		it := e.Value.(lruEntry)
		if c.ttl <= 0 || time.Now().Before(it.exp) {
			c.lst.MoveToFront(e)
			return it.v, true, nil
		}
		c.lst.Remove(e)
		delete(c.dict, k)
	}
	return Result{}, false, nil
}

func (c *LRU) Set(_ context.Context, key AddressKey, r Result) error {
	if c.cap <= 0 {
		return nil
	}
	k := key.CacheKey()
	it := lruEntry{k: k, v: r, exp: time.Now().Add(c.ttl)}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.dict[k]; ok {
		e.Value = it
		c.lst.MoveToFront(e)
		return nil
	}
	c.dict[k] = c.lst.PushFront(it)
	for c.lst.Len() > c.cap {
		back := c.lst.Back()
		delete(c.dict, back.Value.(lruEntry).k)
		c.lst.Remove(back)
	}
	return nil
}

// 文档注释：带分层缓存的 Geocoder 装饰器
// 背景：按 tiers 顺序（通常 LRU -> Redis -> Postgres）查找，命中后回填更靠前的层；全部未命中才访问上游。
// 约束：只缓存命中结果，未命中与错误不落缓存，后续调用会重试；缓存层自身的错误记录日志后忽略。
type Cached struct {
	next  Geocoder
	tiers []Cache
	log   *slog.Logger
}

func NewCached(next Geocoder, l *slog.Logger, tiers ...Cache) *Cached {
	return &Cached{next: next, tiers: tiers, log: logger.Or(l)}
}

func (c *Cached) Geocode(ctx context.Context, key AddressKey) (Result, bool, error) {
	for i, t := range c.tiers {
		r, ok, err := t.Get(ctx, key)
		if err != nil {
			c.log.Warn("geocode_cache_get_error", "tier", t.Name(), "err", err)
			continue
		}
		if !ok {
			metrics.CacheMissesTotal.WithLabelValues(t.Name()).Inc()
			continue
		}
		metrics.CacheHitsTotal.WithLabelValues(t.Name()).Inc()
		c.fill(ctx, key, r, c.tiers[:i])
		return r, true, nil
	}
	r, ok, err := c.next.Geocode(ctx, key)
	if err != nil || !ok {
		return r, ok, err
	}
	c.fill(ctx, key, r, c.tiers)
	return r, true, nil
}

func (c *Cached) fill(ctx context.Context, key AddressKey, r Result, tiers []Cache) {
	for _, t := range tiers {
		if err := t.Set(ctx, key, r); err != nil {
			c.log.Warn("geocode_cache_set_error", "tier", t.Name(), "err", err)
		}
	}
}
