package geocode

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"geodata/internal/logger"
	"geodata/internal/metrics"
)

// 文档注释：批量地址解析器
// 背景：一批行地址先按 AddressKey 去重，每个不同地址只查询一次，并发查询后再按行广播回结果。
// 约束：单个地址的失败只影响该地址（记为未命中），不会中断整批；maxInFlight<=0 表示不限并发。
type Resolver struct {
	g           Geocoder
	maxInFlight int
	log         *slog.Logger
}

type ResolverOption func(*Resolver)

// WithMaxInFlight：限制同时在途的上游请求数
func WithMaxInFlight(n int) ResolverOption { return func(r *Resolver) { r.maxInFlight = n } }

func WithLogger(l *slog.Logger) ResolverOption { return func(r *Resolver) { r.log = l } }

func NewResolver(g Geocoder, opts ...ResolverOption) *Resolver {
	r := &Resolver{g: g}
	for _, o := range opts {
		o(r)
	}
	r.log = logger.Or(r.log)
	return r
}

// 文档注释：批量解析
// 返回：results 与 keys 等长、逐行对应，未命中为 nil；unresolved 为未命中的不同地址，按首次出现的顺序排列。
// 约束：ctx 取消后尚未完成的查询按未命中处理。
func (r *Resolver) ResolveBatch(ctx context.Context, keys []AddressKey) ([]*Result, []AddressKey) {
	index := make(map[AddressKey]int, len(keys))
	var distinct []AddressKey
	for _, k := range keys {
		if _, ok := index[k]; !ok {
			index[k] = len(distinct)
			distinct = append(distinct, k)
		}
	}
	metrics.GeocodeBatchKeys.Observe(float64(len(distinct)))

	found := make([]*Result, len(distinct))
	var g errgroup.Group
	if r.maxInFlight > 0 {
		g.SetLimit(r.maxInFlight)
	}
	for i, k := range distinct {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, ok, err := r.g.Geocode(ctx, k)
			if err != nil {
				r.log.Warn("geocode_key_failed", "address", k.String(), "err", err)
				return nil
			}
			if ok {
				found[i] = &res
			}
			return nil
		})
	}
	_ = g.Wait()

	var unresolved []AddressKey
	for i, k := range distinct {
		if found[i] == nil {
			unresolved = append(unresolved, k)
		}
	}
	out := make([]*Result, len(keys))
	for i, k := range keys {
		out[i] = found[index[k]]
	}
	r.log.Info("geocode_batch", "rows", len(keys), "distinct", len(distinct), "unresolved", len(unresolved))
	return out, unresolved
}
