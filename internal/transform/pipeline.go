// 包 transform：基于不可变快照的过滤/排序流水线，物化时生成新的数据集
package transform

import (
	"errors"
	"fmt"
	"slices"

	"geodata/internal/colops"
	"geodata/internal/dataset"
	"geodata/internal/metrics"
)

var ErrLabelNotFound = errors.New("label not found")

type rowFilter struct {
	col  int
	keep func(v any) bool
}

type sortKey struct {
	col       int
	compare   func(a, b any) int
	ascending bool
}

// 文档注释：变换流水线（值语义）
// 背景：每个操作返回新的 Pipeline，原值不变；过滤描述符累积，仅在 Materialize 时对基础快照求值。
// 约束：多个过滤按逻辑与组合、顺序无关；排序键只保留最后一次 SortBy；过滤总是先于排序执行，排序稳定。
type Pipeline struct {
	base    *dataset.Table
	filters []rowFilter
	sort    *sortKey
}

// New：以数据集为基础快照创建空流水线
func New(base *dataset.Table) Pipeline { return Pipeline{base: base} }

func (p Pipeline) column(label string) (int, dataset.Type, error) {
	i := p.base.IndexOf(label)
	if i < 0 {
		return -1, 0, fmt.Errorf("%w: %q", ErrLabelNotFound, label)
	}
	return i, p.base.Type(i), nil
}

func (p Pipeline) withFilter(f rowFilter) Pipeline {
	next := p
	next.filters = append(slices.Clip(p.filters), f)
	return next
}

// FilterByRange：保留满足 “单元格 op 字面量” 的行
func (p Pipeline) FilterByRange(label, op, literal string) (Pipeline, error) {
	col, typ, err := p.column(label)
	if err != nil {
		return p, err
	}
	pred, err := colops.RangePredicate(typ, op, literal)
	if err != nil {
		return p, fmt.Errorf("filter %q: %w", label, err)
	}
	return p.withFilter(rowFilter{col: col, keep: pred}), nil
}

// FilterBySet：保留单元格属于给定字面量集合的行
func (p Pipeline) FilterBySet(label string, values []string) (Pipeline, error) {
	col, typ, err := p.column(label)
	if err != nil {
		return p, err
	}
	pred, err := colops.MemberPredicate(typ, values)
	if err != nil {
		return p, fmt.Errorf("filter %q: %w", label, err)
	}
	return p.withFilter(rowFilter{col: col, keep: pred}), nil
}

// SortBy：设置（替换）唯一排序键
func (p Pipeline) SortBy(label string, ascending bool) (Pipeline, error) {
	col, typ, err := p.column(label)
	if err != nil {
		return p, err
	}
	o, err := colops.For(typ)
	if err != nil {
		return p, fmt.Errorf("sort %q: %w", label, err)
	}
	next := p
	next.sort = &sortKey{col: col, compare: o.Compare, ascending: ascending}
	return next, nil
}

// 文档注释：物化
// 背景：先对基础快照依次应用全部过滤，再按排序键稳定排序，输出与基础快照同模式的新数据集。
// 约束：不修改流水线本身，重复调用结果一致。
func (p Pipeline) Materialize() (*dataset.Table, error) {
	rows := p.base.Rows()
	kept := rows[:0]
	for _, r := range rows {
		ok := true
		for _, f := range p.filters {
			if !f.keep(r[f.col]) {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, r)
		}
	}
	if s := p.sort; s != nil {
		slices.SortStableFunc(kept, func(a, b []any) int {
			c := s.compare(a[s.col], b[s.col])
			if !s.ascending {
				return -c
			}
			return c
		})
	}
	metrics.PipelineMaterializeTotal.Inc()
	return dataset.New(p.base.Labels(), p.base.Types(), kept)
}
