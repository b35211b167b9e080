package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"geodata/internal/colops"
	"geodata/internal/dataset"
	"geodata/internal/geocode"
	"geodata/internal/metrics"
	"geodata/internal/plugins"
	"geodata/internal/transform"
)

func (c *Catalog) RegisterSource(s plugins.Source)   { c.plugins.RegisterSource(s) }
func (c *Catalog) RegisterDisplay(d plugins.Display) { c.plugins.RegisterDisplay(d) }
func (c *Catalog) SourceNames() []string             { return c.plugins.SourceNames() }
func (c *Catalog) DisplayNames() []string            { return c.plugins.DisplayNames() }

func (c *Catalog) source(name string) (plugins.Source, error) {
	s, ok := c.plugins.Source(name)
	if !ok {
		return nil, fmt.Errorf("%w: source %q", ErrPluginNotFound, name)
	}
	return s, nil
}

func (c *Catalog) display(name string) (plugins.Display, error) {
	d, ok := c.plugins.Display(name)
	if !ok {
		return nil, fmt.Errorf("%w: display %q", ErrPluginNotFound, name)
	}
	return d, nil
}

// SourceInputSpec：数据源的配置项
func (c *Catalog) SourceInputSpec(plugin string) ([]plugins.InputConfig, error) {
	s, err := c.source(plugin)
	if err != nil {
		return nil, err
	}
	return s.InputSpec(), nil
}

// Load：通过数据源加载并登记为 name
func (c *Catalog) Load(ctx context.Context, plugin, name string, params plugins.Params) error {
	s, err := c.source(plugin)
	if err != nil {
		return err
	}
	err = c.produce(name, func() (*dataset.Table, error) { return s.Load(ctx, params) })
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.PluginLoadsTotal.WithLabelValues(plugin, status).Inc()
	return err
}

// transform：以 src 为基表构建流水线并把物化结果登记为 dst
func (c *Catalog) transform(src, dst string, build func(transform.Pipeline) (transform.Pipeline, error)) error {
	return c.produce(dst, func() (*dataset.Table, error) {
		base, err := c.lookup(src)
		if err != nil {
			return nil, err
		}
		p, err := build(transform.New(base))
		if err != nil {
			return nil, err
		}
		return p.Materialize()
	})
}

// FilterByRange：按比较运算过滤数值或字符串列
func (c *Catalog) FilterByRange(src, dst, label, op, value string) error {
	return c.transform(src, dst, func(p transform.Pipeline) (transform.Pipeline, error) {
		return p.FilterByRange(label, op, value)
	})
}

// FilterBySet：保留列值属于 values 的行
func (c *Catalog) FilterBySet(src, dst, label string, values []string) error {
	if label == "" {
		return fmt.Errorf("%w: column to filter", ErrMissingSelection)
	}
	return c.transform(src, dst, func(p transform.Pipeline) (transform.Pipeline, error) {
		return p.FilterBySet(label, values)
	})
}

// Sort：按单列稳定排序
func (c *Catalog) Sort(src, dst, label string, ascending bool) error {
	if label == "" {
		return fmt.Errorf("%w: column to sort", ErrMissingSelection)
	}
	return c.transform(src, dst, func(p transform.Pipeline) (transform.Pipeline, error) {
		return p.SortBy(label, ascending)
	})
}

// 文档注释：地址来源选择
// 背景：自由文本取 FreeText 一列；结构化地址按 geocode.AddressFields 顺序给出最多五列，空串表示该字段缺省。
type AddressSelection struct {
	FreeText string
	Fields   [5]string
}

func (s AddressSelection) IsFreeText() bool { return s.FreeText != "" }

// SelectionFromParams：把 GeocodeConfigs 对应的参数转成 AddressSelection
func SelectionFromParams(params plugins.Params, freeForm bool) AddressSelection {
	var s AddressSelection
	if freeForm {
		s.FreeText = params.First(AddressParam)
		return s
	}
	for i, f := range geocode.AddressFields {
		s.Fields[i] = params.First(f)
	}
	return s
}

func cellText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func addressColumn(t *dataset.Table, label string) (int, error) {
	i := t.IndexOf(label)
	if i < 0 {
		return -1, fmt.Errorf("%w: %q", transform.ErrLabelNotFound, label)
	}
	if t.Type(i) == dataset.Polygon {
		return -1, fmt.Errorf("%w: address column %q is a polygon", colops.ErrUnsupportedType, label)
	}
	return i, nil
}

// addressKeys：逐行构造去重键；某行地址全部为空时返回带行号的校验错误
func addressKeys(t *dataset.Table, sel AddressSelection) ([]geocode.AddressKey, error) {
	keys := make([]geocode.AddressKey, t.RowCount())
	if sel.IsFreeText() {
		col, err := addressColumn(t, sel.FreeText)
		if err != nil {
			return nil, err
		}
		for r := range keys {
			k, err := geocode.NewFreeText(cellText(t.Cell(r, col)))
			if err != nil {
				return nil, &dataset.ValidationError{Row: r, Col: col, Msg: err.Error()}
			}
			keys[r] = k
		}
		return keys, nil
	}
	cols := [5]int{-1, -1, -1, -1, -1}
	picked := false
	for i, label := range sel.Fields {
		if label == "" {
			continue
		}
		col, err := addressColumn(t, label)
		if err != nil {
			return nil, err
		}
		cols[i] = col
		picked = true
	}
	if !picked {
		return nil, fmt.Errorf("%w: at least one address column", ErrMissingSelection)
	}
	for r := range keys {
		var fields [5]string
		for i, col := range cols {
			if col >= 0 {
				fields[i] = cellText(t.Cell(r, col))
			}
		}
		k, err := geocode.NewStructuredFields(fields)
		if err != nil {
			return nil, &dataset.ValidationError{Row: r, Col: -1, Msg: err.Error()}
		}
		keys[r] = k
	}
	return keys, nil
}

// 文档注释：地理编码追加
// 背景：每行构造 AddressKey 后批量解析，命中行追加 经度(Double)/纬度(Double)/轮廓(Polygon) 三列，未命中行丢弃，结果登记为 dst。
// 返回：未命中的不同地址文本（按首次出现顺序），由调用方决定是否保留结果。
// 约束：名称/前缀/选择校验失败时不发起任何远程查询；ctx 在批量解析期间被取消或超时则返回该错误且不登记结果。
// 统计按行计数：lookups 为行数，unresolved 为被丢弃的行数。
func (c *Catalog) GeocodeAppend(ctx context.Context, src, dst, prefix string, sel AddressSelection) ([]string, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, ErrEmptyLabel
	}
	var unresolved []string
	err := c.produce(dst, func() (*dataset.Table, error) {
		base, err := c.lookup(src)
		if err != nil {
			return nil, err
		}
		keys, err := addressKeys(base, sel)
		if err != nil {
			return nil, err
		}
		results, missing := c.resolver.ResolveBatch(ctx, keys)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("geocode batch interrupted: %w", err)
		}
		seen := make(map[string]struct{}, len(missing))
		for _, k := range missing {
			s := k.String()
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			unresolved = append(unresolved, s)
		}
		rows := make([][]any, 0, len(results))
		for i, res := range results {
			if res == nil {
				continue
			}
			row := base.Row(i)
			row = append(row, res.Lon, res.Lat, res.Geometry)
			rows = append(rows, row)
		}
		if c.stats != nil {
			if err := c.stats.IncrStats(ctx, len(keys), len(keys)-len(rows)); err != nil {
				c.log.Warn("geocode_stats_error", "err", err)
			}
		}
		labels := append(base.Labels(), prefix+" (longitude)", prefix+" (latitude)", prefix+" (contour)")
		types := append(base.Types(), dataset.Double, dataset.Double, dataset.Polygon)
		return dataset.New(labels, types, rows)
	})
	if err != nil {
		return nil, err
	}
	return unresolved, nil
}
