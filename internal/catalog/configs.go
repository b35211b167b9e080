package catalog

import (
	"context"
	"fmt"

	"geodata/internal/colops"
	"geodata/internal/dataset"
	"geodata/internal/geocode"
	"geodata/internal/plugins"
	"geodata/internal/transform"
)

// 配置项名称，前端按此回填 Params
const (
	ColumnParam   = "Column Name"
	OperatorParam = "Operator"
	ValueParam    = "Value"
	ValuesParam   = "Values"
	SortByParam   = "Sort By"
	AddressParam  = "Address"
)

// FilterConfigs：数值过滤为 列/运算符/取值 三项，字符串过滤只需选择列
func (c *Catalog) FilterConfigs(name string, numeric bool) ([]plugins.InputConfig, error) {
	t, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	if !numeric {
		return []plugins.InputConfig{plugins.NewInput(ColumnParam, plugins.Single, t.LabelsOfType(dataset.String))}, nil
	}
	cols := append(t.LabelsOfType(dataset.Integer), t.LabelsOfType(dataset.Double)...)
	return []plugins.InputConfig{
		plugins.NewInput(ColumnParam, plugins.Single, cols),
		plugins.NewInput(OperatorParam, plugins.Single, colops.Operators),
		plugins.NewInput(ValueParam, plugins.Text, nil),
	}, nil
}

// SortConfigs：可排序列（不含轮廓列）
func (c *Catalog) SortConfigs(name string) ([]plugins.InputConfig, error) {
	t, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	var cols []string
	for i, l := range t.Labels() {
		if t.Type(i) != dataset.Polygon {
			cols = append(cols, l)
		}
	}
	return []plugins.InputConfig{plugins.NewInput(SortByParam, plugins.Single, cols)}, nil
}

// GeocodeConfigs：自由文本为一个 Address 选择，否则为五个结构化字段选择，候选均为字符串列
func (c *Catalog) GeocodeConfigs(name string, freeForm bool) ([]plugins.InputConfig, error) {
	t, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	cols := t.LabelsOfType(dataset.String)
	if freeForm {
		return []plugins.InputConfig{plugins.NewInput(AddressParam, plugins.Single, cols)}, nil
	}
	out := make([]plugins.InputConfig, len(geocode.AddressFields))
	for i, f := range geocode.AddressFields {
		out[i] = plugins.NewInput(f, plugins.Single, cols)
	}
	return out, nil
}

// DisplayConfigs：展示插件基于数据集列预览给出的配置项
func (c *Catalog) DisplayConfigs(plugin, name string) ([]plugins.InputConfig, error) {
	d, err := c.display(plugin)
	if err != nil {
		return nil, err
	}
	t, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	return d.ConfigSpec(t.Preview()), nil
}

// FilterSpec：展示插件声明的交互过滤列
func (c *Catalog) FilterSpec(plugin string, params plugins.Params) ([]plugins.FilterConfig, error) {
	d, err := c.display(plugin)
	if err != nil {
		return nil, err
	}
	return d.FilterSpec(params), nil
}

// 文档注释：交互过滤的候选值
// 背景：为每个过滤列列出去重后的取值（首次出现顺序）作为选择项；轮廓列与不存在的列跳过。
func (c *Catalog) SelectionChoices(name string, specs []plugins.FilterConfig) ([]plugins.InputConfig, error) {
	t, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	var out []plugins.InputConfig
	for _, s := range specs {
		if s.Kind != plugins.Single && s.Kind != plugins.Multi {
			continue
		}
		i := t.IndexOf(s.Label)
		if i < 0 || t.Type(i) == dataset.Polygon {
			continue
		}
		seen := make(map[string]struct{})
		var choices []string
		for _, v := range t.Column(i) {
			txt := cellText(v)
			if _, ok := seen[txt]; ok {
				continue
			}
			seen[txt] = struct{}{}
			choices = append(choices, txt)
		}
		out = append(out, plugins.NewInput(s.Label, s.Kind, choices))
	}
	return out, nil
}

// 文档注释：渲染
// 背景：按展示插件的 FilterSpec 把 selections 作为集合过滤、把附带的排序方向作为排序键，经流水线物化后交给插件。
// 约束：没有选择值的过滤列不过滤；窗口固定为 DisplayWidth x DisplayHeight。
func (c *Catalog) Render(_ context.Context, plugin, name string, params plugins.Params, selections map[string][]string) (any, error) {
	d, err := c.display(plugin)
	if err != nil {
		return nil, err
	}
	t, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	p := transform.New(t)
	changed := false
	for _, fs := range d.FilterSpec(params) {
		if vals := selections[fs.Label]; len(vals) > 0 {
			if p, err = p.FilterBySet(fs.Label, vals); err != nil {
				return nil, fmt.Errorf("filter %q: %w", fs.Label, err)
			}
			changed = true
		}
		if fs.Sort != plugins.NoSort {
			if p, err = p.SortBy(fs.Label, fs.Sort == plugins.Ascending); err != nil {
				return nil, fmt.Errorf("sort %q: %w", fs.Label, err)
			}
			changed = true
		}
	}
	if changed {
		if t, err = p.Materialize(); err != nil {
			return nil, err
		}
	}
	return d.Render(t, DisplayWidth, DisplayHeight, params)
}
