package dataset

import (
	"fmt"
)

// 文档注释：强类型不可变数据集
// 背景：数据源插件把外部数据转换为 Table 导入框架，变换与地理编码产生新的 Table；任何操作都不修改已有实例。
// 约束：标签非空且按插入顺序去重（重复者追加 *）；类型与标签等长；每个单元格满足所在列的类型判定；行列数在构造时确定。
type Table struct {
	labels []string
	types  []Type
	rows   [][]any
	index  map[string]int
}

// 文档注释：构造数据集（立即校验）
// 背景：校验失败在构造时即返回，避免下游在首次访问时才暴露问题。
// 返回：校验失败时返回 *ValidationError（含行列号）或尺寸/标签类哨兵错误。
func New(labels []string, types []Type, rows [][]any) (*Table, error) {
	for i, l := range labels {
		if l == "" {
			return nil, fmt.Errorf("column %d: %w", i, ErrEmptyLabel)
		}
	}
	for i, t := range types {
		if !t.Valid() {
			return nil, fmt.Errorf("column %d: %w", i, ErrInvalidType)
		}
	}
	if len(labels) != len(types) {
		return nil, fmt.Errorf("%w: %d labels, %d types", ErrSizeMismatch, len(labels), len(types))
	}
	cols := len(types)
	data := make([][]any, len(rows))
	for i, r := range rows {
		if len(r) != cols {
			return nil, &ValidationError{Row: i, Col: -1, Msg: fmt.Sprintf("expected %d values, got %d", cols, len(r))}
		}
		for j, v := range r {
			if !types[j].Check(v) {
				return nil, &ValidationError{Row: i, Col: j, Msg: fmt.Sprintf("expected %s, got %T", types[j], v)}
			}
		}
		data[i] = append([]any(nil), r...)
	}
	ls := ResolveLabels(labels)
	idx := make(map[string]int, len(ls))
	for i, l := range ls {
		idx[l] = i
	}
	return &Table{labels: ls, types: append([]Type(nil), types...), rows: data, index: idx}, nil
}

// ResolveLabels：后出现的重复标签追加 * 直到唯一；对已去重的标签是恒等变换
func ResolveLabels(labels []string) []string {
	out := make([]string, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for i, l := range labels {
		for {
			if _, ok := seen[l]; !ok {
				break
			}
			l += "*"
		}
		seen[l] = struct{}{}
		out[i] = l
	}
	return out
}

func (t *Table) RowCount() int { return len(t.rows) }

func (t *Table) ColCount() int { return len(t.types) }

// Cell：按行列读取单元格；越界会 panic，与切片语义一致
func (t *Table) Cell(row, col int) any { return t.rows[row][col] }

func (t *Table) Label(col int) string { return t.labels[col] }

func (t *Table) Type(col int) Type { return t.types[col] }

func (t *Table) Labels() []string { return append([]string(nil), t.labels...) }

func (t *Table) Types() []Type { return append([]Type(nil), t.types...) }

// IndexOf：标签所在列；不存在返回 -1
func (t *Table) IndexOf(label string) int {
	if i, ok := t.index[label]; ok {
		return i
	}
	return -1
}

// Row：整行副本
func (t *Table) Row(row int) []any { return append([]any(nil), t.rows[row]...) }

// Rows：全部行的副本
func (t *Table) Rows() [][]any {
	out := make([][]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// Column：整列副本
func (t *Table) Column(col int) []any {
	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[col]
	}
	return out
}

// ColumnByLabel：按标签取列；标签不存在时 ok 为 false，不视为错误
func (t *Table) ColumnByLabel(label string) (col []any, ok bool) {
	i := t.IndexOf(label)
	if i < 0 {
		return nil, false
	}
	return t.Column(i), true
}

// LabelsOfType：某类型的全部列标签（保持列顺序）
func (t *Table) LabelsOfType(typ Type) []string {
	var out []string
	for i, ct := range t.types {
		if ct == typ {
			out = append(out, t.labels[i])
		}
	}
	return out
}

// 文档注释：列预览（按类型分组的标签）
// 背景：展示插件据此构建与类型匹配的选择器；每种类型都有条目，无对应列时为空切片。
func (t *Table) Preview() map[Type][]string {
	out := make(map[Type][]string, len(AllTypes))
	for _, typ := range AllTypes {
		ls := t.LabelsOfType(typ)
		if ls == nil {
			ls = []string{}
		}
		out[typ] = ls
	}
	return out
}

// SameSchema：标签与类型完全一致
func (t *Table) SameSchema(o *Table) bool {
	if t.ColCount() != o.ColCount() {
		return false
	}
	for i := range t.labels {
		if t.labels[i] != o.labels[i] || t.types[i] != o.types[i] {
			return false
		}
	}
	return true
}
