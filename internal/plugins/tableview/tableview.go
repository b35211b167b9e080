// 包 tableview：以文本表格呈现数据集的展示插件
package tableview

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"geodata/internal/dataset"
	"geodata/internal/geom"
	"geodata/internal/plugins"
)

const (
	Name     = "Table View"
	Columns  = "Columns"
	FilterBy = "Filter By"
	SortBy   = "Sort By"
	Order    = "Order"
	Style    = "Style"
	Title    = "Title"

	// 像素到字符/行的粗略换算，与 600x450 的默认窗口配合约为 75 列、25 行
	charWidth  = 8
	lineHeight = 18
)

var styles = map[string]table.Style{
	"light":   table.StyleLight,
	"rounded": table.StyleRounded,
	"double":  table.StyleDouble,
	"default": table.StyleDefault,
}

// View：纯文本表格渲染器
type View struct{}

func New() *View { return &View{} }

func (v *View) Name() string { return Name }

// ConfigSpec：可显示列、可交互过滤列（String/Integer）、排序列与方向、样式、标题
func (v *View) ConfigSpec(columnsByType map[dataset.Type][]string) []plugins.InputConfig {
	var all, filterable, sortable []string
	for _, t := range dataset.AllTypes {
		cols := columnsByType[t]
		all = append(all, cols...)
		if t == dataset.String || t == dataset.Integer {
			filterable = append(filterable, cols...)
		}
		if t != dataset.Polygon {
			sortable = append(sortable, cols...)
		}
	}
	styleNames := make([]string, 0, len(styles))
	for n := range styles {
		styleNames = append(styleNames, n)
	}
	slices.Sort(styleNames)
	return []plugins.InputConfig{
		plugins.NewInput(Columns, plugins.Multi, all),
		plugins.NewInput(FilterBy, plugins.Multi, filterable),
		plugins.NewInput(SortBy, plugins.Single, sortable),
		plugins.NewInput(Order, plugins.Single, []string{string(plugins.Ascending), string(plugins.Descending)}),
		plugins.NewInput(Style, plugins.Single, styleNames),
		plugins.NewInput(Title, plugins.Text, nil),
	}
}

// FilterSpec：每个 Filter By 列提供多选；Sort By 列附带排序方向
func (v *View) FilterSpec(params plugins.Params) []plugins.FilterConfig {
	var out []plugins.FilterConfig
	for _, l := range params[FilterBy] {
		out = append(out, plugins.FilterConfig{Label: l, Kind: plugins.Multi})
	}
	if s := params.First(SortBy); s != "" {
		dir := plugins.Ascending
		if params.First(Order) == string(plugins.Descending) {
			dir = plugins.Descending
		}
		out = append(out, plugins.FilterConfig{Label: s, Kind: plugins.Multi, Sort: dir})
	}
	return out
}

// 文档注释：渲染文本表格
// 背景：宽度按字符换算后限制行长，高度决定最多显示的数据行，其余行数记在表尾。
// 返回：string 视图；表为空时返回 nil。
func (v *View) Render(t *dataset.Table, width, height int, params plugins.Params) (any, error) {
	if t == nil || t.RowCount() == 0 {
		return nil, nil
	}
	cols := make([]int, 0, t.ColCount())
	for _, l := range params[Columns] {
		i := t.IndexOf(l)
		if i < 0 {
			return nil, plugins.ArgumentErrorf(Name, "unknown column %q", l)
		}
		cols = append(cols, i)
	}
	if len(cols) == 0 {
		for i := 0; i < t.ColCount(); i++ {
			cols = append(cols, i)
		}
	}

	tw := table.NewWriter()
	style, ok := styles[params.First(Style)]
	if !ok {
		style = table.StyleLight
	}
	tw.SetStyle(style)
	if title := params.First(Title); title != "" {
		tw.SetTitle(title)
	}
	if width > 0 {
		tw.SetAllowedRowLength(width / charWidth)
	}
	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = t.Label(c)
	}
	tw.AppendHeader(header)

	limit := t.RowCount()
	if height > 0 {
		limit = min(limit, max(1, height/lineHeight))
	}
	for r := 0; r < limit; r++ {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = formatCell(t.Cell(r, c))
		}
		tw.AppendRow(row)
	}
	if rest := t.RowCount() - limit; rest > 0 {
		tw.AppendFooter(table.Row{fmt.Sprintf("... %d more rows", rest)})
	}
	return tw.Render(), nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case geom.Geometry:
		b := x.BBox()
		return fmt.Sprintf("%d ring(s) [%.4f,%.4f .. %.4f,%.4f]", x.NumRings(), b.MinX, b.MinY, b.MaxX, b.MaxY)
	default:
		return fmt.Sprint(v)
	}
}
