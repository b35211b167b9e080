package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"geodata/internal/colops"
	"geodata/internal/dataset"
	"geodata/internal/geom"
)

// Params：配置项名称到用户取值的映射（单值项取第一个元素）
type Params map[string][]string

// First：取单值配置，缺省或空白时返回空串
func (p Params) First(name string) string {
	if vs := p[name]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

// InputKind：配置项的输入方式
type InputKind string

const (
	Text   InputKind = "text"
	Single InputKind = "single"
	Multi  InputKind = "multi"
)

// 文档注释：配置项描述
// 约束：Text 类型没有候选值，构造时丢弃 Choices；其余类型复制候选值。
type InputConfig struct {
	Name    string    `json:"name"`
	Kind    InputKind `json:"kind"`
	Choices []string  `json:"choices"`
}

func NewInput(name string, kind InputKind, choices []string) InputConfig {
	c := InputConfig{Name: name, Kind: kind, Choices: []string{}}
	if kind != Text {
		c.Choices = append(c.Choices, choices...)
	}
	return c
}

// SortDirection：展示过滤项附带的排序方向，空值表示不排序
type SortDirection string

const (
	NoSort     SortDirection = ""
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

// FilterConfig：展示插件声明的可交互过滤列
type FilterConfig struct {
	Label string        `json:"label"`
	Kind  InputKind     `json:"kind"`
	Sort  SortDirection `json:"sort,omitempty"`
}

// ArgumentError：插件参数不合法（缺项、越界等），属于调用方可修正的校验错误
type ArgumentError struct {
	Plugin string
	Msg    string
}

func (e *ArgumentError) Error() string { return e.Plugin + ": " + e.Msg }

// ArgumentErrorf：构造带插件名的参数错误
func ArgumentErrorf(plugin, format string, a ...any) error {
	return &ArgumentError{Plugin: plugin, Msg: fmt.Sprintf(format, a...)}
}

// IsArgument：是否为参数错误
func IsArgument(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}

// 文档注释：数据源插件契约
// 背景：外部数据（文件、统计接口、进程外服务）统一通过该契约产出 Table；主流程只关心名称、配置项与加载。
// 约束：Load 参数错误返回 ArgumentError；返回的 Table 必须已通过构造校验。
type Source interface {
	Name() string
	InputSpec() []InputConfig
	Load(ctx context.Context, params Params) (*dataset.Table, error)
}

// 文档注释：展示插件契约
// 背景：ConfigSpec 依据按类型分组的列名给出列相关配置；FilterSpec 给出行相关的交互过滤列；Render 产出不透明视图。
// 约束：Render 在表为空时返回 nil 视图且不报错。
type Display interface {
	Name() string
	ConfigSpec(columnsByType map[dataset.Type][]string) []InputConfig
	FilterSpec(params Params) []FilterConfig
	Render(table *dataset.Table, width, height int, params Params) (any, error)
}

// Heartbeater：可选的健康检查能力，管理器据此剔除不可用的数据源
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// 文档注释：按列类型解析文本单元格
// 背景：文本型数据源（分隔文件、进程外 JSON）统一走这里；数值与字符串复用 colops 的解析规则，轮廓列接受几何 JSON。
func ParseCell(t dataset.Type, s string) (any, error) {
	if t == dataset.Polygon {
		var g geom.Geometry
		if err := json.Unmarshal([]byte(s), &g); err != nil {
			return nil, fmt.Errorf("%w: polygon %q: %v", colops.ErrBadLiteral, s, err)
		}
		return g, nil
	}
	ops, err := colops.For(t)
	if err != nil {
		return nil, err
	}
	return ops.Parse(s)
}
