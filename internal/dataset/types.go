// 包 dataset：强类型、不可变的表格数据集，是插件、变换与地理编码之间传递数据的唯一载体
package dataset

import (
	"fmt"
	"strings"

	"geodata/internal/geom"
)

// Type：列类型标签（封闭集合）
type Type int

const (
	Integer Type = iota + 1
	Double
	String
	Polygon
)

// AllTypes：按预览输出顺序列出全部类型
var AllTypes = []Type{String, Integer, Double, Polygon}

func (t Type) String() string {
	switch t {
	case Integer:
		return "Integer"
	case Double:
		return "Double"
	case String:
		return "String"
	case Polygon:
		return "Polygon"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid：是否属于封闭集合
func (t Type) Valid() bool { return t >= Integer && t <= Polygon }

// 文档注释：运行时类型判定
// 约束：Integer 仅接受 int64，Double 仅接受 float64，String 仅接受 string，Polygon 仅接受已构造的 geom.Geometry；不做隐式转换。
func (t Type) Check(v any) bool {
	switch t {
	case Integer:
		_, ok := v.(int64)
		return ok
	case Double:
		_, ok := v.(float64)
		return ok
	case String:
		_, ok := v.(string)
		return ok
	case Polygon:
		g, ok := v.(geom.Geometry)
		return ok && !g.IsZero()
	}
	return false
}

// ParseType：按名称解析类型标签（大小写不敏感）
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "integer", "int":
		return Integer, nil
	case "double", "float":
		return Double, nil
	case "string", "text":
		return String, nil
	case "polygon", "polygons":
		return Polygon, nil
	}
	return 0, fmt.Errorf("unknown column type %q", s)
}

func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
