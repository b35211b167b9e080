// 包 geom：多轮廓区域的几何值类型，承载地理编码返回的边界并缓存包围盒
package geom

import (
	"encoding/json"
	"errors"
	"math"
)

var (
	ErrNoRings   = errors.New("geometry needs at least one ring")
	ErrEmptyRing = errors.New("geometry ring cannot be empty")
)

// Point：二维点，X 为经度，Y 为纬度（WGS84 原始度数）
type Point struct {
	X float64
	Y float64
}

// Ring：有序点列；单点环用于无边界结果的兜底
type Ring []Point

// BBox：包围盒，构造时一次性计算
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains：判断点是否落在包围盒内（含边界）
func (b BBox) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}

// 文档注释：多轮廓几何（不可变）
// 背景：统一表达 Polygon/MultiPolygon/单点兜底三种上游形态，下游渲染只面对环列表。
// 约束：至少一个环且每个环非空；包围盒覆盖全部环的全部点；访问器返回副本，不共享内部存储。
type Geometry struct {
	rings []Ring
	bbox  BBox
}

// NewGeometry：拷贝输入环并计算包围盒
func NewGeometry(rings []Ring) (Geometry, error) {
	if len(rings) == 0 {
		return Geometry{}, ErrNoRings
	}
	cp := make([]Ring, len(rings))
	b := BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for i, r := range rings {
		if len(r) == 0 {
			return Geometry{}, ErrEmptyRing
		}
		cp[i] = append(Ring(nil), r...)
		for _, p := range r {
			b.MinX = math.Min(b.MinX, p.X)
			b.MinY = math.Min(b.MinY, p.Y)
			b.MaxX = math.Max(b.MaxX, p.X)
			b.MaxY = math.Max(b.MaxY, p.Y)
		}
	}
	return Geometry{rings: cp, bbox: b}, nil
}

// PointGeometry：单点兜底环
func PointGeometry(x, y float64) Geometry {
	g, _ := NewGeometry([]Ring{{{X: x, Y: y}}})
	return g
}

// IsZero：未经 NewGeometry 构造的零值
func (g Geometry) IsZero() bool { return len(g.rings) == 0 }

func (g Geometry) BBox() BBox { return g.bbox }

func (g Geometry) NumRings() int { return len(g.rings) }

// Rings：返回环的深拷贝
func (g Geometry) Rings() []Ring {
	out := make([]Ring, len(g.rings))
	for i, r := range g.rings {
		out[i] = append(Ring(nil), r...)
	}
	return out
}

// Equal：逐环逐点比较
func (g Geometry) Equal(o Geometry) bool {
	if len(g.rings) != len(o.rings) {
		return false
	}
	for i := range g.rings {
		if len(g.rings[i]) != len(o.rings[i]) {
			return false
		}
		for j := range g.rings[i] {
			if g.rings[i][j] != o.rings[i][j] {
				return false
			}
		}
	}
	return true
}

// ScaledPoint：历史整数单位的点
type ScaledPoint struct {
	X int
	Y int
}

// 文档注释：换算为历史整数单位
// 背景：旧版渲染与持久化数据按 x*factor、-y*factor 的整数坐标存储（factor 通常为 10000，Y 轴翻转以贴合屏幕坐标）。
// 约束：仅用于展示层或旧数据兼容；内部规范表示始终是原始经纬度。
func (g Geometry) Scaled(factor float64) [][]ScaledPoint {
	out := make([][]ScaledPoint, len(g.rings))
	for i, r := range g.rings {
		sr := make([]ScaledPoint, len(r))
		for j, p := range r {
			sr[j] = ScaledPoint{X: int(p.X * factor), Y: int(-p.Y * factor)}
		}
		out[i] = sr
	}
	return out
}

type geometryJSON struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
	BBox        [4]float64     `json:"bbox"`
}

// MarshalJSON：输出环列表与包围盒，供 API 与缓存层序列化
func (g Geometry) MarshalJSON() ([]byte, error) {
	gj := geometryJSON{Type: "MultiPolygon", Coordinates: make([][][2]float64, len(g.rings))}
	for i, r := range g.rings {
		cs := make([][2]float64, len(r))
		for j, p := range r {
			cs[j] = [2]float64{p.X, p.Y}
		}
		gj.Coordinates[i] = cs
	}
	if !g.IsZero() {
		gj.BBox = [4]float64{g.bbox.MinX, g.bbox.MinY, g.bbox.MaxX, g.bbox.MaxY}
	}
	return json.Marshal(gj)
}

// UnmarshalJSON：忽略输入中的 bbox，按环重新计算以保持不变式
func (g *Geometry) UnmarshalJSON(b []byte) error {
	var gj geometryJSON
	if err := json.Unmarshal(b, &gj); err != nil {
		return err
	}
	rings := make([]Ring, len(gj.Coordinates))
	for i, cs := range gj.Coordinates {
		r := make(Ring, len(cs))
		for j, c := range cs {
			r[j] = Point{X: c[0], Y: c[1]}
		}
		rings[i] = r
	}
	ng, err := NewGeometry(rings)
	if err != nil {
		return err
	}
	*g = ng
	return nil
}
