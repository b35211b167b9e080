// 包 colops：按列类型分派的比较器、字面量解析与成员判定，供变换流水线复用
package colops

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"geodata/internal/dataset"
)

var (
	ErrUnsupportedType = errors.New("unsupported column type")
	ErrUnknownOperator = errors.New("unknown operator")
	ErrBadLiteral      = errors.New("cannot parse literal")
)

// Ops：单一类型的行为集合
type Ops struct {
	// Compare 为全序比较器，返回 0 当且仅当两值相等
	Compare func(a, b any) int
	// Parse 把用户输入的字面量解析为该类型的单元格值
	Parse func(s string) (any, error)
}

// 文档注释：类型到行为的分派表
// 背景：类型集合封闭，启动时一次性构建；Polygon 无比较器，排序/范围/集合过滤都返回 ErrUnsupportedType。
var table = map[dataset.Type]Ops{
	dataset.Integer: {
		Compare: func(a, b any) int { return cmp.Compare(a.(int64), b.(int64)) },
		Parse: func(s string) (any, error) {
			v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w %q as Integer", ErrBadLiteral, s)
			}
			return v, nil
		},
	},
	dataset.Double: {
		Compare: func(a, b any) int { return cmp.Compare(a.(float64), b.(float64)) },
		Parse: func(s string) (any, error) {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%w %q as Double", ErrBadLiteral, s)
			}
			return v, nil
		},
	},
	dataset.String: {
		Compare: func(a, b any) int { return strings.Compare(a.(string), b.(string)) },
		Parse:   func(s string) (any, error) { return s, nil },
	},
}

// For：取某类型的行为；不支持的类型返回 ErrUnsupportedType
func For(t dataset.Type) (Ops, error) {
	o, ok := table[t]
	if !ok {
		return Ops{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return o, nil
}

// Operators：范围过滤支持的运算符（界面展示顺序）
var Operators = []string{">", ">=", "=", "<=", "<", "!="}

var operators = map[string]func(int) bool{
	">":  func(c int) bool { return c > 0 },
	">=": func(c int) bool { return c >= 0 },
	"=":  func(c int) bool { return c == 0 },
	"<=": func(c int) bool { return c <= 0 },
	"<":  func(c int) bool { return c < 0 },
	"!=": func(c int) bool { return c != 0 },
}

// Operator：把运算符映射为对比较结果的判定
func Operator(op string) (func(int) bool, error) {
	f, ok := operators[strings.TrimSpace(op)]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownOperator, op)
	}
	return f, nil
}

// 文档注释：范围谓词
// 背景：字面量先按列类型解析，再与单元格比较；单元格在左、字面量在右。
func RangePredicate(t dataset.Type, op, literal string) (func(v any) bool, error) {
	o, err := For(t)
	if err != nil {
		return nil, err
	}
	test, err := Operator(op)
	if err != nil {
		return nil, err
	}
	lit, err := o.Parse(literal)
	if err != nil {
		return nil, err
	}
	return func(v any) bool { return test(o.Compare(v, lit)) }, nil
}

// 文档注释：集合成员谓词
// 约束：任一字面量解析失败即整体失败；比较基于相等，与比较器的 0 结果一致。
func MemberPredicate(t dataset.Type, literals []string) (func(v any) bool, error) {
	o, err := For(t)
	if err != nil {
		return nil, err
	}
	set := make(map[any]struct{}, len(literals))
	for _, s := range literals {
		v, err := o.Parse(s)
		if err != nil {
			return nil, err
		}
		set[memberKey(v)] = struct{}{}
	}
	return func(v any) bool {
		_, ok := set[memberKey(v)]
		return ok
	}, nil
}

// nanKey：NaN 在 map 中永不相等，统一映射到此键，使集合成员判定与 cmp.Compare 的 0 结果一致
type nanKey struct{}

func memberKey(v any) any {
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return nanKey{}
	}
	return v
}
