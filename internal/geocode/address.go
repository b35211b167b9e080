// 包 geocode：地址去重键、上游地理编码客户端、缓存分层与批量解析
package geocode

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var ErrEmptyAddress = errors.New("at least one address field must be non-empty")

// AddressFields：结构化地址字段的固定顺序
var AddressFields = []string{"Country", "State", "City", "County", "Street"}

// 文档注释：地址去重键（不可变、可比较）
// 背景：批量地理编码前按结构相等去重，相同地址只发起一次远程查询；可直接作为 map 键。
// 约束：字段经裁剪、空白折叠与 NFC 归一化，空串视为缺省；全部缺省时构造失败；自由文本与结构化地址互不相等。
type AddressKey struct {
	country string
	state   string
	city    string
	county  string
	street  string
	text    string
}

func normalize(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// NewStructured：按 Country/State/City/County/Street 构造
func NewStructured(country, state, city, county, street string) (AddressKey, error) {
	k := AddressKey{
		country: normalize(country),
		state:   normalize(state),
		city:    normalize(city),
		county:  normalize(county),
		street:  normalize(street),
	}
	if k == (AddressKey{}) {
		return AddressKey{}, ErrEmptyAddress
	}
	return k, nil
}

// NewStructuredFields：按 AddressFields 顺序传入，缺省字段可省略
func NewStructuredFields(fields [5]string) (AddressKey, error) {
	return NewStructured(fields[0], fields[1], fields[2], fields[3], fields[4])
}

// NewFreeText：单一自由文本地址
func NewFreeText(text string) (AddressKey, error) {
	t := normalize(text)
	if t == "" {
		return AddressKey{}, ErrEmptyAddress
	}
	return AddressKey{text: t}, nil
}

// IsFreeText：是否为自由文本键
func (k AddressKey) IsFreeText() bool { return k.text != "" }

// Fields：结构化字段（顺序同 AddressFields）；自由文本键全部为空
func (k AddressKey) Fields() [5]string {
	return [5]string{k.country, k.state, k.city, k.county, k.street}
}

// String：展示文本；结构化地址以 ", " 连接非空字段
func (k AddressKey) String() string {
	if k.text != "" {
		return k.text
	}
	parts := make([]string, 0, 5)
	for _, f := range k.Fields() {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, ", ")
}

// CacheKey：跨进程缓存层使用的稳定字符串键
// 约束：结构化字段按 JSON 数组编码，字段内容含分隔符时也不会与其他地址冲突
func (k AddressKey) CacheKey() string {
	if k.text != "" {
		return "q:" + k.text
	}
	b, _ := json.Marshal(k.Fields())
	return "s:" + string(b)
}

// Query：上游检索参数；自由文本走 q，结构化地址逐字段传入
func (k AddressKey) Query() url.Values {
	q := url.Values{}
	if k.text != "" {
		q.Set("q", k.text)
		return q
	}
	for i, name := range []string{"country", "state", "city", "county", "street"} {
		if v := k.Fields()[i]; v != "" {
			q.Set(name, v)
		}
	}
	return q
}
