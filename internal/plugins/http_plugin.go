package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"geodata/internal/dataset"
)

// 文档注释：外部 HTTP 数据源适配器
// 背景：为第三方数据源提供进程外接入方式，通过简单 HTTP 契约实现配置描述、加载与心跳。
// 约束：约定 GET /health、GET /inputs 与 POST /load 接口；/load 请求体为 Params 的 JSON，响应为
// {"labels":[...],"types":["Integer",...],"rows":[[...]]}，单元格可为 JSON 数值或字符串；主服务设置超时。
type HTTPSource struct {
	name     string
	endpoint string
	client   *http.Client
}

func NewHTTP(name, endpoint string) *HTTPSource {
	return &HTTPSource{name: name, endpoint: endpoint, client: &http.Client{Timeout: 10 * time.Second}}
}

func (h *HTTPSource) Name() string { return h.name }

// 文档注释：心跳检测
// 背景：访问 /health 用于探测可用性；非 200 视为不可用以便熔断。
func (h *HTTPSource) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s health: status %d", h.name, resp.StatusCode)
	}
	return nil
}

// InputSpec：读取 /inputs；失败时返回空列表
func (h *HTTPSource) InputSpec() []InputConfig {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/inputs", nil)
	if err != nil {
		return nil
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	var raw []InputConfig
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&raw) != nil {
		return nil
	}
	out := make([]InputConfig, len(raw))
	for i, c := range raw {
		out[i] = NewInput(c.Name, c.Kind, c.Choices)
	}
	return out
}

type wireTable struct {
	Labels []string            `json:"labels"`
	Types  []dataset.Type      `json:"types"`
	Rows   [][]json.RawMessage `json:"rows"`
}

// 文档注释：加载数据
// 背景：POST /load 并把返回的宽松 JSON 单元格按列类型转换；4xx 视为参数错误，其余失败作为普通错误返回。
func (h *HTTPSource) Load(ctx context.Context, params Params) (*dataset.Table, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+"/load", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		var m struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&m)
		return nil, ArgumentErrorf(h.name, "%s", m.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s load: status %d", h.name, resp.StatusCode)
	}
	var wt wireTable
	if err := json.NewDecoder(resp.Body).Decode(&wt); err != nil {
		return nil, fmt.Errorf("%s load: %w", h.name, err)
	}
	rows := make([][]any, len(wt.Rows))
	for i, r := range wt.Rows {
		row := make([]any, len(r))
		for j, cell := range r {
			if j >= len(wt.Types) {
				break
			}
			v, err := decodeCell(wt.Types[j], cell)
			if err != nil {
				return nil, &dataset.ValidationError{Row: i, Col: j, Msg: err.Error()}
			}
			row[j] = v
		}
		rows[i] = row
	}
	return dataset.New(wt.Labels, wt.Types, rows)
}

func decodeCell(t dataset.Type, raw json.RawMessage) (any, error) {
	if t == dataset.Polygon {
		return ParseCell(t, string(raw))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	if t == dataset.String {
		return s, nil
	}
	if t == dataset.Integer {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			s = strconv.FormatInt(int64(f), 10)
		}
	}
	return ParseCell(t, s)
}
