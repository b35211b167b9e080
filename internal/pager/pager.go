// 包 pager：分页词表接口的遍历客户端（信封格式 [ {page,pages}, [...] ]）
package pager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"geodata/internal/logger"
	"geodata/internal/metrics"
)

var ErrBadEnvelope = errors.New("paginated response is not a [meta, records] envelope")

// Meta：分页信封头部
type Meta struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

// 上游偶尔把数字编码成字符串
func (m *Meta) UnmarshalJSON(b []byte) error {
	var raw struct {
		Page  json.RawMessage `json:"page"`
		Pages json.RawMessage `json:"pages"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var err error
	if m.Page, err = looseInt(raw.Page); err != nil {
		return fmt.Errorf("page: %w", err)
	}
	if m.Pages, err = looseInt(raw.Pages); err != nil {
		return fmt.Errorf("pages: %w", err)
	}
	return nil
}

func looseInt(b json.RawMessage) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}
	return strconv.Atoi(strings.Trim(string(b), `"`))
}

// 文档注释：分页客户端
// 背景：词表类接口（如国家列表）按页返回，需要从第 1 页开始逐页请求直到 page >= pages。
// 约束：http.Client 由调用方注入；第一页失败视为初始化失败返回错误，后续页异常只记录日志并结束遍历。
type Client struct {
	http *http.Client
	log  *slog.Logger
}

func New(c *http.Client, l *slog.Logger) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{http: c, log: logger.Or(l)}
}

// FetchPage：请求单页，返回信封头与该页记录
func (c *Client) FetchPage(ctx context.Context, baseURL string, page int) (Meta, []json.RawMessage, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return Meta{}, nil, err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	if q.Get("format") == "" {
		q.Set("format", "json")
	}
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Meta{}, nil, err
	}
	metrics.PagerRequestsTotal.Inc()
	resp, err := c.http.Do(req)
	if err != nil {
		return Meta{}, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Meta{}, nil, fmt.Errorf("page %d: upstream status %d", page, resp.StatusCode)
	}
	var env []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Meta{}, nil, fmt.Errorf("page %d: %w", page, err)
	}
	if len(env) < 2 {
		return Meta{}, nil, fmt.Errorf("page %d: %w", page, ErrBadEnvelope)
	}
	var m Meta
	if err := json.Unmarshal(env[0], &m); err != nil {
		return Meta{}, nil, fmt.Errorf("page %d: %w", page, err)
	}
	var recs []json.RawMessage
	if string(env[1]) != "null" {
		if err := json.Unmarshal(env[1], &recs); err != nil {
			return Meta{}, nil, fmt.Errorf("page %d: %w", page, err)
		}
	}
	return m, recs, nil
}

// 文档注释：遍历全部分页
// 返回：按页顺序拼接的记录；第一页失败时返回错误。
// 约束：以本地页码与响应的 pages 比较决定终止，不依赖服务端回显的 page。
func (c *Client) FetchAll(ctx context.Context, baseURL string) ([]json.RawMessage, error) {
	var out []json.RawMessage
	for page := 1; ; page++ {
		m, recs, err := c.FetchPage(ctx, baseURL, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			c.log.Warn("pager_page_error", "url", baseURL, "page", page, "err", err)
			return out, nil
		}
		out = append(out, recs...)
		c.log.Debug("pager_page_ok", "url", baseURL, "page", m.Page, "pages", m.Pages, "records", len(recs))
		if page >= m.Pages {
			return out, nil
		}
	}
}
