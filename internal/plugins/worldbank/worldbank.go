// 包 worldbank：World Bank 开放数据指标源（国家 x 指标 x 年份）
package worldbank

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"geodata/internal/dataset"
	"geodata/internal/logger"
	"geodata/internal/pager"
	"geodata/internal/plugins"
)

const (
	Name      = "World Bank Open Data"
	Country   = "Country / District"
	Topic     = "Topic"
	StartYear = "Start Year"
	EndYear   = "End Year"

	firstYear = 1960
	lastYear  = 2023
)

// Topics：可选指标名称到指标代码
var Topics = map[string]string{
	"CO2 emissions (metric tons per capita)":  "EN.ATM.CO2E.PC",
	"Forest area (% of land area)":            "AG.LND.FRST.ZS",
	"GDP (current US$)":                       "NY.GDP.MKTP.CD",
	"Life expectancy at birth, total (years)": "SP.DYN.LE00.IN",
	"Population, total":                       "SP.POP.TOTL",
	"School enrollment, primary (% gross)":    "SE.PRM.ENRR",
}

// 文档注释：World Bank 数据源
// 背景：构造时通过分页接口拉取国家词表（剔除 Aggregates 区域），加载时按 国家 x 指标 并发抓取并合并为 (国家, 年份) 行。
// 约束：词表拉取失败即构造失败；单个抓取任务失败只记录日志，对应格子保持缺省值 0。
type Source struct {
	base      string
	pg        *pager.Client
	countries map[string]string
	names     []string
	maxTasks  int
	log       *slog.Logger
}

type countryInfo struct {
	Name     string `json:"name"`
	ISO2Code string `json:"iso2Code"`
	Region   struct {
		Value string `json:"value"`
	} `json:"region"`
}

// New：拉取国家词表；失败为初始化级错误
func New(ctx context.Context, base string, client *http.Client, l *slog.Logger) (*Source, error) {
	s := &Source{
		base:      strings.TrimRight(base, "/"),
		pg:        pager.New(client, l),
		countries: make(map[string]string),
		maxTasks:  8,
		log:       logger.Or(l),
	}
	recs, err := s.pg.FetchAll(ctx, s.base+"/country?per_page=300")
	if err != nil {
		return nil, fmt.Errorf("worldbank bootstrap: %w", err)
	}
	for _, r := range recs {
		var ci countryInfo
		if err := json.Unmarshal(r, &ci); err != nil {
			s.log.Warn("worldbank_country_decode_error", "err", err)
			continue
		}
		if ci.Region.Value == "Aggregates" || ci.Name == "" || ci.ISO2Code == "" {
			continue
		}
		s.countries[ci.Name] = ci.ISO2Code
	}
	for n := range s.countries {
		s.names = append(s.names, n)
	}
	slices.Sort(s.names)
	s.log.Info("worldbank_bootstrap_ok", "countries", len(s.names))
	return s, nil
}

func (s *Source) Name() string { return Name }

func (s *Source) InputSpec() []plugins.InputConfig {
	topics := make([]string, 0, len(Topics))
	for t := range Topics {
		topics = append(topics, t)
	}
	slices.Sort(topics)
	years := make([]string, 0, lastYear-firstYear+1)
	for y := lastYear; y >= firstYear; y-- {
		years = append(years, strconv.Itoa(y))
	}
	return []plugins.InputConfig{
		plugins.NewInput(Country, plugins.Multi, s.names),
		plugins.NewInput(Topic, plugins.Multi, topics),
		plugins.NewInput(StartYear, plugins.Single, years),
		plugins.NewInput(EndYear, plugins.Single, years),
	}
}

// Heartbeat：请求国家词表第一页
func (s *Source) Heartbeat(ctx context.Context) error {
	_, _, err := s.pg.FetchPage(ctx, s.base+"/country?per_page=1", 1)
	return err
}

type statistic struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

type point struct {
	year  int64
	value float64
}

// task：单个 (国家, 指标) 抓取任务的本地结果
type task struct {
	country string
	slot    int
	code    string
	topic   string
	points  []point
}

type rowKey struct {
	country string
	year    int64
}

// 文档注释：加载指标数据
// 背景：每个 (国家, 指标) 一个任务，结果写入任务自身的切片；全部完成后单线程归并，同一 (国家, 年份, 指标) 后写覆盖先写。
// 返回：列为 Country(String)、Year(Integer) 与每个指标一列(Double)，行按国家、年份排序。
func (s *Source) Load(ctx context.Context, params plugins.Params) (*dataset.Table, error) {
	start, end := params.First(StartYear), params.First(EndYear)
	if start == "" || end == "" {
		return nil, plugins.ArgumentErrorf(Name, "choose %s and %s first", StartYear, EndYear)
	}
	sy, err1 := strconv.Atoi(start)
	ey, err2 := strconv.Atoi(end)
	if err1 != nil || err2 != nil {
		return nil, plugins.ArgumentErrorf(Name, "years must be numeric")
	}
	if sy > ey {
		return nil, plugins.ArgumentErrorf(Name, "start year must not be after end year")
	}
	countries := params[Country]
	if len(countries) == 0 {
		return nil, plugins.ArgumentErrorf(Name, "choose countries first")
	}
	topics := params[Topic]
	if len(topics) == 0 {
		return nil, plugins.ArgumentErrorf(Name, "choose topics first")
	}

	var tasks []*task
	for _, c := range countries {
		code, ok := s.countries[c]
		if !ok {
			return nil, plugins.ArgumentErrorf(Name, "unknown country %q", c)
		}
		for j, t := range topics {
			ind, ok := Topics[t]
			if !ok {
				return nil, plugins.ArgumentErrorf(Name, "unknown topic %q", t)
			}
			tasks = append(tasks, &task{country: c, slot: j, code: code, topic: ind})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxTasks)
	for _, t := range tasks {
		g.Go(func() error {
			t.points = s.fetch(gctx, t, sy, ey)
			return nil
		})
	}
	_ = g.Wait()

	merged := make(map[rowKey][]float64)
	for _, t := range tasks {
		for _, p := range t.points {
			k := rowKey{country: t.country, year: p.year}
			slots, ok := merged[k]
			if !ok {
				slots = make([]float64, len(topics))
				merged[k] = slots
			}
			slots[t.slot] = p.value
		}
	}
	keys := make([]rowKey, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b rowKey) int {
		if c := cmp.Compare(a.country, b.country); c != 0 {
			return c
		}
		return cmp.Compare(a.year, b.year)
	})
	rows := make([][]any, len(keys))
	for i, k := range keys {
		row := make([]any, 0, 2+len(topics))
		row = append(row, k.country, k.year)
		for _, v := range merged[k] {
			row = append(row, v)
		}
		rows[i] = row
	}
	labels := append([]string{"Country", "Year"}, topics...)
	types := []dataset.Type{dataset.String, dataset.Integer}
	for range topics {
		types = append(types, dataset.Double)
	}
	return dataset.New(labels, types, rows)
}

func (s *Source) fetch(ctx context.Context, t *task, sy, ey int) []point {
	u := fmt.Sprintf("%s/country/%s/indicator/%s?date=%d:%d", s.base, url.PathEscape(t.code), url.PathEscape(t.topic), sy, ey)
	recs, err := s.pg.FetchAll(ctx, u)
	if err != nil {
		s.log.Warn("worldbank_fetch_error", "country", t.country, "indicator", t.topic, "err", err)
		return nil
	}
	var out []point
	for _, r := range recs {
		var st statistic
		if err := json.Unmarshal(r, &st); err != nil || st.Value == nil {
			continue
		}
		y, err := strconv.ParseInt(st.Date, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, point{year: y, value: *st.Value})
	}
	return out
}
