// 包 api：数据集目录的 JSON HTTP 接口
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"geodata/internal/catalog"
	"geodata/internal/colops"
	"geodata/internal/dataset"
	"geodata/internal/geom"
	"geodata/internal/logger"
	"geodata/internal/middleware"
	"geodata/internal/plugins"
	"geodata/internal/store"
	"geodata/internal/transform"
)

// maxBodyBytes：请求体上限
const maxBodyBytes = 1 << 20

// TotalsReader：统计查询接口，由 store.Store 实现
type TotalsReader interface {
	GetTotals(ctx context.Context) (*store.Totals, error)
}

// 文档注释：HTTP 接口服务
// 背景：把 Catalog 的注册/加载/变换/地理编码/渲染能力暴露为 JSON 接口；路由挂载位置由入口决定。
// 约束：地理编码接口单独限流，其余接口不限流；stats 为空时 /stats 返回 503。
type Server struct {
	cat        *catalog.Catalog
	stats      TotalsReader
	log        *slog.Logger
	geocodeQPS int
}

type Option func(*Server)

func WithTotals(t TotalsReader) Option { return func(s *Server) { s.stats = t } }

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.log = l } }

// WithGeocodeRateLimit：qps<=0 表示不限流
func WithGeocodeRateLimit(qps int) Option { return func(s *Server) { s.geocodeQPS = qps } }

func New(cat *catalog.Catalog, opts ...Option) *Server {
	s := &Server{cat: cat}
	for _, o := range opts {
		o(s)
	}
	s.log = logger.Or(s.log)
	return s
}

// Routes：生成路由表
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/stats", s.handleStats)

	r.Route("/datasets", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/load", s.handleLoad)
		r.Post("/filter-range", s.handleFilterRange)
		r.Post("/filter-set", s.handleFilterSet)
		r.Post("/sort", s.handleSort)
		r.With(middleware.RateLimit(s.geocodeQPS)).Post("/geocode", s.handleGeocode)
		r.Get("/{name}", s.handleGet)
		r.Delete("/{name}", s.handleDelete)
		r.Get("/{name}/configs/filter", s.handleFilterConfigs)
		r.Get("/{name}/configs/sort", s.handleSortConfigs)
		r.Get("/{name}/configs/geocode", s.handleGeocodeConfigs)
		r.Get("/{name}/configs/display/{plugin}", s.handleDisplayConfigs)
		r.Post("/{name}/configs/selections", s.handleSelectionChoices)
	})

	r.Route("/plugins", func(r chi.Router) {
		r.Get("/", s.handlePlugins)
		r.Get("/sources/{plugin}/inputs", s.handleSourceInputs)
	})
	r.Post("/render", s.handleRender)
	return r
}

// writeJSON：统一 JSON 输出头，结果不允许缓存
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusOf：错误到状态码的映射；调用方可修正的错误为 4xx
func statusOf(err error) int {
	switch {
	case errors.Is(err, catalog.ErrDatasetNotFound), errors.Is(err, catalog.ErrPluginNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrEmptyName),
		errors.Is(err, catalog.ErrEmptyLabel),
		errors.Is(err, catalog.ErrMissingSelection),
		errors.Is(err, transform.ErrLabelNotFound),
		errors.Is(err, colops.ErrUnsupportedType),
		errors.Is(err, colops.ErrUnknownOperator),
		errors.Is(err, colops.ErrBadLiteral),
		errors.Is(err, dataset.ErrEmptyLabel),
		errors.Is(err, dataset.ErrInvalidType),
		errors.Is(err, dataset.ErrSizeMismatch),
		errors.Is(err, geom.ErrNoRings),
		errors.Is(err, geom.ErrEmptyRing),
		dataset.IsValidation(err),
		plugins.IsArgument(err):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("api_error", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

// decode：限制请求体大小并拒绝未知字段
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// queryBool：缺省或无法解析时为 false
func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
