package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_api_requests_total",
		Help: "Total number of API requests by route",
	}, []string{"route"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geodata_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	})
	GeocodeRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geodata_geocode_requests_total",
		Help: "Total upstream geocoding lookups",
	})
	GeocodeSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geodata_geocode_success_total",
		Help: "Total upstream geocoding lookups that found a match",
	})
	GeocodeNotFoundTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geodata_geocode_not_found_total",
		Help: "Total upstream geocoding lookups without a match",
	})
	GeocodeFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geodata_geocode_fail_total",
		Help: "Total upstream geocoding lookups failed by transport or decode errors",
	})
	GeocodeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geodata_geocode_duration_ms",
		Help:    "Upstream geocoding call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	})
	GeocodeBatchKeys = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geodata_geocode_batch_distinct_keys",
		Help:    "Distinct address keys per resolved batch",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
	})
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_geocode_cache_hits_total",
		Help: "Geocode cache hits by tier",
	}, []string{"tier"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_geocode_cache_misses_total",
		Help: "Geocode cache misses by tier",
	}, []string{"tier"})
	PagerRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geodata_pager_requests_total",
		Help: "Total paginated upstream page requests",
	})
	DatasetsRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geodata_datasets_registered",
		Help: "Number of datasets currently in the catalog",
	})
	DatasetEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_dataset_events_total",
		Help: "Dataset lifecycle events by kind",
	}, []string{"event"})
	PipelineMaterializeTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geodata_pipeline_materialize_total",
		Help: "Total pipeline materialisations",
	})
	PluginLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_plugin_loads_total",
		Help: "Source plugin loads by plugin and status",
	}, []string{"plugin", "status"})
	ListenerPanicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geodata_listener_panics_total",
		Help: "Lifecycle listeners that panicked while being notified",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(GeocodeSuccessTotal)
	prometheus.MustRegister(GeocodeNotFoundTotal)
	prometheus.MustRegister(GeocodeFailTotal)
	prometheus.MustRegister(GeocodeDurationMs)
	prometheus.MustRegister(GeocodeBatchKeys)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(PagerRequestsTotal)
	prometheus.MustRegister(DatasetsRegistered)
	prometheus.MustRegister(DatasetEventsTotal)
	prometheus.MustRegister(PipelineMaterializeTotal)
	prometheus.MustRegister(PluginLoadsTotal)
	prometheus.MustRegister(ListenerPanicsTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在 API 路由中挂载。
func Handler() http.Handler { return promhttp.Handler() }
