package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"geodata/internal/geom"
	"geodata/internal/logger"
	"geodata/internal/metrics"
)

// DefaultNominatimURL：OpenStreetMap 公共检索服务
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Result：一次命中的经纬度与轮廓
type Result struct {
	Lon      float64       `json:"lon"`
	Lat      float64       `json:"lat"`
	Geometry geom.Geometry `json:"geometry"`
}

// Geocoder：单地址查询契约
// 约束：未命中返回 found=false 且 err=nil；传输或解析失败返回 err，由批量解析层降级为未命中
type Geocoder interface {
	Geocode(ctx context.Context, key AddressKey) (Result, bool, error)
}

// 文档注释：Nominatim 检索客户端
// 背景：调用 /search 接口，限制返回 1 条并要求附带简化后的 GeoJSON 边界；客户端显式构造并注入，便于测试替身。
// 约束：公共服务要求 User-Agent；未设置 http.Client 时使用 5s 超时的默认客户端。
type Nominatim struct {
	base      string
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

func NewNominatim(base string, client *http.Client, userAgent string, l *slog.Logger) *Nominatim {
	if base == "" {
		base = DefaultNominatimURL
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if userAgent == "" {
		userAgent = "geodata/1.0"
	}
	return &Nominatim{base: strings.TrimRight(base, "/"), client: client, userAgent: userAgent, log: logger.Or(l)}
}

// flexFloat：兼容数值与字符串两种经纬度编码
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("bad coordinate %s: %w", b, err)
	}
	*f = flexFloat(v)
	return nil
}

type searchHit struct {
	Lon     flexFloat `json:"lon"`
	Lat     flexFloat `json:"lat"`
	GeoJSON *struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geojson"`
}

// 文档注释：查询单个地址
// 返回：命中时为第一条结果；空数组视为未命中；非 200、传输失败与响应体无法解析都作为错误返回。
func (n *Nominatim) Geocode(ctx context.Context, key AddressKey) (Result, bool, error) {
	q := key.Query()
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("polygon_geojson", "1")
	q.Set("polygon_threshold", "0.5")
	u := n.base + "/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, false, err
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	t0 := time.Now()
	metrics.GeocodeRequestsTotal.Inc()
	n.log.Debug("geocode_req", "address", key.String())
	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn("geocode_http_error", "address", key.String(), "err", err)
		metrics.GeocodeFailTotal.Inc()
		return Result{}, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.GeocodeFailTotal.Inc()
		n.log.Warn("geocode_bad_status", "address", key.String(), "status", resp.StatusCode)
		return Result{}, false, fmt.Errorf("geocode %q: upstream status %d", key.String(), resp.StatusCode)
	}
	var hits []searchHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		metrics.GeocodeFailTotal.Inc()
		n.log.Warn("geocode_decode_error", "address", key.String(), "err", err)
		return Result{}, false, fmt.Errorf("geocode %q: %w", key.String(), err)
	}
	dur := time.Since(t0).Milliseconds()
	metrics.GeocodeDurationMs.Observe(float64(dur))
	if len(hits) == 0 {
		metrics.GeocodeNotFoundTotal.Inc()
		n.log.Info("geocode_not_found", "address", key.String(), "duration_ms", dur)
		return Result{}, false, nil
	}
	h := hits[0]
	res := Result{Lon: float64(h.Lon), Lat: float64(h.Lat)}
	var rings []geom.Ring
	if h.GeoJSON != nil {
		rings, err = parseRings(h.GeoJSON.Type, h.GeoJSON.Coordinates)
		if err != nil {
			metrics.GeocodeFailTotal.Inc()
			n.log.Warn("geocode_geometry_error", "address", key.String(), "type", h.GeoJSON.Type, "err", err)
			return Result{}, false, fmt.Errorf("geocode %q: %w", key.String(), err)
		}
	}
	if len(rings) == 0 {
		res.Geometry = geom.PointGeometry(res.Lon, res.Lat)
	} else if res.Geometry, err = geom.NewGeometry(rings); err != nil {
		return Result{}, false, err
	}
	metrics.GeocodeSuccessTotal.Inc()
	n.log.Debug("geocode_resp", "address", key.String(), "lon", res.Lon, "lat", res.Lat, "rings", res.Geometry.NumRings(), "duration_ms", dur)
	return res, true, nil
}

// 文档注释：解析 GeoJSON 坐标为环列表
// 背景：Polygon 为一组环（首环外环，其后为洞），MultiPolygon 为多组环；两者都展开为环列表。
// 约束：其他几何类型返回空，由调用方回退到单点环；点坐标不足两维时跳过；空环丢弃。
func parseRings(typ string, raw json.RawMessage) ([]geom.Ring, error) {
	var polys [][][][]float64
	switch strings.ToLower(typ) {
	case "polygon":
		var p [][][]float64
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		polys = [][][][]float64{p}
	case "multipolygon":
		if err := json.Unmarshal(raw, &polys); err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}
	var rings []geom.Ring
	for _, poly := range polys {
		for _, ring := range poly {
			var r geom.Ring
			for _, c := range ring {
				if len(c) < 2 {
					continue
				}
				r = append(r, geom.Point{X: c[0], Y: c[1]})
			}
			if len(r) > 0 {
				rings = append(rings, r)
			}
		}
	}
	return rings, nil
}
