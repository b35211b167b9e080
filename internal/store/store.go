// 包 store: 提供与 PostgreSQL 的数据访问层，包含地理编码结果持久化与统计读写
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"geodata/internal/geocode"
	"geodata/internal/geom"
	"geodata/internal/logger"
)

// Store: 数据库访问入口，持有连接池并实现 geocode.Cache
type Store struct {
	db *sql.DB
}

// AttachDB: 复用入口已打开的连接池（见 utils.OpenPostgres）
func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Name() string { return "postgres" }

// Get: 按缓存键读取已持久化的编码结果；不存在时 ok=false
func (s *Store) Get(ctx context.Context, key geocode.AddressKey) (geocode.Result, bool, error) {
	var r geocode.Result
	var raw []byte
	row := s.db.QueryRowContext(ctx, "SELECT lon, lat, geometry FROM _geocode_results WHERE cache_key=$1", key.CacheKey())
	if err := row.Scan(&r.Lon, &r.Lat, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.L().Debug("db_geocode_miss", "key", key.CacheKey())
			return geocode.Result{}, false, nil
		}
		return geocode.Result{}, false, err
	}
	var g geom.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return geocode.Result{}, false, err
	}
	r.Geometry = g
	logger.L().Debug("db_geocode_hit", "key", key.CacheKey())
	return r, true, nil
}

// Set: 写入或覆盖编码结果，同时记录地址明文便于排查
func (s *Store) Set(ctx context.Context, key geocode.AddressKey, r geocode.Result) error {
	raw, err := json.Marshal(r.Geometry)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO _geocode_results(cache_key, address, lon, lat, geometry)
        VALUES($1,$2,$3,$4,$5)
        ON CONFLICT (cache_key) DO UPDATE SET lon=EXCLUDED.lon, lat=EXCLUDED.lat, geometry=EXCLUDED.geometry, updated_at=now()`,
		key.CacheKey(), key.String(), r.Lon, r.Lat, raw)
	return err
}

// IncrStats: 一次批量编码后累加当日的查询与未命中计数
func (s *Store) IncrStats(ctx context.Context, lookups, unresolved int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO _geocode_stats_daily(day, lookups, unresolved) VALUES(current_date, $1, $2)
        ON CONFLICT (day) DO UPDATE SET lookups=_geocode_stats_daily.lookups+EXCLUDED.lookups, unresolved=_geocode_stats_daily.unresolved+EXCLUDED.unresolved`,
		lookups, unresolved)
	logger.L().Debug("stats_incr", "lookups", lookups, "unresolved", unresolved)
	return err
}

// Totals: 统计返回结构，包含累计与当日查询次数
type Totals struct {
	Total      int64 `json:"total"`
	Today      int64 `json:"today"`
	Unresolved int64 `json:"unresolved"`
}

// GetTotals: 读取累计与当日查询次数，用于接口返回
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(lookups),0), COALESCE(SUM(unresolved),0) FROM _geocode_stats_daily")
	if err := row.Scan(&t.Total, &t.Unresolved); err != nil {
		return nil, err
	}
	row2 := s.db.QueryRowContext(ctx, "SELECT lookups FROM _geocode_stats_daily WHERE day=current_date")
	_ = row2.Scan(&t.Today)
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today)
	return &t, nil
}
