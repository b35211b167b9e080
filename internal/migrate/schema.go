package migrate

import (
	"database/sql"

	"geodata/internal/logger"
)

// 背景：首次运行自动创建编码结果缓存表与统计表
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _geocode_results (
            cache_key TEXT PRIMARY KEY,
            address TEXT NOT NULL,
            lon DOUBLE PRECISION NOT NULL,
            lat DOUBLE PRECISION NOT NULL,
            geometry JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_geocode_updated ON _geocode_results(updated_at)`,
		`CREATE TABLE IF NOT EXISTS _geocode_stats_daily (
            day DATE PRIMARY KEY,
            lookups BIGINT NOT NULL DEFAULT 0,
            unresolved BIGINT NOT NULL DEFAULT 0
        )`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
