package utils

import (
	"database/sql"

	"geodata/internal/config"

	_ "github.com/lib/pq"
)

// OpenPostgres：按配置打开连接池；未启用时返回 nil
// 约束：sql.Open 不建立连接，调用方需 Ping 确认可用
func OpenPostgres(c config.Config) (*sql.DB, error) {
	if !c.PGEnabled {
		return nil, nil
	}
	db, err := sql.Open("postgres", c.PostgresDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	return db, nil
}
