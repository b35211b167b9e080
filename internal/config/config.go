// 包 config：集中读取环境变量并提供默认值，入口只负责 godotenv 加载
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// 文档注释：进程配置
// 背景：原先散落在入口中的 os.Getenv 调用收拢到此处，便于校验与测试；各字段默认值与部署文档保持一致。
// 约束：Load 不做校验，调用方需显式调用 Validate。
type Config struct {
	Addr    string
	APIBase string

	NominatimURL       string
	NominatimUserAgent string
	GeocodeTimeout     time.Duration
	GeocodeMaxInFlight int
	GeocodeCacheSize   int
	GeocodeCacheTTL    time.Duration

	RedisEnabled bool
	RedisHost    string
	RedisPort    string
	RedisPass    string
	RedisDB      int

	PGEnabled  bool
	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDB       string
	PGSSLMode  string

	WorldBankEnabled bool
	WorldBankURL     string
	FileSourceDir    string

	ExtPluginName     string
	ExtPluginEndpoint string

	RateLimitEnabled bool
	RateLimitQPS     int
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// getduration：接受 "5s" 形式或纯秒数
func getduration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

// Load：从环境变量读取配置，解析失败的数值项回退到默认值
func Load() Config {
	return Config{
		Addr:               getenv("ADDR", ":8080"),
		APIBase:            strings.TrimRight(getenv("API_BASE", "/api"), "/"),
		NominatimURL:       getenv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		NominatimUserAgent: getenv("NOMINATIM_USER_AGENT", "geodata/1.0"),
		GeocodeTimeout:     getduration("GEOCODE_TIMEOUT", 5*time.Second),
		GeocodeMaxInFlight: getint("GEOCODE_MAX_INFLIGHT", 0),
		GeocodeCacheSize:   getint("GEOCODE_CACHE_SIZE", 4096),
		GeocodeCacheTTL:    time.Duration(getint("GEOCODE_CACHE_TTL_S", 3600)) * time.Second,
		RedisEnabled:       getbool("REDIS_ENABLED", false),
		RedisHost:          getenv("REDIS_HOST", "127.0.0.1"),
		RedisPort:          getenv("REDIS_PORT", "6379"),
		RedisPass:          os.Getenv("REDIS_PASS"),
		RedisDB:            getint("REDIS_DB", 0),
		PGEnabled:          getbool("PG_ENABLED", false),
		PGHost:             getenv("PG_HOST", "localhost"),
		PGPort:             getenv("PG_PORT", "5432"),
		PGUser:             getenv("PG_USER", "postgres"),
		PGPassword:         os.Getenv("PG_PASSWORD"),
		PGDB:               getenv("PG_DB", "geodata"),
		PGSSLMode:          getenv("PG_SSLMODE", "disable"),
		WorldBankEnabled:   getbool("WORLDBANK_ENABLED", false),
		WorldBankURL:       getenv("WORLDBANK_URL", "https://api.worldbank.org/v2"),
		FileSourceDir:      getenv("FILESOURCE_DIR", "data"),
		ExtPluginName:      getenv("EXT_PLUGIN_NAME", "external"),
		ExtPluginEndpoint:  strings.TrimRight(os.Getenv("EXT_PLUGIN_ENDPOINT"), "/"),
		RateLimitEnabled:   getbool("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:       getint("RATE_LIMIT_QPS", 200),
	}
}

// Validate：拒绝明显无效的取值，错误信息带上环境变量名
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("ADDR must not be empty"))
	}
	if c.APIBase != "" && !strings.HasPrefix(c.APIBase, "/") {
		errs = append(errs, fmt.Errorf("API_BASE must start with '/': %q", c.APIBase))
	}
	if !strings.HasPrefix(c.NominatimURL, "http://") && !strings.HasPrefix(c.NominatimURL, "https://") {
		errs = append(errs, fmt.Errorf("NOMINATIM_URL must be an http(s) URL: %q", c.NominatimURL))
	}
	if c.GeocodeTimeout <= 0 {
		errs = append(errs, errors.New("GEOCODE_TIMEOUT must be positive"))
	}
	if c.GeocodeMaxInFlight < 0 {
		errs = append(errs, errors.New("GEOCODE_MAX_INFLIGHT must be >= 0"))
	}
	if c.GeocodeCacheSize < 0 {
		errs = append(errs, errors.New("GEOCODE_CACHE_SIZE must be >= 0"))
	}
	if c.RateLimitEnabled && c.RateLimitQPS <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_QPS must be positive when RATE_LIMIT_ENABLED"))
	}
	if c.ExtPluginEndpoint != "" && !strings.HasPrefix(c.ExtPluginEndpoint, "http://") && !strings.HasPrefix(c.ExtPluginEndpoint, "https://") {
		errs = append(errs, fmt.Errorf("EXT_PLUGIN_ENDPOINT must be an http(s) URL: %q", c.ExtPluginEndpoint))
	}
	if c.RedisDB < 0 {
		errs = append(errs, errors.New("REDIS_DB must be >= 0"))
	}
	return errors.Join(errs...)
}

// RedisAddr：host:port
func (c Config) RedisAddr() string { return c.RedisHost + ":" + c.RedisPort }

// PostgresDSN：拼接 lib/pq 可识别的 URL 形式 DSN
func (c Config) PostgresDSN() string {
	dsn := "postgres://" + c.PGUser
	if c.PGPassword != "" {
		dsn += ":" + c.PGPassword
	}
	dsn += "@" + c.PGHost + ":" + c.PGPort + "/" + c.PGDB + "?sslmode=" + c.PGSSLMode
	return dsn
}
