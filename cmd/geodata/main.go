// 程序入口：读取配置、装配地理编码缓存层与插件，启动数据集目录 API
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"geodata/internal/api"
	"geodata/internal/catalog"
	"geodata/internal/config"
	"geodata/internal/geocode"
	"geodata/internal/logger"
	"geodata/internal/metrics"
	"geodata/internal/migrate"
	"geodata/internal/plugins"
	"geodata/internal/plugins/filesource"
	"geodata/internal/plugins/tableview"
	"geodata/internal/plugins/worldbank"
	"geodata/internal/store"
	"geodata/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		l.Error("config_invalid", "err", err)
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.APIBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 缓存层顺序：进程内 LRU -> redis -> postgres，未启用的层直接跳过
	tiers := []geocode.Cache{geocode.NewLRU(cfg.GeocodeCacheSize, cfg.GeocodeCacheTTL)}

	rc := utils.OpenRedis(cfg)
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
		tiers = append(tiers, geocode.NewRedisCache(rc, "", cfg.GeocodeCacheTTL))
	}

	var st *store.Store
	db, err := utils.OpenPostgres(cfg)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	if db == nil {
		l.Info("db_disabled")
	} else {
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
			os.Exit(1)
		}
		l.Info("db_ping_ok")
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
		tiers = append(tiers, st)
	}

	nominatim := geocode.NewNominatim(cfg.NominatimURL, &http.Client{Timeout: cfg.GeocodeTimeout}, cfg.NominatimUserAgent, l)
	resolver := geocode.NewResolver(
		geocode.NewCached(nominatim, l, tiers...),
		geocode.WithMaxInFlight(cfg.GeocodeMaxInFlight),
		geocode.WithLogger(l),
	)

	// 文档注释：插件管理器初始化
	// 背景：内置数据源与展示插件在启动时注册；外部 HTTP 数据源按环境变量追加，后台心跳维护健康状态。
	pm := plugins.NewManager()
	pm.RegisterSource(filesource.New(cfg.FileSourceDir))
	pm.RegisterDisplay(tableview.New())
	if cfg.WorldBankEnabled {
		wb, err := worldbank.New(ctx, cfg.WorldBankURL, &http.Client{Timeout: 30 * time.Second}, l)
		if err != nil {
			l.Error("worldbank_bootstrap_error", "err", err)
			os.Exit(1)
		}
		pm.RegisterSource(wb)
	}
	if cfg.ExtPluginEndpoint != "" {
		pm.RegisterSource(plugins.NewHTTP(cfg.ExtPluginName, cfg.ExtPluginEndpoint))
	}
	pm.Start(ctx)

	opts := []catalog.Option{catalog.WithPlugins(pm), catalog.WithLogger(l)}
	apiOpts := []api.Option{api.WithLogger(l)}
	if st != nil {
		opts = append(opts, catalog.WithStats(st))
		apiOpts = append(apiOpts, api.WithTotals(st))
	}
	if cfg.RateLimitEnabled {
		apiOpts = append(apiOpts, api.WithGeocodeRateLimit(cfg.RateLimitQPS))
	}
	cat := catalog.New(resolver, opts...)

	routes := api.New(cat, apiOpts...).Routes()
	routes.Handle("/metrics", metrics.Handler())
	base := cfg.APIBase
	if base == "" {
		base = "/"
	}
	root := chi.NewRouter()
	root.Use(logger.AccessMiddleware(l))
	root.Mount(base, routes)

	s := &http.Server{Addr: cfg.Addr, Handler: root, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()
	l.Info("listening", "addr", cfg.Addr, "base", cfg.APIBase)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_ok")
}
