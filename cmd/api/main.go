package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appanalysis "github.com/bryanwahyu/motionspec/internal/application/analysis"
	"github.com/bryanwahyu/motionspec/internal/config"
	domain "github.com/bryanwahyu/motionspec/internal/domain/analysis"
	domhist "github.com/bryanwahyu/motionspec/internal/domain/history"
	"github.com/bryanwahyu/motionspec/internal/infra/ai/gemini"
	"github.com/bryanwahyu/motionspec/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/motionspec/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/motionspec/internal/infra/db/postgres"
	"github.com/bryanwahyu/motionspec/internal/infra/httpserver"
	"github.com/bryanwahyu/motionspec/internal/infra/probe"
	minioStore "github.com/bryanwahyu/motionspec/internal/infra/storage"
	"github.com/bryanwahyu/motionspec/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// init vision provider
	provider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("provider init error", zap.Error(err))
	}
	logger.Info("vision provider ready", zap.String("provider", provider.Name()))

	// init history repo (optional)
	checkers := map[string]middleware.HealthChecker{}
	var history domhist.Repository
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			logger.Fatal("mysql connect error", zap.Error(err))
		}
		defer db.Close()
		history = mysqlp.NewHistoryRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if err != nil {
			logger.Fatal("postgres connect error", zap.Error(err))
		}
		defer db.Close()
		history = postgresp.NewHistoryRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	default:
		logger.Info("running without history storage")
	}

	// init minio relay (optional)
	var blobs domain.BlobStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			logger.Fatal("minio init error", zap.Error(err))
		}
		blobs = store
		checkers["minio"] = middleware.CheckerFunc(store.Ping)
	} else {
		logger.Info("running without upload relay")
	}

	// init service
	limits := appanalysis.Limits{
		InlineMaxBytes:  cfg.Limits.InlineMaxBytes,
		PipelineTimeout: cfg.PipelineTimeout(),
		Pass1ContextMax: cfg.Limits.Pass1ContextMax,
		Pass2ContextMax: cfg.Limits.Pass2ContextMax,
		Pass3ContextMax: cfg.Limits.Pass3ContextMax,
	}
	svc := appanalysis.NewService(provider, appanalysis.DefaultTable(), limits, logger)

	// init metadata prober
	var prober domain.MetadataProber
	if p := probe.New(); p.Available() {
		prober = p
	} else {
		logger.Info("ffprobe not found, client metadata only")
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	mux.Use(middleware.Logging(logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys, cfg.Auth.AllowAnonymous))
	mux.Use(middleware.RateLimitMiddleware(cfg.Limits.RateCapacity, cfg.Limits.RateRefillPerSec))

	mux.Get("/health", middleware.HealthHandler(checkers))
	mux.Get("/metrics", middleware.MetricsHandler)
	mux.Mount("/", httpserver.NewRouter(svc, history, blobs, appanalysis.NoopLedger{}, prober, logger))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		// no WriteTimeout: streaming runs can hold the response open for
		// minutes, bounded by the pipeline timeout instead
		IdleTimeout: 60 * time.Second,
	}

	// run server
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Log.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Log.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

func buildProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.VisionProvider, error) {
	switch cfg.Provider.Backend {
	case "gemini":
		if cfg.Provider.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini backend selected but geminiApiKey is empty")
		}
		return gemini.NewClient(ctx, cfg.Provider.GeminiAPIKey, logger)
	case "openai":
		if cfg.Provider.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai backend selected but openaiApiKey is empty")
		}
		return openai.NewClient(cfg.Provider.OpenAIAPIKey, cfg.Provider.OpenAIBaseURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider backend %q", cfg.Provider.Backend)
	}
}
