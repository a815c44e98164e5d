package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/searchforge/fusion_engine/fuse"
	"github.com/searchforge/fusion_engine/internal/api"
	"github.com/searchforge/fusion_engine/internal/controller"
	"github.com/searchforge/fusion_engine/obs"
	"github.com/searchforge/fusion_engine/policy"
)

const (
	defaultPort         = 7070
	defaultBudgetMs     = 600
	defaultWorkers      = 4
	defaultMaxSources   = 1000
	defaultSampleRatio  = 0.3
	defaultLangfuseHost = "us.cloud.langfuse.com"
)

func main() {
	cfg := loadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	shutdown, err := obs.InitTracer("fusion-engine", cfg.TraceSampleRatio)
	if err != nil {
		log.Printf("obs: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Printf("tracer shutdown error: %v", err)
		}
	}()

	metrics := obs.NewMetrics()

	engineOpts := fuse.DefaultOptions()
	engineOpts.Workers = cfg.Workers
	engineOpts.Logger = logger
	floors := cfg.filter()

	ctrl, err := controller.New(controller.Config{
		Engine:          engineOpts,
		Filter:          &floors,
		DefaultBudgetMS: cfg.BudgetMs,
		MaxSources:      cfg.MaxSources,
		CacheTTL:        cfg.CacheTTL,
		PolicyVersion:   cfg.PolicyVersion,
		Rate: policy.RateLimitConfig{
			Capacity:     cfg.RateCapacity,
			RefillTokens: cfg.RateRefill,
			RefillEvery:  cfg.RateInterval,
		},
		Metrics:         metrics,
		Logger:          logger,
		LangfuseHost:    cfg.LangfuseHost,
		LangfuseProject: cfg.LangfuseProjectID,
	})
	if err != nil {
		log.Fatalf("controller: %v", err)
	}

	logger.Info("controller ready",
		slog.Int("max_sources", ctrl.MaxSources()),
		slog.Int("default_budget_ms", ctrl.DefaultBudgetMS()),
		slog.Int("workers", cfg.Workers),
	)

	router, err := api.NewRouter(ctrl, metrics)
	if err != nil {
		log.Fatalf("router: %v", err)
	}
	router.Handle("/metrics", metrics.Handler())

	root := chi.NewRouter()
	root.Mount("/", router)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("fusion engine listening on :%d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

type config struct {
	Port              int
	BudgetMs          int
	Workers           int
	MinPrimaryScore   float64
	MinSecondaryScore float64
	MinConfidence     float64
	CacheTTL          time.Duration
	RateCapacity      int
	RateRefill        int
	RateInterval      time.Duration
	MaxSources        int
	PolicyVersion     string
	TraceSampleRatio  float64
	LogLevel          slog.Level
	LangfuseHost      string
	LangfuseProjectID string
}

func loadConfig() config {
	floors := fuse.DefaultFilterConfig()
	return config{
		Port:              getEnvInt("PORT", defaultPort),
		BudgetMs:          getEnvInt("BUDGET_MS", defaultBudgetMs),
		Workers:           getEnvInt("FUSE_WORKERS", defaultWorkers),
		MinPrimaryScore:   getEnvFloor("MIN_PRIMARY_SCORE", floors.MinPrimaryScore),
		MinSecondaryScore: getEnvFloor("MIN_SECONDARY_SCORE", floors.MinSecondaryScore),
		MinConfidence:     getEnvFloor("MIN_CONFIDENCE", floors.MinConfidence),
		CacheTTL:          time.Duration(getEnvInt("CACHE_TTL_MS", 0)) * time.Millisecond,
		RateCapacity:      getEnvInt("RATE_CAPACITY", 50),
		RateRefill:        getEnvInt("RATE_REFILL", 10),
		RateInterval:      time.Duration(getEnvInt("RATE_INTERVAL_MS", 1000)) * time.Millisecond,
		MaxSources:        getEnvInt("MAX_SOURCES", defaultMaxSources),
		PolicyVersion:     getEnvStr("POLICY_VERSION", "v1"),
		TraceSampleRatio:  getEnvFloat("TRACE_SAMPLE_RATIO", defaultSampleRatio),
		LogLevel:          getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		LangfuseHost:      getEnvStr("LANGFUSE_HOST", defaultLangfuseHost),
		LangfuseProjectID: getEnvStr("LANGFUSE_PROJECT_ID", ""),
	}
}

func (c config) filter() fuse.FilterConfig {
	return fuse.FilterConfig{
		MinPrimaryScore:   c.MinPrimaryScore,
		MinSecondaryScore: c.MinSecondaryScore,
		MinConfidence:     c.MinConfidence,
	}
}

func getEnvStr(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// getEnvFloor is getEnvFloat for quality floors, where zero is a valid
// setting.
func getEnvFloor(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	var level slog.Level
	if value := os.Getenv(key); value != "" {
		if err := level.UnmarshalText([]byte(strings.ToUpper(value))); err == nil {
			return level
		}
	}
	return fallback
}
