package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docveil/docveil/internal/cache"
	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/export"
	"github.com/docveil/docveil/internal/filter"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/pattern"
	"github.com/docveil/docveil/internal/pipeline"
	"github.com/docveil/docveil/internal/recognizer"
	"github.com/docveil/docveil/internal/rules"
	"github.com/docveil/docveil/internal/server"
	"github.com/docveil/docveil/internal/websocket"
	"go.uber.org/zap"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("docveil %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}

	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting docveil",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// WebSocket hub
	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(&websocket.HubConfig{
			BroadcastProgress:    cfg.WebSocket.Events.BroadcastProgress,
			BroadcastDetections:  cfg.WebSocket.Events.BroadcastDetections,
			BroadcastSystem:      cfg.WebSocket.Events.BroadcastSystem,
			BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
			AllowedOrigins:       cfg.WebSocket.AllowedOrigins,
		}, log.Logger)
	}

	// Pattern detectors
	var detector *pattern.Detector
	if cfg.Detection.Enabled {
		detector, err = pattern.New(cfg.Detection, log)
		if err != nil {
			log.Fatal("Failed to build pattern detectors", zap.Error(err))
		}
	}

	// ML recognizer: constructed now, loaded in the background so the server
	// can start serving pattern detections immediately.
	var adapter *recognizer.Adapter
	if cfg.Recognizer.Enabled {
		adapter = recognizer.New(recognizer.Config{
			ModelName:     cfg.Recognizer.ModelName,
			ModelURL:      cfg.Recognizer.ModelURL,
			CacheDir:      cfg.Recognizer.CacheDir,
			AutoDownload:  cfg.Recognizer.AutoDownload,
			MaxLength:     cfg.Recognizer.MaxLength,
			MaxChunkChars: cfg.Recognizer.MaxChunkChars,
			DetectTimeout: cfg.Recognizer.DetectTimeout,
			MinConfidence: cfg.Recognizer.MinConfidence,
		}, log.Logger)
		go initRecognizer(adapter, hub, log)
		defer adapter.Close()
	}

	// Organization false-positive filter
	orgFilter := loadOrgFilter(cfg, log)

	// Custom rules store
	rulesStore, err := newRulesStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize rules store", zap.Error(err))
	}
	defer rulesStore.Close()

	// Detection result cache
	var resultCache *cache.ResultCache
	if cfg.Cache.Enabled {
		resultCache, err = cache.NewResultCache(&cache.Config{
			Addr:       cfg.Cache.Addr,
			Password:   cfg.Cache.Password,
			DB:         cfg.Cache.DB,
			DefaultTTL: cfg.Cache.TTL,
		}, log.Logger)
		if err != nil {
			// The cache is an accelerator, not a dependency.
			log.Warn("Result cache unavailable, continuing without it", zap.Error(err))
			resultCache = nil
		} else {
			defer resultCache.Close()
		}
	}

	var rec pipeline.Recognizer
	if adapter != nil {
		rec = adapter
	}
	pipe, err := pipeline.New(pipeline.Options{
		Detector:   detector,
		Recognizer: rec,
		OrgFilter:  orgFilter,
		RulesStore: rulesStore,
		Cache:      resultCache,
		Hub:        hub,
	}, log.Logger)
	if err != nil {
		log.Fatal("Failed to assemble detection pipeline", zap.Error(err))
	}

	var exporter *export.Writer
	if cfg.Export.Enabled {
		if err := os.MkdirAll(cfg.Export.OutputDir, 0o755); err != nil {
			log.Fatal("Failed to create export directory", zap.Error(err))
		}
		exporter = export.NewWriter(log.Logger)
	}

	srv, err := server.New(cfg, log, server.Options{
		Pipeline:   pipe,
		RulesStore: rulesStore,
		Recognizer: adapter,
		Hub:        hub,
		Exporter:   exporter,
	})
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// initRecognizer loads the model in the background, broadcasting loading
// progress over the hub. Detection degrades to pattern matching until the
// model is ready, and stays degraded if loading fails.
func initRecognizer(adapter *recognizer.Adapter, hub *websocket.Hub, log *logger.Logger) {
	progress := func(pct int) {
		if hub == nil {
			return
		}
		hub.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypeModelProgress,
			Timestamp: time.Now(),
			Data: websocket.ModelProgressEvent{
				State:    adapter.State().String(),
				Progress: pct,
			},
		})
	}

	if err := adapter.Init(context.Background(), progress); err != nil {
		log.Warn("Recognizer initialization failed, serving pattern detection only",
			zap.Error(err))
		if hub != nil {
			hub.BroadcastEvent(websocket.Event{
				Type:      websocket.EventTypeModelProgress,
				Timestamp: time.Now(),
				Data: websocket.ModelProgressEvent{
					State:   adapter.State().String(),
					Message: err.Error(),
				},
			})
		}
		return
	}
	log.Info("Recognizer ready")
}

func loadOrgFilter(cfg *config.Config, log *logger.Logger) *filter.OrgFilter {
	if cfg.Filter.ListsPath == "" {
		return filter.New(log.Logger)
	}
	f, err := filter.Load(cfg.Filter.ListsPath, log.Logger)
	if err != nil {
		log.Warn("Failed to load filter lists, using built-in defaults",
			zap.String("path", cfg.Filter.ListsPath), zap.Error(err))
		return filter.New(log.Logger)
	}
	return f
}

func newRulesStore(cfg *config.Config, log *logger.Logger) (rules.Store, error) {
	if cfg.Rules.Backend == "postgres" {
		return rules.NewPostgresStore(&rules.Config{
			DatabaseURL:     cfg.Rules.DatabaseURL,
			MaxOpenConns:    cfg.Rules.MaxOpenConns,
			MaxIdleConns:    cfg.Rules.MaxIdleConns,
			ConnMaxLifetime: cfg.Rules.ConnMaxLifetime,
		}, log.Logger)
	}
	return rules.NewMemoryStore(), nil
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
