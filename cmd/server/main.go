package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	gcsstorage "cloud.google.com/go/storage"
	"github.com/rs/cors"
	"github.com/vitalis-health/vitalis/backend/internal/analysis"
	"github.com/vitalis-health/vitalis/backend/internal/auth"
	"github.com/vitalis-health/vitalis/backend/internal/cache"
	"github.com/vitalis-health/vitalis/backend/internal/config"
	"github.com/vitalis-health/vitalis/backend/internal/extraction"
	"github.com/vitalis-health/vitalis/backend/internal/logging"
	"github.com/vitalis-health/vitalis/backend/internal/search"
	"github.com/vitalis-health/vitalis/backend/internal/service"
	"github.com/vitalis-health/vitalis/backend/internal/store"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "vitalis-api")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize context
	ctx := context.Background()

	var opts []service.Option
	opts = append(opts, service.WithLogger(logger))

	if cfg.Store.Backend == config.StoreMemory {
		logger.Info("Using in-memory store for local development")
		opts = append(opts, service.WithStore(store.NewMemoryStore()))
	} else {
		firestoreClient, err := firestore.NewClient(ctx, cfg.Store.ProjectID)
		if err != nil {
			logger.Fatal("Failed to create Firestore client", zap.Error(err))
		}
		defer firestoreClient.Close()
		opts = append(opts, service.WithStore(store.NewFirestoreStore(firestoreClient)))
	}

	if cfg.Store.DocumentBucket != "" {
		storageClient, err := gcsstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("Failed to create Cloud Storage client", zap.Error(err))
		}
		defer storageClient.Close()
		opts = append(opts, service.WithArchive(store.NewGCSArchive(storageClient.Bucket(cfg.Store.DocumentBucket))))
		logger.Info("Archiving documents to Cloud Storage", zap.String("bucket", cfg.Store.DocumentBucket))
	} else if cfg.Store.Backend == config.StoreMemory {
		opts = append(opts, service.WithArchive(store.NewMemoryArchive()))
	}

	if cfg.Algolia.AppID != "" && cfg.Algolia.APIKey != "" {
		index, err := search.NewAlgoliaIndex(search.Config{
			AppID:     cfg.Algolia.AppID,
			APIKey:    cfg.Algolia.APIKey,
			IndexName: cfg.Algolia.IndexName,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create Algolia client", zap.Error(err))
		}
		opts = append(opts, service.WithSearchIndex(index))
		logger.Info("Report search enabled", zap.String("index", cfg.Algolia.IndexName))
	}

	analyzerOpts := []analysis.Option{
		analysis.WithLogger(logger),
		analysis.WithLimiter(analysis.NewLimiter(cfg.AI.RequestsPerMinute)),
		analysis.WithRetryConfig(cfg.RetryConfig()),
	}
	if cfg.Redis.Addr != "" {
		redisClient := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer redisClient.Close()
		if err := cache.Ping(ctx, redisClient); err != nil {
			logger.Warn("Redis unreachable, analysis cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			analyzerOpts = append(analyzerOpts, analysis.WithCache(cache.NewRedisCache(cache.NewRedisKV(redisClient), cfg.Redis.TTL, logger)))
		}
	}

	completer, err := analysis.NewCompleter(cfg.AnalysisConfig(), logger)
	if err != nil {
		logger.Warn("AI analysis disabled, using rule-based analysis only", zap.Error(err))
	} else {
		logger.Info("AI analysis enabled", zap.String("model", completer.Name()))
	}
	analyzer := analysis.NewAnalyzer(completer, analyzerOpts...)

	var recognizer extraction.TextRecognizer
	if cfg.OCRServiceURL != "" {
		recognizer = extraction.NewHTTPRecognizer(cfg.OCRServiceURL, logger)
	}
	decoder := extraction.NewDecoder(recognizer, cfg.MaxUploadBytes, logger)
	if recognizer != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := decoder.CheckRecognizer(checkCtx); err != nil {
			logger.Warn("OCR service not ready; image uploads will fail until it is", zap.String("url", cfg.OCRServiceURL), zap.Error(err))
		} else {
			logger.Info("OCR service ready", zap.String("url", cfg.OCRServiceURL))
		}
		cancel()
	}

	reportService := service.NewReportService(decoder, analyzer, opts...)
	var handler http.Handler = service.NewHTTPHandler(reportService, logger).Routes()

	if cfg.UseLocalAuth() {
		// For local development without auth, add a mock user context
		logger.Warn("Using mock authentication", zap.String("user_id", auth.LocalDevUserID))
		handler = auth.LocalDevMiddleware()(handler)
	} else {
		firebaseAuth, err := auth.NewFirebaseAuth(ctx, cfg.Store.ProjectID)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase Auth", zap.Error(err))
		}
		handler = auth.Middleware(firebaseAuth, logger)(handler)
	}

	// Set up CORS
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"User-Agent",
			auth.ImpersonateHeader,
		},
		AllowCredentials: true,
	})

	// Create HTTP/2 server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: h2c.NewHandler(c.Handler(handler), &http2.Server{}),
	}

	logger.Info("Starting server",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("store", cfg.Store.Backend),
		zap.Int64("max_upload_bytes", cfg.MaxUploadBytes))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
