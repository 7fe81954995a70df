package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"alfredoptarigan/cto-screener/internal/config"
	"alfredoptarigan/cto-screener/internal/handlers"
	"alfredoptarigan/cto-screener/internal/repositories"
	"alfredoptarigan/cto-screener/internal/services"
)

const calibrationMatches = 5

func main() {
	// Load configuration
	cfg := config.Load()
	log.Println("✅ Config loaded successfully")

	ctx := context.Background()

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize repositories
	sessionRepo := repositories.NewSessionRepository(db)
	candidateRepo := repositories.NewCandidateRepository(db, cfg.Screening.ClaimLease)
	countryRepo := repositories.NewCountryRepository(db)
	log.Println("✅ Repositories initialized successfully")

	// Storage
	storageService := initStorage(ctx, cfg)

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.EmbedModel)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
	}
	log.Println("✅ Gemini AI initialized successfully")

	policy, err := services.LoadPolicy(cfg.Screening.PolicyPath)
	if err != nil {
		log.Fatalf("❌ Failed to load evaluation policy: %v", err)
	}
	log.Printf("✅ Evaluation policy %s loaded\n", policy.Version)

	// Optional backends
	calibrationStore := initCalibrationStore(ctx, cfg)
	companyCache := initCompanyCache(cfg)
	defer companyCache.Close()
	notifier := initNotifier(cfg)
	defer notifier.Close()

	// Initialize services
	promptBuilder := services.NewPromptBuilder(policy)
	retriever := services.NewCalibrationRetriever(calibrationStore, geminiService, calibrationMatches)
	evaluatorService := services.NewEvaluatorService(geminiService, retriever, promptBuilder, cfg.Screening.RetryMaxAttempts)
	escalationService := services.NewEscalationService(geminiService, promptBuilder, cfg.Screening.RetryMaxAttempts)
	enrichmentService := services.NewEnrichmentService(
		services.NewTavilyClient(cfg.Tavily.APIKey, cfg.Tavily.MaxResults),
		companyCache,
		cfg.Screening.MaxEnrichedCompanies,
	)

	screeningService := services.NewScreeningService(
		candidateRepo,
		sessionRepo,
		enrichmentService,
		evaluatorService,
		escalationService,
	)
	batchRunner := services.NewBatchRunner(
		sessionRepo,
		candidateRepo,
		screeningService,
		notifier,
		cfg.Screening.BatchSize,
		cfg.Screening.Concurrency,
	)

	var scraper services.ScraperService
	if cfg.Apify.Token != "" {
		scraper = services.NewApifyScraper(cfg.Apify.Token, cfg.Apify.ActorID)
	}
	ingestionService := services.NewIngestionService(sessionRepo, countryRepo, scraper, storageService)
	sessionService := services.NewSessionService(sessionRepo, candidateRepo)
	countryService := services.NewCountryService(countryRepo, candidateRepo)
	exportService := services.NewExportService(sessionRepo, candidateRepo)

	var calibrationIngestor services.CalibrationIngestor
	if calibrationStore != nil {
		calibrationIngestor = services.NewCalibrationIngestor(
			calibrationStore,
			geminiService,
			services.NewDocumentExtractor(),
			services.NewTextChunker(),
		)
	}
	log.Println("✅ Services initialized successfully")

	// Initialize Handlers
	uploadHandler := handlers.NewUploadHandler(ingestionService, storageService)
	screeningHandler := handlers.NewScreeningHandler(
		sessionService,
		ingestionService,
		screeningService,
		batchRunner,
		exportService,
		storageService,
	)
	candidateHandler := handlers.NewCandidateHandler(sessionService, screeningService)
	countryHandler := handlers.NewCountryHandler(countryService)
	calibrationHandler := handlers.NewCalibrationHandler(calibrationIngestor, cfg.Storage.MaxFileSize)
	log.Println("✅ Handlers initialized")

	// Create Fiber app. WriteTimeout covers a batch running the whole LLM
	// pipeline for every candidate in it.
	app := fiber.New(fiber.Config{
		AppName:      "CTO Screener API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    int(cfg.Storage.MaxFileSize),
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	api.Post("/upload", uploadHandler.HandleUpload)
	api.Post("/scrape", uploadHandler.HandleScrape)

	api.Get("/screenings", screeningHandler.HandleList)
	api.Post("/screenings", screeningHandler.HandleCreate)
	api.Get("/screenings/:id", screeningHandler.HandleGet)
	api.Post("/screenings/:id/start", screeningHandler.HandleStart)
	api.Post("/screenings/:id/reconcile", screeningHandler.HandleReconcile)
	api.Get("/screenings/:id/export", screeningHandler.HandleExport)
	api.Get("/screenings/:id/dataset", screeningHandler.HandleDataset)
	api.Get("/screenings/:id/errors", screeningHandler.HandleErrors)
	api.Get("/screenings/:id/filters", screeningHandler.HandleFilters)

	api.Get("/candidates", candidateHandler.HandleList)
	api.Post("/candidates/:id/retry", candidateHandler.HandleRetry)
	api.Delete("/candidates/:id", candidateHandler.HandleDelete)
	api.Get("/corrections", candidateHandler.HandleListCorrections)
	api.Post("/corrections", candidateHandler.HandleCreateCorrection)

	api.Get("/countries", countryHandler.HandleList)
	api.Post("/countries", countryHandler.HandleCreate)
	api.Get("/countries/:id", countryHandler.HandleDetail)
	api.Delete("/countries/:id", countryHandler.HandleDelete)

	admin := api.Group("/admin")
	admin.Get("/backfill-countries", countryHandler.HandleBackfillReport)
	admin.Post("/backfill-countries", countryHandler.HandleBackfill)
	admin.Post("/calibration", calibrationHandler.HandleIngest)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "CTO Screener API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/upload",
				"POST /api/v1/scrape",
				"GET /api/v1/screenings",
				"POST /api/v1/screenings/:id/start",
				"GET /api/v1/screenings/:id/export",
				"GET /api/v1/candidates",
				"GET /api/v1/corrections",
				"GET /api/v1/countries",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func initStorage(ctx context.Context, cfg *config.Config) services.StorageService {
	if cfg.Storage.Driver == "r2" {
		storage, err := services.NewR2Storage(ctx, services.R2Options{
			AccountID: cfg.Storage.R2.AccountID,
			Bucket:    cfg.Storage.R2.Bucket,
			AccessKey: cfg.Storage.R2.AccessKey,
			SecretKey: cfg.Storage.R2.SecretKey,
		}, cfg.Storage.MaxFileSize)
		if err != nil {
			log.Fatalf("❌ Failed to initialize R2 storage: %v", err)
		}
		log.Printf("✅ R2 storage initialized (bucket %s)\n", cfg.Storage.R2.Bucket)
		return storage
	}

	storage, err := services.NewLocalStorage(cfg.Storage.UploadPath, cfg.Storage.MaxFileSize)
	if err != nil {
		log.Fatalf("❌ Failed to create upload directory: %v", err)
	}
	log.Println("✅ Local storage initialized")
	return storage
}

// initCalibrationStore returns nil when Qdrant is not configured or not
// reachable; evaluation then runs without calibration context.
func initCalibrationStore(ctx context.Context, cfg *config.Config) services.CalibrationStore {
	if cfg.Qdrant.URL == "" {
		log.Println("⚠️  QDRANT_URL not set, calibration retrieval disabled")
		return nil
	}

	store, err := services.NewQdrantStore(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.Collection)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Qdrant, calibration retrieval disabled: %v\n", err)
		return nil
	}
	if err := store.InitCollection(ctx); err != nil {
		log.Printf("⚠️  Failed to initialize Qdrant collection, calibration retrieval disabled: %v\n", err)
		return nil
	}
	log.Println("✅ Qdrant initialized successfully")
	return store
}

func initCompanyCache(cfg *config.Config) services.CompanyCache {
	if cfg.Redis.Address == "" {
		return services.NewNoopCompanyCache()
	}

	cache, err := services.NewRedisCompanyCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL)
	if err != nil {
		log.Printf("⚠️  Redis unavailable, enrichment cache disabled: %v\n", err)
		return services.NewNoopCompanyCache()
	}
	log.Println("✅ Redis enrichment cache connected")
	return cache
}

func initNotifier(cfg *config.Config) services.Notifier {
	if cfg.RabbitMQ.URL == "" {
		return services.NewNoopNotifier()
	}

	notifier, err := services.NewAMQPNotifier(cfg.RabbitMQ.URL)
	if err != nil {
		log.Printf("⚠️  RabbitMQ unavailable, progress notifications disabled: %v\n", err)
		return services.NewNoopNotifier()
	}
	log.Println("✅ RabbitMQ progress notifier connected")
	return notifier
}
