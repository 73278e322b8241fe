package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"propfinder/internal/config"
	"propfinder/internal/currency"
	"propfinder/internal/handler"
	"propfinder/internal/repository"
	"propfinder/internal/service"
	"propfinder/internal/source"
	"propfinder/internal/vectorstore"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Print version info
	log.Printf("PropFinder")
	log.Printf("Version: %s", Version)
	log.Printf("Build Time: %s", BuildTime)
	log.Printf("Git Commit: %s", GitCommit)
	log.Println("")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	rates := currency.Rates{
		USDToEUR: cfg.Currency.USDToEUR,
		GBPToEUR: cfg.Currency.GBPToEUR,
	}

	// Initialize database connection (optional)
	var repo *repository.PostgresRepository
	if cfg.PostgreSQL.Enabled {
		repo, err = repository.NewPostgresRepository(
			cfg.GetPostgreSQLDSN(),
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
		)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer repo.Close()

		if err := repo.InitSchema(context.Background()); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		log.Println("✅ Connected to PostgreSQL database")
	} else {
		log.Println("⚠️  PostgreSQL is disabled - listings will not be persisted")
		log.Println("   Set DATABASE_URL or PG_HOST to enable persistence")
	}

	// Embedder for the local knowledge store: API-backed when a key
	// is configured, deterministic vocabulary embedder otherwise
	var embedder vectorstore.Embedder
	if cfg.Embedding.APIKey != "" {
		embedder = vectorstore.NewAPIEmbedder(
			cfg.Embedding.APIKey,
			cfg.Embedding.BaseURL,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			cfg.Embedding.BatchSize,
		)
		log.Printf("✅ Embedding API configured (%s)", cfg.Embedding.Model)
	} else {
		embedder = vectorstore.NewLocalEmbedder()
		log.Println("🔧 Using local deterministic embedder")
	}

	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := vectorstore.New(filepath.Join(cfg.Store.DataDir, "knowledge.json"), embedder)
	if err != nil {
		log.Fatalf("Failed to open knowledge store: %v", err)
	}
	if err := seedKnowledge(store); err != nil {
		log.Printf("⚠️  Failed to seed knowledge collection: %v", err)
	}

	// AI backend chain: cloud first, local fallback, cloud reserve
	aiTimeout := time.Duration(cfg.AI.TimeoutSec) * time.Second
	backends := []service.AIBackend{
		service.NewCloudBackend("groq", "Groq", cfg.AI.GroqAPIKey, cfg.AI.GroqBaseURL, cfg.AI.GroqModel, aiTimeout),
		service.NewOllamaBackend(cfg.AI.OllamaBaseURL, cfg.AI.OllamaModel, aiTimeout),
		service.NewCloudBackend("openai", "OpenAI", cfg.AI.OpenAIAPIKey, cfg.AI.OpenAIBaseURL, cfg.AI.OpenAIModel, aiTimeout),
	}
	orchestrator := service.NewOrchestrator(backends, cfg.AI.MaxRetries)
	for _, b := range backends {
		if b.IsEnabled() {
			log.Printf("✅ AI backend configured: %s", b.Name())
		}
	}

	// Initialize services
	resolver := service.NewIntentResolver(cfg.Pricing, rates)
	ranker := service.NewRanker(
		orchestrator,
		resolver,
		cfg.AI.RankCandidateCeiling,
		cfg.AI.RankDetailThreshold,
		time.Duration(cfg.AI.RankTimeoutSec)*time.Second,
	)

	var adapters []source.Adapter
	if cfg.Sources.MarketplaceBaseURL != "" {
		adapters = append(adapters, source.NewMarketplaceAdapter(cfg.Sources, rates))
	}
	if repo != nil {
		// Semantic recall needs query embeddings in the same space as
		// the stored column, which only the embedding API provides
		var recallEmbedder vectorstore.Embedder
		if cfg.Embedding.APIKey != "" {
			recallEmbedder = embedder
		}
		adapters = append(adapters, source.NewIndexAdapter(repo, cfg.Search.MaxResults*2, recallEmbedder))
	}
	aggregator := source.NewAggregator(adapters...)
	if names := aggregator.Adapters(); len(names) > 0 {
		log.Printf("✅ Listing sources: %s", strings.Join(names, ", "))
	} else {
		log.Println("⚠️  No listing sources configured - searches will return empty results")
	}

	var indexer service.ListingIndexer
	if repo != nil {
		indexer = repo
	}
	searchService := service.NewSearchService(resolver, aggregator, ranker, orchestrator, store, indexer, cfg.Search)

	log.Println("✅ Services initialized")

	// Initialize handlers
	searchHandler := handler.NewSearchHandler(searchService)
	feedbackHandler := handler.NewFeedbackHandler(searchService)
	providerHandler := handler.NewProviderHandler(orchestrator)
	knowledgeHandler := handler.NewKnowledgeHandler(store)

	// Setup Gin router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint. AI availability comes from the cached
	// probe; /api/v1/providers/health re-probes on demand.
	router.GET("/health", func(c *gin.Context) {
		providers := orchestrator.Providers(c.Request.Context())
		aiAvailable := false
		for _, p := range providers {
			if p.Available {
				aiAvailable = true
				break
			}
		}
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "propfinder",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
			"ai": gin.H{
				"available": aiAvailable,
				"active":    orchestrator.ActiveID(),
				"providers": providers,
			},
		})
	})

	// API routes
	apiV1 := router.Group("/api/v1")
	{
		// Search endpoints
		apiV1.POST("/search", searchHandler.Search)
		apiV1.GET("/search/:id", searchHandler.GetSearch)

		// Feedback endpoint
		apiV1.POST("/feedback", feedbackHandler.Submit)

		// AI provider endpoints
		apiV1.GET("/providers", providerHandler.List)
		apiV1.POST("/providers/switch", providerHandler.Switch)
		apiV1.GET("/providers/health", providerHandler.Health)

		// Knowledge store endpoints
		apiV1.GET("/knowledge/stats", knowledgeHandler.Stats)
		apiV1.POST("/knowledge/:collection/documents", knowledgeHandler.AddDocuments)
		apiV1.GET("/knowledge/:collection/search", knowledgeHandler.Search)
		apiV1.DELETE("/knowledge/:collection", knowledgeHandler.Clear)

		// Listing index endpoints (only with a database)
		if repo != nil {
			listingHandler := handler.NewListingHandler(repo, cfg.Embedding.Dimensions)
			apiV1.GET("/listings/:id", listingHandler.Get)
			apiV1.GET("/listings/:id/similar", listingHandler.Similar)
			apiV1.POST("/embeddings/batch", listingHandler.BatchEmbeddings)
		}
	}

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	log.Printf("🚀 Starting server on %s", addr)
	log.Printf("📝 API Documentation: http://localhost:%d/api/v1", cfg.Server.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Forced shutdown: %v", err)
	}

	log.Println("✅ Server stopped")
}

// seedKnowledge loads the starter market-knowledge documents on first
// run. An already-populated collection is left alone so admin edits
// survive restarts.
func seedKnowledge(store *vectorstore.Store) error {
	if stats, ok := store.GetStats()["knowledge"]; ok && stats.Documents > 0 {
		return nil
	}

	docs := []vectorstore.Document{
		{
			ID:       "land-classification",
			Content:  "In Portugal, terreno urbano (urban land) permits construction, while terreno rústico (rustic land) is restricted to agricultural use and usually cannot be built on without a zoning change.",
			Metadata: map[string]string{"topic": "land"},
		},
		{
			ID:       "purchase-taxes",
			Content:  "Property purchases in Portugal incur IMT transfer tax (progressive, up to around 8 percent), stamp duty of 0.8 percent, plus notary and registration fees typically between 1000 and 2000 EUR.",
			Metadata: map[string]string{"topic": "taxes"},
		},
		{
			ID:       "typology-codes",
			Content:  "Portuguese listings use typology codes: T0 is a studio, T1 has one bedroom, T2 two bedrooms, and so on. V codes (V3, V4) refer to detached houses (moradias).",
			Metadata: map[string]string{"topic": "terminology"},
		},
		{
			ID:       "price-per-sqm",
			Content:  "Urban construction land in Portugal typically trades above 25 EUR per square meter; agricultural land is usually below 5 EUR per square meter outside prime coastal areas.",
			Metadata: map[string]string{"topic": "pricing"},
		},
	}

	if err := store.AddDocuments(context.Background(), "knowledge", docs); err != nil {
		return err
	}
	log.Printf("📚 Seeded knowledge collection with %d documents", len(docs))
	return nil
}
