/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Warp Intent Engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize logger and SQLite store
  3. Build the resolution pipeline (rules + optional model fallback)
  4. Create API handler and router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port         HTTP server port (default: 8080)
  -db           SQLite database path (default: intents.db)
                Use ":memory:" for in-memory database
  -model        Text-generation model for the fallback classifier
  -no-fallback  Disable the model fallback entirely (rules only)
  -categories   Optional YAML file overriding the category taxonomy

MODEL FALLBACK:
  The fallback client reads GEMINI_API_KEY from the environment. When
  the key is absent or -no-fallback is set, the server runs rules-only:
  low-confidence messages resolve to whatever the rules produced.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/intents.db"

  # Run rules-only on a different port
  ./server -port=3000 -no-fallback

SEE ALSO:
  - api/server.go: Router configuration
  - pipeline/pipeline.go: Resolution order
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/warp/intent-engine/api"
	"github.com/warp/intent-engine/classify"
	"github.com/warp/intent-engine/intent"
	"github.com/warp/intent-engine/logging"
	"github.com/warp/intent-engine/persist"
	"github.com/warp/intent-engine/pipeline"
	"github.com/warp/intent-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "intents.db", "SQLite database path")
	modelName := flag.String("model", classify.DefaultModelName, "fallback classifier model")
	noFallback := flag.Bool("no-fallback", false, "disable the model fallback (rules only)")
	categoriesPath := flag.String("categories", "", "YAML category taxonomy override")
	flag.Parse()

	log := logging.New()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer store.Close()

	// Category taxonomy
	categories := intent.DefaultCategories()
	if *categoriesPath != "" {
		categories, err = intent.LoadCategories(*categoriesPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *categoriesPath).Msg("failed to load categories")
		}
		log.Info().Str("path", *categoriesPath).Msg("loaded category taxonomy")
	}

	detector := intent.NewDetector()
	detector.Categories = categories
	normalizer := intent.NewNormalizer()
	normalizer.Categories = categories

	// Optional model fallback
	var fallback *classify.Classifier
	if *noFallback {
		log.Info().Msg("model fallback disabled by flag, running rules only")
	} else if os.Getenv("GEMINI_API_KEY") == "" {
		log.Info().Msg("GEMINI_API_KEY not set, running rules only")
	} else {
		gen, err := classify.NewGeminiGenerator(context.Background(), *modelName)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize model client")
		}
		fallback = classify.NewClassifier(gen, store, log)
		log.Info().Str("model", *modelName).Msg("model fallback enabled")
	}

	resolver := pipeline.NewResolver(detector, normalizer, fallback)
	engine := persist.NewEngine(store, log)

	// Create router
	handler := api.NewHandler(resolver, engine, store, log)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", *port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
