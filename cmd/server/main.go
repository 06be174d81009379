package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kbase/internal/auth"
	"kbase/internal/config"
	docsysRepo "kbase/internal/domain/repositories/docsystem"
	"kbase/internal/handler"
	"kbase/internal/httputil"
	"kbase/internal/middleware"
	"kbase/internal/notify"
	bleveidx "kbase/internal/repository/bleve"
	"kbase/internal/repository/postgres"
	postgresDocsys "kbase/internal/repository/postgres/docsystem"
	serviceDocsys "kbase/internal/service/docsystem"
	"kbase/internal/storage/attachments"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// .env is optional in production
	_ = godotenv.Load()

	cfg := config.Load()

	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, "server", cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	logger := config.NewLogger(cfg.Environment, logOut)
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"search_backend", cfg.SearchBackend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	searchSettings, err := config.LoadSearchSettings(cfg.SearchConfigFile)
	if err != nil {
		log.Fatalf("Failed to load search settings: %v", err)
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("database ready", "max_conns", pool.Config().MaxConns)

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	nodeRepo := postgresDocsys.NewNodeRepository(repoConfig)
	searchRepo := postgresDocsys.NewSearchRepository(repoConfig, searchSettings.Headline)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Ranked engine: Postgres FTS by default, or an in-process bleve index
	var (
		ranked  docsysRepo.RankedSearcher = searchRepo
		indexer docsysRepo.SearchIndexer  = postgresDocsys.NoopIndexer{}
	)
	switch cfg.SearchBackend {
	case config.SearchBackendPostgres:
	case config.SearchBackendBleve:
		index, err := bleveidx.Open(cfg.BleveIndexPath, nodeRepo, logger)
		if err != nil {
			log.Fatalf("Failed to open search index: %v", err)
		}
		defer index.Close()
		if _, err := index.Rebuild(ctx); err != nil {
			log.Fatalf("Failed to build search index: %v", err)
		}
		ranked, indexer = index, index
	default:
		log.Fatalf("Unknown SEARCH_BACKEND %q", cfg.SearchBackend)
	}

	cleaner, err := attachments.NewCleaner(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up attachment cleanup: %v", err)
	}
	notifier := notify.NewSlogNotifier(logger)

	guard := serviceDocsys.NewHierarchyGuard(nodeRepo)
	structureService := serviceDocsys.NewStructureService(nodeRepo, txManager, guard, logger)
	treeStore := serviceDocsys.NewNodeStore(nodeRepo, txManager, guard, structureService, indexer, cleaner, notifier, logger)
	treeService := serviceDocsys.NewTreeService(nodeRepo, logger)
	searchService := serviceDocsys.NewSearchService(ranked, searchRepo, guard, searchSettings, notifier, logger)

	nodeHandler := handler.NewNodeHandler(treeStore, structureService, logger)
	treeHandler := handler.NewTreeHandler(treeService, logger)
	searchHandler := handler.NewSearchHandler(searchService, logger)
	healthHandler := handler.NewHealthHandler(pool)

	logger.Info("services initialized")

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.HealthCheck)

	mux.HandleFunc("GET /api/nodes", nodeHandler.ListChildren)
	mux.HandleFunc("POST /api/nodes", nodeHandler.CreateNode)
	mux.HandleFunc("GET /api/nodes/tree", treeHandler.GetTree) // literal segment wins over {id}
	mux.HandleFunc("POST /api/nodes/reorder", nodeHandler.Reorder)
	mux.HandleFunc("GET /api/nodes/{id}", nodeHandler.GetNode)
	mux.HandleFunc("PATCH /api/nodes/{id}", nodeHandler.UpdateNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", nodeHandler.DeleteNode)
	mux.HandleFunc("POST /api/nodes/{id}/move", nodeHandler.MoveNode)
	mux.HandleFunc("GET /api/nodes/{id}/path", nodeHandler.GetPath)

	mux.HandleFunc("GET /api/search", searchHandler.Search)

	// Order: CORS → RequestLogger → Recovery → Auth → Routes
	var h http.Handler = mux
	if cfg.JWKSURL != "" {
		verifier, err := auth.NewJWTVerifier(ctx, cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer verifier.Close()
		h = middleware.AuthMiddleware(verifier, logger)(h)
	} else {
		if cfg.Environment == "prod" {
			log.Fatalf("AUTH_JWKS_URL is required in production")
		}
		logger.Warn("JWT verification disabled, attributing requests to dev user", "user_id", cfg.DevUserID)
		h = middleware.DevUserMiddleware(cfg.DevUserID)(h)
	}
	h = middleware.Recovery(logger)(h)
	h = middleware.RequestLogger(logger)(h)

	// CORS must run before auth so OPTIONS pre-flight requests pass
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", httputil.RequestIDHeader},
		ExposedHeaders:   []string{httputil.RequestIDHeader},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}
