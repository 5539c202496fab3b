package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/analyzer"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/api/handler"
	customMiddleware "github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/api/middleware"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/config"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource"
	dsClickhouse "github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource/clickhouse"
	dsMongo "github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource/mongo"
	dsMySQL "github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource/mysql"
	dsPostgres "github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource/postgres"
	dsSQLite "github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/datasource/sqlite"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/domain"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm/anthropic"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm/gemini"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm/ollama"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/llm/openai"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/observability"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/repository/postgres"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/repository/redis"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/security"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/service"
	"github.com/cerdasbersamadamelia/AI-Data-Assistant/internal/session"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *postgres.DB, redisClient *redis.Client) (http.Handler, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
	if cfg.Metrics.Enabled {
		r.Use(observability.MetricsMiddleware)
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize security components
	tokenManager := security.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenTTL)

	var encryptor *security.Encryptor
	var err error
	if cfg.Security.EncryptionKey != "" {
		encryptor, err = security.NewEncryptorFromBase64(cfg.Security.EncryptionKey)
	} else {
		encryptor, err = security.NewEncryptorFromSecret(cfg.Security.EncryptionSecret, cfg.Security.EncryptionSalt)
	}
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	connectionRepo := postgres.NewConnectionRepository(db.Pool)
	sessionRepo := postgres.NewSessionRepository(db.Pool)
	turnRepo := postgres.NewTurnRepository(db.Pool)

	// Initialize rate limiter and schema cache
	rateLimiter := redis.NewRateLimiter(
		redisClient,
		cfg.Security.RateLimit.RequestsPerMinute,
		cfg.Security.RateLimit.Burst,
	)
	schemaCache := redis.NewSchemaCache(redisClient)

	// Initialize datasource router with database adapters
	dsRouter := datasource.NewRouter()
	dsRouter.RegisterAdapter(domain.DatabaseTypePostgres, dsPostgres.NewAdapter)
	dsRouter.RegisterAdapter(domain.DatabaseTypeMySQL, dsMySQL.NewAdapter)
	dsRouter.RegisterAdapter(domain.DatabaseTypeSQLite, dsSQLite.NewAdapter)
	dsRouter.RegisterAdapter(domain.DatabaseTypeClickHouse, dsClickhouse.NewAdapter)
	dsRouter.RegisterAdapter(domain.DatabaseTypeMongo, dsMongo.NewAdapter)

	// Initialize LLM router with providers
	llmRouter := llm.NewRouter(cfg.LLM.DefaultProvider)

	log.Info().Str("default", cfg.LLM.DefaultProvider).Msg("initializing LLM providers")

	if cfg.LLM.Ollama.Host != "" {
		log.Info().Str("host", cfg.LLM.Ollama.Host).Msg("registering Ollama provider")
		llmRouter.RegisterProvider(
			ollama.NewProvider(cfg.LLM.Ollama.Host, cfg.LLM.Ollama.DefaultModel),
			cfg.LLM.Ollama.RequestsPerMinute,
		)
	}
	if cfg.LLM.OpenAI.APIKey != "" {
		llmRouter.RegisterProvider(
			openai.NewProvider(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model),
			cfg.LLM.OpenAI.RequestsPerMinute,
		)
	}
	if cfg.LLM.Anthropic.APIKey != "" {
		llmRouter.RegisterProvider(
			anthropic.NewProvider(cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.Model),
			cfg.LLM.Anthropic.RequestsPerMinute,
		)
	}
	if cfg.LLM.Gemini.APIKey != "" {
		llmRouter.RegisterProvider(
			gemini.NewProvider(cfg.LLM.Gemini.APIKey, cfg.LLM.Gemini.Model),
			cfg.LLM.Gemini.RequestsPerMinute,
		)
	}

	// Initialize pipeline components
	sessions := session.NewManager(
		turnRepo,
		cfg.Pipeline.ContextWindow,
		cfg.Pipeline.SessionMaxLive,
		cfg.Pipeline.SessionIdleTTL,
	)
	chartAnalyzer := analyzer.New(
		cfg.Pipeline.ChartRowCap,
		cfg.Pipeline.PieMaxCategories,
		cfg.Pipeline.HistogramMinRows,
	)
	executor := service.NewExecutor(cfg.Pipeline.MaxRetries)

	// Initialize services
	connectionService := service.NewConnectionService(
		connectionRepo,
		dsRouter,
		schemaCache,
		encryptor,
		cfg.Security.MaxRows,
		int(cfg.Security.QueryTimeout.Seconds()),
	)
	queryService := service.NewQueryService(
		connectionService,
		dsRouter,
		llmRouter,
		schemaCache,
		sessionRepo,
		turnRepo,
		sessions,
		chartAnalyzer,
		executor,
		tokenManager,
	)
	uploadService := service.NewUploadService(cfg.Upload.Dir, connectionService)

	// Initialize handlers
	connectionHandler := handler.NewConnectionHandler(connectionService)
	sessionHandler := handler.NewSessionHandler(queryService)
	queryHandler := handler.NewQueryHandler(queryService)
	suggestionHandler := handler.NewSuggestionHandler(queryService)
	uploadHandler := handler.NewUploadHandler(uploadService)

	// Middleware over session routes
	sessionAuth := customMiddleware.NewSessionAuthMiddleware(tokenManager)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(rateLimiter)

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(db))

		// Management routes, rate limited by client IP
		r.Group(func(r chi.Router) {
			r.Use(rateLimitMiddleware.Limit)

			// LLM providers
			r.Get("/llm-providers", handler.ListLLMProviders(llmRouter))

			// Cache management
			r.Post("/cache/flush", handler.FlushCache(schemaCache))

			// SQLite upload
			r.Post("/upload/sqlite", uploadHandler.UploadSQLite)

			// Connection routes
			r.Route("/connections", func(r chi.Router) {
				r.Get("/", connectionHandler.List)
				r.Post("/", connectionHandler.Create)

				r.Route("/{connectionID}", func(r chi.Router) {
					r.Get("/", connectionHandler.Get)
					r.Patch("/", connectionHandler.Update)
					r.Delete("/", connectionHandler.Delete)
					r.Post("/test", connectionHandler.Test)
					r.Get("/schema", queryHandler.GetSchema)
					r.Post("/schema/refresh", queryHandler.RefreshSchema)
					r.Post("/generate", queryHandler.Generate)
					r.Get("/suggestions", suggestionHandler.GetSuggestions)
					r.Get("/sessions", sessionHandler.ListByConnection)
				})
			})

			// Session creation and listing. Creation mints the token the
			// per-session routes below require.
			r.Get("/sessions", sessionHandler.List)
			r.Post("/sessions", sessionHandler.Create)
		})

		// Per-session routes, rate limited by session
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(sessionAuth.RequireSession)
			r.Use(rateLimitMiddleware.Limit)

			r.Get("/", sessionHandler.Get)
			r.Delete("/", sessionHandler.Delete)
			r.Get("/turns", sessionHandler.GetTurns)
			r.Post("/ask", queryHandler.Ask)
		})
	})

	return r, nil
}
