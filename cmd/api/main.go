package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/murphys-tech/catalog-api/internal/analytics"
	"github.com/murphys-tech/catalog-api/internal/assignment"
	"github.com/murphys-tech/catalog-api/internal/audit"
	"github.com/murphys-tech/catalog-api/internal/auth"
	"github.com/murphys-tech/catalog-api/internal/cart"
	"github.com/murphys-tech/catalog-api/internal/catalog"
	"github.com/murphys-tech/catalog-api/internal/common"
	"github.com/murphys-tech/catalog-api/internal/config"
	"github.com/murphys-tech/catalog-api/internal/db"
	"github.com/murphys-tech/catalog-api/internal/health"
	"github.com/murphys-tech/catalog-api/internal/invoice"
	"github.com/murphys-tech/catalog-api/internal/notice"
	"github.com/murphys-tech/catalog-api/internal/obs"
	"github.com/murphys-tech/catalog-api/internal/ratelimit"
	"github.com/murphys-tech/catalog-api/internal/security"
	"github.com/murphys-tech/catalog-api/internal/settings"
	"github.com/murphys-tech/catalog-api/internal/ticket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "catalog")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "catalog-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "catalog-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	redisClient := mustInitRedis(ctx, cfg, metricsEnabled, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	validate := validator.New()

	catalogStore := &catalog.Store{Pool: pool}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:        catalogStore,
		Cache:        catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService, Validate: validate})

	authService, err := auth.NewService(auth.Config{
		Store:           &auth.Store{Pool: pool},
		Secret:          cfg.JWTSecret,
		Issuer:          cfg.JWTIssuer,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{
		Service:           authService,
		RefreshCookieName: "catalog_refresh",
		CookieSecure:      cfg.AppEnv == "production",
		CookieSameSite:    http.SameSiteLaxMode,
	}
	authMiddleware := auth.Middleware{Service: authService}

	assignmentService := &assignment.Service{Store: &assignment.Store{Pool: pool}}
	assignmentHandler := &assignment.Handler{Svc: assignmentService, Validate: validate}

	cartService := &cart.Service{
		Store:    &cart.Store{Pool: pool},
		Catalog:  catalogService,
		Assigner: assignmentService,
	}
	cartHandler := &cart.Handler{Svc: cartService, Currency: cfg.CurrencyCode}

	invoiceHandler := &invoice.Handler{
		Svc: &invoice.Service{Assignments: assignmentService},
	}

	ticketService := &ticket.Service{
		Store:  &ticket.Store{Pool: pool},
		Email:  common.NopEmailSender{},
		Logger: logger,
	}
	ticketHandler := &ticket.Handler{Svc: ticketService}

	noticeService := &notice.Service{
		Store:      &notice.Store{Pool: pool},
		DefaultTTL: cfg.NoticeDefaultTTL,
	}
	noticeHandler := &notice.Handler{Svc: noticeService}

	settingsService := &settings.Service{
		Store: &settings.Store{Pool: pool},
		Redis: redisClient,
		TTL:   cfg.SettingsCacheTTL,
	}
	settingsHandler := &settings.Handler{Svc: settingsService}

	analyticsHandler := &analytics.Handler{
		Svc: &analytics.Service{
			Store:        &analytics.Store{Pool: pool},
			R:            redisClient,
			TTL:          envDurationMillis("ANALYTICS_CACHE_TTL_MS", 60000),
			DefaultRange: envInt("ANALYTICS_DEFAULT_RANGE_DAYS", 30),
		},
	}

	auditService := audit.Service{
		Store:        &audit.Store{Pool: pool},
		Enabled:      envBool("AUDIT_ENABLED", true),
		SamplingRate: envFloat("AUDIT_SAMPLING_RATE", 1),
	}
	auditRecorder := audit.HTTPRecorder{
		Service: &auditService,
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("audit record failed")
		},
	}
	auditHandler := audit.Handler{Store: auditService.Store}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	loginLimiter, err := newLoginLimiter(redisClient, cfg.LoginRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise login rate limiter")
	}

	apiLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient},
		Config: ratelimit.Config{
			Key:    func(r *http.Request) string { return "api:" + common.ClientIP(r) },
			Window: time.Minute,
			Max:    envInt("API_RATE_LIMIT_PER_MINUTE", 300),
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:     envBool("SECURE_HEADERS_ENABLE", true),
		EnableHSTS: cfg.AppEnv == "production",
		HSTSMaxAge: envInt("SECURE_HSTS_MAX_AGE", 31536000),
	}.Middleware)
	r.Use(security.BodyLimit{Max: envInt64("SECURE_MAX_BODY_BYTES", 1<<20)}.Middleware)
	if envBool("SECURE_CSRF_ENABLE", false) {
		r.Use(security.CSRF{}.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(apiLimiter.Middleware)

		v.Get("/settings", settingsHandler.Public)
		v.Get("/categories", catalogHandler.Categories)
		v.With(authMiddleware.Authenticate).Get("/services", catalogHandler.Services)
		v.Get("/services/{slug}", catalogHandler.ServiceDetail)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/register", authHandler.Register)
			a.With(loginLimiter.Handler).Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Route("/cart", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Get("/", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/items", cartHandler.AddItem)
				g.Delete("/items/{lineID}", cartHandler.RemoveItem)
				g.Delete("/", cartHandler.Cancel)
				g.Post("/checkout", cartHandler.Checkout)
			})
		})

		v.Group(func(client chi.Router) {
			client.Use(authMiddleware.RequireAuth)
			client.Get("/assignments", assignmentHandler.Mine)
			client.Post("/assignments/{id}/respond", assignmentHandler.Respond)
			client.Get("/billing/info", invoiceHandler.Info)
			client.Get("/billing/summary", invoiceHandler.Summary)
			client.Get("/notices", noticeHandler.Mine)
			client.Get("/tickets", ticketHandler.Mine)
			client.Post("/tickets", ticketHandler.Open)
			client.Get("/tickets/{id}", ticketHandler.Detail)
			client.Post("/tickets/{id}/replies", ticketHandler.Reply)
			client.Post("/tickets/{id}/close", ticketHandler.Close)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAdmin)

			admin.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Use(auditRecorder.Middleware(audit.HTTPConfig{}))
				g.Post("/categories", catalogHandler.CreateCategory)
				g.Put("/categories/{id}", catalogHandler.UpdateCategory)
				g.Delete("/categories/{id}", catalogHandler.DeleteCategory)
				g.Post("/services", catalogHandler.CreateService)
				g.Put("/services/{id}", catalogHandler.UpdateService)
				g.Delete("/services/{id}", catalogHandler.DeactivateService)
				g.Post("/assignments", assignmentHandler.Create)
				g.Post("/assignments/{id}/renewals", assignmentHandler.AddRenewal)
				g.Patch("/renewals/{renewalID}/paid", assignmentHandler.SetRenewalPaid)
				g.Post("/notices", noticeHandler.Publish)
				g.Delete("/notices/{id}", noticeHandler.Delete)
				g.Put("/settings", settingsHandler.Update)
			})

			admin.Get("/overview", analyticsHandler.Overview)
			admin.Get("/reports/revenue", analyticsHandler.Revenue)
			admin.Get("/audit", auditHandler.List)
			admin.Get("/assignments", assignmentHandler.List)
			admin.Get("/assignments/{id}", assignmentHandler.Detail)
			admin.Get("/notices", noticeHandler.List)
			admin.Get("/settings", settingsHandler.Get)
			admin.Get("/tickets", ticketHandler.List)
			admin.Get("/tickets/{id}", ticketHandler.Detail)
			admin.Post("/tickets/{id}/replies", ticketHandler.Reply)
			admin.Post("/tickets/{id}/close", ticketHandler.Close)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func mustInitRedis(ctx context.Context, cfg *config.Config, metricsEnabled bool, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func newLoginLimiter(redisClient *redis.Client, formatted string) (*limiterstdlib.Middleware, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	store, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
		Prefix: "ratelimit:login",
	})
	if err != nil {
		return nil, err
	}
	return limiterstdlib.NewMiddleware(limiter.New(store, rate)), nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
