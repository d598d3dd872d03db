package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamcoop/discovery/catalog"
	"github.com/liamcoop/discovery/internal/config"
	"github.com/liamcoop/discovery/internal/logger"
	"github.com/liamcoop/discovery/internal/metrics"
	"github.com/liamcoop/discovery/multitenantengine"
	"github.com/liamcoop/discovery/rules"
)

// tenantProvisioner creates a tenant and its default catalog
type tenantProvisioner interface {
	Provision(ctx context.Context, id, name string) (string, error)
}

type Server struct {
	db          *sql.DB
	redis       *redis.Client
	manager     *multitenantengine.MultiTenantEngineManager
	provisioner tenantProvisioner
	registry    *prometheus.Registry
	router      *chi.Mux
}

// NewServer picks the in-memory or the PostgreSQL backend from cfg
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg.InMemory() {
		return NewInMemoryServer(ctx, cfg)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s, err := NewServerWithDB(ctx, db, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewInMemoryServer keeps catalog and rules in process memory and seeds
// the default catalog for every tenant in cfg.SeedTenants
func NewInMemoryServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	repo := catalog.NewInMemoryRepository()
	store := rules.NewInMemoryRuleStore(repo)

	s, err := newServer(repo, store, cfg)
	if err != nil {
		return nil, err
	}
	s.provisioner = &memoryProvisioner{repo: repo, manager: s.manager}

	for _, tenantID := range cfg.SeedTenants {
		if _, err := s.provisioner.Provision(ctx, tenantID, tenantID); err != nil {
			return nil, fmt.Errorf("failed to seed tenant %s: %w", tenantID, err)
		}
	}
	logger.Info("in-memory mode", "tenants", s.manager.ListTenants())
	return s, nil
}

// NewServerWithDB serves from PostgreSQL. Catalog lookups go through a
// cache in Redis when cfg.RedisAddr is set, in process memory otherwise.
func NewServerWithDB(ctx context.Context, db *sql.DB, cfg *config.Config) (*Server, error) {
	cacheConfig := catalog.CacheConfig{TTL: cfg.CatalogCacheTTL}

	var (
		itemCache   catalog.ItemCache = catalog.NewInMemoryItemCache(cacheConfig)
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		itemCache = catalog.NewRedisItemCache(catalog.NewRedisKVStore(redisClient), cacheConfig)
	}

	repo := catalog.NewCachedRepository(catalog.NewPostgresRepository(db), itemCache)
	store := rules.NewPostgresRuleStore(db, repo)

	s, err := newServer(repo, store, cfg)
	if err != nil {
		return nil, err
	}
	s.db = db
	s.redis = redisClient
	s.provisioner = &postgresProvisioner{db: db, manager: s.manager}

	logger.Info("loading tenants from database")
	if _, err := s.manager.LoadAllTenants(ctx, multitenantengine.NewPostgresTenantLister(db)); err != nil {
		return nil, fmt.Errorf("failed to load tenants: %w", err)
	}
	return s, nil
}

func newServer(repo catalog.Repository, store rules.RuleStore, cfg *config.Config) (*Server, error) {
	registry := prometheus.NewRegistry()
	recorder, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	engine, err := rules.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	manager, err := multitenantengine.NewMultiTenantEngineManager(multitenantengine.Dependencies{
		Catalog:  repo,
		Store:    store,
		Cache:    rules.NewInMemoryRulesCache(rules.CacheConfig{TTL: cfg.RulesCacheTTL}),
		Engine:   engine,
		Executor: rules.NewExecutor(rules.DefaultRegistry(engine), rules.WithMetrics(recorder)),
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		manager:  manager,
		registry: registry,
	}
	s.setupRoutes()
	return s, nil
}

// Close releases the database and Redis connections
func (s *Server) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1/tenants", func(r chi.Router) {
		r.Get("/", s.handleListTenants)
		r.Post("/", s.handleCreateTenant)

		r.Route("/{tenantId}", func(r chi.Router) {
			r.Get("/catalog/{category}", s.handleListCatalog)

			r.Post("/rules", s.handleCreateRule)
			r.Get("/rules", s.handleListRules)
			r.Get("/rules/{ruleId}", s.handleGetRule)
			r.Put("/rules/{ruleId}", s.handleUpdateRule)
			r.Delete("/rules/{ruleId}", s.handleDeleteRule)
			r.Post("/rules/{ruleId}/activate", s.handleSetActive(true))
			r.Post("/rules/{ruleId}/deactivate", s.handleSetActive(false))

			r.Post("/execute", s.handleExecute)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs every request through the structured logger
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if ww.Status() >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
			return
		}
		logger.Debug("request", attrs...)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "healthy",
		Mode:          "memory",
		TenantsLoaded: len(s.manager.ListTenants()),
	}
	if s.db != nil {
		resp.Mode = "postgres"
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListTenants(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, TenantsListResponse{Tenants: s.manager.ListTenants()})
}

func (s *Server) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	id, err := s.provisioner.Provision(r.Context(), req.ID, req.Name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create tenant", err)
		return
	}
	respondJSON(w, http.StatusCreated, TenantResponse{ID: id})
}

func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	category := chi.URLParam(r, "category")

	items, err := s.manager.ListCatalog(r.Context(), tenantID, category)
	if err != nil {
		respondDomainError(w, "failed to list catalog", err)
		return
	}

	resp := CatalogListResponse{Items: make([]CatalogItemResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, newCatalogItemResponse(item))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var def multitenantengine.RuleDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule, err := s.manager.CreateRule(r.Context(), tenantID, def)
	if err != nil {
		respondDomainError(w, "failed to create rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, newRuleResponse(rule))
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	list, err := s.manager.ListRules(r.Context(), tenantID)
	if err != nil {
		respondDomainError(w, "failed to list rules", err)
		return
	}
	respondJSON(w, http.StatusOK, newRulesListResponse(list))
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	ruleID := chi.URLParam(r, "ruleId")

	rule, err := s.manager.GetRule(r.Context(), tenantID, ruleID)
	if err != nil {
		respondDomainError(w, "failed to get rule", err)
		return
	}
	respondJSON(w, http.StatusOK, newRuleResponse(rule))
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	ruleID := chi.URLParam(r, "ruleId")

	var def multitenantengine.RuleDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule, err := s.manager.UpdateRule(r.Context(), tenantID, ruleID, def)
	if err != nil {
		respondDomainError(w, "failed to update rule", err)
		return
	}
	respondJSON(w, http.StatusOK, newRuleResponse(rule))
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	ruleID := chi.URLParam(r, "ruleId")

	if err := s.manager.DeleteRule(r.Context(), tenantID, ruleID); err != nil {
		respondDomainError(w, "failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := chi.URLParam(r, "tenantId")
		ruleID := chi.URLParam(r, "ruleId")

		rule, err := s.manager.SetRuleActive(r.Context(), tenantID, ruleID, active)
		if err != nil {
			respondDomainError(w, "failed to change rule state", err)
			return
		}
		respondJSON(w, http.StatusOK, newRuleResponse(rule))
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Context == nil {
		respondError(w, http.StatusBadRequest, "contexto is required", nil)
		return
	}

	start := time.Now()
	results, err := s.manager.Execute(r.Context(), tenantID, req.Context)
	if err != nil {
		respondDomainError(w, "execution failed", err)
		return
	}

	respondJSON(w, http.StatusOK, ExecuteResponse{
		Results:       results,
		ExecutionTime: time.Since(start).String(),
	})
}

// memoryProvisioner seeds tenants into the in-memory catalog
type memoryProvisioner struct {
	repo    *catalog.InMemoryRepository
	manager *multitenantengine.MultiTenantEngineManager
}

func (p *memoryProvisioner) Provision(_ context.Context, id, _ string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	items, err := catalog.DefaultSeed(id)
	if err != nil {
		return "", err
	}
	p.repo.Add(items...)
	return id, p.manager.CreateTenant(id)
}

// postgresProvisioner inserts the tenant row and upserts its default catalog
type postgresProvisioner struct {
	db      *sql.DB
	manager *multitenantengine.MultiTenantEngineManager
}

func (p *postgresProvisioner) Provision(ctx context.Context, id, name string) (string, error) {
	var err error
	if id == "" {
		err = p.db.QueryRowContext(ctx, `INSERT INTO tenants (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	} else {
		_, err = p.db.ExecContext(ctx, `
			INSERT INTO tenants (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
		`, id, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert tenant: %w", err)
	}

	items, err := catalog.DefaultSeed(id)
	if err != nil {
		return "", err
	}
	repo := catalog.NewPostgresRepository(p.db)
	for _, item := range items {
		if err := repo.Upsert(ctx, item); err != nil {
			return "", err
		}
	}
	return id, p.manager.CreateTenant(id)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

// respondDomainError maps sentinel errors to HTTP status codes
func respondDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, multitenantengine.ErrTenantNotFound), errors.Is(err, rules.ErrRuleNotFound):
		status = http.StatusNotFound
	case errors.Is(err, rules.ErrValidation),
		errors.Is(err, rules.ErrUnsupportedOperator),
		errors.Is(err, catalog.ErrValidation),
		errors.Is(err, catalog.ErrItemNotFound),
		errors.Is(err, catalog.ErrCategoryMismatch):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logger.Error(message, "error", err)
	}
	respondError(w, status, message, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatal("invalid LOG_LEVEL", "error", err)
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := NewServer(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	if err := logger.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}
}
