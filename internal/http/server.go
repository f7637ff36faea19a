package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"pocketbook/internal/budget"
	"pocketbook/internal/cache"
	"pocketbook/internal/log"
	"pocketbook/internal/middleware/ratelimit"
	"pocketbook/internal/middleware/security"
	"pocketbook/internal/middleware/trace"
	"pocketbook/internal/services"
)

const (
	rollupCacheSize       = 24
	defaultRollupCacheTTL = 5 * time.Minute
	cacheCleanupInterval  = 10 * time.Minute
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the operations exposed by the API.
type Services struct {
	Ledger     *services.LedgerService
	Budgets    *services.BudgetService
	Imports    *services.ImportService
	Categorize *services.CategorizeService
	Store      Pinger
}

// Options tune the middleware stack. Zero values take the defaults.
type Options struct {
	Logger             *log.Logger
	CORSAllowedOrigins []string
	TrustedProxies     []string
	RateLimitPerMinute int
	MaxImportBytes     int64
	RollupCacheTTL     time.Duration
}

type Server struct {
	http.Server

	ledger     *services.LedgerService
	budgets    *services.BudgetService
	imports    *services.ImportService
	categorize *services.CategorizeService
	store      Pinger

	logger         *log.Logger
	maxImportBytes int64
	started        time.Time
	now            func() time.Time

	// Rollups keyed by month, dropped on every write.
	rollups      *cache.LRUCache[budget.Rollup]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	securityHeaders  *security.HeadersMiddleware
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}
	ttl := opts.RollupCacheTTL
	if ttl <= 0 {
		ttl = defaultRollupCacheTTL
	}
	maxImport := opts.MaxImportBytes
	if maxImport <= 0 {
		maxImport = 10 << 20
	}

	s := &Server{
		ledger:           svc.Ledger,
		budgets:          svc.Budgets,
		imports:          svc.Imports,
		categorize:       svc.Categorize,
		store:            svc.Store,
		logger:           logger,
		maxImportBytes:   maxImport,
		started:          time.Now(),
		now:              time.Now,
		rollups:          cache.NewLRUCache[budget.Rollup](rollupCacheSize, ttl),
		cacheManager:     cache.NewManager(),
		rateLimiter:      ratelimit.NewLimiter(limits),
		securityDetector: security.NewDetector(),
		securityHeaders:  security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	s.cacheManager.Register("rollups", s.rollups)
	s.cacheManager.StartCleanup(cacheCleanupInterval)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.writeRateLimited,
		http.MethodPost, http.MethodPut, http.MethodDelete)(handler)
	handler = s.detectSuspicious(handler)
	handler = s.securityHeaders.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	handler = newCORS(opts.CORSAllowedOrigins).Handler(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/rollup", s.handleRollup)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /api/transactions/{id}/category", s.handleRecategorize)
	mux.HandleFunc("POST /api/transactions/{id}/ignore", s.handleToggleIgnore)
	mux.HandleFunc("POST /api/transactions/{id}/memo", s.handleSetMemo)
	mux.HandleFunc("PUT /api/transactions/{id}/splits", s.handleSaveSplits)
	mux.HandleFunc("DELETE /api/transactions/{id}/splits", s.handleRemoveSplits)

	mux.HandleFunc("GET /api/rules", s.handleListRules)
	mux.HandleFunc("POST /api/rules", s.handleCreateRule)
	mux.HandleFunc("PUT /api/rules/{id}", s.handleUpdateRule)
	mux.HandleFunc("DELETE /api/rules/{id}", s.handleDeleteRule)
	mux.HandleFunc("POST /api/rules/apply", s.handleApplyRule)
	mux.HandleFunc("POST /api/categorize", s.handleCategorize)

	mux.HandleFunc("POST /api/imports", s.handleImport)
	mux.HandleFunc("GET /api/imports", s.handleImportHistory)

	mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	mux.HandleFunc("GET /api/analytics", s.handleAnalytics)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("POST /api/categories/order", s.handleReorderCategories)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("PUT /api/categories/{id}/group", s.handleAssignGroup)

	mux.HandleFunc("GET /api/budgets", s.handleListBudgets)
	mux.HandleFunc("PUT /api/budgets", s.handleSetBudget)
	mux.HandleFunc("POST /api/budgets/copy", s.handleCopyBudgets)

	mux.HandleFunc("GET /api/settings/pool", s.handleGetPool)
	mux.HandleFunc("PUT /api/settings/pool", s.handleSetPool)
}

func newCORS(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{trace.HeaderRequestID, "Retry-After"},
		MaxAge:         600,
	})
}

// detectSuspicious logs probing requests. They are still served; the rate
// limiter and validation handle abuse.
func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := s.securityDetector.Inspect(r); reason != "" {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(),
				"Suspicious request detected",
				log.FieldReason, reason,
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// invalidateRollups drops every cached rollup. Any write can move money
// between months, so the cache is cleared wholesale.
func (s *Server) invalidateRollups(ctx context.Context) {
	if n := s.rollups.Clear(); n > 0 {
		slog.DebugContext(ctx, "Rollup cache invalidated", "entries_removed", n)
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
