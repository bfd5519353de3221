package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budgetbeacon/internal/cache"
	"budgetbeacon/internal/log"
	"budgetbeacon/internal/middleware/ratelimit"
	"budgetbeacon/internal/middleware/security"
	"budgetbeacon/internal/middleware/trace"
	"budgetbeacon/internal/services"
)

// Options tunes a Server. Zero values take defaults.
type Options struct {
	Currency string

	RateLimit ratelimit.Config

	SummaryCacheSize int
	SummaryCacheTTL  time.Duration
	CacheCleanup     time.Duration

	MaxBodyBytes int64

	// TrustedProxies are CIDRs whose forwarding headers are believed.
	TrustedProxies []string
}

func (o Options) withDefaults() Options {
	if o.Currency == "" {
		o.Currency = "USD"
	}
	if o.SummaryCacheSize <= 0 {
		o.SummaryCacheSize = 64
	}
	if o.SummaryCacheTTL <= 0 {
		o.SummaryCacheTTL = 5 * time.Minute
	}
	if o.CacheCleanup <= 0 {
		o.CacheCleanup = time.Minute
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return o
}

// Server serves the JSON API of one BudgetService session.
type Server struct {
	http.Server

	service  *services.BudgetService
	logger   *log.Logger
	currency string
	maxBody  int64

	summaries *cache.SummaryCache
	caches    *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

func NewServer(addr string, service *services.BudgetService, logger *log.Logger, opts Options) *Server {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		service:   service,
		logger:    httpLogger,
		currency:  opts.Currency,
		maxBody:   opts.MaxBodyBytes,
		summaries: cache.NewSummaryCache(opts.SummaryCacheSize, opts.SummaryCacheTTL),
		caches:    cache.NewManager(logger.WithComponent(log.ComponentCache).Slog()),
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		detector:  security.NewDetector(logger.WithComponent(log.ComponentSecurity)),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			httpLogger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s.tracer = trace.NewMiddleware(httpLogger, s.detector.ExtractClientIP)

	s.caches.Register(s.summaries)
	s.caches.StartCleanup(opts.CacheCleanup)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.MutatingOnly, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})

	s.Handler = s.tracer.Middleware(
		s.detector.Middleware(
			headers.Middleware(
				limit(mux))))
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/state", s.handleState)

	mux.HandleFunc("GET /api/entries", s.handleListEntries)
	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("PUT /api/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categories/{type}/{name}", s.handleRenameCategory)
	mux.HandleFunc("DELETE /api/categories/{type}/{name}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/recurring", s.handleListRecurring)
	mux.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteRecurring)
	mux.HandleFunc("POST /api/recurring/{id}/pause", s.handleSetRecurringActive(false))
	mux.HandleFunc("POST /api/recurring/{id}/resume", s.handleSetRecurringActive(true))
	mux.HandleFunc("POST /api/materialize", s.handleMaterialize)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PATCH /api/settings", s.handleUpdateSettings)
	mux.HandleFunc("GET /api/budget", s.handleGetBudget)
	mux.HandleFunc("PUT /api/budget", s.handleSetBudget)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	mux.HandleFunc("GET /api/samples", s.handleSampleStatus)
	mux.HandleFunc("POST /api/samples", s.handleLoadSamples)
	mux.HandleFunc("DELETE /api/samples", s.handleClearSamples)

	mux.HandleFunc("GET /api/backup", s.handleExportBackup)
	mux.HandleFunc("POST /api/backup", s.handleImportBackup)
	mux.HandleFunc("GET /api/csv", s.handleExportCSV)
	mux.HandleFunc("POST /api/csv", s.handleImportCSV)

	mux.HandleFunc("POST /api/sync", s.handleSync)
	mux.HandleFunc("GET /api/onboarding", s.handleGetOnboarding)
	mux.HandleFunc("POST /api/onboarding", s.handleCompleteOnboarding)
}

// Shutdown stops the background goroutines and the HTTP server. Only the
// first call does anything.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// Metrics aggregates the counters of the middleware chain and the caches.
type Metrics struct {
	Requests           int64 `json:"requests"`
	ServerErrors       int64 `json:"serverErrors"`
	SuspiciousRequests int64 `json:"suspiciousRequests"`
	BlockedRequests    int64 `json:"blockedRequests"`
	RateLimited        int64 `json:"rateLimited"`
	CachedSummaries    int   `json:"cachedSummaries"`
}

func (s *Server) Metrics() Metrics {
	tm := s.tracer.GetMetrics()
	dm := s.detector.GetMetrics()
	rm := s.limiter.GetMetrics()
	return Metrics{
		Requests:           tm.TotalRequests,
		ServerErrors:       tm.ServerErrors,
		SuspiciousRequests: dm.SuspiciousRequests,
		BlockedRequests:    dm.BlockedRequests,
		RateLimited:        rm.TotalHits,
		CachedSummaries:    s.summaries.Size(),
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
