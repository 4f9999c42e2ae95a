package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dexther/core/events"
	"dexther/core/state"
	"dexther/native/dexther"
	"dexther/observability/metrics"
	"dexther/services/dextherd/assets"
)

// ReceiptStore persists settlement receipts.
type ReceiptStore interface {
	Save(ctx context.Context, receipt *dexther.Receipt) error
	Get(ctx context.Context, digest common.Hash) (*dexther.Receipt, error)
	ListByParty(ctx context.Context, party common.Address, limit int) ([]*dexther.Receipt, error)
}

// Config captures the dependencies required to construct the server.
type Config struct {
	Engine      *dexther.Engine
	State       *state.Manager
	Book        *assets.Book
	Receipts    ReceiptStore
	Broadcaster *events.Broadcaster
	Metrics     *metrics.DextherMetrics
	Gatherer    prometheus.Gatherer
	Logger      *slog.Logger
	Auth        AuthConfig
	RateLimit   RateLimit
}

// Server exposes the settlement and offer engines over HTTP.
type Server struct {
	engine      *dexther.Engine
	state       *state.Manager
	book        *assets.Book
	receipts    ReceiptStore
	broadcaster *events.Broadcaster
	metrics     *metrics.DextherMetrics
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	auth        *Authenticator
	limiter     *RateLimiter

	router http.Handler
}

// New constructs a configured HTTP router.
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil || cfg.State == nil {
		return nil, errors.New("server: engine and state are required")
	}
	if cfg.Book == nil {
		return nil, errors.New("server: asset book is required")
	}
	if cfg.Receipts == nil {
		return nil, errors.New("server: receipt store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = events.NewBroadcaster()
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	auth, err := NewAuthenticator(cfg.Auth, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	srv := &Server{
		engine:      cfg.Engine,
		state:       cfg.State,
		book:        cfg.Book,
		receipts:    cfg.Receipts,
		broadcaster: cfg.Broadcaster,
		metrics:     cfg.Metrics,
		gatherer:    cfg.Gatherer,
		logger:      cfg.Logger,
		auth:        auth,
		limiter:     NewRateLimiter(cfg.RateLimit),
	}
	srv.router = srv.buildRouter()
	return srv, nil
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(s.observe)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(s.limiter.Middleware)
			public.Get("/domain", s.handleDomain)
			public.Post("/digest", s.handleDigest)
			public.Get("/swaps/{digest}", s.handleGetReceipt)
			public.Get("/parties/{party}/swaps", s.handleListReceipts)
			public.Get("/nonces/{party}/{nonce}", s.handleNonce)
			public.Get("/admin", s.handleAdminInfo)
			public.Get("/offers/{id}", s.handleGetOffer)
			public.Get("/assets", s.handleListAssets)
			public.Get("/assets/{token}/balance/{owner}", s.handleBalance)
			public.Get("/events", s.handleEvents)
		})
		api.Group(func(protected chi.Router) {
			protected.Use(s.auth.Middleware)
			protected.Use(s.limiter.Middleware)
			protected.Post("/swaps", s.handlePerformSwap)
			protected.Post("/admin", s.handleSetAdmin)
			protected.Post("/admin/fee", s.handleUpdateFee)
			protected.Post("/admin/treasury", s.handleSetTreasury)
			protected.Post("/admin/pause", s.handleSetPaused)
			protected.Post("/offers", s.handleCreateOffer)
			protected.Post("/offers/{id}/swap", s.handleOfferSwap)
			protected.Post("/offers/{id}/finalize", s.handleOfferFinalize)
			protected.Post("/offers/{id}/decline", s.handleOfferDecline)
			protected.Post("/offers/{id}/cancel", s.handleOfferCancel)
			protected.Post("/offers/{id}/expire", s.handleOfferExpire)
			protected.Post("/assets/{token}/approve", s.handleApprove)
			protected.Post("/assets/{token}/mint", s.handleMint)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.engine.Admin(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "engine not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type requestIDKey struct{}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// observe logs every request and records its latency against the matched
// route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveHTTP(route, status, elapsed)
		s.logger.Info("http request",
			"request_id", requestIDFrom(r.Context()),
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}
