// Package api exposes an Escrow engine as a JSON-over-HTTP RPC surface.
//
// Mutating routes resolve the caller through an Authenticator; read routes
// are public. All routes sit under a base path (default "/escrow") and share
// one optional token-bucket rate limiter.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/access"
)

// DefaultBasePath is the prefix routes are mounted under.
const DefaultBasePath = "/escrow"

// Handler serves the escrow RPC routes.
type Handler struct {
	engine   *escrow.Escrow
	auth     Authenticator
	limiter  *rate.Limiter
	logger   *slog.Logger
	basePath string
	router   *mux.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithAuthenticator sets how the caller of a mutating route is identified.
func WithAuthenticator(a Authenticator) Option {
	return func(h *Handler) { h.auth = a }
}

// WithRateLimit admits at most limit requests per second with the given burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(h *Handler) { h.limiter = rate.NewLimiter(limit, burst) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithBasePath sets the route prefix.
func WithBasePath(p string) Option {
	return func(h *Handler) { h.basePath = p }
}

// New builds a handler for e. Without WithAuthenticator the caller is read
// from the X-Escrow-Caller header.
func New(e *escrow.Escrow, opts ...Option) *Handler {
	h := &Handler{
		engine:   e,
		auth:     HeaderAuthenticator{},
		logger:   slog.Default(),
		basePath: DefaultBasePath,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.basePath = strings.TrimRight("/"+strings.Trim(h.basePath, "/"), "/")

	h.router = mux.NewRouter()
	h.Register(h.router)
	return h
}

// BasePath returns the normalized route prefix; "" means the root.
func (h *Handler) BasePath() string { return h.basePath }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Register mounts the routes on r under the base path.
func (h *Handler) Register(r *mux.Router) {
	sr := r
	if h.basePath != "" {
		sr = r.PathPrefix(h.basePath).Subrouter()
	}
	sr.Use(h.rateLimit)

	// Ledger
	sr.HandleFunc("/deposit", h.authed(h.deposit)).Methods(http.MethodPost)
	sr.HandleFunc("/withdraw", h.authed(h.withdraw)).Methods(http.MethodPost)
	sr.HandleFunc("/fee", h.authed(h.setFee)).Methods(http.MethodPut)
	sr.HandleFunc("/relayer", h.authed(h.setRelayer)).Methods(http.MethodPut)

	// Vouchers
	sr.HandleFunc("/vouchers", h.authed(h.addVouchers)).Methods(http.MethodPost)
	sr.HandleFunc("/vouchers/approve", h.authed(h.approve)).Methods(http.MethodPost)
	sr.HandleFunc("/vouchers/send", h.authed(h.send)).Methods(http.MethodPost)
	sr.HandleFunc("/vouchers/reclaim", h.authed(h.reclaim)).Methods(http.MethodPost)
	sr.HandleFunc("/vouchers/{code}/claim", h.authed(h.claim)).Methods(http.MethodPost)
	sr.HandleFunc("/vouchers/{code}", h.getVoucher).Methods(http.MethodGet)

	// Queries
	sr.HandleFunc("/accounts/{address}", h.getAccount).Methods(http.MethodGet)
	sr.HandleFunc("/accounts/{address}/vouchers", h.listVouchers).Methods(http.MethodGet)
	sr.HandleFunc("/accounts/{address}/roles/{role}", h.hasRole).Methods(http.MethodGet)
	sr.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	sr.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
}

type callerHandler func(w http.ResponseWriter, r *http.Request, caller access.Address)

func (h *Handler) authed(next callerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := h.auth.Authenticate(r)
		if err != nil {
			h.logger.Debug("api: caller not authenticated", "path", r.URL.Path, "error", err)
			h.fail(w, err)
			return
		}
		next(w, r, caller)
	}
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
