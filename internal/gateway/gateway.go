// ABOUTME: Gateway struct orchestrating the HTTP server, auth pipeline, and user store
// ABOUTME: Builds the route table, verifies it against public prefixes, and manages lifecycle

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/2389/ecomap-gateway/internal/account"
	"github.com/2389/ecomap-gateway/internal/auth"
	"github.com/2389/ecomap-gateway/internal/config"
	"github.com/2389/ecomap-gateway/internal/metrics"
	"github.com/2389/ecomap-gateway/internal/store"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Gateway is the main ecomap-gateway server
type Gateway struct {
	config     *config.Config
	store      store.UserStore
	codec      *auth.Codec
	classifier *auth.RouteClassifier
	authn      *auth.Authenticator
	metrics    *metrics.Metrics // nil when metrics are disabled
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger

	// public records the declared visibility of each registered path template.
	public map[string]bool
}

// initStore creates and returns a store based on config.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	s, err := store.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a new Gateway instance with the given configuration.
// A bad signing secret or a route table that disagrees with the public
// prefixes is returned as an error and must stop startup.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw, err := newGateway(cfg, s, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	return gw, nil
}

func newGateway(cfg *config.Config, s store.UserStore, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := auth.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token codec: %w", err)
	}

	classifier, err := auth.NewRouteClassifier(cfg.Auth.PublicPrefixes)
	if err != nil {
		return nil, fmt.Errorf("creating route classifier: %w", err)
	}

	gw := &Gateway{
		config:     cfg,
		store:      s,
		codec:      codec,
		classifier: classifier,
		logger:     logger.With("component", "gateway"),
		public:     make(map[string]bool),
	}

	var recorder auth.DecisionRecorder
	if cfg.Metrics.Enabled {
		gw.metrics = metrics.New(prometheus.NewRegistry())
		recorder = gw.metrics
	}

	gw.authn, err = auth.NewAuthenticator(auth.MiddlewareConfig{
		Decoder:    codec,
		Classifier: classifier,
		Resolver:   auth.NewPrincipalResolver(s),
		Recorder:   recorder,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}

	gw.router = mux.NewRouter()
	gw.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendJSONError(w, http.StatusNotFound, "not found")
	})
	gw.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	gw.registerRoutes(account.New(s, codec, logger))

	if err := gw.verifyRoutes(); err != nil {
		return nil, err
	}

	var routed http.Handler = gw.router
	if gw.metrics != nil {
		routed = gw.metrics.Instrument(gw.router)
	}
	gw.handler = requestIDMiddleware(gw.authn.Middleware(routed))
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	return gw, nil
}

// handle registers a route and records whether it is meant to be public.
// Protected routes are wrapped in auth.RequirePrincipal.
func (g *Gateway) handle(path string, public bool, h http.HandlerFunc, methods ...string) {
	var handler http.Handler = h
	if !public {
		handler = auth.RequirePrincipal()(handler)
	}
	g.router.Handle(path, handler).Methods(methods...)
	g.public[path] = public
}

func (g *Gateway) registerRoutes(accounts *account.Handlers) {
	g.handle("/health", true, g.handleHealth, http.MethodGet)
	g.handle("/api/auth/validate", true, g.handleValidateToken, http.MethodPost)

	g.handle("/api/users/register", true, accounts.HandleRegister, http.MethodPost)
	g.handle("/api/users/login", true, accounts.HandleLogin, http.MethodPost)

	// /me must be registered before /{id}
	g.handle("/api/users/me", false, accounts.HandleMe, http.MethodGet)
	g.handle("/api/users/{id}", false, accounts.HandleGetUser, http.MethodGet)
	g.handle("/api/users/{id}", false, accounts.HandleUpdateUser, http.MethodPut)
	g.handle("/api/users/{id}", false, accounts.HandleDeleteUser, http.MethodDelete)

	if g.metrics != nil {
		g.router.Handle(g.config.Metrics.Path, g.metrics.Handler()).Methods(http.MethodGet)
		g.public[g.config.Metrics.Path] = true
		g.logger.Info("metrics enabled", "path", g.config.Metrics.Path)
	}
}

// Routes enumerates the router's table with each route's declared visibility.
// Routes added without a declaration are treated as protected.
func (g *Gateway) Routes() ([]auth.Route, error) {
	var routes []auth.Route
	seen := make(map[string]bool)
	err := g.router.Walk(func(route *mux.Route, router *mux.Router, ancestors []*mux.Route) error {
		tmpl, err := route.GetPathTemplate()
		if err != nil {
			return nil // routes matched by something other than a path
		}
		if seen[tmpl] {
			return nil
		}
		seen[tmpl] = true
		routes = append(routes, auth.Route{Path: tmpl, Public: g.public[tmpl]})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking routes: %w", err)
	}
	return routes, nil
}

func (g *Gateway) verifyRoutes() error {
	routes, err := g.Routes()
	if err != nil {
		return err
	}
	if err := g.classifier.Verify(routes); err != nil {
		return fmt.Errorf("route table does not match auth.public_prefixes: %w", err)
	}
	g.logger.Debug("route table verified", "routes", len(routes), "public_prefixes", g.classifier.Prefixes())
	return nil
}

// Handler returns the full HTTP handler chain.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// requestIDMiddleware ensures every request carries an X-Request-ID, echoed
// in the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// startServer starts the HTTP server in a goroutine, returning an error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ValidateTokenRequest is the body of POST /api/auth/validate.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse reports whether a token would authenticate.
type ValidateTokenResponse struct {
	Valid bool `json:"valid"`
}

// handleValidateToken handles POST /api/auth/validate.
func (g *Gateway) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	var req ValidateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ValidateTokenResponse{Valid: g.codec.Validate(req.Token)})
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
