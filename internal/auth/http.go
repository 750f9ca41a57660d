// ABOUTME: HTTP middleware that attaches an authenticated principal to requests
// ABOUTME: Never rejects; RequirePrincipal/RequireAuthority guards enforce access

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Decision outcomes reported to a DecisionRecorder.
const (
	OutcomePublic               = "public"
	OutcomeAnonymous            = "anonymous"
	OutcomeMalformed            = "malformed"
	OutcomeInvalidSignature     = "invalid_signature"
	OutcomeExpired              = "expired"
	OutcomeUnknownPrincipal     = "unknown_principal"
	OutcomeResolverError        = "resolver_error"
	OutcomeAlreadyAuthenticated = "already_authenticated"
	OutcomeAuthenticated        = "authenticated"
)

const bearerPrefix = "Bearer "

// TokenDecoder validates a token string into claims.
type TokenDecoder interface {
	Decode(token string) (*Claims, error)
}

// Resolver turns a token subject into a principal.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (*Principal, error)
}

// DecisionRecorder receives one outcome per authenticated pass.
type DecisionRecorder interface {
	RecordDecision(outcome string)
}

// MiddlewareConfig holds the collaborators of an Authenticator.
type MiddlewareConfig struct {
	Decoder    TokenDecoder
	Classifier *RouteClassifier
	Resolver   Resolver
	Recorder   DecisionRecorder // optional
	Logger     *slog.Logger     // optional
}

// Authenticator is the per-request authentication pass.
type Authenticator struct {
	decoder    TokenDecoder
	classifier *RouteClassifier
	resolver   Resolver
	recorder   DecisionRecorder
	logger     *slog.Logger
}

// NewAuthenticator validates cfg and returns an Authenticator.
func NewAuthenticator(cfg MiddlewareConfig) (*Authenticator, error) {
	if cfg.Decoder == nil {
		return nil, errors.New("auth: token decoder is required")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("auth: route classifier is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("auth: principal resolver is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		decoder:    cfg.Decoder,
		classifier: cfg.Classifier,
		resolver:   cfg.Resolver,
		recorder:   cfg.Recorder,
		logger:     logger.With("component", "auth"),
	}, nil
}

// extractBearerToken returns the token from an "Authorization: Bearer <token>"
// header value, or false if the header is absent or malformed.
func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}

// Middleware wraps next. Every request is forwarded exactly once, with a
// principal attached only when the token and subject both check out.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = a.authenticate(r)
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) authenticate(r *http.Request) *http.Request {
	if a.classifier.IsPublic(cleanPath(r.URL.Path)) {
		a.record(OutcomePublic)
		return r
	}

	token, ok := extractBearerToken(r.Header.Get("Authorization"))
	if !ok {
		a.record(OutcomeAnonymous)
		return r
	}

	logger := a.logger.With(
		"request_id", r.Header.Get("X-Request-ID"),
		"path", r.URL.Path,
	)

	claims, err := a.decoder.Decode(token)
	if err != nil {
		switch {
		case errors.Is(err, ErrExpiredToken):
			logger.Debug("token expired", "error", err)
			a.record(OutcomeExpired)
		case errors.Is(err, ErrInvalidSignature):
			logger.Warn("token signature rejected", "error", err)
			a.record(OutcomeInvalidSignature)
		default:
			logger.Warn("malformed token", "error", err)
			a.record(OutcomeMalformed)
		}
		return r
	}

	if _, ok := CurrentPrincipal(r.Context()); ok {
		a.record(OutcomeAlreadyAuthenticated)
		return r
	}

	principal, err := a.resolver.Resolve(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUnknownPrincipal) {
			logger.Info("token subject has no matching user", "subject", claims.Subject)
			a.record(OutcomeUnknownPrincipal)
		} else {
			logger.Warn("principal lookup failed", "subject", claims.Subject, "error", err)
			a.record(OutcomeResolverError)
		}
		return r
	}

	logger.Debug("authenticated principal attached", "subject", principal.Identifier)
	a.record(OutcomeAuthenticated)
	return r.WithContext(WithPrincipal(r.Context(), principal))
}

func (a *Authenticator) record(outcome string) {
	if a.recorder != nil {
		a.recorder.RecordDecision(outcome)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// RequirePrincipal rejects requests with no attached principal with 401.
// Must be used after Authenticator.Middleware.
func RequirePrincipal() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := CurrentPrincipal(r.Context()); !ok {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthority rejects anonymous requests with 401 and principals that
// lack authority with 403.
func RequireAuthority(authority string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := CurrentPrincipal(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !principal.HasAuthority(authority) {
				writeJSONError(w, http.StatusForbidden, authority+" authority required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
