// Package gateway assembles the ecomap-gateway HTTP server.
//
// # Overview
//
// The Gateway owns the user store, the token codec, the authentication
// middleware, and the gorilla/mux route table. Requests flow through:
//
//	requestIDMiddleware -> auth.Authenticator.Middleware -> metrics.Instrument -> mux.Router -> guard -> handler
//
// # HTTP API
//
//   - GET /health - Liveness check (public)
//   - POST /api/auth/validate - Report whether a token is valid (public)
//   - POST /api/users/register - Create an account and return a token (public)
//   - POST /api/users/login - Exchange credentials for a token (public)
//   - GET /api/users/me - Describe the authenticated principal
//   - GET/PUT/DELETE /api/users/{id} - Read, update, or delete an account
//   - GET /metrics - Prometheus scrape endpoint, when metrics.enabled (public)
//
// # Route verification
//
// Every route is registered as public or protected. New walks the router and
// checks each path template against auth.public_prefixes: a protected route
// under a public prefix, or a public route outside every prefix, fails startup.
// Protected routes are always wrapped in auth.RequirePrincipal.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err // bad secret, store failure, or misclassified route
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled, then shuts down
package gateway
