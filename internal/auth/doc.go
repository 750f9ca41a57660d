// Package auth issues, validates, and enforces signed session tokens for the
// ecomap-gateway HTTP API.
//
// # Tokens
//
// Tokens are compact HS256 JWTs (header.payload.signature, base64url without
// padding). The payload carries:
//
//   - sub: the principal identifier (email)
//   - iat: issue time, whole seconds since the epoch
//   - exp: iat + configured TTL; a token is expired once now >= exp
//   - any extra claims supplied at issue time
//
// The signing key is derived once from auth.jwt_secret, which must be standard
// base64 decoding to at least 32 bytes:
//
//	codec, err := NewCodec(secret, 30*24*time.Hour)
//	token, err := codec.Encode("alice@example.com", nil)
//	claims, err := codec.Decode(token)
//
// Decode failures wrap ErrMalformedToken, ErrInvalidSignature, or
// ErrExpiredToken. A bad secret wraps ErrSigningKeyDerivation and is fatal at
// startup.
//
// # Middleware
//
// Authenticator.Middleware runs once per request:
//
//  1. Paths under a public prefix are forwarded untouched.
//  2. A missing or non-Bearer Authorization header is forwarded as anonymous.
//  3. A token that fails to decode is logged and forwarded as anonymous.
//  4. The subject is resolved through the user store; on success the
//     Principal and its authorities are attached to the request context.
//
// The middleware never writes a response. Protected handlers must be wrapped
// with RequirePrincipal or RequireAuthority, which answer 401/403.
//
// # Route classification
//
// RouteClassifier matches request paths against public prefixes. Verify
// checks a route table at startup so that a protected route can never fall
// under a public prefix by accident.
package auth
