// Package account implements the user-facing account endpoints of
// ecomap-gateway: registration, login, and self-service profile management.
//
// Register and login answer with the public user record and a session token
// whose subject is the user's email. Login failures never distinguish an
// unknown email from a wrong password.
//
// Handlers under /api/users/{id} and /api/users/me rely on a principal already
// attached by auth.Authenticator and must be wrapped in auth.RequirePrincipal.
package account
