// ABOUTME: User persistence interface and data types for ecomap-gateway
// ABOUTME: The auth layer only reads users; registration writes them

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when registering an email that is already taken
var ErrEmailExists = errors.New("email already exists")

// User is a registered account. Email is the login identifier and the
// subject of issued tokens.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
}

// UserStore defines the interface for user persistence
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id string) error

	// FindByIdentifier looks a user up by email (case-insensitive).
	// Returns ErrNotFound if no user matches.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)

	// Close releases any resources held by the store
	Close() error
}
