// Package store provides user persistence for ecomap-gateway using SQLite.
//
// UserStore is the only interface. SQLiteStore implements it with either the
// pure-Go modernc.org/sqlite driver ("sqlite", the default) or the cgo
// github.com/mattn/go-sqlite3 driver ("sqlite3"), selected by database.driver.
//
//	s, err := store.Open(store.DriverSQLite, "/var/lib/ecomap/gateway.db")
//	user, err := s.FindByIdentifier(ctx, "alice@example.com")
//
// Emails are unique and compared case-insensitively. Lookups that find nothing
// return ErrNotFound; duplicate registrations return ErrEmailExists.
//
// MockStore is an in-memory implementation for tests.
package store
