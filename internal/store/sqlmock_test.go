// ABOUTME: Error-path tests for SQLiteStore against a mocked database/sql driver
// ABOUTME: Uses go-sqlmock to inject failures SQLite would not produce on demand

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := NewSQLiteStoreWithDB(db)
	require.NoError(t, err)
	return s, mock
}

func TestNewSQLiteStoreWithDB_SchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnError(errors.New("disk full"))

	_, err = NewSQLiteStoreWithDB(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_UniqueViolationMapsToErrEmailExists(t *testing.T) {
	s, mock := newMockedStore(t)
	user := testUser("user-1", "alice@example.com")

	mock.ExpectExec("INSERT INTO users").
		WithArgs(user.ID, user.Name, user.Email, user.PasswordHash, sqlmock.AnyArg()).
		WillReturnError(errors.New("UNIQUE constraint failed: users.email"))

	err := s.CreateUser(context.Background(), user)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_OtherErrorIsWrapped(t *testing.T) {
	s, mock := newMockedStore(t)
	user := testUser("user-1", "alice@example.com")

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("database is locked"))

	err := s.CreateUser(context.Background(), user)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailExists)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestFindByIdentifier_QueryErrorIsNotNotFound(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("alice@example.com").
		WillReturnError(errors.New("disk I/O error"))

	_, err := s.FindByIdentifier(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIdentifier_NoRows(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "created_at"}))

	_, err := s.FindByIdentifier(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUser_BadTimestamp(t *testing.T) {
	s, mock := newMockedStore(t)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "created_at"}).
		AddRow("user-1", "Alice", "alice@example.com", "hash", "yesterday")
	mock.ExpectQuery("SELECT id, name, email").WithArgs("user-1").WillReturnRows(rows)

	_, err := s.GetUser(context.Background(), "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing created_at")
}

func TestDeleteUser_NoRowsAffected(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectExec("DELETE FROM users").
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteUser(context.Background(), "ghost"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser_RowsAffectedError(t *testing.T) {
	s, mock := newMockedStore(t)

	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("driver cannot count rows")))

	err := s.UpdateUser(context.Background(), testUser("user-1", "alice@example.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected")
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.False(t, isUniqueConstraintError(nil))
	assert.False(t, isUniqueConstraintError(errors.New("database is locked")))
	assert.True(t, isUniqueConstraintError(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")))
}
