package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgmodels "github.com/nbcore/notebookcore/pkg/models"
)

func userColumns() []string {
	return []string{"id", "email", "username", "password_hash", "is_active", "is_admin", "created_at", "updated_at", "last_login_at"}
}

func TestUserRepository_Create(t *testing.T) {
	bunDB, mock := newBunDBWithMock(t)
	repo := NewUserRepository(bunDB)

	mock.ExpectExec("^INSERT INTO \"users\"").WillReturnResult(sqlmock.NewResult(1, 1))

	user := &pkgmodels.User{ID: "u1", Email: "a@b.com", Username: "alice", PasswordHash: "hash"}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByEmail_NotFound(t *testing.T) {
	bunDB, mock := newBunDBWithMock(t)
	repo := NewUserRepository(bunDB)

	mock.ExpectQuery("^SELECT").WillReturnRows(sqlmock.NewRows(userColumns()))

	user, err := repo.FindByEmail(context.Background(), "missing@example.com")
	require.NoError(t, err)
	assert.Nil(t, user)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByID_Found(t *testing.T) {
	bunDB, mock := newBunDBWithMock(t)
	repo := NewUserRepository(bunDB)

	now := time.Now()
	rows := sqlmock.NewRows(userColumns()).
		AddRow("u1", "a@b.com", "alice", "hash", true, false, now, now, nil)
	mock.ExpectQuery("^SELECT").WillReturnRows(rows)

	user, err := repo.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}
