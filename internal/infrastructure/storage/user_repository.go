package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/nbcore/notebookcore/internal/domain/repository"
	"github.com/nbcore/notebookcore/internal/infrastructure/storage/models"
	pkgmodels "github.com/nbcore/notebookcore/pkg/models"
)

var _ repository.UserRepository = (*UserRepository)(nil)

// UserRepository implements repository.UserRepository over Bun/Postgres.
type UserRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *pkgmodels.User) error {
	row := &models.UserModel{
		ID:           user.ID,
		Email:        user.Email,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		IsActive:     user.IsActive,
		IsAdmin:      user.IsAdmin,
	}
	_, err := r.db.NewInsert().Model(row).Exec(ctx)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	user.CreatedAt = row.CreatedAt
	user.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*pkgmodels.User, error) {
	row := new(models.UserModel)
	err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return userFromRow(row), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*pkgmodels.User, error) {
	row := new(models.UserModel)
	err := r.db.NewSelect().Model(row).Where("LOWER(email) = LOWER(?)", email).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return userFromRow(row), nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*models.UserModel)(nil)).
		Set("last_login_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

func userFromRow(row *models.UserModel) *pkgmodels.User {
	return &pkgmodels.User{
		ID:           row.ID,
		Email:        row.Email,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		IsActive:     row.IsActive,
		IsAdmin:      row.IsAdmin,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		LastLoginAt:  row.LastLoginAt,
	}
}
