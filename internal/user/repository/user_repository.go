package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/database"
	"github.com/vivesbank/backend/shared/models"
)

const userColumns = `guid, username, password_hash, roles, is_deleted, created_at, updated_at`

// UserWriteRepository handles all state-mutating operations for users.
// It operates exclusively against the PostgreSQL write store (source of truth).
type UserWriteRepository struct {
	db *sql.DB
}

func NewUserWriteRepository(db *sql.DB) *UserWriteRepository {
	return &UserWriteRepository{db: db}
}

func (r *UserWriteRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (guid, username, password_hash, roles, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.GUID, user.Username, user.PasswordHash, pq.Array(rolesToStrings(user.Roles)),
		user.IsDeleted, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if database.UniqueViolation(err) {
			return apperrors.Conflict("user", "username", user.Username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByGUID includes soft-deleted users so admins can inspect them.
func (r *UserWriteRepository) GetByGUID(ctx context.Context, guid string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE guid = $1`, guid)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user", guid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByUsername only returns active users; it backs sign-in.
func (r *UserWriteRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 AND is_deleted = FALSE`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserWriteRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $2, password_hash = $3, roles = $4, updated_at = $5
		WHERE guid = $1 AND is_deleted = FALSE
	`
	result, err := r.db.ExecContext(ctx, query,
		user.GUID, user.Username, user.PasswordHash, pq.Array(rolesToStrings(user.Roles)), user.UpdatedAt)
	if err != nil {
		if database.UniqueViolation(err) {
			return apperrors.Conflict("user", "username", user.Username)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOneRow(result, user.GUID)
}

func (r *UserWriteRepository) SoftDelete(ctx context.Context, guid string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_deleted = TRUE, updated_at = NOW() WHERE guid = $1 AND is_deleted = FALSE`, guid)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectOneRow(result, guid)
}

func expectOneRow(result sql.Result, guid string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("user", guid)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var roles pq.StringArray
	if err := row.Scan(&user.GUID, &user.Username, &user.PasswordHash, &roles,
		&user.IsDeleted, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.Roles = stringsToRoles(roles)
	return &user, nil
}

func rolesToStrings(roles []models.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func stringsToRoles(in []string) []models.Role {
	out := make([]models.Role, len(in))
	for i, r := range in {
		out[i] = models.Role(r)
	}
	return out
}
