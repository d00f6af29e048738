package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/database"
	"github.com/vivesbank/backend/shared/models"
	sharedredis "github.com/vivesbank/backend/shared/redis"
)

const accountTypeColumns = `guid, name, interest, created_at, updated_at`

var accountTypeSortColumns = map[string]string{
	"name":             "name",
	"interest":         "interest",
	"createdTimestamp": "created_at",
}

// AccountTypeRepository stores the account products in PostgreSQL and serves
// single lookups through the cache.
type AccountTypeRepository struct {
	db    *sql.DB
	cache *sharedredis.TieredCache[models.AccountType]
}

func NewAccountTypeRepository(db *sql.DB, cache *sharedredis.TieredCache[models.AccountType]) *AccountTypeRepository {
	return &AccountTypeRepository{db: db, cache: cache}
}

func (r *AccountTypeRepository) Create(ctx context.Context, t *models.AccountType) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO account_types (`+accountTypeColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		t.GUID, t.Name, t.Interest, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if database.UniqueViolation(err) {
			return apperrors.Conflict("account type", "name", t.Name)
		}
		return fmt.Errorf("failed to create account type: %w", err)
	}
	r.cache.Set(ctx, t.GUID, t)
	return nil
}

func (r *AccountTypeRepository) GetByGUID(ctx context.Context, guid string) (*models.AccountType, error) {
	return r.cache.GetOrLoad(ctx, guid, func(ctx context.Context) (*models.AccountType, error) {
		row := r.db.QueryRowContext(ctx, `SELECT `+accountTypeColumns+` FROM account_types WHERE guid = $1`, guid)
		t, err := scanAccountType(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("account type", guid)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get account type: %w", err)
		}
		return t, nil
	})
}

func (r *AccountTypeRepository) Update(ctx context.Context, t *models.AccountType) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE account_types SET name = $2, interest = $3, updated_at = $4 WHERE guid = $1`,
		t.GUID, t.Name, t.Interest, t.UpdatedAt)
	if err != nil {
		if database.UniqueViolation(err) {
			return apperrors.Conflict("account type", "name", t.Name)
		}
		return fmt.Errorf("failed to update account type: %w", err)
	}
	if err := expectOneRow(result, "account type", t.GUID); err != nil {
		return err
	}
	r.cache.Set(ctx, t.GUID, t)
	return nil
}

// Delete fails with ErrConflict while accounts still reference the type.
func (r *AccountTypeRepository) Delete(ctx context.Context, guid string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM account_types WHERE guid = $1`, guid)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return fmt.Errorf("account type %s is in use: %w", guid, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to delete account type: %w", err)
	}
	if err := expectOneRow(result, "account type", guid); err != nil {
		return err
	}
	r.cache.Delete(ctx, guid)
	return nil
}

func (r *AccountTypeRepository) List(ctx context.Context, q cqrs.ListAccountTypesQuery) ([]models.AccountType, int64, error) {
	var f database.Filter
	f.Add("LOWER(name) LIKE ?", database.Like(q.Name))
	if q.MinInterest != nil {
		f.Add("interest >= ?", q.MinInterest)
	}
	if q.MaxInterest != nil {
		f.Add("interest <= ?", q.MaxInterest)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM account_types`+f.Where(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count account types: %w", err)
	}

	sortColumn, ok := accountTypeSortColumns[q.Page.SortBy]
	if !ok {
		sortColumn = "name"
	}
	page, args := f.Page(sortColumn, q.Page.Direction, q.Page.Size, q.Page.Offset())
	types, err := r.query(ctx, `SELECT `+accountTypeColumns+` FROM account_types`+f.Where()+page, args...)
	if err != nil {
		return nil, 0, err
	}
	return types, total, nil
}

// All returns every account type ordered by name; the catalogue is small.
func (r *AccountTypeRepository) All(ctx context.Context) ([]models.AccountType, error) {
	return r.query(ctx, `SELECT `+accountTypeColumns+` FROM account_types ORDER BY name`)
}

func (r *AccountTypeRepository) query(ctx context.Context, query string, args ...any) ([]models.AccountType, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list account types: %w", err)
	}
	defer rows.Close()

	var out []models.AccountType
	for rows.Next() {
		t, err := scanAccountType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account type: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccountType(row rowScanner) (*models.AccountType, error) {
	var t models.AccountType
	if err := row.Scan(&t.GUID, &t.Name, &t.Interest, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func expectOneRow(result sql.Result, entity, guid string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound(entity, guid)
	}
	return nil
}
