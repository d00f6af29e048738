package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/database"
	"github.com/vivesbank/backend/shared/models"
)

const accountColumns = `guid, iban, balance, account_type_guid, card_guid, client_guid, is_deleted, created_at, updated_at`

// AccountWriteRepository handles all state-mutating operations for accounts.
// Balance changes belong to the movement ledger, not to this repository.
type AccountWriteRepository struct {
	db *sql.DB
}

func NewAccountWriteRepository(db *sql.DB) *AccountWriteRepository {
	return &AccountWriteRepository{db: db}
}

func (r *AccountWriteRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.GUID, account.IBAN, account.Balance, account.AccountTypeGUID, nullString(account.CardGUID),
		account.ClientGUID, account.IsDeleted, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return translateAccountError(err, account)
	}
	return nil
}

func (r *AccountWriteRepository) GetByGUID(ctx context.Context, guid string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE guid = $1 AND is_deleted = FALSE`, guid)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("account", guid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *AccountWriteRepository) Update(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET account_type_guid = $2, card_guid = $3, client_guid = $4, updated_at = $5
		WHERE guid = $1 AND is_deleted = FALSE
	`
	result, err := r.db.ExecContext(ctx, query,
		account.GUID, account.AccountTypeGUID, nullString(account.CardGUID), account.ClientGUID, account.UpdatedAt)
	if err != nil {
		return translateAccountError(err, account)
	}
	return expectOneRow(result, "account", account.GUID)
}

// SoftDelete also releases the linked card so it can be attached elsewhere.
func (r *AccountWriteRepository) SoftDelete(ctx context.Context, guid string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET is_deleted = TRUE, card_guid = NULL, updated_at = NOW() WHERE guid = $1 AND is_deleted = FALSE`, guid)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return expectOneRow(result, "account", guid)
}

// CardInUse reports whether another active account already links cardGUID.
func (r *AccountWriteRepository) CardInUse(ctx context.Context, cardGUID, exceptAccountGUID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE card_guid = $1 AND guid <> $2 AND is_deleted = FALSE`,
		cardGUID, exceptAccountGUID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check card usage: %w", err)
	}
	return n > 0, nil
}

func translateAccountError(err error, account *models.Account) error {
	if database.UniqueViolation(err) {
		if database.ConstraintName(err) == "accounts_card_guid_key" {
			return apperrors.Conflict("account", "card", account.CardGUID)
		}
		return apperrors.Conflict("account", "iban", account.IBAN)
	}
	return fmt.Errorf("failed to save account: %w", err)
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var card sql.NullString
	if err := row.Scan(&a.GUID, &a.IBAN, &a.Balance, &a.AccountTypeGUID, &card,
		&a.ClientGUID, &a.IsDeleted, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.CardGUID = card.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
