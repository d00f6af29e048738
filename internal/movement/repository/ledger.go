package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/database"
)

// BalanceChange adds Delta to the balance of the account with IBAN.
type BalanceChange struct {
	IBAN  string
	Delta decimal.Decimal
}

// Balance is an account balance after a ledger write.
type Balance struct {
	GUID    string
	IBAN    string
	Balance decimal.Decimal
}

// Ledger applies balance changes to PostgreSQL accounts atomically.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Apply locks every touched account in IBAN order, applies all changes and
// commits only if no balance would go negative. The returned balances are in
// the order the changes were given.
func (l *Ledger) Apply(ctx context.Context, changes ...BalanceChange) ([]Balance, error) {
	ibans := make([]string, 0, len(changes))
	seen := make(map[string]bool, len(changes))
	for _, c := range changes {
		if !seen[c.IBAN] {
			seen[c.IBAN] = true
			ibans = append(ibans, c.IBAN)
		}
	}
	sort.Strings(ibans)

	var out []Balance
	err := database.InTx(ctx, l.db, func(tx *sql.Tx) error {
		locked, err := lockAccounts(ctx, tx, ibans)
		if err != nil {
			return err
		}
		for _, c := range changes {
			b := locked[c.IBAN]
			b.Balance = b.Balance.Add(c.Delta)
			if b.Balance.IsNegative() {
				return fmt.Errorf("account %s: %w", c.IBAN, apperrors.ErrInsufficientBalance)
			}
			locked[c.IBAN] = b
		}
		for _, iban := range ibans {
			b := locked[iban]
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET balance = $2, updated_at = NOW() WHERE guid = $1`, b.GUID, b.Balance); err != nil {
				return fmt.Errorf("failed to update balance: %w", err)
			}
		}
		out = make([]Balance, len(changes))
		for i, c := range changes {
			out[i] = locked[c.IBAN]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func lockAccounts(ctx context.Context, tx database.Tx, ibans []string) (map[string]Balance, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT guid, iban, balance FROM accounts
		WHERE iban = ANY($1) AND is_deleted = FALSE
		ORDER BY iban
		FOR UPDATE`, pq.Array(ibans))
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	defer rows.Close()

	locked := make(map[string]Balance, len(ibans))
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.GUID, &b.IBAN, &b.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		locked[b.IBAN] = b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, iban := range ibans {
		if _, ok := locked[iban]; !ok {
			return nil, apperrors.NotFound("account", iban)
		}
	}
	return locked, nil
}
