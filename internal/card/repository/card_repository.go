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

const cardColumns = `guid, number, expiry_date, cvv, pin, daily_limit, weekly_limit, monthly_limit, card_type, is_deleted, created_at, updated_at`

// CardOwner identifies who holds a card through the account it is linked to.
type CardOwner struct {
	AccountGUID string
	ClientGUID  string
	UserGUID    string
	Username    string
}

// CardWriteRepository is the PostgreSQL store for cards, secrets included.
type CardWriteRepository struct {
	db *sql.DB
}

func NewCardWriteRepository(db *sql.DB) *CardWriteRepository {
	return &CardWriteRepository{db: db}
}

func (r *CardWriteRepository) Create(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		card.GUID, card.Number, card.ExpiryDate, card.CVV, card.PIN,
		card.DailyLimit, card.WeeklyLimit, card.MonthlyLimit, string(card.CardType),
		card.IsDeleted, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		if database.UniqueViolation(err) {
			return apperrors.Conflict("card", "number", card.Number)
		}
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

func (r *CardWriteRepository) GetByGUID(ctx context.Context, guid string) (*models.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE guid = $1 AND is_deleted = FALSE`, guid)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("card", guid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

func (r *CardWriteRepository) GetByNumber(ctx context.Context, number string) (*models.Card, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE number = $1 AND is_deleted = FALSE`, number)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("card", number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

func (r *CardWriteRepository) Update(ctx context.Context, card *models.Card) error {
	query := `
		UPDATE cards
		SET pin = $2, daily_limit = $3, weekly_limit = $4, monthly_limit = $5, updated_at = $6
		WHERE guid = $1 AND is_deleted = FALSE
	`
	result, err := r.db.ExecContext(ctx, query,
		card.GUID, card.PIN, card.DailyLimit, card.WeeklyLimit, card.MonthlyLimit, card.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return expectOneRow(result, card.GUID)
}

func (r *CardWriteRepository) SoftDelete(ctx context.Context, guid string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE cards SET is_deleted = TRUE, updated_at = NOW() WHERE guid = $1 AND is_deleted = FALSE`, guid)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return expectOneRow(result, guid)
}

// Owner returns nil when the card is not linked to any active account.
func (r *CardWriteRepository) Owner(ctx context.Context, cardGUID string) (*CardOwner, error) {
	query := `
		SELECT a.guid, cl.guid, u.guid, u.username
		FROM accounts a
		JOIN clients cl ON cl.guid = a.client_guid
		JOIN users u ON u.guid = cl.user_guid
		WHERE a.card_guid = $1 AND a.is_deleted = FALSE
	`
	var owner CardOwner
	err := r.db.QueryRowContext(ctx, query, cardGUID).Scan(&owner.AccountGUID, &owner.ClientGUID, &owner.UserGUID, &owner.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card owner: %w", err)
	}
	return &owner, nil
}

func expectOneRow(result sql.Result, guid string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("card", guid)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	var card models.Card
	var cardType string
	if err := row.Scan(&card.GUID, &card.Number, &card.ExpiryDate, &card.CVV, &card.PIN,
		&card.DailyLimit, &card.WeeklyLimit, &card.MonthlyLimit, &cardType,
		&card.IsDeleted, &card.CreatedAt, &card.UpdatedAt); err != nil {
		return nil, err
	}
	card.CardType = models.CardType(cardType)
	return &card, nil
}
