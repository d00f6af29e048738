package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/database"
	"github.com/vivesbank/backend/shared/models"
	sharedredis "github.com/vivesbank/backend/shared/redis"
)

var cardSortColumns = map[string]string{
	"number":           "number",
	"cardType":         "card_type",
	"dailyLimit":       "daily_limit",
	"createdTimestamp": "created_at",
}

// CardReadRepository serves card views (no PIN or CVV) through the cache.
type CardReadRepository struct {
	writeRepo *CardWriteRepository
	db        *sql.DB
	cache     *sharedredis.TieredCache[models.CardView]
}

func NewCardReadRepository(db *sql.DB, cache *sharedredis.TieredCache[models.CardView]) *CardReadRepository {
	return &CardReadRepository{writeRepo: NewCardWriteRepository(db), db: db, cache: cache}
}

func (r *CardReadRepository) GetByGUID(ctx context.Context, guid string) (*models.CardView, error) {
	return r.cache.GetOrLoad(ctx, guid, func(ctx context.Context) (*models.CardView, error) {
		card, err := r.writeRepo.GetByGUID(ctx, guid)
		if err != nil {
			return nil, err
		}
		return card.View(), nil
	})
}

func (r *CardReadRepository) List(ctx context.Context, q cqrs.ListCardsQuery) ([]models.CardView, int64, error) {
	var f database.Filter
	f.Raw("is_deleted = FALSE")
	f.Add("number LIKE ?", database.Like(q.Number))
	f.Add("card_type = ?", string(q.CardType))
	for _, rng := range []struct {
		cond string
		val  any
		ok   bool
	}{
		{"daily_limit >= ?", q.MinDailyLimit, q.MinDailyLimit != nil},
		{"daily_limit <= ?", q.MaxDailyLimit, q.MaxDailyLimit != nil},
		{"weekly_limit >= ?", q.MinWeeklyLimit, q.MinWeeklyLimit != nil},
		{"weekly_limit <= ?", q.MaxWeeklyLimit, q.MaxWeeklyLimit != nil},
		{"monthly_limit >= ?", q.MinMonthlyLimit, q.MinMonthlyLimit != nil},
		{"monthly_limit <= ?", q.MaxMonthlyLimit, q.MaxMonthlyLimit != nil},
	} {
		if rng.ok {
			f.Add(rng.cond, rng.val)
		}
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards`+f.Where(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count cards: %w", err)
	}

	sortColumn, ok := cardSortColumns[q.Page.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	page, args := f.Page(sortColumn, q.Page.Direction, q.Page.Size, q.Page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards`+f.Where()+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var views []models.CardView
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan card: %w", err)
		}
		views = append(views, *card.View())
	}
	return views, total, rows.Err()
}

func (r *CardReadRepository) CacheCardView(ctx context.Context, view *models.CardView) {
	r.cache.Set(ctx, view.GUID, view)
}

func (r *CardReadRepository) InvalidateCardView(ctx context.Context, guids ...string) {
	r.cache.Delete(ctx, guids...)
}
