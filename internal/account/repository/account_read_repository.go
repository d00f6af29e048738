package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/database"
	"github.com/vivesbank/backend/shared/models"
	sharedredis "github.com/vivesbank/backend/shared/redis"
	"github.com/vivesbank/backend/shared/utils"
)

const ibanKeyPrefix = "iban:"

const accountViewSelect = `
	SELECT a.guid, a.iban, a.balance, a.account_type_guid, a.card_guid, a.client_guid,
		   u.guid, u.username, a.is_deleted, a.created_at, a.updated_at
	FROM accounts a
	JOIN clients cl ON cl.guid = a.client_guid
	JOIN users u ON u.guid = cl.user_guid
`

var accountSortColumns = map[string]string{
	"iban":             "a.iban",
	"balance":          "a.balance",
	"createdTimestamp": "a.created_at",
}

// accountCacheEntry is the cached representation of an account.
// Unlike models.AccountView, it serialises the owner so ownership checks and
// notification routing work from the cache.
type accountCacheEntry struct {
	GUID            string          `json:"guid"`
	IBAN            string          `json:"iban"`
	Balance         decimal.Decimal `json:"balance"`
	AccountTypeGUID string          `json:"accountTypeGuid"`
	CardGUID        string          `json:"cardGuid"`
	ClientGUID      string          `json:"clientGuid"`
	OwnerUserGUID   string          `json:"ownerUserGuid"`
	OwnerUsername   string          `json:"ownerUsername"`
	CreatedAt       time.Time       `json:"createdTimestamp"`
	UpdatedAt       time.Time       `json:"updatedTimestamp"`
}

type AccountCache = sharedredis.TieredCache[accountCacheEntry]

func NewAccountCache(client *goredis.Client, opts sharedredis.TieredOptions) *AccountCache {
	return sharedredis.NewTieredCache[accountCacheEntry]("account", client, opts)
}

// AccountReadRepository serves account views through the tiered cache and
// falls back to PostgreSQL, warming the cache on every cold read.
type AccountReadRepository struct {
	db    *sql.DB
	cache *AccountCache
}

func NewAccountReadRepository(db *sql.DB, cache *AccountCache) *AccountReadRepository {
	return &AccountReadRepository{db: db, cache: cache}
}

func entryToView(e *accountCacheEntry) *models.AccountView {
	return &models.AccountView{
		GUID:            e.GUID,
		IBAN:            e.IBAN,
		Balance:         e.Balance,
		AccountTypeGUID: e.AccountTypeGUID,
		CardGUID:        e.CardGUID,
		ClientGUID:      e.ClientGUID,
		OwnerUserGUID:   e.OwnerUserGUID,
		OwnerUsername:   e.OwnerUsername,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func viewToEntry(v *models.AccountView) *accountCacheEntry {
	return &accountCacheEntry{
		GUID:            v.GUID,
		IBAN:            v.IBAN,
		Balance:         v.Balance,
		AccountTypeGUID: v.AccountTypeGUID,
		CardGUID:        v.CardGUID,
		ClientGUID:      v.ClientGUID,
		OwnerUserGUID:   v.OwnerUserGUID,
		OwnerUsername:   v.OwnerUsername,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
	}
}

func (r *AccountReadRepository) GetByGUID(ctx context.Context, guid string) (*models.AccountView, error) {
	entry, err := r.cache.GetOrLoad(ctx, guid, func(ctx context.Context) (*accountCacheEntry, error) {
		return r.loadOne(ctx, "a.guid = $1", guid)
	})
	if err != nil {
		return nil, err
	}
	return entryToView(entry), nil
}

func (r *AccountReadRepository) GetByIBAN(ctx context.Context, iban string) (*models.AccountView, error) {
	entry, err := r.cache.GetOrLoad(ctx, ibanKeyPrefix+iban, func(ctx context.Context) (*accountCacheEntry, error) {
		return r.loadOne(ctx, "a.iban = $1", iban)
	})
	if err != nil {
		return nil, err
	}
	return entryToView(entry), nil
}

func (r *AccountReadRepository) loadOne(ctx context.Context, cond string, key string) (*accountCacheEntry, error) {
	row := r.db.QueryRowContext(ctx, accountViewSelect+` WHERE `+cond+` AND a.is_deleted = FALSE`, key)
	view, err := scanAccountView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("account", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return viewToEntry(view), nil
}

func (r *AccountReadRepository) List(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.AccountView, int64, error) {
	var f database.Filter
	f.Raw("a.is_deleted = FALSE")
	f.Add("a.iban LIKE ?", likeUpper(q.IBAN))
	if q.MinBalance != nil {
		f.Add("a.balance >= ?", q.MinBalance)
	}
	if q.MaxBalance != nil {
		f.Add("a.balance <= ?", q.MaxBalance)
	}
	f.Add("a.account_type_guid IN (SELECT guid FROM account_types WHERE LOWER(name) LIKE ?)", database.Like(q.AccountType))

	var total int64
	countQuery := `SELECT COUNT(*) FROM accounts a` + f.Where()
	if err := r.db.QueryRowContext(ctx, countQuery, f.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count accounts: %w", err)
	}

	sortColumn, ok := accountSortColumns[q.Page.SortBy]
	if !ok {
		sortColumn = "a.created_at"
	}
	page, args := f.Page(sortColumn, q.Page.Direction, q.Page.Size, q.Page.Offset())
	views, err := r.queryViews(ctx, accountViewSelect+f.Where()+page, args...)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (r *AccountReadRepository) ListByClient(ctx context.Context, clientGUID string) ([]models.AccountView, error) {
	return r.queryViews(ctx, accountViewSelect+` WHERE a.client_guid = $1 AND a.is_deleted = FALSE ORDER BY a.created_at`, clientGUID)
}

func (r *AccountReadRepository) queryViews(ctx context.Context, query string, args ...any) ([]models.AccountView, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var views []models.AccountView
	for rows.Next() {
		view, err := scanAccountView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		views = append(views, *view)
	}
	return views, rows.Err()
}

// CacheAccountView stores the view under both its guid and its IBAN.
func (r *AccountReadRepository) CacheAccountView(ctx context.Context, view *models.AccountView) {
	entry := viewToEntry(view)
	r.cache.Set(ctx, view.GUID, entry)
	r.cache.Set(ctx, ibanKeyPrefix+view.IBAN, entry)
}

func (r *AccountReadRepository) InvalidateAccount(ctx context.Context, guid, iban string) {
	keys := []string{guid}
	if iban != "" {
		keys = append(keys, ibanKeyPrefix+iban)
	}
	r.cache.Delete(ctx, keys...)
}

// Purge drops every cached account; used after bulk removals.
func (r *AccountReadRepository) Purge(ctx context.Context) {
	r.cache.Purge(ctx)
}

func scanAccountView(row rowScanner) (*models.AccountView, error) {
	var v models.AccountView
	var card sql.NullString
	if err := row.Scan(&v.GUID, &v.IBAN, &v.Balance, &v.AccountTypeGUID, &card, &v.ClientGUID,
		&v.OwnerUserGUID, &v.OwnerUsername, &v.IsDeleted, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.CardGUID = card.String
	return &v, nil
}

func likeUpper(s string) string {
	if s == "" {
		return ""
	}
	return "%" + utils.NormalizeIBAN(s) + "%"
}
