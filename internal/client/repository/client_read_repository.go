package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/database"
	"github.com/vivesbank/backend/shared/models"
	sharedredis "github.com/vivesbank/backend/shared/redis"
)

const userKeyPrefix = "user:"

var clientViewSelect = `
	SELECT ` + prefixed("c.", clientColumns) + `, u.username
	FROM clients c
	JOIN users u ON u.guid = c.user_guid
`

var clientSortColumns = map[string]string{
	"dni":              "c.dni",
	"name":             "c.name",
	"surname":          "c.surname",
	"email":            "c.email",
	"createdTimestamp": "c.created_at",
}

// ClientReadRepository serves client views through the tiered cache. Views
// are cached under both the client guid and the owning user guid.
type ClientReadRepository struct {
	db    *sql.DB
	cache *sharedredis.TieredCache[models.ClientView]
}

func NewClientReadRepository(db *sql.DB, cache *sharedredis.TieredCache[models.ClientView]) *ClientReadRepository {
	return &ClientReadRepository{db: db, cache: cache}
}

func (r *ClientReadRepository) GetByGUID(ctx context.Context, guid string) (*models.ClientView, error) {
	return r.cache.GetOrLoad(ctx, guid, func(ctx context.Context) (*models.ClientView, error) {
		return r.loadOne(ctx, "c.guid = $1", guid)
	})
}

func (r *ClientReadRepository) GetByUserGUID(ctx context.Context, userGUID string) (*models.ClientView, error) {
	return r.cache.GetOrLoad(ctx, userKeyPrefix+userGUID, func(ctx context.Context) (*models.ClientView, error) {
		return r.loadOne(ctx, "c.user_guid = $1", userGUID)
	})
}

func (r *ClientReadRepository) GetByDNI(ctx context.Context, dni string) (*models.ClientView, error) {
	return r.loadOne(ctx, "c.dni = $1", strings.ToUpper(dni))
}

func (r *ClientReadRepository) loadOne(ctx context.Context, cond, key string) (*models.ClientView, error) {
	row := r.db.QueryRowContext(ctx, clientViewSelect+` WHERE `+cond+` AND c.is_deleted = FALSE`, key)
	view, err := scanClientView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("client", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return view, nil
}

func (r *ClientReadRepository) List(ctx context.Context, q cqrs.ListClientsQuery) ([]models.ClientView, int64, error) {
	var f database.Filter
	f.Raw("c.is_deleted = FALSE")
	if q.DNI != "" {
		f.Add("UPPER(c.dni) LIKE ?", "%"+strings.ToUpper(q.DNI)+"%")
	}
	if q.Name != "" {
		f.Add("LOWER(c.name) LIKE ?", database.Like(q.Name))
	}
	if q.Surname != "" {
		f.Add("LOWER(c.surname) LIKE ?", database.Like(q.Surname))
	}
	if q.Email != "" {
		f.Add("LOWER(c.email) LIKE ?", database.Like(q.Email))
	}
	if q.Phone != "" {
		f.Add("c.phone LIKE ?", "%"+q.Phone+"%")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients c`+f.Where(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	sortColumn, ok := clientSortColumns[q.Page.SortBy]
	if !ok {
		sortColumn = "c.name"
	}
	page, args := f.Page(sortColumn, q.Page.Direction, q.Page.Size, q.Page.Offset())
	rows, err := r.db.QueryContext(ctx, clientViewSelect+f.Where()+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var views []models.ClientView
	for rows.Next() {
		v, err := scanClientView(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan client: %w", err)
		}
		views = append(views, *v)
	}
	return views, total, rows.Err()
}

// InvalidateClient drops both cache keys of a client.
func (r *ClientReadRepository) InvalidateClient(ctx context.Context, guid, userGUID string) {
	keys := []string{guid}
	if userGUID != "" {
		keys = append(keys, userKeyPrefix+userGUID)
	}
	r.cache.Delete(ctx, keys...)
}

func scanClientView(row rowScanner) (*models.ClientView, error) {
	var v models.ClientView
	c := &v.Client
	err := row.Scan(&c.GUID, &c.DNI, &c.Name, &c.Surname, &c.Email, &c.Phone,
		&c.Address.Street, &c.Address.Number, &c.Address.PostalCode, &c.Address.Floor, &c.Address.Door,
		&c.ProfilePhoto, &c.DNIPhoto, &c.UserGUID, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt, &v.Username)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
