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

var userSortColumns = map[string]string{
	"username":         "username",
	"createdTimestamp": "created_at",
	"guid":             "guid",
}

// UserReadRepository serves user views from the tiered cache, falling back to
// PostgreSQL on a miss.
type UserReadRepository struct {
	writeRepo *UserWriteRepository
	db        *sql.DB
	cache     *sharedredis.TieredCache[models.UserView]
}

func NewUserReadRepository(db *sql.DB, cache *sharedredis.TieredCache[models.UserView]) *UserReadRepository {
	return &UserReadRepository{writeRepo: NewUserWriteRepository(db), db: db, cache: cache}
}

func (r *UserReadRepository) GetByGUID(ctx context.Context, guid string) (*models.UserView, error) {
	return r.cache.GetOrLoad(ctx, guid, func(ctx context.Context) (*models.UserView, error) {
		user, err := r.writeRepo.GetByGUID(ctx, guid)
		if err != nil {
			return nil, err
		}
		return user.View(), nil
	})
}

func (r *UserReadRepository) List(ctx context.Context, q cqrs.ListUsersQuery) ([]models.UserView, int64, error) {
	var f database.Filter
	f.Add("LOWER(username) LIKE ?", database.Like(q.Username))
	f.Add("? = ANY(roles)", string(q.Role))

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+f.Where(), f.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	sortColumn, ok := userSortColumns[q.Page.SortBy]
	if !ok {
		sortColumn = "username"
	}
	page, args := f.Page(sortColumn, q.Page.Direction, q.Page.Size, q.Page.Offset())
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+f.Where()+page, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var views []models.UserView
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		views = append(views, *user.View())
	}
	return views, total, rows.Err()
}

// CacheUserView stores or refreshes the cached view for a user.
func (r *UserReadRepository) CacheUserView(ctx context.Context, view *models.UserView) {
	r.cache.Set(ctx, view.GUID, view)
}

func (r *UserReadRepository) InvalidateUserView(ctx context.Context, guid string) {
	r.cache.Delete(ctx, guid)
}
