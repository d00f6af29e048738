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

const clientColumns = `guid, dni, name, surname, email, phone, street, number, postal_code, floor, door,
	profile_photo, dni_photo, user_guid, is_deleted, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// ClientWriteRepository handles all state-mutating operations for clients.
type ClientWriteRepository struct {
	db *sql.DB
}

func NewClientWriteRepository(db *sql.DB) *ClientWriteRepository {
	return &ClientWriteRepository{db: db}
}

func (r *ClientWriteRepository) Create(ctx context.Context, c *models.Client) error {
	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.GUID, c.DNI, c.Name, c.Surname, c.Email, c.Phone,
		c.Address.Street, c.Address.Number, c.Address.PostalCode, c.Address.Floor, c.Address.Door,
		c.ProfilePhoto, c.DNIPhoto, c.UserGUID, c.IsDeleted, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return translateClientError(err, c)
	}
	return nil
}

func (r *ClientWriteRepository) GetByGUID(ctx context.Context, guid string) (*models.Client, error) {
	return r.getOne(ctx, "guid = $1", guid)
}

func (r *ClientWriteRepository) GetByUserGUID(ctx context.Context, userGUID string) (*models.Client, error) {
	return r.getOne(ctx, "user_guid = $1", userGUID)
}

func (r *ClientWriteRepository) getOne(ctx context.Context, cond, key string) (*models.Client, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE `+cond+` AND is_deleted = FALSE`, key)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("client", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

func (r *ClientWriteRepository) Update(ctx context.Context, c *models.Client) error {
	query := `
		UPDATE clients
		SET name = $2, surname = $3, email = $4, phone = $5, street = $6, number = $7,
			postal_code = $8, floor = $9, door = $10, profile_photo = $11, dni_photo = $12, updated_at = $13
		WHERE guid = $1 AND is_deleted = FALSE
	`
	result, err := r.db.ExecContext(ctx, query,
		c.GUID, c.Name, c.Surname, c.Email, c.Phone,
		c.Address.Street, c.Address.Number, c.Address.PostalCode, c.Address.Floor, c.Address.Door,
		c.ProfilePhoto, c.DNIPhoto, c.UpdatedAt,
	)
	if err != nil {
		return translateClientError(err, c)
	}
	return expectOneRow(result, c.GUID)
}

func (r *ClientWriteRepository) SoftDelete(ctx context.Context, guid string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE clients SET is_deleted = TRUE, updated_at = NOW() WHERE guid = $1 AND is_deleted = FALSE`, guid)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return expectOneRow(result, guid)
}

// Forgotten lists what a hard delete removed, so caches can be purged.
type Forgotten struct {
	ClientGUID   string
	UserGUID     string
	AccountGUIDs []string
	IBANs        []string
	CardGUIDs    []string
}

// Forget hard-deletes a client together with its accounts, their cards and
// the owning user in one transaction.
func (r *ClientWriteRepository) Forget(ctx context.Context, c *models.Client) (*Forgotten, error) {
	out := &Forgotten{ClientGUID: c.GUID, UserGUID: c.UserGUID}
	err := database.InTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT guid, iban, card_guid FROM accounts WHERE client_guid = $1 FOR UPDATE`, c.GUID)
		if err != nil {
			return fmt.Errorf("failed to lock accounts: %w", err)
		}
		for rows.Next() {
			var guid, iban string
			var card sql.NullString
			if err := rows.Scan(&guid, &iban, &card); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan account: %w", err)
			}
			out.AccountGUIDs = append(out.AccountGUIDs, guid)
			out.IBANs = append(out.IBANs, iban)
			if card.Valid {
				out.CardGUIDs = append(out.CardGUIDs, card.String)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		steps := []struct {
			query string
			arg   any
		}{
			{`DELETE FROM accounts WHERE client_guid = $1`, c.GUID},
			{`DELETE FROM cards WHERE guid = ANY($1)`, pq.Array(out.CardGUIDs)},
			{`DELETE FROM clients WHERE guid = $1`, c.GUID},
			{`DELETE FROM users WHERE guid = $1`, c.UserGUID},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, step.arg); err != nil {
				return fmt.Errorf("failed to forget client: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func translateClientError(err error, c *models.Client) error {
	if database.UniqueViolation(err) {
		switch database.ConstraintName(err) {
		case "clients_dni_key":
			return apperrors.Conflict("client", "dni", c.DNI)
		case "clients_email_key":
			return apperrors.Conflict("client", "email", c.Email)
		case "clients_phone_key":
			return apperrors.Conflict("client", "phone", c.Phone)
		case "clients_user_guid_key":
			return apperrors.Conflict("client", "user", c.UserGUID)
		}
		return apperrors.Conflict("client", "guid", c.GUID)
	}
	return fmt.Errorf("failed to save client: %w", err)
}

func expectOneRow(result sql.Result, guid string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("client", guid)
	}
	return nil
}

func scanClient(row rowScanner) (*models.Client, error) {
	var c models.Client
	err := row.Scan(&c.GUID, &c.DNI, &c.Name, &c.Surname, &c.Email, &c.Phone,
		&c.Address.Street, &c.Address.Number, &c.Address.PostalCode, &c.Address.Floor, &c.Address.Door,
		&c.ProfilePhoto, &c.DNIPhoto, &c.UserGUID, &c.IsDeleted, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
