package storage

import (
	"context"
	"time"

	"github.com/vivesbank/backend/shared/models"
)

type ClientFinder interface {
	GetByUserGUID(ctx context.Context, userGUID string) (*models.ClientView, error)
}

type AccountLister interface {
	ListByClient(ctx context.Context, clientGUID string) ([]models.AccountView, error)
}

type MovementLister interface {
	ListByClient(ctx context.Context, clientGUID string) ([]models.Movement, error)
	All(ctx context.Context) ([]models.Movement, error)
}

// ClientExport is everything the bank holds about one client.
type ClientExport struct {
	ExportedAt time.Time            `json:"exportedAt"`
	Client     *models.ClientView   `json:"client"`
	Accounts   []models.AccountView `json:"accounts"`
	Movements  []models.Movement    `json:"movements"`
}

type MovementsExport struct {
	ExportedAt time.Time         `json:"exportedAt"`
	Count      int               `json:"count"`
	Movements  []models.Movement `json:"movements"`
}

type ExportService struct {
	clients   ClientFinder
	accounts  AccountLister
	movements MovementLister
	now       func() time.Time
}

func NewExportService(clients ClientFinder, accounts AccountLister, movements MovementLister) *ExportService {
	return &ExportService{clients: clients, accounts: accounts, movements: movements, now: time.Now}
}

func (s *ExportService) ExportClient(ctx context.Context, userGUID string) (*ClientExport, error) {
	client, err := s.clients.GetByUserGUID(ctx, userGUID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.accounts.ListByClient(ctx, client.GUID)
	if err != nil {
		return nil, err
	}
	movements, err := s.movements.ListByClient(ctx, client.GUID)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []models.AccountView{}
	}
	if movements == nil {
		movements = []models.Movement{}
	}
	logger.Info().Str("client", client.GUID).Int("accounts", len(accounts)).Int("movements", len(movements)).Msg("client data exported")
	return &ClientExport{ExportedAt: s.now().UTC(), Client: client, Accounts: accounts, Movements: movements}, nil
}

// ExportMovements returns every movement, revoked ones included.
func (s *ExportService) ExportMovements(ctx context.Context) (*MovementsExport, error) {
	movements, err := s.movements.All(ctx)
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []models.Movement{}
	}
	return &MovementsExport{ExportedAt: s.now().UTC(), Count: len(movements), Movements: movements}, nil
}
