package query

import (
	"context"

	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/models"
)

type MovementReader interface {
	GetByGUID(ctx context.Context, guid string) (*models.Movement, error)
	List(ctx context.Context, page models.PageRequest) ([]models.Movement, int64, error)
	ListByClient(ctx context.Context, clientGUID string) ([]models.Movement, error)
}

type DirectDebitReader interface {
	ListByClient(ctx context.Context, clientGUID string) ([]models.DirectDebit, error)
}

type ClientGetter interface {
	GetByGUID(ctx context.Context, guid string) (*models.ClientView, error)
	GetByUserGUID(ctx context.Context, userGUID string) (*models.ClientView, error)
}

type MovementQueryService struct {
	movements    MovementReader
	directDebits DirectDebitReader
	clients      ClientGetter
}

func NewMovementQueryService(movements MovementReader, directDebits DirectDebitReader, clients ClientGetter) *MovementQueryService {
	return &MovementQueryService{movements: movements, directDebits: directDebits, clients: clients}
}

func (s *MovementQueryService) GetMovement(ctx context.Context, q cqrs.GetMovementQuery) (*models.Movement, error) {
	return s.movements.GetByGUID(ctx, q.GUID)
}

// ListMovements is newest first unless the caller asks for "asc".
func (s *MovementQueryService) ListMovements(ctx context.Context, q cqrs.ListMovementsQuery) (models.Page[models.Movement], error) {
	if q.Page.Direction == "" {
		q.Page.Direction = "desc"
	}
	q.Page = q.Page.Normalize("createdTimestamp", "createdTimestamp")
	movements, total, err := s.movements.List(ctx, q.Page)
	if err != nil {
		return models.Page[models.Movement]{}, err
	}
	return models.NewPage(movements, total, q.Page), nil
}

func (s *MovementQueryService) ListClientMovements(ctx context.Context, q cqrs.ListClientMovementsQuery) ([]models.Movement, error) {
	if _, err := s.clients.GetByGUID(ctx, q.ClientGUID); err != nil {
		return nil, err
	}
	return s.listByClient(ctx, q.ClientGUID)
}

func (s *MovementQueryService) ListMyMovements(ctx context.Context, q cqrs.ListMyMovementsQuery) ([]models.Movement, error) {
	client, err := s.clients.GetByUserGUID(ctx, q.UserGUID)
	if err != nil {
		return nil, err
	}
	return s.listByClient(ctx, client.GUID)
}

func (s *MovementQueryService) ListMyDirectDebits(ctx context.Context, q cqrs.ListMyDirectDebitsQuery) ([]models.DirectDebit, error) {
	client, err := s.clients.GetByUserGUID(ctx, q.UserGUID)
	if err != nil {
		return nil, err
	}
	debits, err := s.directDebits.ListByClient(ctx, client.GUID)
	if err != nil {
		return nil, err
	}
	if debits == nil {
		debits = []models.DirectDebit{}
	}
	return debits, nil
}

func (s *MovementQueryService) listByClient(ctx context.Context, clientGUID string) ([]models.Movement, error) {
	movements, err := s.movements.ListByClient(ctx, clientGUID)
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []models.Movement{}
	}
	return movements, nil
}
