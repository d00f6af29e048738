package query

import (
	"context"

	"github.com/vivesbank/backend/internal/card/repository"
	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/models"
)

type CardReader interface {
	GetByGUID(ctx context.Context, guid string) (*models.CardView, error)
	List(ctx context.Context, q cqrs.ListCardsQuery) ([]models.CardView, int64, error)
}

// CardSecrets reads the full card row and its owner from the write store.
type CardSecrets interface {
	GetByGUID(ctx context.Context, guid string) (*models.Card, error)
	Owner(ctx context.Context, cardGUID string) (*repository.CardOwner, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

type CardQueryService struct {
	readRepo CardReader
	secrets  CardSecrets
	auth     Authenticator
}

func NewCardQueryService(readRepo CardReader, secrets CardSecrets, auth Authenticator) *CardQueryService {
	return &CardQueryService{readRepo: readRepo, secrets: secrets, auth: auth}
}

func (s *CardQueryService) GetCard(ctx context.Context, q cqrs.GetCardQuery) (*models.CardView, error) {
	return s.readRepo.GetByGUID(ctx, q.GUID)
}

func (s *CardQueryService) ListCards(ctx context.Context, q cqrs.ListCardsQuery) (models.Page[models.CardView], error) {
	q.Page = q.Page.Normalize("createdTimestamp", "number", "cardType", "dailyLimit", "createdTimestamp")
	views, total, err := s.readRepo.List(ctx, q)
	if err != nil {
		return models.Page[models.CardView]{}, err
	}
	return models.NewPage(views, total, q.Page), nil
}

// GetCardPrivate returns PIN and CVV once the caller re-enters valid
// credentials for their own account and the card is linked to it.
func (s *CardQueryService) GetCardPrivate(ctx context.Context, q cqrs.GetCardPrivateQuery) (*models.CardPrivateView, error) {
	user, err := s.auth.Authenticate(ctx, q.Username, q.Password)
	if err != nil {
		return nil, err
	}
	if user.GUID != q.UserGUID {
		return nil, apperrors.Forbidden("credentials do not belong to the caller")
	}
	card, err := s.secrets.GetByGUID(ctx, q.GUID)
	if err != nil {
		return nil, err
	}
	owner, err := s.secrets.Owner(ctx, card.GUID)
	if err != nil {
		return nil, err
	}
	if owner == nil || owner.UserGUID != user.GUID {
		return nil, apperrors.Forbidden("card " + card.GUID + " does not belong to the caller")
	}
	return &models.CardPrivateView{GUID: card.GUID, Number: card.Number, PIN: card.PIN, CVV: card.CVV}, nil
}
