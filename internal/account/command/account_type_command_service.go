package command

import (
	"context"
	"time"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

type AccountTypeStore interface {
	Create(ctx context.Context, t *models.AccountType) error
	GetByGUID(ctx context.Context, guid string) (*models.AccountType, error)
	Update(ctx context.Context, t *models.AccountType) error
	Delete(ctx context.Context, guid string) error
}

type AccountTypeCommandService struct {
	store AccountTypeStore
}

func NewAccountTypeCommandService(store AccountTypeStore) *AccountTypeCommandService {
	return &AccountTypeCommandService{store: store}
}

func (s *AccountTypeCommandService) CreateAccountType(ctx context.Context, cmd cqrs.CreateAccountTypeCommand) (*models.AccountType, error) {
	if cmd.Interest.IsNegative() {
		return nil, apperrors.BadRequest("interest must not be negative")
	}
	now := time.Now().UTC()
	t := &models.AccountType{
		GUID:      utils.GenerateID(utils.PrefixAccountType),
		Name:      cmd.Name,
		Interest:  cmd.Interest,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	logger.Info().Str("accountType", t.GUID).Str("name", t.Name).Msg("account type created")
	return t, nil
}

func (s *AccountTypeCommandService) UpdateAccountType(ctx context.Context, cmd cqrs.UpdateAccountTypeCommand) (*models.AccountType, error) {
	t, err := s.store.GetByGUID(ctx, cmd.GUID)
	if err != nil {
		return nil, err
	}
	if cmd.Name != "" {
		t.Name = cmd.Name
	}
	if cmd.Interest != nil {
		if cmd.Interest.IsNegative() {
			return nil, apperrors.BadRequest("interest must not be negative")
		}
		t.Interest = *cmd.Interest
	}
	t.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *AccountTypeCommandService) DeleteAccountType(ctx context.Context, cmd cqrs.DeleteAccountTypeCommand) error {
	return s.store.Delete(ctx, cmd.GUID)
}
