package command

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/events"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

var logger = log.With().Str("pkg", "account.command").Logger()

type AccountWriter interface {
	Create(ctx context.Context, account *models.Account) error
	GetByGUID(ctx context.Context, guid string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	SoftDelete(ctx context.Context, guid string) error
	CardInUse(ctx context.Context, cardGUID, exceptAccountGUID string) (bool, error)
}

type AccountViews interface {
	GetByGUID(ctx context.Context, guid string) (*models.AccountView, error)
	InvalidateAccount(ctx context.Context, guid, iban string)
}

type AccountTypeGetter interface {
	GetByGUID(ctx context.Context, guid string) (*models.AccountType, error)
}

type ClientGetter interface {
	GetByGUID(ctx context.Context, guid string) (*models.ClientView, error)
	GetByUserGUID(ctx context.Context, userGUID string) (*models.ClientView, error)
}

type CardGetter interface {
	GetByGUID(ctx context.Context, guid string) (*models.CardView, error)
}

type CardIssuer interface {
	CreateCard(ctx context.Context, cmd cqrs.CreateCardCommand) (*models.CardView, error)
	DeleteCard(ctx context.Context, cmd cqrs.DeleteCardCommand) error
}

// AccountDeps groups the collaborators of AccountCommandService.
type AccountDeps struct {
	Accounts AccountWriter
	Views    AccountViews
	Types    AccountTypeGetter
	Clients  ClientGetter
	Cards    CardGetter
	Issuer   CardIssuer
	Notifier events.Notifier
}

// AccountCommandService writes account state and keeps the cached views in
// sync. Every change is pushed to the owner's accounts channel.
type AccountCommandService struct {
	AccountDeps
}

func NewAccountCommandService(deps AccountDeps) *AccountCommandService {
	return &AccountCommandService{AccountDeps: deps}
}

func (s *AccountCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.AccountView, error) {
	account, err := s.insertAccount(ctx, cmd)
	if err != nil {
		return nil, err
	}
	return s.announceCreated(ctx, account)
}

// insertAccount validates cmd and stores a new zero-balance account.
func (s *AccountCommandService) insertAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	if _, err := s.Types.GetByGUID(ctx, cmd.AccountTypeGUID); err != nil {
		return nil, err
	}
	if err := s.checkClient(ctx, cmd.ClientGUID); err != nil {
		return nil, err
	}
	if err := s.checkCard(ctx, cmd.CardGUID, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &models.Account{
		GUID:            utils.GenerateID(utils.PrefixAccount),
		IBAN:            utils.GenerateIBAN(),
		Balance:         decimal.Zero,
		AccountTypeGUID: cmd.AccountTypeGUID,
		CardGUID:        cmd.CardGUID,
		ClientGUID:      cmd.ClientGUID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountCommandService) announceCreated(ctx context.Context, account *models.Account) (*models.AccountView, error) {
	view, err := s.Views.GetByGUID(ctx, account.GUID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload account: %w", err)
	}
	logger.Info().Str("account", account.GUID).Str("client", account.ClientGUID).Msg("account created")
	s.Notifier.Notify(ctx, events.EntityAccounts, events.KindCreate, view.OwnerUsername, view)
	return view, nil
}

func (s *AccountCommandService) UpdateAccount(ctx context.Context, cmd cqrs.UpdateAccountCommand) (*models.AccountView, error) {
	account, err := s.Accounts.GetByGUID(ctx, cmd.GUID)
	if err != nil {
		return nil, err
	}
	if cmd.AccountTypeGUID != "" && cmd.AccountTypeGUID != account.AccountTypeGUID {
		if _, err := s.Types.GetByGUID(ctx, cmd.AccountTypeGUID); err != nil {
			return nil, err
		}
		account.AccountTypeGUID = cmd.AccountTypeGUID
	}
	if cmd.ClientGUID != "" && cmd.ClientGUID != account.ClientGUID {
		if err := s.checkClient(ctx, cmd.ClientGUID); err != nil {
			return nil, err
		}
		account.ClientGUID = cmd.ClientGUID
	}
	if cmd.CardGUID != "" && cmd.CardGUID != account.CardGUID {
		if err := s.checkCard(ctx, cmd.CardGUID, account.GUID); err != nil {
			return nil, err
		}
		account.CardGUID = cmd.CardGUID
	}
	account.UpdatedAt = time.Now().UTC()
	if err := s.Accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	s.Views.InvalidateAccount(ctx, account.GUID, account.IBAN)
	view, err := s.Views.GetByGUID(ctx, account.GUID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload account: %w", err)
	}
	s.Notifier.Notify(ctx, events.EntityAccounts, events.KindUpdate, view.OwnerUsername, view)
	return view, nil
}

func (s *AccountCommandService) DeleteAccount(ctx context.Context, cmd cqrs.DeleteAccountCommand) error {
	view, err := s.Views.GetByGUID(ctx, cmd.GUID)
	if err != nil {
		return err
	}
	if err := s.Accounts.SoftDelete(ctx, cmd.GUID); err != nil {
		return err
	}
	s.Views.InvalidateAccount(ctx, view.GUID, view.IBAN)
	view.IsDeleted = true
	logger.Info().Str("account", view.GUID).Msg("account deleted")
	s.Notifier.Notify(ctx, events.EntityAccounts, events.KindDelete, view.OwnerUsername, view)
	return nil
}

// OpenAccount is the self-service flow: the caller's client gets a new
// account with a new card attached.
func (s *AccountCommandService) OpenAccount(ctx context.Context, cmd cqrs.OpenAccountCommand) (*models.AccountView, error) {
	client, err := s.Clients.GetByUserGUID(ctx, cmd.UserGUID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Types.GetByGUID(ctx, cmd.AccountTypeGUID); err != nil {
		return nil, err
	}
	card, err := s.Issuer.CreateCard(ctx, cmd.Card)
	if err != nil {
		return nil, err
	}
	account, err := s.insertAccount(ctx, cqrs.CreateAccountCommand{
		AccountTypeGUID: cmd.AccountTypeGUID,
		ClientGUID:      client.GUID,
		CardGUID:        card.GUID,
	})
	if err != nil {
		if delErr := s.Issuer.DeleteCard(context.WithoutCancel(ctx), cqrs.DeleteCardCommand{GUID: card.GUID}); delErr != nil {
			logger.Error().Err(delErr).Str("card", card.GUID).Msg("failed to discard card of unopened account")
		}
		return nil, err
	}
	return s.announceCreated(ctx, account)
}

func (s *AccountCommandService) checkClient(ctx context.Context, guid string) error {
	client, err := s.Clients.GetByGUID(ctx, guid)
	if err != nil {
		return err
	}
	if client.IsDeleted {
		return apperrors.NotFound("client", guid)
	}
	return nil
}

func (s *AccountCommandService) checkCard(ctx context.Context, cardGUID, accountGUID string) error {
	if cardGUID == "" {
		return nil
	}
	if _, err := s.Cards.GetByGUID(ctx, cardGUID); err != nil {
		return err
	}
	inUse, err := s.Accounts.CardInUse(ctx, cardGUID, accountGUID)
	if err != nil {
		return err
	}
	if inUse {
		return apperrors.Conflict("account", "card", cardGUID)
	}
	return nil
}
