package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vivesbank/backend/internal/movement/repository"
	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/events"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

func (s *MovementCommandService) CreateDirectDebit(ctx context.Context, cmd cqrs.CreateDirectDebitCommand) (*models.DirectDebit, error) {
	origin, err := checkIBAN(cmd.OriginIBAN)
	if err != nil {
		return nil, err
	}
	destination, err := checkIBAN(cmd.DestinationIBAN)
	if err != nil {
		return nil, err
	}
	if origin == destination {
		return nil, apperrors.BadRequest("origin and destination must differ")
	}
	if err := checkAmount(cmd.Amount); err != nil {
		return nil, err
	}
	account, err := s.ownAccount(ctx, origin, cmd.UserGUID)
	if err != nil {
		return nil, err
	}
	exists, err := s.DirectDebits.ExistsActive(ctx, account.ClientGUID, destination)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict("direct debit", "destination", destination)
	}

	now := s.now()
	periodicity := cmd.Periodicity
	if periodicity == "" {
		periodicity = models.PeriodicityMonthly
	}
	dd := &models.DirectDebit{
		GUID:            utils.GenerateID(utils.PrefixDirectDebit),
		ClientGUID:      account.ClientGUID,
		OriginIBAN:      origin,
		DestinationIBAN: destination,
		Amount:          cmd.Amount,
		CreditorName:    cmd.CreditorName,
		StartDate:       now,
		Periodicity:     periodicity,
		Active:          true,
		LastExecution:   now,
	}
	if err := s.DirectDebits.Create(ctx, dd); err != nil {
		return nil, err
	}
	logger.Info().Str("directDebit", dd.GUID).Str("origin", origin).Str("periodicity", string(periodicity)).Msg("direct debit created")
	s.notify(ctx, events.KindCreate, account.OwnerUsername, dd)
	return dd, nil
}

// CancelDirectDebit deactivates one of the caller's direct debits.
func (s *MovementCommandService) CancelDirectDebit(ctx context.Context, cmd cqrs.CancelDirectDebitCommand) error {
	client, err := s.Clients.GetByUserGUID(ctx, cmd.UserGUID)
	if err != nil {
		return err
	}
	dd, err := s.DirectDebits.GetByGUID(ctx, cmd.GUID)
	if err != nil {
		return err
	}
	if dd.ClientGUID != client.GUID {
		return apperrors.Forbidden("direct debit does not belong to the caller")
	}
	if !dd.Active {
		return nil
	}
	if err := s.DirectDebits.Deactivate(ctx, dd.GUID); err != nil {
		return err
	}
	dd.Active = false
	s.notify(ctx, events.KindDelete, client.Username, dd)
	return nil
}

// ExecuteDirectDebit charges one due direct debit. It returns an error
// wrapping ErrInsufficientBalance when the origin cannot cover the amount;
// the debit then stays due. When the charge was recorded but the debit could
// not be marked as executed, the movement is returned along with the error.
func (s *MovementCommandService) ExecuteDirectDebit(ctx context.Context, dd *models.DirectDebit, now time.Time) (*models.Movement, error) {
	origin, err := s.Accounts.GetByIBAN(ctx, dd.OriginIBAN)
	if err != nil {
		return nil, err
	}

	changes := []repository.BalanceChange{{IBAN: dd.OriginIBAN, Delta: dd.Amount.Neg()}}
	// A creditor unknown to the bank is external and is not credited here.
	creditor, err := s.Accounts.GetByIBAN(ctx, dd.DestinationIBAN)
	switch {
	case err == nil:
		changes = append(changes, repository.BalanceChange{IBAN: dd.DestinationIBAN, Delta: dd.Amount})
	case errors.Is(err, apperrors.ErrNotFound):
		creditor = nil
	default:
		return nil, err
	}
	if err := s.apply(ctx, changes...); err != nil {
		return nil, err
	}

	executed := *dd
	executed.LastExecution = now.UTC()
	m := &models.Movement{
		GUID:        utils.GenerateID(utils.PrefixMovement),
		ClientGUID:  dd.ClientGUID,
		DirectDebit: &executed,
		CreatedAt:   now.UTC(),
	}
	if err := s.record(ctx, m, changes...); err != nil {
		return nil, err
	}
	if err := s.DirectDebits.MarkExecuted(ctx, dd.GUID, executed.LastExecution); err != nil {
		return m, fmt.Errorf("movement %s saved but direct debit not marked: %w", m.GUID, err)
	}

	s.notify(ctx, events.KindExecute, origin.OwnerUsername, m)
	if creditor != nil && creditor.OwnerUsername != origin.OwnerUsername {
		s.notify(ctx, events.KindExecute, creditor.OwnerUsername, m)
	}
	return m, nil
}
