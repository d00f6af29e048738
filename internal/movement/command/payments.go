package command

import (
	"context"
	"fmt"
	"time"

	"github.com/vivesbank/backend/internal/movement/repository"
	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/events"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

// CreatePayrollDeposit credits a salary paid by a company into one of the
// caller's accounts.
func (s *MovementCommandService) CreatePayrollDeposit(ctx context.Context, cmd cqrs.CreatePayrollDepositCommand) (*models.Movement, error) {
	destination, err := checkIBAN(cmd.DestinationIBAN)
	if err != nil {
		return nil, err
	}
	origin, err := checkIBAN(cmd.OriginIBAN)
	if err != nil {
		return nil, err
	}
	cif := utils.NormalizeCIF(cmd.CompanyCIF)
	if !utils.ValidateCIF(cif) {
		return nil, apperrors.BadRequest("invalid company CIF")
	}
	if err := checkAmount(cmd.Amount); err != nil {
		return nil, err
	}
	account, err := s.ownAccount(ctx, destination, cmd.UserGUID)
	if err != nil {
		return nil, err
	}

	credit := repository.BalanceChange{IBAN: destination, Delta: cmd.Amount}
	if err := s.apply(ctx, credit); err != nil {
		return nil, err
	}
	m := &models.Movement{
		GUID:       utils.GenerateID(utils.PrefixMovement),
		ClientGUID: account.ClientGUID,
		PayrollDeposit: &models.PayrollDeposit{
			DestinationIBAN: destination,
			OriginIBAN:      origin,
			Amount:          cmd.Amount,
			CompanyName:     cmd.CompanyName,
			CompanyCIF:      cif,
		},
		CreatedAt: s.now(),
	}
	if err := s.record(ctx, m, credit); err != nil {
		return nil, err
	}
	s.notify(ctx, events.KindCreate, account.OwnerUsername, m)
	return m, nil
}

// CreateCardPayment charges a card purchase to the account the card is
// linked to, within the card's daily limit.
func (s *MovementCommandService) CreateCardPayment(ctx context.Context, cmd cqrs.CreateCardPaymentCommand) (*models.Movement, error) {
	if !utils.ValidateCardNumber(cmd.CardNumber) {
		return nil, apperrors.BadRequest("invalid card number")
	}
	if err := checkAmount(cmd.Amount); err != nil {
		return nil, err
	}
	card, err := s.Cards.GetByNumber(ctx, cmd.CardNumber)
	if err != nil {
		return nil, err
	}
	owner, err := s.Cards.Owner(ctx, card.GUID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, apperrors.BadRequest("card is not linked to an account")
	}
	if owner.UserGUID != cmd.UserGUID {
		return nil, apperrors.Forbidden("card does not belong to the caller")
	}
	account, err := s.Accounts.GetByGUID(ctx, owner.AccountGUID)
	if err != nil {
		return nil, err
	}
	if cmd.Amount.GreaterThan(account.Balance) {
		return nil, apperrors.ErrInsufficientBalance
	}

	now := s.now()
	dayStart := now.Truncate(24 * time.Hour)
	spent, err := s.Movements.CardSpendSince(ctx, card.Number, dayStart)
	if err != nil {
		return nil, err
	}
	if spent.Add(cmd.Amount).GreaterThan(card.DailyLimit) {
		return nil, fmt.Errorf("daily limit %s exceeded (spent today %s): %w",
			card.DailyLimit.StringFixed(2), spent.StringFixed(2), apperrors.ErrUnprocessable)
	}

	debit := repository.BalanceChange{IBAN: account.IBAN, Delta: cmd.Amount.Neg()}
	if err := s.apply(ctx, debit); err != nil {
		return nil, err
	}
	m := &models.Movement{
		GUID:       utils.GenerateID(utils.PrefixMovement),
		ClientGUID: owner.ClientGUID,
		CardPayment: &models.CardPayment{
			CardNumber:   card.Number,
			Amount:       cmd.Amount,
			MerchantName: cmd.MerchantName,
		},
		CreatedAt: now,
	}
	if err := s.record(ctx, m, debit); err != nil {
		return nil, err
	}
	s.notify(ctx, events.KindCreate, owner.Username, m)
	return m, nil
}
