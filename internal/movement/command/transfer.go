package command

import (
	"context"

	"github.com/vivesbank/backend/internal/movement/repository"
	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/events"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

// CreateTransfer moves money between two internal accounts. Two movements
// are saved: the beneficiary's (positive) first, then the caller's
// (negative) pointing at it. The caller's movement is returned.
func (s *MovementCommandService) CreateTransfer(ctx context.Context, cmd cqrs.CreateTransferCommand) (*models.Movement, error) {
	originIBAN, err := checkIBAN(cmd.OriginIBAN)
	if err != nil {
		return nil, err
	}
	destinationIBAN, err := checkIBAN(cmd.DestinationIBAN)
	if err != nil {
		return nil, err
	}
	if originIBAN == destinationIBAN {
		return nil, apperrors.BadRequest("origin and destination must differ")
	}
	if err := checkAmount(cmd.Amount); err != nil {
		return nil, err
	}
	origin, err := s.ownAccount(ctx, originIBAN, cmd.UserGUID)
	if err != nil {
		return nil, err
	}
	destination, err := s.Accounts.GetByIBAN(ctx, destinationIBAN)
	if err != nil {
		return nil, err
	}
	if cmd.Amount.GreaterThan(origin.Balance) {
		return nil, apperrors.ErrInsufficientBalance
	}

	changes := []repository.BalanceChange{
		{IBAN: originIBAN, Delta: cmd.Amount.Neg()},
		{IBAN: destinationIBAN, Delta: cmd.Amount},
	}
	if err := s.apply(ctx, changes...); err != nil {
		return nil, err
	}

	now := s.now()
	incoming := &models.Movement{
		GUID:       utils.GenerateID(utils.PrefixMovement),
		ClientGUID: destination.ClientGUID,
		Transfer: &models.Transfer{
			OriginIBAN:      originIBAN,
			DestinationIBAN: destinationIBAN,
			Amount:          cmd.Amount,
			BeneficiaryName: cmd.BeneficiaryName,
		},
		CreatedAt: now,
	}
	if err := s.record(ctx, incoming, changes...); err != nil {
		return nil, err
	}
	outgoing := &models.Movement{
		GUID:       utils.GenerateID(utils.PrefixMovement),
		ClientGUID: origin.ClientGUID,
		Transfer: &models.Transfer{
			OriginIBAN:              originIBAN,
			DestinationIBAN:         destinationIBAN,
			Amount:                  cmd.Amount.Neg(),
			BeneficiaryName:         cmd.BeneficiaryName,
			DestinationMovementGUID: incoming.GUID,
		},
		CreatedAt: now,
	}
	if err := s.record(ctx, outgoing, changes...); err != nil {
		if delErr := s.Movements.SoftDelete(context.WithoutCancel(ctx), incoming.GUID); delErr != nil {
			logger.Error().Err(delErr).Str("movement", incoming.GUID).Msg("failed to discard orphan transfer movement")
		}
		return nil, err
	}

	logger.Info().Str("movement", outgoing.GUID).Str("origin", originIBAN).Str("destination", destinationIBAN).
		Str("amount", cmd.Amount.StringFixed(2)).Msg("transfer completed")
	s.notify(ctx, events.KindCreate, origin.OwnerUsername, outgoing)
	s.notify(ctx, events.KindCreate, destination.OwnerUsername, incoming)
	return outgoing, nil
}

// RevokeTransfer undoes a recent transfer made by the caller: both balances
// are restored and both movements are soft deleted.
func (s *MovementCommandService) RevokeTransfer(ctx context.Context, cmd cqrs.RevokeTransferCommand) error {
	outgoing, err := s.Movements.GetByGUID(ctx, cmd.MovementGUID)
	if err != nil {
		return err
	}
	if s.now().Sub(outgoing.CreatedAt) >= RevocationWindow {
		return apperrors.BadRequest("movement is no longer revocable")
	}
	if outgoing.Transfer == nil {
		return apperrors.BadRequest("only transfers can be revoked")
	}
	if outgoing.Transfer.DestinationMovementGUID == "" {
		return apperrors.BadRequest("only the sending side of a transfer can be revoked")
	}
	client, err := s.Clients.GetByUserGUID(ctx, cmd.UserGUID)
	if err != nil {
		return err
	}
	if outgoing.ClientGUID != client.GUID {
		return apperrors.Forbidden("movement does not belong to the caller")
	}

	// Claiming the sending side first makes a second or concurrent revoke
	// fail before any balance moves.
	claimed, err := s.Movements.Claim(ctx, outgoing.GUID)
	if err != nil {
		return err
	}
	if !claimed {
		return apperrors.NotFound("movement", outgoing.GUID)
	}

	t := outgoing.Transfer
	amount := t.Amount.Abs()
	if err := s.apply(ctx,
		repository.BalanceChange{IBAN: t.OriginIBAN, Delta: amount},
		repository.BalanceChange{IBAN: t.DestinationIBAN, Delta: amount.Neg()},
	); err != nil {
		if rsErr := s.Movements.Restore(context.WithoutCancel(ctx), outgoing.GUID); rsErr != nil {
			logger.Error().Err(rsErr).Str("movement", outgoing.GUID).Msg("failed to restore revoked transfer after ledger failure")
		}
		return err
	}
	if err := s.Movements.SoftDelete(ctx, t.DestinationMovementGUID); err != nil {
		logger.Error().Err(err).Str("movement", t.DestinationMovementGUID).Msg("transfer revoked but beneficiary movement not deleted")
	}
	outgoing.IsDeleted = true
	logger.Info().Str("movement", outgoing.GUID).Msg("transfer revoked")

	s.notify(ctx, events.KindDelete, client.Username, outgoing)
	if destination, err := s.Accounts.GetByIBAN(ctx, t.DestinationIBAN); err == nil && destination.OwnerUsername != client.Username {
		s.notify(ctx, events.KindDelete, destination.OwnerUsername, outgoing)
	}
	return nil
}
