package command

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vivesbank/backend/internal/card/repository"
	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/events"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

var logger = log.With().Str("pkg", "card.command").Logger()

const cardValidity = 10

type CardWriter interface {
	Create(ctx context.Context, card *models.Card) error
	GetByGUID(ctx context.Context, guid string) (*models.Card, error)
	Update(ctx context.Context, card *models.Card) error
	SoftDelete(ctx context.Context, guid string) error
	Owner(ctx context.Context, cardGUID string) (*repository.CardOwner, error)
}

type CardViewCache interface {
	CacheCardView(ctx context.Context, view *models.CardView)
	InvalidateCardView(ctx context.Context, guids ...string)
}

// CardCommandService issues and maintains cards.
type CardCommandService struct {
	writeRepo CardWriter
	readRepo  CardViewCache
	notifier  events.Notifier
}

func NewCardCommandService(writeRepo CardWriter, readRepo CardViewCache, notifier events.Notifier) *CardCommandService {
	return &CardCommandService{writeRepo: writeRepo, readRepo: readRepo, notifier: notifier}
}

// CreateCard generates number, CVV and expiry; the PIN is generated when the
// command carries none.
func (s *CardCommandService) CreateCard(ctx context.Context, cmd cqrs.CreateCardCommand) (*models.CardView, error) {
	if err := checkLimits(cmd.DailyLimit, cmd.WeeklyLimit, cmd.MonthlyLimit); err != nil {
		return nil, err
	}
	cardType := cmd.CardType
	if cardType == "" {
		cardType = models.CardTypeDebit
	}
	if cardType != models.CardTypeDebit && cardType != models.CardTypeCredit {
		return nil, apperrors.BadRequest("unknown card type " + string(cardType))
	}
	pin := cmd.PIN
	if pin == "" {
		pin = utils.GeneratePIN()
	}
	now := time.Now().UTC()
	card := &models.Card{
		GUID:         utils.GenerateID(utils.PrefixCard),
		Number:       utils.GenerateCardNumber(),
		ExpiryDate:   now.AddDate(cardValidity, 0, 0).Truncate(24 * time.Hour),
		CVV:          utils.GenerateCVV(),
		PIN:          pin,
		DailyLimit:   cmd.DailyLimit,
		WeeklyLimit:  cmd.WeeklyLimit,
		MonthlyLimit: cmd.MonthlyLimit,
		CardType:     cardType,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.writeRepo.Create(ctx, card); err != nil {
		return nil, err
	}
	view := card.View()
	s.readRepo.CacheCardView(ctx, view)
	logger.Info().Str("card", card.GUID).Str("type", string(card.CardType)).Msg("card created")
	return view, nil
}

func (s *CardCommandService) UpdateCard(ctx context.Context, cmd cqrs.UpdateCardCommand) (*models.CardView, error) {
	card, err := s.writeRepo.GetByGUID(ctx, cmd.GUID)
	if err != nil {
		return nil, err
	}
	if cmd.PIN != "" {
		card.PIN = cmd.PIN
	}
	if cmd.DailyLimit != nil {
		card.DailyLimit = *cmd.DailyLimit
	}
	if cmd.WeeklyLimit != nil {
		card.WeeklyLimit = *cmd.WeeklyLimit
	}
	if cmd.MonthlyLimit != nil {
		card.MonthlyLimit = *cmd.MonthlyLimit
	}
	if err := checkLimits(card.DailyLimit, card.WeeklyLimit, card.MonthlyLimit); err != nil {
		return nil, err
	}
	card.UpdatedAt = time.Now().UTC()
	if err := s.writeRepo.Update(ctx, card); err != nil {
		return nil, err
	}
	view := card.View()
	s.readRepo.CacheCardView(ctx, view)
	s.notifyOwner(ctx, card.GUID, events.KindUpdate, view)
	return view, nil
}

func (s *CardCommandService) DeleteCard(ctx context.Context, cmd cqrs.DeleteCardCommand) error {
	card, err := s.writeRepo.GetByGUID(ctx, cmd.GUID)
	if err != nil {
		return err
	}
	// Resolve the owner first; the join needs the card to still be active.
	owner, err := s.writeRepo.Owner(ctx, card.GUID)
	if err != nil {
		logger.Warn().Err(err).Str("card", card.GUID).Msg("owner lookup failed")
	}
	if err := s.writeRepo.SoftDelete(ctx, cmd.GUID); err != nil {
		return err
	}
	s.readRepo.InvalidateCardView(ctx, cmd.GUID)
	if owner != nil {
		card.IsDeleted = true
		s.notifier.Notify(ctx, events.EntityCards, events.KindDelete, owner.Username, card.View())
	}
	return nil
}

func (s *CardCommandService) notifyOwner(ctx context.Context, cardGUID, kind string, view *models.CardView) {
	owner, err := s.writeRepo.Owner(ctx, cardGUID)
	if err != nil {
		logger.Warn().Err(err).Str("card", cardGUID).Msg("owner lookup failed")
		return
	}
	if owner == nil {
		return
	}
	s.notifier.Notify(ctx, events.EntityCards, kind, owner.Username, view)
}

func checkLimits(daily, weekly, monthly decimal.Decimal) error {
	if !daily.IsPositive() || !weekly.IsPositive() || !monthly.IsPositive() {
		return apperrors.BadRequest("card limits must be positive")
	}
	if daily.GreaterThan(weekly) || weekly.GreaterThan(monthly) {
		return apperrors.BadRequest("card limits must satisfy daily <= weekly <= monthly")
	}
	return nil
}
