package command

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	cardrepo "github.com/vivesbank/backend/internal/card/repository"
	"github.com/vivesbank/backend/internal/movement/repository"
	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/events"
	"github.com/vivesbank/backend/shared/models"
	"github.com/vivesbank/backend/shared/utils"
)

var logger = log.With().Str("pkg", "movement.command").Logger()

var movementsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "movements_created_total",
	Help: "Movements recorded, partitioned by kind",
}, []string{"kind"})

// RevocationWindow is how long a transfer can still be revoked.
const RevocationWindow = 24 * time.Hour

// Bounds for a single movement amount.
var (
	MinAmount = decimal.NewFromInt(1)
	MaxAmount = decimal.NewFromInt(10000)
)

type MovementStore interface {
	Create(ctx context.Context, m *models.Movement) error
	GetByGUID(ctx context.Context, guid string) (*models.Movement, error)
	CardSpendSince(ctx context.Context, number string, since time.Time) (decimal.Decimal, error)
	SoftDelete(ctx context.Context, guids ...string) error
	Claim(ctx context.Context, guid string) (bool, error)
	Restore(ctx context.Context, guid string) error
}

type DirectDebitStore interface {
	Create(ctx context.Context, d *models.DirectDebit) error
	GetByGUID(ctx context.Context, guid string) (*models.DirectDebit, error)
	ExistsActive(ctx context.Context, clientGUID, destinationIBAN string) (bool, error)
	Deactivate(ctx context.Context, guid string) error
	MarkExecuted(ctx context.Context, guid string, at time.Time) error
}

type LedgerWriter interface {
	Apply(ctx context.Context, changes ...repository.BalanceChange) ([]repository.Balance, error)
}

type AccountViews interface {
	GetByIBAN(ctx context.Context, iban string) (*models.AccountView, error)
	GetByGUID(ctx context.Context, guid string) (*models.AccountView, error)
	InvalidateAccount(ctx context.Context, guid, iban string)
}

type CardFinder interface {
	GetByNumber(ctx context.Context, number string) (*models.Card, error)
	Owner(ctx context.Context, cardGUID string) (*cardrepo.CardOwner, error)
}

type ClientFinder interface {
	GetByUserGUID(ctx context.Context, userGUID string) (*models.ClientView, error)
}

type MovementDeps struct {
	Movements    MovementStore
	DirectDebits DirectDebitStore
	Ledger       LedgerWriter
	Accounts     AccountViews
	Cards        CardFinder
	Clients      ClientFinder
	Notifier     events.Notifier
	Now          func() time.Time
}

// MovementCommandService moves money. Balances live in PostgreSQL and are
// changed through the ledger; the movement record goes to MongoDB afterwards
// and the ledger change is reversed if that write fails.
type MovementCommandService struct {
	MovementDeps
}

func NewMovementCommandService(deps MovementDeps) *MovementCommandService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &MovementCommandService{MovementDeps: deps}
}

func (s *MovementCommandService) now() time.Time { return s.Now().UTC() }

// ownAccount returns the account with iban if userGUID owns it.
func (s *MovementCommandService) ownAccount(ctx context.Context, iban, userGUID string) (*models.AccountView, error) {
	account, err := s.Accounts.GetByIBAN(ctx, iban)
	if err != nil {
		return nil, err
	}
	if account.OwnerUserGUID != userGUID {
		return nil, apperrors.Forbidden(fmt.Sprintf("account %s does not belong to the caller", iban))
	}
	return account, nil
}

func (s *MovementCommandService) apply(ctx context.Context, changes ...repository.BalanceChange) error {
	balances, err := s.Ledger.Apply(ctx, changes...)
	if err != nil {
		return err
	}
	for _, b := range balances {
		s.Accounts.InvalidateAccount(ctx, b.GUID, b.IBAN)
	}
	return nil
}

// record saves m and rolls the applied changes back when the save fails.
func (s *MovementCommandService) record(ctx context.Context, m *models.Movement, applied ...repository.BalanceChange) error {
	if err := s.Movements.Create(ctx, m); err != nil {
		if len(applied) > 0 {
			reverse := make([]repository.BalanceChange, len(applied))
			for i, c := range applied {
				reverse[i] = repository.BalanceChange{IBAN: c.IBAN, Delta: c.Delta.Neg()}
			}
			if rbErr := s.apply(context.WithoutCancel(ctx), reverse...); rbErr != nil {
				logger.Error().Err(rbErr).Str("movement", m.GUID).Msg("failed to reverse ledger after movement save failure")
			}
		}
		return err
	}
	movementsCreated.WithLabelValues(string(m.Kind())).Inc()
	return nil
}

func (s *MovementCommandService) notify(ctx context.Context, kind, recipient string, data any) {
	if recipient == "" {
		return
	}
	s.Notifier.Notify(ctx, events.EntityMovements, kind, recipient, data)
}

func checkIBAN(iban string) (string, error) {
	iban = utils.NormalizeIBAN(iban)
	if !utils.ValidateIBAN(iban) {
		return "", apperrors.BadRequest(fmt.Sprintf("invalid IBAN %s", iban))
	}
	return iban, nil
}

func checkAmount(amount decimal.Decimal) error {
	if amount.LessThan(MinAmount) || amount.GreaterThan(MaxAmount) {
		return apperrors.BadRequest(fmt.Sprintf("amount must be between %s and %s", MinAmount, MaxAmount))
	}
	if !amount.Equal(amount.Round(2)) {
		return apperrors.BadRequest("amount must have at most two decimals")
	}
	return nil
}
