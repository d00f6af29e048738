package command

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cardrepo "github.com/vivesbank/backend/internal/card/repository"
	"github.com/vivesbank/backend/internal/movement/repository"
	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/cqrs"
	"github.com/vivesbank/backend/shared/events"
	"github.com/vivesbank/backend/shared/models"
)

const (
	anaIBAN   = "ES9121000418450200051332"
	luisIBAN  = "GB82WEST12345698765432"
	otherIBAN = "ES7921000813610123456789"
	cardNum   = "4111111111111111"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ---- fakes ----

type fakeLedger struct {
	accounts map[string]*repository.Balance
	calls    int
}

func (l *fakeLedger) Apply(_ context.Context, changes ...repository.BalanceChange) ([]repository.Balance, error) {
	l.calls++
	next := map[string]decimal.Decimal{}
	for _, c := range changes {
		a, ok := l.accounts[c.IBAN]
		if !ok {
			return nil, apperrors.NotFound("account", c.IBAN)
		}
		cur, ok := next[c.IBAN]
		if !ok {
			cur = a.Balance
		}
		next[c.IBAN] = cur.Add(c.Delta)
		if next[c.IBAN].IsNegative() {
			return nil, fmt.Errorf("account %s: %w", c.IBAN, apperrors.ErrInsufficientBalance)
		}
	}
	var out []repository.Balance
	for iban, bal := range next {
		l.accounts[iban].Balance = bal
		out = append(out, *l.accounts[iban])
	}
	return out, nil
}

type owner struct{ clientGUID, userGUID, username string }

type fakeAccounts struct {
	ledger      *fakeLedger
	owners      map[string]owner
	lookupErrs  map[string]error
	invalidated []string
}

func (f *fakeAccounts) GetByIBAN(_ context.Context, iban string) (*models.AccountView, error) {
	if err := f.lookupErrs[iban]; err != nil {
		return nil, err
	}
	b, ok := f.ledger.accounts[iban]
	if !ok {
		return nil, apperrors.NotFound("account", iban)
	}
	o := f.owners[iban]
	return &models.AccountView{GUID: b.GUID, IBAN: iban, Balance: b.Balance, ClientGUID: o.clientGUID,
		OwnerUserGUID: o.userGUID, OwnerUsername: o.username}, nil
}
func (f *fakeAccounts) GetByGUID(ctx context.Context, guid string) (*models.AccountView, error) {
	for iban, b := range f.ledger.accounts {
		if b.GUID == guid {
			return f.GetByIBAN(ctx, iban)
		}
	}
	return nil, apperrors.NotFound("account", guid)
}
func (f *fakeAccounts) InvalidateAccount(_ context.Context, _, iban string) {
	f.invalidated = append(f.invalidated, iban)
}

type fakeMovements struct {
	byGUID    map[string]*models.Movement
	failOn    int
	creates   int
	claimErr  error
	deleteErr error
	lostClaim bool // another revoke claimed the movement first
	restored  []string
}

func (f *fakeMovements) Create(_ context.Context, m *models.Movement) error {
	f.creates++
	if f.failOn == f.creates {
		return errors.New("mongo unavailable")
	}
	cp := *m
	f.byGUID[m.GUID] = &cp
	return nil
}
func (f *fakeMovements) GetByGUID(_ context.Context, guid string) (*models.Movement, error) {
	m, ok := f.byGUID[guid]
	if !ok || m.IsDeleted {
		return nil, apperrors.NotFound("movement", guid)
	}
	cp := *m
	return &cp, nil
}
func (f *fakeMovements) CardSpendSince(_ context.Context, number string, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, m := range f.byGUID {
		if m.CardPayment != nil && m.CardPayment.CardNumber == number && !m.CreatedAt.Before(since) && !m.IsDeleted {
			total = total.Add(m.CardPayment.Amount)
		}
	}
	return total, nil
}
func (f *fakeMovements) SoftDelete(_ context.Context, guids ...string) error {
	if f.deleteErr != nil {
		err := f.deleteErr
		f.deleteErr = nil
		return err
	}
	for _, g := range guids {
		if m, ok := f.byGUID[g]; ok {
			m.IsDeleted = true
		}
	}
	return nil
}

func (f *fakeMovements) Claim(_ context.Context, guid string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	m, ok := f.byGUID[guid]
	if !ok || m.IsDeleted || f.lostClaim {
		return false, nil
	}
	m.IsDeleted = true
	return true, nil
}
func (f *fakeMovements) Restore(_ context.Context, guid string) error {
	if m, ok := f.byGUID[guid]; ok {
		m.IsDeleted = false
	}
	f.restored = append(f.restored, guid)
	return nil
}

type fakeDebits struct {
	byGUID map[string]*models.DirectDebit
}

func (f *fakeDebits) Create(_ context.Context, dd *models.DirectDebit) error {
	cp := *dd
	f.byGUID[dd.GUID] = &cp
	return nil
}
func (f *fakeDebits) GetByGUID(_ context.Context, guid string) (*models.DirectDebit, error) {
	dd, ok := f.byGUID[guid]
	if !ok {
		return nil, apperrors.NotFound("direct debit", guid)
	}
	cp := *dd
	return &cp, nil
}
func (f *fakeDebits) ExistsActive(_ context.Context, clientGUID, destination string) (bool, error) {
	for _, dd := range f.byGUID {
		if dd.ClientGUID == clientGUID && dd.DestinationIBAN == destination && dd.Active {
			return true, nil
		}
	}
	return false, nil
}
func (f *fakeDebits) Deactivate(_ context.Context, guid string) error {
	f.byGUID[guid].Active = false
	return nil
}
func (f *fakeDebits) MarkExecuted(_ context.Context, guid string, at time.Time) error {
	f.byGUID[guid].LastExecution = at
	return nil
}

type fakeCards struct {
	card  *models.Card
	owner *cardrepo.CardOwner
}

func (f *fakeCards) GetByNumber(_ context.Context, number string) (*models.Card, error) {
	if f.card == nil || f.card.Number != number {
		return nil, apperrors.NotFound("card", number)
	}
	return f.card, nil
}
func (f *fakeCards) Owner(context.Context, string) (*cardrepo.CardOwner, error) { return f.owner, nil }

type fakeClients map[string]*models.ClientView

func (f fakeClients) GetByUserGUID(_ context.Context, userGUID string) (*models.ClientView, error) {
	if c, ok := f[userGUID]; ok {
		return c, nil
	}
	return nil, apperrors.NotFound("client", userGUID)
}

type sentNotification struct {
	kind, recipient string
}

type recordingNotifier struct {
	sent []sentNotification
}

func (r *recordingNotifier) Notify(_ context.Context, entity, kind, recipient string, _ any) {
	if entity == events.EntityMovements {
		r.sent = append(r.sent, sentNotification{kind, recipient})
	}
}

// ---- fixture ----

type movementFixture struct {
	svc       *MovementCommandService
	ledger    *fakeLedger
	accounts  *fakeAccounts
	movements *fakeMovements
	debits    *fakeDebits
	cards     *fakeCards
	notifier  *recordingNotifier
	now       time.Time
}

func newMovementFixture() *movementFixture {
	fx := &movementFixture{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	fx.ledger = &fakeLedger{accounts: map[string]*repository.Balance{
		anaIBAN:  {GUID: "acc-ana", IBAN: anaIBAN, Balance: d("1000")},
		luisIBAN: {GUID: "acc-luis", IBAN: luisIBAN, Balance: d("50")},
	}}
	fx.accounts = &fakeAccounts{ledger: fx.ledger, owners: map[string]owner{
		anaIBAN:  {"cli-ana", "usr-ana", "ana"},
		luisIBAN: {"cli-luis", "usr-luis", "luis"},
	}}
	fx.movements = &fakeMovements{byGUID: map[string]*models.Movement{}}
	fx.debits = &fakeDebits{byGUID: map[string]*models.DirectDebit{}}
	fx.cards = &fakeCards{
		card:  &models.Card{GUID: "crd-ana", Number: cardNum, DailyLimit: d("100")},
		owner: &cardrepo.CardOwner{AccountGUID: "acc-ana", ClientGUID: "cli-ana", UserGUID: "usr-ana", Username: "ana"},
	}
	fx.notifier = &recordingNotifier{}
	fx.svc = NewMovementCommandService(MovementDeps{
		Movements:    fx.movements,
		DirectDebits: fx.debits,
		Ledger:       fx.ledger,
		Accounts:     fx.accounts,
		Cards:        fx.cards,
		Clients: fakeClients{
			"usr-ana":  {Client: models.Client{GUID: "cli-ana"}, Username: "ana"},
			"usr-luis": {Client: models.Client{GUID: "cli-luis"}, Username: "luis"},
		},
		Notifier: fx.notifier,
		Now:      func() time.Time { return fx.now },
	})
	return fx
}

func (fx *movementFixture) balance(iban string) decimal.Decimal { return fx.ledger.accounts[iban].Balance }

func transfer(amount string) cqrs.CreateTransferCommand {
	return cqrs.CreateTransferCommand{UserGUID: "usr-ana", OriginIBAN: anaIBAN, DestinationIBAN: luisIBAN, Amount: d(amount), BeneficiaryName: "Luis"}
}

// ---- transfers ----

func TestCreateTransfer(t *testing.T) {
	fx := newMovementFixture()

	out, err := fx.svc.CreateTransfer(context.Background(), transfer("250.50"))
	require.NoError(t, err)

	assert.True(t, fx.balance(anaIBAN).Equal(d("749.50")))
	assert.True(t, fx.balance(luisIBAN).Equal(d("300.50")))
	assert.True(t, out.Transfer.Amount.Equal(d("-250.50")))
	assert.Equal(t, "cli-ana", out.ClientGUID)

	in := fx.movements.byGUID[out.Transfer.DestinationMovementGUID]
	require.NotNil(t, in, "beneficiary movement must be saved")
	assert.Equal(t, "cli-luis", in.ClientGUID)
	assert.True(t, in.Transfer.Amount.Equal(d("250.50")))

	assert.ElementsMatch(t, []string{anaIBAN, luisIBAN}, fx.accounts.invalidated)
	assert.ElementsMatch(t, []sentNotification{{events.KindCreate, "ana"}, {events.KindCreate, "luis"}}, fx.notifier.sent)
}

func TestCreateTransferRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*cqrs.CreateTransferCommand)
		wantErr error
	}{
		{"same account", func(c *cqrs.CreateTransferCommand) { c.DestinationIBAN = anaIBAN }, apperrors.ErrBadRequest},
		{"invalid iban", func(c *cqrs.CreateTransferCommand) { c.DestinationIBAN = "ES0000000000" }, apperrors.ErrBadRequest},
		{"zero amount", func(c *cqrs.CreateTransferCommand) { c.Amount = decimal.Zero }, apperrors.ErrBadRequest},
		{"fractional cents", func(c *cqrs.CreateTransferCommand) { c.Amount = d("1.001") }, apperrors.ErrBadRequest},
		{"not the owner", func(c *cqrs.CreateTransferCommand) { c.UserGUID = "usr-luis" }, apperrors.ErrForbidden},
		{"unknown destination", func(c *cqrs.CreateTransferCommand) { c.DestinationIBAN = otherIBAN }, apperrors.ErrNotFound},
		{"insufficient balance", func(c *cqrs.CreateTransferCommand) { c.Amount = d("1000.01") }, apperrors.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newMovementFixture()
			cmd := transfer("10")
			tt.mutate(&cmd)
			_, err := fx.svc.CreateTransfer(context.Background(), cmd)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, fx.balance(anaIBAN).Equal(d("1000")))
			assert.Empty(t, fx.movements.byGUID)
		})
	}
}

func TestCreateTransferRollsBackWhenMovementSaveFails(t *testing.T) {
	fx := newMovementFixture()
	fx.movements.failOn = 2 // the caller's movement

	_, err := fx.svc.CreateTransfer(context.Background(), transfer("100"))
	require.Error(t, err)
	assert.True(t, fx.balance(anaIBAN).Equal(d("1000")))
	assert.True(t, fx.balance(luisIBAN).Equal(d("50")))
	for _, m := range fx.movements.byGUID {
		assert.True(t, m.IsDeleted, "orphan beneficiary movement must be discarded")
	}
	assert.Empty(t, fx.notifier.sent)
}

func TestRevokeTransfer(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()
	out, err := fx.svc.CreateTransfer(ctx, transfer("40"))
	require.NoError(t, err)

	fx.now = fx.now.Add(23 * time.Hour)
	require.NoError(t, fx.svc.RevokeTransfer(ctx, cqrs.RevokeTransferCommand{UserGUID: "usr-ana", MovementGUID: out.GUID}))

	assert.True(t, fx.balance(anaIBAN).Equal(d("1000")))
	assert.True(t, fx.balance(luisIBAN).Equal(d("50")))
	assert.True(t, fx.movements.byGUID[out.GUID].IsDeleted)
	assert.True(t, fx.movements.byGUID[out.Transfer.DestinationMovementGUID].IsDeleted)

	err = fx.svc.RevokeTransfer(ctx, cqrs.RevokeTransferCommand{UserGUID: "usr-ana", MovementGUID: out.GUID})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRevokeTransferRejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, fx *movementFixture, out *models.Movement) cqrs.RevokeTransferCommand
		wantErr error
	}{
		{"too old", func(_ *testing.T, fx *movementFixture, out *models.Movement) cqrs.RevokeTransferCommand {
			fx.now = fx.now.Add(RevocationWindow)
			return cqrs.RevokeTransferCommand{UserGUID: "usr-ana", MovementGUID: out.GUID}
		}, apperrors.ErrBadRequest},
		{"someone else's transfer", func(_ *testing.T, _ *movementFixture, out *models.Movement) cqrs.RevokeTransferCommand {
			return cqrs.RevokeTransferCommand{UserGUID: "usr-luis", MovementGUID: out.GUID}
		}, apperrors.ErrForbidden},
		{"beneficiary side", func(_ *testing.T, _ *movementFixture, out *models.Movement) cqrs.RevokeTransferCommand {
			return cqrs.RevokeTransferCommand{UserGUID: "usr-luis", MovementGUID: out.Transfer.DestinationMovementGUID}
		}, apperrors.ErrBadRequest},
		{"not a transfer", func(t *testing.T, fx *movementFixture, _ *models.Movement) cqrs.RevokeTransferCommand {
			m, err := fx.svc.CreatePayrollDeposit(context.Background(), cqrs.CreatePayrollDepositCommand{
				UserGUID: "usr-ana", DestinationIBAN: anaIBAN, OriginIBAN: otherIBAN, Amount: d("10"),
				CompanyName: "ACME", CompanyCIF: "A58818501",
			})
			require.NoError(t, err)
			return cqrs.RevokeTransferCommand{UserGUID: "usr-ana", MovementGUID: m.GUID}
		}, apperrors.ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newMovementFixture()
			out, err := fx.svc.CreateTransfer(context.Background(), transfer("40"))
			require.NoError(t, err)

			err = fx.svc.RevokeTransfer(context.Background(), tt.setup(t, fx, out))
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, fx.movements.byGUID[out.GUID].IsDeleted)
		})
	}
}

func TestRevokeFailsWhenBeneficiarySpentIt(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()
	out, err := fx.svc.CreateTransfer(ctx, transfer("40"))
	require.NoError(t, err)
	fx.ledger.accounts[luisIBAN].Balance = d("10")

	err = fx.svc.RevokeTransfer(ctx, cqrs.RevokeTransferCommand{UserGUID: "usr-ana", MovementGUID: out.GUID})
	require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	assert.False(t, fx.movements.byGUID[out.GUID].IsDeleted)
}

func TestRevokeTransferRetryAfterBeneficiaryDeleteFails(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()
	out, err := fx.svc.CreateTransfer(ctx, transfer("40"))
	require.NoError(t, err)
	fx.movements.deleteErr = errors.New("mongo timeout")

	require.NoError(t, fx.svc.RevokeTransfer(ctx, cqrs.RevokeTransferCommand{UserGUID: "usr-ana", MovementGUID: out.GUID}))
	assert.True(t, fx.balance(anaIBAN).Equal(d("1000")))
	assert.True(t, fx.balance(luisIBAN).Equal(d("50")))

	err = fx.svc.RevokeTransfer(ctx, cqrs.RevokeTransferCommand{UserGUID: "usr-ana", MovementGUID: out.GUID})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.True(t, fx.balance(anaIBAN).Equal(d("1000")), "origin refunded once")
	assert.True(t, fx.balance(luisIBAN).Equal(d("50")))
}

func TestRevokeTransferClaimFailureMovesNothing(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()
	out, err := fx.svc.CreateTransfer(ctx, transfer("40"))
	require.NoError(t, err)
	cmd := cqrs.RevokeTransferCommand{UserGUID: "usr-ana", MovementGUID: out.GUID}

	fx.movements.claimErr = errors.New("mongo timeout")
	require.Error(t, fx.svc.RevokeTransfer(ctx, cmd))
	assert.True(t, fx.balance(anaIBAN).Equal(d("960")))
	assert.True(t, fx.balance(luisIBAN).Equal(d("90")))
	assert.False(t, fx.movements.byGUID[out.GUID].IsDeleted)

	fx.movements.claimErr = nil
	require.NoError(t, fx.svc.RevokeTransfer(ctx, cmd))
	assert.True(t, fx.balance(anaIBAN).Equal(d("1000")))
	assert.True(t, fx.balance(luisIBAN).Equal(d("50")))
}

func TestRevokeTransferLosesClaimToConcurrentRevoke(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()
	out, err := fx.svc.CreateTransfer(ctx, transfer("40"))
	require.NoError(t, err)
	fx.movements.lostClaim = true
	ledgerCalls := fx.ledger.calls

	err = fx.svc.RevokeTransfer(ctx, cqrs.RevokeTransferCommand{UserGUID: "usr-ana", MovementGUID: out.GUID})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, ledgerCalls, fx.ledger.calls, "ledger untouched")
	assert.True(t, fx.balance(anaIBAN).Equal(d("960")))
}

func TestRevokeTransferRestoresClaimWhenLedgerFails(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()
	out, err := fx.svc.CreateTransfer(ctx, transfer("40"))
	require.NoError(t, err)
	fx.ledger.accounts[luisIBAN].Balance = d("10")

	err = fx.svc.RevokeTransfer(ctx, cqrs.RevokeTransferCommand{UserGUID: "usr-ana", MovementGUID: out.GUID})
	require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	assert.Equal(t, []string{out.GUID}, fx.movements.restored)
	assert.False(t, fx.movements.byGUID[out.GUID].IsDeleted)
	assert.False(t, fx.movements.byGUID[out.Transfer.DestinationMovementGUID].IsDeleted)
}

// ---- amount bounds ----

func TestMovementAmountBounds(t *testing.T) {
	tests := []struct {
		amount string
		ok     bool
	}{
		{"0.5", false},
		{"1", true},
		{"10000", true},
		{"10000.01", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			fx := newMovementFixture()
			fx.ledger.accounts[anaIBAN].Balance = d("20000")
			fx.cards.card.DailyLimit = d("20000")
			ctx := context.Background()

			_, payrollErr := fx.svc.CreatePayrollDeposit(ctx, cqrs.CreatePayrollDepositCommand{
				UserGUID: "usr-ana", DestinationIBAN: anaIBAN, OriginIBAN: otherIBAN, Amount: d(tt.amount),
				CompanyName: "ACME", CompanyCIF: "A58818501",
			})
			debit := directDebit()
			debit.Amount = d(tt.amount)
			_, debitErr := fx.svc.CreateDirectDebit(ctx, debit)
			_, transferErr := fx.svc.CreateTransfer(ctx, transfer(tt.amount))
			_, cardErr := fx.svc.CreateCardPayment(ctx, cqrs.CreateCardPaymentCommand{
				UserGUID: "usr-ana", CardNumber: cardNum, Amount: d(tt.amount), MerchantName: "Shop",
			})

			for name, err := range map[string]error{"payroll": payrollErr, "direct debit": debitErr, "transfer": transferErr, "card": cardErr} {
				if tt.ok {
					assert.NoError(t, err, name)
				} else {
					assert.ErrorIs(t, err, apperrors.ErrBadRequest, name)
				}
			}
		})
	}
}

// ---- payroll ----

func TestCreatePayrollDeposit(t *testing.T) {
	fx := newMovementFixture()
	cmd := cqrs.CreatePayrollDepositCommand{
		UserGUID: "usr-ana", DestinationIBAN: anaIBAN, OriginIBAN: otherIBAN, Amount: d("1500"),
		CompanyName: "ACME", CompanyCIF: "A58818501",
	}
	m, err := fx.svc.CreatePayrollDeposit(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, models.KindPayrollDeposit, m.Kind())
	assert.True(t, fx.balance(anaIBAN).Equal(d("2500")))

	cmd.CompanyCIF = " a58818501 "
	m, err = fx.svc.CreatePayrollDeposit(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "A58818501", m.PayrollDeposit.CompanyCIF)

	cmd.CompanyCIF = "A5881850A"
	_, err = fx.svc.CreatePayrollDeposit(context.Background(), cmd)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	cmd.CompanyCIF = "A58818501"
	cmd.UserGUID = "usr-luis"
	_, err = fx.svc.CreatePayrollDeposit(context.Background(), cmd)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

// ---- card payments ----

func TestCreateCardPaymentDailyLimit(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()
	pay := func(amount string) error {
		_, err := fx.svc.CreateCardPayment(ctx, cqrs.CreateCardPaymentCommand{
			UserGUID: "usr-ana", CardNumber: cardNum, Amount: d(amount), MerchantName: "Shop",
		})
		return err
	}

	require.NoError(t, pay("60"))
	require.NoError(t, pay("40"))
	require.ErrorIs(t, pay("1"), apperrors.ErrUnprocessable)
	assert.True(t, fx.balance(anaIBAN).Equal(d("900")))

	fx.now = fx.now.Add(24 * time.Hour)
	require.NoError(t, pay("100"), "limit resets the next day")
}

func TestCreateCardPaymentRejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(fx *movementFixture, cmd *cqrs.CreateCardPaymentCommand)
		wantErr error
	}{
		{"bad luhn", func(_ *movementFixture, c *cqrs.CreateCardPaymentCommand) { c.CardNumber = "4111111111111112" }, apperrors.ErrBadRequest},
		{"unknown card", func(_ *movementFixture, c *cqrs.CreateCardPaymentCommand) { c.CardNumber = "5555555555554444" }, apperrors.ErrNotFound},
		{"unlinked card", func(fx *movementFixture, _ *cqrs.CreateCardPaymentCommand) { fx.cards.owner = nil }, apperrors.ErrBadRequest},
		{"someone else's card", func(_ *movementFixture, c *cqrs.CreateCardPaymentCommand) { c.UserGUID = "usr-luis" }, apperrors.ErrForbidden},
		{"over balance", func(fx *movementFixture, c *cqrs.CreateCardPaymentCommand) {
			fx.cards.card.DailyLimit = d("5000")
			c.Amount = d("1000.01")
		}, apperrors.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newMovementFixture()
			cmd := cqrs.CreateCardPaymentCommand{UserGUID: "usr-ana", CardNumber: cardNum, Amount: d("10"), MerchantName: "Shop"}
			tt.setup(fx, &cmd)
			_, err := fx.svc.CreateCardPayment(context.Background(), cmd)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// ---- direct debits ----

func directDebit() cqrs.CreateDirectDebitCommand {
	return cqrs.CreateDirectDebitCommand{
		UserGUID: "usr-ana", OriginIBAN: anaIBAN, DestinationIBAN: otherIBAN, Amount: d("30"),
		CreditorName: "Gym", Periodicity: models.PeriodicityMonthly,
	}
}

func TestCreateDirectDebit(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()

	dd, err := fx.svc.CreateDirectDebit(ctx, directDebit())
	require.NoError(t, err)
	assert.True(t, dd.Active)
	assert.Equal(t, fx.now, dd.LastExecution)
	assert.Equal(t, "cli-ana", dd.ClientGUID)

	_, err = fx.svc.CreateDirectDebit(ctx, directDebit())
	require.ErrorIs(t, err, apperrors.ErrConflict)

	require.NoError(t, fx.svc.CancelDirectDebit(ctx, cqrs.CancelDirectDebitCommand{UserGUID: "usr-ana", GUID: dd.GUID}))
	_, err = fx.svc.CreateDirectDebit(ctx, directDebit())
	require.NoError(t, err, "a cancelled direct debit no longer blocks a new one")
}

func TestCancelDirectDebitOwnership(t *testing.T) {
	fx := newMovementFixture()
	dd, err := fx.svc.CreateDirectDebit(context.Background(), directDebit())
	require.NoError(t, err)

	err = fx.svc.CancelDirectDebit(context.Background(), cqrs.CancelDirectDebitCommand{UserGUID: "usr-luis", GUID: dd.GUID})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.True(t, fx.debits.byGUID[dd.GUID].Active)
}

func TestExecuteDirectDebit(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()
	cmd := directDebit()
	cmd.DestinationIBAN = luisIBAN
	dd, err := fx.svc.CreateDirectDebit(ctx, cmd)
	require.NoError(t, err)

	later := fx.now.AddDate(0, 1, 1)
	m, err := fx.svc.ExecuteDirectDebit(ctx, dd, later)
	require.NoError(t, err)
	assert.Equal(t, models.KindDirectDebit, m.Kind())
	assert.True(t, fx.balance(anaIBAN).Equal(d("970")))
	assert.True(t, fx.balance(luisIBAN).Equal(d("80")), "internal creditor is credited")
	assert.Equal(t, later, fx.debits.byGUID[dd.GUID].LastExecution)
	assert.Contains(t, fx.notifier.sent, sentNotification{events.KindExecute, "ana"})
	assert.Contains(t, fx.notifier.sent, sentNotification{events.KindExecute, "luis"})
}

func TestExecuteDirectDebitExternalAndInsufficient(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()
	dd, err := fx.svc.CreateDirectDebit(ctx, directDebit())
	require.NoError(t, err)

	_, err = fx.svc.ExecuteDirectDebit(ctx, dd, fx.now.AddDate(0, 1, 1))
	require.NoError(t, err)
	assert.True(t, fx.balance(anaIBAN).Equal(d("970")))

	fx.ledger.accounts[anaIBAN].Balance = d("10")
	_, err = fx.svc.ExecuteDirectDebit(ctx, dd, fx.now.AddDate(0, 2, 1))
	require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	assert.Equal(t, fx.now.AddDate(0, 1, 1), fx.debits.byGUID[dd.GUID].LastExecution, "debit stays due")
}

func TestExecuteDirectDebitDestinationLookupFails(t *testing.T) {
	fx := newMovementFixture()
	ctx := context.Background()
	cmd := directDebit()
	cmd.DestinationIBAN = luisIBAN
	dd, err := fx.svc.CreateDirectDebit(ctx, cmd)
	require.NoError(t, err)

	fx.accounts.lookupErrs = map[string]error{luisIBAN: errors.New("redis: i/o timeout")}
	_, err = fx.svc.ExecuteDirectDebit(ctx, dd, fx.now.AddDate(0, 1, 1))
	require.Error(t, err)
	assert.True(t, fx.balance(anaIBAN).Equal(d("1000")), "origin not charged")
	assert.True(t, fx.balance(luisIBAN).Equal(d("50")))
	assert.Equal(t, fx.now, fx.debits.byGUID[dd.GUID].LastExecution)
}
