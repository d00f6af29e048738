package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/models"
)

type fakeLister struct {
	debits []models.DirectDebit
	err    error
}

func (f *fakeLister) ListActive(context.Context) ([]models.DirectDebit, error) {
	return f.debits, f.err
}

type fakeExecutor struct {
	failures map[string]error
	failOnce map[string]error
	unmarked map[string]bool // charged but not marked as executed
	calls    int
	executed []string
}

func (f *fakeExecutor) ExecuteDirectDebit(_ context.Context, dd *models.DirectDebit, _ time.Time) (*models.Movement, error) {
	f.calls++
	if err := f.failures[dd.GUID]; err != nil {
		return nil, err
	}
	if err := f.failOnce[dd.GUID]; err != nil {
		delete(f.failOnce, dd.GUID)
		return nil, err
	}
	m := &models.Movement{GUID: "mov-" + dd.GUID, DirectDebit: dd}
	f.executed = append(f.executed, dd.GUID)
	if f.unmarked[dd.GUID] {
		return m, errors.New("direct debit not marked")
	}
	return m, nil
}

type memLocker struct {
	held map[string]bool
	err  error
}

func (l *memLocker) Lock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memLocker) Unlock(_ context.Context, key string) error {
	delete(l.held, key)
	return nil
}

var now = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func debit(guid string, p models.Periodicity, last time.Time) models.DirectDebit {
	return models.DirectDebit{GUID: guid, Periodicity: p, Active: true, LastExecution: last, OriginIBAN: "ES9121000418450200051332"}
}

func TestRunOnceExecutesOnlyDueDebits(t *testing.T) {
	lister := &fakeLister{debits: []models.DirectDebit{
		debit("dd-monthly-due", models.PeriodicityMonthly, now.AddDate(0, -1, -1)),
		debit("dd-monthly-not-yet", models.PeriodicityMonthly, now.AddDate(0, 0, -20)),
		debit("dd-daily-due", models.PeriodicityDaily, now.Add(-25*time.Hour)),
		debit("dd-weekly-not-yet", models.PeriodicityWeekly, now.AddDate(0, 0, -6)),
	}}
	exec := &fakeExecutor{}
	s := New(lister, exec, &memLocker{held: map[string]bool{}})

	res, err := s.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Executed: 2}, res)
	assert.ElementsMatch(t, []string{"dd-monthly-due", "dd-daily-due"}, exec.executed)
}

func TestRunOnceLeavesUnderfundedDebitPending(t *testing.T) {
	lister := &fakeLister{debits: []models.DirectDebit{
		debit("dd-1", models.PeriodicityDaily, now.AddDate(0, 0, -2)),
		debit("dd-2", models.PeriodicityDaily, now.AddDate(0, 0, -2)),
	}}
	exec := &fakeExecutor{failures: map[string]error{
		"dd-1": fmt.Errorf("account x: %w", apperrors.ErrInsufficientBalance),
	}}
	s := New(lister, exec, nil)

	res, err := s.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Executed: 1, Failed: 1}, res)
	assert.Equal(t, []string{"dd-2"}, exec.executed)
}

func TestRunOnceRetriesUnderfundedDebitOnNextPass(t *testing.T) {
	last := now.AddDate(0, 0, -2)
	lister := &fakeLister{debits: []models.DirectDebit{debit("dd-1", models.PeriodicityDaily, last)}}
	exec := &fakeExecutor{failOnce: map[string]error{
		"dd-1": fmt.Errorf("account x: %w", apperrors.ErrInsufficientBalance),
	}}
	locker := &memLocker{held: map[string]bool{}}
	s := New(lister, exec, locker)

	res, err := s.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)
	assert.Empty(t, locker.held, "lock released after a failed charge")

	res, err = s.RunOnce(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Result{Executed: 1}, res)
	assert.Equal(t, 2, exec.calls)
	assert.Equal(t, []string{"dd-1"}, exec.executed)
}

func TestRunOnceKeepsLockWhenChargeWasRecorded(t *testing.T) {
	last := now.AddDate(0, 0, -2)
	lister := &fakeLister{debits: []models.DirectDebit{debit("dd-1", models.PeriodicityDaily, last)}}
	exec := &fakeExecutor{unmarked: map[string]bool{"dd-1": true}}
	locker := &memLocker{held: map[string]bool{}}
	s := New(lister, exec, locker)

	res, err := s.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)

	res, err = s.RunOnce(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 1}, res)
	assert.Equal(t, 1, exec.calls, "a recorded charge is not repeated")
}

func TestRunOnceSkipsLockedPeriods(t *testing.T) {
	last := now.AddDate(0, 0, -2)
	lister := &fakeLister{debits: []models.DirectDebit{debit("dd-1", models.PeriodicityDaily, last)}}
	locker := &memLocker{held: map[string]bool{
		fmt.Sprintf("lock:directdebit:dd-1:%d", last.Unix()): true,
	}}
	exec := &fakeExecutor{}
	s := New(lister, exec, locker)

	res, err := s.RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 1}, res)
	assert.Empty(t, exec.executed)
}

func TestRunOnceTwiceChargesOnce(t *testing.T) {
	lister := &fakeLister{debits: []models.DirectDebit{debit("dd-1", models.PeriodicityDaily, now.AddDate(0, 0, -2))}}
	exec := &fakeExecutor{}
	s := New(lister, exec, &memLocker{held: map[string]bool{}})

	_, err := s.RunOnce(context.Background(), now)
	require.NoError(t, err)
	// the lister still reports the old LastExecution, as a stale replica would
	_, err = s.RunOnce(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"dd-1"}, exec.executed)
}

func TestRunOnceErrors(t *testing.T) {
	_, err := New(&fakeLister{err: errors.New("mongo down")}, &fakeExecutor{}, nil).RunOnce(context.Background(), now)
	require.Error(t, err)

	lister := &fakeLister{debits: []models.DirectDebit{debit("dd-1", models.PeriodicityDaily, now.AddDate(0, 0, -2))}}
	res, err := New(lister, &fakeExecutor{}, &memLocker{err: errors.New("redis down")}).RunOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, Result{Failed: 1}, res)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(&fakeLister{}, &fakeExecutor{}, nil)
	require.Error(t, s.Start(context.Background(), "every so often"))

	require.NoError(t, s.Start(context.Background(), "@every 1h"))
	s.Stop()
}
