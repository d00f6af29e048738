// Package scheduler charges due direct debits on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/vivesbank/backend/shared/apperrors"
	"github.com/vivesbank/backend/shared/models"
)

var logger = log.With().Str("pkg", "scheduler").Logger()

var executions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "direct_debit_executions_total",
	Help: "Direct debit executions partitioned by result",
}, []string{"result"})

// lockTTL bounds how long a crashed instance can hold a debit.
const lockTTL = 10 * time.Minute

type DirectDebitLister interface {
	ListActive(ctx context.Context) ([]models.DirectDebit, error)
}

type DirectDebitExecutor interface {
	ExecuteDirectDebit(ctx context.Context, dd *models.DirectDebit, now time.Time) (*models.Movement, error)
}

// Locker guards a debit period so only one instance charges it.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type Scheduler struct {
	debits   DirectDebitLister
	executor DirectDebitExecutor
	locker   Locker
	now      func() time.Time
	cron     *cron.Cron
}

func New(debits DirectDebitLister, executor DirectDebitExecutor, locker Locker) *Scheduler {
	return &Scheduler{
		debits:   debits,
		executor: executor,
		locker:   locker,
		now:      time.Now,
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}
}

// Result summarises one pass over the active direct debits.
type Result struct {
	Executed int
	Skipped  int
	Failed   int
}

// RunOnce executes every direct debit due at now. A debit whose origin lacks
// funds is left due and retried on the next pass.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (Result, error) {
	var res Result
	debits, err := s.debits.ListActive(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list direct debits: %w", err)
	}
	for i := range debits {
		dd := &debits[i]
		if !dd.Due(now) {
			continue
		}
		key := fmt.Sprintf("lock:directdebit:%s:%d", dd.GUID, dd.LastExecution.Unix())
		if s.locker != nil {
			ok, err := s.locker.Lock(ctx, key, lockTTL)
			if err != nil {
				logger.Error().Err(err).Str("directDebit", dd.GUID).Msg("lock failed")
				res.Failed++
				executions.WithLabelValues("error").Inc()
				continue
			}
			if !ok {
				res.Skipped++
				executions.WithLabelValues("locked").Inc()
				continue
			}
		}

		m, err := s.executor.ExecuteDirectDebit(ctx, dd, now)
		switch {
		case errors.Is(err, apperrors.ErrInsufficientBalance):
			logger.Warn().Str("directDebit", dd.GUID).Str("origin", dd.OriginIBAN).Msg("insufficient balance, direct debit left pending")
			res.Failed++
			executions.WithLabelValues("insufficient_balance").Inc()
		case err != nil:
			logger.Error().Err(err).Str("directDebit", dd.GUID).Msg("direct debit execution failed")
			res.Failed++
			executions.WithLabelValues("error").Inc()
		default:
			logger.Info().Str("directDebit", dd.GUID).Str("movement", m.GUID).Msg("direct debit executed")
			res.Executed++
			executions.WithLabelValues("executed").Inc()
		}
		// Nothing was charged, so the period stays open for the next pass.
		// A saved movement keeps the lock even when marking the debit failed.
		if err != nil && m == nil {
			s.unlock(ctx, key)
		}
	}
	return res, nil
}

func (s *Scheduler) unlock(ctx context.Context, key string) {
	if s.locker == nil {
		return
	}
	if err := s.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
		logger.Error().Err(err).Str("key", key).Msg("failed to release direct debit lock")
	}
}

// Start registers the job on spec (standard cron syntax or descriptors such
// as "@every 1m") and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		res, err := s.RunOnce(ctx, s.now().UTC())
		if err != nil {
			logger.Error().Err(err).Msg("direct debit pass failed")
			return
		}
		if res.Executed+res.Failed > 0 {
			logger.Info().Int("executed", res.Executed).Int("failed", res.Failed).Int("skipped", res.Skipped).Msg("direct debit pass finished")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.cron.Start()
	logger.Info().Str("spec", spec).Msg("direct debit scheduler started")
	return nil
}

// Stop waits for a running pass to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
