// Package scheduler polls open boletos and reconciles them against the
// bank's authoritative status.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	boletodomain "github.com/smallbiznis/cobranca/internal/boleto/domain"
	boletoservice "github.com/smallbiznis/cobranca/internal/boleto/service"
	"github.com/smallbiznis/cobranca/internal/clock"
	"github.com/smallbiznis/cobranca/internal/event"
	obsmetrics "github.com/smallbiznis/cobranca/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler misconfigured")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    boletodomain.Repository
	Gateway *boletoservice.Gateway
	Locker  *Locker             `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
	Config  Config              `optional:"true"`
}

type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	repo    boletodomain.Repository
	gateway *boletoservice.Gateway
	locker  *Locker
	metrics *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Repo == nil || p.Gateway == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:     p.Config.withDefaults(),
		clock:   p.Clock,
		repo:    p.Repo,
		gateway: p.Gateway,
		locker:  p.Locker,
		metrics: p.Metrics,
	}, nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("reconciliation run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce takes the distributed lock and runs one reconciliation cycle. A
// cycle already running on another instance skips this one silently.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	token, acquired, err := s.locker.TryLock(ctx, reconcileLockKey, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("reconcile lock: %w", err)
	}
	if !acquired {
		s.log.Info("reconciliation already running elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		if releaseErr := s.locker.Release(context.WithoutCancel(ctx), reconcileLockKey, token); releaseErr != nil {
			s.log.Warn("reconcile lock release failed", zap.Error(releaseErr))
		}
	}()

	return s.ReconcileJob(ctx)
}

// ReconcileJob claims open boletos in bounded batches and refreshes each one
// against the bank. One boleto failing is recorded and joined into the job
// error but never stops the rest of the batch.
func (s *Scheduler) ReconcileJob(ctx context.Context) error {
	start := s.clock.Now()
	var jobErr error
	claimed := 0
	failed := 0

	for {
		var batch []boletodomain.Boleto
		var pending []event.Event
		batchFailed := 0
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var err error
			batch, err = s.repo.ClaimForReconciliation(ctx, tx, s.cfg.BankCode, start, s.cfg.BatchSize)
			if err != nil {
				return err
			}
			for i := range batch {
				boleto := &batch[i]
				events, refreshErr := s.reconcileOne(ctx, tx, boleto)
				if refreshErr != nil {
					batchFailed++
					s.log.Error("boleto reconciliation failed",
						zap.Int64("boleto_id", int64(boleto.ID)),
						zap.String("external_id", boleto.ExternalID),
						zap.String("nosso_numero", boleto.NossoNumero),
						zap.Error(refreshErr),
					)
					jobErr = errors.Join(jobErr, refreshErr)
					continue
				}
				pending = append(pending, events...)
			}
			return nil
		})
		if err != nil {
			jobErr = errors.Join(jobErr, err)
			break
		}
		s.gateway.Publish(ctx, pending)
		claimed += len(batch)
		failed += batchFailed
		if len(batch) < s.cfg.BatchSize {
			break
		}
		// Failed rows keep their sync timestamp and would be claimed again,
		// so a batch with no progress ends the cycle.
		if batchFailed == len(batch) {
			break
		}
		select {
		case <-ctx.Done():
			jobErr = errors.Join(jobErr, ctx.Err())
			return jobErr
		default:
		}
	}

	elapsed := s.clock.Now().Sub(start)
	s.metrics.ReconcileRun(claimed, failed, elapsed)
	s.log.Info("reconciliation cycle finished",
		zap.Int("claimed", claimed),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed),
	)
	return jobErr
}

func (s *Scheduler) reconcileOne(ctx context.Context, tx *gorm.DB, boleto *boletodomain.Boleto) ([]event.Event, error) {
	previous := boleto.Status
	refreshed, err := s.gateway.RefreshStatus(ctx, tx, boleto)
	if err != nil {
		return nil, err
	}
	return s.gateway.SyncOutcome(ctx, tx, refreshed, previous)
}
