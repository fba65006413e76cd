// FILE: internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"lingua-exchange-be/internal/pkg/logger"
	"lingua-exchange-be/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const (
	expirySweepSpec  = "0 * * * *" // hourly
	warningSweepSpec = "0 9 * * *" // daily at 09:00
	leasePrefix      = "vip:sweep:lease:"
)

// Scheduler drives the periodic sweeps. A short redis lease makes sure only
// one instance runs a given sweep when several replicas share the database.
type Scheduler struct {
	cron       *cron.Cron
	sweeps     service.ISweepService
	rdb        *redis.Client
	logger     logger.ILogger
	instanceId string
}

func New(sweeps service.ISweepService, rdb *redis.Client, log logger.ILogger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		sweeps:     sweeps,
		rdb:        rdb,
		logger:     log,
		instanceId: uuid.NewString(),
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(expirySweepSpec, func() {
		s.runWithLease("expiry", 10*time.Minute, func(ctx context.Context) error {
			_, err := s.sweeps.RunExpirySweep(ctx)
			return err
		})
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(warningSweepSpec, func() {
		s.runWithLease("warning", 10*time.Minute, func(ctx context.Context) error {
			_, err := s.sweeps.RunWarningSweep(ctx)
			return err
		})
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Scheduler", "Sweep scheduler started", map[string]interface{}{
		"expiry_spec":  expirySweepSpec,
		"warning_spec": warningSweepSpec,
	})
	return nil
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler", "Sweep scheduler stopped", nil)
}

func (s *Scheduler) runWithLease(name string, ttl time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), ttl)
	defer cancel()

	if !s.acquireLease(ctx, name, ttl) {
		s.logger.Debug("Scheduler", "Sweep lease held elsewhere, skipping", map[string]interface{}{
			"sweep": name,
		})
		return
	}

	started := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error("Scheduler", "Sweep run failed", map[string]interface{}{
			"sweep": name,
			"error": err.Error(),
		})
		return
	}
	s.logger.Info("Scheduler", "Sweep run completed", map[string]interface{}{
		"sweep":       name,
		"duration_ms": time.Since(started).Milliseconds(),
	})
}

// acquireLease is best effort: without redis (single instance deployments,
// tests) every run proceeds.
func (s *Scheduler) acquireLease(ctx context.Context, name string, ttl time.Duration) bool {
	if s.rdb == nil {
		return true
	}
	ok, err := s.rdb.SetNX(ctx, leasePrefix+name, s.instanceId, ttl).Result()
	if err != nil {
		s.logger.Warn("Scheduler", "Lease check failed, running anyway", map[string]interface{}{
			"sweep": name,
			"error": err.Error(),
		})
		return true
	}
	return ok
}
