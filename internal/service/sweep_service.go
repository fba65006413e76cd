// FILE: internal/service/sweep_service.go
package service

import (
	"context"
	"math"
	"sort"
	"time"

	"lingua-exchange-be/internal/config"
	"lingua-exchange-be/internal/entity"
	"lingua-exchange-be/internal/pkg/logger"
	"lingua-exchange-be/internal/pkg/notifier"
	"lingua-exchange-be/internal/repository/specification"
	"lingua-exchange-be/internal/repository/unitofwork"
	"lingua-exchange-be/pkg/events"
	pktNats "lingua-exchange-be/pkg/nats"
)

// ISweepService owns the periodic passes over the subscription table:
// retiring entitlements past their grace window and sending pre-expiry
// warnings. Webhooks keep most subscriptions current; the sweeps are the
// backstop for the ones whose store events never arrived.
type ISweepService interface {
	RunExpirySweep(ctx context.Context) (int, error)
	RunWarningSweep(ctx context.Context) (int, error)
}

type sweepService struct {
	uowFactory     unitofwork.RepositoryFactory
	notifier       notifier.INotifier
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
	graceWindow    time.Duration
	warningOffsets []int
	now            func() time.Time
}

func NewSweepService(
	uowFactory unitofwork.RepositoryFactory,
	n notifier.INotifier,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
	cfg *config.VipConfig,
) ISweepService {
	offsets := append([]int(nil), cfg.WarningDayOffsets...)
	sort.Sort(sort.Reverse(sort.IntSlice(offsets)))

	return &sweepService{
		uowFactory:     uowFactory,
		notifier:       n,
		eventPublisher: eventPublisher,
		logger:         log,
		graceWindow:    time.Duration(cfg.GracePeriodHours) * time.Hour,
		warningOffsets: offsets,
		now:            time.Now,
	}
}

// RunExpirySweep visits every subscription still flagged active whose end
// date has passed. Inside the grace window it sends the one-shot grace
// notice; past it, the entitlement is retired. Returns how many were expired.
func (s *sweepService) RunExpirySweep(ctx context.Context) (int, error) {
	now := s.now()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	candidates, err := uow.VipRepository().FindAllSubscriptions(ctx, specification.ActiveExpiredBefore{Now: now})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		didExpire, err := s.enforceOne(ctx, candidate, now)
		if err != nil {
			s.logger.Error("SweepService", "Failed to enforce subscription expiry", map[string]interface{}{
				"subscription_id": candidate.Id,
				"error":           err.Error(),
			})
			continue
		}
		if didExpire {
			expired++
		}
	}

	s.logger.Info("SweepService", "Expiry sweep finished", map[string]interface{}{
		"candidates": len(candidates),
		"expired":    expired,
	})
	return expired, nil
}

// enforceOne re-reads the subscription under a row lock before deciding. A
// renewal webhook may have landed between the candidate query and here.
func (s *sweepService) enforceOne(ctx context.Context, candidate *entity.VipSubscription, now time.Time) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return false, err
	}
	defer uow.Rollback()

	sub, err := uow.VipRepository().FindOneSubscription(ctx,
		specification.ByID{ID: candidate.Id},
		specification.WithUpdateLock{},
	)
	if err != nil {
		return false, err
	}
	if sub == nil || !sub.IsActive || sub.EndDate == nil || sub.EndDate.After(now) {
		return false, nil
	}

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: sub.UserId})
	if err != nil {
		return false, err
	}

	// Still inside the grace window: notify once, expire later.
	if now.Sub(*sub.EndDate) < s.graceWindow {
		if sub.GracePeriodNotified {
			return false, nil
		}
		sub.GracePeriodNotified = true
		sub.UpdatedAt = now
		if err := uow.VipRepository().UpdateSubscription(ctx, sub); err != nil {
			return false, err
		}
		if err := uow.Commit(); err != nil {
			return false, err
		}
		if user != nil {
			s.notifier.GraceNotice(user, sub.EndDate.Add(s.graceWindow))
		}
		return false, nil
	}

	if !sub.Expire() {
		return false, nil
	}
	sub.UpdatedAt = now
	if err := uow.VipRepository().UpdateSubscription(ctx, sub); err != nil {
		return false, err
	}
	if err := uow.Commit(); err != nil {
		return false, err
	}

	if user != nil {
		s.notifier.Expired(user)
	}
	s.publishEvent(ctx, events.NewVipExpired(sub.UserId, "sweep"))
	return true, nil
}

// RunWarningSweep sends the day-offset expiry warnings. Each bucket fires at
// most once per billing period; the flags reset on activation and renewal.
func (s *sweepService) RunWarningSweep(ctx context.Context) (int, error) {
	if len(s.warningOffsets) == 0 {
		return 0, nil
	}
	now := s.now()
	horizon := now.AddDate(0, 0, s.warningOffsets[0])

	uow := s.uowFactory.NewUnitOfWork(ctx)
	candidates, err := uow.VipRepository().FindAllSubscriptions(ctx,
		specification.ActiveExpiringBetween{From: now, To: horizon},
	)
	if err != nil {
		return 0, err
	}

	warned := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return warned, err
		}
		didWarn, err := s.warnOne(ctx, candidate, now)
		if err != nil {
			s.logger.Error("SweepService", "Failed to process expiry warning", map[string]interface{}{
				"subscription_id": candidate.Id,
				"error":           err.Error(),
			})
			continue
		}
		if didWarn {
			warned++
		}
	}

	s.logger.Info("SweepService", "Warning sweep finished", map[string]interface{}{
		"candidates": len(candidates),
		"warned":     warned,
	})
	return warned, nil
}

func (s *sweepService) warnOne(ctx context.Context, candidate *entity.VipSubscription, now time.Time) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return false, err
	}
	defer uow.Rollback()

	sub, err := uow.VipRepository().FindOneSubscription(ctx,
		specification.ByID{ID: candidate.Id},
		specification.WithUpdateLock{},
	)
	if err != nil {
		return false, err
	}
	if sub == nil || !sub.IsActive || sub.EndDate == nil || !sub.EndDate.After(now) {
		return false, nil
	}

	daysLeft := int(math.Ceil(sub.EndDate.Sub(now).Hours() / 24))
	bucket, ok := s.warningBucket(daysLeft)
	if !ok || warnedForBucket(sub, bucket) {
		return false, nil
	}

	markWarnedForBucket(sub, bucket)
	sub.UpdatedAt = now
	if err := uow.VipRepository().UpdateSubscription(ctx, sub); err != nil {
		return false, err
	}
	if err := uow.Commit(); err != nil {
		return false, err
	}

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: sub.UserId})
	if err == nil && user != nil {
		s.notifier.ExpiryWarning(user, string(sub.Plan), *sub.EndDate, daysLeft)
	}
	return true, nil
}

// warningBucket picks the most imminent configured offset that covers the
// remaining days. 2 days left with offsets {7,3,1} lands in the 3-day bucket.
func (s *sweepService) warningBucket(daysLeft int) (int, bool) {
	bucket := 0
	found := false
	for _, offset := range s.warningOffsets {
		if daysLeft <= offset {
			bucket = offset
			found = true
		}
	}
	return bucket, found
}

func warnedForBucket(sub *entity.VipSubscription, bucket int) bool {
	switch bucket {
	case 1:
		return sub.Warned1Day
	case 3:
		return sub.Warned3Day
	default:
		return sub.Warned7Day
	}
}

func markWarnedForBucket(sub *entity.VipSubscription, bucket int) {
	switch bucket {
	case 1:
		sub.Warned1Day = true
	case 3:
		sub.Warned3Day = true
	default:
		sub.Warned7Day = true
	}
}

func (s *sweepService) publishEvent(ctx context.Context, evt events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("SweepService", "Failed to publish audit event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}
