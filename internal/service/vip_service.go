// FILE: internal/service/vip_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lingua-exchange-be/internal/config"
	"lingua-exchange-be/internal/dto"
	"lingua-exchange-be/internal/entity"
	"lingua-exchange-be/internal/pkg/logger"
	"lingua-exchange-be/internal/repository/specification"
	"lingua-exchange-be/internal/repository/unitofwork"
	"lingua-exchange-be/pkg/events"
	"lingua-exchange-be/pkg/iap"
	pktNats "lingua-exchange-be/pkg/nats"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported purchase platform")
	ErrUserNotFound        = errors.New("user not found")
	ErrUnknownProduct      = errors.New("product id does not map to a vip plan")
)

type IVipService interface {
	VerifyAndApply(ctx context.Context, userId uuid.UUID, platform string, req *dto.VerifyPurchaseRequest) (*dto.VipStatusResponse, error)
	GetStatus(ctx context.Context, userId uuid.UUID) (*dto.VipStatusResponse, error)
	GetTransactions(ctx context.Context, userId uuid.UUID) ([]*dto.VipTransactionResponse, error)
	ApplyNotification(ctx context.Context, n *dto.VipNotification) error
}

type vipService struct {
	uowFactory     unitofwork.RepositoryFactory
	verifiers      map[string]iap.Verifier
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
	cfg            *config.VipConfig
	graceWindow    time.Duration
	now            func() time.Time
}

func NewVipService(
	uowFactory unitofwork.RepositoryFactory,
	verifiers []iap.Verifier,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
	cfg *config.VipConfig,
) IVipService {
	byPlatform := make(map[string]iap.Verifier, len(verifiers))
	for _, v := range verifiers {
		byPlatform[v.Platform()] = v
	}
	return &vipService{
		uowFactory:     uowFactory,
		verifiers:      byPlatform,
		eventPublisher: eventPublisher,
		logger:         log,
		cfg:            cfg,
		graceWindow:    time.Duration(cfg.GracePeriodHours) * time.Hour,
		now:            time.Now,
	}
}

func (s *vipService) VerifyAndApply(ctx context.Context, userId uuid.UUID, platform string, req *dto.VerifyPurchaseRequest) (*dto.VipStatusResponse, error) {
	verifier, ok := s.verifiers[platform]
	if !ok {
		return nil, ErrUnsupportedPlatform
	}

	// Store round-trip happens before we touch the database.
	purchase, err := verifier.Verify(ctx, req.Proof, iap.Hint{
		ProductID:     req.ProductId,
		TransactionID: req.TransactionId,
	})
	if err != nil {
		return nil, err
	}

	plan, err := s.resolvePlan(purchase.ProductID)
	if err != nil {
		return nil, err
	}
	method := paymentMethodForPlatform(platform)
	now := s.now()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	sub, err := uow.VipRepository().FindOneSubscription(ctx,
		specification.ByUserID{UserID: userId},
		specification.WithUpdateLock{},
	)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = &entity.VipSubscription{
			Id:        uuid.New(),
			UserId:    userId,
			Plan:      entity.VipPlanNone,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := uow.VipRepository().CreateSubscription(ctx, sub); err != nil {
			return nil, err
		}
	}

	txnType := transactionType(sub, plan)
	applied, err := uow.VipRepository().AppendTransaction(ctx, sub.Id, &entity.VipTransaction{
		Id:                    uuid.New(),
		SubscriptionId:        sub.Id,
		TransactionId:         purchase.TransactionID,
		OriginalTransactionId: purchase.OriginalTransactionID,
		ProductId:             purchase.ProductID,
		Plan:                  plan,
		PurchaseDate:          purchase.PurchaseDate,
		Type:                  txnType,
		Platform:              entity.PurchasePlatform(platform),
		CreatedAt:             now,
	})
	if err != nil {
		return nil, err
	}

	if !applied {
		// Replayed proof. The ledger already credited it; report the current
		// state without moving any dates.
		s.logger.Info("VipService", "Duplicate transaction ignored", map[string]interface{}{
			"user_id":        userId,
			"transaction_id": purchase.TransactionID,
		})
		return s.statusResponse(sub, now), nil
	}

	wasActive := sub.IsActive
	if wasActive {
		err = sub.Renew(plan, method, now)
	} else {
		err = sub.Activate(plan, method, now)
	}
	if err != nil {
		return nil, err
	}

	sub.UpdatedAt = now
	if err := uow.VipRepository().UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.publishLifecycleEvent(ctx, wasActive, userId, sub, platform, purchase.TransactionID)

	s.logger.Info("VipService", "Purchase credited", map[string]interface{}{
		"user_id":        userId,
		"platform":       platform,
		"plan":           plan,
		"transaction_id": purchase.TransactionID,
		"end_date":       sub.EndDate,
	})
	return s.statusResponse(sub, now), nil
}

func (s *vipService) GetStatus(ctx context.Context, userId uuid.UUID) (*dto.VipStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := uow.VipRepository().FindOneSubscription(ctx, specification.ByUserID{UserID: userId})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return &dto.VipStatusResponse{
			Plan:          string(entity.VipPlanNone),
			State:         string(entity.VipStateInactive),
			PaymentMethod: string(entity.PaymentMethodNone),
		}, nil
	}
	return s.statusResponse(sub, s.now()), nil
}

func (s *vipService) GetTransactions(ctx context.Context, userId uuid.UUID) ([]*dto.VipTransactionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sub, err := uow.VipRepository().FindOneSubscription(ctx, specification.ByUserID{UserID: userId})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return []*dto.VipTransactionResponse{}, nil
	}

	txns, err := uow.VipRepository().ListTransactions(ctx, sub.Id)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.VipTransactionResponse, 0, len(txns))
	for _, t := range txns {
		res = append(res, &dto.VipTransactionResponse{
			Id:            t.Id,
			TransactionId: t.TransactionId,
			ProductId:     t.ProductId,
			Plan:          string(t.Plan),
			Type:          string(t.Type),
			Platform:      string(t.Platform),
			PurchaseDate:  t.PurchaseDate,
		})
	}
	return res, nil
}

// ApplyNotification reconciles one normalized store notification against the
// subscription it targets. Returning nil acks the message; only retriable
// infrastructure errors come back non-nil.
func (s *vipService) ApplyNotification(ctx context.Context, n *dto.VipNotification) error {
	if n.MatchingTransactionId == "" {
		s.logger.Warn("VipService", "Notification without matching transaction id", map[string]interface{}{
			"platform": n.Platform,
			"kind":     n.Kind,
		})
		return nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindByTransactionId(ctx, n.MatchingTransactionId)
	if err != nil {
		return err
	}
	if user == nil {
		// Unknown transaction: purchase never verified with us, or a sandbox
		// event. Nothing to reconcile.
		s.logger.Warn("VipService", "Notification for unknown transaction", map[string]interface{}{
			"platform":       n.Platform,
			"kind":           n.Kind,
			"transaction_id": n.MatchingTransactionId,
		})
		return nil
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	sub, err := uow.VipRepository().FindOneSubscription(ctx,
		specification.ByUserID{UserID: user.Id},
		specification.WithUpdateLock{},
	)
	if err != nil {
		return err
	}
	if sub == nil {
		s.logger.Warn("VipService", "Notification matched user without subscription", map[string]interface{}{
			"user_id": user.Id,
			"kind":    n.Kind,
		})
		return nil
	}

	now := s.now()
	changed := false

	switch n.Kind {
	case dto.NotificationKindRenewal, dto.NotificationKindInitialBuy:
		changed, err = s.applyRenewal(ctx, uow, sub, n, now)
		if err != nil {
			return err
		}

	case dto.NotificationKindCancellation, dto.NotificationKindRenewalFailure:
		// The user keeps what they paid for; only the renewal intent flips.
		if sub.AutoRenew {
			sub.SetAutoRenew(false)
			changed = true
			s.publishEvent(ctx, events.NewVipAutoRenewChanged(user.Id, false, n.Kind))
		}

	case dto.NotificationKindRenewalChange:
		if n.AutoRenew != nil && sub.AutoRenew != *n.AutoRenew {
			sub.SetAutoRenew(*n.AutoRenew)
			changed = true
			s.publishEvent(ctx, events.NewVipAutoRenewChanged(user.Id, *n.AutoRenew, n.Kind))
		}

	case dto.NotificationKindExpire, dto.NotificationKindRevoke:
		if sub.Expire() {
			changed = true
			s.publishEvent(ctx, events.NewVipExpired(user.Id, n.Kind))
		}

	case dto.NotificationKindGracePeriod:
		// Informational; entitlement state is derived from EndDate and the
		// grace window, nothing to persist.
		s.logger.Info("VipService", "Subscription entered billing grace", map[string]interface{}{
			"user_id": user.Id,
		})

	default:
		s.logger.Warn("VipService", "Unhandled notification kind", map[string]interface{}{
			"kind": n.Kind,
		})
	}

	if !changed {
		return nil
	}

	sub.UpdatedAt = now
	if err := uow.VipRepository().UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	return uow.Commit()
}

// applyRenewal credits a webhook-announced renewal through the same ledger
// gate direct verification uses, so a client verify and the store webhook for
// the same transaction can race safely.
func (s *vipService) applyRenewal(ctx context.Context, uow unitofwork.UnitOfWork, sub *entity.VipSubscription, n *dto.VipNotification, now time.Time) (bool, error) {
	txnId := n.RenewalTransactionId
	if txnId == "" {
		txnId = n.MatchingTransactionId
	}

	plan := sub.Plan
	if n.ProductId != "" {
		if p, err := s.resolvePlan(n.ProductId); err == nil {
			plan = p
		}
	}
	if !plan.Valid() {
		s.logger.Warn("VipService", "Renewal notification without resolvable plan", map[string]interface{}{
			"user_id":    sub.UserId,
			"product_id": n.ProductId,
		})
		return false, nil
	}

	purchaseDate := n.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = now
	}

	txnType := entity.TransactionTypeRenewal
	if !sub.IsActive {
		txnType = entity.TransactionTypeInitial
	}

	applied, err := uow.VipRepository().AppendTransaction(ctx, sub.Id, &entity.VipTransaction{
		Id:                    uuid.New(),
		SubscriptionId:        sub.Id,
		TransactionId:         txnId,
		OriginalTransactionId: n.MatchingTransactionId,
		ProductId:             n.ProductId,
		Plan:                  plan,
		PurchaseDate:          purchaseDate,
		Type:                  txnType,
		Platform:              entity.PurchasePlatform(n.Platform),
		CreatedAt:             now,
	})
	if err != nil {
		return false, err
	}
	if !applied {
		s.logger.Info("VipService", "Webhook renewal already credited", map[string]interface{}{
			"user_id":        sub.UserId,
			"transaction_id": txnId,
		})
		return false, nil
	}

	wasActive := sub.IsActive
	if err := sub.Renew(plan, paymentMethodForPlatform(n.Platform), now); err != nil {
		if errors.Is(err, entity.ErrPaymentMethodMismatch) {
			// Cross-store event for a subscription paid through the other
			// store. Drop it rather than corrupt the entitlement.
			s.logger.Warn("VipService", "Renewal payment method mismatch", map[string]interface{}{
				"user_id":  sub.UserId,
				"platform": n.Platform,
				"method":   sub.PaymentMethod,
			})
			return false, nil
		}
		return false, err
	}

	s.publishLifecycleEvent(ctx, wasActive, sub.UserId, sub, n.Platform, txnId)
	return true, nil
}

func (s *vipService) statusResponse(sub *entity.VipSubscription, now time.Time) *dto.VipStatusResponse {
	state := sub.State(now, s.graceWindow)
	return &dto.VipStatusResponse{
		Plan:            string(sub.Plan),
		State:           string(state),
		IsActive:        state == entity.VipStateActive || state == entity.VipStateGrace,
		AutoRenew:       sub.AutoRenew,
		PaymentMethod:   string(sub.PaymentMethod),
		StartDate:       sub.StartDate,
		EndDate:         sub.EndDate,
		NextBillingDate: sub.NextBillingDate,
	}
}

// resolvePlan maps a store product id onto a local plan using the configured
// catalog, falling back to naming convention for unlisted ids.
func (s *vipService) resolvePlan(productId string) (entity.VipPlan, error) {
	if containsString(s.cfg.MonthlyProductIds, productId) {
		return entity.VipPlanMonthly, nil
	}
	if containsString(s.cfg.QuarterlyProductIds, productId) {
		return entity.VipPlanQuarterly, nil
	}
	if containsString(s.cfg.YearlyProductIds, productId) {
		return entity.VipPlanYearly, nil
	}

	lower := strings.ToLower(productId)
	switch {
	case strings.Contains(lower, "month"):
		return entity.VipPlanMonthly, nil
	case strings.Contains(lower, "quarter"):
		return entity.VipPlanQuarterly, nil
	case strings.Contains(lower, "year"), strings.Contains(lower, "annual"):
		return entity.VipPlanYearly, nil
	}
	return entity.VipPlanNone, fmt.Errorf("%w: %s", ErrUnknownProduct, productId)
}

func (s *vipService) publishLifecycleEvent(ctx context.Context, wasActive bool, userId uuid.UUID, sub *entity.VipSubscription, platform, transactionId string) {
	endDate := time.Time{}
	if sub.EndDate != nil {
		endDate = *sub.EndDate
	}
	var evt events.Event
	if wasActive {
		evt = events.NewVipRenewed(userId, string(sub.Plan), platform, transactionId, endDate)
	} else {
		evt = events.NewVipActivated(userId, string(sub.Plan), platform, transactionId, endDate)
	}
	s.publishEvent(ctx, evt)
}

func (s *vipService) publishEvent(ctx context.Context, evt events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("VipService", "Failed to publish audit event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}

func transactionType(sub *entity.VipSubscription, plan entity.VipPlan) entity.TransactionType {
	if !sub.IsActive {
		return entity.TransactionTypeInitial
	}
	if sub.Plan == plan {
		return entity.TransactionTypeRenewal
	}
	if planRank(plan) > planRank(sub.Plan) {
		return entity.TransactionTypeUpgrade
	}
	return entity.TransactionTypeDowngrade
}

func planRank(p entity.VipPlan) int {
	switch p {
	case entity.VipPlanMonthly:
		return 1
	case entity.VipPlanQuarterly:
		return 2
	case entity.VipPlanYearly:
		return 3
	default:
		return 0
	}
}

func paymentMethodForPlatform(platform string) entity.PaymentMethod {
	switch platform {
	case iap.PlatformIOS:
		return entity.PaymentMethodApple
	case iap.PlatformAndroid:
		return entity.PaymentMethodGoogle
	default:
		return entity.PaymentMethodNone
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
