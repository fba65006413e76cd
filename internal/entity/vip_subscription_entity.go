// FILE: internal/entity/vip_subscription_entity.go
package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type VipPlan string
type PaymentMethod string
type PurchasePlatform string
type TransactionType string
type VipState string

const (
	VipPlanNone      VipPlan = "none"
	VipPlanMonthly   VipPlan = "monthly"
	VipPlanQuarterly VipPlan = "quarterly"
	VipPlanYearly    VipPlan = "yearly"

	PaymentMethodNone   PaymentMethod = "none"
	PaymentMethodApple  PaymentMethod = "apple_iap"
	PaymentMethodGoogle PaymentMethod = "google_play"

	PlatformIOS     PurchasePlatform = "ios"
	PlatformAndroid PurchasePlatform = "android"

	TransactionTypeInitial   TransactionType = "initial"
	TransactionTypeRenewal   TransactionType = "renewal"
	TransactionTypeUpgrade   TransactionType = "upgrade"
	TransactionTypeDowngrade TransactionType = "downgrade"

	VipStateInactive VipState = "inactive"
	VipStateActive   VipState = "active"
	VipStateGrace    VipState = "grace_period"
	VipStateExpired  VipState = "expired"
)

var (
	ErrPaymentMethodMismatch = errors.New("renewal payment method does not match subscription")
	ErrUnknownPlan           = errors.New("unknown vip plan")
)

// VipTransaction is one accepted purchase/renewal event. The ledger never
// holds two rows with the same TransactionId for a subscription.
// OriginalTransactionId is the platform's stable identifier across renewals;
// store webhooks match on it, so every row keeps both.
type VipTransaction struct {
	Id                    uuid.UUID
	SubscriptionId        uuid.UUID
	TransactionId         string
	OriginalTransactionId string
	ProductId             string
	Plan                  VipPlan
	PurchaseDate          time.Time
	Type                  TransactionType
	Platform              PurchasePlatform
	CreatedAt             time.Time
}

// VipSubscription owns a user's entitlement lifecycle. All state changes go
// through the named transition methods below; callers must not mutate the
// date fields directly.
type VipSubscription struct {
	Id              uuid.UUID
	UserId          uuid.UUID
	IsActive        bool
	Plan            VipPlan
	StartDate       *time.Time
	EndDate         *time.Time
	NextBillingDate *time.Time
	LastPaymentDate *time.Time
	AutoRenew       bool
	PaymentMethod   PaymentMethod

	// One-shot guards for the notification sweeps.
	Warned7Day          bool
	Warned3Day          bool
	Warned1Day          bool
	GracePeriodNotified bool

	Transactions []*VipTransaction
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AddToDate returns base advanced by one billing period of the plan.
func (p VipPlan) AddToDate(base time.Time) time.Time {
	switch p {
	case VipPlanMonthly:
		return base.AddDate(0, 1, 0)
	case VipPlanQuarterly:
		return base.AddDate(0, 3, 0)
	case VipPlanYearly:
		return base.AddDate(1, 0, 0)
	default:
		return base
	}
}

func (p VipPlan) Valid() bool {
	return p == VipPlanMonthly || p == VipPlanQuarterly || p == VipPlanYearly
}

// State derives the lifecycle state. GracePeriod is never persisted: a
// subscription past EndDate but inside the grace window stays IsActive until
// the enforcement sweep deactivates it.
func (s *VipSubscription) State(now time.Time, graceWindow time.Duration) VipState {
	if !s.IsActive || s.EndDate == nil {
		return VipStateInactive
	}
	if s.EndDate.After(now) {
		return VipStateActive
	}
	if now.Sub(*s.EndDate) < graceWindow {
		return VipStateGrace
	}
	return VipStateExpired
}

// Activate starts (or restarts) the entitlement from any state.
func (s *VipSubscription) Activate(plan VipPlan, method PaymentMethod, now time.Time) error {
	if !plan.Valid() {
		return ErrUnknownPlan
	}
	end := plan.AddToDate(now)

	s.IsActive = true
	s.Plan = plan
	s.PaymentMethod = method
	s.AutoRenew = true
	s.StartDate = &now
	s.EndDate = &end
	s.NextBillingDate = &end
	s.LastPaymentDate = &now
	s.clearNotificationGuards()
	return nil
}

// Renew extends the entitlement by one billing period counted from the
// current EndDate, never from the wall clock. A renewal processed late must
// not shorten the period the user paid for.
func (s *VipSubscription) Renew(plan VipPlan, method PaymentMethod, now time.Time) error {
	if !plan.Valid() {
		return ErrUnknownPlan
	}
	if s.PaymentMethod != PaymentMethodNone && s.PaymentMethod != method {
		return ErrPaymentMethodMismatch
	}
	if s.EndDate == nil {
		// Never activated before; a renewal notification for a subscription
		// we have no period for behaves like a fresh activation.
		return s.Activate(plan, method, now)
	}

	end := plan.AddToDate(*s.EndDate)
	s.IsActive = true
	s.Plan = plan
	s.PaymentMethod = method
	s.EndDate = &end
	s.NextBillingDate = &end
	s.LastPaymentDate = &now
	s.clearNotificationGuards()
	return nil
}

// SetAutoRenew is metadata only; it never touches EndDate.
func (s *VipSubscription) SetAutoRenew(enabled bool) {
	s.AutoRenew = enabled
}

// Expire deactivates the entitlement. Calling it on an already-inactive
// subscription is a no-op; it reports whether a transition happened.
func (s *VipSubscription) Expire() bool {
	if !s.IsActive {
		return false
	}
	s.IsActive = false
	s.Plan = VipPlanNone
	s.AutoRenew = false
	return true
}

// HasTransaction reports whether the ledger already contains the id.
func (s *VipSubscription) HasTransaction(transactionId string) bool {
	for _, t := range s.Transactions {
		if t.TransactionId == transactionId {
			return true
		}
	}
	return false
}

func (s *VipSubscription) clearNotificationGuards() {
	s.Warned7Day = false
	s.Warned3Day = false
	s.Warned1Day = false
	s.GracePeriodNotified = false
}
