package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestVipPlanAddToDate(t *testing.T) {
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC), VipPlanMonthly.AddToDate(base))
	assert.Equal(t, time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC), VipPlanQuarterly.AddToDate(base))
	assert.Equal(t, time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC), VipPlanYearly.AddToDate(base))
	assert.Equal(t, base, VipPlanNone.AddToDate(base))
}

func TestActivate(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	sub := &VipSubscription{Id: uuid.New(), UserId: uuid.New(), Warned7Day: true, GracePeriodNotified: true}

	err := sub.Activate(VipPlanMonthly, PaymentMethodApple, now)
	assert.NoError(t, err)

	assert.True(t, sub.IsActive)
	assert.Equal(t, VipPlanMonthly, sub.Plan)
	assert.Equal(t, PaymentMethodApple, sub.PaymentMethod)
	assert.True(t, sub.AutoRenew)
	assert.Equal(t, now, *sub.StartDate)
	assert.Equal(t, time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC), *sub.EndDate)
	assert.Equal(t, *sub.EndDate, *sub.NextBillingDate)
	assert.Equal(t, now, *sub.LastPaymentDate)

	// Notification guards reset on activation
	assert.False(t, sub.Warned7Day)
	assert.False(t, sub.GracePeriodNotified)
}

func TestActivateRejectsUnknownPlan(t *testing.T) {
	sub := &VipSubscription{}
	err := sub.Activate(VipPlan("platinum"), PaymentMethodApple, time.Now())
	assert.ErrorIs(t, err, ErrUnknownPlan)
	assert.False(t, sub.IsActive)
}

func TestRenewExtendsFromEndDate(t *testing.T) {
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	sub := &VipSubscription{}
	assert.NoError(t, sub.Activate(VipPlanMonthly, PaymentMethodApple, start))

	// Renewal processed a day early still counts from the period end.
	renewedAt := time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC)
	sub.Warned7Day = true
	sub.Warned3Day = true
	assert.NoError(t, sub.Renew(VipPlanMonthly, PaymentMethodApple, renewedAt))

	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *sub.EndDate)
	assert.Equal(t, *sub.EndDate, *sub.NextBillingDate)
	assert.Equal(t, renewedAt, *sub.LastPaymentDate)
	assert.Equal(t, start, *sub.StartDate) // original start untouched
	assert.False(t, sub.Warned7Day)
	assert.False(t, sub.Warned3Day)
}

func TestRenewProcessedLateDoesNotShortenPeriod(t *testing.T) {
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	sub := &VipSubscription{}
	assert.NoError(t, sub.Activate(VipPlanMonthly, PaymentMethodGoogle, start))

	// Webhook arrives three days after the nominal expiry.
	late := time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, sub.Renew(VipPlanMonthly, PaymentMethodGoogle, late))

	// Period still runs from the old end date, not from the wall clock.
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *sub.EndDate)
}

func TestRenewPaymentMethodMismatch(t *testing.T) {
	sub := &VipSubscription{}
	assert.NoError(t, sub.Activate(VipPlanMonthly, PaymentMethodApple, time.Now()))

	err := sub.Renew(VipPlanMonthly, PaymentMethodGoogle, time.Now())
	assert.ErrorIs(t, err, ErrPaymentMethodMismatch)
}

func TestRenewWithoutPriorPeriodActivates(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	sub := &VipSubscription{}

	assert.NoError(t, sub.Renew(VipPlanYearly, PaymentMethodGoogle, now))
	assert.True(t, sub.IsActive)
	assert.Equal(t, now, *sub.StartDate)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), *sub.EndDate)
}

func TestStateDerivation(t *testing.T) {
	grace := 24 * time.Hour
	end := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	sub := &VipSubscription{IsActive: true, Plan: VipPlanMonthly, EndDate: &end}

	assert.Equal(t, VipStateActive, sub.State(end.Add(-time.Hour), grace))
	assert.Equal(t, VipStateGrace, sub.State(end.Add(23*time.Hour), grace))
	assert.Equal(t, VipStateExpired, sub.State(end.Add(25*time.Hour), grace))

	sub.IsActive = false
	assert.Equal(t, VipStateInactive, sub.State(end.Add(-time.Hour), grace))

	assert.Equal(t, VipStateInactive, (&VipSubscription{IsActive: true}).State(end, grace))
}

func TestCancellationKeepsPaidPeriod(t *testing.T) {
	sub := &VipSubscription{}
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, sub.Activate(VipPlanQuarterly, PaymentMethodApple, now))
	end := *sub.EndDate

	sub.SetAutoRenew(false)

	assert.False(t, sub.AutoRenew)
	assert.True(t, sub.IsActive)
	assert.Equal(t, end, *sub.EndDate)
}

func TestExpireIsIdempotent(t *testing.T) {
	sub := &VipSubscription{}
	assert.NoError(t, sub.Activate(VipPlanMonthly, PaymentMethodApple, time.Now()))

	assert.True(t, sub.Expire())
	assert.False(t, sub.IsActive)
	assert.Equal(t, VipPlanNone, sub.Plan)
	assert.False(t, sub.AutoRenew)

	assert.False(t, sub.Expire())
}

func TestHasTransaction(t *testing.T) {
	sub := &VipSubscription{
		Transactions: []*VipTransaction{
			{TransactionId: "1000000123"},
		},
	}
	assert.True(t, sub.HasTransaction("1000000123"))
	assert.False(t, sub.HasTransaction("1000000999"))
}
