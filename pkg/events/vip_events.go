package events

import (
	"time"

	"github.com/google/uuid"
)

// VIP lifecycle event codes published to the audit bus.
const (
	TypeVipActivated       = "VIP_ACTIVATED"
	TypeVipRenewed         = "VIP_RENEWED"
	TypeVipExpired         = "VIP_EXPIRED"
	TypeVipAutoRenewChange = "VIP_AUTO_RENEW_CHANGED"
)

func NewVipActivated(userId uuid.UUID, plan, platform, transactionId string, endDate time.Time) Event {
	return BaseEvent{
		Type: TypeVipActivated,
		Data: map[string]interface{}{
			"user_id":        userId.String(),
			"plan":           plan,
			"platform":       platform,
			"transaction_id": transactionId,
			"end_date":       endDate,
		},
		OccurredAt: time.Now(),
	}
}

func NewVipRenewed(userId uuid.UUID, plan, platform, transactionId string, endDate time.Time) Event {
	return BaseEvent{
		Type: TypeVipRenewed,
		Data: map[string]interface{}{
			"user_id":        userId.String(),
			"plan":           plan,
			"platform":       platform,
			"transaction_id": transactionId,
			"end_date":       endDate,
		},
		OccurredAt: time.Now(),
	}
}

func NewVipExpired(userId uuid.UUID, reason string) Event {
	return BaseEvent{
		Type: TypeVipExpired,
		Data: map[string]interface{}{
			"user_id": userId.String(),
			"reason":  reason,
		},
		OccurredAt: time.Now(),
	}
}

func NewVipAutoRenewChanged(userId uuid.UUID, autoRenew bool, source string) Event {
	return BaseEvent{
		Type: TypeVipAutoRenewChange,
		Data: map[string]interface{}{
			"user_id":    userId.String(),
			"auto_renew": autoRenew,
			"source":     source,
		},
		OccurredAt: time.Now(),
	}
}
