// FILE: internal/model/vip_subscription_model.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type VipSubscription struct {
	Id              uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	IsActive        bool       `gorm:"default:false;index"`
	Plan            string     `gorm:"type:varchar(50);not null;default:'none'"`
	StartDate       *time.Time
	EndDate         *time.Time `gorm:"index"`
	NextBillingDate *time.Time
	LastPaymentDate *time.Time
	AutoRenew       bool   `gorm:"default:false"`
	PaymentMethod   string `gorm:"type:varchar(50);not null;default:'none'"`

	Warned7Day          bool `gorm:"default:false"`
	Warned3Day          bool `gorm:"default:false"`
	Warned1Day          bool `gorm:"default:false"`
	GracePeriodNotified bool `gorm:"default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Transactions []*VipTransaction `gorm:"foreignKey:SubscriptionId"`
}

func (VipSubscription) TableName() string {
	return "vip_subscriptions"
}

type VipTransaction struct {
	Id                    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SubscriptionId        uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_vip_txn_dedupe,priority:1"`
	TransactionId         string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_vip_txn_dedupe,priority:2"`
	OriginalTransactionId string    `gorm:"type:varchar(255);index"`
	ProductId             string    `gorm:"type:varchar(255);not null"`
	Plan                  string    `gorm:"type:varchar(50);not null"`
	PurchaseDate          time.Time `gorm:"not null"`
	Type                  string    `gorm:"type:varchar(50);not null"`
	Platform              *string   `gorm:"type:varchar(20)"`
	CreatedAt             time.Time `gorm:"autoCreateTime"`
}

func (VipTransaction) TableName() string {
	return "vip_transactions"
}
