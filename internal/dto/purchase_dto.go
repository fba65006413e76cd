// FILE: internal/dto/purchase_dto.go
package dto

import (
	"time"

	"github.com/google/uuid"
)

// VerifyPurchaseRequest carries a client-submitted purchase proof. Proof is
// a base64 legacy receipt or StoreKit2 signed transaction for ios, and a
// Play purchase token for android.
type VerifyPurchaseRequest struct {
	Proof         string `json:"proof" validate:"required"`
	ProductId     string `json:"productId"`
	TransactionId string `json:"transactionId"`
}

type VipStatusResponse struct {
	Plan            string     `json:"plan"`
	State           string     `json:"state"`
	IsActive        bool       `json:"isActive"`
	AutoRenew       bool       `json:"autoRenew"`
	PaymentMethod   string     `json:"paymentMethod"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	EndDate         *time.Time `json:"endDate,omitempty"`
	NextBillingDate *time.Time `json:"nextBillingDate,omitempty"`
}

type VipTransactionResponse struct {
	Id            uuid.UUID `json:"id"`
	TransactionId string    `json:"transactionId"`
	ProductId     string    `json:"productId"`
	Plan          string    `json:"plan"`
	Type          string    `json:"type"`
	Platform      string    `json:"platform,omitempty"`
	PurchaseDate  time.Time `json:"purchaseDate"`
}
