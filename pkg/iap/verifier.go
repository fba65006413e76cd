package iap

import (
	"context"
	"time"
)

const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
)

// VerifiedPurchase is the normalized result both platform verifiers produce.
// OriginalTransactionID is the platform's stable identifier across renewals
// and is what the transaction ledger matches webhook events against.
type VerifiedPurchase struct {
	Platform              string
	ProductID             string
	TransactionID         string
	OriginalTransactionID string
	PurchaseDate          time.Time
	ExpiresAt             *time.Time
}

// Hint narrows which purchase record to select when a proof covers several
// (Apple legacy receipts carry the whole history).
type Hint struct {
	ProductID     string
	TransactionID string
}

// Verifier validates a client-submitted purchase proof against its platform.
// Implementations block on network round-trips; callers own timeout policy
// through ctx.
type Verifier interface {
	Platform() string
	Verify(ctx context.Context, proof string, hint Hint) (*VerifiedPurchase, error)
}
