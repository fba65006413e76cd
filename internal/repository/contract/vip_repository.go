// FILE: internal/repository/contract/vip_repository.go
package contract

import (
	"context"

	"lingua-exchange-be/internal/entity"
	"lingua-exchange-be/internal/repository/specification"

	"github.com/google/uuid"
)

type VipRepository interface {
	CreateSubscription(ctx context.Context, sub *entity.VipSubscription) error
	UpdateSubscription(ctx context.Context, sub *entity.VipSubscription) error
	FindOneSubscription(ctx context.Context, specs ...specification.Specification) (*entity.VipSubscription, error)
	FindAllSubscriptions(ctx context.Context, specs ...specification.Specification) ([]*entity.VipSubscription, error)

	// AppendTransaction is the ledger gate: under a row lock on the owning
	// subscription it appends the transaction unless one with the same
	// transaction id already exists. Every credited purchase, whether from
	// direct verification or a webhook, passes through here exactly once.
	AppendTransaction(ctx context.Context, subscriptionId uuid.UUID, txn *entity.VipTransaction) (bool, error)

	ListTransactions(ctx context.Context, subscriptionId uuid.UUID) ([]*entity.VipTransaction, error)
}
