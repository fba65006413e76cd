// FILE: internal/repository/contract/user_repository.go
package contract

import (
	"context"

	"lingua-exchange-be/internal/entity"
	"lingua-exchange-be/internal/repository/specification"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	Update(ctx context.Context, user *entity.User) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.User, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)

	// FindByTransactionId resolves the owner of a platform transaction by
	// matching against the VIP transaction ledger. Webhooks only know the
	// transaction, never the local user id.
	FindByTransactionId(ctx context.Context, transactionId string) (*entity.User, error)
}
