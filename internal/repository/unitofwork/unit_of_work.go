package unitofwork

import (
	"context"

	"lingua-exchange-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	VipRepository() contract.VipRepository
}
