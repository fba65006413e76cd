// FILE: internal/repository/implementation/vip_repository_impl.go
package implementation

import (
	"context"
	"errors"

	"lingua-exchange-be/internal/entity"
	"lingua-exchange-be/internal/mapper"
	"lingua-exchange-be/internal/model"
	"lingua-exchange-be/internal/repository/contract"
	"lingua-exchange-be/internal/repository/scope"
	"lingua-exchange-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VipRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.VipMapper
}

func NewVipRepository(db *gorm.DB) contract.VipRepository {
	return &VipRepositoryImpl{
		db:     db,
		mapper: mapper.NewVipMapper(),
	}
}

func (r *VipRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *VipRepositoryImpl) CreateSubscription(ctx context.Context, sub *entity.VipSubscription) error {
	m := r.mapper.SubscriptionToModel(sub)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*sub = *r.mapper.SubscriptionToEntity(m)
	return nil
}

func (r *VipRepositoryImpl) UpdateSubscription(ctx context.Context, sub *entity.VipSubscription) error {
	m := r.mapper.SubscriptionToModel(sub)
	// Save with explicit Select so cleared flags and nulled dates persist.
	if err := r.db.WithContext(ctx).Model(m).
		Select("IsActive", "Plan", "StartDate", "EndDate", "NextBillingDate",
			"LastPaymentDate", "AutoRenew", "PaymentMethod",
			"Warned7Day", "Warned3Day", "Warned1Day", "GracePeriodNotified").
		Updates(m).Error; err != nil {
		return err
	}
	return nil
}

func (r *VipRepositoryImpl) FindOneSubscription(ctx context.Context, specs ...specification.Specification) (*entity.VipSubscription, error) {
	var m model.VipSubscription
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	query = query.Preload("Transactions")
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.SubscriptionToEntity(&m), nil
}

func (r *VipRepositoryImpl) FindAllSubscriptions(ctx context.Context, specs ...specification.Specification) ([]*entity.VipSubscription, error) {
	var models []*model.VipSubscription
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.VipSubscription, len(models))
	for i, m := range models {
		entities[i] = r.mapper.SubscriptionToEntity(m)
	}
	return entities, nil
}

// AppendTransaction performs the check-then-append under a row lock on the
// subscription, so two concurrent deliveries of the same transaction cannot
// both pass the duplicate check. Callers run it inside a unit-of-work
// transaction; the unique index on (subscription_id, transaction_id) is the
// backstop.
func (r *VipRepositoryImpl) AppendTransaction(ctx context.Context, subscriptionId uuid.UUID, txn *entity.VipTransaction) (bool, error) {
	var sub model.VipSubscription
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&sub, "id = ?", subscriptionId).Error
	if err != nil {
		return false, err
	}

	var count int64
	err = r.db.WithContext(ctx).Model(&model.VipTransaction{}).
		Where("subscription_id = ? AND transaction_id = ?", subscriptionId, txn.TransactionId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	m := r.mapper.TransactionToModel(txn)
	m.SubscriptionId = subscriptionId
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return false, err
	}
	*txn = *r.mapper.TransactionToEntity(m)
	return true, nil
}

func (r *VipRepositoryImpl) ListTransactions(ctx context.Context, subscriptionId uuid.UUID) ([]*entity.VipTransaction, error) {
	var models []*model.VipTransaction
	err := r.db.WithContext(ctx).
		Scopes(scope.OrderByCreatedDesc).
		Where("subscription_id = ?", subscriptionId).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.TransactionsToEntities(models), nil
}
