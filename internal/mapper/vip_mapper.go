// FILE: internal/mapper/vip_mapper.go
package mapper

import (
	"lingua-exchange-be/internal/entity"
	"lingua-exchange-be/internal/model"
)

type VipMapper struct{}

func NewVipMapper() *VipMapper {
	return &VipMapper{}
}

func (m *VipMapper) SubscriptionToEntity(s *model.VipSubscription) *entity.VipSubscription {
	if s == nil {
		return nil
	}
	return &entity.VipSubscription{
		Id:                  s.Id,
		UserId:              s.UserId,
		IsActive:            s.IsActive,
		Plan:                entity.VipPlan(s.Plan),
		StartDate:           s.StartDate,
		EndDate:             s.EndDate,
		NextBillingDate:     s.NextBillingDate,
		LastPaymentDate:     s.LastPaymentDate,
		AutoRenew:           s.AutoRenew,
		PaymentMethod:       entity.PaymentMethod(s.PaymentMethod),
		Warned7Day:          s.Warned7Day,
		Warned3Day:          s.Warned3Day,
		Warned1Day:          s.Warned1Day,
		GracePeriodNotified: s.GracePeriodNotified,
		Transactions:        m.TransactionsToEntities(s.Transactions),
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func (m *VipMapper) SubscriptionToModel(s *entity.VipSubscription) *model.VipSubscription {
	if s == nil {
		return nil
	}
	return &model.VipSubscription{
		Id:                  s.Id,
		UserId:              s.UserId,
		IsActive:            s.IsActive,
		Plan:                string(s.Plan),
		StartDate:           s.StartDate,
		EndDate:             s.EndDate,
		NextBillingDate:     s.NextBillingDate,
		LastPaymentDate:     s.LastPaymentDate,
		AutoRenew:           s.AutoRenew,
		PaymentMethod:       string(s.PaymentMethod),
		Warned7Day:          s.Warned7Day,
		Warned3Day:          s.Warned3Day,
		Warned1Day:          s.Warned1Day,
		GracePeriodNotified: s.GracePeriodNotified,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func (m *VipMapper) TransactionToEntity(t *model.VipTransaction) *entity.VipTransaction {
	if t == nil {
		return nil
	}
	var platform entity.PurchasePlatform
	if t.Platform != nil {
		platform = entity.PurchasePlatform(*t.Platform)
	}
	return &entity.VipTransaction{
		Id:                    t.Id,
		SubscriptionId:        t.SubscriptionId,
		TransactionId:         t.TransactionId,
		OriginalTransactionId: t.OriginalTransactionId,
		ProductId:             t.ProductId,
		Plan:                  entity.VipPlan(t.Plan),
		PurchaseDate:          t.PurchaseDate,
		Type:                  entity.TransactionType(t.Type),
		Platform:              platform,
		CreatedAt:             t.CreatedAt,
	}
}

func (m *VipMapper) TransactionToModel(t *entity.VipTransaction) *model.VipTransaction {
	if t == nil {
		return nil
	}
	var platform *string
	if t.Platform != "" {
		p := string(t.Platform)
		platform = &p
	}
	return &model.VipTransaction{
		Id:                    t.Id,
		SubscriptionId:        t.SubscriptionId,
		TransactionId:         t.TransactionId,
		OriginalTransactionId: t.OriginalTransactionId,
		ProductId:             t.ProductId,
		Plan:                  string(t.Plan),
		PurchaseDate:          t.PurchaseDate,
		Type:                  string(t.Type),
		Platform:              platform,
		CreatedAt:             t.CreatedAt,
	}
}

func (m *VipMapper) TransactionsToEntities(txns []*model.VipTransaction) []*entity.VipTransaction {
	if txns == nil {
		return nil
	}
	entities := make([]*entity.VipTransaction, len(txns))
	for i, t := range txns {
		entities[i] = m.TransactionToEntity(t)
	}
	return entities
}
