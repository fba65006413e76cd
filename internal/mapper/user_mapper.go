// FILE: internal/mapper/user_mapper.go
package mapper

import (
	"lingua-exchange-be/internal/entity"
	"lingua-exchange-be/internal/model"
)

type UserMapper struct {
	vipMapper *VipMapper
}

func NewUserMapper() *UserMapper {
	return &UserMapper{vipMapper: NewVipMapper()}
}

func (m *UserMapper) ToEntity(u *model.User) *entity.User {
	if u == nil {
		return nil
	}
	return &entity.User{
		Id:               u.Id,
		Email:            u.Email,
		FullName:         u.FullName,
		Role:             entity.UserRole(u.Role),
		Status:           entity.UserStatus(u.Status),
		NativeLanguage:   u.NativeLanguage,
		LearningLanguage: u.LearningLanguage,
		AvatarURL:        u.AvatarURL,
		DeviceToken:      u.DeviceToken,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
		Vip:              m.vipMapper.SubscriptionToEntity(u.Vip),
	}
}

func (m *UserMapper) ToModel(u *entity.User) *model.User {
	if u == nil {
		return nil
	}
	return &model.User{
		Id:               u.Id,
		Email:            u.Email,
		FullName:         u.FullName,
		Role:             string(u.Role),
		Status:           string(u.Status),
		NativeLanguage:   u.NativeLanguage,
		LearningLanguage: u.LearningLanguage,
		AvatarURL:        u.AvatarURL,
		DeviceToken:      u.DeviceToken,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
		Vip:              m.vipMapper.SubscriptionToModel(u.Vip),
	}
}

func (m *UserMapper) ToEntities(users []*model.User) []*entity.User {
	entities := make([]*entity.User, len(users))
	for i, u := range users {
		entities[i] = m.ToEntity(u)
	}
	return entities
}
