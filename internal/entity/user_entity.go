// FILE: internal/entity/user_entity.go
package entity

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string
type UserStatus string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"

	UserStatusPending UserStatus = "pending"
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"
)

type User struct {
	Id               uuid.UUID
	Email            string
	FullName         string
	Role             UserRole
	Status           UserStatus
	NativeLanguage   string
	LearningLanguage string
	AvatarURL        *string
	DeviceToken      *string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	// One VIP subscription per user, created inactive with the account.
	Vip *VipSubscription
}
