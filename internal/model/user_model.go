// FILE: internal/model/user_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email            string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	FullName         string    `gorm:"type:varchar(255);not null"`
	Role             string    `gorm:"type:varchar(50);not null;default:'user'"`
	Status           string    `gorm:"type:varchar(50);not null;default:'pending'"`
	NativeLanguage   string    `gorm:"type:varchar(50)"`
	LearningLanguage string    `gorm:"type:varchar(50)"`
	AvatarURL        *string   `gorm:"type:text"`
	DeviceToken      *string   `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
	DeletedAt        gorm.DeletedAt `gorm:"index"`

	Vip *VipSubscription `gorm:"foreignKey:UserId"`
}

func (User) TableName() string {
	return "users"
}
