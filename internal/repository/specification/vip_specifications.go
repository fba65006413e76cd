package specification

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActiveExpiredBefore selects entitlements the enforcement sweep must look
// at: still flagged active but with an end date in the past.
type ActiveExpiredBefore struct {
	Now time.Time
}

func (s ActiveExpiredBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ? AND end_date IS NOT NULL AND end_date < ?", true, s.Now)
}

// ActiveExpiringBetween selects active entitlements whose end date falls in
// the window, for the pre-expiry warning sweep.
type ActiveExpiringBetween struct {
	From time.Time
	To   time.Time
}

func (s ActiveExpiringBetween) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ? AND end_date >= ? AND end_date < ?", true, s.From, s.To)
}

// WithUpdateLock takes a row lock so a sweep decision and a concurrent
// renewal cannot interleave on the same subscription.
type WithUpdateLock struct{}

func (s WithUpdateLock) Apply(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
