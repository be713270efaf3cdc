package models

import "time"

// Referral statuses. A relationship is created as pending and moves to valid
// at most once, when the referred user completes a qualifying payment. There
// is no rejected/expired state and no way back.
const (
	ReferralStatusPending = "pending"
	ReferralStatusValid   = "valid"
)

// Referral tracks one referrer→referred edge. The primary key is derived from
// both user ids (see ReferralID), so there can only ever be one row per pair
// and "does this edge exist" is a point lookup.
type Referral struct {
	ID             string `gorm:"primaryKey" json:"id"`
	ReferrerID     string `gorm:"index;not null" json:"referrer_id"`
	ReferredUserID string `gorm:"uniqueIndex;not null" json:"referred_user_id"`

	Status         string     `gorm:"type:varchar(16);default:'pending'" json:"status"`
	TournamentType string     `json:"tournament_type,omitempty"` // qualifying tournament, recorded at validation
	ValidatedAt    *time.Time `json:"validated_at,omitempty"`

	Timestamps
}

// ReferralID derives the deterministic relationship key for a pair of users.
func ReferralID(referrerID, referredUserID string) string {
	return referrerID + "_" + referredUserID
}

// ReferralCode maps an issued share code back to its owning user. A code is
// issued once, lazily, and is permanently bound to that user.
type ReferralCode struct {
	Code      string    `gorm:"primaryKey" json:"code"` // stored upper-case
	UserID    string    `gorm:"uniqueIndex;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
