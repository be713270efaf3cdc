package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the local mirror of a platform account plus the referral ledger
// fields owned by this service. The ID is the profile service's UUID;
// rows are created by the profile sync worker (or lazily on first sign-in),
// never deleted.
type User struct {
	ID       string `gorm:"primaryKey" json:"id"` // external profile-service UUID
	Username string `gorm:"index" json:"username"`

	// Referral attribution. ReferredBy is set at most once and never
	// overwritten; a user can never refer themselves.
	ReferralCode *string `gorm:"uniqueIndex" json:"referral_code,omitempty"`
	ReferredBy   *string `gorm:"index" json:"referred_by,omitempty"`

	// Monotonic counters. ReferralCountValid <= ReferralCount always holds:
	// valid is bumped exactly once per relationship, at validation time.
	ReferralCount      int64 `gorm:"default:0" json:"referral_count"`
	ReferralCountValid int64 `gorm:"default:0" json:"referral_count_valid"`

	// ReferralBalance accumulates pending rewards until a settlement sweep;
	// WalletBalance is the withdrawable main balance.
	ReferralBalance float64 `gorm:"default:0" json:"referral_balance"`
	WalletBalance   float64 `gorm:"default:0" json:"wallet_balance"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
