package models

import "time"

// Tournament types — the closed set of qualifying tournament tags.
const (
	TournamentTypeMini  = "mini"
	TournamentTypeGrand = "grand"
)

// Tournament represents one score-based competition window. Settlement of
// referral balances happens at its end boundary.
type Tournament struct {
	ID        string  `json:"id" gorm:"primaryKey"`
	Name      string  `json:"name" gorm:"not null"`
	Slug      string  `json:"slug" gorm:"uniqueIndex"`
	Type      string  `json:"type" gorm:"type:varchar(16);not null;index"` // mini | grand
	EntryFee  float64 `json:"entry_fee" gorm:"default:0"`
	PrizePool string  `json:"prize_pool"`

	Status    string     `json:"status" gorm:"type:varchar(16);default:'draft'"` // draft → published → live → ended → settled
	StartTime time.Time  `json:"start_time" gorm:"not null"`
	EndTime   time.Time  `json:"end_time"`
	SettledAt *time.Time `json:"settled_at,omitempty"`

	Timestamps
}
