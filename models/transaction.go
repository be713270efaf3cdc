package models

import "time"

// TransactionType tags what produced a ledger entry
type TransactionType string

const (
	TransactionTypeReferralPayout TransactionType = "referral_payout"
)

// TransactionStatus indicates the state of a ledger entry
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Transaction is an append-only ledger entry written when funds move into a
// user's wallet balance. Rows are never updated or deleted after creation.
type Transaction struct {
	ID        string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string            `gorm:"index;not null" json:"user_id"`
	Amount    float64           `gorm:"not null" json:"amount"`
	Currency  string            `gorm:"size:16;not null" json:"currency"` // e.g., "USDC"
	Type      TransactionType   `gorm:"not null;index" json:"type"`
	Note      string            `json:"note,omitempty"`
	Status    TransactionStatus `gorm:"not null" json:"status"`
	CreatedAt time.Time         `json:"created_at" gorm:"autoCreateTime"`
}
