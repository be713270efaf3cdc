// services/referral_processing.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"tournament-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	// ReferralReward is credited to the referrer when a referral validates.
	ReferralReward = 1.0

	// RewardCurrency is the settlement currency for all referral payouts.
	RewardCurrency = "USDC"
)

// ValidationOutcome tells the caller what a ValidateReferral call did.
type ValidationOutcome string

const (
	OutcomeNoReferral       ValidationOutcome = "no_referral"
	OutcomeAlreadyProcessed ValidationOutcome = "already_processed"
	OutcomeCredited         ValidationOutcome = "credited"
)

// PaymentReferralResult reports how a verified payment affected the
// referral ledger.
type PaymentReferralResult struct {
	Processed  bool    `json:"processed"`
	Message    string  `json:"message"`
	ReferrerID string  `json:"referrer_id,omitempty"`
	Reward     float64 `json:"reward,omitempty"`
}

// ReferralProcessingService turns verified payments into referral credits.
type ReferralProcessingService struct {
	DB *gorm.DB
}

func NewReferralProcessingService(db *gorm.DB) *ReferralProcessingService {
	return &ReferralProcessingService{DB: db}
}

var errAlreadyValidated = errors.New("referral already validated")

// ValidateReferral flips a pending referral to valid and credits the
// referrer's balance in the same unit of work. Safe to call repeatedly for
// the same edge: the credit lands exactly once.
func (s *ReferralProcessingService) ValidateReferral(referrerID, referredUserID, tournamentType string) (ValidationOutcome, error) {
	referralID := models.ReferralID(referrerID, referredUserID)

	var referral models.Referral
	if err := s.DB.First(&referral, "id = ?", referralID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OutcomeNoReferral, nil
		}
		return "", fmt.Errorf("failed to load referral %s: %w", referralID, err)
	}
	if referral.Status == models.ReferralStatusValid {
		return OutcomeAlreadyProcessed, nil
	}

	now := time.Now()
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Guarded flip: only the caller that moves pending→valid gets to
		// credit. RowsAffected == 0 means someone else already did.
		res := tx.Model(&models.Referral{}).
			Where("id = ? AND status = ?", referralID, models.ReferralStatusPending).
			Updates(map[string]interface{}{
				"status":          models.ReferralStatusValid,
				"validated_at":    now,
				"tournament_type": tournamentType,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errAlreadyValidated
		}

		return tx.Model(&models.User{}).Where("id = ?", referrerID).
			UpdateColumns(map[string]interface{}{
				"referral_balance":     gorm.Expr("referral_balance + ?", ReferralReward),
				"referral_count_valid": gorm.Expr("referral_count_valid + 1"),
			}).Error
	})
	if err != nil {
		if errors.Is(err, errAlreadyValidated) {
			return OutcomeAlreadyProcessed, nil
		}
		return "", fmt.Errorf("failed to validate referral %s: %w", referralID, err)
	}

	return OutcomeCredited, nil
}

// ProcessVerifiedPayment is the entry point for a payment that has cleared
// on-chain verification. If the payer was referred, their referral validates.
func (s *ReferralProcessingService) ProcessVerifiedPayment(payerID, itemType, tournamentType string) (PaymentReferralResult, error) {
	var payer models.User
	if err := s.DB.First(&payer, "id = ?", payerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PaymentReferralResult{Message: "payer not found"}, nil
		}
		return PaymentReferralResult{}, fmt.Errorf("failed to load payer %s: %w", payerID, err)
	}

	if payer.ReferredBy == nil || *payer.ReferredBy == "" {
		return PaymentReferralResult{Message: "payer has no referrer"}, nil
	}
	referrerID := *payer.ReferredBy

	outcome, err := s.ValidateReferral(referrerID, payerID, tournamentType)
	if err != nil {
		return PaymentReferralResult{}, err
	}

	switch outcome {
	case OutcomeCredited:
		log.Printf("💰 Referral credit: %s earned %.2f %s (referred %s, %s / %s)",
			referrerID, ReferralReward, RewardCurrency, payerID, itemType, tournamentType)
		return PaymentReferralResult{
			Processed:  true,
			Message:    "referral validated and credited",
			ReferrerID: referrerID,
			Reward:     ReferralReward,
		}, nil
	case OutcomeAlreadyProcessed:
		return PaymentReferralResult{Message: "referral already processed", ReferrerID: referrerID}, nil
	default:
		return PaymentReferralResult{Message: "no referral record for payer"}, nil
	}
}

// VerifiedPaymentEndpoint receives payment-verified events from the payment
// gateway
func (s *ReferralProcessingService) VerifiedPaymentEndpoint(c *fiber.Ctx) error {
	var req struct {
		UserID         string  `json:"user_id" validate:"required"`
		ItemType       string  `json:"item_type"`
		TournamentType string  `json:"tournament_type"`
		Amount         float64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	result, err := s.ProcessVerifiedPayment(req.UserID, req.ItemType, req.TournamentType)
	if err != nil {
		log.Printf("DB error processing verified payment for %s: %v", req.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to process payment event"})
	}
	return c.JSON(result)
}
