// services/settlement_service.go
package services

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"tournament-rewards-system/models"
	"tournament-rewards-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PayoutFloor is the minimum referral balance that sweeps to the wallet at
// settlement. Anything below it forfeits.
const PayoutFloor = 10.0

// SettlementSummary is the record of one settlement run.
type SettlementSummary struct {
	RunID          string    `json:"run_id"`
	TournamentType string    `json:"tournament_type"`
	UsersProcessed int       `json:"users_processed"`
	UsersPaidOut   int       `json:"users_paid_out"`
	UsersForfeited int       `json:"users_forfeited"`
	TotalPaidOut   float64   `json:"total_paid_out"`
	TotalForfeited float64   `json:"total_forfeited"`
	Success        bool      `json:"success"`
	Message        string    `json:"message,omitempty"`
	RanAt          time.Time `json:"ran_at"`
}

type SettlementService struct {
	DB *gorm.DB
}

func NewSettlementService(db *gorm.DB) *SettlementService {
	return &SettlementService{DB: db}
}

// Settle runs a settlement for one tournament type in its own transaction.
// Failures come back in the summary, never as a panic or an error return.
func (s *SettlementService) Settle(tournamentType string) SettlementSummary {
	summary := SettlementSummary{
		RunID:          uuid.NewString(),
		TournamentType: tournamentType,
		RanAt:          time.Now(),
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		result, err := s.sweep(tx, tournamentType)
		if err != nil {
			return err
		}
		summary.UsersProcessed = result.UsersProcessed
		summary.UsersPaidOut = result.UsersPaidOut
		summary.UsersForfeited = result.UsersForfeited
		summary.TotalPaidOut = result.TotalPaidOut
		summary.TotalForfeited = result.TotalForfeited
		return nil
	})
	if err != nil {
		log.Printf("❌ Settlement %s (%s) failed: %v", summary.RunID, tournamentType, err)
		summary.Success = false
		summary.Message = err.Error()
		return summary
	}

	summary.Success = true
	log.Printf("✅ Settlement %s (%s): %d processed, %d paid %.2f, %d forfeited %.2f",
		summary.RunID, tournamentType, summary.UsersProcessed,
		summary.UsersPaidOut, summary.TotalPaidOut,
		summary.UsersForfeited, summary.TotalForfeited)
	return summary
}

// SettleInBatch runs the sweep inside a transaction the caller owns. The
// caller decides what else commits or rolls back with it, so errors
// propagate instead of being folded into the summary.
func (s *SettlementService) SettleInBatch(tx *gorm.DB, tournamentType string) (SettlementSummary, error) {
	summary := SettlementSummary{
		RunID:          uuid.NewString(),
		TournamentType: tournamentType,
		RanAt:          time.Now(),
	}

	result, err := s.sweep(tx, tournamentType)
	if err != nil {
		return summary, err
	}

	summary.UsersProcessed = result.UsersProcessed
	summary.UsersPaidOut = result.UsersPaidOut
	summary.UsersForfeited = result.UsersForfeited
	summary.TotalPaidOut = result.TotalPaidOut
	summary.TotalForfeited = result.TotalForfeited
	summary.Success = true
	return summary, nil
}

type sweepResult struct {
	UsersProcessed int
	UsersPaidOut   int
	UsersForfeited int
	TotalPaidOut   float64
	TotalForfeited float64
}

func (s *SettlementService) sweep(tx *gorm.DB, tournamentType string) (sweepResult, error) {
	var result sweepResult

	var eligible []models.User
	if err := tx.Where("referral_balance > 0").Find(&eligible).Error; err != nil {
		return result, fmt.Errorf("failed to load eligible users: %w", err)
	}
	if len(eligible) == 0 {
		return result, nil
	}

	for _, user := range eligible {
		if err := s.settleUser(tx, user, tournamentType, &result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// settleUser sweeps one user. Both updates are guarded on the balance that
// was read: RowsAffected == 0 means a concurrent run already swept this user
// and the row is skipped without touching it.
func (s *SettlementService) settleUser(tx *gorm.DB, user models.User, tournamentType string, result *sweepResult) error {
	balance := user.ReferralBalance

	if balance >= PayoutFloor {
		res := tx.Model(&models.User{}).
			Where("id = ? AND referral_balance = ?", user.ID, balance).
			UpdateColumns(map[string]interface{}{
				"wallet_balance":   gorm.Expr("wallet_balance + ?", balance),
				"referral_balance": 0,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to sweep balance for %s: %w", user.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		txn := models.Transaction{
			ID:       uuid.NewString(),
			UserID:   user.ID,
			Amount:   balance,
			Currency: RewardCurrency,
			Type:     models.TransactionTypeReferralPayout,
			Note:     fmt.Sprintf("Referral payout, %s tournament settlement", tournamentType),
			Status:   models.TransactionStatusCompleted,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return fmt.Errorf("failed to record payout for %s: %w", user.ID, err)
		}

		result.UsersProcessed++
		result.UsersPaidOut++
		result.TotalPaidOut += balance
		return nil
	}

	res := tx.Model(&models.User{}).
		Where("id = ? AND referral_balance = ?", user.ID, balance).
		UpdateColumn("referral_balance", 0)
	if res.Error != nil {
		return fmt.Errorf("failed to forfeit balance for %s: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}

	result.UsersProcessed++
	result.UsersForfeited++
	result.TotalForfeited += balance
	return nil
}

// ArchiveReport pushes the settlement summary to R2 for audit. Best effort:
// a missing or failing archive never fails the settlement itself.
func (s *SettlementService) ArchiveReport(summary SettlementSummary) {
	if !utils.R2Enabled() {
		return
	}

	key := fmt.Sprintf("settlements/%s/%s.json", summary.TournamentType, summary.RunID)
	url, err := utils.UploadJSONToR2(key, summary)
	if err != nil {
		log.Printf("⚠️ Failed to archive settlement report %s: %v", summary.RunID, err)
		return
	}
	log.Printf("📦 Archived settlement report: %s", url)
}

// --- HTTP handlers ---

// RunSettlementEndpoint triggers a settlement run for one tournament type
func (s *SettlementService) RunSettlementEndpoint(c *fiber.Ctx) error {
	tournamentType := c.Params("type")
	if tournamentType != models.TournamentTypeMini && tournamentType != models.TournamentTypeGrand {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type must be 'mini' or 'grand'"})
	}

	summary := s.Settle(tournamentType)
	if !summary.Success {
		return c.Status(fiber.StatusBadGateway).JSON(summary)
	}

	go s.ArchiveReport(summary)
	return c.JSON(summary)
}

// GetTransactionsEndpoint returns the authenticated user's payout history
func (s *SettlementService) GetTransactionsEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var txns []models.Transaction
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&txns).Error; err != nil {
		log.Printf("DB error fetching transactions for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch transactions"})
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return c.JSON(txns)
}
