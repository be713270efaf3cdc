// services/referral_service.go
package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"tournament-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	// ReferralCodeLength is the fixed length of share codes.
	ReferralCodeLength = 8

	// referralCodeAlphabet is upper-case alphanumerics minus the visually
	// ambiguous characters (0/O, 1/I/L).
	referralCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

	// maxCodeAttempts bounds the draw-and-check loop; with a 31^8 keyspace
	// hitting it means something is badly wrong with the codes table.
	maxCodeAttempts = 50
)

// Lookup failures surfaced by the code registry.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrCodeNotFound = errors.New("referral code not found")
)

// Rejection reasons for applying a referral code. These are expected,
// user-triggerable outcomes and travel in the result value, never as errors.
const (
	RejectInvalidCode     = "invalid_code"
	RejectSelfReferral    = "self_referral"
	RejectAlreadyReferred = "already_referred"
	RejectUserNotFound    = "user_not_found"
)

// ApplyReferralResult reports the outcome of applying a code during sign-up.
type ApplyReferralResult struct {
	Success    bool   `json:"success"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message"`
	ReferrerID string `json:"referrer_id,omitempty"`
	ReferralID string `json:"referral_id,omitempty"`
}

// ReferralStats is the read-side projection for a user's referral standing.
type ReferralStats struct {
	UserID             string  `json:"user_id"`
	ReferralCode       string  `json:"referral_code,omitempty"`
	ReferralCount      int64   `json:"referral_count"`
	ReferralCountValid int64   `json:"referral_count_valid"`
	ReferralBalance    float64 `json:"referral_balance"`
	WalletBalance      float64 `json:"wallet_balance"`
}

// ReferralListEntry is one row of a referrer's referral history.
type ReferralListEntry struct {
	ReferralID       string     `json:"referral_id"`
	ReferredUserID   string     `json:"referred_user_id"`
	ReferredUsername string     `json:"referred_username"`
	Status           string     `json:"status"`
	TournamentType   string     `json:"tournament_type,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ValidatedAt      *time.Time `json:"validated_at,omitempty"`
}

type ReferralService struct {
	DB *gorm.DB
}

func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{DB: db}
}

// GenerateCode returns the user's share code, creating one on first request.
// Idempotent: a user who already has a code gets it back unchanged. Returns
// whether the code was newly created.
func (s *ReferralService) GenerateCode(userID string) (string, bool, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, ErrUserNotFound
		}
		return "", false, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	if user.ReferralCode != nil && *user.ReferralCode != "" {
		return *user.ReferralCode, false, nil
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		candidate, err := randomCode()
		if err != nil {
			return "", false, err
		}

		var count int64
		if err := s.DB.Model(&models.ReferralCode{}).Where("code = ?", candidate).Count(&count).Error; err != nil {
			return "", false, fmt.Errorf("code uniqueness check failed: %w", err)
		}
		if count > 0 {
			continue
		}

		// Claim the code: write it onto the user and create the registry row
		// as one unit. The unique index on referral_codes.code backstops the
		// (astronomically unlikely) concurrent identical draw.
		// UpdateColumn: updated_at belongs to the profile sync worker and
		// must not move on local referral writes.
		err = s.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).
				UpdateColumn("referral_code", candidate).Error; err != nil {
				return err
			}
			return tx.Create(&models.ReferralCode{Code: candidate, UserID: userID}).Error
		})
		if err != nil {
			return "", false, fmt.Errorf("failed to claim referral code: %w", err)
		}
		return candidate, true, nil
	}

	return "", false, fmt.Errorf("could not find a free referral code after %d attempts", maxCodeAttempts)
}

// ResolveCode returns the id of the user owning the given code.
// Codes compare case-insensitively.
func (s *ReferralService) ResolveCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return "", ErrCodeNotFound
	}

	var rec models.ReferralCode
	if err := s.DB.First(&rec, "code = ?", normalized).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrCodeNotFound
		}
		return "", fmt.Errorf("failed to resolve referral code: %w", err)
	}
	return rec.UserID, nil
}

// IsValidCode reports whether a code resolves to any user. Lookup failures
// of any kind read as false.
func (s *ReferralService) IsValidCode(code string) bool {
	_, err := s.ResolveCode(code)
	return err == nil
}

var errReferredByTaken = errors.New("referred_by already set")

// ApplyReferralCode records a referrer→referred edge during sign-up. Expected
// rejections (bad code, self-referral, already referred) come back in the
// result; only infrastructure failures produce an error.
func (s *ReferralService) ApplyReferralCode(code, newUserID string) (ApplyReferralResult, error) {
	referrerID, err := s.ResolveCode(code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return ApplyReferralResult{Reason: RejectInvalidCode, Message: "referral code is not valid"}, nil
		}
		return ApplyReferralResult{}, err
	}

	if referrerID == newUserID {
		return ApplyReferralResult{Reason: RejectSelfReferral, Message: "you cannot use your own referral code"}, nil
	}

	var newUser models.User
	if err := s.DB.First(&newUser, "id = ?", newUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ApplyReferralResult{Reason: RejectUserNotFound, Message: "user account not found"}, nil
		}
		return ApplyReferralResult{}, fmt.Errorf("failed to load user %s: %w", newUserID, err)
	}
	if newUser.ReferredBy != nil && *newUser.ReferredBy != "" {
		return ApplyReferralResult{Reason: RejectAlreadyReferred, Message: "a referral code was already applied to this account"}, nil
	}

	referral := models.Referral{
		ID:             models.ReferralID(referrerID, newUserID),
		ReferrerID:     referrerID,
		ReferredUserID: newUserID,
		Status:         models.ReferralStatusPending,
	}

	// One unit: set referred_by, bump the referrer's lifetime count, create
	// the pending edge. The guarded update keeps first-writer-wins under
	// concurrent applies for the same user.
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND referred_by IS NULL", newUserID).
			UpdateColumn("referred_by", referrerID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errReferredByTaken
		}

		if err := tx.Model(&models.User{}).Where("id = ?", referrerID).
			UpdateColumn("referral_count", gorm.Expr("referral_count + 1")).Error; err != nil {
			return err
		}

		return tx.Create(&referral).Error
	})
	if err != nil {
		if errors.Is(err, errReferredByTaken) {
			return ApplyReferralResult{Reason: RejectAlreadyReferred, Message: "a referral code was already applied to this account"}, nil
		}
		return ApplyReferralResult{}, fmt.Errorf("failed to record referral: %w", err)
	}

	return ApplyReferralResult{
		Success:    true,
		Message:    "referral recorded",
		ReferrerID: referrerID,
		ReferralID: referral.ID,
	}, nil
}

// GetReferralStats returns a best-effort snapshot of a user's referral
// standing. Read-only, safe to call arbitrarily often.
func (s *ReferralService) GetReferralStats(userID string) (*ReferralStats, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	stats := &ReferralStats{
		UserID:             user.ID,
		ReferralCount:      user.ReferralCount,
		ReferralCountValid: user.ReferralCountValid,
		ReferralBalance:    user.ReferralBalance,
		WalletBalance:      user.WalletBalance,
	}
	if user.ReferralCode != nil {
		stats.ReferralCode = *user.ReferralCode
	}
	return stats, nil
}

// GetReferralList returns the user's referrals, newest first, with the
// referred usernames joined in. The two tables are read without a snapshot,
// so the list is current-best-effort only.
func (s *ReferralService) GetReferralList(userID string, limit int) ([]ReferralListEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var entries []ReferralListEntry
	err := s.DB.Raw(`
        SELECT
            r.id AS referral_id,
            r.referred_user_id,
            COALESCE(u.username, '') AS referred_username,
            r.status,
            r.tournament_type,
            r.created_at,
            r.validated_at
        FROM referrals r
        LEFT JOIN users u ON u.id = r.referred_user_id
        WHERE r.referrer_id = ?
        ORDER BY r.created_at DESC
        LIMIT ?
    `, userID, limit).Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals for %s: %w", userID, err)
	}
	return entries, nil
}

func randomCode() (string, error) {
	// Rejection sampling: bytes at or above the largest multiple of the
	// alphabet size are redrawn, keeping every character equally likely.
	limit := byte(256 - 256%len(referralCodeAlphabet))

	code := make([]byte, 0, ReferralCodeLength)
	buf := make([]byte, ReferralCodeLength)
	for len(code) < ReferralCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, referralCodeAlphabet[int(b)%len(referralCodeAlphabet)])
			if len(code) == ReferralCodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// --- HTTP handlers ---

// GenerateCodeEndpoint issues (or returns) the authenticated user's code
func (s *ReferralService) GenerateCodeEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	code, created, err := s.GenerateCode(userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		log.Printf("DB error generating referral code for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to generate referral code"})
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"code": code, "created": created})
}

// ValidateCodeEndpoint lets the sign-up form pre-check a code
func (s *ReferralService) ValidateCodeEndpoint(c *fiber.Ctx) error {
	code := c.Params("code")
	return c.JSON(fiber.Map{"code": strings.ToUpper(code), "valid": s.IsValidCode(code)})
}

// ApplyCodeEndpoint applies a referral code to the authenticated user
func (s *ReferralService) ApplyCodeEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req struct {
		Code string `json:"code" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if strings.TrimSpace(req.Code) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "code is required"})
	}

	result, err := s.ApplyReferralCode(req.Code, userID)
	if err != nil {
		log.Printf("DB error applying referral code for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to apply referral code"})
	}
	if !result.Success {
		// Expected rejection — the UI branches on reason
		return c.Status(fiber.StatusUnprocessableEntity).JSON(result)
	}
	return c.JSON(result)
}

// StatsEndpoint returns referral stats for the authenticated user
func (s *ReferralService) StatsEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	stats, err := s.GetReferralStats(userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
		}
		log.Printf("DB error fetching referral stats for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch referral stats"})
	}
	return c.JSON(stats)
}

// ListEndpoint returns the authenticated user's referral history
func (s *ReferralService) ListEndpoint(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	entries, err := s.GetReferralList(userID, limit)
	if err != nil {
		log.Printf("DB error listing referrals for %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list referrals"})
	}
	if entries == nil {
		entries = []ReferralListEntry{}
	}
	return c.JSON(entries)
}
