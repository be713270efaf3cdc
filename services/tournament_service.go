// services/tournament_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"tournament-rewards-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type TournamentService struct {
	DB *gorm.DB
}

func NewTournamentService(db *gorm.DB) *TournamentService {
	return &TournamentService{DB: db}
}

// CreateTournament creates a draft tournament
func (s *TournamentService) CreateTournament(c *fiber.Ctx) error {
	var req struct {
		Name      string  `json:"name" validate:"required"`
		Type      string  `json:"type" validate:"required"`
		EntryFee  float64 `json:"entry_fee"`
		PrizePool string  `json:"prize_pool"`
		StartTime string  `json:"start_time"`
		EndTime   string  `json:"end_time"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	if req.Type != models.TournamentTypeMini && req.Type != models.TournamentTypeGrand {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type must be 'mini' or 'grand'"})
	}

	var startTime, endTime time.Time
	var err error
	if req.StartTime != "" {
		if startTime, err = time.Parse(time.RFC3339, req.StartTime); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_time must be RFC3339"})
		}
	}
	if req.EndTime != "" {
		if endTime, err = time.Parse(time.RFC3339, req.EndTime); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_time must be RFC3339"})
		}
	}
	if !startTime.IsZero() && !endTime.IsZero() && !endTime.After(startTime) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_time must be after start_time"})
	}

	tournament := models.Tournament{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Slug:      s.uniqueSlug(req.Name),
		Type:      req.Type,
		EntryFee:  req.EntryFee,
		PrizePool: req.PrizePool,
		Status:    "draft",
		StartTime: startTime,
		EndTime:   endTime,
	}
	if err := s.DB.Create(&tournament).Error; err != nil {
		log.Printf("DB error creating tournament: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create tournament"})
	}

	log.Printf("🏆 Created tournament %s (%s, %s)", tournament.Name, tournament.Type, tournament.ID)
	return c.Status(fiber.StatusCreated).JSON(tournament)
}

func (s *TournamentService) uniqueSlug(name string) string {
	base := slug.Make(name)
	candidate := base
	for i := 2; ; i++ {
		var count int64
		s.DB.Model(&models.Tournament{}).Where("slug = ?", candidate).Count(&count)
		if count == 0 {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// GetPublishedTournaments lists tournaments visible to players
func (s *TournamentService) GetPublishedTournaments(c *fiber.Ctx) error {
	var tournaments []models.Tournament
	if err := s.DB.Where("status IN ?", []string{"published", "live"}).
		Order("start_time ASC").Find(&tournaments).Error; err != nil {
		log.Printf("DB error listing tournaments: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list tournaments"})
	}
	if tournaments == nil {
		tournaments = []models.Tournament{}
	}
	return c.JSON(tournaments)
}

// GetTournamentByID returns one tournament
func (s *TournamentService) GetTournamentByID(c *fiber.Ctx) error {
	id := c.Params("id")

	var tournament models.Tournament
	if err := s.DB.First(&tournament, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "tournament not found"})
		}
		log.Printf("DB error fetching tournament %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch tournament"})
	}
	return c.JSON(tournament)
}

// UpdateTournamentStatus moves a tournament through draft→published→live→ended
func (s *TournamentService) UpdateTournamentStatus(c *fiber.Ctx) error {
	id := c.Params("id")

	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	allowed := map[string]bool{"draft": true, "published": true, "live": true, "ended": true}
	if !allowed[req.Status] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "status must be draft, published, live or ended"})
	}

	var tournament models.Tournament
	if err := s.DB.First(&tournament, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "tournament not found"})
		}
		log.Printf("DB error fetching tournament %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch tournament"})
	}
	if tournament.Status == "settled" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "tournament is already settled"})
	}

	tournament.Status = req.Status
	if err := s.DB.Save(&tournament).Error; err != nil {
		log.Printf("DB error updating tournament %s: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update tournament"})
	}

	log.Printf("🏆 Tournament %s is now %s", tournament.Name, tournament.Status)
	return c.JSON(tournament)
}

// EndDueTournaments flips running tournaments whose end time has passed to
// "ended" and returns them so the caller can settle.
func (s *TournamentService) EndDueTournaments(now time.Time) ([]models.Tournament, error) {
	var due []models.Tournament
	if err := s.DB.Where("status IN ? AND end_time <= ? AND end_time > ?",
		[]string{"published", "live"}, now, time.Time{}).Find(&due).Error; err != nil {
		return nil, fmt.Errorf("failed to find due tournaments: %w", err)
	}

	for i := range due {
		due[i].Status = "ended"
		if err := s.DB.Save(&due[i]).Error; err != nil {
			return nil, fmt.Errorf("failed to end tournament %s: %w", due[i].ID, err)
		}
		log.Printf("🏁 Tournament %s ended", due[i].Name)
	}
	return due, nil
}

// UnsettledEnded returns ended tournaments that have not been settled yet.
func (s *TournamentService) UnsettledEnded() ([]models.Tournament, error) {
	var tournaments []models.Tournament
	if err := s.DB.Where("status = ? AND settled_at IS NULL", "ended").
		Find(&tournaments).Error; err != nil {
		return nil, fmt.Errorf("failed to find unsettled tournaments: %w", err)
	}
	return tournaments, nil
}

// MarkSettled stamps a tournament as settled.
func (s *TournamentService) MarkSettled(tournamentID string, at time.Time) error {
	if err := s.DB.Model(&models.Tournament{}).Where("id = ?", tournamentID).
		Updates(map[string]interface{}{"status": "settled", "settled_at": at}).Error; err != nil {
		return fmt.Errorf("failed to mark tournament %s settled: %w", tournamentID, err)
	}
	return nil
}
