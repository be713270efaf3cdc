package services

import (
	"testing"
	"time"

	"tournament-rewards-system/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func createTournament(t *testing.T, svc *TournamentService, name, typ, status string, end time.Time) models.Tournament {
	t.Helper()

	tournament := models.Tournament{
		ID:      uuid.NewString(),
		Name:    name,
		Slug:    svc.uniqueSlug(name),
		Type:    typ,
		Status:  status,
		EndTime: end,
	}
	require.NoError(t, svc.DB.Create(&tournament).Error)
	return tournament
}

func TestUniqueSlugAvoidsCollisions(t *testing.T) {
	db := newTestDB(t)
	svc := NewTournamentService(db)

	first := createTournament(t, svc, "Friday Night Cup", models.TournamentTypeMini, "draft", time.Time{})
	second := createTournament(t, svc, "Friday Night Cup", models.TournamentTypeMini, "draft", time.Time{})

	require.Equal(t, "friday-night-cup", first.Slug)
	require.Equal(t, "friday-night-cup-2", second.Slug)
}

func TestEndDueTournaments(t *testing.T) {
	db := newTestDB(t)
	svc := NewTournamentService(db)
	now := time.Now()

	past := createTournament(t, svc, "Past Cup", models.TournamentTypeMini, "live", now.Add(-time.Hour))
	createTournament(t, svc, "Future Cup", models.TournamentTypeMini, "live", now.Add(time.Hour))
	createTournament(t, svc, "Open Ended", models.TournamentTypeGrand, "published", time.Time{})

	ended, err := svc.EndDueTournaments(now)
	require.NoError(t, err)
	require.Len(t, ended, 1)
	require.Equal(t, past.ID, ended[0].ID)

	var reloaded models.Tournament
	require.NoError(t, db.First(&reloaded, "id = ?", past.ID).Error)
	require.Equal(t, "ended", reloaded.Status)
}

func TestUnsettledEndedAndMarkSettled(t *testing.T) {
	db := newTestDB(t)
	svc := NewTournamentService(db)

	ended := createTournament(t, svc, "Done Cup", models.TournamentTypeGrand, "ended", time.Time{})
	createTournament(t, svc, "Live Cup", models.TournamentTypeMini, "live", time.Time{})

	pending, err := svc.UnsettledEnded()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, ended.ID, pending[0].ID)

	require.NoError(t, svc.MarkSettled(ended.ID, time.Now()))

	pending, err = svc.UnsettledEnded()
	require.NoError(t, err)
	require.Empty(t, pending)

	var reloaded models.Tournament
	require.NoError(t, db.First(&reloaded, "id = ?", ended.ID).Error)
	require.Equal(t, "settled", reloaded.Status)
	require.NotNil(t, reloaded.SettledAt)
}
