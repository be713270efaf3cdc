// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartSettlementScheduler runs the tournament lifecycle loop. All
// settlements go through this single scheduler, so runs never overlap.
func StartSettlementScheduler(tournaments *TournamentService, settlements *SettlementService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: end due tournaments and settle what ended
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			now := time.Now()

			if _, err := tournaments.EndDueTournaments(now); err != nil {
				log.Printf("[Scheduler] Failed to end due tournaments: %v", err)
			}

			pending, err := tournaments.UnsettledEnded()
			if err != nil {
				log.Printf("[Scheduler] DB error: %v", err)
				return
			}

			for _, t := range pending {
				summary := settlements.Settle(t.Type)
				if !summary.Success {
					log.Printf("[Scheduler] Settlement for tournament %s failed: %s", t.ID, summary.Message)
					continue
				}
				if err := tournaments.MarkSettled(t.ID, summary.RanAt); err != nil {
					log.Printf("[Scheduler] Failed to mark tournament %s settled: %v", t.ID, err)
					continue
				}
				settlements.ArchiveReport(summary)
				log.Printf("✅ Auto-settled tournament: %s (%s)", t.Name, t.Type)
			}
		}),
	)
}
