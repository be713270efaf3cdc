package services

import (
	"testing"

	"tournament-rewards-system/models"

	"github.com/stretchr/testify/require"
)

func TestValidateReferralCreditsExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	referrals := NewReferralService(db)
	processing := NewReferralProcessingService(db)
	createUser(t, db, "alice", "alice")
	createUser(t, db, "bob", "bob")

	code, _, err := referrals.GenerateCode("alice")
	require.NoError(t, err)
	_, err = referrals.ApplyReferralCode(code, "bob")
	require.NoError(t, err)

	outcome, err := processing.ValidateReferral("alice", "bob", models.TournamentTypeMini)
	require.NoError(t, err)
	require.Equal(t, OutcomeCredited, outcome)

	var alice models.User
	require.NoError(t, db.First(&alice, "id = ?", "alice").Error)
	require.Equal(t, ReferralReward, alice.ReferralBalance)
	require.EqualValues(t, 1, alice.ReferralCountValid)

	var referral models.Referral
	require.NoError(t, db.First(&referral, "id = ?", models.ReferralID("alice", "bob")).Error)
	require.Equal(t, models.ReferralStatusValid, referral.Status)
	require.NotNil(t, referral.ValidatedAt)
	require.Equal(t, models.TournamentTypeMini, referral.TournamentType)

	// Redelivery must not credit again
	outcome, err = processing.ValidateReferral("alice", "bob", models.TournamentTypeMini)
	require.NoError(t, err)
	require.Equal(t, OutcomeAlreadyProcessed, outcome)

	require.NoError(t, db.First(&alice, "id = ?", "alice").Error)
	require.Equal(t, ReferralReward, alice.ReferralBalance)
	require.EqualValues(t, 1, alice.ReferralCountValid)
}

func TestValidateReferralMissingEdge(t *testing.T) {
	db := newTestDB(t)
	processing := NewReferralProcessingService(db)
	createUser(t, db, "alice", "alice")
	createUser(t, db, "bob", "bob")

	outcome, err := processing.ValidateReferral("alice", "bob", models.TournamentTypeMini)
	require.NoError(t, err)
	require.Equal(t, OutcomeNoReferral, outcome)
}

func TestValidCountNeverExceedsTotalCount(t *testing.T) {
	db := newTestDB(t)
	referrals := NewReferralService(db)
	processing := NewReferralProcessingService(db)
	createUser(t, db, "alice", "alice")
	createUser(t, db, "bob", "bob")
	createUser(t, db, "carol", "carol")

	code, _, err := referrals.GenerateCode("alice")
	require.NoError(t, err)
	_, err = referrals.ApplyReferralCode(code, "bob")
	require.NoError(t, err)
	_, err = referrals.ApplyReferralCode(code, "carol")
	require.NoError(t, err)

	_, err = processing.ValidateReferral("alice", "bob", models.TournamentTypeGrand)
	require.NoError(t, err)

	var alice models.User
	require.NoError(t, db.First(&alice, "id = ?", "alice").Error)
	require.EqualValues(t, 2, alice.ReferralCount)
	require.EqualValues(t, 1, alice.ReferralCountValid)
	require.LessOrEqual(t, alice.ReferralCountValid, alice.ReferralCount)
}

func TestProcessVerifiedPaymentForReferredPayer(t *testing.T) {
	db := newTestDB(t)
	referrals := NewReferralService(db)
	processing := NewReferralProcessingService(db)
	createUser(t, db, "alice", "alice")
	createUser(t, db, "bob", "bob")

	code, _, err := referrals.GenerateCode("alice")
	require.NoError(t, err)
	_, err = referrals.ApplyReferralCode(code, "bob")
	require.NoError(t, err)

	result, err := processing.ProcessVerifiedPayment("bob", "tournament_entry", models.TournamentTypeMini)
	require.NoError(t, err)
	require.True(t, result.Processed)
	require.Equal(t, "alice", result.ReferrerID)
	require.Equal(t, ReferralReward, result.Reward)

	// Second payment by the same player does not credit again
	result, err = processing.ProcessVerifiedPayment("bob", "tournament_entry", models.TournamentTypeMini)
	require.NoError(t, err)
	require.False(t, result.Processed)

	var alice models.User
	require.NoError(t, db.First(&alice, "id = ?", "alice").Error)
	require.Equal(t, ReferralReward, alice.ReferralBalance)
}

func TestProcessVerifiedPaymentWithoutReferrer(t *testing.T) {
	db := newTestDB(t)
	processing := NewReferralProcessingService(db)
	createUser(t, db, "loner", "loner")

	result, err := processing.ProcessVerifiedPayment("loner", "tournament_entry", models.TournamentTypeMini)
	require.NoError(t, err)
	require.False(t, result.Processed)

	result, err = processing.ProcessVerifiedPayment("ghost", "tournament_entry", models.TournamentTypeMini)
	require.NoError(t, err)
	require.False(t, result.Processed)
}

func TestReferralLifecycleEndToEnd(t *testing.T) {
	db := newTestDB(t)
	referrals := NewReferralService(db)
	processing := NewReferralProcessingService(db)
	settlements := NewSettlementService(db)

	createUser(t, db, "alice", "alice")
	createUser(t, db, "bob", "bob")

	// Alice shares her code, Bob signs up with it
	code, _, err := referrals.GenerateCode("alice")
	require.NoError(t, err)
	applied, err := referrals.ApplyReferralCode(code, "bob")
	require.NoError(t, err)
	require.True(t, applied.Success)

	// Bob pays a tournament entry fee; Alice earns the reward
	payment, err := processing.ProcessVerifiedPayment("bob", "tournament_entry", models.TournamentTypeMini)
	require.NoError(t, err)
	require.True(t, payment.Processed)

	stats, err := referrals.GetReferralStats("alice")
	require.NoError(t, err)
	require.Equal(t, ReferralReward, stats.ReferralBalance)
	require.EqualValues(t, 1, stats.ReferralCountValid)

	// Settlement: one credit is below the payout floor, so it forfeits
	summary := settlements.Settle(models.TournamentTypeMini)
	require.True(t, summary.Success)
	require.Equal(t, 1, summary.UsersProcessed)
	require.Equal(t, 0, summary.UsersPaidOut)
	require.Equal(t, 1, summary.UsersForfeited)
	require.Equal(t, ReferralReward, summary.TotalForfeited)

	var alice models.User
	require.NoError(t, db.First(&alice, "id = ?", "alice").Error)
	require.Zero(t, alice.ReferralBalance)
	require.Zero(t, alice.WalletBalance)

	var txnCount int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&txnCount).Error)
	require.Zero(t, txnCount)
}
