package services

import (
	"errors"
	"testing"

	"tournament-rewards-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setBalance(t *testing.T, db *gorm.DB, userID string, balance float64) {
	t.Helper()
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", userID).
		UpdateColumn("referral_balance", balance).Error)
}

func TestSettlePaysOutAtFloor(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)
	createUser(t, db, "at-floor", "alice")
	setBalance(t, db, "at-floor", PayoutFloor)

	summary := svc.Settle(models.TournamentTypeMini)
	require.True(t, summary.Success)
	require.Equal(t, 1, summary.UsersProcessed)
	require.Equal(t, 1, summary.UsersPaidOut)
	require.Equal(t, 0, summary.UsersForfeited)
	require.Equal(t, PayoutFloor, summary.TotalPaidOut)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", "at-floor").Error)
	require.Zero(t, user.ReferralBalance)
	require.Equal(t, PayoutFloor, user.WalletBalance)

	var txn models.Transaction
	require.NoError(t, db.First(&txn, "user_id = ?", "at-floor").Error)
	require.Equal(t, PayoutFloor, txn.Amount)
	require.Equal(t, RewardCurrency, txn.Currency)
	require.Equal(t, models.TransactionTypeReferralPayout, txn.Type)
	require.Equal(t, models.TransactionStatusCompleted, txn.Status)
}

func TestSettleForfeitsBelowFloor(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)
	createUser(t, db, "sub-floor", "bob")
	setBalance(t, db, "sub-floor", PayoutFloor-0.01)

	summary := svc.Settle(models.TournamentTypeGrand)
	require.True(t, summary.Success)
	require.Equal(t, 1, summary.UsersProcessed)
	require.Equal(t, 0, summary.UsersPaidOut)
	require.Equal(t, 1, summary.UsersForfeited)
	require.Equal(t, PayoutFloor-0.01, summary.TotalForfeited)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", "sub-floor").Error)
	require.Zero(t, user.ReferralBalance)
	require.Zero(t, user.WalletBalance)

	var txnCount int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&txnCount).Error)
	require.Zero(t, txnCount)
}

func TestSettleSkipsZeroBalances(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)
	createUser(t, db, "idle", "carol")

	summary := svc.Settle(models.TournamentTypeMini)
	require.True(t, summary.Success)
	require.Equal(t, 0, summary.UsersProcessed)
}

func TestSettleEmptyRunSucceeds(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)

	summary := svc.Settle(models.TournamentTypeMini)
	require.True(t, summary.Success)
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, models.TournamentTypeMini, summary.TournamentType)
}

func TestSettleMixedPopulation(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)

	createUser(t, db, "whale", "whale")
	setBalance(t, db, "whale", 42)
	createUser(t, db, "floor", "floor")
	setBalance(t, db, "floor", PayoutFloor)
	createUser(t, db, "small", "small")
	setBalance(t, db, "small", 3)
	createUser(t, db, "zero", "zero")

	summary := svc.Settle(models.TournamentTypeGrand)
	require.True(t, summary.Success)
	require.Equal(t, 3, summary.UsersProcessed)
	require.Equal(t, 2, summary.UsersPaidOut)
	require.Equal(t, 1, summary.UsersForfeited)
	require.Equal(t, 42+PayoutFloor, summary.TotalPaidOut)
	require.Equal(t, 3.0, summary.TotalForfeited)

	var txnCount int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&txnCount).Error)
	require.EqualValues(t, 2, txnCount)
}

func TestSettleInBatchRollsBackWithCaller(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)
	createUser(t, db, "whale", "whale")
	setBalance(t, db, "whale", 100)

	callerErr := errors.New("caller decided to abort")
	err := db.Transaction(func(tx *gorm.DB) error {
		summary, err := svc.SettleInBatch(tx, models.TournamentTypeMini)
		require.NoError(t, err)
		require.Equal(t, 1, summary.UsersPaidOut)
		return callerErr
	})
	require.ErrorIs(t, err, callerErr)

	// The whole batch rolled back with the caller's failure
	var user models.User
	require.NoError(t, db.First(&user, "id = ?", "whale").Error)
	require.Equal(t, 100.0, user.ReferralBalance)
	require.Zero(t, user.WalletBalance)

	var txnCount int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&txnCount).Error)
	require.Zero(t, txnCount)
}

func TestSettleInBatchCommitsWithCaller(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)
	createUser(t, db, "whale", "whale")
	setBalance(t, db, "whale", 100)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.SettleInBatch(tx, models.TournamentTypeMini)
		return err
	})
	require.NoError(t, err)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", "whale").Error)
	require.Zero(t, user.ReferralBalance)
	require.Equal(t, 100.0, user.WalletBalance)
}

func TestSettleUserSkipsStaleBalanceSnapshot(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)
	createUser(t, db, "whale", "whale")
	setBalance(t, db, "whale", 25)
	createUser(t, db, "small", "small")
	setBalance(t, db, "small", 3)

	// Snapshots read by a concurrent run before this one committed
	staleWhale := models.User{ID: "whale", ReferralBalance: 25}
	staleSmall := models.User{ID: "small", ReferralBalance: 3}

	first := svc.Settle(models.TournamentTypeMini)
	require.True(t, first.Success)
	require.Equal(t, 1, first.UsersPaidOut)
	require.Equal(t, 1, first.UsersForfeited)

	// Replaying the stale snapshots must not pay or forfeit again
	var result sweepResult
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		if err := svc.settleUser(tx, staleWhale, models.TournamentTypeMini, &result); err != nil {
			return err
		}
		return svc.settleUser(tx, staleSmall, models.TournamentTypeMini, &result)
	}))
	require.Zero(t, result.UsersProcessed)

	var whale models.User
	require.NoError(t, db.First(&whale, "id = ?", "whale").Error)
	require.Equal(t, 25.0, whale.WalletBalance)

	var txnCount int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&txnCount).Error)
	require.EqualValues(t, 1, txnCount)
}

func TestSettleReportsBatchFailure(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)
	createUser(t, db, "whale", "whale")
	setBalance(t, db, "whale", 25)

	// Break the payout journal so the batch cannot commit
	require.NoError(t, db.Migrator().DropTable(&models.Transaction{}))

	summary := svc.Settle(models.TournamentTypeMini)
	require.False(t, summary.Success)
	require.NotEmpty(t, summary.Message)

	// The whole batch rolled back: the balance is untouched
	var user models.User
	require.NoError(t, db.First(&user, "id = ?", "whale").Error)
	require.Equal(t, 25.0, user.ReferralBalance)
	require.Zero(t, user.WalletBalance)
}

func TestSettleIsIdempotentAcrossRuns(t *testing.T) {
	db := newTestDB(t)
	svc := NewSettlementService(db)
	createUser(t, db, "whale", "whale")
	setBalance(t, db, "whale", 25)

	first := svc.Settle(models.TournamentTypeMini)
	require.True(t, first.Success)
	require.Equal(t, 1, first.UsersPaidOut)

	second := svc.Settle(models.TournamentTypeMini)
	require.True(t, second.Success)
	require.Equal(t, 0, second.UsersProcessed)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", "whale").Error)
	require.Equal(t, 25.0, user.WalletBalance)

	var txnCount int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&txnCount).Error)
	require.EqualValues(t, 1, txnCount)
}
