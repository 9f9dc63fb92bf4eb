package testutil

import (
	"fmt"
	"time"

	"coliseum/models"

	"github.com/google/uuid"
)

// CreateTestUser creates a test user with default values
func CreateTestUser(username string) *models.User {
	now := time.Now()
	return &models.User{
		ID:        uuid.New(),
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestLedgerEntry creates a signed ledger entry for a user
func CreateTestLedgerEntry(userID uuid.UUID, amount int64, kind models.CoinKind, txType models.TransactionType) *models.LedgerEntry {
	return &models.LedgerEntry{
		UserID:   userID,
		Amount:   amount,
		CoinKind: kind,
		Type:     txType,
		Metadata: map[string]any{"test": true},
	}
}

// CreateTestLedgerEntryWithKey creates a ledger entry carrying an idempotency key
func CreateTestLedgerEntryWithKey(userID uuid.UUID, amount int64, kind models.CoinKind, txType models.TransactionType, key string) *models.LedgerEntry {
	entry := CreateTestLedgerEntry(userID, amount, kind, txType)
	entry.IdempotencyKey = &key
	return entry
}

// CreateTestBattle creates an active battle between two users
func CreateTestBattle(hostID, challengerID uuid.UUID) *models.Battle {
	now := time.Now()
	return &models.Battle{
		ID:           uuid.New(),
		HostID:       hostID,
		ChallengerID: challengerID,
		Status:       models.BattleStatusActive,
		StartedAt:    now,
		EndsAt:       now.Add(2 * time.Minute),
	}
}

// CreateTestShow creates an active live show
func CreateTestShow(entryFee int64) *models.LiveShow {
	return &models.LiveShow{
		ID:       uuid.New(),
		Active:   true,
		EntryFee: entryFee,
	}
}

// CreateTestWaitlistEntry creates a waiting entry at the given position
func CreateTestWaitlistEntry(showID, userID uuid.UUID, position int) *models.WaitlistEntry {
	return &models.WaitlistEntry{
		ShowID:   showID,
		UserID:   userID,
		Position: position,
		Status:   models.WaitlistStatusWaiting,
		FeePaid:  true,
	}
}

// CreateTestStream creates a live stream record for a room
func CreateTestStream(hostID uuid.UUID) *models.Stream {
	now := time.Now()
	return &models.Stream{
		ID:        uuid.New(),
		RoomName:  fmt.Sprintf("room-%s", uuid.New().String()[:8]),
		HostID:    &hostID,
		Status:    models.StreamStatusLive,
		StartedAt: &now,
	}
}
