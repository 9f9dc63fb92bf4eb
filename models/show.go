package models

import (
	"time"

	"github.com/google/uuid"
)

// LiveShow is the rotating performance session. At most one show is
// active at a time; the active row is the platform's "current show".
type LiveShow struct {
	ID                   uuid.UUID  `db:"id"`
	Active               bool       `db:"active"`
	EntryFee             int64      `db:"entry_fee"`
	CurrentPerformerID   *uuid.UUID `db:"current_performer_id"`
	PerformanceStartedAt *time.Time `db:"performance_started_at"`
	CreatedAt            time.Time  `db:"created_at"`
	ClosedAt             *time.Time `db:"closed_at"`
}

// WaitlistStatus represents the lifecycle state of a waitlist entry
type WaitlistStatus string

const (
	WaitlistStatusWaiting    WaitlistStatus = "waiting"
	WaitlistStatusPerforming WaitlistStatus = "performing"
	WaitlistStatusCompleted  WaitlistStatus = "completed"
	WaitlistStatusLeft       WaitlistStatus = "left"
)

// IsTerminal checks if the status allows no further transitions
func (s WaitlistStatus) IsTerminal() bool {
	return s == WaitlistStatusCompleted || s == WaitlistStatusLeft
}

// WaitlistEntry is one user's place in a show's queue. Positions are
// assigned max+1 and never reused; vote counts are full recounts over
// the entry's vote set, not increments.
type WaitlistEntry struct {
	ID                   int64          `db:"id"`
	ShowID               uuid.UUID      `db:"show_id"`
	UserID               uuid.UUID      `db:"user_id"`
	Position             int            `db:"position"`
	Status               WaitlistStatus `db:"status"`
	FeePaid              bool           `db:"fee_paid"`
	PerformanceStartedAt *time.Time     `db:"performance_started_at"`
	PerformanceEndedAt   *time.Time     `db:"performance_ended_at"`
	DurationSeconds      *int           `db:"duration_seconds"`
	VotesReceived        int            `db:"votes_received"`
	VotesAgainst         int            `db:"votes_against"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

// VoteType is a keep or kick vote on a performer
type VoteType string

const (
	VoteTypeKeep VoteType = "keep"
	VoteTypeKick VoteType = "kick"
)

// ShowVote is one voter's current vote on a waitlist entry, upsertable
type ShowVote struct {
	ID              int64     `db:"id"`
	WaitlistEntryID int64     `db:"waitlist_entry_id"`
	VoterID         uuid.UUID `db:"voter_id"`
	VoteType        VoteType  `db:"vote_type"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// VoteTally is the full recount of votes for a single entry
type VoteTally struct {
	Keep int
	Kick int
}

// PerformanceResult is returned by ending a performance
type PerformanceResult struct {
	Entry           *WaitlistEntry
	DurationSeconds int
	Won             bool
	Payout          int64
}
