package repository

import (
	"context"
	"fmt"

	"coliseum/database"
	"coliseum/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const showColumns = `
	id, active, entry_fee, current_performer_id, performance_started_at, created_at, closed_at
`

const entryColumns = `
	id, show_id, user_id, position, status, fee_paid,
	performance_started_at, performance_ended_at, duration_seconds,
	votes_received, votes_against, created_at, updated_at
`

// ShowRepository implements the ShowRepository interface
type ShowRepository struct {
	q queryable
}

// NewShowRepository creates a new show repository
func NewShowRepository(db *database.DB) *ShowRepository {
	return &ShowRepository{q: db.Pool}
}

// newShowRepositoryWithTx creates a new show repository with a transaction
func newShowRepositoryWithTx(tx queryable) *ShowRepository {
	return &ShowRepository{q: tx}
}

// GetActiveShow returns the current active show, or nil
func (r *ShowRepository) GetActiveShow(ctx context.Context) (*models.LiveShow, error) {
	query := `SELECT ` + showColumns + ` FROM live_shows WHERE active`

	show, err := scanShow(r.q.QueryRow(ctx, query))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active show: %w", err)
	}

	return show, nil
}

// GetByID retrieves a show by id
func (r *ShowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LiveShow, error) {
	query := `SELECT ` + showColumns + ` FROM live_shows WHERE id = $1`

	show, err := scanShow(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get show %s: %w", id, err)
	}

	return show, nil
}

// Create creates a new show
func (r *ShowRepository) Create(ctx context.Context, show *models.LiveShow) error {
	query := `
		INSERT INTO live_shows (id, active, entry_fee)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := r.q.QueryRow(ctx, query, show.ID, show.Active, show.EntryFee).Scan(&show.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create show: %w", err)
	}

	return nil
}

// Update persists show state
func (r *ShowRepository) Update(ctx context.Context, show *models.LiveShow) error {
	query := `
		UPDATE live_shows
		SET active = $1, entry_fee = $2, current_performer_id = $3,
		    performance_started_at = $4, closed_at = $5
		WHERE id = $6
	`

	result, err := r.q.Exec(ctx, query,
		show.Active,
		show.EntryFee,
		show.CurrentPerformerID,
		show.PerformanceStartedAt,
		show.ClosedAt,
		show.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update show %s: %w", show.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("show %s not found", show.ID)
	}

	return nil
}

// LockShow takes a transaction-scoped advisory lock on the show.
// Concurrent joiners and performer rotations for the same show queue
// behind this lock; it releases automatically at commit or rollback.
func (r *ShowRepository) LockShow(ctx context.Context, showID uuid.UUID) error {
	query := `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`

	if _, err := r.q.Exec(ctx, query, showID); err != nil {
		return fmt.Errorf("failed to lock show %s: %w", showID, err)
	}

	return nil
}

// GetMaxPosition returns the highest assigned position for a show, 0 if none
func (r *ShowRepository) GetMaxPosition(ctx context.Context, showID uuid.UUID) (int, error) {
	query := `
		SELECT COALESCE(MAX(position), 0)
		FROM show_waitlist
		WHERE show_id = $1
	`

	var max int
	err := r.q.QueryRow(ctx, query, showID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max position for show %s: %w", showID, err)
	}

	return max, nil
}

// CreateEntry inserts a waitlist entry
func (r *ShowRepository) CreateEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	query := `
		INSERT INTO show_waitlist (show_id, user_id, position, status, fee_paid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		entry.ShowID,
		entry.UserID,
		entry.Position,
		entry.Status,
		entry.FeePaid,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create waitlist entry for user %s: %w", entry.UserID, err)
	}

	return nil
}

// GetActiveEntry returns a user's non-terminal entry for a show, or nil
func (r *ShowRepository) GetActiveEntry(ctx context.Context, showID, userID uuid.UUID) (*models.WaitlistEntry, error) {
	query := `SELECT ` + entryColumns + `
		FROM show_waitlist
		WHERE show_id = $1 AND user_id = $2 AND status IN ('waiting', 'performing')
	`

	entry, err := scanWaitlistEntry(r.q.QueryRow(ctx, query, showID, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active entry for user %s: %w", userID, err)
	}

	return entry, nil
}

// GetEntryByID retrieves a waitlist entry by id
func (r *ShowRepository) GetEntryByID(ctx context.Context, id int64) (*models.WaitlistEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM show_waitlist WHERE id = $1`

	entry, err := scanWaitlistEntry(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get waitlist entry %d: %w", id, err)
	}

	return entry, nil
}

// UpdateEntry persists waitlist entry state
func (r *ShowRepository) UpdateEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	query := `
		UPDATE show_waitlist
		SET status = $1, performance_started_at = $2, performance_ended_at = $3,
		    duration_seconds = $4, votes_received = $5, votes_against = $6,
		    updated_at = NOW()
		WHERE id = $7
	`

	result, err := r.q.Exec(ctx, query,
		entry.Status,
		entry.PerformanceStartedAt,
		entry.PerformanceEndedAt,
		entry.DurationSeconds,
		entry.VotesReceived,
		entry.VotesAgainst,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update waitlist entry %d: %w", entry.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("waitlist entry %d not found", entry.ID)
	}

	return nil
}

// ListEntries returns a show's entries ordered by position
func (r *ShowRepository) ListEntries(ctx context.Context, showID uuid.UUID) ([]*models.WaitlistEntry, error) {
	query := `SELECT ` + entryColumns + `
		FROM show_waitlist
		WHERE show_id = $1
		ORDER BY position ASC
	`

	rows, err := r.q.Query(ctx, query, showID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for show %s: %w", showID, err)
	}
	defer rows.Close()

	var entries []*models.WaitlistEntry
	for rows.Next() {
		entry, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan waitlist entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate waitlist entries: %w", err)
	}

	return entries, nil
}

// UpsertVote creates or replaces a voter's vote on an entry
func (r *ShowRepository) UpsertVote(ctx context.Context, vote *models.ShowVote) error {
	query := `
		INSERT INTO show_votes (waitlist_entry_id, voter_id, vote_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (waitlist_entry_id, voter_id)
		DO UPDATE SET
			vote_type = EXCLUDED.vote_type,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		vote.WaitlistEntryID,
		vote.VoterID,
		vote.VoteType,
	).Scan(&vote.ID, &vote.CreatedAt, &vote.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert vote: %w", err)
	}

	return nil
}

// CountVotes recounts all votes for an entry. A full recount rather
// than an increment, so duplicate casts can never inflate the tally.
func (r *ShowRepository) CountVotes(ctx context.Context, entryID int64) (*models.VoteTally, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE vote_type = 'keep') as keep_votes,
			COUNT(*) FILTER (WHERE vote_type = 'kick') as kick_votes
		FROM show_votes
		WHERE waitlist_entry_id = $1
	`

	var tally models.VoteTally
	err := r.q.QueryRow(ctx, query, entryID).Scan(&tally.Keep, &tally.Kick)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes for entry %d: %w", entryID, err)
	}

	return &tally, nil
}

func scanShow(row pgx.Row) (*models.LiveShow, error) {
	var show models.LiveShow
	err := row.Scan(
		&show.ID,
		&show.Active,
		&show.EntryFee,
		&show.CurrentPerformerID,
		&show.PerformanceStartedAt,
		&show.CreatedAt,
		&show.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	return &show, nil
}

func scanWaitlistEntry(row pgx.Row) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry
	err := row.Scan(
		&entry.ID,
		&entry.ShowID,
		&entry.UserID,
		&entry.Position,
		&entry.Status,
		&entry.FeePaid,
		&entry.PerformanceStartedAt,
		&entry.PerformanceEndedAt,
		&entry.DurationSeconds,
		&entry.VotesReceived,
		&entry.VotesAgainst,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
