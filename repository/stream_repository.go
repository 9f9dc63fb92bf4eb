package repository

import (
	"context"
	"fmt"

	"coliseum/database"
	"coliseum/models"

	"github.com/jackc/pgx/v5"
)

// StreamRepository implements the StreamRepository interface
type StreamRepository struct {
	q queryable
}

// NewStreamRepository creates a new stream repository
func NewStreamRepository(db *database.DB) *StreamRepository {
	return &StreamRepository{q: db.Pool}
}

// newStreamRepositoryWithTx creates a new stream repository with a transaction
func newStreamRepositoryWithTx(tx queryable) *StreamRepository {
	return &StreamRepository{q: tx}
}

// GetByRoomName retrieves a stream by its media room name, or nil
func (r *StreamRepository) GetByRoomName(ctx context.Context, roomName string) (*models.Stream, error) {
	query := `
		SELECT id, room_name, host_id, status, viewer_count, egress_id, recording_url,
		       started_at, ended_at, created_at, updated_at
		FROM streams
		WHERE room_name = $1
	`

	var stream models.Stream
	err := r.q.QueryRow(ctx, query, roomName).Scan(
		&stream.ID,
		&stream.RoomName,
		&stream.HostID,
		&stream.Status,
		&stream.ViewerCount,
		&stream.EgressID,
		&stream.RecordingURL,
		&stream.StartedAt,
		&stream.EndedAt,
		&stream.CreatedAt,
		&stream.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream for room %s: %w", roomName, err)
	}

	return &stream, nil
}

// Create creates a new stream record
func (r *StreamRepository) Create(ctx context.Context, stream *models.Stream) error {
	query := `
		INSERT INTO streams (id, room_name, host_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		stream.ID,
		stream.RoomName,
		stream.HostID,
		stream.Status,
		stream.StartedAt,
	).Scan(&stream.CreatedAt, &stream.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create stream for room %s: %w", stream.RoomName, err)
	}

	return nil
}

// Update persists stream state
func (r *StreamRepository) Update(ctx context.Context, stream *models.Stream) error {
	query := `
		UPDATE streams
		SET status = $1, viewer_count = $2, egress_id = $3, recording_url = $4,
		    started_at = $5, ended_at = $6, updated_at = NOW()
		WHERE id = $7
	`

	result, err := r.q.Exec(ctx, query,
		stream.Status,
		stream.ViewerCount,
		stream.EgressID,
		stream.RecordingURL,
		stream.StartedAt,
		stream.EndedAt,
		stream.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update stream %s: %w", stream.ID, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("stream %s not found", stream.ID)
	}

	return nil
}
