package models

import (
	"time"

	"github.com/google/uuid"
)

// StreamStatus represents the lifecycle state of a media stream
type StreamStatus string

const (
	StreamStatusPending StreamStatus = "pending"
	StreamStatusLive    StreamStatus = "live"
	StreamStatusEnded   StreamStatus = "ended"
)

// Stream tracks a media room's lifecycle as reported by webhook events.
// EgressID guards recording starts: set at most once per room.
type Stream struct {
	ID           uuid.UUID    `db:"id"`
	RoomName     string       `db:"room_name"`
	HostID       *uuid.UUID   `db:"host_id"`
	Status       StreamStatus `db:"status"`
	ViewerCount  int          `db:"viewer_count"`
	EgressID     *string      `db:"egress_id"`
	RecordingURL *string      `db:"recording_url"`
	StartedAt    *time.Time   `db:"started_at"`
	EndedAt      *time.Time   `db:"ended_at"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
}
