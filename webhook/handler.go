package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coliseum/config"
	"coliseum/events"
	"coliseum/models"
	"coliseum/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the request body
const SignatureHeader = "X-Webhook-Signature"

// Event names delivered by the media transport
const (
	EventRoomStarted       = "room_started"
	EventParticipantJoined = "participant_joined"
	EventRoomFinished      = "room_finished"
	EventEgressStarted     = "egress_started"
	EventEgressEnded       = "egress_ended"
)

// mediaEvent is the inbound webhook payload. Deliveries are at-least-once,
// so every handler below must tolerate replays.
type mediaEvent struct {
	Event string `json:"event"`
	Room  struct {
		Name            string `json:"name"`
		HostID          string `json:"host_id"`
		NumParticipants int    `json:"num_participants"`
	} `json:"room"`
	Egress struct {
		EgressID string `json:"egress_id"`
		RoomName string `json:"room_name"`
		FileURL  string `json:"file_url"`
	} `json:"egress"`
}

// Handler translates media transport lifecycle events into idempotent
// stream record transitions
type Handler struct {
	uowFactory service.UnitOfWorkFactory
}

// NewHandler creates a new webhook handler
func NewHandler(uowFactory service.UnitOfWorkFactory) *Handler {
	return &Handler{uowFactory: uowFactory}
}

// Register mounts the webhook routes on the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/webhooks/media", h.handleMediaEvent)
}

func (h *Handler) handleMediaEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	if !verifySignature(body, r.Header.Get(SignatureHeader), config.Get().WebhookSecret) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	var event mediaEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed payload"})
		return
	}

	if err := h.Process(r.Context(), &event); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			log.WithFields(log.Fields{
				"event": event.Event,
				"room":  event.Room.Name,
				"error": err,
			}).Error("Webhook event processing failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Process applies one media event to the matching stream record
func (h *Handler) Process(ctx context.Context, event *mediaEvent) error {
	switch event.Event {
	case EventRoomStarted:
		return h.roomStarted(ctx, event)
	case EventParticipantJoined:
		return h.participantJoined(ctx, event)
	case EventRoomFinished:
		return h.roomFinished(ctx, event)
	case EventEgressStarted:
		return h.egressStarted(ctx, event)
	case EventEgressEnded:
		return h.egressEnded(ctx, event)
	default:
		return fmt.Errorf("%w: unknown event %q", service.ErrValidation, event.Event)
	}
}

// roomStarted creates the stream record, or marks an existing pending
// record live. A replay for an already live or ended room changes nothing.
func (h *Handler) roomStarted(ctx context.Context, event *mediaEvent) error {
	if event.Room.Name == "" {
		return fmt.Errorf("%w: missing room name", service.ErrValidation)
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	now := time.Now()
	stream, err := uow.StreamRepository().GetByRoomName(ctx, event.Room.Name)
	if err != nil {
		return err
	}

	if stream == nil {
		var hostID *uuid.UUID
		if event.Room.HostID != "" {
			parsed, err := uuid.Parse(event.Room.HostID)
			if err != nil {
				return fmt.Errorf("%w: invalid host id %q", service.ErrValidation, event.Room.HostID)
			}
			hostID = &parsed
		}
		stream = &models.Stream{
			ID:        uuid.New(),
			RoomName:  event.Room.Name,
			HostID:    hostID,
			Status:    models.StreamStatusLive,
			StartedAt: &now,
		}
		if err := uow.StreamRepository().Create(ctx, stream); err != nil {
			return err
		}
	} else {
		if stream.Status != models.StreamStatusPending {
			return uow.Commit()
		}
		stream.Status = models.StreamStatusLive
		stream.StartedAt = &now
		if err := uow.StreamRepository().Update(ctx, stream); err != nil {
			return err
		}
	}

	uow.EventBus().Publish(events.StreamStateChangedEvent{
		StreamID:  stream.ID,
		RoomName:  stream.RoomName,
		OldStatus: models.StreamStatusPending,
		NewStatus: models.StreamStatusLive,
		At:        now,
	})

	return uow.Commit()
}

// participantJoined syncs the viewer count from the room snapshot.
// Setting rather than incrementing keeps replays harmless.
func (h *Handler) participantJoined(ctx context.Context, event *mediaEvent) error {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stream, err := uow.StreamRepository().GetByRoomName(ctx, event.Room.Name)
	if err != nil {
		return err
	}
	if stream == nil {
		return fmt.Errorf("%w: stream for room %q", service.ErrNotFound, event.Room.Name)
	}
	if stream.Status != models.StreamStatusLive {
		return uow.Commit()
	}

	stream.ViewerCount = event.Room.NumParticipants
	if err := uow.StreamRepository().Update(ctx, stream); err != nil {
		return err
	}

	return uow.Commit()
}

// roomFinished transitions a live stream to ended exactly once
func (h *Handler) roomFinished(ctx context.Context, event *mediaEvent) error {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stream, err := uow.StreamRepository().GetByRoomName(ctx, event.Room.Name)
	if err != nil {
		return err
	}
	if stream == nil {
		return fmt.Errorf("%w: stream for room %q", service.ErrNotFound, event.Room.Name)
	}
	if stream.Status == models.StreamStatusEnded {
		return uow.Commit()
	}

	now := time.Now()
	oldStatus := stream.Status
	stream.Status = models.StreamStatusEnded
	stream.EndedAt = &now
	if err := uow.StreamRepository().Update(ctx, stream); err != nil {
		return err
	}

	uow.EventBus().Publish(events.StreamStateChangedEvent{
		StreamID:  stream.ID,
		RoomName:  stream.RoomName,
		OldStatus: oldStatus,
		NewStatus: models.StreamStatusEnded,
		At:        now,
	})

	return uow.Commit()
}

// egressStarted stores the recording session id. A room records at most
// once; a second start for the same room is dropped.
func (h *Handler) egressStarted(ctx context.Context, event *mediaEvent) error {
	if event.Egress.EgressID == "" {
		return fmt.Errorf("%w: missing egress id", service.ErrValidation)
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stream, err := uow.StreamRepository().GetByRoomName(ctx, event.Egress.RoomName)
	if err != nil {
		return err
	}
	if stream == nil {
		return fmt.Errorf("%w: stream for room %q", service.ErrNotFound, event.Egress.RoomName)
	}
	if stream.EgressID != nil {
		log.WithFields(log.Fields{
			"room":     stream.RoomName,
			"egressID": *stream.EgressID,
			"dropped":  event.Egress.EgressID,
		}).Warn("Egress already recorded for room, ignoring")
		return uow.Commit()
	}

	stream.EgressID = &event.Egress.EgressID
	if err := uow.StreamRepository().Update(ctx, stream); err != nil {
		return err
	}

	return uow.Commit()
}

// egressEnded persists the recording URL, unless it points at the
// application data domain. Such a URL is a cross-system misconfiguration
// and must never land in a stream record.
func (h *Handler) egressEnded(ctx context.Context, event *mediaEvent) error {
	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	stream, err := uow.StreamRepository().GetByRoomName(ctx, event.Egress.RoomName)
	if err != nil {
		return err
	}
	if stream == nil {
		return fmt.Errorf("%w: stream for room %q", service.ErrNotFound, event.Egress.RoomName)
	}
	if stream.RecordingURL != nil {
		return uow.Commit()
	}

	if event.Egress.FileURL != "" {
		if onAppDataDomain(event.Egress.FileURL, config.Get().AppDataDomain) {
			log.WithFields(log.Fields{
				"room": stream.RoomName,
				"url":  event.Egress.FileURL,
			}).Error("Recording URL points at application data domain, refusing to persist")
		} else {
			stream.RecordingURL = &event.Egress.FileURL
			if err := uow.StreamRepository().Update(ctx, stream); err != nil {
				return err
			}
		}
	}

	return uow.Commit()
}

// onAppDataDomain reports whether the URL's host is the application data
// domain or one of its subdomains
func onAppDataDomain(rawURL, domain string) bool {
	if domain == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		// Unparseable URLs stay out of the database too
		return true
	}
	host := parsed.Hostname()
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// verifySignature checks the hex HMAC-SHA256 of the body against the
// shared secret
func verifySignature(body []byte, signature, secret string) bool {
	if secret == "" {
		// No secret configured means the deployment handles auth upstream
		return true
	}
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Sign computes the signature the transport is expected to send
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
