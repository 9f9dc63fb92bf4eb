package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coliseum/events"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const sourceService = "coliseum"

// eventEnvelope wraps a domain event for cross-service consumers
type eventEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

// EventForwarder republishes bus events to NATS as JSON envelopes on
// per-type subjects
type EventForwarder struct {
	conn *nats.Conn
}

// NewEventForwarder connects to NATS
func NewEventForwarder(servers string) (*EventForwarder, error) {
	conn, err := nats.Connect(servers,
		nats.Name(sourceService),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", servers, err)
	}
	return &EventForwarder{conn: conn}, nil
}

// Attach subscribes the forwarder to every event type on the bus
func (f *EventForwarder) Attach(bus *events.Bus) {
	for _, eventType := range []events.EventType{
		events.EventTypeBalanceChange,
		events.EventTypeBattleCompleted,
		events.EventTypePerformanceEnded,
		events.EventTypeCommissionRecorded,
		events.EventTypeStreamStateChanged,
	} {
		bus.Subscribe(eventType, f.forward)
	}
}

func (f *EventForwarder) forward(ctx context.Context, event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to marshal event payload")
		return
	}

	envelope := eventEnvelope{
		EventID:   uuid.New().String(),
		EventType: string(event.Type()),
		Timestamp: time.Now().UTC(),
		Source:    sourceService,
		Payload:   payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to marshal event envelope")
		return
	}

	subject := SubjectFor(event.Type())
	if err := f.conn.Publish(subject, data); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"subject":   subject,
			"error":     err,
		}).Error("Failed to publish event to NATS")
		return
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Published event to NATS")
}

// Close drains in-flight messages and closes the connection
func (f *EventForwarder) Close() {
	if err := f.conn.Drain(); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Failed to drain NATS connection")
	}
}

// SubjectFor maps an event type to its NATS subject
func SubjectFor(eventType events.EventType) string {
	return fmt.Sprintf("%s.events.%s", sourceService, eventType)
}
