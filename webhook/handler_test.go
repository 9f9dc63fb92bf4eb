package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"coliseum/config"
	"coliseum/models"
	"coliseum/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupWebhookMocks() (*service.MockUnitOfWorkFactory, *service.MockUnitOfWork, *service.MockStreamRepository) {
	mockUoW := new(service.MockUnitOfWork)
	mockFactory := new(service.MockUnitOfWorkFactory)
	mockStreamRepo := new(service.MockStreamRepository)

	mockUoW.SetRepositories(nil, nil, nil, nil, nil, nil, mockStreamRepo)
	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", mock.Anything).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	return mockFactory, mockUoW, mockStreamRepo
}

func TestHandler_RoomStarted_CreatesStream(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, _, mockStreamRepo := setupWebhookMocks()
	handler := NewHandler(mockFactory)

	hostID := uuid.New()
	mockStreamRepo.On("GetByRoomName", ctx, "room-1").Return(nil, nil)
	mockStreamRepo.On("Create", ctx, mock.MatchedBy(func(s *models.Stream) bool {
		return s.RoomName == "room-1" &&
			s.Status == models.StreamStatusLive &&
			s.HostID != nil && *s.HostID == hostID &&
			s.StartedAt != nil
	})).Return(nil)

	event := &mediaEvent{Event: EventRoomStarted}
	event.Room.Name = "room-1"
	event.Room.HostID = hostID.String()

	err := handler.Process(ctx, event)

	assert.NoError(t, err)
	mockStreamRepo.AssertExpectations(t)
}

func TestHandler_RoomStarted_ReplayIsNoop(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, _, mockStreamRepo := setupWebhookMocks()
	handler := NewHandler(mockFactory)

	mockStreamRepo.On("GetByRoomName", ctx, "room-1").Return(&models.Stream{
		ID:       uuid.New(),
		RoomName: "room-1",
		Status:   models.StreamStatusLive,
	}, nil)

	event := &mediaEvent{Event: EventRoomStarted}
	event.Room.Name = "room-1"

	err := handler.Process(ctx, event)

	assert.NoError(t, err)
	mockStreamRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mockStreamRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestHandler_RoomFinished_EndsOnce(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, _, mockStreamRepo := setupWebhookMocks()
	handler := NewHandler(mockFactory)

	mockStreamRepo.On("GetByRoomName", ctx, "room-2").Return(&models.Stream{
		ID:       uuid.New(),
		RoomName: "room-2",
		Status:   models.StreamStatusLive,
	}, nil).Once()
	mockStreamRepo.On("Update", ctx, mock.MatchedBy(func(s *models.Stream) bool {
		return s.Status == models.StreamStatusEnded && s.EndedAt != nil
	})).Return(nil).Once()

	event := &mediaEvent{Event: EventRoomFinished}
	event.Room.Name = "room-2"

	assert.NoError(t, handler.Process(ctx, event))

	// Redelivery finds the stream already ended
	mockStreamRepo.On("GetByRoomName", ctx, "room-2").Return(&models.Stream{
		ID:       uuid.New(),
		RoomName: "room-2",
		Status:   models.StreamStatusEnded,
	}, nil).Once()

	assert.NoError(t, handler.Process(ctx, event))
	mockStreamRepo.AssertExpectations(t)
}

func TestHandler_EgressStarted_AtMostOncePerRoom(t *testing.T) {
	config.SetTestConfig(config.NewTestConfig())
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, _, mockStreamRepo := setupWebhookMocks()
	handler := NewHandler(mockFactory)

	existing := "EG_first"
	mockStreamRepo.On("GetByRoomName", ctx, "room-3").Return(&models.Stream{
		ID:       uuid.New(),
		RoomName: "room-3",
		Status:   models.StreamStatusLive,
		EgressID: &existing,
	}, nil)

	event := &mediaEvent{Event: EventEgressStarted}
	event.Egress.EgressID = "EG_second"
	event.Egress.RoomName = "room-3"

	err := handler.Process(ctx, event)

	assert.NoError(t, err)
	mockStreamRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestHandler_EgressEnded_RejectsAppDataDomainURL(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.AppDataDomain = "appdata.example.com"
	config.SetTestConfig(cfg)
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, _, mockStreamRepo := setupWebhookMocks()
	handler := NewHandler(mockFactory)

	egressID := "EG_1"
	mockStreamRepo.On("GetByRoomName", ctx, "room-4").Return(&models.Stream{
		ID:       uuid.New(),
		RoomName: "room-4",
		Status:   models.StreamStatusEnded,
		EgressID: &egressID,
	}, nil)

	event := &mediaEvent{Event: EventEgressEnded}
	event.Egress.RoomName = "room-4"
	event.Egress.FileURL = "https://media.appdata.example.com/recordings/room-4.mp4"

	err := handler.Process(ctx, event)

	assert.NoError(t, err)
	mockStreamRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestHandler_EgressEnded_PersistsRecordingURL(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.AppDataDomain = "appdata.example.com"
	config.SetTestConfig(cfg)
	defer config.ResetConfig()

	ctx := context.Background()
	mockFactory, _, mockStreamRepo := setupWebhookMocks()
	handler := NewHandler(mockFactory)

	egressID := "EG_1"
	mockStreamRepo.On("GetByRoomName", ctx, "room-5").Return(&models.Stream{
		ID:       uuid.New(),
		RoomName: "room-5",
		Status:   models.StreamStatusEnded,
		EgressID: &egressID,
	}, nil)
	mockStreamRepo.On("Update", ctx, mock.MatchedBy(func(s *models.Stream) bool {
		return s.RecordingURL != nil && *s.RecordingURL == "https://cdn.recordings.example.net/room-5.mp4"
	})).Return(nil)

	event := &mediaEvent{Event: EventEgressEnded}
	event.Egress.RoomName = "room-5"
	event.Egress.FileURL = "https://cdn.recordings.example.net/room-5.mp4"

	err := handler.Process(ctx, event)

	assert.NoError(t, err)
	mockStreamRepo.AssertExpectations(t)
}

func TestHandler_HTTP_RejectsBadSignature(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.WebhookSecret = "topsecret"
	config.SetTestConfig(cfg)
	defer config.ResetConfig()

	mockFactory, _, _ := setupWebhookMocks()
	handler := NewHandler(mockFactory)

	mux := http.NewServeMux()
	handler.Register(mux)

	body := []byte(`{"event":"room_finished","room":{"name":"room-x"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/media", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	mockFactory.AssertNotCalled(t, "Create")
}

func TestHandler_HTTP_AcceptsSignedPayload(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.WebhookSecret = "topsecret"
	config.SetTestConfig(cfg)
	defer config.ResetConfig()

	mockFactory, _, mockStreamRepo := setupWebhookMocks()
	handler := NewHandler(mockFactory)

	mockStreamRepo.On("GetByRoomName", mock.Anything, "room-x").Return(&models.Stream{
		ID:       uuid.New(),
		RoomName: "room-x",
		Status:   models.StreamStatusLive,
	}, nil)
	mockStreamRepo.On("Update", mock.Anything, mock.Anything).Return(nil)

	mux := http.NewServeMux()
	handler.Register(mux)

	body := []byte(`{"event":"room_finished","room":{"name":"room-x"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/media", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign(body, "topsecret"))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	mockStreamRepo.AssertExpectations(t)
}
