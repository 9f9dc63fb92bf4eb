package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coliseum/config"
	"coliseum/events"
	"coliseum/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type showService struct {
	uowFactory UnitOfWorkFactory
}

// NewShowService creates a new show service
func NewShowService(uowFactory UnitOfWorkFactory) ShowService {
	return &showService{
		uowFactory: uowFactory,
	}
}

// OpenShow activates a new show with the given entry fee. Zero or
// negative fee falls back to the configured default.
func (s *showService) OpenShow(ctx context.Context, entryFee int64) (*models.LiveShow, error) {
	if entryFee <= 0 {
		entryFee = config.Get().DefaultEntryFee
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	existing, err := uow.ShowRepository().GetActiveShow(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: a show is already active", ErrPreconditionFailed)
	}

	show := &models.LiveShow{
		ID:       uuid.New(),
		Active:   true,
		EntryFee: entryFee,
	}
	if err := uow.ShowRepository().Create(ctx, show); err != nil {
		// The partial unique index backstops the active-show check
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a show is already active", ErrPreconditionFailed)
		}
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{"showID": show.ID, "entryFee": entryFee}).Info("Show opened")
	return show, nil
}

// CloseShow deactivates a show. Closing an already closed show is a no-op.
func (s *showService) CloseShow(ctx context.Context, showID uuid.UUID) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.ShowRepository().LockShow(ctx, showID); err != nil {
		return err
	}

	show, err := uow.ShowRepository().GetByID(ctx, showID)
	if err != nil {
		return err
	}
	if show == nil {
		return fmt.Errorf("%w: show %s", ErrNotFound, showID)
	}
	if !show.Active {
		return nil
	}
	if show.CurrentPerformerID != nil {
		return fmt.Errorf("%w: cannot close while a performance is in progress", ErrPreconditionFailed)
	}

	now := time.Now()
	show.Active = false
	show.ClosedAt = &now
	if err := uow.ShowRepository().Update(ctx, show); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{"showID": showID}).Info("Show closed")
	return nil
}

// GetCurrentShow returns the active show, or nil
func (s *showService) GetCurrentShow(ctx context.Context) (*models.LiveShow, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.ShowRepository().GetActiveShow(ctx)
}

// JoinWaitlist charges the entry fee and queues the user. A lost
// position race rolls the whole attempt back, fee included, and is
// retried once before surfacing as a conflict.
func (s *showService) JoinWaitlist(ctx context.Context, userID uuid.UUID) (*models.WaitlistEntry, error) {
	entry, err := s.joinOnce(ctx, userID)
	if err != nil && errors.Is(err, ErrConflict) {
		log.WithFields(log.Fields{"userID": userID}).Warn("Waitlist position race lost, retrying")
		entry, err = s.joinOnce(ctx, userID)
	}
	return entry, err
}

func (s *showService) joinOnce(ctx context.Context, userID uuid.UUID) (*models.WaitlistEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	show, err := uow.ShowRepository().GetActiveShow(ctx)
	if err != nil {
		return nil, err
	}
	if show == nil {
		return nil, fmt.Errorf("%w: no active show", ErrNotFound)
	}

	// Serialize position assignment per show
	if err := uow.ShowRepository().LockShow(ctx, show.ID); err != nil {
		return nil, err
	}

	existing, err := uow.ShowRepository().GetActiveEntry(ctx, show.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: already queued for this show", ErrPreconditionFailed)
	}

	if _, err := ApplyLedgerEntry(ctx, uow, &models.LedgerEntry{
		UserID:   userID,
		Amount:   -show.EntryFee,
		CoinKind: models.CoinKindPaid,
		Type:     models.TransactionTypeEntryFee,
		Metadata: map[string]any{"show_id": show.ID.String()},
	}); err != nil {
		return nil, err
	}

	maxPosition, err := uow.ShowRepository().GetMaxPosition(ctx, show.ID)
	if err != nil {
		return nil, err
	}

	entry := &models.WaitlistEntry{
		ShowID:   show.ID,
		UserID:   userID,
		Position: maxPosition + 1,
		Status:   models.WaitlistStatusWaiting,
		FeePaid:  true,
	}
	if err := uow.ShowRepository().CreateEntry(ctx, entry); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: waitlist position race lost", ErrConflict)
		}
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return entry, nil
}

// LeaveWaitlist marks a non-performing entry as left. A performing
// entry has to go through EndPerformance instead.
func (s *showService) LeaveWaitlist(ctx context.Context, userID, showID uuid.UUID) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entry, err := uow.ShowRepository().GetActiveEntry(ctx, showID, userID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: no active waitlist entry", ErrNotFound)
	}
	if entry.Status == models.WaitlistStatusPerforming {
		return fmt.Errorf("%w: cannot leave while performing", ErrPreconditionFailed)
	}

	entry.Status = models.WaitlistStatusLeft
	if err := uow.ShowRepository().UpdateEntry(ctx, entry); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CastVote upserts the voter's vote and recounts the entry's tallies.
// Re-casting replaces the previous vote, so the tally always reflects
// one vote per voter.
func (s *showService) CastVote(ctx context.Context, showID uuid.UUID, entryID int64, voterID uuid.UUID, voteType models.VoteType) (*models.VoteTally, error) {
	if voteType != models.VoteTypeKeep && voteType != models.VoteTypeKick {
		return nil, fmt.Errorf("%w: unknown vote type %q", ErrValidation, voteType)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	entry, err := uow.ShowRepository().GetEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.ShowID != showID {
		return nil, fmt.Errorf("%w: waitlist entry %d", ErrNotFound, entryID)
	}
	if entry.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: entry is no longer votable", ErrPreconditionFailed)
	}

	vote := &models.ShowVote{
		WaitlistEntryID: entry.ID,
		VoterID:         voterID,
		VoteType:        voteType,
	}
	if err := uow.ShowRepository().UpsertVote(ctx, vote); err != nil {
		return nil, err
	}

	tally, err := uow.ShowRepository().CountVotes(ctx, entry.ID)
	if err != nil {
		return nil, err
	}

	entry.VotesReceived = tally.Keep
	entry.VotesAgainst = tally.Kick
	if err := uow.ShowRepository().UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return tally, nil
}

// StartPerformance rotates the performer slot to the given user
func (s *showService) StartPerformance(ctx context.Context, showID, performerID uuid.UUID) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// The lock keeps two concurrent starts from both reading an empty
	// performer slot
	if err := uow.ShowRepository().LockShow(ctx, showID); err != nil {
		return err
	}

	show, err := uow.ShowRepository().GetByID(ctx, showID)
	if err != nil {
		return err
	}
	if show == nil {
		return fmt.Errorf("%w: show %s", ErrNotFound, showID)
	}
	if !show.Active {
		return fmt.Errorf("%w: show is not active", ErrPreconditionFailed)
	}
	if show.CurrentPerformerID != nil {
		return fmt.Errorf("%w: a performance is already in progress", ErrPreconditionFailed)
	}

	entry, err := uow.ShowRepository().GetActiveEntry(ctx, showID, performerID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: performer has no waitlist entry", ErrNotFound)
	}
	if entry.Status != models.WaitlistStatusWaiting {
		return fmt.Errorf("%w: entry is not waiting", ErrPreconditionFailed)
	}

	now := time.Now()
	show.CurrentPerformerID = &performerID
	show.PerformanceStartedAt = &now
	if err := uow.ShowRepository().Update(ctx, show); err != nil {
		return err
	}

	entry.Status = models.WaitlistStatusPerforming
	entry.PerformanceStartedAt = &now
	if err := uow.ShowRepository().UpdateEntry(ctx, entry); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{"showID": showID, "performerID": performerID}).Info("Performance started")
	return nil
}

// EndPerformance completes the performance, clears the performer slot
// and pays out when the duration clears the win threshold
func (s *showService) EndPerformance(ctx context.Context, showID, performerID uuid.UUID) (*models.PerformanceResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.ShowRepository().LockShow(ctx, showID); err != nil {
		return nil, err
	}

	show, err := uow.ShowRepository().GetByID(ctx, showID)
	if err != nil {
		return nil, err
	}
	if show == nil {
		return nil, fmt.Errorf("%w: show %s", ErrNotFound, showID)
	}
	if show.CurrentPerformerID == nil || *show.CurrentPerformerID != performerID {
		return nil, fmt.Errorf("%w: user is not the current performer", ErrPreconditionFailed)
	}

	entry, err := uow.ShowRepository().GetActiveEntry(ctx, showID, performerID)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Status != models.WaitlistStatusPerforming {
		return nil, fmt.Errorf("%w: no performing entry for user", ErrPreconditionFailed)
	}

	now := time.Now()
	duration := 0
	if entry.PerformanceStartedAt != nil {
		duration = int(now.Sub(*entry.PerformanceStartedAt).Seconds())
	}

	entry.Status = models.WaitlistStatusCompleted
	entry.PerformanceEndedAt = &now
	entry.DurationSeconds = &duration
	if err := uow.ShowRepository().UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}

	show.CurrentPerformerID = nil
	show.PerformanceStartedAt = nil
	if err := uow.ShowRepository().Update(ctx, show); err != nil {
		return nil, err
	}

	cfg := config.Get()
	won := duration >= cfg.MinPerformanceSeconds
	payout := int64(0)
	if won {
		payout = cfg.ShowWinPayout
		if _, err := ApplyLedgerEntry(ctx, uow, &models.LedgerEntry{
			UserID:   performerID,
			Amount:   payout,
			CoinKind: models.CoinKindBonus,
			Type:     models.TransactionTypeWinPayout,
			Metadata: map[string]any{"show_id": show.ID.String(), "duration_seconds": duration},
		}); err != nil {
			return nil, err
		}

		if err := uow.UserRepository().RecordWin(ctx, performerID, payout); err != nil {
			return nil, err
		}
	}

	uow.EventBus().Publish(events.PerformanceEndedEvent{
		ShowID:          show.ID,
		PerformerID:     performerID,
		DurationSeconds: duration,
		Won:             won,
		Payout:          payout,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"showID":      showID,
		"performerID": performerID,
		"duration":    duration,
		"won":         won,
	}).Info("Performance ended")

	return &models.PerformanceResult{
		Entry:           entry,
		DurationSeconds: duration,
		Won:             won,
		Payout:          payout,
	}, nil
}

// GetWaitlist returns a show's entries ordered by position
func (s *showService) GetWaitlist(ctx context.Context, showID uuid.UUID) ([]*models.WaitlistEntry, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	show, err := uow.ShowRepository().GetByID(ctx, showID)
	if err != nil {
		return nil, err
	}
	if show == nil {
		return nil, fmt.Errorf("%w: show %s", ErrNotFound, showID)
	}

	return uow.ShowRepository().ListEntries(ctx, showID)
}
