package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sweeper force-completes battles whose scoring window has passed.
// Completion is idempotent, so the sweep and direct Complete calls can
// never double-process the same battle.
type Sweeper struct {
	uowFactory    UnitOfWorkFactory
	battleService BattleService
	interval      time.Duration
}

// NewSweeper creates a new expiration sweeper
func NewSweeper(uowFactory UnitOfWorkFactory, battleService BattleService, interval time.Duration) *Sweeper {
	return &Sweeper{
		uowFactory:    uowFactory,
		battleService: battleService,
		interval:      interval,
	}
}

// Run sweeps on the configured interval until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.WithFields(log.Fields{"interval": s.interval}).Info("Expiration sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info("Expiration sweeper stopped")
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				log.WithError(err).Error("Expiration sweep failed")
			}
		}
	}
}

// SweepOnce completes all currently expired battles
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	expired, err := uow.BattleRepository().GetExpiredActive(ctx, time.Now())
	uow.Rollback()
	if err != nil {
		return err
	}

	for _, battle := range expired {
		if _, err := s.battleService.Complete(ctx, battle.ID); err != nil {
			log.WithFields(log.Fields{
				"battleID": battle.ID,
				"error":    err,
			}).Error("Failed to sweep expired battle")
		}
	}

	if len(expired) > 0 {
		log.WithFields(log.Fields{"count": len(expired)}).Info("Swept expired battles")
	}

	return nil
}
