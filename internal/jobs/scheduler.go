package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"imageguard/api/internal/repository"
	"imageguard/api/internal/storage"
)

const sweepBatchSize = 500

// Scheduler runs the retention sweep: rejected images past their expiry are
// removed from object storage and the database.
type Scheduler struct {
	cron   *cron.Cron
	images *repository.ImageRepository
	store  *storage.ObjectStore
	log    zerolog.Logger
}

func NewScheduler(images *repository.ImageRepository, store *storage.ObjectStore, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		images: images,
		store:  store,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.sweepExpired); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits briefly for a running sweep to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expired, err := s.images.ListExpired(ctx, time.Now().UTC(), sweepBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("list expired images failed")
		return
	}
	if len(expired) == 0 {
		return
	}

	keys := make([]string, 0, len(expired))
	imageIDs := make([]string, 0, len(expired))
	for _, image := range expired {
		keys = append(keys, image.ObjectKey)
		imageIDs = append(imageIDs, image.ID)
	}

	if err := s.store.Remove(ctx, keys); err != nil {
		// rows stay until the objects are gone; the next sweep retries
		s.log.Error().Err(err).Msg("remove expired objects failed")
		return
	}

	deleted, err := s.images.Delete(ctx, imageIDs)
	if err != nil {
		s.log.Error().Err(err).Msg("delete expired rows failed")
		return
	}

	s.log.Info().Int64("deleted", deleted).Msg("retention sweep completed")
}
