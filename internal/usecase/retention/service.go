package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inscribe-ai/inscribe/internal/domain"
	"github.com/inscribe-ai/inscribe/internal/logger"
	"github.com/inscribe-ai/inscribe/internal/metrics"
)

// Service removes chunks older than the retention window. Sweeps are
// idempotent: a chunk is either older than the threshold or it is not,
// so running twice deletes nothing extra.
type Service struct {
	index  IndexRepo
	window time.Duration
	now    func() time.Time
}

// New creates a retention sweeper with the given window.
func New(index IndexRepo, window time.Duration) *Service {
	return &Service{
		index:  index,
		window: window,
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Sweep deletes all chunks whose created_at is strictly older than
// now minus the window. Returns the number of chunks removed. A missing
// collection means nothing was ever ingested and is not an error.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)

	threshold := s.now().Add(-s.window).Unix()

	ids, err := s.index.FindOlderThan(ctx, threshold)
	if err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			log.Debug("collection missing, nothing to sweep")
			return 0, nil
		}
		return 0, fmt.Errorf("find expired chunks: %w", err)
	}

	if len(ids) == 0 {
		log.Debug("retention sweep found nothing to delete",
			zap.Int64("threshold", threshold))
		return 0, nil
	}

	if err := s.index.DeleteByIDs(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete expired chunks: %w", err)
	}

	metrics.SweptChunksTotal.Add(float64(len(ids)))
	log.Info("retention sweep complete",
		zap.Int("deleted", len(ids)),
		zap.Int64("threshold", threshold),
	)
	return len(ids), nil
}
