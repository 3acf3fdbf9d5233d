package collection

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/inscribe-ai/inscribe/internal/logger"
)

// Status reports the state of the chunk collection.
type Status struct {
	Exists bool `json:"exists"`
	Chunks int  `json:"chunks"`
}

// Service administers the chunk collection.
type Service struct {
	index IndexRepo
}

// New creates a collection admin service.
func New(index IndexRepo) *Service {
	return &Service{index: index}
}

// EnsureReady creates the collection index if it does not exist yet.
func (s *Service) EnsureReady(ctx context.Context) error {
	if err := s.index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	return nil
}

// Status returns whether the collection exists and how many chunks it holds.
func (s *Service) Status(ctx context.Context) (Status, error) {
	exists, err := s.index.Exists(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		return Status{}, nil
	}

	count, err := s.index.Count(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("count chunks: %w", err)
	}
	return Status{Exists: true, Chunks: count}, nil
}

// Clear drops the index and deletes every stored chunk.
func (s *Service) Clear(ctx context.Context) error {
	log := logger.FromContext(ctx)

	if err := s.index.DropAll(ctx); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	log.Info("collection cleared", zap.String("op", "clear"))
	return nil
}
