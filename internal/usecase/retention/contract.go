package retention

import "context"

// IndexRepo defines the vector index contract for the retention sweeper.
type IndexRepo interface {
	FindOlderThan(ctx context.Context, threshold int64) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}
