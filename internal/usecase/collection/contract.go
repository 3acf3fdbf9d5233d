package collection

import "context"

// IndexRepo defines the vector index contract for collection administration.
type IndexRepo interface {
	EnsureCollection(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int, error)
	DropAll(ctx context.Context) error
}
