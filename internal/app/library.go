package app

import (
	"context"

	"lsat-session-service/internal/domain"
)

// LibraryRepository is the durable test library the host restores its tests
// mapping from between sessions (cache/backing store behind it).
type LibraryRepository interface {
	GetTest(ctx context.Context, testID string) (domain.Test, error)
	ListTests(ctx context.Context) ([]domain.Test, error)
	PutTest(ctx context.Context, test domain.Test) error
}
