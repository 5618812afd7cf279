package cache

import (
	"context"
	"time"

	"flowershop/backend/internal/domain"
)

// CalendarCache holds assembled calendar months. Invalidate drops every key with the prefix.
type CalendarCache interface {
	Get(ctx context.Context, key string) (*domain.CalendarResponse, bool, error)
	Set(ctx context.Context, key string, value *domain.CalendarResponse, ttl time.Duration) error
	Invalidate(ctx context.Context, prefix string) error
}

type NoopCalendarCache struct{}

func (NoopCalendarCache) Get(_ context.Context, _ string) (*domain.CalendarResponse, bool, error) {
	return nil, false, nil
}

func (NoopCalendarCache) Set(_ context.Context, _ string, _ *domain.CalendarResponse, _ time.Duration) error {
	return nil
}

func (NoopCalendarCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
