package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"flowershop/backend/internal/cache"
	"flowershop/backend/internal/calendar"
	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/ledger"
	"flowershop/backend/internal/metrics"
	"flowershop/backend/internal/pricing"
	"flowershop/backend/internal/store"
	"flowershop/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	HeadquartersBranchID string
	Location             *time.Location
	PointPolicy          pricing.PointPolicy
	Cache                cache.CalendarCache
	CacheTTL             time.Duration
	Notifier             Notifier
	Metrics              *metrics.Metrics
	Now                  func() time.Time
}

type Service struct {
	repo       store.Repository
	calculator *pricing.Calculator
	costs      *ledger.DeliveryCostLedger
	aggregator *calendar.Aggregator
	cache      cache.CalendarCache
	cacheTTL   time.Duration
	notifier   Notifier
	metrics    *metrics.Metrics
	location   *time.Location
	hqBranchID string
	now        func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.HeadquartersBranchID == "" {
		opts.HeadquartersBranchID = "hq"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopCalendarCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.Notifier == nil {
		opts.Notifier = NoopNotifier{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	utcNow := func() time.Time { return now().UTC() }

	return &Service{
		repo:       repo,
		calculator: pricing.NewCalculator(opts.PointPolicy),
		costs:      ledger.NewDeliveryCostLedger(repo, utcNow),
		aggregator: calendar.New(opts.HeadquartersBranchID, opts.Location),
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		location:   opts.Location,
		hqBranchID: opts.HeadquartersBranchID,
		now:        utcNow,
	}
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.Actor{}, fmt.Errorf("%w: authentication required", domain.ErrForbidden)
	}
	return actor, nil
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if !actor.IsAdmin() {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", domain.ErrForbidden)
	}
	return actor, nil
}

// branchScope resolves the branch an actor works on. Admins may pick any branch or none;
// staff are pinned to their own.
func branchScope(actor domain.Actor, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if actor.IsAdmin() {
		return requested, nil
	}
	if requested == "" || requested == actor.BranchID {
		return actor.BranchID, nil
	}
	return "", fmt.Errorf("%w: branch %s belongs to another franchise", domain.ErrForbidden, requested)
}

func checkBranchAccess(actor domain.Actor, branchID string) error {
	if actor.IsAdmin() || (actor.BranchID != "" && actor.BranchID == branchID) {
		return nil
	}
	return fmt.Errorf("%w: branch %s belongs to another franchise", domain.ErrForbidden, branchID)
}

func (s *Service) viewer(actor domain.Actor) calendar.Viewer {
	return calendar.Viewer{Username: actor.Username, BranchID: actor.BranchID, IsAdmin: actor.IsAdmin()}
}

// day parses YYYY-MM-DD in the service location and returns [start, start+1 day). An empty
// value means today.
func (s *Service) day(date string) (time.Time, time.Time, error) {
	var start time.Time
	if strings.TrimSpace(date) == "" {
		now := s.now().In(s.location)
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	} else {
		parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(date), s.location)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", domain.ErrValidation)
		}
		start = parsed
	}
	return start, start.AddDate(0, 0, 1), nil
}

func (s *Service) invalidateCalendar(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, calendarCachePrefix); err != nil {
		log.Warn().Err(err).Str("component", "calendar-cache").Msg("invalidate failed")
	}
}

func (s *Service) logAudit(ctx context.Context, branchID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		BranchID:      branchID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		log.Warn().Err(err).
			Str("component", "audit").
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("failed to write audit log")
	}
}

func (s *Service) notify(ctx context.Context, event string, branchID string, entityID string, message string) {
	s.notifier.Notify(ctx, Notification{
		Event:    event,
		BranchID: branchID,
		EntityID: entityID,
		Message:  message,
		At:       s.now(),
	})
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
