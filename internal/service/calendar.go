package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"flowershop/backend/internal/calendar"
	"flowershop/backend/internal/domain"
)

const calendarCachePrefix = "calendar:"

func calendarCacheKey(year int, month int, viewer calendar.Viewer) string {
	scope := "admin"
	if !viewer.IsAdmin {
		scope = "branch:" + viewer.BranchID
	}
	return fmt.Sprintf("%s%04d-%02d:%s", calendarCachePrefix, year, month, scope)
}

// Calendar merges manual entries, scheduled orders and customer payment days into one month
// view for the caller.
func (s *Service) Calendar(ctx context.Context, year int, month int) (*domain.CalendarResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12", domain.ErrValidation)
	}
	if year < 2000 || year > 9999 {
		return nil, fmt.Errorf("%w: year out of range", domain.ErrValidation)
	}

	viewer := s.viewer(actor)
	key := calendarCacheKey(year, month, viewer)
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("component", "calendar-cache").Str("key", key).Msg("lookup failed")
	}
	s.metrics.CacheLookup(ok)
	if ok {
		return cached, nil
	}

	window := calendar.MonthWindow(year, time.Month(month), s.location)
	var (
		manual    []domain.CalendarEntry
		orders    []domain.Order
		customers []domain.Customer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		manual, err = s.repo.ListCalendarEntries(gctx, window.From, window.To)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = s.repo.ListScheduledOrders(gctx, window.From, window.To)
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = s.repo.ListCustomers(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &domain.CalendarResponse{
		Year:    year,
		Month:   month,
		Entries: s.aggregator.Aggregate(manual, orders, customers, window, viewer),
	}
	if err := s.cache.Set(ctx, key, resp, s.cacheTTL); err != nil {
		log.Warn().Err(err).Str("component", "calendar-cache").Str("key", key).Msg("store failed")
	}
	return resp, nil
}

func (s *Service) CreateCalendarEntry(ctx context.Context, req domain.CalendarEntryRequest) (*domain.CalendarEntry, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	branchID, err := branchScope(actor, req.BranchID)
	if err != nil {
		return nil, err
	}
	if branchID == "" {
		branchID = s.hqBranchID
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if req.Start.IsZero() {
		return nil, fmt.Errorf("%w: start is required", domain.ErrValidation)
	}
	if req.End != nil && req.End.Before(req.Start) {
		return nil, fmt.Errorf("%w: end cannot be before start", domain.ErrValidation)
	}

	stored, err := s.repo.CreateCalendarEntry(ctx, domain.CalendarEntry{
		Type:        req.Type,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Start:       req.Start,
		End:         req.End,
		BranchID:    branchID,
		Status:      defaultString(req.Status, calendar.StatusScheduled),
		Color:       strings.TrimSpace(req.Color),
		Origin:      domain.EntryOrigin{Kind: domain.OriginManual},
		CreatedBy:   actor.Username,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, stored.BranchID, "calendar_create", "calendar_entry", stored.ID, stored.Title)
	s.invalidateCalendar(ctx)
	return stored, nil
}

func (s *Service) loadEditableEntry(ctx context.Context, actor domain.Actor, id string) (*domain.CalendarEntry, error) {
	id = strings.TrimSpace(id)
	if err := calendar.CheckEditableID(id); err != nil {
		return nil, err
	}
	entry, err := s.repo.GetCalendarEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := calendar.CheckEditable(*entry); err != nil {
		return nil, err
	}
	if err := checkBranchAccess(actor, entry.BranchID); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateCalendarEntry patches a manual entry. Entries derived from orders or payment days are
// rejected with ErrImmutableEntry.
func (s *Service) UpdateCalendarEntry(ctx context.Context, id string, req domain.CalendarEntryUpdateRequest) (*domain.CalendarEntry, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := s.loadEditableEntry(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
		}
		entry.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		entry.Description = strings.TrimSpace(*req.Description)
	}
	if req.Start != nil {
		entry.Start = *req.Start
	}
	if req.End != nil {
		end := *req.End
		entry.End = &end
	}
	if req.Status != nil {
		entry.Status = defaultString(*req.Status, calendar.StatusScheduled)
	}
	if req.Color != nil {
		entry.Color = strings.TrimSpace(*req.Color)
	}
	if entry.End != nil && entry.End.Before(entry.Start) {
		return nil, fmt.Errorf("%w: end cannot be before start", domain.ErrValidation)
	}

	stored, err := s.repo.UpdateCalendarEntry(ctx, *entry)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, stored.BranchID, "calendar_update", "calendar_entry", stored.ID, stored.Title)
	s.invalidateCalendar(ctx)
	return stored, nil
}

func (s *Service) DeleteCalendarEntry(ctx context.Context, id string) error {
	actor, err := requireActor(ctx)
	if err != nil {
		return err
	}
	entry, err := s.loadEditableEntry(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCalendarEntry(ctx, entry.ID); err != nil {
		return err
	}
	s.logAudit(ctx, entry.BranchID, "calendar_delete", "calendar_entry", entry.ID, entry.Title)
	s.invalidateCalendar(ctx)
	return nil
}
