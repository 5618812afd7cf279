package service

import (
	"context"
	"fmt"
	"strings"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/ledger"
	"flowershop/backend/internal/xid"
)

func (s *Service) CreateOutsource(ctx context.Context, req domain.OutsourceCreateRequest) (*domain.OutsourceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, actor, req.OrderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetBranch(ctx, strings.TrimSpace(req.PartnerBranchID)); err != nil {
		return nil, fmt.Errorf("partner branch: %w", err)
	}

	record, err := ledger.NewOutsourceRecord(xid.New("out"), *order, req.PartnerBranchID, req.PartnerPrice, req.Note, s.now())
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.CreateOutsource(ctx, record)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, stored.BranchID, "outsource_create", "outsource", stored.ID,
		fmt.Sprintf("order=%s partner=%s price=%d", stored.OrderID, stored.PartnerBranchID, stored.PartnerPrice))
	s.notify(ctx, "outsource.requested", stored.PartnerBranchID, stored.ID, "order routed from "+stored.BranchID)
	return stored, nil
}

func (s *Service) loadOutsource(ctx context.Context, actor domain.Actor, id string) (*domain.OutsourceRecord, error) {
	record, err := s.repo.GetOutsource(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if checkBranchAccess(actor, record.BranchID) != nil && checkBranchAccess(actor, record.PartnerBranchID) != nil {
		return nil, fmt.Errorf("%w: outsource %s belongs to other branches", domain.ErrForbidden, record.ID)
	}
	return record, nil
}

// TransitionOutsource moves a record to its next state. Either side of the arrangement may do so.
func (s *Service) TransitionOutsource(ctx context.Context, id string, state string) (*domain.OutsourceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	record, err := s.loadOutsource(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	next, err := ledger.Transition(*record, strings.TrimSpace(state), s.now())
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.UpdateOutsource(ctx, next)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, stored.BranchID, "outsource_"+stored.State, "outsource", stored.ID, "")
	target := stored.PartnerBranchID
	if actor.BranchID == stored.PartnerBranchID {
		target = stored.BranchID
	}
	s.notify(ctx, "outsource."+stored.State, target, stored.ID, "outsource "+stored.State)
	return stored, nil
}

// UpdateOutsource changes the partner price or note. Only the originating branch may do so.
func (s *Service) UpdateOutsource(ctx context.Context, id string, req domain.OutsourceUpdateRequest) (*domain.OutsourceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	record, err := s.loadOutsource(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := checkBranchAccess(actor, record.BranchID); err != nil {
		return nil, err
	}
	if ledger.IsTerminal(record.State) {
		return nil, fmt.Errorf("%w: outsource %s is %s", domain.ErrInvalidStateTransition, record.ID, record.State)
	}

	next := *record
	if req.PartnerPrice != nil {
		next, err = ledger.SetPartnerPrice(next, *req.PartnerPrice)
		if err != nil {
			return nil, err
		}
	}
	if req.Note != nil {
		next.Note = strings.TrimSpace(*req.Note)
	}
	stored, err := s.repo.UpdateOutsource(ctx, next)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, stored.BranchID, "outsource_update", "outsource", stored.ID,
		fmt.Sprintf("price=%d profit=%d", stored.PartnerPrice, stored.Profit))
	return stored, nil
}

func (s *Service) ListOutsource(ctx context.Context, branchID string) ([]domain.OutsourceRecord, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := branchScope(actor, branchID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListOutsource(ctx, scope)
}
