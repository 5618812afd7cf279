package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"flowershop/backend/internal/calendar"
	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/pricing"
	"flowershop/backend/internal/xid"
)

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListBranches(ctx)
}

func (s *Service) ListDiscountTiers(ctx context.Context, branchID string) ([]domain.DiscountTier, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := branchScope(actor, branchID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListDiscountTiers(ctx, scope)
}

func (s *Service) CreateDiscountTier(ctx context.Context, req domain.DiscountTierCreateRequest) (*domain.DiscountTier, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if req.Rate < 0 || req.Rate > pricing.MaxCustomRate {
		return nil, fmt.Errorf("%w: rate must be between 0 and %.0f", domain.ErrValidation, pricing.MaxCustomRate)
	}
	if req.MinSubtotal < 0 {
		return nil, fmt.Errorf("%w: minimum subtotal cannot be negative", domain.ErrValidation)
	}
	branchID := strings.TrimSpace(req.BranchID)
	if branchID != "" {
		if _, err := s.repo.GetBranch(ctx, branchID); err != nil {
			return nil, err
		}
	}

	tier, err := s.repo.CreateDiscountTier(ctx, domain.DiscountTier{
		ID:          xid.New("tier"),
		Label:       strings.TrimSpace(req.Label),
		Rate:        req.Rate,
		BranchID:    branchID,
		MinSubtotal: req.MinSubtotal,
		Active:      true,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tier.BranchID, "discount_tier_create", "discount_tier", tier.ID, fmt.Sprintf("%s %.1f%%", tier.Label, tier.Rate))
	return tier, nil
}

func (s *Service) SetDiscountTierActive(ctx context.Context, id string, active bool) (*domain.DiscountTier, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	tier, err := s.repo.UpdateDiscountTierActive(ctx, strings.TrimSpace(id), active)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, tier.BranchID, "discount_tier_update", "discount_tier", tier.ID, fmt.Sprintf("active=%t", tier.Active))
	return tier, nil
}

func (s *Service) GetDeliveryFees(ctx context.Context, branchID string) (*domain.DeliveryFeeTable, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkBranchAccess(actor, branchID); err != nil {
		return nil, err
	}
	branch, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if branch.DeliveryFees == nil {
		return nil, fmt.Errorf("branch %s has no delivery fee table: %w", branchID, domain.ErrNotFound)
	}
	return branch.DeliveryFees, nil
}

// Surcharge reads one surcharge from a branch table. Surcharges are never added to the fee
// automatically.
func (s *Service) Surcharge(ctx context.Context, branchID string, kind pricing.SurchargeKind) (int64, error) {
	table, err := s.GetDeliveryFees(ctx, branchID)
	if err != nil {
		return 0, err
	}
	amount, ok := pricing.LookupSurcharge(table, kind)
	if !ok {
		return 0, fmt.Errorf("%w: unknown surcharge %q", domain.ErrValidation, kind)
	}
	return amount, nil
}

// UpdateDeliveryFees replaces a branch fee table. A nil table removes it and the branch falls
// back to manual delivery fees.
func (s *Service) UpdateDeliveryFees(ctx context.Context, branchID string, table *domain.DeliveryFeeTable) (*domain.Branch, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if table != nil {
		if err := validateFeeTable(table); err != nil {
			return nil, err
		}
	}
	branch, err := s.repo.UpdateDeliveryFees(ctx, branchID, table)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, branch.ID, "delivery_fees_update", "branch", branch.ID, fmt.Sprintf("rows=%d", feeRows(table)))
	return branch, nil
}

func validateFeeTable(table *domain.DeliveryFeeTable) error {
	seen := make(map[string]struct{}, len(table.Rows))
	for i, row := range table.Rows {
		district := strings.TrimSpace(row.District)
		if district == "" {
			return fmt.Errorf("%w: row %d has no district", domain.ErrValidation, i+1)
		}
		if row.Fee < 0 {
			return fmt.Errorf("%w: fee for %s cannot be negative", domain.ErrValidation, district)
		}
		if _, dup := seen[district]; dup {
			return fmt.Errorf("%w: district %s listed twice", domain.ErrValidation, district)
		}
		seen[district] = struct{}{}
		table.Rows[i].District = district
	}
	sc := table.Surcharges
	if sc.Medium < 0 || sc.Large < 0 || sc.Express < 0 {
		return fmt.Errorf("%w: surcharges cannot be negative", domain.ErrValidation)
	}
	return nil
}

func feeRows(table *domain.DeliveryFeeTable) int {
	if table == nil {
		return 0
	}
	return len(table.Rows)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerCreateRequest) (*domain.Customer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	branchID, err := branchScope(actor, req.BranchID)
	if err != nil {
		return nil, err
	}
	if branchID == "" {
		return nil, fmt.Errorf("%w: branch_id is required", domain.ErrValidation)
	}
	if req.Points != 0 && !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only headquarters can grant opening points", domain.ErrForbidden)
	}
	if req.Points < 0 {
		return nil, fmt.Errorf("%w: points cannot be negative", domain.ErrValidation)
	}
	day := strings.TrimSpace(req.MonthlyPaymentDay)
	if day != "" {
		if _, ok := calendar.ParsePaymentDay(day); !ok {
			return nil, fmt.Errorf("%w: monthly payment day must be 1-31", domain.ErrValidation)
		}
	}

	customer, err := s.repo.CreateCustomer(ctx, domain.Customer{
		ID:                xid.New("cust"),
		Name:              strings.TrimSpace(req.Name),
		Type:              defaultString(req.Type, domain.CustomerTypeIndividual),
		BranchID:          branchID,
		Contact:           strings.TrimSpace(req.Contact),
		Points:            req.Points,
		MonthlyPaymentDay: day,
		CreatedAt:         s.now(),
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, customer.BranchID, "customer_create", "customer", customer.ID, customer.Name)
	if day != "" {
		s.invalidateCalendar(ctx)
	}
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	customer, err := s.repo.GetCustomer(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if err := checkBranchAccess(actor, customer.BranchID); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, branchID string) ([]domain.Customer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := branchScope(actor, branchID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, scope)
}

// RevenueReport totals the revenue tranches recognised on one day. A split order contributes
// its first tranche on the day it was taken and its second on the day payment completed.
func (s *Service) RevenueReport(ctx context.Context, branchID string, date string) (domain.RevenueReport, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	scope, err := branchScope(actor, branchID)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	from, to, err := s.day(date)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	orders, err := s.repo.ListOrdersByActivity(ctx, scope, from.UTC(), to.UTC())
	if err != nil {
		return domain.RevenueReport{}, err
	}

	report := domain.RevenueReport{BranchID: scope, Date: from.Format("2006-01-02")}
	byMethod := map[string]*domain.RevenueByMethod{}
	inDay := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }

	for _, order := range orders {
		createdToday := inDay(order.CreatedAt)
		if createdToday && order.Status != domain.OrderStatusCanceled {
			report.Orders++
			report.DeliveryFees += order.Summary.DeliveryFee
			report.PointsRedeemed += order.Summary.PointsUsed
		}
		for _, tranche := range pricing.RevenueTranches(order) {
			if !tranche.Recognized() {
				if createdToday {
					report.Deferred += tranche.Amount
				}
				continue
			}
			if !inDay(*tranche.RecognizedAt) {
				continue
			}
			report.Recognized += tranche.Amount
			m, ok := byMethod[tranche.Method]
			if !ok {
				m = &domain.RevenueByMethod{Method: tranche.Method}
				byMethod[tranche.Method] = m
			}
			m.Tranches++
			m.Amount += tranche.Amount
		}
	}

	report.ByMethod = make([]domain.RevenueByMethod, 0, len(byMethod))
	for _, m := range byMethod {
		report.ByMethod = append(report.ByMethod, *m)
	}
	slices.SortFunc(report.ByMethod, func(a, b domain.RevenueByMethod) int {
		return strings.Compare(a.Method, b.Method)
	})
	return report, nil
}

func (s *Service) ListExpenses(ctx context.Context, branchID string, date string) ([]domain.Expense, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := branchScope(actor, branchID)
	if err != nil {
		return nil, err
	}
	from, to, err := s.day(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx, scope, from.UTC(), to.UTC())
}

func (s *Service) ListAuditLogs(ctx context.Context, branchID string, date string, limit int) ([]domain.AuditLog, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	scope, err := branchScope(actor, branchID)
	if err != nil {
		return nil, err
	}
	from, to, err := s.day(date)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, scope, from.UTC(), to.UTC(), limit)
}
