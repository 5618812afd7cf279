package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/fulfillment"
	"flowershop/backend/internal/ledger"
	"flowershop/backend/internal/pricing"
	"flowershop/backend/internal/store"
	"flowershop/backend/internal/xid"
)

type quoteContext struct {
	branchID   string
	summary    domain.OrderSummary
	feeMode    pricing.FeeMode
	table      *domain.DeliveryFeeTable
	balance    int64
	customerID string
}

// Quote prices a cart without committing anything. The fulfillment draft is decoded leniently so
// an order screen can price a delivery before the date or address is filled in.
func (s *Service) Quote(ctx context.Context, req domain.QuoteRequest) (domain.QuoteResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.QuoteResponse{}, err
	}
	draft, err := req.Fulfillment.Decode()
	if err != nil {
		return domain.QuoteResponse{}, err
	}

	q, err := s.price(ctx, actor, req, draft)
	if err != nil {
		return domain.QuoteResponse{}, err
	}

	resp := domain.QuoteResponse{
		Summary:            q.summary,
		DiscountedSubtotal: q.summary.DiscountedSubtotal(),
		CustomerPoints:     q.balance,
		FeeMode:            string(q.feeMode),
	}
	if q.customerID != "" && pricing.CanRedeem(true, resp.DiscountedSubtotal) {
		resp.MaxRedeemablePoints = pricing.MaxRedeemable(q.balance, resp.DiscountedSubtotal)
	}
	if q.table != nil {
		surcharges := q.table.Surcharges
		resp.Surcharges = &surcharges
	}
	return resp, nil
}

func (s *Service) price(ctx context.Context, actor domain.Actor, req domain.QuoteRequest, f domain.Fulfillment) (quoteContext, error) {
	branchID, err := branchScope(actor, req.BranchID)
	if err != nil {
		return quoteContext{}, err
	}
	if branchID == "" {
		return quoteContext{}, fmt.Errorf("%w: branch_id is required", domain.ErrValidation)
	}
	branch, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return quoteContext{}, err
	}
	tiers, err := s.repo.ListDiscountTiers(ctx, branchID)
	if err != nil {
		return quoteContext{}, err
	}
	selection, err := pricing.SelectTier(tiers, branchID, req.Discount.SelectedTierRate, req.Discount.CustomRate)
	if err != nil {
		return quoteContext{}, err
	}

	mode := pricing.FeeMode(defaultString(req.DeliveryFee.Mode, string(pricing.FeeModeAuto)))
	if mode == pricing.FeeModeAuto && branch.DeliveryFees == nil {
		mode = pricing.FeeModeManual
	}
	if mode == pricing.FeeModeManual && req.DeliveryFee.ManualFee < 0 {
		return quoteContext{}, fmt.Errorf("%w: delivery fee cannot be negative", domain.ErrValidation)
	}
	district := strings.TrimSpace(req.DeliveryFee.District)
	if delivery, ok := f.(domain.ReservedDelivery); ok && district == "" {
		district = delivery.District
	}

	customerID := strings.TrimSpace(req.CustomerID)
	var balance int64
	if customerID != "" {
		customer, err := s.repo.GetCustomer(ctx, customerID)
		if err != nil {
			return quoteContext{}, err
		}
		balance = customer.Points
	}

	summary, err := s.calculator.Compute(req.Items,
		pricing.DiscountInputs{
			BranchID:  branchID,
			Tiers:     tiers,
			Selection: selection,
		},
		pricing.DeliveryInputs{
			BranchID:    branchID,
			Fulfillment: f,
			Mode:        mode,
			ManualFee:   req.DeliveryFee.ManualFee,
			Table:       branch.DeliveryFees,
			District:    district,
		},
		pricing.PointInputs{
			CustomerSelected: customerID != "",
			Balance:          balance,
			Requested:        req.PointsRequested,
			EntryPath:        defaultString(req.EntryPath, domain.EntryPathFull),
		},
	)
	if err != nil {
		return quoteContext{}, err
	}

	return quoteContext{
		branchID:   branchID,
		summary:    summary,
		feeMode:    mode,
		table:      branch.DeliveryFees,
		balance:    balance,
		customerID: customerID,
	}, nil
}

// CreateOrder prices and commits an order in one step. Replaying an idempotency key returns the
// order stored the first time without moving points again.
func (s *Service) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = xid.New("idem")
	}
	existing, err := s.repo.FindOrderByIdempotency(ctx, key)
	if err == nil {
		return replayResponse(actor, *existing)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.CreateOrderResponse{}, err
	}

	if req.SystemGenerated && !actor.IsAdmin() {
		return domain.CreateOrderResponse{}, fmt.Errorf("%w: only headquarters can generate orders", domain.ErrForbidden)
	}
	req.EntryPath = defaultString(req.EntryPath, domain.EntryPathFull)

	f, err := fulfillment.Schedule(req.Fulfillment)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}
	q, err := s.price(ctx, actor, req.QuoteRequest, f)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}
	if q.summary.Total < 0 {
		return domain.CreateOrderResponse{}, fmt.Errorf("%w: order total cannot be negative", domain.ErrValidation)
	}

	payment, err := s.buildPayment(req.Payment, q.summary.Total)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}

	order := domain.Order{
		ID:              xid.New("ord"),
		IdempotencyKey:  key,
		BranchID:        q.branchID,
		CustomerID:      q.customerID,
		Orderer:         req.Orderer,
		Items:           req.Items,
		Summary:         q.summary,
		Payment:         payment,
		Fulfillment:     f,
		SystemGenerated: req.SystemGenerated,
		EntryPath:       req.EntryPath,
		Memo:            strings.TrimSpace(req.Memo),
		CreatedBy:       actor.Username,
		CreatedAt:       s.now(),
	}
	order.DeliveryCost = ledger.OpenDeliveryCost(order)

	stored, err := s.repo.CommitOrder(ctx, order)
	if err != nil {
		return domain.CreateOrderResponse{}, err
	}
	if stored.ID != order.ID {
		// lost a race against the same key
		return replayResponse(actor, *stored)
	}

	s.metrics.OrderCommitted(stored.BranchID, stored.EntryPath, stored.Summary.PointsUsed, stored.Summary.PointsEarned)
	s.logAudit(ctx, stored.BranchID, "order_create", "order", stored.ID,
		fmt.Sprintf("total=%d points_used=%d points_earned=%d", stored.Summary.Total, stored.Summary.PointsUsed, stored.Summary.PointsEarned))
	s.notify(ctx, "order.created", stored.BranchID, stored.ID, fmt.Sprintf("new %s order", stored.Fulfillment.Type()))
	s.invalidateCalendar(ctx)

	return orderResponse(*stored, false), nil
}

func (s *Service) buildPayment(req domain.PaymentRequest, total int64) (domain.Payment, error) {
	method := defaultString(req.Method, domain.PaymentMethodCard)
	if !domain.IsPaymentMethod(method) {
		return domain.Payment{}, fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, method)
	}
	status := defaultString(req.Status, domain.PaymentStatusCompleted)

	if status == domain.PaymentStatusSplit {
		first := defaultString(req.FirstPaymentMethod, method)
		second := strings.TrimSpace(req.SecondPaymentMethod)
		if !domain.IsPaymentMethod(first) || !domain.IsPaymentMethod(second) {
			return domain.Payment{}, fmt.Errorf("%w: split payment needs two payment methods", domain.ErrValidation)
		}
		split := pricing.SplitPayment(total, req.FirstPaymentAmount)
		return domain.Payment{
			Method:              first,
			Status:              domain.PaymentStatusSplit,
			FirstPaymentAmount:  split.First,
			FirstPaymentMethod:  first,
			SecondPaymentMethod: second,
		}, nil
	}

	payment := domain.Payment{Method: method, Status: status}
	switch status {
	case domain.PaymentStatusPaid, domain.PaymentStatusCompleted:
		now := s.now()
		payment.CompletedAt = &now
	case domain.PaymentStatusPending:
	default:
		return domain.Payment{}, fmt.Errorf("%w: unknown payment status %q", domain.ErrValidation, status)
	}
	return payment, nil
}

// replayResponse returns an order stored under a reused idempotency key, but only to actors
// that may see its branch.
func replayResponse(actor domain.Actor, order domain.Order) (domain.CreateOrderResponse, error) {
	if err := checkBranchAccess(actor, order.BranchID); err != nil {
		return domain.CreateOrderResponse{}, err
	}
	return orderResponse(order, true), nil
}

func orderResponse(order domain.Order, duplicate bool) domain.CreateOrderResponse {
	resp := domain.CreateOrderResponse{Order: order, Duplicate: duplicate}
	if order.Payment.IsSplit() {
		resp.Split = &domain.SplitAmounts{
			First:  order.Payment.FirstPaymentAmount,
			Second: order.Payment.SecondPaymentAmount(order.Summary.Total),
		}
	}
	return resp
}

func (s *Service) loadOrder(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	order, err := s.repo.FindOrderByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if err := checkBranchAccess(actor, order.BranchID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.loadOrder(ctx, actor, id)
}

func (s *Service) CompleteOrder(ctx context.Context, id string) (*domain.Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	completed, err := fulfillment.Complete(*order, s.now())
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.UpdateOrder(ctx, completed, order.Status)
	if err != nil {
		return nil, err
	}

	s.metrics.OrderClosed(stored.BranchID, stored.Status)
	s.logAudit(ctx, stored.BranchID, "order_complete", "order", stored.ID, "")
	s.notify(ctx, "order.completed", stored.BranchID, stored.ID, "order completed")
	s.invalidateCalendar(ctx)
	return stored, nil
}

// CancelOrder reverses the point movement of a processing order and cancels any open
// outsourcing of it.
func (s *Service) CancelOrder(ctx context.Context, id string, reason string) (*domain.Order, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	canceled, err := fulfillment.Cancel(*order)
	if err != nil {
		return nil, err
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		canceled.Memo = strings.TrimSpace(canceled.Memo + "\ncanceled: " + reason)
	}
	stored, err := s.repo.CancelOrder(ctx, canceled)
	if err != nil {
		return nil, err
	}

	records, err := s.repo.ListOutsource(ctx, stored.BranchID)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if record.OrderID != stored.ID || ledger.IsTerminal(record.State) {
			continue
		}
		next, err := ledger.Transition(record, domain.OutsourceCanceled, s.now())
		if err != nil {
			return nil, err
		}
		if _, err := s.repo.UpdateOutsource(ctx, next); err != nil {
			return nil, err
		}
		s.notify(ctx, "outsource.canceled", next.PartnerBranchID, next.ID, "source order canceled")
	}

	s.metrics.OrderClosed(stored.BranchID, stored.Status)
	s.logAudit(ctx, stored.BranchID, "order_cancel", "order", stored.ID, reason)
	s.notify(ctx, "order.canceled", stored.BranchID, stored.ID, "order canceled")
	s.invalidateCalendar(ctx)
	return stored, nil
}

func (s *Service) AssignDriver(ctx context.Context, id string, req domain.AssignDriverRequest) (*domain.Order, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	assigned, err := fulfillment.AssignDriver(*order, domain.Driver{Name: req.Name, Affiliation: req.Affiliation})
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.UpdateOrder(ctx, assigned, order.Status)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, stored.BranchID, "driver_assign", "order", stored.ID, stored.Driver.Name)
	return stored, nil
}

// RecordDeliveryCost stores the actual delivery cost and books it as a transport expense.
func (s *Service) RecordDeliveryCost(ctx context.Context, id string, actualCost int64) (*domain.Order, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	stored, err := s.costs.RecordActualCost(ctx, *order, actualCost)
	if err != nil {
		return nil, err
	}
	record := stored.DeliveryCost
	s.logAudit(ctx, stored.BranchID, "delivery_cost_record", "order", stored.ID,
		fmt.Sprintf("fee=%d cost=%d profit=%d", record.CustomerFee, record.ActualCost, record.Profit))
	return stored, nil
}

// SwitchFulfillment converts a draft between fulfillment types on the order screen.
func (s *Service) SwitchFulfillment(ctx context.Context, req domain.FulfillmentSwitchRequest) (domain.FulfillmentRecord, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.FulfillmentRecord{}, err
	}
	current, err := req.Current.Decode()
	if err != nil {
		return domain.FulfillmentRecord{}, err
	}
	next, err := fulfillment.Switch(current, req.To, req.Orderer)
	if err != nil {
		return domain.FulfillmentRecord{}, err
	}
	return domain.RecordOf(next), nil
}

func (s *Service) OrderRevenue(ctx context.Context, id string) ([]pricing.RevenueTranche, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return pricing.RevenueTranches(*order), nil
}
