package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/pricing"
	"flowershop/backend/internal/store/memory"
)

var kst = time.FixedZone("KST", 9*60*60)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestService(t *testing.T) (*Service, *memory.Store, *testClock) {
	t.Helper()
	repo := memory.NewSeeded()
	clock := &testClock{now: time.Date(2026, 5, 9, 3, 0, 0, 0, time.UTC)}
	svc := New(repo, Options{
		HeadquartersBranchID: "hq",
		Location:             kst,
		PointPolicy:          pricing.DefaultPointPolicy(),
		Now:                  clock.Now,
	})
	return svc, repo, clock
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin, BranchID: "hq"})
}

func staffCtx(branchID string) context.Context {
	return WithActor(context.Background(), domain.Actor{Username: branchID + "-staff", Role: domain.RoleStaff, BranchID: branchID})
}

func roses(price int64) []domain.OrderItem {
	return []domain.OrderItem{{ID: "rose", Name: "장미 다발", Price: price, Quantity: 1}}
}

func balanceOf(t *testing.T, repo *memory.Store, id string) int64 {
	t.Helper()
	c, err := repo.GetCustomer(context.Background(), id)
	if err != nil {
		t.Fatalf("get customer: %v", err)
	}
	return c.Points
}

func TestQuoteRequiresActor(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Quote(context.Background(), domain.QuoteRequest{BranchID: "gangnam", Items: roses(10000)})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestQuoteAppliesTierDiscountAndDistrictFee(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp, err := svc.Quote(staffCtx("gangnam"), domain.QuoteRequest{
		CustomerID:  "cust-kim",
		Items:       roses(50000),
		Discount:    domain.DiscountRequest{SelectedTierRate: 10},
		Fulfillment: domain.FulfillmentRecord{Type: domain.FulfillmentReservedDelivery, District: "서초구"},
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if resp.Summary.DiscountAmount != 5000 || resp.DiscountedSubtotal != 45000 {
		t.Fatalf("unexpected discount %+v", resp.Summary)
	}
	if resp.Summary.DeliveryFee != 6000 {
		t.Fatalf("expected 서초구 fee 6000, got %d", resp.Summary.DeliveryFee)
	}
	if resp.Summary.PointsEarned != 900 || resp.Summary.Total != 51000 {
		t.Fatalf("unexpected summary %+v", resp.Summary)
	}
	if resp.MaxRedeemablePoints != 3000 || resp.CustomerPoints != 3000 {
		t.Fatalf("unexpected points view %+v", resp)
	}
	if resp.FeeMode != string(pricing.FeeModeAuto) || resp.Surcharges == nil || resp.Surcharges.Express != 10000 {
		t.Fatalf("unexpected fee info %+v", resp)
	}
}

func TestQuoteRejectsUnconfiguredDiscountRates(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := staffCtx("gangnam")

	for _, discount := range []domain.DiscountRequest{
		{SelectedTierRate: 100},
		{SelectedTierRate: 7},
		{CustomRate: 60},
	} {
		_, err := svc.Quote(ctx, domain.QuoteRequest{Items: roses(100000), Discount: discount})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", discount, err)
		}
	}

	resp, err := svc.Quote(ctx, domain.QuoteRequest{Items: roses(100000), Discount: domain.DiscountRequest{SelectedTierRate: 5}})
	if err != nil {
		t.Fatalf("quote with branch tier failed: %v", err)
	}
	if resp.Summary.DiscountAmount != 5000 || resp.Summary.Total != 95000 {
		t.Fatalf("unexpected summary %+v", resp.Summary)
	}

	if _, err := svc.Quote(staffCtx("mapo"), domain.QuoteRequest{Items: roses(100000), Discount: domain.DiscountRequest{SelectedTierRate: 5}}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected gangnam-only tier to be rejected for mapo, got %v", err)
	}
}

func TestQuoteBranchWithoutTableUsesManualFee(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp, err := svc.Quote(adminCtx(), domain.QuoteRequest{
		BranchID:    "mapo",
		Items:       roses(20000),
		Fulfillment: domain.FulfillmentRecord{Type: domain.FulfillmentReservedDelivery, District: "마포구"},
		DeliveryFee: domain.DeliveryFeeRequest{ManualFee: 7000},
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if resp.FeeMode != string(pricing.FeeModeManual) || resp.Summary.DeliveryFee != 7000 {
		t.Fatalf("expected manual fee 7000, got %+v", resp)
	}
	if resp.Surcharges != nil {
		t.Fatalf("branch without table has no surcharges")
	}

	_, err = svc.Quote(adminCtx(), domain.QuoteRequest{
		BranchID:    "mapo",
		Items:       roses(20000),
		Fulfillment: domain.FulfillmentRecord{Type: domain.FulfillmentReservedDelivery},
		DeliveryFee: domain.DeliveryFeeRequest{ManualFee: -1},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected negative manual fee to fail, got %v", err)
	}
}

func TestCreateOrderIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := staffCtx("gangnam")
	req := domain.CreateOrderRequest{
		QuoteRequest: domain.QuoteRequest{
			CustomerID:      "cust-kim",
			Items:           roses(50000),
			PointsRequested: 2000,
		},
		IdempotencyKey: "idem-kim-1",
		Payment:        domain.PaymentRequest{Method: domain.PaymentMethodCard},
	}

	first, err := svc.CreateOrder(ctx, req)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.Duplicate {
		t.Fatalf("first commit must not be a duplicate")
	}
	if first.Order.Summary.PointsUsed != 2000 || first.Order.Summary.PointsEarned != 960 {
		t.Fatalf("unexpected points %+v", first.Order.Summary)
	}
	if first.Order.BranchID != "gangnam" || first.Order.Status != domain.OrderStatusProcessing {
		t.Fatalf("unexpected order %+v", first.Order)
	}
	if got := balanceOf(t, repo, "cust-kim"); got != 1960 {
		t.Fatalf("expected balance 1960, got %d", got)
	}

	again, err := svc.CreateOrder(ctx, req)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !again.Duplicate || again.Order.ID != first.Order.ID {
		t.Fatalf("expected duplicate of %s, got %+v", first.Order.ID, again)
	}
	if got := balanceOf(t, repo, "cust-kim"); got != 1960 {
		t.Fatalf("replay moved points: %d", got)
	}
}

func TestCreateOrderRejectsOtherBranch(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateOrder(staffCtx("gangnam"), domain.CreateOrderRequest{
		QuoteRequest: domain.QuoteRequest{BranchID: "hq", Items: roses(10000)},
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateOrderReplayStaysWithinBranch(t *testing.T) {
	svc, _, _ := newTestService(t)
	req := domain.CreateOrderRequest{
		QuoteRequest:   domain.QuoteRequest{Items: roses(30000)},
		IdempotencyKey: "k-1",
		Payment:        domain.PaymentRequest{Method: domain.PaymentMethodCash},
	}

	first, err := svc.CreateOrder(staffCtx("gangnam"), req)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.CreateOrder(staffCtx("mapo"), req); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden replay from another branch, got %v", err)
	}

	again, err := svc.CreateOrder(adminCtx(), req)
	if err != nil {
		t.Fatalf("admin replay failed: %v", err)
	}
	if !again.Duplicate || again.Order.ID != first.Order.ID {
		t.Fatalf("expected duplicate of %s, got %+v", first.Order.ID, again)
	}
}

func TestCreateOrderValidatesReservation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateOrder(staffCtx("gangnam"), domain.CreateOrderRequest{
		QuoteRequest: domain.QuoteRequest{
			Items:       roses(10000),
			Fulfillment: domain.FulfillmentRecord{Type: domain.FulfillmentReservedDelivery, Date: "2026-05-20"},
		},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected delivery without address to fail, got %v", err)
	}
}

func TestCreateOrderSystemGeneratedNeedsAdmin(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateOrder(staffCtx("gangnam"), domain.CreateOrderRequest{
		QuoteRequest:    domain.QuoteRequest{Items: roses(10000)},
		SystemGenerated: true,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestSplitPaymentRevenueRecognition(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := staffCtx("gangnam")

	resp, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		QuoteRequest: domain.QuoteRequest{Items: roses(30000)},
		Payment: domain.PaymentRequest{
			Status:              domain.PaymentStatusSplit,
			FirstPaymentAmount:  10000,
			FirstPaymentMethod:  domain.PaymentMethodCard,
			SecondPaymentMethod: domain.PaymentMethodTransfer,
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if resp.Split == nil || resp.Split.First != 10000 || resp.Split.Second != 20000 {
		t.Fatalf("unexpected split %+v", resp.Split)
	}

	day1, err := svc.RevenueReport(ctx, "", "2026-05-09")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if day1.Orders != 1 || day1.Recognized != 10000 || day1.Deferred != 20000 {
		t.Fatalf("unexpected first day report %+v", day1)
	}
	if len(day1.ByMethod) != 1 || day1.ByMethod[0].Method != domain.PaymentMethodCard {
		t.Fatalf("unexpected methods %+v", day1.ByMethod)
	}

	clock.Set(time.Date(2026, 5, 10, 2, 0, 0, 0, time.UTC))
	completed, err := svc.CompleteOrder(ctx, resp.Order.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Payment.Status != domain.PaymentStatusSplit {
		t.Fatalf("split orders keep the split status, got %s", completed.Payment.Status)
	}

	day2, err := svc.RevenueReport(ctx, "", "2026-05-10")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if day2.Orders != 0 || day2.Recognized != 20000 || day2.Deferred != 0 {
		t.Fatalf("unexpected second day report %+v", day2)
	}
	if len(day2.ByMethod) != 1 || day2.ByMethod[0].Method != domain.PaymentMethodTransfer {
		t.Fatalf("unexpected methods %+v", day2.ByMethod)
	}
}

func TestCancelOrderRestoresPointsAndClosesOutsource(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := staffCtx("gangnam")

	resp, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		QuoteRequest: domain.QuoteRequest{
			CustomerID:      "cust-kim",
			Items:           roses(50000),
			PointsRequested: 1000,
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if got := balanceOf(t, repo, "cust-kim"); got != 2980 {
		t.Fatalf("expected 2980 after commit, got %d", got)
	}

	record, err := svc.CreateOutsource(ctx, domain.OutsourceCreateRequest{
		OrderID:         resp.Order.ID,
		PartnerBranchID: "hq",
		PartnerPrice:    30000,
	})
	if err != nil {
		t.Fatalf("outsource failed: %v", err)
	}
	if record.Profit != resp.Order.Summary.Total-30000 {
		t.Fatalf("unexpected margin %+v", record)
	}

	canceled, err := svc.CancelOrder(ctx, resp.Order.ID, "고객 변심")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if canceled.Status != domain.OrderStatusCanceled || !strings.Contains(canceled.Memo, "고객 변심") {
		t.Fatalf("unexpected canceled order %+v", canceled)
	}
	if got := balanceOf(t, repo, "cust-kim"); got != 3000 {
		t.Fatalf("expected balance restored to 3000, got %d", got)
	}

	stored, err := repo.GetOutsource(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get outsource: %v", err)
	}
	if stored.State != domain.OutsourceCanceled || stored.CanceledAt == nil {
		t.Fatalf("expected outsource canceled, got %+v", stored)
	}

	if _, err := svc.CancelOrder(ctx, resp.Order.ID, ""); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected second cancel to fail, got %v", err)
	}
}

func TestOutsourceLifecycleAcrossBranches(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := staffCtx("gangnam")
	partner := staffCtx("hq")

	resp, err := svc.CreateOrder(owner, domain.CreateOrderRequest{QuoteRequest: domain.QuoteRequest{Items: roses(40000)}})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	record, err := svc.CreateOutsource(owner, domain.OutsourceCreateRequest{OrderID: resp.Order.ID, PartnerBranchID: "hq", PartnerPrice: 25000})
	if err != nil {
		t.Fatalf("outsource failed: %v", err)
	}
	if _, err := svc.CreateOutsource(owner, domain.OutsourceCreateRequest{OrderID: resp.Order.ID, PartnerBranchID: "mapo"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected one active outsource per order, got %v", err)
	}

	if _, err := svc.TransitionOutsource(staffCtx("mapo"), record.ID, domain.OutsourceAccepted); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected unrelated branch to be rejected, got %v", err)
	}
	if _, err := svc.UpdateOutsource(partner, record.ID, domain.OutsourceUpdateRequest{Note: ptr("x")}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("partner cannot reprice, got %v", err)
	}

	price := int64(28000)
	updated, err := svc.UpdateOutsource(owner, record.ID, domain.OutsourceUpdateRequest{PartnerPrice: &price})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Profit != 12000 {
		t.Fatalf("expected profit 12000, got %d", updated.Profit)
	}

	if _, err := svc.TransitionOutsource(partner, record.ID, domain.OutsourceCompleted); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("pending cannot complete directly, got %v", err)
	}
	if _, err := svc.TransitionOutsource(partner, record.ID, domain.OutsourceAccepted); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	done, err := svc.TransitionOutsource(partner, record.ID, domain.OutsourceCompleted)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.CompletedAt == nil {
		t.Fatalf("expected completion time")
	}
	if _, err := svc.UpdateOutsource(owner, record.ID, domain.OutsourceUpdateRequest{PartnerPrice: &price}); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("completed record must be frozen, got %v", err)
	}

	list, err := svc.ListOutsource(partner, "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("partner should see the routed record, got %d", len(list))
	}
}

func TestRecordDeliveryCostBooksExpense(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := adminCtx()

	resp, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		QuoteRequest: domain.QuoteRequest{
			BranchID: "gangnam",
			Items:    roses(40000),
			Fulfillment: domain.FulfillmentRecord{
				Type:     domain.FulfillmentReservedDelivery,
				Date:     "2026-05-20",
				Name:     "이수진",
				Address:  "서울 강남구 테헤란로 1",
				District: "강남구",
			},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if resp.Order.DeliveryCost == nil || resp.Order.DeliveryCost.Status != domain.DeliveryCostPending {
		t.Fatalf("expected open delivery cost, got %+v", resp.Order.DeliveryCost)
	}

	if _, err := svc.RecordDeliveryCost(staffCtx("gangnam"), resp.Order.ID, 6500); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected staff to be rejected, got %v", err)
	}
	if _, err := svc.AssignDriver(ctx, resp.Order.ID, domain.AssignDriverRequest{Name: "박기사", Affiliation: "빠른퀵"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	order, err := svc.RecordDeliveryCost(ctx, resp.Order.ID, 6500)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if order.DeliveryCost.CustomerFee != 5000 || order.DeliveryCost.Profit != -1500 {
		t.Fatalf("unexpected cost record %+v", order.DeliveryCost)
	}
	if _, err := svc.RecordDeliveryCost(ctx, resp.Order.ID, 7000); err != nil {
		t.Fatalf("re-record failed: %v", err)
	}

	expenses, err := svc.ListExpenses(ctx, "gangnam", "2026-05-09")
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 1 || expenses[0].Amount != 7000 || expenses[0].Supplier != "빠른퀵" {
		t.Fatalf("unexpected expenses %+v", expenses)
	}
}

func TestRecordDeliveryCostOnCanceledOrderBooksNothing(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := adminCtx()

	resp, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		QuoteRequest: domain.QuoteRequest{
			BranchID: "gangnam",
			Items:    roses(40000),
			Fulfillment: domain.FulfillmentRecord{
				Type:     domain.FulfillmentReservedDelivery,
				Date:     "2026-05-20",
				Name:     "이수진",
				Address:  "서울 강남구 테헤란로 1",
				District: "강남구",
			},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.CancelOrder(ctx, resp.Order.ID, "customer left"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if _, err := svc.RecordDeliveryCost(ctx, resp.Order.ID, 6500); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := svc.CompleteOrder(ctx, resp.Order.ID); err == nil {
		t.Fatalf("expected completing a canceled order to fail")
	}

	expenses, err := svc.ListExpenses(ctx, "gangnam", "2026-05-09")
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 0 {
		t.Fatalf("expected no expense for a canceled order, got %+v", expenses)
	}
	order, err := svc.GetOrder(ctx, resp.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != domain.OrderStatusCanceled || order.DeliveryCost.Status != domain.DeliveryCostPending {
		t.Fatalf("unexpected order after rejected cost %+v", order)
	}
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]*domain.CalendarResponse
	hits int
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.CalendarResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value *domain.CalendarResponse, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

func TestCalendarMergesSourcesAndCaches(t *testing.T) {
	repo := memory.NewSeeded()
	c := &mapCache{data: map[string]*domain.CalendarResponse{}}
	svc := New(repo, Options{
		Location: kst,
		Cache:    c,
		Now:      func() time.Time { return time.Date(2026, 5, 9, 3, 0, 0, 0, time.UTC) },
	})
	ctx := staffCtx("gangnam")

	entry, err := svc.CreateCalendarEntry(ctx, domain.CalendarEntryRequest{
		Type:  domain.EntryTypeMaterial,
		Title: "꽃 시장 입고",
		Start: time.Date(2026, 5, 12, 6, 0, 0, 0, kst),
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	order, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{
		QuoteRequest: domain.QuoteRequest{
			Items: roses(40000),
			Fulfillment: domain.FulfillmentRecord{
				Type:     domain.FulfillmentReservedDelivery,
				Date:     "2026-05-20",
				Address:  "서울 강남구 역삼로 2",
				District: "강남구",
			},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	month, err := svc.Calendar(ctx, 2026, 5)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(month.Entries) != 3 {
		t.Fatalf("expected manual, order and payment entries, got %+v", month.Entries)
	}
	if month.Entries[0].ID != entry.ID || month.Entries[1].RelatedOrderID() != order.Order.ID {
		t.Fatalf("unexpected ordering %+v", month.Entries)
	}
	if month.Entries[2].Origin.Kind != domain.OriginPaymentSchedule {
		t.Fatalf("expected payment reminder last, got %+v", month.Entries[2])
	}

	if _, err := svc.Calendar(ctx, 2026, 5); err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if c.hits != 1 {
		t.Fatalf("expected cached second read, got %d hits", c.hits)
	}

	if _, err := svc.UpdateCalendarEntry(ctx, month.Entries[1].ID, domain.CalendarEntryUpdateRequest{Title: ptr("x")}); !errors.Is(err, domain.ErrImmutableEntry) {
		t.Fatalf("expected derived entry to be immutable, got %v", err)
	}
	if err := svc.DeleteCalendarEntry(ctx, month.Entries[2].ID); !errors.Is(err, domain.ErrImmutableEntry) {
		t.Fatalf("expected payment reminder to be immutable, got %v", err)
	}
	if _, err := svc.UpdateCalendarEntry(staffCtx("mapo"), entry.ID, domain.CalendarEntryUpdateRequest{Title: ptr("x")}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected other branch to be rejected, got %v", err)
	}

	if _, err := svc.UpdateCalendarEntry(ctx, entry.ID, domain.CalendarEntryUpdateRequest{Title: ptr("입고 (변경)")}); err != nil {
		t.Fatalf("update entry: %v", err)
	}
	month, err = svc.Calendar(ctx, 2026, 5)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if c.hits != 1 || month.Entries[0].Title != "입고 (변경)" {
		t.Fatalf("expected invalidated cache, hits=%d first=%+v", c.hits, month.Entries[0])
	}

	other, err := svc.Calendar(staffCtx("mapo"), 2026, 5)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	if len(other.Entries) != 0 {
		t.Fatalf("other branch should see nothing, got %+v", other.Entries)
	}

	if _, err := svc.Calendar(ctx, 2026, 13); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected invalid month, got %v", err)
	}
}

func TestCreateCustomerRules(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.CreateCustomer(staffCtx("gangnam"), domain.CustomerCreateRequest{Name: "박하늘", Points: 500}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("staff cannot grant opening points, got %v", err)
	}
	if _, err := svc.CreateCustomer(staffCtx("gangnam"), domain.CustomerCreateRequest{Name: "박하늘", MonthlyPaymentDay: "32"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected invalid payment day, got %v", err)
	}

	customer, err := svc.CreateCustomer(staffCtx("gangnam"), domain.CustomerCreateRequest{Name: "박하늘"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if customer.BranchID != "gangnam" || customer.Type != domain.CustomerTypeIndividual {
		t.Fatalf("unexpected customer %+v", customer)
	}
	if _, err := svc.GetCustomer(staffCtx("mapo"), customer.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected other branch to be rejected, got %v", err)
	}
}

func TestUpdateDeliveryFeesValidatesTable(t *testing.T) {
	svc, _, _ := newTestService(t)

	table := &domain.DeliveryFeeTable{Rows: []domain.DistrictFee{
		{District: "마포구", Fee: 4000},
		{District: " 마포구 ", Fee: 5000},
	}}
	if _, err := svc.UpdateDeliveryFees(adminCtx(), "mapo", table); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected duplicate district to fail, got %v", err)
	}
	if _, err := svc.UpdateDeliveryFees(staffCtx("mapo"), "mapo", &domain.DeliveryFeeTable{}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected staff to be rejected, got %v", err)
	}

	table = &domain.DeliveryFeeTable{
		Rows:       []domain.DistrictFee{{District: "마포구", Fee: 4000}, {District: domain.OtherDistrict, Fee: 9000}},
		Surcharges: domain.Surcharges{Express: 8000},
	}
	if _, err := svc.UpdateDeliveryFees(adminCtx(), "mapo", table); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	express, err := svc.Surcharge(staffCtx("mapo"), "mapo", pricing.SurchargeExpress)
	if err != nil || express != 8000 {
		t.Fatalf("expected express surcharge 8000, got %d (%v)", express, err)
	}

	resp, err := svc.Quote(staffCtx("mapo"), domain.QuoteRequest{
		Items:       roses(20000),
		Fulfillment: domain.FulfillmentRecord{Type: domain.FulfillmentReservedDelivery, District: "은평구"},
	})
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if resp.FeeMode != string(pricing.FeeModeAuto) || resp.Summary.DeliveryFee != 9000 {
		t.Fatalf("expected fallback row fee 9000, got %+v", resp)
	}
}

func TestCreateDiscountTierCapsRate(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.CreateDiscountTier(adminCtx(), domain.DiscountTierCreateRequest{Label: "과다", Rate: 60}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected rate cap, got %v", err)
	}
	tier, err := svc.CreateDiscountTier(adminCtx(), domain.DiscountTierCreateRequest{Label: "개업 15%", Rate: 15, BranchID: "mapo"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !tier.Active {
		t.Fatalf("new tiers start active")
	}
	tiers, err := svc.ListDiscountTiers(staffCtx("mapo"), "")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	found := false
	for _, tr := range tiers {
		if tr.ID == tier.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("branch tier missing from %+v", tiers)
	}
}

func TestAuditLogRecordsOrderActions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := staffCtx("gangnam")

	resp, err := svc.CreateOrder(ctx, domain.CreateOrderRequest{QuoteRequest: domain.QuoteRequest{Items: roses(10000)}})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.CompleteOrder(ctx, resp.Order.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if _, err := svc.ListAuditLogs(ctx, "", "2026-05-09", 10); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected staff to be rejected, got %v", err)
	}
	logs, err := svc.ListAuditLogs(adminCtx(), "gangnam", "2026-05-09", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected create and complete entries, got %+v", logs)
	}
}

func ptr[T any](v T) *T {
	return &v
}
