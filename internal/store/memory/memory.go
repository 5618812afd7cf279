package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"flowershop/backend/internal/calendar"
	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/ledger"
	"flowershop/backend/internal/store"
	"flowershop/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	branchesByID    map[string]domain.Branch
	tiersByID       map[string]domain.DiscountTier
	customersByID   map[string]domain.Customer
	ordersByID      map[string]*domain.Order
	ordersByIdem    map[string]*domain.Order
	expensesByID    map[string]domain.Expense
	expenseBySource map[string]string
	entriesByID     map[string]domain.CalendarEntry
	outsourceByID   map[string]domain.OutsourceRecord
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode. Credentials come from
// SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD; the dev defaults are only used with a warning.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Warn().Str("component", "memory-store").
			Msg("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
		branchID string
	}{
		{"admin", adminPwd, domain.RoleAdmin, "hq"},
		{"staff", staffPwd, domain.RoleStaff, "gangnam"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("component", "memory-store").Str("username", u.username).Msg("hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			BranchID:  u.branchID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store without seed data or accounts.
func New() *Store {
	return &Store{
		branchesByID:    make(map[string]domain.Branch),
		tiersByID:       make(map[string]domain.DiscountTier),
		customersByID:   make(map[string]domain.Customer),
		ordersByID:      make(map[string]*domain.Order),
		ordersByIdem:    make(map[string]*domain.Order),
		expensesByID:    make(map[string]domain.Expense),
		expenseBySource: make(map[string]string),
		entriesByID:     make(map[string]domain.CalendarEntry),
		outsourceByID:   make(map[string]domain.OutsourceRecord),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, b := range []domain.Branch{
		{
			ID:   "hq",
			Name: "본사",
			Type: domain.BranchTypeHeadquarters,
			DeliveryFees: &domain.DeliveryFeeTable{
				Rows: []domain.DistrictFee{
					{District: "종로구", Fee: 5000},
					{District: "중구", Fee: 5000},
					{District: domain.OtherDistrict, Fee: 7000},
				},
				Surcharges: domain.Surcharges{Medium: 3000, Large: 5000, Express: 10000},
			},
		},
		{
			ID:   "gangnam",
			Name: "강남점",
			Type: domain.BranchTypeFranchise,
			DeliveryFees: &domain.DeliveryFeeTable{
				Rows: []domain.DistrictFee{
					{District: "강남구", Fee: 5000},
					{District: "서초구", Fee: 6000},
					{District: domain.OtherDistrict, Fee: 8000},
				},
				Surcharges: domain.Surcharges{Medium: 3000, Large: 5000, Express: 10000},
			},
		},
		{ID: "mapo", Name: "마포점", Type: domain.BranchTypeFranchise},
	} {
		s.branchesByID[b.ID] = b
	}

	for _, t := range []domain.DiscountTier{
		{ID: "tier-vip", Label: "VIP 10%", Rate: 10, Active: true, CreatedAt: now},
		{ID: "tier-regular", Label: "단골 5%", Rate: 5, BranchID: "gangnam", MinSubtotal: 30000, Active: true, CreatedAt: now},
	} {
		s.tiersByID[t.ID] = t
	}

	for _, c := range []domain.Customer{
		{ID: "cust-kim", Name: "김민지", Type: domain.CustomerTypeIndividual, BranchID: "gangnam", Contact: "010-1234-5678", Points: 3000, CreatedAt: now},
		{ID: "cust-hanbit", Name: "한빛상사", Type: domain.CustomerTypeCompany, BranchID: "gangnam", Contact: "02-555-0101", MonthlyPaymentDay: "25", CreatedAt: now},
	} {
		s.customersByID[c.ID] = c
	}

	s.usersByUsername = seedUsers()
	return s
}

func (s *Store) ListBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branches := make([]domain.Branch, 0, len(s.branchesByID))
	for _, b := range s.branchesByID {
		branches = append(branches, cloneBranch(b))
	}
	slices.SortFunc(branches, func(a, b domain.Branch) int {
		return cmpString(a.ID, b.ID)
	})
	return branches, nil
}

func (s *Store) GetBranch(_ context.Context, id string) (*domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.branchesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneBranch(b)
	return &dup, nil
}

func (s *Store) UpdateDeliveryFees(_ context.Context, branchID string, table *domain.DeliveryFeeTable) (*domain.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.branchesByID[branchID]
	if !ok {
		return nil, store.ErrNotFound
	}
	b.DeliveryFees = cloneFeeTable(table)
	s.branchesByID[branchID] = b
	dup := cloneBranch(b)
	return &dup, nil
}

func (s *Store) ListDiscountTiers(_ context.Context, branchID string) ([]domain.DiscountTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tiers := make([]domain.DiscountTier, 0, len(s.tiersByID))
	for _, t := range s.tiersByID {
		if branchID != "" && t.BranchID != "" && t.BranchID != branchID {
			continue
		}
		tiers = append(tiers, t)
	}
	slices.SortFunc(tiers, func(a, b domain.DiscountTier) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return tiers, nil
}

func (s *Store) CreateDiscountTier(_ context.Context, tier domain.DiscountTier) (*domain.DiscountTier, error) {
	if strings.TrimSpace(tier.Label) == "" {
		return nil, fmt.Errorf("%w: tier label is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tier.ID == "" {
		tier.ID = xid.New("tier")
	}
	if tier.CreatedAt.IsZero() {
		tier.CreatedAt = time.Now().UTC()
	}
	tier.Active = true
	s.tiersByID[tier.ID] = tier
	copyTier := tier
	return &copyTier, nil
}

func (s *Store) UpdateDiscountTierActive(_ context.Context, id string, active bool) (*domain.DiscountTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tier, ok := s.tiersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	tier.Active = active
	s.tiersByID[id] = tier
	copyTier := tier
	return &copyTier, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name is required", domain.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if _, exists := s.customersByID[customer.ID]; exists {
		return nil, store.ErrConflict
	}
	if customer.Type == "" {
		customer.Type = domain.CustomerTypeIndividual
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customersByID[customer.ID] = customer
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCustomers(_ context.Context, branchID string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0, len(s.customersByID))
	for _, c := range s.customersByID {
		if branchID != "" && c.BranchID != branchID {
			continue
		}
		customers = append(customers, c)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return cmpString(a.ID, b.ID)
	})
	return customers, nil
}

func (s *Store) FindOrderByIdempotency(_ context.Context, key string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.ordersByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) FindOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *Store) CommitOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", domain.ErrValidation)
	}
	if existing, ok := s.ordersByIdem[order.IdempotencyKey]; ok {
		return cloneOrder(existing), nil
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", domain.ErrValidation)
	}

	used := order.Summary.PointsUsed
	earned := order.Summary.PointsEarned
	if order.CustomerID == "" {
		if used != 0 || earned != 0 {
			return nil, fmt.Errorf("%w: points need a customer", domain.ErrValidation)
		}
	} else {
		customer, ok := s.customersByID[order.CustomerID]
		if !ok {
			return nil, fmt.Errorf("customer %s: %w", order.CustomerID, store.ErrNotFound)
		}
		if customer.Points < used {
			return nil, store.ErrInsufficientPoints
		}
		customer.Points = customer.Points - used + earned
		s.customersByID[customer.ID] = customer
	}

	if order.ID == "" {
		order.ID = xid.New("ord")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusProcessing
	}

	stored := cloneOrder(&order)
	s.ordersByID[order.ID] = stored
	s.ordersByIdem[order.IdempotencyKey] = stored
	return cloneOrder(stored), nil
}

func (s *Store) UpdateOrder(_ context.Context, order domain.Order, expectedStatus string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.guardedOrder(order.ID, expectedStatus)
	if err != nil {
		return nil, err
	}
	order.IdempotencyKey = existing.IdempotencyKey
	order.CreatedAt = existing.CreatedAt
	s.replaceOrder(&order)
	return cloneOrder(&order), nil
}

func (s *Store) RecordDeliveryCost(_ context.Context, order domain.Order, expectedStatus string, expense domain.Expense) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.guardedOrder(order.ID, expectedStatus)
	if err != nil {
		return nil, err
	}
	updated := cloneOrder(existing)
	updated.DeliveryCost = order.DeliveryCost
	s.upsertExpenseLocked(expense)
	s.replaceOrder(updated)
	return cloneOrder(updated), nil
}

// guardedOrder must be called with s.mu held.
func (s *Store) guardedOrder(id string, expectedStatus string) (*domain.Order, error) {
	existing, ok := s.ordersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if existing.Status != expectedStatus {
		return nil, fmt.Errorf("%w: order %s is %s", store.ErrConflict, id, existing.Status)
	}
	return existing, nil
}

func (s *Store) CancelOrder(_ context.Context, order domain.Order) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.ordersByID[order.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if existing.Status != domain.OrderStatusProcessing {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidStateTransition, order.ID, existing.Status)
	}

	if existing.CustomerID != "" {
		if customer, ok := s.customersByID[existing.CustomerID]; ok {
			customer.Points += existing.Summary.PointsUsed - existing.Summary.PointsEarned
			if customer.Points < 0 {
				customer.Points = 0
			}
			s.customersByID[customer.ID] = customer
		}
	}

	canceled := cloneOrder(existing)
	canceled.Status = domain.OrderStatusCanceled
	canceled.Payment = order.Payment
	canceled.Memo = order.Memo
	s.replaceOrder(canceled)
	return cloneOrder(canceled), nil
}

func (s *Store) replaceOrder(order *domain.Order) {
	stored := cloneOrder(order)
	s.ordersByID[order.ID] = stored
	s.ordersByIdem[order.IdempotencyKey] = stored
}

func (s *Store) ListScheduledOrders(_ context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fromDate := from.Format("2006-01-02")
	toDate := to.Format("2006-01-02")
	orders := make([]domain.Order, 0, 32)
	for _, o := range s.ordersByID {
		date := domain.RecordOf(o.Fulfillment).Date
		if date == "" || date < fromDate || date >= toDate {
			continue
		}
		orders = append(orders, *cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		return cmpString(a.ID, b.ID)
	})
	return orders, nil
}

func (s *Store) ListOrdersByActivity(_ context.Context, branchID string, from time.Time, to time.Time) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inRange := func(t time.Time) bool {
		return !t.Before(from) && t.Before(to)
	}
	orders := make([]domain.Order, 0, 32)
	for _, o := range s.ordersByID {
		if branchID != "" && o.BranchID != branchID {
			continue
		}
		completed := o.Payment.CompletedAt != nil && inRange(*o.Payment.CompletedAt)
		if !inRange(o.CreatedAt) && !completed {
			continue
		}
		orders = append(orders, *cloneOrder(o))
	}
	slices.SortFunc(orders, func(a, b domain.Order) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return orders, nil
}

func (s *Store) UpsertExpense(_ context.Context, expense domain.Expense) (domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertExpenseLocked(expense), nil
}

func (s *Store) upsertExpenseLocked(expense domain.Expense) domain.Expense {
	if expense.SourceID != "" {
		if id, ok := s.expenseBySource[expense.SourceID]; ok {
			existing := s.expensesByID[id]
			expense.ID = existing.ID
			expense.CreatedAt = existing.CreatedAt
		}
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}
	s.expensesByID[expense.ID] = expense
	if expense.SourceID != "" {
		s.expenseBySource[expense.SourceID] = expense.ID
	}
	return expense
}

func (s *Store) ListExpenses(_ context.Context, branchID string, from time.Time, to time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expenses := make([]domain.Expense, 0, len(s.expensesByID))
	for _, e := range s.expensesByID {
		if branchID != "" && e.BranchID != branchID {
			continue
		}
		if e.Date.Before(from) || !e.Date.Before(to) {
			continue
		}
		expenses = append(expenses, e)
	}
	slices.SortFunc(expenses, func(a, b domain.Expense) int {
		return cmpString(a.ID, b.ID)
	})
	return expenses, nil
}

func (s *Store) CreateCalendarEntry(_ context.Context, entry domain.CalendarEntry) (*domain.CalendarEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("evt")
	}
	if _, exists := s.entriesByID[entry.ID]; exists {
		return nil, store.ErrConflict
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Origin = domain.EntryOrigin{Kind: domain.OriginManual}
	s.entriesByID[entry.ID] = cloneEntry(entry)
	return ptrEntry(entry), nil
}

func (s *Store) GetCalendarEntry(_ context.Context, id string) (*domain.CalendarEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entriesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ptrEntry(entry), nil
}

func (s *Store) UpdateCalendarEntry(_ context.Context, entry domain.CalendarEntry) (*domain.CalendarEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.entriesByID[entry.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	entry.CreatedAt = existing.CreatedAt
	entry.CreatedBy = existing.CreatedBy
	entry.Origin = existing.Origin
	s.entriesByID[entry.ID] = cloneEntry(entry)
	return ptrEntry(entry), nil
}

func (s *Store) DeleteCalendarEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entriesByID[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.entriesByID, id)
	return nil
}

func (s *Store) ListCalendarEntries(_ context.Context, from time.Time, to time.Time) ([]domain.CalendarEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := calendar.Window{From: from, To: to}
	entries := make([]domain.CalendarEntry, 0, len(s.entriesByID))
	for _, e := range s.entriesByID {
		if !window.Overlaps(e.Start, e.End) {
			continue
		}
		entries = append(entries, cloneEntry(e))
	}
	slices.SortFunc(entries, func(a, b domain.CalendarEntry) int {
		return cmpString(a.ID, b.ID)
	})
	return entries, nil
}

func (s *Store) CreateOutsource(_ context.Context, record domain.OutsourceRecord) (*domain.OutsourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.outsourceByID {
		if existing.OrderID == record.OrderID && !ledger.IsTerminal(existing.State) {
			return nil, fmt.Errorf("order %s already outsourced: %w", record.OrderID, store.ErrConflict)
		}
	}
	if record.ID == "" {
		record.ID = xid.New("out")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.outsourceByID[record.ID] = record
	copyRecord := record
	return &copyRecord, nil
}

func (s *Store) GetOutsource(_ context.Context, id string) (*domain.OutsourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.outsourceByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &record, nil
}

func (s *Store) UpdateOutsource(_ context.Context, record domain.OutsourceRecord) (*domain.OutsourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.outsourceByID[record.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if ledger.IsTerminal(existing.State) {
		return nil, fmt.Errorf("%w: outsource %s is %s", domain.ErrInvalidStateTransition, record.ID, existing.State)
	}
	record.CreatedAt = existing.CreatedAt
	s.outsourceByID[record.ID] = record
	copyRecord := record
	return &copyRecord, nil
}

func (s *Store) ListOutsource(_ context.Context, branchID string) ([]domain.OutsourceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.OutsourceRecord, 0, len(s.outsourceByID))
	for _, r := range s.outsourceByID {
		if branchID != "" && r.BranchID != branchID && r.PartnerBranchID != branchID {
			continue
		}
		records = append(records, r)
	}
	slices.SortFunc(records, func(a, b domain.OutsourceRecord) int {
		return cmpString(a.ID, b.ID)
	})
	return records, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if branchID != "" && entry.BranchID != branchID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	dup := *t
	return &dup
}

func cloneOrder(src *domain.Order) *domain.Order {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Items = slices.Clone(src.Items)
	dup.Payment.CompletedAt = copyTime(src.Payment.CompletedAt)
	dup.CompletedAt = copyTime(src.CompletedAt)
	if src.Driver != nil {
		driver := *src.Driver
		dup.Driver = &driver
	}
	if src.DeliveryCost != nil {
		cost := *src.DeliveryCost
		cost.RecordedAt = copyTime(src.DeliveryCost.RecordedAt)
		dup.DeliveryCost = &cost
	}
	return &dup
}

func cloneFeeTable(src *domain.DeliveryFeeTable) *domain.DeliveryFeeTable {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Rows = slices.Clone(src.Rows)
	return &dup
}

func cloneBranch(src domain.Branch) domain.Branch {
	src.DeliveryFees = cloneFeeTable(src.DeliveryFees)
	return src
}

func cloneEntry(src domain.CalendarEntry) domain.CalendarEntry {
	src.End = copyTime(src.End)
	return src
}

func ptrEntry(src domain.CalendarEntry) *domain.CalendarEntry {
	dup := cloneEntry(src)
	return &dup
}
