package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/store"
	"flowershop/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, delivery_fees
		FROM branches
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]domain.Branch, 0, 8)
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return branches, nil
}

func (s *Store) GetBranch(ctx context.Context, id string) (*domain.Branch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, delivery_fees
		FROM branches
		WHERE id = $1
	`, id)
	b, err := scanBranch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Store) UpdateDeliveryFees(ctx context.Context, branchID string, table *domain.DeliveryFeeTable) (*domain.Branch, error) {
	payload, err := nullJSON(table)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE branches
		SET delivery_fees = $2, updated_at = now()
		WHERE id = $1
	`, branchID, payload)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetBranch(ctx, branchID)
}

func scanBranch(row rowScanner) (*domain.Branch, error) {
	var b domain.Branch
	var fees []byte
	if err := row.Scan(&b.ID, &b.Name, &b.Type, &fees); err != nil {
		return nil, err
	}
	if len(fees) > 0 {
		var table domain.DeliveryFeeTable
		if err := json.Unmarshal(fees, &table); err != nil {
			return nil, fmt.Errorf("decode delivery fees of %s: %w", b.ID, err)
		}
		b.DeliveryFees = &table
	}
	return &b, nil
}

func (s *Store) ListDiscountTiers(ctx context.Context, branchID string) ([]domain.DiscountTier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, rate, COALESCE(branch_id, ''), min_subtotal, active, created_at
		FROM discount_tiers
		WHERE $1 = '' OR branch_id IS NULL OR branch_id = $1
		ORDER BY created_at, id
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tiers := make([]domain.DiscountTier, 0, 8)
	for rows.Next() {
		var t domain.DiscountTier
		if err := rows.Scan(&t.ID, &t.Label, &t.Rate, &t.BranchID, &t.MinSubtotal, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.CreatedAt = t.CreatedAt.UTC()
		tiers = append(tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tiers, nil
}

func (s *Store) CreateDiscountTier(ctx context.Context, tier domain.DiscountTier) (*domain.DiscountTier, error) {
	if strings.TrimSpace(tier.Label) == "" {
		return nil, fmt.Errorf("%w: tier label is required", domain.ErrValidation)
	}
	if tier.ID == "" {
		tier.ID = xid.New("tier")
	}
	if tier.CreatedAt.IsZero() {
		tier.CreatedAt = time.Now().UTC()
	}
	tier.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discount_tiers (id, label, rate, branch_id, min_subtotal, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, tier.ID, tier.Label, tier.Rate, nullIfEmpty(tier.BranchID), tier.MinSubtotal, tier.Active, tier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &tier, nil
}

func (s *Store) UpdateDiscountTierActive(ctx context.Context, id string, active bool) (*domain.DiscountTier, error) {
	var t domain.DiscountTier
	err := s.db.QueryRowContext(ctx, `
		UPDATE discount_tiers
		SET active = $2
		WHERE id = $1
		RETURNING id, label, rate, COALESCE(branch_id, ''), min_subtotal, active, created_at
	`, id, active).Scan(&t.ID, &t.Label, &t.Rate, &t.BranchID, &t.MinSubtotal, &t.Active, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

const customerColumns = `id, name, type, branch_id, contact, points, monthly_payment_day, created_at`

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &c.BranchID, &c.Contact, &c.Points, &c.MonthlyPaymentDay, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name is required", domain.ErrValidation)
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.Type == "" {
		customer.Type = domain.CustomerTypeIndividual
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, customer.ID, customer.Name, customer.Type, customer.BranchID, customer.Contact,
		customer.Points, customer.MonthlyPaymentDay, customer.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, branchID string) ([]domain.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE $1 = '' OR branch_id = $1
		ORDER BY id
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return customers, nil
}

const orderColumns = `id, idempotency_key, branch_id, COALESCE(customer_id, ''), orderer, items,
	subtotal, discount_rate, discount_amount, delivery_fee, points_used, points_earned, total,
	payment, fulfillment, status, system_generated, entry_path, driver, delivery_cost,
	memo, created_by, created_at, completed_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var orderer, items, payment, fulfillment, driver, deliveryCost []byte
	var completedAt sql.NullTime

	err := row.Scan(
		&o.ID,
		&o.IdempotencyKey,
		&o.BranchID,
		&o.CustomerID,
		&orderer,
		&items,
		&o.Summary.Subtotal,
		&o.Summary.DiscountRate,
		&o.Summary.DiscountAmount,
		&o.Summary.DeliveryFee,
		&o.Summary.PointsUsed,
		&o.Summary.PointsEarned,
		&o.Summary.Total,
		&payment,
		&fulfillment,
		&o.Status,
		&o.SystemGenerated,
		&o.EntryPath,
		&driver,
		&deliveryCost,
		&o.Memo,
		&o.CreatedBy,
		&o.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(orderer, &o.Orderer); err != nil {
		return nil, fmt.Errorf("decode orderer of %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(payment, &o.Payment); err != nil {
		return nil, fmt.Errorf("decode payment of %s: %w", o.ID, err)
	}
	var record domain.FulfillmentRecord
	if err := json.Unmarshal(fulfillment, &record); err != nil {
		return nil, fmt.Errorf("decode fulfillment of %s: %w", o.ID, err)
	}
	if o.Fulfillment, err = record.Decode(); err != nil {
		return nil, fmt.Errorf("decode fulfillment of %s: %w", o.ID, err)
	}
	if len(driver) > 0 {
		o.Driver = &domain.Driver{}
		if err := json.Unmarshal(driver, o.Driver); err != nil {
			return nil, fmt.Errorf("decode driver of %s: %w", o.ID, err)
		}
	}
	if len(deliveryCost) > 0 {
		o.DeliveryCost = &domain.DeliveryCostRecord{}
		if err := json.Unmarshal(deliveryCost, o.DeliveryCost); err != nil {
			return nil, fmt.Errorf("decode delivery cost of %s: %w", o.ID, err)
		}
	}
	if completedAt.Valid {
		at := completedAt.Time.UTC()
		o.CompletedAt = &at
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return &o, nil
}

type orderPayload struct {
	orderer      string
	items        string
	payment      string
	fulfillment  string
	date         string
	driver       any
	deliveryCost any
}

func encodeOrder(o domain.Order) (orderPayload, error) {
	var p orderPayload
	var err error
	if p.orderer, err = jsonText(o.Orderer); err != nil {
		return p, err
	}
	if p.items, err = jsonText(o.Items); err != nil {
		return p, err
	}
	if p.payment, err = jsonText(o.Payment); err != nil {
		return p, err
	}
	record := domain.RecordOf(o.Fulfillment)
	if p.fulfillment, err = jsonText(record); err != nil {
		return p, err
	}
	p.date = record.Date
	if p.driver, err = nullJSON(o.Driver); err != nil {
		return p, err
	}
	if p.deliveryCost, err = nullJSON(o.DeliveryCost); err != nil {
		return p, err
	}
	return p, nil
}

func (s *Store) FindOrderByIdempotency(ctx context.Context, key string) (*domain.Order, error) {
	return s.findOrder(ctx, "idempotency_key", key)
}

func (s *Store) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	return s.findOrder(ctx, "id", id)
}

func (s *Store) findOrder(ctx context.Context, column string, value string) (*domain.Order, error) {
	if column != "id" && column != "idempotency_key" {
		return nil, fmt.Errorf("unsupported lookup column")
	}
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s = $1`, orderColumns, column)
	o, err := scanOrder(s.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (s *Store) CommitOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	if order.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: idempotency key is required", domain.ErrValidation)
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", domain.ErrValidation)
	}
	used := order.Summary.PointsUsed
	earned := order.Summary.PointsEarned
	if order.CustomerID == "" && (used != 0 || earned != 0) {
		return nil, fmt.Errorf("%w: points need a customer", domain.ErrValidation)
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
	payload, err := encodeOrder(order)
	if err != nil {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	res, err := pgTx.ExecContext(ctx, `
		INSERT INTO orders (
			id, idempotency_key, branch_id, customer_id, orderer, items,
			subtotal, discount_rate, discount_amount, delivery_fee, points_used, points_earned, total,
			payment, payment_completed_at, fulfillment, fulfillment_date, status, system_generated,
			entry_path, driver, delivery_cost, memo, created_by, created_at, completed_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, order.ID, order.IdempotencyKey, order.BranchID, nullIfEmpty(order.CustomerID), payload.orderer, payload.items,
		order.Summary.Subtotal, order.Summary.DiscountRate, order.Summary.DiscountAmount, order.Summary.DeliveryFee,
		used, earned, order.Summary.Total,
		payload.payment, nullTime(order.Payment.CompletedAt), payload.fulfillment, payload.date, order.Status,
		order.SystemGenerated, order.EntryPath, payload.driver, payload.deliveryCost, order.Memo, order.CreatedBy,
		order.CreatedAt, nullTime(order.CompletedAt))
	if err != nil {
		return nil, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if inserted == 0 {
		_ = pgTx.Rollback()
		return s.FindOrderByIdempotency(ctx, order.IdempotencyKey)
	}

	if order.CustomerID != "" {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE customers
			SET points = points - $2 + $3
			WHERE id = $1 AND points >= $2
		`, order.CustomerID, used, earned)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			var exists bool
			if err := pgTx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, order.CustomerID).Scan(&exists); err != nil {
				return nil, err
			}
			if !exists {
				return nil, fmt.Errorf("customer %s: %w", order.CustomerID, store.ErrNotFound)
			}
			return nil, store.ErrInsufficientPoints
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) UpdateOrder(ctx context.Context, order domain.Order, expectedStatus string) (*domain.Order, error) {
	payload, err := encodeOrder(order)
	if err != nil {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := lockOrderStatus(ctx, pgTx, order.ID, expectedStatus); err != nil {
		return nil, err
	}
	_, err = pgTx.ExecContext(ctx, `
		UPDATE orders
		SET orderer = $2, payment = $3, payment_completed_at = $4, fulfillment = $5, fulfillment_date = $6,
			status = $7, driver = $8, delivery_cost = $9, memo = $10, completed_at = $11
		WHERE id = $1
	`, order.ID, payload.orderer, payload.payment, nullTime(order.Payment.CompletedAt), payload.fulfillment,
		payload.date, order.Status, payload.driver, payload.deliveryCost, order.Memo, nullTime(order.CompletedAt))
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.FindOrderByID(ctx, order.ID)
}

func (s *Store) RecordDeliveryCost(ctx context.Context, order domain.Order, expectedStatus string, expense domain.Expense) (*domain.Order, error) {
	cost, err := nullJSON(order.DeliveryCost)
	if err != nil {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := lockOrderStatus(ctx, pgTx, order.ID, expectedStatus); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `UPDATE orders SET delivery_cost = $2 WHERE id = $1`, order.ID, cost); err != nil {
		return nil, err
	}
	if _, err := upsertExpense(ctx, pgTx, expense); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.FindOrderByID(ctx, order.ID)
}

// lockOrderStatus row-locks the order and fails with ErrConflict when its status moved on.
func lockOrderStatus(ctx context.Context, tx *sql.Tx, id string, expectedStatus string) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	if status != expectedStatus {
		return fmt.Errorf("%w: order %s is %s", store.ErrConflict, id, status)
	}
	return nil
}

func (s *Store) CancelOrder(ctx context.Context, order domain.Order) (*domain.Order, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status, customerID string
	var used, earned int64
	err = pgTx.QueryRowContext(ctx, `
		SELECT status, COALESCE(customer_id, ''), points_used, points_earned
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, order.ID).Scan(&status, &customerID, &used, &earned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status != domain.OrderStatusProcessing {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidStateTransition, order.ID, status)
	}

	if customerID != "" {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE customers
			SET points = GREATEST(points + $2 - $3, 0)
			WHERE id = $1
		`, customerID, used, earned)
		if err != nil {
			return nil, err
		}
	}

	order.Status = domain.OrderStatusCanceled
	payload, err := encodeOrder(order)
	if err != nil {
		return nil, err
	}
	_, err = pgTx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment = $3, memo = $4
		WHERE id = $1
	`, order.ID, order.Status, payload.payment, order.Memo)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return s.FindOrderByID(ctx, order.ID)
}

func (s *Store) ListScheduledOrders(ctx context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	return s.listOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE fulfillment_date <> '' AND fulfillment_date >= $1 AND fulfillment_date < $2
		ORDER BY id
	`, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func (s *Store) ListOrdersByActivity(ctx context.Context, branchID string, from time.Time, to time.Time) ([]domain.Order, error) {
	return s.listOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR branch_id = $1)
			AND ((created_at >= $2 AND created_at < $3)
				OR (payment_completed_at >= $2 AND payment_completed_at < $3))
		ORDER BY created_at, id
	`, branchID, from, to)
}

func (s *Store) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 32)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *Store) UpsertExpense(ctx context.Context, expense domain.Expense) (domain.Expense, error) {
	return upsertExpense(ctx, s.db, expense)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func upsertExpense(ctx context.Context, q rowQuerier, expense domain.Expense) (domain.Expense, error) {
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO expenses (id, branch_id, category, supplier, amount, source_id, memo, expense_date, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (source_id) DO UPDATE
		SET branch_id = EXCLUDED.branch_id,
			category = EXCLUDED.category,
			supplier = EXCLUDED.supplier,
			amount = EXCLUDED.amount,
			memo = EXCLUDED.memo,
			expense_date = EXCLUDED.expense_date,
			updated_at = now()
		RETURNING id, created_at
	`, expense.ID, expense.BranchID, expense.Category, expense.Supplier, expense.Amount,
		nullIfEmpty(expense.SourceID), expense.Memo, expense.Date, expense.CreatedAt).Scan(&expense.ID, &expense.CreatedAt)
	if err != nil {
		return domain.Expense{}, err
	}
	expense.CreatedAt = expense.CreatedAt.UTC()
	return expense, nil
}

func (s *Store) ListExpenses(ctx context.Context, branchID string, from time.Time, to time.Time) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, category, supplier, amount, COALESCE(source_id, ''), memo, expense_date, created_at
		FROM expenses
		WHERE ($1 = '' OR branch_id = $1) AND expense_date >= $2 AND expense_date < $3
		ORDER BY id
	`, branchID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.Expense, 0, 16)
	for rows.Next() {
		var e domain.Expense
		if err := rows.Scan(&e.ID, &e.BranchID, &e.Category, &e.Supplier, &e.Amount, &e.SourceID, &e.Memo, &e.Date, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Date = e.Date.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

const entryColumns = `id, type, title, description, start_at, end_at, branch_id, status, color, created_by, created_at`

func scanEntry(row rowScanner) (*domain.CalendarEntry, error) {
	var e domain.CalendarEntry
	var end sql.NullTime
	if err := row.Scan(&e.ID, &e.Type, &e.Title, &e.Description, &e.Start, &end, &e.BranchID, &e.Status, &e.Color, &e.CreatedBy, &e.CreatedAt); err != nil {
		return nil, err
	}
	if end.Valid {
		at := end.Time
		e.End = &at
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.Origin = domain.EntryOrigin{Kind: domain.OriginManual}
	return &e, nil
}

func (s *Store) CreateCalendarEntry(ctx context.Context, entry domain.CalendarEntry) (*domain.CalendarEntry, error) {
	if entry.ID == "" {
		entry.ID = xid.New("evt")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Origin = domain.EntryOrigin{Kind: domain.OriginManual}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_entries (`+entryColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, entry.ID, entry.Type, entry.Title, entry.Description, entry.Start, nullTime(entry.End),
		entry.BranchID, entry.Status, entry.Color, entry.CreatedBy, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	return &entry, nil
}

func (s *Store) GetCalendarEntry(ctx context.Context, id string) (*domain.CalendarEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM calendar_entries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *Store) UpdateCalendarEntry(ctx context.Context, entry domain.CalendarEntry) (*domain.CalendarEntry, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE calendar_entries
		SET type = $2, title = $3, description = $4, start_at = $5, end_at = $6,
			branch_id = $7, status = $8, color = $9
		WHERE id = $1
	`, entry.ID, entry.Type, entry.Title, entry.Description, entry.Start, nullTime(entry.End),
		entry.BranchID, entry.Status, entry.Color)
	if err != nil {
		return nil, err
	}
	if err := expectAffected(res); err != nil {
		return nil, err
	}
	return s.GetCalendarEntry(ctx, entry.ID)
}

func (s *Store) DeleteCalendarEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM calendar_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (s *Store) ListCalendarEntries(ctx context.Context, from time.Time, to time.Time) ([]domain.CalendarEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM calendar_entries
		WHERE start_at < $2 AND GREATEST(start_at, COALESCE(end_at, start_at)) >= $1
		ORDER BY id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CalendarEntry, 0, 32)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

const outsourceColumns = `id, order_id, branch_id, partner_branch_id, state, order_revenue, partner_price, profit,
	note, created_at, accepted_at, completed_at, canceled_at`

func scanOutsource(row rowScanner) (*domain.OutsourceRecord, error) {
	var r domain.OutsourceRecord
	var accepted, completed, canceled sql.NullTime
	if err := row.Scan(&r.ID, &r.OrderID, &r.BranchID, &r.PartnerBranchID, &r.State, &r.OrderRevenue,
		&r.PartnerPrice, &r.Profit, &r.Note, &r.CreatedAt, &accepted, &completed, &canceled); err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.AcceptedAt = fromNullTime(accepted)
	r.CompletedAt = fromNullTime(completed)
	r.CanceledAt = fromNullTime(canceled)
	return &r, nil
}

func (s *Store) CreateOutsource(ctx context.Context, record domain.OutsourceRecord) (*domain.OutsourceRecord, error) {
	if record.ID == "" {
		record.ID = xid.New("out")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outsource_records (`+outsourceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, record.ID, record.OrderID, record.BranchID, record.PartnerBranchID, record.State, record.OrderRevenue,
		record.PartnerPrice, record.Profit, record.Note, record.CreatedAt,
		nullTime(record.AcceptedAt), nullTime(record.CompletedAt), nullTime(record.CanceledAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("order %s already outsourced: %w", record.OrderID, store.ErrConflict)
		}
		return nil, err
	}
	return &record, nil
}

func (s *Store) GetOutsource(ctx context.Context, id string) (*domain.OutsourceRecord, error) {
	r, err := scanOutsource(s.db.QueryRowContext(ctx, `SELECT `+outsourceColumns+` FROM outsource_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *Store) UpdateOutsource(ctx context.Context, record domain.OutsourceRecord) (*domain.OutsourceRecord, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outsource_records
		SET state = $2, partner_price = $3, profit = $4, note = $5,
			accepted_at = $6, completed_at = $7, canceled_at = $8
		WHERE id = $1 AND state IN ('pending', 'accepted')
	`, record.ID, record.State, record.PartnerPrice, record.Profit, record.Note,
		nullTime(record.AcceptedAt), nullTime(record.CompletedAt), nullTime(record.CanceledAt))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		existing, err := s.GetOutsource(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: outsource %s is %s", domain.ErrInvalidStateTransition, record.ID, existing.State)
	}
	return s.GetOutsource(ctx, record.ID)
}

func (s *Store) ListOutsource(ctx context.Context, branchID string) ([]domain.OutsourceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+outsourceColumns+`
		FROM outsource_records
		WHERE $1 = '' OR branch_id = $1 OR partner_branch_id = $1
		ORDER BY id
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.OutsourceRecord, 0, 16)
	for rows.Next() {
		r, err := scanOutsource(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.BranchID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, branch_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR branch_id = $1)
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, branchID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.BranchID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, branch_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.Username, user.Password, user.Role, user.BranchID, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, branch_id, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.BranchID, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func jsonText(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// nullJSON encodes v for a nullable JSONB column; nil pointers become SQL NULL.
func nullJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	return jsonText(v)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func fromNullTime(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	at := val.Time.UTC()
	return &at
}
