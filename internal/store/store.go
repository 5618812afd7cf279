package store

import (
	"context"
	"time"

	"flowershop/backend/internal/domain"
)

var (
	ErrNotFound           = domain.ErrNotFound
	ErrConflict           = domain.ErrConflict
	ErrInsufficientPoints = domain.ErrInsufficientPoints
)

type Repository interface {
	ListBranches(ctx context.Context) ([]domain.Branch, error)
	GetBranch(ctx context.Context, id string) (*domain.Branch, error)
	UpdateDeliveryFees(ctx context.Context, branchID string, table *domain.DeliveryFeeTable) (*domain.Branch, error)

	ListDiscountTiers(ctx context.Context, branchID string) ([]domain.DiscountTier, error)
	CreateDiscountTier(ctx context.Context, tier domain.DiscountTier) (*domain.DiscountTier, error)
	UpdateDiscountTierActive(ctx context.Context, id string, active bool) (*domain.DiscountTier, error)

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, branchID string) ([]domain.Customer, error)

	FindOrderByIdempotency(ctx context.Context, key string) (*domain.Order, error)
	FindOrderByID(ctx context.Context, id string) (*domain.Order, error)
	// CommitOrder stores a new order and applies its point movement to the customer in one
	// step. It returns ErrInsufficientPoints when the balance no longer covers PointsUsed and
	// the already stored order when the idempotency key was seen before.
	CommitOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	// UpdateOrder stores order only while the stored status still equals expectedStatus and
	// returns ErrConflict otherwise.
	UpdateOrder(ctx context.Context, order domain.Order, expectedStatus string) (*domain.Order, error)
	// RecordDeliveryCost stores order.DeliveryCost and upserts expense in one step, under the
	// same status guard as UpdateOrder.
	RecordDeliveryCost(ctx context.Context, order domain.Order, expectedStatus string, expense domain.Expense) (*domain.Order, error)
	// CancelOrder stores the canceled order and gives back used points minus earned points.
	CancelOrder(ctx context.Context, order domain.Order) (*domain.Order, error)
	ListScheduledOrders(ctx context.Context, from time.Time, to time.Time) ([]domain.Order, error)
	ListOrdersByActivity(ctx context.Context, branchID string, from time.Time, to time.Time) ([]domain.Order, error)

	UpsertExpense(ctx context.Context, expense domain.Expense) (domain.Expense, error)
	ListExpenses(ctx context.Context, branchID string, from time.Time, to time.Time) ([]domain.Expense, error)

	CreateCalendarEntry(ctx context.Context, entry domain.CalendarEntry) (*domain.CalendarEntry, error)
	GetCalendarEntry(ctx context.Context, id string) (*domain.CalendarEntry, error)
	UpdateCalendarEntry(ctx context.Context, entry domain.CalendarEntry) (*domain.CalendarEntry, error)
	DeleteCalendarEntry(ctx context.Context, id string) error
	ListCalendarEntries(ctx context.Context, from time.Time, to time.Time) ([]domain.CalendarEntry, error)

	CreateOutsource(ctx context.Context, record domain.OutsourceRecord) (*domain.OutsourceRecord, error)
	GetOutsource(ctx context.Context, id string) (*domain.OutsourceRecord, error)
	UpdateOutsource(ctx context.Context, record domain.OutsourceRecord) (*domain.OutsourceRecord, error)
	ListOutsource(ctx context.Context, branchID string) ([]domain.OutsourceRecord, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, branchID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
