package repository

import (
	"context"
	"errors"

	"waiter-station/internal/domain"
)

// Sentinel errors the service layer maps onto contract error codes.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrTableNotFound = errors.New("table not found")
	ErrNoActiveOrder = errors.New("no active order for this table")
	ErrOrderNotFound = errors.New("order not found")
	ErrNoOpenSession = errors.New("no open POS session")
)

// WaiterAuth is the credential row checked at login.
type WaiterAuth struct {
	Waiter   domain.Waiter
	Pin      string
	IsWaiter bool
}

// Catalog serves the read-mostly reference data.
type Catalog interface {
	Tables(ctx context.Context) ([]domain.Table, error)
	Floors(ctx context.Context) ([]domain.Floor, error)
	Products(ctx context.Context) ([]domain.Product, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
	// InvalidateTables drops any cached table statuses after an order or
	// payment write. A no-op for uncached implementations.
	InvalidateTables(ctx context.Context) error
}

// Orders owns the write side: waiter auth, order lifecycle, payments.
type Orders interface {
	WaiterByLogin(ctx context.Context, login string) (*WaiterAuth, error)
	ActiveSession(ctx context.Context) (*domain.SessionInfo, error)
	TableOrder(ctx context.Context, tableID int64) (*domain.Order, error)
	CountOrders(ctx context.Context) (int, error)
	CreateOrder(ctx context.Context, name string, sessionID, waiterID int64, p domain.CreateOrderParams, total float64) (int64, error)
	AddItems(ctx context.Context, orderID int64, lines []domain.OrderLine) (*domain.Order, error)
	RecordPayment(ctx context.Context, orderID, methodID int64, amount float64) (*domain.Order, error)
	SetOrderStatus(ctx context.Context, orderID int64, status string) (*domain.Order, error)
}
