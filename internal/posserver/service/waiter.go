package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"waiter-station/internal/connections/rabbitmq"
	"waiter-station/internal/domain"
)

// Login verifies the waiter PIN, issues a session token and returns the full
// reference payload so the client needs no second round trip.
func (s *WaiterService) Login(ctx context.Context, p domain.LoginParams) *domain.LoginResult {
	if p.Login == "" || p.Pin == "" {
		return &domain.LoginResult{Status: validationFail("Please enter both name and PIN")}
	}

	wa, err := s.orders.WaiterByLogin(ctx, p.Login)
	if err != nil {
		return &domain.LoginResult{Status: s.fail("login", err)}
	}
	if !wa.IsWaiter {
		return &domain.LoginResult{Status: domain.Status{
			Error: "This user is not registered as a waiter", Code: domain.CodeAuthFailed,
		}}
	}
	if wa.Pin != p.Pin {
		return &domain.LoginResult{Status: domain.Status{
			Error: "Invalid PIN", Code: domain.CodeAuthFailed,
		}}
	}

	posSession, err := s.orders.ActiveSession(ctx)
	if err != nil {
		return &domain.LoginResult{Status: s.fail("login", err)}
	}

	ref, err := s.referenceData(ctx)
	if err != nil {
		return &domain.LoginResult{Status: s.fail("login", err)}
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = wa.Waiter.ID
	s.mu.Unlock()

	w := wa.Waiter
	info := *posSession
	info.Token = token
	s.lg.Info("waiter_login", map[string]any{"waiter_id": w.ID, "session_id": info.ID})

	return &domain.LoginResult{
		Status:        domain.Status{Success: true},
		Waiter:        &w,
		Session:       &info,
		ReferenceData: ref,
	}
}

// Data returns the reference caches, replaced wholesale on the client.
func (s *WaiterService) Data(ctx context.Context) *domain.WaiterDataResult {
	ref, err := s.referenceData(ctx)
	if err != nil {
		return &domain.WaiterDataResult{Status: s.fail("waiter_data", err)}
	}
	return &domain.WaiterDataResult{Status: domain.Status{Success: true}, ReferenceData: ref}
}

// TableOrder loads the active order linked to an occupied table.
func (s *WaiterService) TableOrder(ctx context.Context, p domain.TableOrderParams) *domain.TableOrderResult {
	order, err := s.orders.TableOrder(ctx, p.TableID)
	if err != nil {
		return &domain.TableOrderResult{Status: s.fail("get_table_order", err)}
	}
	return &domain.TableOrderResult{Status: domain.Status{Success: true}, Order: order}
}

func validateLines(lines []domain.OrderLine) string {
	if len(lines) == 0 {
		return "At least one order line is required"
	}
	for _, l := range lines {
		if l.Qty <= 0 {
			return fmt.Sprintf("Invalid quantity for %s", l.ProductName)
		}
		if l.PriceUnit < 0 {
			return fmt.Sprintf("Invalid price for %s", l.ProductName)
		}
	}
	return ""
}

// CreateOrder persists a new order for a free table and hands it to the
// kitchen.
func (s *WaiterService) CreateOrder(ctx context.Context, waiterID int64, p domain.CreateOrderParams) *domain.OrderResult {
	if msg := validateLines(p.Lines); msg != "" {
		return &domain.OrderResult{Status: validationFail(msg)}
	}

	posSession, err := s.orders.ActiveSession(ctx)
	if err != nil {
		return &domain.OrderResult{Status: s.fail("create_order", err)}
	}

	var total float64
	for _, l := range p.Lines {
		total += float64(l.Qty) * l.PriceUnit
	}

	seq, err := s.orders.CountOrders(ctx)
	if err != nil {
		return &domain.OrderResult{Status: s.fail("create_order", err)}
	}
	name := fmt.Sprintf("ORD_%s_%03d", time.Now().UTC().Format("20060102"), seq+1)

	orderID, err := s.orders.CreateOrder(ctx, name, posSession.ID, waiterID, p, total)
	if err != nil {
		return &domain.OrderResult{Status: s.fail("create_order", err)}
	}
	_ = s.catalog.InvalidateTables(ctx)

	s.publishKitchen(ctx, "kitchen.created", domain.KitchenOrderMessage{
		OrderID:     orderID,
		OrderName:   name,
		TableID:     p.TableID,
		Lines:       p.Lines,
		TotalAmount: total,
		Timestamp:   time.Now().UTC(),
	})

	s.lg.Info("order_created", map[string]any{"order_name": name, "table_id": p.TableID, "amount_total": total})
	return &domain.OrderResult{
		Status:      domain.Status{Success: true},
		OrderID:     orderID,
		OrderName:   name,
		AmountTotal: total,
	}
}

// AddItems appends lines to a persisted order and re-fires the kitchen event.
func (s *WaiterService) AddItems(ctx context.Context, p domain.AddItemsParams) *domain.OrderResult {
	if p.OrderID == 0 {
		return &domain.OrderResult{Status: validationFail("order_id is required")}
	}
	if msg := validateLines(p.Lines); msg != "" {
		return &domain.OrderResult{Status: validationFail(msg)}
	}

	order, err := s.orders.AddItems(ctx, p.OrderID, p.Lines)
	if err != nil {
		return &domain.OrderResult{Status: s.fail("add_items_to_order", err)}
	}
	_ = s.catalog.InvalidateTables(ctx)

	s.publishKitchen(ctx, "kitchen.updated", domain.KitchenOrderMessage{
		OrderID:     order.ID,
		OrderName:   order.Name,
		TableID:     order.TableID,
		Lines:       p.Lines,
		TotalAmount: order.DisplayTotal(),
		Timestamp:   time.Now().UTC(),
	})

	return &domain.OrderResult{
		Status:      domain.Status{Success: true},
		OrderID:     order.ID,
		OrderName:   order.Name,
		AmountTotal: order.DisplayTotal(),
	}
}

// ProcessPayment settles the order and frees its table.
func (s *WaiterService) ProcessPayment(ctx context.Context, p domain.PaymentParams) *domain.PaymentResult {
	if p.PaymentMethodID == 0 {
		return &domain.PaymentResult{Status: validationFail("payment_method_id is required")}
	}
	if p.Amount <= 0 {
		return &domain.PaymentResult{Status: validationFail("Invalid payment amount")}
	}

	order, err := s.orders.RecordPayment(ctx, p.OrderID, p.PaymentMethodID, p.Amount)
	if err != nil {
		return &domain.PaymentResult{Status: s.fail("process_payment", err)}
	}
	_ = s.catalog.InvalidateTables(ctx)

	s.publishNotification(ctx, domain.StatusNotification{
		OrderID:   order.ID,
		OrderName: order.Name,
		TableID:   order.TableID,
		Status:    "paid",
		Message:   fmt.Sprintf("Payment received for %s", order.Name),
	})

	s.lg.Info("payment_processed", map[string]any{"order_name": order.Name, "amount": p.Amount})
	return &domain.PaymentResult{Status: domain.Status{Success: true}, OrderName: order.Name}
}

// The order is already committed when these run; a lost broker message is
// logged, not surfaced to the waiter.
func (s *WaiterService) publishKitchen(ctx context.Context, key string, msg domain.KitchenOrderMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		s.lg.Error("marshal_kitchen_event", err, nil)
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.broker.Publish(pctx, rabbitmq.ExchangeKitchen, key, body, true); err != nil {
		s.lg.Error("publish_kitchen_event", err, map[string]any{"order_name": msg.OrderName})
	}
}

func (s *WaiterService) publishNotification(ctx context.Context, n domain.StatusNotification) {
	body, err := json.Marshal(n)
	if err != nil {
		s.lg.Error("marshal_notification", err, nil)
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.broker.Publish(pctx, rabbitmq.ExchangeNotifications, "", body, false); err != nil {
		s.lg.Error("publish_notification", err, map[string]any{"order_name": n.OrderName})
	}
}
