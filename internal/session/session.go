package session

import (
	"context"
	"errors"
	"sync"

	"waiter-station/internal/common/logger"
	"waiter-station/internal/domain"
	"waiter-station/internal/rpc"
)

type Screen string

const (
	ScreenLogin   Screen = "login"
	ScreenTables  Screen = "tables"
	ScreenOrder   Screen = "order"
	ScreenPayment Screen = "payment"
)

// Intent resolves what to do with an occupied table: keep adding items to its
// order, or take the payment.
type Intent int

const (
	IntentAddItems Intent = iota
	IntentPayment
)

// ErrBusy rejects a transition started while another request is in flight.
var ErrBusy = errors.New("another request is in flight")

// ErrStale marks a response that completed after the session moved on
// (logout or back); its result was discarded without touching state.
var ErrStale = errors.New("stale response discarded")

// ValidationError is a client-side precondition failure, raised before any
// network call.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return e.Reason }

// Backend is the slice of the POS contract the session drives. *rpc.Client
// implements it.
type Backend interface {
	Login(ctx context.Context, login, pin string) (*domain.LoginResult, error)
	Data(ctx context.Context) (*domain.ReferenceData, error)
	TableOrder(ctx context.Context, tableID int64) (*domain.Order, error)
	CreateOrder(ctx context.Context, p domain.CreateOrderParams) (*domain.OrderResult, error)
	AddItems(ctx context.Context, p domain.AddItemsParams) (*domain.OrderResult, error)
	ProcessPayment(ctx context.Context, p domain.PaymentParams) (*domain.PaymentResult, error)
	SetSessionToken(token string)
}

// Session is the waiter ordering state machine:
//
//	login -> tables -> order -> tables
//	                -> payment -> tables
//
// Logout returns to login from any state. Every network failure is non-fatal:
// the prior screen is retained and the action can be retried.
//
// One request is in flight at a time; a second transition fails with ErrBusy.
// Requests are tagged with the session epoch, which Logout and Back bump, so a
// response landing after navigation is discarded rather than applied.
type Session struct {
	backend Backend
	lg      *logger.Logger

	mu            sync.Mutex
	screen        Screen
	busy          bool
	epoch         uint64
	waiter        *domain.Waiter
	session       *domain.SessionInfo
	selectedTable *domain.Table
	order         *domain.Order
	existingOrder bool
	ref           domain.ReferenceData
}

func New(backend Backend) *Session {
	return &Session{
		backend: backend,
		lg:      logger.New("ordering-session"),
		screen:  ScreenLogin,
	}
}

// acquire marks the session busy and returns the epoch the caller's request
// belongs to.
func (s *Session) acquire() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return 0, ErrBusy
	}
	s.busy = true
	return s.epoch, nil
}

// settle re-locks after a network call. It reports whether the response is
// still current; a stale response has already been detached from any state
// the session cares about. The caller holds the lock on return.
func (s *Session) settle(epoch uint64) bool {
	s.mu.Lock()
	s.busy = false
	return epoch == s.epoch
}

func (s *Session) reportFailure(action string, err error) {
	var be *rpc.BusinessError
	if errors.As(err, &be) && be.Traceback != "" {
		// Diagnostics only; the traceback never reaches the user.
		s.lg.Debug("server_traceback", map[string]any{"action": action, "traceback": be.Traceback})
	}
	s.lg.Error(action, err, map[string]any{"screen": string(s.screen)})
}

// Login authenticates the waiter and fills every reference cache from the
// single login payload.
func (s *Session) Login(ctx context.Context, name, pin string) error {
	if name == "" || pin == "" {
		return &ValidationError{Reason: "Please enter both name and PIN"}
	}
	epoch, err := s.acquire()
	if err != nil {
		return err
	}

	res, err := s.backend.Login(ctx, name, pin)

	current := s.settle(epoch)
	defer s.mu.Unlock()
	if !current {
		return ErrStale
	}
	if err != nil {
		s.reportFailure("login", err)
		return err
	}

	s.waiter = res.Waiter
	s.session = res.Session
	if res.Session != nil {
		s.backend.SetSessionToken(res.Session.Token)
	}
	s.ref = res.ReferenceData
	s.screen = ScreenTables
	s.lg.Info("login_ok", map[string]any{"tables": len(s.ref.Tables), "products": len(s.ref.Products)})
	return nil
}

// SelectTable opens a fresh order on an available table, or resolves the
// occupied-table intent by loading the table's existing order.
func (s *Session) SelectTable(ctx context.Context, table domain.Table, intent Intent) error {
	if table.Available() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.busy {
			return ErrBusy
		}
		t := table
		s.selectedTable = &t
		s.order = &domain.Order{TableID: table.ID, Lines: []domain.OrderLine{}}
		s.existingOrder = false
		s.screen = ScreenOrder
		return nil
	}

	epoch, err := s.acquire()
	if err != nil {
		return err
	}

	order, err := s.backend.TableOrder(ctx, table.ID)

	current := s.settle(epoch)
	defer s.mu.Unlock()
	if !current {
		return ErrStale
	}
	if err != nil {
		s.reportFailure("load_table_order", err)
		return err
	}

	t := table
	s.selectedTable = &t
	s.order = order
	s.existingOrder = true
	if intent == IntentPayment {
		s.screen = ScreenPayment
	} else {
		// Editing recomputes totals live, so the stale server total is dropped.
		s.order.AmountTotal = nil
		s.screen = ScreenOrder
	}
	return nil
}

// AddProduct merges a product into the current order: an existing line for the
// same product gains one unit, otherwise a new line starts at qty 1.
func (s *Session) AddProduct(p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return &ValidationError{Reason: "No order in progress"}
	}
	for i := range s.order.Lines {
		if s.order.Lines[i].ProductID == p.ID {
			s.order.Lines[i].Qty++
			return nil
		}
	}
	s.order.Lines = append(s.order.Lines, domain.OrderLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		Qty:         1,
		PriceUnit:   p.ListPrice,
	})
	return nil
}

// UpdateLineQuantity adjusts a line by delta; at qty <= 0 the line is removed
// so a non-positive quantity never persists.
func (s *Session) UpdateLineQuantity(productID int64, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order == nil {
		return &ValidationError{Reason: "No order in progress"}
	}
	for i := range s.order.Lines {
		if s.order.Lines[i].ProductID != productID {
			continue
		}
		s.order.Lines[i].Qty += delta
		if s.order.Lines[i].Qty <= 0 {
			s.order.Lines = append(s.order.Lines[:i], s.order.Lines[i+1:]...)
		}
		return nil
	}
	return &ValidationError{Reason: "No such order line"}
}

// OrderTotal is the amount shown to the waiter: the server total once the
// order carries one, the client recomputation otherwise.
func (s *Session) OrderTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.DisplayTotal()
}

// Change is display-only and never negative.
func (s *Session) Change(amountReceived float64) float64 {
	total := s.OrderTotal()
	if amountReceived <= total {
		return 0
	}
	return amountReceived - total
}

// SendOrder routes by order id: a persisted order gets its items appended, an
// unsent one is created. On success the session returns to the table list with
// freshly loaded tables.
func (s *Session) SendOrder(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.order == nil || len(s.order.Lines) == 0 {
		s.mu.Unlock()
		return &ValidationError{Reason: "Please add items to the order"}
	}
	if s.existingOrder && s.order.ID == 0 {
		// An order flagged existing must carry the server id; routing by the
		// flag alone would append to order 0.
		s.mu.Unlock()
		return &ValidationError{Reason: "Existing order has no id; reload the table"}
	}
	ord := *s.order
	lines := make([]domain.OrderLine, len(s.order.Lines))
	copy(lines, s.order.Lines)
	s.busy = true
	epoch := s.epoch
	s.mu.Unlock()

	var res *domain.OrderResult
	var err error
	if ord.ID != 0 {
		res, err = s.backend.AddItems(ctx, domain.AddItemsParams{OrderID: ord.ID, Lines: lines})
	} else {
		res, err = s.backend.CreateOrder(ctx, domain.CreateOrderParams{
			TableID: ord.TableID, Lines: lines, Notes: ord.Notes,
		})
	}

	current := s.settle(epoch)
	if !current {
		s.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		s.reportFailure("send_order", err)
		s.mu.Unlock()
		return err
	}

	s.lg.Info("order_sent", map[string]any{"order_name": res.OrderName, "amount_total": res.AmountTotal})
	s.order = nil
	s.selectedTable = nil
	s.existingOrder = false
	s.screen = ScreenTables
	s.busy = true // table refresh completes the same user action
	s.mu.Unlock()

	s.refresh(ctx, epoch)
	return nil
}

// ProcessPayment validates the payment locally, then settles the order. The
// call carries the amount received, not the order total.
func (s *Session) ProcessPayment(ctx context.Context, methodID int64, amountReceived float64) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.order == nil || s.order.ID == 0 {
		s.mu.Unlock()
		return &ValidationError{Reason: "No persisted order to pay"}
	}
	if methodID == 0 {
		s.mu.Unlock()
		return &ValidationError{Reason: "Please select a payment method"}
	}
	if amountReceived < s.order.DisplayTotal() {
		s.mu.Unlock()
		return &ValidationError{Reason: "Amount received is less than order total"}
	}
	orderID := s.order.ID
	s.busy = true
	epoch := s.epoch
	s.mu.Unlock()

	res, err := s.backend.ProcessPayment(ctx, domain.PaymentParams{
		OrderID:         orderID,
		PaymentMethodID: methodID,
		Amount:          amountReceived,
	})

	current := s.settle(epoch)
	if !current {
		s.mu.Unlock()
		return ErrStale
	}
	if err != nil {
		s.reportFailure("process_payment", err)
		s.mu.Unlock()
		return err
	}

	s.lg.Info("payment_ok", map[string]any{"order_name": res.OrderName, "amount": amountReceived})
	s.order = nil
	s.selectedTable = nil
	s.existingOrder = false
	s.screen = ScreenTables
	s.busy = true
	s.mu.Unlock()

	s.refresh(ctx, epoch)
	return nil
}

// RefreshTables re-fetches all reference caches and replaces them wholesale.
func (s *Session) RefreshTables(ctx context.Context) error {
	epoch, err := s.acquire()
	if err != nil {
		return err
	}
	s.refresh(ctx, epoch)
	return nil
}

// refresh runs the data call; the caller must hold busy (not the lock).
// Failures only log: stale caches beat a dead screen.
func (s *Session) refresh(ctx context.Context, epoch uint64) {
	ref, err := s.backend.Data(ctx)

	current := s.settle(epoch)
	defer s.mu.Unlock()
	if !current {
		return
	}
	if err != nil {
		s.reportFailure("refresh_tables", err)
		return
	}
	s.ref = *ref
}

// Back abandons the current order and returns to the table list. A response
// still in flight will land stale.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.screen != ScreenOrder && s.screen != ScreenPayment {
		return
	}
	s.order = nil
	s.selectedTable = nil
	s.existingOrder = false
	s.epoch++
	s.screen = ScreenTables
}

// Logout clears everything locally; no server call is made.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiter = nil
	s.session = nil
	s.selectedTable = nil
	s.order = nil
	s.existingOrder = false
	s.ref = domain.ReferenceData{}
	s.epoch++
	s.screen = ScreenLogin
	s.backend.SetSessionToken("")
}
