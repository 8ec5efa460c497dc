package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waiter-station/internal/domain"
	"waiter-station/internal/rpc"
)

// fakeServer answers the POS contract with canned results and records every
// call, so tests can assert routing and payloads.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	calls   []recordedCall
	results map[string]any
	raw     map[string]string
	delays  map[string]time.Duration
}

type recordedCall struct {
	path   string
	params json.RawMessage
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{
		t:       t,
		results: make(map[string]any),
		raw:     make(map[string]string),
		delays:  make(map[string]time.Duration),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var env struct {
		JSONRPC string          `json:"jsonrpc"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params"`
		ID      int64           `json:"id"`
	}
	_ = json.Unmarshal(body, &env)

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{path: r.URL.Path, params: env.Params})
	delay := f.delays[r.URL.Path]
	raw, hasRaw := f.raw[r.URL.Path]
	result := f.results[r.URL.Path]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if hasRaw {
		_, _ = w.Write([]byte(raw))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": env.ID, "result": result})
}

func (f *fakeServer) set(path string, result any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[path] = result
}

func (f *fakeServer) setRaw(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw[path] = body
}

func (f *fakeServer) setDelay(path string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[path] = d
}

func (f *fakeServer) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.path
	}
	return out
}

func (f *fakeServer) lastParams(t *testing.T, path string, into any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].path == path {
			require.NoError(t, json.Unmarshal(f.calls[i].params, into))
			return
		}
	}
	t.Fatalf("no call recorded for %s", path)
}

func fptr(v float64) *float64 { return &v }

func refData() domain.ReferenceData {
	return domain.ReferenceData{
		Tables: []domain.Table{{ID: 5, TableNumber: 5, FloorID: 1, Status: domain.TableAvailable}},
		Floors: []domain.Floor{{ID: 1, Name: "Main Floor"}},
		Products: []domain.Product{
			{ID: 10, Name: "Coffee", ListPrice: 3},
			{ID: 11, Name: "Tea", ListPrice: 2.5},
		},
		Categories:     []domain.Category{{ID: 1, Name: "Drinks"}},
		PaymentMethods: []domain.PaymentMethod{{ID: 1, Name: "Cash"}},
	}
}

func newTestSession(t *testing.T) (*Session, *fakeServer) {
	f := newFakeServer(t)
	f.set(rpc.PathLogin, domain.LoginResult{
		Status:        domain.Status{Success: true},
		Waiter:        &domain.Waiter{ID: 1, Name: "alice", Login: "alice"},
		Session:       &domain.SessionInfo{ID: 1, Name: "POS/0001", Token: "tok-1"},
		ReferenceData: refData(),
	})
	f.set(rpc.PathData, domain.WaiterDataResult{
		Status:        domain.Status{Success: true},
		ReferenceData: refData(),
	})
	return New(rpc.NewClient(f.srv.URL)), f
}

func loggedIn(t *testing.T) (*Session, *fakeServer) {
	s, f := newTestSession(t)
	require.NoError(t, s.Login(context.Background(), "alice", "1234"))
	return s, f
}

func TestLogin_Success(t *testing.T) {
	s, _ := newTestSession(t)

	err := s.Login(context.Background(), "alice", "1234")
	require.NoError(t, err)

	assert.Equal(t, ScreenTables, s.Screen())
	assert.Len(t, s.Tables(), 1)
	assert.Len(t, s.Products(), 2)
	require.NotNil(t, s.Waiter())
	assert.Equal(t, "alice", s.Waiter().Name)
}

func TestLogin_EmptyCredentials(t *testing.T) {
	s, f := newTestSession(t)

	var ve *ValidationError
	require.ErrorAs(t, s.Login(context.Background(), "", "1234"), &ve)
	require.ErrorAs(t, s.Login(context.Background(), "alice", ""), &ve)

	assert.Empty(t, f.paths(), "validation must block the network call")
	assert.Equal(t, ScreenLogin, s.Screen())
}

func TestLogin_BusinessError(t *testing.T) {
	s, f := newTestSession(t)
	f.set(rpc.PathLogin, domain.LoginResult{
		Status: domain.Status{Error: "Invalid PIN", Traceback: "srv stack"},
	})

	err := s.Login(context.Background(), "alice", "9999")
	var be *rpc.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "Invalid PIN", be.Message)
	assert.Equal(t, domain.CodeAuthFailed, be.Classify(), "substring fallback when no code is set")

	assert.Equal(t, ScreenLogin, s.Screen())
	assert.Nil(t, s.Waiter())
}

func TestLogin_MalformedResponse(t *testing.T) {
	s, f := newTestSession(t)
	f.setRaw(rpc.PathLogin, "<html>Internal Server Error</html>")

	err := s.Login(context.Background(), "alice", "1234")
	var pe *rpc.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Body, "<html>")

	assert.Equal(t, ScreenLogin, s.Screen())
	assert.Nil(t, s.Waiter())
	assert.Empty(t, s.Tables())
}

func TestSelectTable_Available(t *testing.T) {
	s, _ := loggedIn(t)

	table := domain.Table{ID: 5, TableNumber: 5, Status: domain.TableAvailable}
	require.NoError(t, s.SelectTable(context.Background(), table, IntentAddItems))

	assert.Equal(t, ScreenOrder, s.Screen())
	order := s.CurrentOrder()
	require.NotNil(t, order)
	assert.EqualValues(t, 5, order.TableID)
	assert.Empty(t, order.Lines)
	assert.Empty(t, order.Notes)
	assert.False(t, order.Persisted())
}

func persistedOrderResult() domain.TableOrderResult {
	return domain.TableOrderResult{
		Status: domain.Status{Success: true},
		Order: &domain.Order{
			ID:      7,
			Name:    "ORD_20260831_001",
			TableID: 5,
			Lines: []domain.OrderLine{
				{ID: 71, ProductID: 10, ProductName: "Coffee", Qty: 3, PriceUnit: 5},
			},
			AmountTotal: fptr(15),
		},
	}
}

func TestSelectTable_OccupiedAddItems(t *testing.T) {
	s, f := loggedIn(t)
	f.set(rpc.PathTableOrder, persistedOrderResult())

	table := domain.Table{ID: 5, TableNumber: 5, Status: domain.TableOccupied}
	require.NoError(t, s.SelectTable(context.Background(), table, IntentAddItems))

	assert.Equal(t, ScreenOrder, s.Screen())
	order := s.CurrentOrder()
	require.NotNil(t, order)
	assert.EqualValues(t, 7, order.ID)
	assert.Nil(t, order.AmountTotal, "editing drops the stale server total")

	var p domain.TableOrderParams
	f.lastParams(t, rpc.PathTableOrder, &p)
	assert.EqualValues(t, 5, p.TableID)
}

func TestSelectTable_OccupiedPayment(t *testing.T) {
	s, f := loggedIn(t)
	f.set(rpc.PathTableOrder, persistedOrderResult())

	table := domain.Table{ID: 5, TableNumber: 5, Status: domain.TablePayment}
	require.NoError(t, s.SelectTable(context.Background(), table, IntentPayment))

	assert.Equal(t, ScreenPayment, s.Screen())
	assert.Equal(t, 15.0, s.OrderTotal(), "server total is authoritative on the payment screen")
}

func TestAddProduct_MergesByProductID(t *testing.T) {
	s, _ := loggedIn(t)
	require.NoError(t, s.SelectTable(context.Background(), domain.Table{ID: 5}, IntentAddItems))

	coffee := domain.Product{ID: 10, Name: "Coffee", ListPrice: 3}
	tea := domain.Product{ID: 11, Name: "Tea", ListPrice: 2.5}
	require.NoError(t, s.AddProduct(coffee))
	require.NoError(t, s.AddProduct(coffee))
	require.NoError(t, s.AddProduct(tea))

	order := s.CurrentOrder()
	require.Len(t, order.Lines, 2)
	assert.EqualValues(t, 10, order.Lines[0].ProductID)
	assert.Equal(t, 2, order.Lines[0].Qty)
	assert.Equal(t, 3.0, order.Lines[0].PriceUnit)
	assert.Equal(t, 1, order.Lines[1].Qty)
	assert.Equal(t, 8.5, s.OrderTotal())
}

func TestAddProduct_SpecScenario(t *testing.T) {
	s, _ := loggedIn(t)
	require.NoError(t, s.SelectTable(context.Background(), domain.Table{ID: 5}, IntentAddItems))

	coffee := domain.Product{ID: 10, Name: "Coffee", ListPrice: 3}
	require.NoError(t, s.AddProduct(coffee))
	require.NoError(t, s.AddProduct(coffee))

	order := s.CurrentOrder()
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 2, order.Lines[0].Qty)
	assert.Equal(t, 6.0, s.OrderTotal())
}

func TestUpdateLineQuantity_RemovesAtZero(t *testing.T) {
	s, _ := loggedIn(t)
	require.NoError(t, s.SelectTable(context.Background(), domain.Table{ID: 5}, IntentAddItems))
	require.NoError(t, s.AddProduct(domain.Product{ID: 10, Name: "Coffee", ListPrice: 3}))
	require.NoError(t, s.AddProduct(domain.Product{ID: 10, Name: "Coffee", ListPrice: 3}))
	require.NoError(t, s.AddProduct(domain.Product{ID: 10, Name: "Coffee", ListPrice: 3}))

	require.NoError(t, s.UpdateLineQuantity(10, -1))
	assert.Equal(t, 2, s.CurrentOrder().Lines[0].Qty)

	// Decrement to exactly zero removes the line.
	require.NoError(t, s.UpdateLineQuantity(10, -2))
	assert.Empty(t, s.CurrentOrder().Lines)

	// And a decrement past zero would as well.
	require.NoError(t, s.AddProduct(domain.Product{ID: 10, Name: "Coffee", ListPrice: 3}))
	require.NoError(t, s.UpdateLineQuantity(10, -5))
	assert.Empty(t, s.CurrentOrder().Lines)
}

func TestOrderTotal_EmptyOrder(t *testing.T) {
	s, _ := loggedIn(t)
	require.NoError(t, s.SelectTable(context.Background(), domain.Table{ID: 5}, IntentAddItems))
	assert.Equal(t, 0.0, s.OrderTotal())
}

func TestSendOrder_NewRoutesToCreate(t *testing.T) {
	s, f := loggedIn(t)
	require.NoError(t, s.SelectTable(context.Background(), domain.Table{ID: 5}, IntentAddItems))
	require.NoError(t, s.AddProduct(domain.Product{ID: 10, Name: "Coffee", ListPrice: 3}))
	s.SetOrderNotes("no sugar")
	f.set(rpc.PathCreateOrder, domain.OrderResult{
		Status: domain.Status{Success: true}, OrderID: 9, OrderName: "ORD_20260831_002", AmountTotal: 3,
	})

	require.NoError(t, s.SendOrder(context.Background()))

	paths := f.paths()
	assert.Contains(t, paths, rpc.PathCreateOrder)
	assert.NotContains(t, paths, rpc.PathAddItems)
	assert.Equal(t, rpc.PathData, paths[len(paths)-1], "success triggers a table refresh")

	var p domain.CreateOrderParams
	f.lastParams(t, rpc.PathCreateOrder, &p)
	assert.EqualValues(t, 5, p.TableID)
	assert.Equal(t, "no sugar", p.Notes)
	require.Len(t, p.Lines, 1)

	assert.Equal(t, ScreenTables, s.Screen())
	assert.Nil(t, s.CurrentOrder())
	assert.Nil(t, s.SelectedTable())
}

func TestSendOrder_ExistingRoutesToAddItems(t *testing.T) {
	s, f := loggedIn(t)
	f.set(rpc.PathTableOrder, persistedOrderResult())
	require.NoError(t, s.SelectTable(context.Background(),
		domain.Table{ID: 5, Status: domain.TableOccupied}, IntentAddItems))
	require.NoError(t, s.AddProduct(domain.Product{ID: 11, Name: "Tea", ListPrice: 2.5}))
	f.set(rpc.PathAddItems, domain.OrderResult{
		Status: domain.Status{Success: true}, OrderID: 7, OrderName: "ORD_20260831_001", AmountTotal: 17.5,
	})

	require.NoError(t, s.SendOrder(context.Background()))

	paths := f.paths()
	assert.Contains(t, paths, rpc.PathAddItems)
	assert.NotContains(t, paths, rpc.PathCreateOrder)

	var p domain.AddItemsParams
	f.lastParams(t, rpc.PathAddItems, &p)
	assert.EqualValues(t, 7, p.OrderID)
	assert.Equal(t, ScreenTables, s.Screen())
}

func TestSendOrder_EmptyOrder(t *testing.T) {
	s, f := loggedIn(t)
	require.NoError(t, s.SelectTable(context.Background(), domain.Table{ID: 5}, IntentAddItems))

	before := len(f.paths())
	var ve *ValidationError
	require.ErrorAs(t, s.SendOrder(context.Background()), &ve)
	assert.Len(t, f.paths(), before)
	assert.Equal(t, ScreenOrder, s.Screen())
}

func TestSendOrder_ExistingFlagWithoutID(t *testing.T) {
	s, f := loggedIn(t)
	// A backend bug: the loaded order carries no id.
	f.set(rpc.PathTableOrder, domain.TableOrderResult{
		Status: domain.Status{Success: true},
		Order: &domain.Order{
			TableID: 5,
			Lines:   []domain.OrderLine{{ProductID: 10, ProductName: "Coffee", Qty: 1, PriceUnit: 3}},
		},
	})
	require.NoError(t, s.SelectTable(context.Background(),
		domain.Table{ID: 5, Status: domain.TableOccupied}, IntentAddItems))

	before := len(f.paths())
	var ve *ValidationError
	require.ErrorAs(t, s.SendOrder(context.Background()), &ve)
	assert.Len(t, f.paths(), before, "the defective order must not reach either endpoint")
	assert.Equal(t, ScreenOrder, s.Screen())
}

func TestSendOrder_FailureStaysOnOrder(t *testing.T) {
	s, f := loggedIn(t)
	require.NoError(t, s.SelectTable(context.Background(), domain.Table{ID: 5}, IntentAddItems))
	require.NoError(t, s.AddProduct(domain.Product{ID: 10, Name: "Coffee", ListPrice: 3}))
	f.set(rpc.PathCreateOrder, domain.OrderResult{
		Status: domain.Status{Error: "No active POS session", Code: domain.CodeValidation},
	})

	var be *rpc.BusinessError
	require.ErrorAs(t, s.SendOrder(context.Background()), &be)
	assert.Equal(t, domain.CodeValidation, be.Classify())

	assert.Equal(t, ScreenOrder, s.Screen())
	require.NotNil(t, s.CurrentOrder())
	assert.Len(t, s.CurrentOrder().Lines, 1, "the order survives for a retry")
}

func TestProcessPayment_SendsAmountReceived(t *testing.T) {
	s, f := loggedIn(t)
	f.set(rpc.PathTableOrder, persistedOrderResult())
	require.NoError(t, s.SelectTable(context.Background(),
		domain.Table{ID: 5, Status: domain.TablePayment}, IntentPayment))
	f.set(rpc.PathProcessPaymnt, domain.PaymentResult{
		Status: domain.Status{Success: true}, OrderName: "ORD_20260831_001",
	})

	assert.Equal(t, 5.0, s.Change(20))
	require.NoError(t, s.ProcessPayment(context.Background(), 1, 20))

	var p domain.PaymentParams
	f.lastParams(t, rpc.PathProcessPaymnt, &p)
	assert.EqualValues(t, 7, p.OrderID)
	assert.EqualValues(t, 1, p.PaymentMethodID)
	assert.Equal(t, 20.0, p.Amount, "the received amount goes on the wire, not the total")

	assert.Equal(t, ScreenTables, s.Screen())
	assert.Nil(t, s.CurrentOrder())
}

func TestProcessPayment_Validation(t *testing.T) {
	s, f := loggedIn(t)
	f.set(rpc.PathTableOrder, persistedOrderResult())
	require.NoError(t, s.SelectTable(context.Background(),
		domain.Table{ID: 5, Status: domain.TablePayment}, IntentPayment))

	before := len(f.paths())
	var ve *ValidationError

	require.ErrorAs(t, s.ProcessPayment(context.Background(), 0, 20), &ve)
	require.ErrorAs(t, s.ProcessPayment(context.Background(), 1, 10), &ve)

	assert.Len(t, f.paths(), before, "validation failures never reach the network")
	assert.Equal(t, ScreenPayment, s.Screen())
}

func TestChange_NeverNegative(t *testing.T) {
	s, f := loggedIn(t)
	f.set(rpc.PathTableOrder, persistedOrderResult())
	require.NoError(t, s.SelectTable(context.Background(),
		domain.Table{ID: 5, Status: domain.TablePayment}, IntentPayment))

	assert.Equal(t, 0.0, s.Change(10))
	assert.Equal(t, 0.0, s.Change(15))
	assert.Equal(t, 5.0, s.Change(20))
}

func TestRefreshTables_ReplacesWholesale(t *testing.T) {
	s, f := loggedIn(t)
	ref := refData()
	ref.Tables = []domain.Table{
		{ID: 5, TableNumber: 5, FloorID: 1, Status: domain.TableOccupied},
		{ID: 6, TableNumber: 6, FloorID: 1, Status: domain.TableAvailable},
	}
	f.set(rpc.PathData, domain.WaiterDataResult{Status: domain.Status{Success: true}, ReferenceData: ref})

	require.NoError(t, s.RefreshTables(context.Background()))

	tables := s.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, domain.TableOccupied, tables[0].Status)
}

func TestRefreshTables_MalformedKeepsCaches(t *testing.T) {
	s, f := loggedIn(t)
	f.setRaw(rpc.PathData, "not json at all")

	require.NoError(t, s.RefreshTables(context.Background()), "refresh failures only log")
	assert.Len(t, s.Tables(), 1, "stale caches beat a dead screen")
	assert.Equal(t, ScreenTables, s.Screen())
}

func TestBusyGuard_RejectsSecondTransition(t *testing.T) {
	s, f := newTestSession(t)
	f.setDelay(rpc.PathLogin, 150*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- s.Login(context.Background(), "alice", "1234") }()

	require.Eventually(t, s.Busy, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.RefreshTables(context.Background()), ErrBusy)

	require.NoError(t, <-done)
	assert.Equal(t, ScreenTables, s.Screen())
}

func TestLogout_DiscardsLateResponse(t *testing.T) {
	s, f := loggedIn(t)
	f.set(rpc.PathTableOrder, persistedOrderResult())
	f.setDelay(rpc.PathTableOrder, 150*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- s.SelectTable(context.Background(),
			domain.Table{ID: 5, Status: domain.TableOccupied}, IntentAddItems)
	}()
	require.Eventually(t, s.Busy, time.Second, 5*time.Millisecond)

	s.Logout()

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, ScreenLogin, s.Screen())
	assert.Nil(t, s.CurrentOrder())
	assert.Nil(t, s.Waiter())
}

func TestLogout_ClearsEverything(t *testing.T) {
	s, f := loggedIn(t)
	_ = f

	s.Logout()

	assert.Equal(t, ScreenLogin, s.Screen())
	assert.Nil(t, s.Waiter())
	assert.Empty(t, s.Tables())
	assert.Empty(t, s.Products())
}

func TestBack_ClearsOrderAndTable(t *testing.T) {
	s, _ := loggedIn(t)
	require.NoError(t, s.SelectTable(context.Background(), domain.Table{ID: 5}, IntentAddItems))
	require.NoError(t, s.AddProduct(domain.Product{ID: 10, Name: "Coffee", ListPrice: 3}))

	s.Back()

	assert.Equal(t, ScreenTables, s.Screen())
	assert.Nil(t, s.CurrentOrder())
	assert.Nil(t, s.SelectedTable())
}
