package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waiter-station/internal/domain"
	"waiter-station/internal/posserver/repository"
	"waiter-station/internal/posserver/service"
	"waiter-station/internal/rpc"
)

type stubCatalog struct{}

func (stubCatalog) Tables(context.Context) ([]domain.Table, error) {
	return []domain.Table{{ID: 5, TableNumber: 5, FloorID: 1, Status: domain.TableAvailable}}, nil
}
func (stubCatalog) Floors(context.Context) ([]domain.Floor, error)     { return nil, nil }
func (stubCatalog) Products(context.Context) ([]domain.Product, error) { return nil, nil }
func (stubCatalog) Categories(context.Context) ([]domain.Category, error) {
	return nil, nil
}
func (stubCatalog) PaymentMethods(context.Context) ([]domain.PaymentMethod, error) {
	return nil, nil
}
func (stubCatalog) InvalidateTables(context.Context) error { return nil }

type stubOrders struct{}

func (stubOrders) WaiterByLogin(_ context.Context, login string) (*repository.WaiterAuth, error) {
	if login != "alice" {
		return nil, repository.ErrUserNotFound
	}
	return &repository.WaiterAuth{
		Waiter: domain.Waiter{ID: 1, Name: "alice", Login: "alice"}, Pin: "1234", IsWaiter: true,
	}, nil
}
func (stubOrders) ActiveSession(context.Context) (*domain.SessionInfo, error) {
	return &domain.SessionInfo{ID: 3, Name: "POS/0003"}, nil
}
func (stubOrders) TableOrder(context.Context, int64) (*domain.Order, error) {
	return nil, repository.ErrNoActiveOrder
}
func (stubOrders) CountOrders(context.Context) (int, error) { return 0, nil }
func (stubOrders) CreateOrder(context.Context, string, int64, int64, domain.CreateOrderParams, float64) (int64, error) {
	return 101, nil
}
func (stubOrders) AddItems(context.Context, int64, []domain.OrderLine) (*domain.Order, error) {
	return nil, repository.ErrOrderNotFound
}
func (stubOrders) RecordPayment(context.Context, int64, int64, float64) (*domain.Order, error) {
	return nil, repository.ErrOrderNotFound
}
func (stubOrders) SetOrderStatus(context.Context, int64, string) (*domain.Order, error) {
	return nil, repository.ErrOrderNotFound
}

type nopBroker struct{}

func (nopBroker) Publish(context.Context, string, string, []byte, bool) error { return nil }

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.New(stubCatalog{}, stubOrders{}, nopBroker{}, false)
	r := gin.New()
	New(svc).Register(r)
	return r
}

func post(t *testing.T, r *gin.Engine, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(rpc.SessionHeader, token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := post(t, r, rpc.PathLogin,
		`{"jsonrpc":"2.0","method":"call","params":{"login":"alice","pin":"1234"},"id":1}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var env struct {
		Result domain.LoginResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Result.Success, env.Result.Error)
	require.NotNil(t, env.Result.Session)
	return env.Result.Session.Token
}

func TestLoginRoute_EchoesEnvelope(t *testing.T) {
	r := newTestRouter()
	w := post(t, r, rpc.PathLogin,
		`{"jsonrpc":"2.0","method":"call","params":{"login":"alice","pin":"1234"},"id":42}`, "")

	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "2.0", env.JSONRPC)
	assert.Equal(t, "42", string(env.ID))
	assert.NotEmpty(t, env.Result)
}

func TestLoginRoute_MissingIDAnswersNull(t *testing.T) {
	r := newTestRouter()
	w := post(t, r, rpc.PathLogin,
		`{"jsonrpc":"2.0","method":"call","params":{"login":"alice","pin":"1234"}}`, "")

	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		ID json.RawMessage `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "null", string(env.ID))
}

func TestBadEnvelope_Answers400(t *testing.T) {
	r := newTestRouter()
	w := post(t, r, rpc.PathLogin, `this is not json`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, r, rpc.PathCreateOrder,
		`{"jsonrpc":"2.0","method":"call","params":"not-an-object","id":1}`,
		loginToken(t, r))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	r := newTestRouter()

	t.Run("missing token", func(t *testing.T) {
		w := post(t, r, rpc.PathData, `{"jsonrpc":"2.0","method":"call","params":{},"id":1}`, "")

		// Business failures ride the 200 envelope, auth included.
		require.Equal(t, http.StatusOK, w.Code)
		var env struct {
			Result domain.Status `json:"result"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.False(t, env.Result.Success)
		assert.Equal(t, domain.CodeAuthFailed, env.Result.Code)
	})

	t.Run("bogus token", func(t *testing.T) {
		w := post(t, r, rpc.PathData, `{"jsonrpc":"2.0","method":"call","params":{},"id":1}`, "bogus")

		require.Equal(t, http.StatusOK, w.Code)
		var env struct {
			Result domain.Status `json:"result"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.Equal(t, domain.CodeAuthFailed, env.Result.Code)
	})

	t.Run("valid token reaches the service", func(t *testing.T) {
		token := loginToken(t, r)
		w := post(t, r, rpc.PathData, `{"jsonrpc":"2.0","method":"call","params":{},"id":1}`, token)

		require.Equal(t, http.StatusOK, w.Code)
		var env struct {
			Result domain.WaiterDataResult `json:"result"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		assert.True(t, env.Result.Success)
		assert.Len(t, env.Result.Tables, 1)
	})

	t.Run("login needs no token", func(t *testing.T) {
		w := post(t, r, rpc.PathLogin,
			`{"jsonrpc":"2.0","method":"call","params":{"login":"alice","pin":"1234"},"id":1}`, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCreateOrderRoute_CarriesWaiterID(t *testing.T) {
	r := newTestRouter()
	token := loginToken(t, r)

	w := post(t, r, rpc.PathCreateOrder,
		`{"jsonrpc":"2.0","method":"call","params":{"table_id":5,"lines":[{"product_id":10,"product_name":"Coffee","qty":2,"price_unit":3}],"notes":""},"id":7}`,
		token)

	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Result domain.OrderResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Result.Success, env.Result.Error)
	assert.EqualValues(t, 101, env.Result.OrderID)
	assert.Equal(t, 6.0, env.Result.AmountTotal)
}
