package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"waiter-station/internal/common/logger"
	"waiter-station/internal/domain"
	"waiter-station/internal/posserver/service"
	"waiter-station/internal/rpc"
)

// rpcRequest is the JSON-RPC-shaped envelope every endpoint receives.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

type Handler struct {
	svc *service.WaiterService
	lg  *logger.Logger
}

func New(svc *service.WaiterService) *Handler {
	return &Handler{svc: svc, lg: logger.New("waiter-handlers")}
}

// Register mounts the six endpoints. Everything but login requires a valid
// session token header.
func (h *Handler) Register(r *gin.Engine) {
	r.POST(rpc.PathLogin, h.login)

	auth := r.Group("", h.authRequired)
	auth.POST(rpc.PathData, h.data)
	auth.POST(rpc.PathTableOrder, h.tableOrder)
	auth.POST(rpc.PathCreateOrder, h.createOrder)
	auth.POST(rpc.PathAddItems, h.addItems)
	auth.POST(rpc.PathProcessPaymnt, h.processPayment)
}

// decode reads the envelope and unmarshals its params. A body that is not
// even a valid envelope is a client bug, answered with 400 rather than a
// result-level error.
func decode(c *gin.Context, params any) (json.RawMessage, bool) {
	var req rpcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.String(http.StatusBadRequest, "invalid JSON-RPC request")
		return nil, false
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, params); err != nil {
			c.String(http.StatusBadRequest, "invalid params")
			return nil, false
		}
	}
	return req.ID, true
}

func respond(c *gin.Context, id json.RawMessage, result any) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (h *Handler) authRequired(c *gin.Context) {
	waiterID, ok := h.svc.Authenticate(c.GetHeader(rpc.SessionHeader))
	if !ok {
		respond(c, nil, domain.Status{
			Error: "Not authenticated. Please login again.",
			Code:  domain.CodeAuthFailed,
		})
		c.Abort()
		return
	}
	c.Set("waiter_id", waiterID)
}

func waiterID(c *gin.Context) int64 {
	id, _ := c.Get("waiter_id")
	v, _ := id.(int64)
	return v
}

func (h *Handler) login(c *gin.Context) {
	var p domain.LoginParams
	id, ok := decode(c, &p)
	if !ok {
		return
	}
	respond(c, id, h.svc.Login(c.Request.Context(), p))
}

func (h *Handler) data(c *gin.Context) {
	var p struct{}
	id, ok := decode(c, &p)
	if !ok {
		return
	}
	respond(c, id, h.svc.Data(c.Request.Context()))
}

func (h *Handler) tableOrder(c *gin.Context) {
	var p domain.TableOrderParams
	id, ok := decode(c, &p)
	if !ok {
		return
	}
	respond(c, id, h.svc.TableOrder(c.Request.Context(), p))
}

func (h *Handler) createOrder(c *gin.Context) {
	var p domain.CreateOrderParams
	id, ok := decode(c, &p)
	if !ok {
		return
	}
	respond(c, id, h.svc.CreateOrder(c.Request.Context(), waiterID(c), p))
}

func (h *Handler) addItems(c *gin.Context) {
	var p domain.AddItemsParams
	id, ok := decode(c, &p)
	if !ok {
		return
	}
	respond(c, id, h.svc.AddItems(c.Request.Context(), p))
}

func (h *Handler) processPayment(c *gin.Context) {
	var p domain.PaymentParams
	id, ok := decode(c, &p)
	if !ok {
		return
	}
	respond(c, id, h.svc.ProcessPayment(c.Request.Context(), p))
}
