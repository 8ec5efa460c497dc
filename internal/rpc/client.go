package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"waiter-station/internal/common/logger"
)

// SessionHeader carries the waiter session token on authenticated calls.
const SessionHeader = "X-Waiter-Session"

type envelope struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      int64  `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// Client speaks the POS backend's JSON-RPC-shaped HTTP contract: every call is
// a POST with a {jsonrpc, method:"call", params, id} body and the reply carries
// the payload under "result".
type Client struct {
	baseURL string
	httpc   *http.Client
	lg      *logger.Logger

	nextID  atomic.Int64
	session atomic.Value // string
}

func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		lg:      logger.New("rpc-client"),
	}
	c.session.Store("")
	return c
}

// SetSessionToken attaches (or clears) the session token sent on later calls.
func (c *Client) SetSessionToken(token string) { c.session.Store(token) }

// Call posts params to path and decodes the result payload into out.
func (c *Client) Call(ctx context.Context, path string, params any, out any) error {
	body, err := json.Marshal(envelope{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("encode request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Endpoint: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if tok, _ := c.session.Load().(string); tok != "" {
		req.Header.Set(SessionHeader, tok)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Endpoint: path, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &TransportError{Endpoint: path, Err: fmt.Errorf("server returned status %d", resp.StatusCode)}
	}

	var env response
	if err := json.Unmarshal(raw, &env); err != nil {
		c.lg.Error("parse_response", err, map[string]any{"endpoint": path, "body": truncateBody(raw)})
		return &ParseError{Endpoint: path, Body: truncateBody(raw), Err: err}
	}
	if len(env.Result) == 0 {
		err := fmt.Errorf("response carries no result")
		c.lg.Error("parse_response", err, map[string]any{"endpoint": path, "body": truncateBody(raw)})
		return &ParseError{Endpoint: path, Body: truncateBody(raw), Err: err}
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		c.lg.Error("parse_result", err, map[string]any{"endpoint": path})
		return &ParseError{Endpoint: path, Body: truncateBody(env.Result), Err: err}
	}
	return nil
}
