package rpc

import (
	"context"

	"waiter-station/internal/domain"
)

// Endpoint paths, fixed by the backend contract.
const (
	PathLogin         = "/pos/waiter/login"
	PathData          = "/pos/waiter/data"
	PathTableOrder    = "/pos/waiter/get_table_order"
	PathCreateOrder   = "/pos/waiter/create_order"
	PathAddItems      = "/pos/waiter/add_items_to_order"
	PathProcessPaymnt = "/pos/waiter/process_payment"
)

func (c *Client) Login(ctx context.Context, login, pin string) (*domain.LoginResult, error) {
	var res domain.LoginResult
	if err := c.Call(ctx, PathLogin, domain.LoginParams{Login: login, Pin: pin}, &res); err != nil {
		return nil, err
	}
	if err := BusinessFromStatus(PathLogin, res.Status); err != nil {
		return nil, err
	}
	return &res, nil
}

// Data refreshes the reference caches. Unlike the other endpoints the result
// carries no success flag; a non-empty error field is the failure signal.
func (c *Client) Data(ctx context.Context) (*domain.ReferenceData, error) {
	var res domain.WaiterDataResult
	if err := c.Call(ctx, PathData, struct{}{}, &res); err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, &BusinessError{
			Endpoint: PathData, Message: res.Error, Code: res.Code, Traceback: res.Traceback,
		}
	}
	return &res.ReferenceData, nil
}

func (c *Client) TableOrder(ctx context.Context, tableID int64) (*domain.Order, error) {
	var res domain.TableOrderResult
	if err := c.Call(ctx, PathTableOrder, domain.TableOrderParams{TableID: tableID}, &res); err != nil {
		return nil, err
	}
	if err := BusinessFromStatus(PathTableOrder, res.Status); err != nil {
		return nil, err
	}
	if res.Order == nil {
		return nil, &BusinessError{Endpoint: PathTableOrder, Message: "Could not load order", Code: domain.CodeNotFound}
	}
	return res.Order, nil
}

func (c *Client) CreateOrder(ctx context.Context, p domain.CreateOrderParams) (*domain.OrderResult, error) {
	var res domain.OrderResult
	if err := c.Call(ctx, PathCreateOrder, p, &res); err != nil {
		return nil, err
	}
	if err := BusinessFromStatus(PathCreateOrder, res.Status); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) AddItems(ctx context.Context, p domain.AddItemsParams) (*domain.OrderResult, error) {
	var res domain.OrderResult
	if err := c.Call(ctx, PathAddItems, p, &res); err != nil {
		return nil, err
	}
	if err := BusinessFromStatus(PathAddItems, res.Status); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ProcessPayment(ctx context.Context, p domain.PaymentParams) (*domain.PaymentResult, error) {
	var res domain.PaymentResult
	if err := c.Call(ctx, PathProcessPaymnt, p, &res); err != nil {
		return nil, err
	}
	if err := BusinessFromStatus(PathProcessPaymnt, res.Status); err != nil {
		return nil, err
	}
	return &res, nil
}
