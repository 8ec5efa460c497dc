package domain

import "time"

// KitchenOrderMessage is published to the kitchen topic exchange whenever an
// order is created or appended to.
type KitchenOrderMessage struct {
	OrderID     int64       `json:"order_id"`
	OrderName   string      `json:"order_name"`
	TableID     int64       `json:"table_id"`
	Lines       []OrderLine `json:"lines"`
	TotalAmount float64     `json:"total_amount"`
	Timestamp   time.Time   `json:"timestamp"`
}

// StatusNotification fans out on every order status change.
type StatusNotification struct {
	OrderID   int64  `json:"order_id"`
	OrderName string `json:"order_name"`
	TableID   int64  `json:"table_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}
