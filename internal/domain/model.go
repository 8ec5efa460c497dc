package domain

// Field names follow the wire contract: the same shapes travel between the
// terminal, the POS server and the broker.

type Waiter struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Login          string `json:"login"`
	EmployeeNumber string `json:"employee_number,omitempty"`
}

// SessionInfo describes the open POS session the waiter is attached to.
type SessionInfo struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

type TableStatus string

const (
	TableAvailable TableStatus = "available"
	TableOccupied  TableStatus = "occupied"
	TablePreparing TableStatus = "preparing"
	TableReady     TableStatus = "ready"
	TablePayment   TableStatus = "payment"
)

type Table struct {
	ID          int64       `json:"id"`
	TableNumber int         `json:"table_number"`
	FloorID     int64       `json:"floor_id"`
	Status      TableStatus `json:"status"`
}

func (t Table) Available() bool { return t.Status == "" || t.Status == TableAvailable }

type Floor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	ListPrice   float64 `json:"list_price"`
	CategoryIDs []int64 `json:"pos_categ_ids,omitempty"`
}

type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id,omitempty"`
}

type PaymentMethod struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type OrderLine struct {
	ID          int64   `json:"id,omitempty"` // set only on persisted lines
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Qty         int     `json:"qty"`
	PriceUnit   float64 `json:"price_unit"`
	Note        string  `json:"note,omitempty"`
}

// Order is the current order being composed or appended to. ID zero means the
// order has not been persisted yet.
type Order struct {
	ID          int64       `json:"id,omitempty"`
	Name        string      `json:"name,omitempty"`
	TableID     int64       `json:"table_id"`
	Lines       []OrderLine `json:"lines"`
	Notes       string      `json:"notes,omitempty"`
	AmountTotal *float64    `json:"amount_total,omitempty"` // server-authoritative once set
	State       string      `json:"state,omitempty"`
}

func (o *Order) Persisted() bool { return o != nil && o.ID != 0 }

// LinesTotal is the client-side recomputation, valid for unsent orders only.
func (o *Order) LinesTotal() float64 {
	if o == nil {
		return 0
	}
	var sum float64
	for _, l := range o.Lines {
		sum += float64(l.Qty) * l.PriceUnit
	}
	return sum
}

// DisplayTotal prefers the server-assigned total when the order carries one.
func (o *Order) DisplayTotal() float64 {
	if o != nil && o.AmountTotal != nil {
		return *o.AmountTotal
	}
	return o.LinesTotal()
}
