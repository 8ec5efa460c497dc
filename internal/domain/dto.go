package domain

// Status is the error envelope every endpoint folds into its result. Code is
// the typed classification; Error remains the human-readable message. The
// traceback, when present, is diagnostic-only and must never reach the user.
type Status struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

// Typed error codes carried in Status.Code.
const (
	CodeAuthFailed = "auth_failed"
	CodeNotFound   = "not_found"
	CodeValidation = "validation"
	CodeInternal   = "internal"
)

type LoginParams struct {
	Login string `json:"login"`
	Pin   string `json:"pin"`
}

// ReferenceData is the five read-mostly catalogs, always replaced wholesale.
type ReferenceData struct {
	Tables         []Table         `json:"tables"`
	Floors         []Floor         `json:"floors"`
	Products       []Product       `json:"products"`
	Categories     []Category      `json:"categories"`
	PaymentMethods []PaymentMethod `json:"payment_methods"`
}

type LoginResult struct {
	Status
	Waiter  *Waiter      `json:"waiter,omitempty"`
	Session *SessionInfo `json:"session,omitempty"`
	ReferenceData
}

type WaiterDataResult struct {
	Status
	ReferenceData
}

type TableOrderParams struct {
	TableID int64 `json:"table_id"`
}

type TableOrderResult struct {
	Status
	Order *Order `json:"order,omitempty"`
}

type CreateOrderParams struct {
	TableID int64       `json:"table_id"`
	Lines   []OrderLine `json:"lines"`
	Notes   string      `json:"notes"`
}

type AddItemsParams struct {
	OrderID int64       `json:"order_id"`
	Lines   []OrderLine `json:"lines"`
}

type OrderResult struct {
	Status
	OrderID     int64   `json:"order_id,omitempty"`
	OrderName   string  `json:"order_name,omitempty"`
	AmountTotal float64 `json:"amount_total,omitempty"`
}

type PaymentParams struct {
	OrderID         int64   `json:"order_id"`
	PaymentMethodID int64   `json:"payment_method_id"`
	Amount          float64 `json:"amount"`
}

type PaymentResult struct {
	Status
	OrderName string `json:"order_name,omitempty"`
}
