package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"waiter-station/internal/domain"
)

// PG implements Catalog and Orders over Postgres.
type PG struct {
	pool *pgxpool.Pool
}

func NewPG(pool *pgxpool.Pool) *PG { return &PG{pool: pool} }

// tableStatusSQL derives the contract's table status from the linked order.
const tableStatusSQL = `
	CASE COALESCE(o.status, '')
		WHEN 'received'  THEN 'occupied'
		WHEN 'preparing' THEN 'preparing'
		WHEN 'ready'     THEN 'ready'
		WHEN 'payment'   THEN 'payment'
		ELSE 'available'
	END`

func (r *PG) Tables(ctx context.Context) ([]domain.Table, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT t.id, t.table_number, t.floor_id, `+tableStatusSQL+`
		FROM restaurant_tables t
		LEFT JOIN orders o ON o.id = t.current_order_id
		ORDER BY t.floor_id, t.table_number`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var out []domain.Table
	for rows.Next() {
		var t domain.Table
		if err := rows.Scan(&t.ID, &t.TableNumber, &t.FloorID, &t.Status); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PG) Floors(ctx context.Context) ([]domain.Floor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM floors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query floors: %w", err)
	}
	defer rows.Close()

	var out []domain.Floor
	for rows.Next() {
		var f domain.Floor
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PG) Products(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, list_price, category_ids
		FROM products WHERE available_in_pos ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.ListPrice, &p.CategoryIDs); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PG) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(parent_id, 0) FROM categories ORDER BY sequence, id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PG) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, type FROM payment_methods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query payment methods: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentMethod
	for rows.Next() {
		var m domain.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Type); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PG) InvalidateTables(ctx context.Context) error { return nil }

func (r *PG) WaiterByLogin(ctx context.Context, login string) (*WaiterAuth, error) {
	var wa WaiterAuth
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, login, COALESCE(employee_number, ''), pin, is_waiter
		FROM waiters WHERE login = $1 OR name ILIKE $1 LIMIT 1`, login).
		Scan(&wa.Waiter.ID, &wa.Waiter.Name, &wa.Waiter.Login,
			&wa.Waiter.EmployeeNumber, &wa.Pin, &wa.IsWaiter)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query waiter: %w", err)
	}
	return &wa, nil
}

func (r *PG) ActiveSession(ctx context.Context) (*domain.SessionInfo, error) {
	var s domain.SessionInfo
	err := r.pool.QueryRow(ctx, `
		SELECT id, name FROM pos_sessions WHERE state = 'opened' ORDER BY id DESC LIMIT 1`).
		Scan(&s.ID, &s.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoOpenSession
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return &s, nil
}

func (r *PG) TableOrder(ctx context.Context, tableID int64) (*domain.Order, error) {
	var orderID *int64
	err := r.pool.QueryRow(ctx,
		`SELECT current_order_id FROM restaurant_tables WHERE id = $1`, tableID).
		Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query table: %w", err)
	}
	if orderID == nil {
		return nil, ErrNoActiveOrder
	}
	return r.orderByID(ctx, *orderID)
}

func (r *PG) orderByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	var (
		o     domain.Order
		total float64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, table_id, COALESCE(notes, ''), amount_total, status
		FROM orders WHERE id = $1`, orderID).
		Scan(&o.ID, &o.Name, &o.TableID, &o.Notes, &total, &o.State)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o.AmountTotal = &total

	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, product_name, qty, price_unit, COALESCE(note, '')
		FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.Qty, &l.PriceUnit, &l.Note); err != nil {
			return nil, err
		}
		o.Lines = append(o.Lines, l)
	}
	return &o, rows.Err()
}

func (r *PG) CountOrders(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// CreateOrder inserts the order with its lines and links the table, all in
// one transaction.
func (r *PG) CreateOrder(ctx context.Context, name string, sessionID, waiterID int64, p domain.CreateOrderParams, total float64) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (name, table_id, session_id, waiter_id, notes, amount_total, amount_paid, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 'received', NOW(), NOW())
		RETURNING id`,
		name, p.TableID, sessionID, waiterID, p.Notes, total).Scan(&orderID)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	for _, l := range p.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, product_id, product_name, qty, price_unit, note)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, l.ProductID, l.ProductName, l.Qty, l.PriceUnit, l.Note); err != nil {
			return 0, fmt.Errorf("insert order line: %w", err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE restaurant_tables SET current_order_id = $1 WHERE id = $2`, orderID, p.TableID)
	if err != nil {
		return 0, fmt.Errorf("link table: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrTableNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return orderID, nil
}

// AddItems merges lines into a persisted order: lines carrying an id update
// the stored quantity, the rest are appended. The total is recomputed from
// the stored lines.
func (r *PG) AddItems(ctx context.Context, orderID int64, lines []domain.OrderLine) (*domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return nil, ErrOrderNotFound
	}

	for _, l := range lines {
		if l.ID != 0 {
			if _, err := tx.Exec(ctx,
				`UPDATE order_lines SET qty = $1, price_unit = $2 WHERE id = $3 AND order_id = $4`,
				l.Qty, l.PriceUnit, l.ID, orderID); err != nil {
				return nil, fmt.Errorf("update order line: %w", err)
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, product_id, product_name, qty, price_unit, note)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, l.ProductID, l.ProductName, l.Qty, l.PriceUnit, l.Note); err != nil {
			return nil, fmt.Errorf("insert order line: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET
			amount_total = (SELECT COALESCE(SUM(qty * price_unit), 0) FROM order_lines WHERE order_id = $1),
			status = 'received',
			updated_at = NOW()
		WHERE id = $1`, orderID); err != nil {
		return nil, fmt.Errorf("recompute total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r.orderByID(ctx, orderID)
}

// RecordPayment stores the payment, marks the order paid and frees the table.
func (r *PG) RecordPayment(ctx context.Context, orderID, methodID int64, amount float64) (*domain.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var tableID int64
	err = tx.QueryRow(ctx, `SELECT table_id FROM orders WHERE id = $1`, orderID).Scan(&tableID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO payments (order_id, payment_method_id, amount, created_at)
		VALUES ($1, $2, $3, NOW())`, orderID, methodID, amount); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET amount_paid = $1, status = 'paid', updated_at = NOW() WHERE id = $2`,
		amount, orderID); err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE restaurant_tables SET current_order_id = NULL WHERE id = $1 AND current_order_id = $2`,
		tableID, orderID); err != nil {
		return nil, fmt.Errorf("free table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r.orderByID(ctx, orderID)
}

func (r *PG) SetOrderStatus(ctx context.Context, orderID int64, status string) (*domain.Order, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`, status, orderID)
	if err != nil {
		return nil, fmt.Errorf("set order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrOrderNotFound
	}
	return r.orderByID(ctx, orderID)
}
