package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/money"
)

var ErrNotFound = errors.New("order not found")

type Repository struct {
	exec db.Executor
}

func NewRepository(exec db.Executor) *Repository {
	return &Repository{exec: exec}
}

// WithExecutor returns a shallow copy using the provided executor (e.g., a transaction).
func (r *Repository) WithExecutor(exec db.Executor) *Repository {
	return &Repository{exec: exec}
}

// InsertOrder writes the order header and returns its generated id.
// created_at is assigned by the database.
func (r *Repository) InsertOrder(ctx context.Context, userID int64, total decimal.Decimal) (int64, error) {
	var id int64
	err := r.exec.QueryRow(ctx, `
		INSERT INTO orders (user_id, total_cents, status)
		VALUES ($1, $2, $3)
		RETURNING id
	`, userID, money.Cents(total), string(StatusPlaced)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func (r *Repository) InsertLineItem(ctx context.Context, orderID, productID int64, quantity int, unitPrice decimal.Decimal) error {
	_, err := r.exec.Exec(ctx, `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents)
		VALUES ($1, $2, $3, $4)
	`, orderID, productID, quantity, money.Cents(unitPrice))
	if err != nil {
		return fmt.Errorf("insert order_item: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, orderID int64) (Order, error) {
	orders, err := r.listOrders(ctx, `WHERE id = $1`, orderID)
	if err != nil {
		return Order{}, err
	}
	if len(orders) == 0 {
		return Order{}, ErrNotFound
	}
	return orders[0], nil
}

// List returns every order, newest first.
func (r *Repository) List(ctx context.Context) ([]Order, error) {
	return r.listOrders(ctx, "")
}

// ListByUser returns the orders placed by userID, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	return r.listOrders(ctx, `WHERE user_id = $1`, userID)
}

func (r *Repository) listOrders(ctx context.Context, where string, args ...any) ([]Order, error) {
	rows, err := r.exec.Query(ctx, `
		SELECT id, user_id, total_cents, status, created_at
		FROM orders `+where+`
		ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		var (
			o      Order
			cents  int64
			status string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &cents, &status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Total = money.FromCents(cents)
		o.Status = Status(status)
		o.Items = []LineItem{}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}
	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *Repository) loadItems(ctx context.Context, orders []Order) error {
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.exec.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price_cents
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`, ids)
	if err != nil {
		return fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it    LineItem
			cents int64
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &cents); err != nil {
			return fmt.Errorf("scan order_item: %w", err)
		}
		it.UnitPrice = money.FromCents(cents)
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}
