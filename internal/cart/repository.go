package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/lib/pq"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/money"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

const foreignKeyViolation = "23503"

// Repository keeps each user's cart as (product, quantity) rows. Prices are
// never stored here.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, userID int64) (Cart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.product_id, p.name, p.price_cents, p.stock_quantity, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.added_at, ci.product_id`, userID)
	if err != nil {
		return Cart{}, fmt.Errorf("select cart: %w", err)
	}
	defer rows.Close()

	c := Cart{UserID: userID, Lines: []Line{}}
	for rows.Next() {
		var (
			l     Line
			cents int64
		)
		if err := rows.Scan(&l.ProductID, &l.ProductName, &cents, &l.Available, &l.Quantity); err != nil {
			return Cart{}, fmt.Errorf("scan cart line: %w", err)
		}
		l.UnitPrice = money.FromCents(cents)
		c.Lines = append(c.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return Cart{}, fmt.Errorf("rows: %w", err)
	}
	return c, nil
}

// Add increases the quantity of productID in the cart, creating the line if needed.
func (r *Repository) Add(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		userID, productID, quantity)
	return mapWriteError("add cart item", err)
}

// SetQuantity replaces the quantity of a line; zero removes it.
func (r *Repository) SetQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	switch {
	case quantity < 0:
		return ErrInvalidQuantity
	case quantity == 0:
		return r.Remove(ctx, userID, productID)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity`,
		userID, productID, quantity)
	return mapWriteError("set cart item", err)
}

func (r *Repository) Remove(ctx context.Context, userID, productID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID); err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	return nil
}

func (r *Repository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Consume takes the ordered quantities out of the user's cart after a
// checkout. Lines are reduced by what was ordered and deleted once nothing is
// left, so anything added after the cart was read survives.
func (r *Repository) Consume(ctx context.Context, userID int64, ordered map[int64]int) error {
	if len(ordered) == 0 {
		return nil
	}
	ids := slices.Sorted(maps.Keys(ordered))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin consume cart: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		qty := ordered[id]
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM cart_items
			WHERE user_id = $1 AND product_id = $2 AND quantity <= $3`,
			userID, id, qty); err != nil {
			return fmt.Errorf("consume cart item %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE cart_items SET quantity = quantity - $3
			WHERE user_id = $1 AND product_id = $2 AND quantity > $3`,
			userID, id, qty); err != nil {
			return fmt.Errorf("consume cart item %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit consume cart: %w", err)
	}
	return nil
}

func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return ErrProductNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
