package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/money"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInUse             = errors.New("product is referenced by orders")
)

const foreignKeyViolation = "23503"

const productColumns = `id, name, description, price_cents, image_url, stock_quantity, created_at, updated_at`

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

func (r *Repository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.exec.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return products, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.exec.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

// GetForUpdate reads the authoritative price and stock of a product and locks
// the row until the surrounding transaction ends. Only meaningful when the
// repository is bound to a pgx.Tx.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (Product, error) {
	var (
		p     Product
		cents int64
	)
	err := r.exec.QueryRow(ctx, `
		SELECT id, name, price_cents, stock_quantity
		FROM products
		WHERE id=$1
		FOR UPDATE
	`, id).Scan(&p.ID, &p.Name, &cents, &p.StockQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("lock product %d: %w", id, err)
	}
	p.Price = money.FromCents(cents)
	return p, nil
}

// DecrementStock subtracts amount from the current stock in a single
// statement. It never writes a previously read value back and refuses to go
// below zero: when fewer than amount units remain it returns ErrInsufficientStock.
func (r *Repository) DecrementStock(ctx context.Context, id int64, amount int) error {
	tag, err := r.exec.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id=$1 AND stock_quantity >= $2
	`, id, amount)
	if err != nil {
		return fmt.Errorf("decrement stock for product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *Repository) Create(ctx context.Context, in ProductInput) (Product, error) {
	p, err := scanProduct(r.exec.QueryRow(ctx, `
		INSERT INTO products (name, description, price_cents, image_url, stock_quantity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productColumns,
		in.Name, in.Description, money.Cents(in.Price), in.ImageURL, in.StockQuantity,
	))
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (r *Repository) Update(ctx context.Context, id int64, in ProductInput) (Product, error) {
	p, err := scanProduct(r.exec.QueryRow(ctx, `
		UPDATE products
		SET name=$1, description=$2, price_cents=$3, image_url=$4, stock_quantity=$5, updated_at=now()
		WHERE id=$6
		RETURNING `+productColumns,
		in.Name, in.Description, money.Cents(in.Price), in.ImageURL, in.StockQuantity, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.exec.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrInUse
		}
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		cents int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &cents, &p.ImageURL, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	p.Price = money.FromCents(cents)
	return p, nil
}
