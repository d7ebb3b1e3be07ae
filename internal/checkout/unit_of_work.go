package checkout

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
)

// PostgresUnitOfWork binds the catalog and order repositories to one pgx
// transaction. Read committed is enough here: product rows are locked with
// SELECT ... FOR UPDATE and the stock decrement is conditional.
type PostgresUnitOfWork struct {
	pool      db.TxBeginner
	txOptions pgx.TxOptions
}

func NewPostgresUnitOfWork(pool db.TxBeginner) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{pool: pool}
}

// WithTxOptions returns a copy that opens transactions with opts, e.g. to run
// under serializable isolation.
func (u *PostgresUnitOfWork) WithTxOptions(opts pgx.TxOptions) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{pool: u.pool, txOptions: opts}
}

func (u *PostgresUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	tx, err := u.pool.BeginTx(ctx, u.txOptions)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stores := Stores{
		Products: catalog.NewRepository(tx),
		Orders:   order.NewRepository(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
