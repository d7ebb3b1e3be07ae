package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
)

// memDB is an in-memory stand-in for Postgres. In the default mode every
// transaction holds a global lock, which behaves like row locks on a tiny
// catalog. In optimistic mode transactions run concurrently against a
// snapshot and the loser of a write conflict gets a serialization failure at
// commit time.
type memDB struct {
	mu     sync.Mutex
	txLock sync.Mutex

	optimistic bool

	products    map[int64]catalog.Product
	versions    map[int64]int
	orders      map[int64]memOrder
	nextOrderID int64

	calls           int
	beginErr        error
	commitErr       error
	alwaysConflict  bool
	failItemProduct int64
}

type memOrder struct {
	userID int64
	total  decimal.Decimal
	items  []memItem
}

type memItem struct {
	productID int64
	quantity  int
	unitPrice decimal.Decimal
}

func newMemDB(products ...catalog.Product) *memDB {
	m := &memDB{
		products: make(map[int64]catalog.Product, len(products)),
		versions: make(map[int64]int, len(products)),
		orders:   map[int64]memOrder{},
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func product(id int64, name, price string, stock int) catalog.Product {
	return catalog.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), StockQuantity: stock}
}

func (m *memDB) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].StockQuantity
}

func (m *memDB) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memDB) order(id int64) (memOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}

func (m *memDB) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memDB) Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	m.mu.Lock()
	m.calls++
	beginErr := m.beginErr
	m.mu.Unlock()
	if beginErr != nil {
		return fmt.Errorf("begin tx: %w", beginErr)
	}

	if !m.optimistic {
		m.txLock.Lock()
		defer m.txLock.Unlock()
	}

	tx := m.begin()
	if err := fn(ctx, Stores{Products: tx, Orders: tx}); err != nil {
		return err
	}
	return m.commit(tx)
}

func (m *memDB) begin() *memTx {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		db:       m,
		products: make(map[int64]catalog.Product, len(m.products)),
		versions: make(map[int64]int, len(m.versions)),
		read:     map[int64]bool{},
		dirty:    map[int64]bool{},
		orders:   map[int64]memOrder{},
	}
	for id, p := range m.products {
		tx.products[id] = p
	}
	for id, v := range m.versions {
		tx.versions[id] = v
	}
	return tx
}

func (m *memDB) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.commitErr != nil {
		return fmt.Errorf("commit: %w", m.commitErr)
	}
	if m.alwaysConflict {
		return &pgconn.PgError{Code: serializationFailure, Message: "could not serialize access"}
	}
	if m.optimistic {
		for id := range tx.read {
			if m.versions[id] != tx.versions[id] {
				return &pgconn.PgError{Code: serializationFailure, Message: "could not serialize access due to concurrent update"}
			}
		}
	}

	for id := range tx.dirty {
		m.products[id] = tx.products[id]
		m.versions[id]++
	}
	for id, o := range tx.orders {
		m.orders[id] = o
	}
	return nil
}

type memTx struct {
	db       *memDB
	products map[int64]catalog.Product
	versions map[int64]int
	read     map[int64]bool
	dirty    map[int64]bool
	orders   map[int64]memOrder
}

func (tx *memTx) GetForUpdate(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := tx.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	tx.read[id] = true
	return p, nil
}

func (tx *memTx) DecrementStock(_ context.Context, id int64, amount int) error {
	p, ok := tx.products[id]
	if !ok || p.StockQuantity < amount {
		return catalog.ErrInsufficientStock
	}
	p.StockQuantity -= amount
	tx.products[id] = p
	tx.dirty[id] = true
	return nil
}

func (tx *memTx) InsertOrder(_ context.Context, userID int64, total decimal.Decimal) (int64, error) {
	// Like a Postgres sequence, ids are handed out outside the transaction.
	tx.db.mu.Lock()
	tx.db.nextOrderID++
	id := tx.db.nextOrderID
	tx.db.mu.Unlock()

	tx.orders[id] = memOrder{userID: userID, total: total}
	return id, nil
}

func (tx *memTx) InsertLineItem(_ context.Context, orderID, productID int64, quantity int, unitPrice decimal.Decimal) error {
	if tx.db.failItemProduct == productID {
		return errors.New("disk full")
	}
	o, ok := tx.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d not in transaction", orderID)
	}
	o.items = append(o.items, memItem{productID: productID, quantity: quantity, unitPrice: unitPrice})
	tx.orders[orderID] = o
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []PlacedOrder
	err    error
}

func (n *recordingNotifier) OrderPlaced(_ context.Context, o PlacedOrder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
	return n.err
}
