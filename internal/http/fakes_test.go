package httpapi

import (
	"context"
	"sort"
	"sync"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/idempotency"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
)

type fakeProducts struct {
	items     map[int64]catalog.Product
	nextID    int64
	inUse     map[int64]bool
	listErr   error
	lastInput catalog.ProductInput
}

func newFakeProducts(ps ...catalog.Product) *fakeProducts {
	f := &fakeProducts{items: map[int64]catalog.Product{}, inUse: map[int64]bool{}}
	for _, p := range ps {
		f.items[p.ID] = p
		if p.ID > f.nextID {
			f.nextID = p.ID
		}
	}
	return f
}

func (f *fakeProducts) List(context.Context) ([]catalog.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]catalog.Product, 0, len(f.items))
	for _, p := range f.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeProducts) Get(_ context.Context, id int64) (catalog.Product, error) {
	p, ok := f.items[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) Create(_ context.Context, in catalog.ProductInput) (catalog.Product, error) {
	f.lastInput = in
	f.nextID++
	p := catalog.Product{ID: f.nextID, Name: in.Name, Description: in.Description, Price: in.Price, ImageURL: in.ImageURL, StockQuantity: in.StockQuantity}
	f.items[p.ID] = p
	return p, nil
}

func (f *fakeProducts) Update(_ context.Context, id int64, in catalog.ProductInput) (catalog.Product, error) {
	if _, ok := f.items[id]; !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	f.lastInput = in
	p := catalog.Product{ID: id, Name: in.Name, Description: in.Description, Price: in.Price, ImageURL: in.ImageURL, StockQuantity: in.StockQuantity}
	f.items[id] = p
	return p, nil
}

func (f *fakeProducts) Delete(_ context.Context, id int64) error {
	if f.inUse[id] {
		return catalog.ErrInUse
	}
	if _, ok := f.items[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeOrders struct {
	orders []order.Order
}

func (f *fakeOrders) GetByID(_ context.Context, id int64) (order.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return order.Order{}, order.ErrNotFound
}

func (f *fakeOrders) List(context.Context) ([]order.Order, error) {
	return f.orders, nil
}

func (f *fakeOrders) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	out := []order.Order{}
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type fakePlacer struct {
	mu     sync.Mutex
	calls  int
	userID int64
	lines  []checkout.CartLine
	id     int64
	err    error

	// onPlace runs before the result is returned.
	onPlace func()
}

func (f *fakePlacer) PlaceOrder(_ context.Context, userID int64, lines []checkout.CartLine) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.userID = userID
	f.lines = lines
	if f.onPlace != nil {
		f.onPlace()
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.id, nil
}

type fakeIdem struct {
	values   map[string]int64
	pending  map[string]bool
	released []string
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{values: map[string]int64{}, pending: map[string]bool{}}
}

func (f *fakeIdem) Claim(_ context.Context, _ int64, key string) (int64, bool, error) {
	if id, ok := f.values[key]; ok {
		return id, true, nil
	}
	if f.pending[key] {
		return 0, false, idempotency.ErrInProgress
	}
	f.pending[key] = true
	return 0, false, nil
}

func (f *fakeIdem) Complete(_ context.Context, _ int64, key string, orderID int64) error {
	delete(f.pending, key)
	f.values[key] = orderID
	return nil
}

func (f *fakeIdem) Release(_ context.Context, _ int64, key string) error {
	delete(f.pending, key)
	f.released = append(f.released, key)
	return nil
}

type placerFunc func(ctx context.Context, userID int64, lines []checkout.CartLine) (int64, error)

func (f placerFunc) PlaceOrder(ctx context.Context, userID int64, lines []checkout.CartLine) (int64, error) {
	return f(ctx, userID, lines)
}

type fakeCarts struct {
	products   *fakeProducts
	lines      map[int64][]cart.Line
	cleared    int
	consumeErr error
	consumed   map[int64]int
}

func newFakeCarts(products *fakeProducts) *fakeCarts {
	return &fakeCarts{products: products, lines: map[int64][]cart.Line{}}
}

func (f *fakeCarts) Get(_ context.Context, userID int64) (cart.Cart, error) {
	return cart.Cart{UserID: userID, Lines: append([]cart.Line{}, f.lines[userID]...)}, nil
}

func (f *fakeCarts) Add(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity <= 0 {
		return cart.ErrInvalidQuantity
	}
	for i, l := range f.lines[userID] {
		if l.ProductID == productID {
			f.lines[userID][i].Quantity += quantity
			return nil
		}
	}
	p, err := f.products.Get(ctx, productID)
	if err != nil {
		return cart.ErrProductNotFound
	}
	f.lines[userID] = append(f.lines[userID], cart.Line{
		ProductID: p.ID, ProductName: p.Name, UnitPrice: p.Price, Available: p.StockQuantity, Quantity: quantity,
	})
	return nil
}

func (f *fakeCarts) SetQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 0 {
		return cart.ErrInvalidQuantity
	}
	if quantity == 0 {
		return f.Remove(ctx, userID, productID)
	}
	for i, l := range f.lines[userID] {
		if l.ProductID == productID {
			f.lines[userID][i].Quantity = quantity
			return nil
		}
	}
	return f.Add(ctx, userID, productID, quantity)
}

func (f *fakeCarts) Remove(_ context.Context, userID, productID int64) error {
	kept := f.lines[userID][:0]
	for _, l := range f.lines[userID] {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	f.lines[userID] = kept
	return nil
}

func (f *fakeCarts) Consume(ctx context.Context, userID int64, ordered map[int64]int) error {
	if f.consumeErr != nil {
		return f.consumeErr
	}
	f.consumed = ordered
	for productID, qty := range ordered {
		for i, l := range f.lines[userID] {
			if l.ProductID != productID {
				continue
			}
			if l.Quantity <= qty {
				_ = f.Remove(ctx, userID, productID)
			} else {
				f.lines[userID][i].Quantity -= qty
			}
			break
		}
	}
	return nil
}

func (f *fakeCarts) Clear(_ context.Context, userID int64) error {
	f.cleared++
	delete(f.lines, userID)
	return nil
}
