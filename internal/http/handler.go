package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/diagnostics"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
)

type ProductStore interface {
	List(ctx context.Context) ([]catalog.Product, error)
	Get(ctx context.Context, id int64) (catalog.Product, error)
	Create(ctx context.Context, in catalog.ProductInput) (catalog.Product, error)
	Update(ctx context.Context, id int64, in catalog.ProductInput) (catalog.Product, error)
	Delete(ctx context.Context, id int64) error
}

type OrderReader interface {
	GetByID(ctx context.Context, id int64) (order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]order.Order, error)
}

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, userID int64, lines []checkout.CartLine) (int64, error)
}

type CartStore interface {
	Get(ctx context.Context, userID int64) (cart.Cart, error)
	Add(ctx context.Context, userID, productID int64, quantity int) error
	SetQuantity(ctx context.Context, userID, productID int64, quantity int) error
	Remove(ctx context.Context, userID, productID int64) error
	Clear(ctx context.Context, userID int64) error
	Consume(ctx context.Context, userID int64, ordered map[int64]int) error
}

type IdempotencyStore interface {
	Claim(ctx context.Context, userID int64, key string) (int64, bool, error)
	Complete(ctx context.Context, userID int64, key string, orderID int64) error
	Release(ctx context.Context, userID int64, key string) error
}

type Deps struct {
	Products    ProductStore
	Orders      OrderReader
	Checkout    OrderPlacer
	Carts       CartStore        // optional
	Idempotency IdempotencyStore // optional
	Diagnostics *diagnostics.Registry
	Logger      *slog.Logger

	CheckoutTimeout  time.Duration
	CORSAllowOrigins []string
}

type Handler struct {
	products        ProductStore
	orders          OrderReader
	checkout        OrderPlacer
	carts           CartStore
	idem            IdempotencyStore
	diag            *diagnostics.Registry
	logger          *slog.Logger
	checkoutTimeout time.Duration
	corsOrigins     []string
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := d.CheckoutTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	diag := d.Diagnostics
	if diag == nil {
		diag = diagnostics.NewRegistry()
	}
	return &Handler{
		products:        d.Products,
		orders:          d.Orders,
		checkout:        d.Checkout,
		carts:           d.Carts,
		idem:            d.Idempotency,
		diag:            diag,
		logger:          logger,
		checkoutTimeout: timeout,
		corsOrigins:     d.CORSAllowOrigins,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "storefront-service"})
}
