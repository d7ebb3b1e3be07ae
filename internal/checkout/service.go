package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/money"
)

const defaultMaxAttempts = 3

// MaxQuantity is the largest quantity a single line may request. It matches
// the INTEGER quantity and stock columns.
const MaxQuantity = math.MaxInt32

// Postgres aborts one side of a conflicting pair with these codes; the
// transaction can be replayed from scratch.
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// Service places orders. All validation and writes for one order happen in a
// single unit of work, so an order either exists completely (header, items and
// stock decrements) or not at all.
type Service struct {
	uow         UnitOfWork
	notifier    Notifier
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMaxAttempts bounds how often a transaction aborted by a serialization
// failure or deadlock is replayed. Values below 1 mean a single attempt.
func WithMaxAttempts(n int) Option {
	return func(s *Service) { s.maxAttempts = n }
}

func NewService(uow UnitOfWork, opts ...Option) *Service {
	s := &Service{
		uow:         uow,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxAttempts < 1 {
		s.maxAttempts = 1
	}
	return s
}

// PlaceOrder validates lines against live stock and prices, then persists the
// order, its line items and the stock decrements atomically. It returns the
// new order id, or one of ErrEmptyCart, ErrInvalidLine, ErrProductNotFound,
// ErrInsufficientStock (as typed errors) or ErrTransactionFailed.
func (s *Service) PlaceOrder(ctx context.Context, userID int64, lines []CartLine) (int64, error) {
	if len(lines) == 0 {
		return 0, ErrEmptyCart
	}
	for i, ln := range lines {
		if ln.ProductID <= 0 || ln.Quantity <= 0 || ln.Quantity > MaxQuantity {
			return 0, &InvalidLineError{Index: i, ProductID: ln.ProductID, Quantity: ln.Quantity}
		}
	}

	var (
		placed PlacedOrder
		err    error
	)
	for attempt := 1; ; attempt++ {
		placed, err = s.placeOnce(ctx, userID, lines)
		if err == nil {
			break
		}
		if isBusinessError(err) {
			s.logger.DebugContext(ctx, "order rejected", "user_id", userID, "err", err)
			return 0, err
		}
		if !isRetryable(err) || attempt >= s.maxAttempts || ctx.Err() != nil {
			s.logger.ErrorContext(ctx, "order transaction failed", "user_id", userID, "attempt", attempt, "err", err)
			return 0, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
		}
		s.logger.WarnContext(ctx, "order transaction conflict, retrying", "user_id", userID, "attempt", attempt, "err", err)
	}

	placed.PlacedAt = s.now().UTC()
	s.logger.InfoContext(ctx, "order placed",
		"order_id", placed.OrderID,
		"user_id", userID,
		"lines", len(placed.Lines),
		"total", placed.Total.StringFixed(2),
	)

	if s.notifier != nil {
		if err := s.notifier.OrderPlaced(ctx, placed); err != nil {
			s.logger.WarnContext(ctx, "publish order placed failed", "order_id", placed.OrderID, "err", err)
		}
	}

	return placed.OrderID, nil
}

func (s *Service) placeOnce(ctx context.Context, userID int64, lines []CartLine) (PlacedOrder, error) {
	var placed PlacedOrder

	err := s.uow.Do(ctx, func(ctx context.Context, st Stores) error {
		placed = PlacedOrder{UserID: userID, Total: decimal.Zero, Lines: make([]ResolvedLine, 0, len(lines))}

		// Quantities are accumulated per product so that several lines for the
		// same product are checked against stock together.
		requested := make(map[int64]int, len(lines))
		available := make(map[int64]int, len(lines))
		names := make(map[int64]string, len(lines))

		for i, ln := range lines {
			p, err := st.Products.GetForUpdate(ctx, ln.ProductID)
			if err != nil {
				if errors.Is(err, catalog.ErrNotFound) {
					return &ProductNotFoundError{ProductID: ln.ProductID}
				}
				return err
			}

			requested[ln.ProductID] += ln.Quantity
			available[ln.ProductID] = p.StockQuantity
			names[ln.ProductID] = p.Name

			if p.StockQuantity < requested[ln.ProductID] {
				return &InsufficientStockError{
					ProductID:   ln.ProductID,
					ProductName: p.Name,
					Available:   p.StockQuantity,
					Requested:   requested[ln.ProductID],
				}
			}

			subtotal := p.Price.Mul(decimal.NewFromInt(int64(ln.Quantity)))
			placed.Total = placed.Total.Add(subtotal)
			if !money.InRange(placed.Total) {
				return &InvalidLineError{Index: i, ProductID: ln.ProductID, Quantity: ln.Quantity}
			}
			placed.Lines = append(placed.Lines, ResolvedLine{
				ProductID: ln.ProductID,
				Quantity:  ln.Quantity,
				UnitPrice: p.Price,
			})
		}

		orderID, err := st.Orders.InsertOrder(ctx, userID, placed.Total)
		if err != nil {
			return err
		}

		for _, rl := range placed.Lines {
			if err := st.Orders.InsertLineItem(ctx, orderID, rl.ProductID, rl.Quantity, rl.UnitPrice); err != nil {
				return err
			}
			if err := st.Products.DecrementStock(ctx, rl.ProductID, rl.Quantity); err != nil {
				if errors.Is(err, catalog.ErrInsufficientStock) {
					return &InsufficientStockError{
						ProductID:   rl.ProductID,
						ProductName: names[rl.ProductID],
						Available:   available[rl.ProductID],
						Requested:   requested[rl.ProductID],
					}
				}
				return err
			}
		}

		placed.OrderID = orderID
		return nil
	})
	if err != nil {
		return PlacedOrder{}, err
	}
	return placed, nil
}

func isBusinessError(err error) bool {
	return errors.Is(err, ErrInvalidLine) || errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrInsufficientStock)
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected
}
