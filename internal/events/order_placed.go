package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/money"
)

const (
	EventTypeOrderPlaced = "OrderPlaced"
	orderPlacedSchema    = "storefront/order-placed/v1"
)

type OrderPlacedPayload struct {
	OrderID  int64             `json:"orderId"`
	UserID   int64             `json:"userId"`
	Total    string            `json:"total"`
	Items    []OrderPlacedItem `json:"items"`
	PlacedAt time.Time         `json:"placedAt"`
}

type OrderPlacedItem struct {
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

// Events for one user share a partition key so consumers see them in order.
func partitionKeyForUser(userID int64) string {
	return "user-" + strconv.FormatInt(userID, 10)
}

func orderPlacedPayload(o checkout.PlacedOrder) OrderPlacedPayload {
	p := OrderPlacedPayload{
		OrderID:  o.OrderID,
		UserID:   o.UserID,
		Total:    money.Format(o.Total),
		Items:    make([]OrderPlacedItem, 0, len(o.Lines)),
		PlacedAt: o.PlacedAt,
	}
	for _, ln := range o.Lines {
		p.Items = append(p.Items, OrderPlacedItem{
			ProductID: ln.ProductID,
			Quantity:  ln.Quantity,
			UnitPrice: money.Format(ln.UnitPrice),
		})
	}
	return p
}

func newOrderPlacedEvent(meta EventMeta, seq int64, producer string, payload OrderPlacedPayload, occurredAt time.Time) (EventEnvelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal OrderPlaced payload: %w", err)
	}
	return EventEnvelope{
		EventName:     EventTypeOrderPlaced,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		Producer:      producer,
		PartitionKey:  meta.PartitionKey,
		Sequence:      seq,
		OccurredAt:    occurredAt,
		Schema:        orderPlacedSchema,
		Payload:       body,
	}, nil
}
