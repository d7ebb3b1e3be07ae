package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventEnvelope is the v1 event envelope shared by every service on the
// ecommerce.events exchange.
type EventEnvelope struct {
	EventName     string          `json:"eventName"`
	EventVersion  int             `json:"eventVersion"`
	EventID       string          `json:"eventId"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CausationID   string          `json:"causationId,omitempty"`
	Producer      string          `json:"producer"`
	PartitionKey  string          `json:"partitionKey"`
	Sequence      int64           `json:"sequence,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Schema        string          `json:"schema"`
	Payload       json.RawMessage `json:"payload"`
}

// Validate checks that e is a well-formed name/version envelope. All
// problems are reported together.
func (e EventEnvelope) Validate(name string, version int) error {
	var errs []error
	if e.EventName != name {
		errs = append(errs, fmt.Errorf("eventName %q, want %q", e.EventName, name))
	}
	if e.EventVersion != version {
		errs = append(errs, fmt.Errorf("eventVersion %d, want %d", e.EventVersion, version))
	}
	for field, empty := range map[string]bool{
		"eventId":      e.EventID == "",
		"partitionKey": e.PartitionKey == "",
		"producer":     e.Producer == "",
		"occurredAt":   e.OccurredAt.IsZero(),
		"payload":      len(e.Payload) == 0,
	} {
		if empty {
			errs = append(errs, fmt.Errorf("missing %s", field))
		}
	}
	return errors.Join(errs...)
}
