package sequence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const defaultPartitionLimit = 50

type Store interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Partition is the last sequence handed out for one partition key.
type Partition struct {
	Key          string    `json:"partition_key"`
	LastSequence int64     `json:"last_sequence"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Repository hands out gap-free, per-partition event sequence numbers backed
// by the event_sequence table.
type Repository struct {
	store Store
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// NextSequence atomically increments and returns the next sequence for a partition.
// Numbering starts at 1.
func (r *Repository) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if strings.TrimSpace(partitionKey) == "" {
		return 0, fmt.Errorf("next sequence: empty partition key")
	}

	var seq int64
	err := r.store.QueryRow(ctx, `
		INSERT INTO event_sequence AS s (partition_key, last_sequence)
		VALUES ($1, 1)
		ON CONFLICT (partition_key)
		DO UPDATE SET last_sequence = s.last_sequence + 1, updated_at = now()
		RETURNING s.last_sequence
	`, partitionKey).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", partitionKey, err)
	}
	return seq, nil
}

// Partitions returns the most recently advanced partitions, newest first.
func (r *Repository) Partitions(ctx context.Context, limit int) ([]Partition, error) {
	if limit <= 0 {
		limit = defaultPartitionLimit
	}

	rows, err := r.store.Query(ctx, `
		SELECT partition_key, last_sequence, updated_at
		FROM event_sequence
		ORDER BY updated_at DESC, partition_key
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	out := []Partition{}
	for rows.Next() {
		var p Partition
		if err := rows.Scan(&p.Key, &p.LastSequence, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan partition: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
