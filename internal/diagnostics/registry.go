package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/sequence"
)

var ErrUnknownCommand = errors.New("unknown diagnostics command")

// Command is a named, read-only probe. Commands never take arguments from the
// caller, so nothing submitted over HTTP is ever evaluated.
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context) (any, error)
}

type PoolStatter interface {
	Stat() *pgxpool.Stat
}

type PartitionLister interface {
	Partitions(ctx context.Context, limit int) ([]sequence.Partition, error)
}

type Registry struct {
	commands map[string]Command
}

func NewRegistry(cmds ...Command) *Registry {
	r := &Registry{commands: make(map[string]Command, len(cmds))}
	for _, c := range cmds {
		r.commands[c.Name] = c
	}
	return r
}

// Default registers the built-in commands. pool may be nil, in which case
// db_pool is left out.
func Default(startedAt time.Time, pool PoolStatter) *Registry {
	cmds := []Command{
		{
			Name:        "uptime",
			Description: "time since the process started",
			Run: func(context.Context) (any, error) {
				return map[string]any{
					"started_at": startedAt.UTC(),
					"uptime":     time.Since(startedAt).Round(time.Second).String(),
				}, nil
			},
		},
		{
			Name:        "runtime",
			Description: "Go runtime memory and goroutine counts",
			Run: func(context.Context) (any, error) {
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				return map[string]any{
					"go_version":   runtime.Version(),
					"goroutines":   runtime.NumGoroutine(),
					"heap_alloc":   m.HeapAlloc,
					"heap_objects": m.HeapObjects,
					"num_gc":       m.NumGC,
				}, nil
			},
		},
		{
			Name:        "build_info",
			Description: "module path and version of the running binary",
			Run: func(context.Context) (any, error) {
				info, ok := debug.ReadBuildInfo()
				if !ok {
					return nil, fmt.Errorf("build info not available")
				}
				return map[string]any{
					"path":       info.Main.Path,
					"version":    info.Main.Version,
					"go_version": info.GoVersion,
				}, nil
			},
		},
	}
	if pool != nil {
		cmds = append(cmds, Command{
			Name:        "db_pool",
			Description: "database connection pool statistics",
			Run: func(context.Context) (any, error) {
				s := pool.Stat()
				return map[string]any{
					"total_conns":    s.TotalConns(),
					"idle_conns":     s.IdleConns(),
					"acquired_conns": s.AcquiredConns(),
					"max_conns":      s.MaxConns(),
				}, nil
			},
		})
	}
	return NewRegistry(cmds...)
}

// Register adds c, replacing any command with the same name.
func (r *Registry) Register(c Command) {
	r.commands[c.Name] = c
}

// EventSequences reports the latest OrderPlaced sequence per user partition.
func EventSequences(lister PartitionLister) Command {
	return Command{
		Name:        "event_sequences",
		Description: "most recently advanced event sequence partitions",
		Run: func(ctx context.Context) (any, error) {
			return lister.Partitions(ctx, 20)
		},
	}
}

type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, Info{Name: c.Name, Description: c.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Run(ctx context.Context, name string) (any, error) {
	c, ok := r.commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return c.Run(ctx)
}
