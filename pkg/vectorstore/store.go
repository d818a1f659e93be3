// Package vectorstore persists chunk embeddings and answers nearest-neighbour queries.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgeflare/ragapi/pkg/config"
	"go.uber.org/zap"
)

var ErrUnknownDriver = errors.New("vectorstore: unknown driver")

// Record is a chunk with its embedding, keyed by the chunk ID.
type Record struct {
	ID        string
	Content   string
	Source    string
	Page      int
	Embedding []float32
}

// Match is a search hit. Distance is the cosine distance (1 - cosine similarity) to the
// query embedding, lower is more similar.
type Match struct {
	ID       string
	Content  string
	Source   string
	Page     int
	Distance float64
}

// Store is implemented by every vector store backend.
type Store interface {
	// Add inserts records, replacing any record with the same ID.
	Add(ctx context.Context, records []Record) error
	// ExistingIDs returns the subset of ids already stored.
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	Count(ctx context.Context) (int, error)
	// Search returns at most k matches ordered by ascending distance.
	Search(ctx context.Context, embedding []float32, k int) ([]Match, error)
	// Reset deletes every record.
	Reset(ctx context.Context) error
	Close() error
}

// Open opens the store selected by cfg.Store.Driver. For the chromem driver in an image
// runtime, the bundled store is first copied to a writable location.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := cfg.Store
	logger = logger.With(zap.String("driver", sc.Driver))

	switch sc.Driver {
	case config.DriverChromem:
		path := RuntimePath(sc)
		if sc.ImageRuntime {
			if err := PrepareRuntimeCopy(sc.Path, path, logger); err != nil {
				return nil, err
			}
		}
		return NewChromem(path, sc.Collection, logger)
	case config.DriverPgvector:
		return NewPgvector(ctx, PgvectorOptions{
			ConnString: sc.PG.ConnString,
			Table:      sc.PG.Table,
			Dimensions: sc.Dimensions,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, sc.Driver)
	}
}
