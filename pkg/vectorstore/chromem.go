package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const (
	metaSource = "source"
	metaPage   = "page"
)

var errNoEmbeddingFunc = errors.New("vectorstore: records must carry precomputed embeddings")

// Chromem is a Store backed by a chromem-go persistent DB in a local directory.
type Chromem struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *zap.Logger
	path       string
	name       string
	mu         sync.RWMutex
}

// NewChromem opens or creates the persistent DB at path and the named collection in it.
func NewChromem(path, collection string, logger *zap.Logger) (*Chromem, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chromem{path: path, name: collection, logger: logger.With(zap.String("path", path))}
	if err := c.open(); err != nil {
		return nil, err
	}
	c.logger.Info("opened vector store", zap.String("collection", collection), zap.Int("documents", c.collection.Count()))
	return c, nil
}

func (c *Chromem) open() error {
	db, err := chromem.NewPersistentDB(c.path, false)
	if err != nil {
		return fmt.Errorf("failed to open chromem DB at %s: %w", c.path, err)
	}
	// embeddings are always computed by the caller
	col, err := db.GetOrCreateCollection(c.name, nil, func(context.Context, string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	})
	if err != nil {
		return fmt.Errorf("failed to open collection %q: %w", c.name, err)
	}
	c.db, c.collection = db, col
	return nil
}

func (c *Chromem) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Content,
			Embedding: r.Embedding,
			Metadata: map[string]string{
				metaSource: r.Source,
				metaPage:   strconv.Itoa(r.Page),
			},
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (c *Chromem) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	existing := make(map[string]struct{})
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// GetByID only fails for unknown or empty IDs
		if _, err := c.collection.GetByID(ctx, id); err == nil {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (c *Chromem) Count(context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection.Count(), nil
}

func (c *Chromem) Search(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// chromem rejects k larger than the collection
	k = min(k, c.collection.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := c.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		page, _ := strconv.Atoi(r.Metadata[metaPage])
		matches[i] = Match{
			ID:       r.ID,
			Content:  r.Content,
			Source:   r.Metadata[metaSource],
			Page:     page,
			Distance: 1 - float64(r.Similarity),
		}
	}
	return matches, nil
}

// Reset removes the store directory and starts from an empty collection.
func (c *Chromem) Reset(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", c.path, err)
	}
	c.logger.Info("cleared vector store")
	return c.open()
}

// Close is a no-op, chromem persists each document as it is added.
func (c *Chromem) Close() error {
	return nil
}
