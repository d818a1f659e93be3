package llm

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultCacheSize = 10000

// CachedEmbedder memoizes single-text embeddings, which is what a query produces.
// Batch calls from ingestion go straight to the wrapped embedder. At most maxEntries
// embeddings are held; once full, new texts are embedded without being cached until
// entries expire.
type CachedEmbedder struct {
	next       Embedder
	cache      *cache.Cache
	maxEntries int
}

// NewCachedEmbedder caches for ttl. maxEntries <= 0 uses a default of 10000.
func NewCachedEmbedder(next Embedder, ttl time.Duration, maxEntries int) *CachedEmbedder {
	if maxEntries <= 0 {
		maxEntries = defaultCacheSize
	}
	return &CachedEmbedder{
		next:       next,
		cache:      cache.New(ttl, ttl),
		maxEntries: maxEntries,
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return c.next.Embed(ctx, texts)
	}

	if v, ok := c.cache.Get(texts[0]); ok {
		return [][]float32{v.([]float32)}, nil
	}

	out, err := c.next.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(out) == 1 && c.hasRoom() {
		c.cache.SetDefault(texts[0], out[0])
	}
	return out, nil
}

func (c *CachedEmbedder) hasRoom() bool {
	if c.cache.ItemCount() < c.maxEntries {
		return true
	}
	c.cache.DeleteExpired()
	return c.cache.ItemCount() < c.maxEntries
}

// Len reports the number of cached embeddings, expired ones included until the next cleanup.
func (c *CachedEmbedder) Len() int {
	return c.cache.ItemCount()
}
