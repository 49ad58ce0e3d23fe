package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/DoorwiseAI/doorwise-mvp/engine/domain"
	gocache "github.com/patrickmn/go-cache"
)

// Retriever is the pipeline contract consumed by the agent layer.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, filter domain.Filter) ([]domain.FusedResult, error)
}

// Cached wraps a Retriever with a (query, filter, topK)-addressed cache.
// It is a pure layer: hits replay an earlier result, misses pass through,
// and errors are never cached.
type Cached struct {
	inner Retriever
	cache *gocache.Cache
}

// NewCached creates a caching layer with the given TTL.
func NewCached(inner Retriever, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Retrieve implements Retriever.
func (c *Cached) Retrieve(ctx context.Context, query string, topK int, filter domain.Filter) ([]domain.FusedResult, error) {
	key := cacheKey(query, topK, filter)
	if v, ok := c.cache.Get(key); ok {
		return v.([]domain.FusedResult), nil
	}

	results, err := c.inner.Retrieve(ctx, query, topK, filter)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, results)
	return results, nil
}

func cacheKey(query string, topK int, f domain.Filter) string {
	return fmt.Sprintf("%s|%d|%s|%s|%s", query, topK, f.DoorCategory, f.DoorType, f.ContentType)
}
