package quality

import (
	"context"
	"encoding/hex"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/blake2b"
)

// CachedClassifier memoizes another classifier by text digest.
// Web corpora repeat boilerplate documents often, and model-backed
// classifiers are expensive, so one cache is built per process and shared
// by every worker.
type CachedClassifier struct {
	next  Classifier
	cache *gocache.Cache
}

// NewCachedClassifier wraps next. Entries never expire.
func NewCachedClassifier(next Classifier) *CachedClassifier {
	return &CachedClassifier{
		next:  next,
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Classify returns the cached result for text, classifying it on a miss.
// Errors are not cached.
func (c *CachedClassifier) Classify(ctx context.Context, text string) (Result, error) {
	sum := blake2b.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])
	if v, ok := c.cache.Get(key); ok {
		return v.(Result), nil
	}
	res, err := c.next.Classify(ctx, text)
	if err != nil {
		return Result{}, err
	}
	c.cache.Set(key, res, gocache.NoExpiration)
	return res, nil
}

// Len returns the number of cached results.
func (c *CachedClassifier) Len() int {
	return c.cache.ItemCount()
}
