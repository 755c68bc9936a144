package oracle

import (
	"context"
	"sort"
	"strings"

	"github.com/DomeLiquid/margin/core"
	"github.com/bluele/gcache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Cache keeps the freshest price seen per key. A fetched price never
// replaces a cached one with a later publish time, and when the source fails
// the cached prices are served as they are; staleness is for the caller to
// judge.
type Cache struct {
	source core.PriceAdapter
	cache  gcache.Cache
	sf     *singleflight.Group
	log    zerolog.Logger
}

func NewCache(source core.PriceAdapter, size int, log zerolog.Logger) *Cache {
	return &Cache{
		source: source,
		cache:  gcache.New(size).LRU().Build(),
		sf:     &singleflight.Group{},
		log:    log.With().Str("component", "price_cache").Logger(),
	}
}

func (c *Cache) GetPrices(ctx context.Context, keys []string) (map[string]core.Price, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	v, err, _ := c.sf.Do(strings.Join(sorted, ","), func() (interface{}, error) {
		return c.source.GetPrices(ctx, sorted)
	})
	if err != nil {
		c.log.Warn().Err(err).Strs("keys", sorted).Msg("price source failed, serving cached prices")
	} else {
		for _, p := range v.(map[string]core.Price) {
			c.store(p)
		}
	}

	prices := make(map[string]core.Price, len(keys))
	for _, key := range keys {
		p, ok := c.get(key)
		if !ok {
			if err != nil {
				return nil, err
			}
			continue
		}
		prices[key] = p
	}
	return prices, nil
}

func (c *Cache) get(key string) (core.Price, bool) {
	v, err := c.cache.Get(key)
	if err != nil {
		return core.Price{}, false
	}
	p, ok := v.(core.Price)
	return p, ok
}

func (c *Cache) store(p core.Price) {
	if cached, ok := c.get(p.Key); ok && cached.PublishedAt.After(p.PublishedAt) {
		return
	}
	_ = c.cache.Set(p.Key, p)
}
