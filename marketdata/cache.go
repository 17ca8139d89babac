package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
)

// Cache holds fetched market data until the caller invalidates it. Chains are keyed by
// (ticker, expiry); spot, history and expiries by ticker.
type Cache struct {
	items *cache.Cache
}

// NewCache returns a cache whose entries also expire after ttl. A ttl of zero keeps entries
// until they are invalidated.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		return &Cache{items: cache.New(cache.NoExpiration, 0)}
	}
	return &Cache{items: cache.New(ttl, 2*ttl)}
}

func cacheKey(kind, ticker string, parts ...string) string {
	return strings.Join(append([]string{kind, normaliseTicker(ticker)}, parts...), "/")
}

func chainCacheKey(ticker, expiry string) string {
	return cacheKey("chain", ticker, expiry)
}

func (c *Cache) get(key string) (any, bool) {
	return c.items.Get(key)
}

func (c *Cache) set(key string, v any) {
	c.items.Set(key, v, cache.DefaultExpiration)
}

// Chain returns the cached chain for (ticker, expiry).
func (c *Cache) Chain(ticker, expiry string) (*Chain, bool) {
	v, ok := c.get(chainCacheKey(ticker, expiry))
	if !ok {
		return nil, false
	}
	return v.(*Chain), true
}

func (c *Cache) SetChain(chain *Chain) {
	c.set(chainCacheKey(chain.Ticker, chain.Expiry), chain)
}

// Invalidate drops the chain cached for (ticker, expiry).
func (c *Cache) Invalidate(ticker, expiry string) {
	c.items.Delete(chainCacheKey(ticker, expiry))
}

// InvalidateTicker drops everything cached for ticker.
func (c *Cache) InvalidateTicker(ticker string) int {
	ticker = normaliseTicker(ticker)
	dropped := 0
	for key := range c.items.Items() {
		parts := strings.SplitN(key, "/", 3)
		if len(parts) >= 2 && parts[1] == ticker {
			c.items.Delete(key)
			dropped++
		}
	}
	return dropped
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.items.Flush()
}

func (c *Cache) Len() int {
	return c.items.ItemCount()
}

// CachedProvider serves repeated requests from a Cache and only reaches the wrapped provider
// on a miss.
type CachedProvider struct {
	Provider Provider
	Cache    *Cache
}

func NewCachedProvider(p Provider, c *Cache) *CachedProvider {
	if c == nil {
		c = NewCache(0)
	}
	return &CachedProvider{Provider: p, Cache: c}
}

func (p *CachedProvider) Spot(ctx context.Context, ticker string) (float64, error) {
	key := cacheKey("spot", ticker)
	if v, ok := p.Cache.get(key); ok {
		return v.(float64), nil
	}
	spot, err := p.Provider.Spot(ctx, ticker)
	if err != nil {
		return 0, err
	}
	p.Cache.set(key, spot)
	return spot, nil
}

func (p *CachedProvider) History(ctx context.Context, ticker string, days int) ([]Candle, error) {
	key := cacheKey("history", ticker, fmt.Sprint(days))
	if v, ok := p.Cache.get(key); ok {
		return v.([]Candle), nil
	}
	candles, err := p.Provider.History(ctx, ticker, days)
	if err != nil {
		return nil, err
	}
	p.Cache.set(key, candles)
	return candles, nil
}

func (p *CachedProvider) Expiries(ctx context.Context, ticker string) ([]string, error) {
	key := cacheKey("expiries", ticker)
	if v, ok := p.Cache.get(key); ok {
		return v.([]string), nil
	}
	expiries, err := p.Provider.Expiries(ctx, ticker)
	if err != nil {
		return nil, err
	}
	p.Cache.set(key, expiries)
	return expiries, nil
}

func (p *CachedProvider) Chain(ctx context.Context, ticker, expiry string) (*Chain, error) {
	if chain, ok := p.Cache.Chain(ticker, expiry); ok {
		log.WithFields(log.Fields{"ticker": ticker, "expiry": expiry}).Trace("chain cache hit")
		return chain, nil
	}
	chain, err := p.Provider.Chain(ctx, ticker, expiry)
	if err != nil {
		return nil, err
	}
	// stored under the requested key even if the source spells the ticker differently
	p.Cache.set(chainCacheKey(ticker, expiry), chain)
	return chain, nil
}

// Profile passes through to the wrapped provider when it can name the company.
func (p *CachedProvider) Profile(ctx context.Context, ticker string) (*Profile, error) {
	profiler, ok := p.Provider.(Profiler)
	if !ok {
		return &Profile{Ticker: ticker, Name: ticker}, nil
	}
	key := cacheKey("profile", ticker)
	if v, ok := p.Cache.get(key); ok {
		return v.(*Profile), nil
	}
	profile, err := profiler.Profile(ctx, ticker)
	if err != nil {
		return nil, err
	}
	p.Cache.set(key, profile)
	return profile, nil
}
