package oracle

import (
	"context"
	"sync"

	"github.com/DomeLiquid/margin/core"
	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
)

// Static serves prices set by hand, published at the moment they are read.
type Static struct {
	clk    clock.Clock
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewStatic(clk clock.Clock, prices map[string]decimal.Decimal) *Static {
	s := &Static{clk: clk, prices: map[string]decimal.Decimal{}}
	for k, v := range prices {
		s.prices[k] = v
	}
	return s
}

func (s *Static) Set(key string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[key] = price
}

func (s *Static) GetPrices(_ context.Context, keys []string) (map[string]core.Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clk.Now()
	prices := make(map[string]core.Price, len(keys))
	for _, key := range keys {
		if p, ok := s.prices[key]; ok {
			prices[key] = core.Price{Key: key, Price: p, PublishedAt: now}
		}
	}
	return prices, nil
}
