package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	// PriceAdapter returns the freshest known price per oracle key, possibly stale.
	PriceAdapter interface {
		GetPrices(ctx context.Context, keys []string) (map[string]Price, error)
	}

	Price struct {
		Key         string          `json:"key"`
		Price       decimal.Decimal `json:"price"`
		PublishedAt time.Time       `json:"publishedAt"`
	}

	// PriceVector holds one quote-denominated price per tradable asset; the
	// quote asset itself is priced at 1.
	PriceVector struct {
		Prices      []decimal.Decimal `json:"prices"`
		PublishedAt []time.Time       `json:"publishedAt"`
	}
)

func (p Price) Age(now time.Time) time.Duration {
	return now.Sub(p.PublishedAt)
}

func NewPriceVector(prices ...decimal.Decimal) PriceVector {
	return PriceVector{Prices: prices, PublishedAt: make([]time.Time, len(prices))}
}

func (v PriceVector) Price(asset int) decimal.Decimal {
	if asset == len(v.Prices) {
		return ONE
	}
	return v.Prices[asset]
}

func (v PriceVector) Validate(group *Group) error {
	if len(v.Prices) != group.NumAssets()-1 {
		return errors.Wrapf(ErrMissingPrice, "have %d prices for %d assets", len(v.Prices), group.NumAssets())
	}
	for i, p := range v.Prices {
		if !p.IsPositive() {
			return errors.Wrapf(ErrInvalidPrice, "%s: %s", group.Assets[i], p)
		}
	}
	return nil
}

// FetchPriceVector reads the oracle of every tradable asset of the group.
// Missing or stale prices are errors, never defaulted.
func FetchPriceVector(ctx context.Context, adapter PriceAdapter, group *Group, now time.Time, maxAge time.Duration) (PriceVector, error) {
	prices, err := adapter.GetPrices(ctx, group.Oracles)
	if err != nil {
		return PriceVector{}, Transient(errors.Wrap(err, "get prices"))
	}

	vector := PriceVector{
		Prices:      make([]decimal.Decimal, len(group.Oracles)),
		PublishedAt: make([]time.Time, len(group.Oracles)),
	}
	for i, key := range group.Oracles {
		p, ok := prices[key]
		if !ok {
			return PriceVector{}, errors.Wrapf(ErrMissingPrice, "%s (%s)", group.Assets[i], key)
		}
		if maxAge > 0 && p.Age(now) > maxAge {
			return PriceVector{}, errors.Wrapf(ErrStalePrice, "%s published %s ago", group.Assets[i], p.Age(now))
		}
		vector.Prices[i] = p.Price
		vector.PublishedAt[i] = p.PublishedAt
	}

	if err := vector.Validate(group); err != nil {
		return PriceVector{}, err
	}
	return vector, nil
}
