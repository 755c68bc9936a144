package config

import (
	"os"

	"github.com/DomeLiquid/margin/core"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Registry maps symbols to mints, markets and oracles, and lists the groups
// that can be created from them.
//
//	assets:
//	  BTC: {mint: btc-mint, decimals: 6, oracle: BTC/USD}
//	  USDC: {mint: usdc-mint, decimals: 6}
//	markets:
//	  BTC/USDC: {min_size: "0.0001", tick_size: "0.01"}
//	groups:
//	  BTC_USDC:
//	    signer: admin
//	    symbols: [BTC, USDC]
//	    borrow_limits: ["10", "1000000"]
//	    maint_coll_ratio: "1.1"
//	    init_coll_ratio: "1.2"
type Registry struct {
	Assets  map[string]RegistryAsset  `yaml:"assets"`
	Markets map[string]RegistryMarket `yaml:"markets"`
	Groups  map[string]RegistryGroup  `yaml:"groups"`
}

type RegistryAsset struct {
	Mint     string `yaml:"mint"`
	Decimals int32  `yaml:"decimals"`
	Oracle   string `yaml:"oracle"`
}

type RegistryMarket struct {
	MinSize  string `yaml:"min_size"`
	TickSize string `yaml:"tick_size"`
}

type RegistryGroup struct {
	Signer         string   `yaml:"signer"`
	Symbols        []string `yaml:"symbols"`
	BorrowLimits   []string `yaml:"borrow_limits"`
	MaintCollRatio string   `yaml:"maint_coll_ratio"`
	InitCollRatio  string   `yaml:"init_coll_ratio"`
	Interest       struct {
		OptimalUtilization string `yaml:"optimal_utilization"`
		OptimalRate        string `yaml:"optimal_rate"`
		MaxRate            string `yaml:"max_rate"`
	} `yaml:"interest"`
}

func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrapf(core.ErrInvalidConfig, "parse %s: %v", path, err)
	}
	return &r, nil
}

// GroupSpec resolves group name. The last symbol is the quote; every other
// symbol trades on the "<SYMBOL>/<QUOTE>" market.
func (r *Registry) GroupSpec(name string) (core.GroupSpec, error) {
	g, ok := r.Groups[name]
	if !ok {
		return core.GroupSpec{}, errors.Wrapf(core.ErrInvalidConfig, "group %s not in registry", name)
	}
	if len(g.Symbols) < 2 {
		return core.GroupSpec{}, errors.Wrapf(core.ErrInvalidGroupSize, "group %s has %d symbols", name, len(g.Symbols))
	}
	if len(g.BorrowLimits) != len(g.Symbols) {
		return core.GroupSpec{}, errors.Wrapf(core.ErrInvalidConfig, "group %s has %d borrow limits for %d symbols", name, len(g.BorrowLimits), len(g.Symbols))
	}

	spec := core.GroupSpec{Name: name, Signer: g.Signer}
	var err error
	if spec.MaintCollRatio, err = parseDecimal(g.MaintCollRatio, "maint_coll_ratio"); err != nil {
		return core.GroupSpec{}, err
	}
	if spec.InitCollRatio, err = parseDecimal(g.InitCollRatio, "init_coll_ratio"); err != nil {
		return core.GroupSpec{}, err
	}
	if g.Interest.OptimalUtilization != "" {
		if spec.InterestRateConfig.OptimalUtilizationRate, err = parseDecimal(g.Interest.OptimalUtilization, "optimal_utilization"); err != nil {
			return core.GroupSpec{}, err
		}
		if spec.InterestRateConfig.OptimalInterestRate, err = parseDecimal(g.Interest.OptimalRate, "optimal_rate"); err != nil {
			return core.GroupSpec{}, err
		}
		if spec.InterestRateConfig.MaxInterestRate, err = parseDecimal(g.Interest.MaxRate, "max_rate"); err != nil {
			return core.GroupSpec{}, err
		}
	}

	quote := g.Symbols[len(g.Symbols)-1]
	for i, symbol := range g.Symbols {
		a, ok := r.Assets[symbol]
		if !ok {
			return core.GroupSpec{}, errors.Wrapf(core.ErrUnknownAsset, "%s", symbol)
		}
		spec.Assets = append(spec.Assets, core.Asset{Mint: a.Mint, Symbol: symbol, Decimals: a.Decimals})

		limit, err := parseDecimal(g.BorrowLimits[i], "borrow_limits")
		if err != nil {
			return core.GroupSpec{}, err
		}
		spec.BorrowLimits = append(spec.BorrowLimits, limit)

		if i == len(g.Symbols)-1 {
			break
		}

		key := symbol + "/" + quote
		m, ok := r.Markets[key]
		if !ok {
			return core.GroupSpec{}, errors.Wrapf(core.ErrInvalidMarket, "%s", key)
		}
		market := core.Market{Id: key, BaseIndex: i}
		if market.MinSize, err = parseDecimal(m.MinSize, key+" min_size"); err != nil {
			return core.GroupSpec{}, err
		}
		if market.TickSize, err = parseDecimal(m.TickSize, key+" tick_size"); err != nil {
			return core.GroupSpec{}, err
		}
		spec.Markets = append(spec.Markets, market)

		if a.Oracle == "" {
			return core.GroupSpec{}, errors.Wrapf(core.ErrInvalidConfig, "%s has no oracle", symbol)
		}
		spec.Oracles = append(spec.Oracles, a.Oracle)
	}
	return spec, nil
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(core.ErrInvalidConfig, "%s: %q", field, s)
	}
	return v, nil
}
