package core

import (
	"context"

	"github.com/DomeLiquid/margin/utils"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	MIN_GROUP_SIZE = 2
	MAX_GROUP_SIZE = 16
)

type (
	GroupStore interface {
		GetGroupById(ctx context.Context, groupId uuid.UUID) (*Group, error)
		ListGroups(ctx context.Context) ([]*Group, error)
		CreateGroup(ctx context.Context, group *Group) error
		UpdateGroup(ctx context.Context, group *Group) error
	}

	// Group holds N assets; the last one is the quote currency and every other
	// asset trades against it on exactly one market.
	Group struct {
		Id      uuid.UUID `json:"id"`
		Name    string    `json:"name"`
		Signer  string    `json:"signer"`
		Assets  []Asset   `json:"assets"`
		Indexes []Index   `json:"indexes"`

		Vaults        []decimal.Decimal `json:"vaults"`
		TotalDeposits []decimal.Decimal `json:"totalDeposits"`
		TotalBorrows  []decimal.Decimal `json:"totalBorrows"`
		BorrowLimits  []decimal.Decimal `json:"borrowLimits"`

		Markets []Market `json:"markets"`
		Oracles []string `json:"oracles"`

		MaintCollRatio decimal.Decimal `json:"maintCollRatio"`
		InitCollRatio  decimal.Decimal `json:"initCollRatio"`

		InterestRateConfig `json:"interestRateConfig"`

		Version   int64 `json:"version"`
		CreatedAt int64 `json:"createdAt"`
		UpdatedAt int64 `json:"updatedAt"`
	}

	Market struct {
		Id        string          `json:"id"`
		BaseIndex int             `json:"baseIndex"`
		MinSize   decimal.Decimal `json:"minSize"`
		TickSize  decimal.Decimal `json:"tickSize"`
	}
)

type GroupSpec struct {
	Name           string
	Signer         string
	Assets         []Asset
	BorrowLimits   []decimal.Decimal
	Markets        []Market
	Oracles        []string
	MaintCollRatio decimal.Decimal
	InitCollRatio  decimal.Decimal
	InterestRateConfig
}

func NewGroup(clk clock.Clock, spec GroupSpec) (*Group, error) {
	now := clk.Now().Unix()
	n := len(spec.Assets)

	g := &Group{
		Id:                 utils.GenUuid("group", spec.Name),
		Name:               spec.Name,
		Signer:             spec.Signer,
		Assets:             append([]Asset(nil), spec.Assets...),
		Indexes:            make([]Index, n),
		Vaults:             zeros(n),
		TotalDeposits:      zeros(n),
		TotalBorrows:       zeros(n),
		BorrowLimits:       append([]decimal.Decimal(nil), spec.BorrowLimits...),
		Markets:            append([]Market(nil), spec.Markets...),
		Oracles:            append([]string(nil), spec.Oracles...),
		MaintCollRatio:     spec.MaintCollRatio,
		InitCollRatio:      spec.InitCollRatio,
		InterestRateConfig: spec.InterestRateConfig,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for i := range g.Indexes {
		g.Indexes[i] = NewIndex(now)
	}
	if g.InterestRateConfig.OptimalUtilizationRate.IsZero() {
		g.InterestRateConfig = DefaultInterestRateConfig()
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Group) Validate() error {
	n := len(g.Assets)
	if n < MIN_GROUP_SIZE || n > MAX_GROUP_SIZE {
		return errors.Wrapf(ErrInvalidGroupSize, "%d assets", n)
	}
	if len(g.Indexes) != n || len(g.Vaults) != n || len(g.TotalDeposits) != n ||
		len(g.TotalBorrows) != n || len(g.BorrowLimits) != n {
		return errors.Wrap(ErrInvalidGroupSize, "per-asset vectors")
	}
	if len(g.Markets) != n-1 || len(g.Oracles) != n-1 {
		return errors.Wrapf(ErrInvalidGroupSize, "need %d markets and oracles", n-1)
	}

	seen := make(map[string]bool, n)
	for _, a := range g.Assets {
		if a.Mint == "" || seen[a.Mint] {
			return errors.Wrapf(ErrInvalidConfig, "asset mint %q", a.Mint)
		}
		if a.Decimals < 0 {
			return errors.Wrapf(ErrInvalidConfig, "asset %s decimals %d", a, a.Decimals)
		}
		seen[a.Mint] = true
	}

	for i, m := range g.Markets {
		if m.Id == "" || m.BaseIndex != i {
			return errors.Wrapf(ErrInvalidMarket, "market %d", i)
		}
		if !m.MinSize.IsPositive() || !m.TickSize.IsPositive() {
			return errors.Wrapf(ErrInvalidMarket, "market %s lot sizes", m.Id)
		}
	}

	for i, l := range g.BorrowLimits {
		if l.IsNegative() {
			return errors.Wrapf(ErrInvalidConfig, "borrow limit of %s", g.Assets[i])
		}
	}

	if g.MaintCollRatio.LessThan(ONE) || g.InitCollRatio.LessThan(g.MaintCollRatio) {
		return ErrCollateralRatios
	}

	return g.InterestRateConfig.Validate()
}

func (g *Group) NumAssets() int {
	return len(g.Assets)
}

func (g *Group) QuoteIndex() int {
	return len(g.Assets) - 1
}

func (g *Group) QuoteAsset() Asset {
	return g.Assets[g.QuoteIndex()]
}

func (g *Group) CheckAssetIndex(asset int) error {
	if asset < 0 || asset >= len(g.Assets) {
		return errors.Wrapf(ErrUnknownAsset, "index %d", asset)
	}
	return nil
}

func (g *Group) CheckMarketIndex(market int) error {
	if market < 0 || market >= len(g.Markets) {
		return errors.Wrapf(ErrInvalidMarket, "index %d", market)
	}
	return nil
}

// AssetIndex resolves a symbol or mint to its slot.
func (g *Group) AssetIndex(key string) (int, error) {
	for i, a := range g.Assets {
		if a.Mint == key || a.Symbol == key {
			return i, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownAsset, "%q", key)
}

func (g *Group) MarketIndex(key string) (int, error) {
	for i, m := range g.Markets {
		if m.Id == key || g.Assets[m.BaseIndex].Symbol == key {
			return i, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidMarket, "%q", key)
}

func (g *Group) NativeDeposit(asset int, shares decimal.Decimal) decimal.Decimal {
	return NativeAmount(shares, g.Indexes[asset].DepositIndex, g.Assets[asset].Decimals)
}

func (g *Group) NativeBorrow(asset int, shares decimal.Decimal) decimal.Decimal {
	return NativeAmount(shares, g.Indexes[asset].BorrowIndex, g.Assets[asset].Decimals)
}

func (g *Group) NativeTotalDeposits(asset int) decimal.Decimal {
	return g.NativeDeposit(asset, g.TotalDeposits[asset])
}

func (g *Group) NativeTotalBorrows(asset int) decimal.Decimal {
	return g.NativeBorrow(asset, g.TotalBorrows[asset])
}

func (g *Group) Utilization(asset int) decimal.Decimal {
	return Utilization(g.NativeTotalDeposits(asset), g.NativeTotalBorrows(asset))
}

func (g *Group) Rates(asset int) (depositRate, borrowRate decimal.Decimal) {
	deposits, borrows := g.NativeTotalDeposits(asset), g.NativeTotalBorrows(asset)
	return g.InterestRateConfig.DepositRate(deposits, borrows), g.InterestRateConfig.BorrowRate(deposits, borrows)
}

func (g *Group) AccrueInterest(log Log, asset int, ts int64) error {
	idx := &g.Indexes[asset]
	prev := *idx
	if err := idx.Accrue(&g.InterestRateConfig, g.NativeTotalDeposits(asset), g.NativeTotalBorrows(asset), ts); err != nil {
		return err
	}
	if !prev.BorrowIndex.Equal(idx.BorrowIndex) {
		log.Debug().
			Str("group", g.Name).
			Str("asset", g.Assets[asset].String()).
			Int64("dt", ts-prev.LastUpdate).
			Str("borrowIndex", idx.BorrowIndex.String()).
			Str("depositIndex", idx.DepositIndex.String()).
			Msg("accrued interest")
	}
	return nil
}

func (g *Group) AccrueAll(log Log, ts int64) error {
	for i := range g.Assets {
		if err := g.AccrueInterest(log, i, ts); err != nil {
			return err
		}
	}
	return nil
}

// CheckIndexes verifies that no index moved backwards since prev.
func (g *Group) CheckIndexes(prev *Group) error {
	for i := range g.Indexes {
		if g.Indexes[i].BorrowIndex.LessThan(prev.Indexes[i].BorrowIndex) ||
			g.Indexes[i].DepositIndex.LessThan(prev.Indexes[i].DepositIndex) {
			return errors.Wrapf(ErrIndexDecreased, "asset %s", g.Assets[i])
		}
	}
	return nil
}

func (g *Group) Clone() *Group {
	clone := *g
	clone.Assets = append([]Asset(nil), g.Assets...)
	clone.Indexes = append([]Index(nil), g.Indexes...)
	clone.Vaults = append([]decimal.Decimal(nil), g.Vaults...)
	clone.TotalDeposits = append([]decimal.Decimal(nil), g.TotalDeposits...)
	clone.TotalBorrows = append([]decimal.Decimal(nil), g.TotalBorrows...)
	clone.BorrowLimits = append([]decimal.Decimal(nil), g.BorrowLimits...)
	clone.Markets = append([]Market(nil), g.Markets...)
	clone.Oracles = append([]string(nil), g.Oracles...)
	return &clone
}

func zeros(n int) []decimal.Decimal {
	s := make([]decimal.Decimal, n)
	for i := range s {
		s[i] = decimal.Zero
	}
	return s
}
