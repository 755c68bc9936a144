package core

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type HealthStatus uint8

const (
	Healthy HealthStatus = iota
	Liquidatable
	Insolvent
)

func (s HealthStatus) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Liquidatable:
		return "liquidatable"
	case Insolvent:
		return "insolvent"
	default:
		return "unknown"
	}
}

// Valuation is a point-in-time view of one account in native amounts and
// quote-denominated values.
type Valuation struct {
	Assets           []decimal.Decimal `json:"assets"`
	Liabilities      []decimal.Decimal `json:"liabilities"`
	AssetsValue      decimal.Decimal   `json:"assetsValue"`
	LiabilitiesValue decimal.Decimal   `json:"liabilitiesValue"`
}

// Valuate values an account. openOrders is indexed by market and may hold nil
// for markets the account never traded on. Only free quote of the open orders
// accounts counts; quote locked behind resting bids does not.
func Valuate(group *Group, account *MarginAccount, openOrders []*OpenOrders, prices PriceVector) (*Valuation, error) {
	n := group.NumAssets()
	if len(account.Deposits) != n || len(account.Borrows) != n {
		return nil, Invariantf("account %s has %d/%d balances for %d assets", account.Id, len(account.Deposits), len(account.Borrows), n)
	}
	if err := prices.Validate(group); err != nil {
		return nil, err
	}

	v := &Valuation{
		Assets:           make([]decimal.Decimal, n),
		Liabilities:      make([]decimal.Decimal, n),
		AssetsValue:      decimal.Zero,
		LiabilitiesValue: decimal.Zero,
	}

	for i := 0; i < n; i++ {
		if account.Deposits[i].IsNegative() || account.Borrows[i].IsNegative() {
			return nil, errors.Wrapf(ErrNegativeBalance, "account %s asset %s", account.Id, group.Assets[i])
		}
		v.Assets[i] = group.NativeDeposit(i, account.Deposits[i])
		v.Liabilities[i] = group.NativeBorrow(i, account.Borrows[i])
	}

	quote := group.QuoteIndex()
	for m, oo := range openOrders {
		if oo == nil {
			continue
		}
		if m >= len(group.Markets) {
			return nil, errors.Wrapf(ErrInvalidOpenOrdersAccount, "market %d", m)
		}
		if oo.BaseTotal.IsNegative() || oo.QuoteFree.IsNegative() {
			return nil, errors.Wrapf(ErrNegativeBalance, "open orders %s", oo.Id)
		}
		base := group.Markets[m].BaseIndex
		v.Assets[base] = v.Assets[base].Add(oo.BaseTotal)
		v.Assets[quote] = v.Assets[quote].Add(oo.QuoteFree)
	}

	for i := 0; i < n; i++ {
		price := prices.Price(i)
		v.AssetsValue = v.AssetsValue.Add(CalcValue(v.Assets[i], price))
		v.LiabilitiesValue = v.LiabilitiesValue.Add(CalcValue(v.Liabilities[i], price))
	}

	return v, nil
}

func CalcValue(amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price)
}

func (v *Valuation) HasLiabilities() bool {
	return v.LiabilitiesValue.IsPositive()
}

// CollateralRatio is assets value over liabilities value. It is undefined,
// and ok is false, when there are no liabilities.
func (v *Valuation) CollateralRatio() (ratio decimal.Decimal, ok bool) {
	if !v.HasLiabilities() {
		return decimal.Zero, false
	}
	return v.AssetsValue.DivRound(v.LiabilitiesValue, INDEX_PRECISION), true
}

// Meets reports whether the account satisfies the minimum ratio; an account
// without liabilities always does.
func (v *Valuation) Meets(minRatio decimal.Decimal) bool {
	ratio, ok := v.CollateralRatio()
	return !ok || ratio.GreaterThanOrEqual(minRatio)
}

func (v *Valuation) Status(maintCollRatio decimal.Decimal) HealthStatus {
	ratio, ok := v.CollateralRatio()
	switch {
	case !ok || ratio.GreaterThanOrEqual(maintCollRatio):
		return Healthy
	case ratio.LessThan(ONE):
		return Insolvent
	default:
		return Liquidatable
	}
}

func (v *Valuation) Equity() decimal.Decimal {
	return v.AssetsValue.Sub(v.LiabilitiesValue)
}

// NetValue is the quote value of assets minus liabilities of one asset.
func (v *Valuation) NetValue(asset int, prices PriceVector) decimal.Decimal {
	return v.Assets[asset].Sub(v.Liabilities[asset]).Mul(prices.Price(asset))
}

// LiquidationDeposit is the quote a liquidator must add to bring the account
// back to the initial ratio, scaled by margin to absorb price drift.
func (v *Valuation) LiquidationDeposit(initCollRatio, margin decimal.Decimal, quote Asset) decimal.Decimal {
	deficit := v.LiabilitiesValue.Mul(initCollRatio).Sub(v.AssetsValue)
	if !deficit.IsPositive() {
		return decimal.Zero
	}
	return deficit.Mul(margin).RoundCeil(quote.Decimals)
}
