package cmd

import (
	"time"

	"github.com/DomeLiquid/margin/core"
	"github.com/DomeLiquid/margin/oracle"
	"github.com/DomeLiquid/margin/pkg/retry"
	"github.com/DomeLiquid/margin/service/ledger"
	"github.com/DomeLiquid/margin/store/gormstore"
	"github.com/DomeLiquid/margin/venue/paper"
	"github.com/DomeLiquid/margin/venue/rest"
	"github.com/DomeLiquid/margin/worker/liquidator"
	"github.com/facebookgo/clock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func provideClock() clock.Clock {
	return clock.New()
}

func provideDatabase() *gorm.DB {
	db, err := gormstore.Open(cfg.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	return db
}

func provideLedgerStore(db *gorm.DB) core.LedgerStore {
	return gormstore.New(db)
}

func provideOracle(clk clock.Clock) core.PriceAdapter {
	if cfg.Oracle.Endpoint == "" {
		return oracle.NewStatic(clk, cfg.StaticPrices())
	}
	client := oracle.NewClient(cfg.Oracle.Endpoint, time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second)
	return oracle.NewCache(client, cfg.Oracle.CacheSize, logger)
}

func provideVenue() core.Venue {
	if cfg.Venue.Mode == "rest" {
		return rest.New(cfg.Venue.Endpoint, time.Duration(cfg.Venue.TimeoutSeconds)*time.Second)
	}
	logger.Warn().Msg("paper venue in use, orders are simulated")
	return paper.New()
}

func provideLedgerService(store core.LedgerStore, venue core.Venue, priceAdapter core.PriceAdapter, clk clock.Clock) *ledger.Service {
	return ledger.New(store, venue, priceAdapter, clk, logger, ledger.Config{
		MaxPriceAge: cfg.MaxPriceAge(),
	})
}

func provideRetryPolicy() retry.Policy {
	r := cfg.Liquidator.Retry
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		Interval:    time.Duration(r.IntervalMillis) * time.Millisecond,
		Jitter:      r.Jitter,
		StepTimeout: time.Duration(r.StepTimeoutSeconds) * time.Second,
	}
}

func provideLiquidatorConfig() (liquidator.Config, error) {
	if err := cfg.ValidateLiquidator(); err != nil {
		return liquidator.Config{}, err
	}
	groupId, _ := cfg.LiquidatorGroup()
	l := cfg.Liquidator
	return liquidator.Config{
		GroupId:       groupId,
		Liquidator:    l.Identity,
		Wallet:        l.Wallet,
		Interval:      time.Duration(l.IntervalSeconds) * time.Second,
		MaxPriceAge:   cfg.MaxPriceAge(),
		MaxDeposit:    decimal.RequireFromString(l.MaxDeposit),
		MinWithdraw:   decimal.RequireFromString(l.MinWithdraw),
		SkipInsolvent: l.SkipInsolvent,
		Retry:         provideRetryPolicy(),
	}, nil
}
