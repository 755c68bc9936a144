package config

import (
	"time"

	"github.com/DomeLiquid/margin/core"
	"github.com/DomeLiquid/margin/store/gormstore"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	Config struct {
		DB         gormstore.Config `json:"db"`
		Oracle     Oracle           `json:"oracle"`
		Venue      Venue            `json:"venue"`
		Ledger     Ledger           `json:"ledger"`
		Liquidator Liquidator       `json:"liquidator"`
		Metrics    Metrics          `json:"metrics"`
	}

	// Oracle reads from Endpoint when set, otherwise serves the Static prices.
	Oracle struct {
		Endpoint       string            `json:"endpoint"`
		TimeoutSeconds int               `json:"timeout_seconds"`
		CacheSize      int               `json:"cache_size"`
		Static         map[string]string `json:"static"`
	}

	Venue struct {
		// Mode is "rest" or "paper".
		Mode           string `json:"mode"`
		Endpoint       string `json:"endpoint"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	}

	Ledger struct {
		MaxPriceAgeSeconds int `json:"max_price_age_seconds"`
	}

	Liquidator struct {
		Group           string `json:"group"`
		Identity        string `json:"identity"`
		Wallet          string `json:"wallet"`
		IntervalSeconds int    `json:"interval_seconds"`
		MaxDeposit      string `json:"max_deposit"`
		MinWithdraw     string `json:"min_withdraw"`
		SkipInsolvent   bool   `json:"skip_insolvent"`
		Retry           Retry  `json:"retry"`
	}

	Retry struct {
		MaxAttempts        uint    `json:"max_attempts"`
		IntervalMillis     int     `json:"interval_millis"`
		Jitter             float64 `json:"jitter"`
		StepTimeoutSeconds int     `json:"step_timeout_seconds"`
	}

	Metrics struct {
		Listen string `json:"listen"`
	}
)

func (c *Config) defaults() {
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Dsn == "" && c.DB.Driver == "sqlite" {
		c.DB.Dsn = "margin.db"
	}
	if c.Oracle.TimeoutSeconds == 0 {
		c.Oracle.TimeoutSeconds = 10
	}
	if c.Oracle.CacheSize == 0 {
		c.Oracle.CacheSize = 256
	}
	if c.Venue.Mode == "" {
		c.Venue.Mode = "paper"
	}
	if c.Venue.TimeoutSeconds == 0 {
		c.Venue.TimeoutSeconds = 10
	}
	if c.Ledger.MaxPriceAgeSeconds == 0 {
		c.Ledger.MaxPriceAgeSeconds = 60
	}
	if c.Liquidator.IntervalSeconds == 0 {
		c.Liquidator.IntervalSeconds = 5
	}
	if c.Liquidator.MinWithdraw == "" {
		c.Liquidator.MinWithdraw = "1"
	}
	if c.Liquidator.MaxDeposit == "" {
		c.Liquidator.MaxDeposit = "0"
	}
	if c.Liquidator.Retry.MaxAttempts == 0 {
		c.Liquidator.Retry.MaxAttempts = 5
	}
	if c.Liquidator.Retry.IntervalMillis == 0 {
		c.Liquidator.Retry.IntervalMillis = 1000
	}
	if c.Liquidator.Retry.StepTimeoutSeconds == 0 {
		c.Liquidator.Retry.StepTimeoutSeconds = 30
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}
}

// Validate checks what every command needs. Liquidator settings are
// checked by ValidateLiquidator.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "postgres", "sqlite", "sqlite3":
	default:
		return errors.Wrapf(core.ErrInvalidConfig, "db.driver %q", c.DB.Driver)
	}
	if c.DB.Dsn == "" {
		return errors.Wrap(core.ErrInvalidConfig, "db.dsn is required")
	}

	switch c.Venue.Mode {
	case "paper":
	case "rest":
		if c.Venue.Endpoint == "" {
			return errors.Wrap(core.ErrInvalidConfig, "venue.endpoint is required in rest mode")
		}
	default:
		return errors.Wrapf(core.ErrInvalidConfig, "venue.mode %q", c.Venue.Mode)
	}

	for key, price := range c.Oracle.Static {
		p, err := decimal.NewFromString(price)
		if err != nil || !p.IsPositive() {
			return errors.Wrapf(core.ErrInvalidConfig, "oracle.static.%s: %q", key, price)
		}
	}

	if c.Ledger.MaxPriceAgeSeconds < 0 {
		return errors.Wrap(core.ErrInvalidConfig, "ledger.max_price_age_seconds is negative")
	}
	return nil
}

func (c *Config) ValidateLiquidator() error {
	l := c.Liquidator
	if _, err := c.LiquidatorGroup(); err != nil {
		return err
	}
	if l.Identity == "" || l.Wallet == "" {
		return errors.Wrap(core.ErrInvalidConfig, "liquidator.identity and liquidator.wallet are required")
	}
	if l.IntervalSeconds < 0 {
		return errors.Wrap(core.ErrInvalidConfig, "liquidator.interval_seconds is negative")
	}
	for name, amount := range map[string]string{"max_deposit": l.MaxDeposit, "min_withdraw": l.MinWithdraw} {
		v, err := decimal.NewFromString(amount)
		if err != nil || v.IsNegative() {
			return errors.Wrapf(core.ErrInvalidConfig, "liquidator.%s: %q", name, amount)
		}
	}
	if l.Retry.Jitter < 0 || l.Retry.Jitter >= 1 {
		return errors.Wrapf(core.ErrInvalidConfig, "liquidator.retry.jitter %v", l.Retry.Jitter)
	}
	return nil
}

func (c *Config) LiquidatorGroup() (uuid.UUID, error) {
	id, err := uuid.FromString(c.Liquidator.Group)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errors.Wrapf(core.ErrInvalidConfig, "liquidator.group %q", c.Liquidator.Group)
	}
	return id, nil
}

func (c *Config) MaxPriceAge() time.Duration {
	return time.Duration(c.Ledger.MaxPriceAgeSeconds) * time.Second
}

func (c *Config) StaticPrices() map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(c.Oracle.Static))
	for key, price := range c.Oracle.Static {
		prices[key] = decimal.RequireFromString(price)
	}
	return prices
}
