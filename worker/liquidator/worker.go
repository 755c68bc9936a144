// Package liquidator scans a margin group for accounts below the maintenance
// ratio, takes them over through the ledger and drains them back to quote.
package liquidator

import (
	"context"
	"sync"
	"time"

	"github.com/DomeLiquid/margin/core"
	"github.com/DomeLiquid/margin/pkg/retry"
	"github.com/facebookgo/clock"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	GroupId uuid.UUID
	// Liquidator owns every account taken over by this worker.
	Liquidator string
	// Wallet receives the quote withdrawn from drained accounts.
	Wallet      string
	Interval    time.Duration
	MaxPriceAge time.Duration
	// MaxDeposit caps the quote put into one liquidation; zero means no cap.
	MaxDeposit decimal.Decimal
	// MinWithdraw is the smallest surplus worth withdrawing.
	MinWithdraw decimal.Decimal
	// SkipInsolvent leaves accounts with liabilities above assets for
	// manual handling instead of absorbing the shortfall.
	SkipInsolvent bool
	Retry         retry.Policy
}

func (c Config) Validate() error {
	switch {
	case c.GroupId == uuid.Nil:
		return errors.Wrap(core.ErrInvalidConfig, "liquidator: group id is required")
	case c.Liquidator == "":
		return errors.Wrap(core.ErrInvalidConfig, "liquidator: liquidator identity is required")
	case c.Wallet == "":
		return errors.Wrap(core.ErrInvalidConfig, "liquidator: wallet is required")
	case c.Interval <= 0:
		return errors.Wrap(core.ErrInvalidConfig, "liquidator: interval must be positive")
	case c.MaxDeposit.IsNegative(), c.MinWithdraw.IsNegative():
		return errors.Wrap(core.ErrInvalidConfig, "liquidator: negative amount")
	case c.Retry.Jitter < 0 || c.Retry.Jitter >= 1:
		return errors.Wrap(core.ErrInvalidConfig, "liquidator: jitter must be in [0, 1)")
	}
	return nil
}

type Worker struct {
	ledger  core.LedgerService
	oracle  core.PriceAdapter
	clk     clock.Clock
	log     zerolog.Logger
	metrics *Metrics
	cfg     Config

	mu          sync.Mutex
	quarantined map[uuid.UUID]error
	drained     map[uuid.UUID]bool
}

func New(ledger core.LedgerService, oracle core.PriceAdapter, clk clock.Clock, log zerolog.Logger, metrics *Metrics, cfg Config) *Worker {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Worker{
		ledger:      ledger,
		oracle:      oracle,
		clk:         clk,
		log:         log.With().Str("worker", "liquidator").Logger(),
		metrics:     metrics,
		cfg:         cfg,
		quarantined: map[uuid.UUID]error{},
		drained:     map[uuid.UUID]bool{},
	}
}

// Report is the result of one scan.
type Report struct {
	Evaluated int
	Outcomes  map[uuid.UUID]Outcome
}

// result is what processing one account produced.
type result struct {
	Outcome  Outcome
	State    DrainState
	Ratio    decimal.Decimal
	HasRatio bool
}

// Run scans until ctx is done. Only configuration errors stop it.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.cfg.Validate(); err != nil {
		return err
	}

	w.log.Info().
		Str("group", w.cfg.GroupId.String()).
		Str("liquidator", w.cfg.Liquidator).
		Dur("interval", w.cfg.Interval).
		Msg("liquidator started")

	for {
		if _, err := w.Scan(ctx); err != nil {
			if core.IsConfigError(err) {
				w.metrics.Errors.WithLabelValues(errorClassConfig).Inc()
				return err
			}
			if ctx.Err() == nil {
				w.log.Error().Err(err).Msg("scan failed")
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-w.clk.After(w.cfg.Interval):
		}
	}
}

// Scan evaluates every account of the group once.
func (w *Worker) Scan(ctx context.Context) (*Report, error) {
	start := w.clk.Now()
	defer func() {
		w.metrics.CycleDuration.Set(w.clk.Now().Sub(start).Seconds())
	}()

	var (
		group    *core.Group
		accounts []*core.MarginAccount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		group, err = w.ledger.GetGroup(gctx, w.cfg.GroupId)
		if errors.Is(err, core.ErrGroupNotFound) {
			return errors.Wrapf(core.ErrInvalidConfig, "group %s does not exist", w.cfg.GroupId)
		}
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = w.ledger.ListAccounts(gctx, w.cfg.GroupId)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prices, err := core.FetchPriceVector(ctx, w.oracle, group, w.clk.Now(), w.cfg.MaxPriceAge)
	if err != nil {
		w.metrics.Errors.WithLabelValues(errorClassTransient).Inc()
		return nil, err
	}

	report := &Report{Outcomes: make(map[uuid.UUID]Outcome, len(accounts))}
	for _, account := range accounts {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		log := w.log.With().Str("account", account.Id.String()).Logger()
		res, err := w.process(ctx, log, group, account, prices)
		if err != nil {
			if core.IsConfigError(err) {
				return report, err
			}
			res.Outcome = OutcomeError
			w.classify(log, account.Id, err)
		}

		report.Evaluated++
		report.Outcomes[account.Id] = res.Outcome
		w.metrics.Evaluated.Inc()
		w.metrics.Outcomes.WithLabelValues(res.Outcome.String()).Inc()

		event := log.Debug()
		if res.Outcome != OutcomeHealthy && res.Outcome != OutcomeSkipped {
			event = log.Info()
		}
		if res.HasRatio {
			event = event.Str("ratio", res.Ratio.StringFixed(4))
		}
		event.Str("outcome", res.Outcome.String()).Str("state", res.State.String()).Msg("account processed")
	}

	return report, nil
}

func (w *Worker) classify(log zerolog.Logger, accountId uuid.UUID, err error) {
	switch {
	case core.IsInvariant(err):
		w.metrics.Errors.WithLabelValues(errorClassInvariant).Inc()
		w.quarantine(accountId, err)
		log.Error().Err(err).Msg("invariant violated, account needs manual intervention")
	case core.IsTransient(err):
		w.metrics.Errors.WithLabelValues(errorClassTransient).Inc()
		log.Warn().Err(err).Msg("transient failure, retry next scan")
	default:
		w.metrics.Errors.WithLabelValues(errorClassAccount).Inc()
		log.Error().Err(err).Msg("account failed")
	}
}

func (w *Worker) process(ctx context.Context, log zerolog.Logger, group *core.Group, account *core.MarginAccount, prices core.PriceVector) (result, error) {
	if w.isQuarantined(account.Id) {
		return result{Outcome: OutcomeSkipped}, nil
	}

	if account.Owner == w.cfg.Liquidator {
		if !account.GetFlag(core.LiquidatedFlag) || w.isDrained(account.Id) {
			return result{Outcome: OutcomeSkipped}, nil
		}
		return w.drain(ctx, log, account.Id)
	}

	openOrders, err := w.ledger.LoadOpenOrders(ctx, group, account)
	if err != nil {
		return result{State: Evaluating}, err
	}
	v, err := core.Valuate(group, account, openOrders, prices)
	if err != nil {
		return result{State: Evaluating}, err
	}

	res := result{State: Evaluating}
	res.Ratio, res.HasRatio = v.CollateralRatio()

	switch v.Status(group.CollateralRatio(core.Maintenance)) {
	case core.Healthy:
		res.Outcome, res.State = OutcomeHealthy, Healthy
		return res, nil
	case core.Insolvent:
		if w.cfg.SkipInsolvent {
			log.Warn().Str("ratio", res.Ratio.StringFixed(4)).Msg("insolvent account left for manual handling")
			res.Outcome = OutcomeInsolvent
			return res, nil
		}
		log.Warn().Str("ratio", res.Ratio.StringFixed(4)).Msg("insolvent account, absorbing shortfall")
	}

	return w.liquidate(ctx, log, account.Id, res)
}

var (
	errHealed     = errors.New("account recovered before liquidation")
	errOverBudget = errors.New("liquidation deposit above budget")
)

// liquidate refreshes the account and prices right before committing the
// takeover, then drains the account in the same pass.
func (w *Worker) liquidate(ctx context.Context, log zerolog.Logger, accountId uuid.UUID, res result) (result, error) {
	res.State = Liquidating

	policy := w.cfg.Retry
	policy.Retryable = func(err error) bool {
		return core.IsTransient(err) || errors.Is(err, core.ErrLiquidatorUnderfunded)
	}

	var liquidated *core.LiquidateResult
	err := policy.Do(ctx, log, Liquidating.String(), func(ctx context.Context) error {
		group, err := w.ledger.GetGroup(ctx, w.cfg.GroupId)
		if err != nil {
			return err
		}
		account, err := w.ledger.GetAccount(ctx, accountId)
		if err != nil {
			return err
		}
		openOrders, err := w.ledger.LoadOpenOrders(ctx, group, account)
		if err != nil {
			return err
		}
		prices, err := core.FetchPriceVector(ctx, w.oracle, group, w.clk.Now(), w.cfg.MaxPriceAge)
		if err != nil {
			return err
		}
		v, err := core.Valuate(group, account, openOrders, prices)
		if err != nil {
			return err
		}

		switch v.Status(group.CollateralRatio(core.Maintenance)) {
		case core.Healthy:
			return errHealed
		case core.Insolvent:
			if w.cfg.SkipInsolvent {
				return core.ErrNotLiquidatable
			}
		}

		deposits := make([]decimal.Decimal, group.NumAssets())
		for i := range deposits {
			deposits[i] = decimal.Zero
		}
		target := v.LiquidationDeposit(group.CollateralRatio(core.Initial), core.LIQUIDATION_SAFETY_MARGIN, group.QuoteAsset())
		if w.cfg.MaxDeposit.IsPositive() && target.GreaterThan(w.cfg.MaxDeposit) {
			return errors.Wrapf(errOverBudget, "need %s %s", target, group.QuoteAsset())
		}
		deposits[group.QuoteIndex()] = target

		liquidated, err = w.ledger.Liquidate(ctx, accountId, w.cfg.Liquidator, deposits)
		return err
	})
	switch {
	case errors.Is(err, errHealed), errors.Is(err, core.ErrNotLiquidatable):
		log.Info().Err(err).Msg("liquidation skipped")
		res.Outcome, res.State = OutcomeSkipped, Scanning
		return res, nil
	case errors.Is(err, errOverBudget):
		log.Warn().Err(err).Msg("liquidation skipped")
		res.Outcome = OutcomeSkipped
		return res, nil
	case err != nil:
		return res, err
	}

	w.metrics.Liquidations.Inc()
	log.Info().
		Str("from", liquidated.PreviousOwner).
		Str("preRatio", liquidated.PreRatio.StringFixed(4)).
		Str("postRatio", liquidated.PostRatio.StringFixed(4)).
		Str("deposit", liquidated.Deposits[len(liquidated.Deposits)-1].String()).
		Bool("insolvent", liquidated.Insolvent).
		Msg("account liquidated")

	res.Outcome = OutcomeLiquidated
	drained, err := w.drain(ctx, log, accountId)
	res.State = drained.State
	if err != nil {
		if core.IsInvariant(err) {
			return res, err
		}
		log.Warn().Err(err).Str("state", drained.State.String()).Msg("drain interrupted, resuming next scan")
	}
	return res, nil
}

func (w *Worker) quarantine(accountId uuid.UUID, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quarantined[accountId] = err
	w.metrics.Quarantined.Set(float64(len(w.quarantined)))
}

func (w *Worker) isQuarantined(accountId uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.quarantined[accountId]
	return ok
}

// Quarantined lists the accounts that need manual intervention and why.
func (w *Worker) Quarantined() map[uuid.UUID]error {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[uuid.UUID]error, len(w.quarantined))
	for id, err := range w.quarantined {
		out[id] = err
	}
	return out
}

func (w *Worker) markDrained(accountId uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drained[accountId] = true
}

func (w *Worker) isDrained(accountId uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drained[accountId]
}
