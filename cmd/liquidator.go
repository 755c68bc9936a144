package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/DomeLiquid/margin/worker/liquidator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var liquidatorCmd = &cobra.Command{
	Use:   "liquidator",
	Short: "scan the group and liquidate accounts below maintenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		workerCfg, err := provideLiquidatorConfig()
		if err != nil {
			return err
		}

		clk := provideClock()
		db := provideDatabase()
		priceAdapter := provideOracle(clk)
		ledgerService := provideLedgerService(provideLedgerStore(db), provideVenue(), priceAdapter, clk)

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := liquidator.NewMetrics(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()

		w := liquidator.New(ledgerService, priceAdapter, clk, logger, metrics, workerCfg)
		return w.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(liquidatorCmd)
}
