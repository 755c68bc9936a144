package cmd

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/DomeLiquid/margin/config"
	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	cfg         config.Config
	debugMode   bool
	logger      zerolog.Logger
	initialized bool
)

var rootCmd = cobra.Command{
	Use:           "margin",
	Short:         "margin ledger and liquidator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initLogging, initConfig, initDone)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file. default is ~/.margin.yaml")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable or disable debug model")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ver string) {
	rootCmd.Version = ver
	rootCmd.SetOut(os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if initialized {
		return
	}

	if cfgFile == "" {
		dir, err := homedir.Dir()
		if err != nil {
			logger.Fatal().Err(err).Msg("locate home dir")
		}

		filename := path.Join(dir, ".margin.yaml")
		info, err := os.Stat(filename)
		if err == nil && !info.IsDir() {
			cfgFile = filename
		}
	}

	if cfgFile != "" {
		logger.Debug().Str("file", cfgFile).Msg("use config file")
	}

	if err := config.Load(cfgFile, &cfg); err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
}

func initLogging() {
	if initialized {
		return
	}

	level := zerolog.InfoLevel
	if debugMode {
		level = zerolog.DebugLevel
	}

	if debugMode {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	logger = logger.Level(level)
}

func initDone() {
	initialized = true
}
