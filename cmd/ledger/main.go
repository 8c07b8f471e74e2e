package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "ledger",
		Short:        "Token reward ledger with timelocked governance",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("store", "file", "record store (memory, file, postgres)")
	flags.String("state-file", "./data/ledger.json", "state snapshot path for the file store")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.Bool("run-migrations", false, "apply Postgres migrations on startup")
	flags.String("journal", "./data/events.jsonl", "event journal path (file and memory stores)")
	flags.String("transfer", "book", "transfer backend (book, erc20)")
	flags.String("book-file", "./data/book.json", "balance book snapshot path")
	flags.String("rpc", "", "EVM RPC URL for the erc20 backend")
	flags.Uint("token-decimals", 9, "decimals for mints registered by fund")
	flags.String("operator-key", "", "hex private key that sends transferFrom/burnFrom")
	flags.StringSlice("custody-keys", nil, "hex private keys of the stake vault, reward pool and lp vault")
	flags.Int("max-retries", 3, "maximum retry attempts for RPC calls")
	flags.Duration("retry-delay", 500*time.Millisecond, "initial retry delay")
	flags.String("listen", ":8080", "HTTP listen address for serve")
	flags.String("now", "", "evaluate time-dependent rules at this time (unix seconds or RFC3339)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(poolCommands()...)
	root.AddCommand(stakeCommands()...)
	root.AddCommand(governanceCommands()...)
	root.AddCommand(lpCommands()...)
	root.AddCommand(registryCommands()...)
	root.AddCommand(viewCommands()...)
	root.AddCommand(tokenCommands()...)
	root.AddCommand(serveCommand(), migrateCommand())
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
