package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"

	TransferBook  = "book"
	TransferERC20 = "erc20"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Store         string
	StateFile     string
	PGDSN         string
	RunMigrations bool
	Journal       string

	Transfer      string
	BookFile      string
	RPCURL        string
	TokenDecimals uint8
	OperatorKey   string
	// CustodyKeys are the stake vault, reward pool and LP vault keys, in
	// that order, for the erc20 transfer backend.
	CustodyKeys []string
	MaxRetries  int
	RetryDelay  time.Duration

	Listen   string
	Now      time.Time
	LogLevel string
}

// Load merges a .env file, config file, environment variables, and flags
// into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", StoreFile)
	v.SetDefault("state-file", "./data/ledger.json")
	v.SetDefault("run-migrations", false)
	v.SetDefault("journal", "./data/events.jsonl")
	v.SetDefault("transfer", TransferBook)
	v.SetDefault("book-file", "./data/book.json")
	v.SetDefault("token-decimals", 9)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-delay", 500*time.Millisecond)
	v.SetDefault("listen", ":8080")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	decimals := v.GetUint("token-decimals")
	if decimals > 255 {
		return Config{}, fmt.Errorf("token-decimals %d out of range", decimals)
	}

	cfg := Config{
		Store:         strings.ToLower(v.GetString("store")),
		StateFile:     v.GetString("state-file"),
		PGDSN:         v.GetString("pg-dsn"),
		RunMigrations: v.GetBool("run-migrations"),
		Journal:       v.GetString("journal"),
		Transfer:      strings.ToLower(v.GetString("transfer")),
		BookFile:      v.GetString("book-file"),
		RPCURL:        v.GetString("rpc"),
		TokenDecimals: uint8(decimals),
		OperatorKey:   v.GetString("operator-key"),
		CustodyKeys:   getStringSlice(v, "custody-keys"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryDelay:    v.GetDuration("retry-delay"),
		Listen:        v.GetString("listen"),
		LogLevel:      v.GetString("log-level"),
	}

	if now := v.GetString("now"); now != "" {
		ts, err := ParseTimestamp(now)
		if err != nil {
			return Config{}, fmt.Errorf("parse now: %w", err)
		}
		cfg.Now = time.Unix(int64(ts), 0).UTC()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreFile:
		if c.StateFile == "" {
			return fmt.Errorf("state-file is required for the file store")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}

	switch c.Transfer {
	case TransferBook:
	case TransferERC20:
		if c.RPCURL == "" {
			return fmt.Errorf("rpc url is required for the erc20 transfer backend")
		}
		if c.OperatorKey == "" {
			return fmt.Errorf("operator-key is required for the erc20 transfer backend")
		}
		if len(c.CustodyKeys) != 3 {
			return fmt.Errorf("custody-keys needs 3 keys (stake vault, reward pool, lp vault), got %d", len(c.CustodyKeys))
		}
	default:
		return fmt.Errorf("unknown transfer backend %q", c.Transfer)
	}
	return nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
