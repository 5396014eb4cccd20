package terminal

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/exp/slog"

	"github.com/hydraterm/hydraterm/internal/amount"
	"github.com/hydraterm/hydraterm/internal/notify"
)

// Config is a configuration for the terminal application
type Config struct {
	HTTPAddr string `mapstructure:"http_addr"`
	// LedgerBaseURL is the layer-2 ledger service serving query-funds and pay-merchant.
	LedgerBaseURL string `mapstructure:"ledger_base_url"`
	// LedgerTimeout bounds each ledger call of a payment run.
	LedgerTimeout time.Duration `mapstructure:"ledger_timeout"`
	// LedgerDecimals settles requests that carry no decimals (6 = lovelace).
	LedgerDecimals int `mapstructure:"ledger_decimals"`
	// DeviceName is the advertised local name.
	DeviceName string `mapstructure:"device_name"`
	// NotifyScope is "broadcast" (every session sees every payment) or "session".
	NotifyScope  string `mapstructure:"notify_scope"`
	NotifyBuffer int    `mapstructure:"notify_buffer"`
	LogLevel     string `mapstructure:"log_level"`
	LogFormat    string `mapstructure:"log_format"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:       "localhost:9090",
		LedgerBaseURL:  "http://192.168.18.4:5000",
		LedgerTimeout:  10 * time.Second,
		LedgerDecimals: amount.NativeDecimals,
		DeviceName:     "Hydra TERM",
		NotifyScope:    string(notify.ScopeBroadcast),
		NotifyBuffer:   16,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// LoadConfig starts from DefaultConfig, merges the YAML file at path when
// path is not empty and applies HYDRATERM_* environment overrides last.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("decoding config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	cfg.HTTPAddr = getenv("HYDRATERM_HTTP_ADDR", cfg.HTTPAddr)
	cfg.LedgerBaseURL = getenv("HYDRATERM_LEDGER_BASE_URL", cfg.LedgerBaseURL)
	cfg.DeviceName = getenv("HYDRATERM_DEVICE_NAME", cfg.DeviceName)
	cfg.NotifyScope = getenv("HYDRATERM_NOTIFY_SCOPE", cfg.NotifyScope)
	cfg.LogLevel = getenv("HYDRATERM_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("HYDRATERM_LOG_FORMAT", cfg.LogFormat)

	if s := getenv("HYDRATERM_LEDGER_TIMEOUT", ""); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("HYDRATERM_LEDGER_TIMEOUT: %w", err)
		}
		cfg.LedgerTimeout = d
	}
	if s := getenv("HYDRATERM_LEDGER_DECIMALS", ""); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("HYDRATERM_LEDGER_DECIMALS: %w", err)
		}
		cfg.LedgerDecimals = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.LedgerBaseURL == "" {
		return fmt.Errorf("ledger base url is required")
	}
	if err := amount.CheckDecimals(c.LedgerDecimals); err != nil {
		return fmt.Errorf("ledger decimals: %w", err)
	}
	if _, err := notify.ParseScope(c.NotifyScope); err != nil {
		return err
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// NewLogger builds the root logger from the log settings of c.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch c.LogFormat {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.LogFormat)
	}
}
