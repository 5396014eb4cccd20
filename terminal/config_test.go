package terminal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hydraterm/hydraterm/internal/amount"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hydraterm.yaml")
	yaml := []byte("http_addr: 0.0.0.0:8000\nledger_base_url: http://ledger:5000\nledger_timeout: 3s\nnotify_scope: session\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("HYDRATERM_LEDGER_BASE_URL", "http://override:5000")
	t.Setenv("HYDRATERM_LEDGER_DECIMALS", "2")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8000", cfg.HTTPAddr)
	require.Equal(t, "http://override:5000", cfg.LedgerBaseURL)
	require.Equal(t, 3*time.Second, cfg.LedgerTimeout)
	require.Equal(t, 2, cfg.LedgerDecimals)
	require.Equal(t, "session", cfg.NotifyScope)
	require.Equal(t, "Hydra TERM", cfg.DeviceName)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("HYDRATERM_NOTIFY_SCOPE", "room")
	_, err := LoadConfig("")
	require.Error(t, err)

	t.Setenv("HYDRATERM_NOTIFY_SCOPE", "")
	t.Setenv("HYDRATERM_LEDGER_TIMEOUT", "soon")
	_, err = LoadConfig("")
	require.Error(t, err)

	t.Setenv("HYDRATERM_LEDGER_TIMEOUT", "")
	t.Setenv("HYDRATERM_LEDGER_DECIMALS", "19")
	_, err = LoadConfig("")
	require.ErrorIs(t, err, amount.ErrDecimalsRange)

	t.Setenv("HYDRATERM_LEDGER_DECIMALS", "")
	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFormat = "json"
	var buf bytes.Buffer
	logger, err := cfg.NewLogger(&buf)
	require.NoError(t, err)
	logger.Info("hello")
	require.Contains(t, buf.String(), `"msg":"hello"`)

	cfg.LogLevel = "loud"
	_, err = cfg.NewLogger(&buf)
	require.Error(t, err)
}
