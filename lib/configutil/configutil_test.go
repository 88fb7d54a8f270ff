package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int            `json:"port"`
	Headless bool           `json:"headless"`
	Dir      string         `json:"dir"`
	Timeouts map[string]int `json:"timeouts"`
}

func TestSplitExt(t *testing.T) {
	table := []struct {
		input  string
		prefix string
		ext    string
	}{
		{"config.json5", "config", "json5"},
		{"selectors.local.json5", "selectors.local", "json5"},
		{"noext", "noext", ""},
	}
	for _, test := range table {
		prefix, ext := splitExt(test.input)
		require.Equal(t, test.prefix, prefix)
		require.Equal(t, test.ext, ext)
	}
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.json5")

	err := os.WriteFile(base, []byte(`{
		// comments are allowed
		port: 8000,
		dir: "/app/downloads",
		timeouts: { render_ms: 30000 },
	}`), 0666)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		port: 9000,
		headless: true,
	}`), 0666)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](base)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.True(t, cfg.Headless)
	require.Equal(t, "/app/downloads", cfg.Dir)
	require.Equal(t, 30000, cfg.Timeouts["render_ms"])
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPath(t *testing.T) {
	t.Setenv("XERO_TEST_CONFIG", "")
	require.Equal(t, "config.json5", Path("XERO_TEST_CONFIG", "config.json5"))
	t.Setenv("XERO_TEST_CONFIG", "/etc/xero/config.json5")
	require.Equal(t, "/etc/xero/config.json5", Path("XERO_TEST_CONFIG", "config.json5"))
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, filepath.Join("dev", ".state", "config.local.json5"), localPath(filepath.Join("dev", ".state", "config.json5")))
	require.Equal(t, "selectors.local", localPath("selectors"))
}
