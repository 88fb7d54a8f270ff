package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsBrowserProcess(t *testing.T) {
	table := []struct {
		input    string
		expected bool
	}{
		{"chrome", true},
		{"Google Chrome Helper", true},
		{"chromium-browser", true},
		{"headless_shell", false},
		{"go", false},
	}
	for _, test := range table {
		require.Equal(t, test.expected, isBrowserProcess(test.input), test.input)
	}
}

func TestReadBrowserUsageWithoutBrowser(t *testing.T) {
	usage, err := ReadBrowserUsage(context.Background())
	require.NoError(t, err)
	require.Zero(t, usage.Processes)
}
