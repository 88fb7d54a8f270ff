package reports

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	"xeroreports/internal/failure"

	"github.com/stretchr/testify/require"
)

func TestWaitForDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.xlsx"), xlsx(2048), 0666))

	before, err := snapshot(dir)
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"old.xlsx": true}, before)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "report.xlsx.crdownload"), xlsx(1024), 0666)
		time.Sleep(20 * time.Millisecond)
		_ = os.Rename(filepath.Join(dir, "report.xlsx.crdownload"), filepath.Join(dir, "report.xlsx"))
	}()

	path, err := WaitForDownload(context.Background(), dir, before, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "report.xlsx"), path)
}

func TestWaitForDownloadTimeout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "partial.crdownload"), xlsx(2048), 0666))

	_, err := WaitForDownload(context.Background(), dir, map[string]bool{}, 30*time.Millisecond, 5*time.Millisecond)
	require.ErrorIs(t, err, failure.ErrMaterializationTimeout)
}

func TestWaitForDownloadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WaitForDownload(ctx, t.TempDir(), nil, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, failure.ErrMaterializationTimeout)
}
