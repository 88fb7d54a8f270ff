package reports

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/failure"

	"github.com/stretchr/testify/require"
)

func TestFiles(t *testing.T) {
	downloads := t.TempDir()
	shots := t.TempDir()
	now := time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)

	touch := func(dir, name string, age time.Duration) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, xlsx(1024), 0666))
		mtime := now.Add(-age)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
	touch(downloads, "newest.xlsx", time.Hour)
	touch(downloads, "older.xlsx", 48*time.Hour)
	touch(downloads, "ancient.xlsx", 40*24*time.Hour)
	touch(downloads, "pending.xlsx.crdownload", time.Minute)
	touch(shots, "fail.png", 31*24*time.Hour)
	require.NoError(t, os.Mkdir(filepath.Join(downloads, stagingDirName), 0777))

	files := NewFiles(downloads, shots, chrono.Fixed{At: now}, &telemetry.Recorder{})

	list, err := files.List()
	require.NoError(t, err)
	var names []string
	for _, f := range list {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"newest.xlsx", "older.xlsx", "ancient.xlsx"}, names)
	require.Equal(t, int64(1024), list[0].Size)

	path, err := files.Path("older.xlsx")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(downloads, "older.xlsx"), path)

	for _, bad := range []string{"", "..", "../etc/passwd", "a/b.xlsx", `..\secret`, stagingDirName} {
		_, err := files.Path(bad)
		require.ErrorIs(t, err, failure.ErrInvalidInput, bad)
	}
	_, err = files.Path("missing.xlsx")
	require.ErrorIs(t, err, failure.ErrNotFound)

	deleted, err := files.Cleanup(0)
	require.NoError(t, err)
	require.Equal(t, 2, deleted)
	require.NoFileExists(t, filepath.Join(downloads, "ancient.xlsx"))
	require.NoFileExists(t, filepath.Join(shots, "fail.png"))
	require.FileExists(t, filepath.Join(downloads, "older.xlsx"))
}

func TestFilesMissingDir(t *testing.T) {
	files := NewFiles(filepath.Join(t.TempDir(), "nope"), "", chrono.Fixed{}, &telemetry.Recorder{})
	list, err := files.List()
	require.NoError(t, err)
	require.Empty(t, list)

	deleted, err := files.Cleanup(time.Hour)
	require.NoError(t, err)
	require.Zero(t, deleted)
}
