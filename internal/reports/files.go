package reports

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/failure"
)

const report_files_cleanup = "files.cleanup"

const DefaultRetention = 30 * 24 * time.Hour

type FileInfo struct {
	Name       string    `json:"filename"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Files manages exported reports and failure screenshots on disk.
type Files struct {
	downloadDir   string
	screenshotDir string
	clock         chrono.API
	tel           telemetry.API
}

func NewFiles(downloadDir, screenshotDir string, clock chrono.API, tel telemetry.API) Files {
	return Files{
		downloadDir:   downloadDir,
		screenshotDir: screenshotDir,
		clock:         clock,
		tel:           telemetry.NewScopedAPI("files", tel),
	}
}

func listDir(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []FileInfo
	for _, e := range entries {
		if !e.Type().IsRegular() || isPartial(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{
			Name:       e.Name(),
			Path:       filepath.Join(dir, e.Name()),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	return out, nil
}

// List returns the exported reports, newest first.
func (f Files) List() ([]FileInfo, error) {
	files, err := listDir(f.downloadDir)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModifiedAt.After(files[j].ModifiedAt)
	})
	return files, nil
}

// Path resolves a bare file name inside the download dir. Names that would escape it are
// rejected with failure.ErrInvalidInput.
func (f Files) Path(name string) (string, error) {
	if name == "" ||
		name != filepath.Base(name) ||
		strings.ContainsAny(name, `/\`) ||
		name == "." || name == ".." ||
		isPartial(name) {
		return "", fmt.Errorf("%w: bad file name %q", failure.ErrInvalidInput, name)
	}
	path := filepath.Join(f.downloadDir, name)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s", failure.ErrNotFound, name)
	}
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", failure.ErrNotFound, name)
	}
	return path, nil
}

// Cleanup removes reports and screenshots last modified more than maxAge ago and returns how
// many were removed.
func (f Files) Cleanup(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}
	cutoff := f.clock.Now().Add(-maxAge)

	deleted := 0
	for _, dir := range []string{f.downloadDir, f.screenshotDir} {
		if dir == "" {
			continue
		}
		files, err := listDir(dir)
		if err != nil {
			return deleted, err
		}
		for _, file := range files {
			if !file.ModifiedAt.Before(cutoff) {
				continue
			}
			err := os.Remove(file.Path)
			if err != nil {
				f.tel.ReportWarning(report_files_cleanup, file.Path, err)
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}
