package reports

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"xeroreports/internal/failure"
)

var partialSuffixes = []string{".crdownload", ".tmp", ".partial"}

func isPartial(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.HasPrefix(name, ".")
}

// snapshot lists the regular files currently in dir.
func snapshot(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			out[e.Name()] = true
		}
	}
	return out, nil
}

// WaitForDownload polls dir until a file that is not in before appears and its size holds
// still across two polls. It returns failure.ErrMaterializationTimeout when nothing settles
// within timeout.
func WaitForDownload(ctx context.Context, dir string, before map[string]bool, timeout, poll time.Duration) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	sizes := map[string]int64{}
	for {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return "", err
		}
		for _, e := range entries {
			name := e.Name()
			if before[name] || !e.Type().IsRegular() || isPartial(name) {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			last, seen := sizes[name]
			sizes[name] = info.Size()
			if seen && last == info.Size() && info.Size() > 0 {
				return filepath.Join(dir, name), nil
			}
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("%w: nothing settled in %s after %s", failure.ErrMaterializationTimeout, dir, timeout)
		case <-ticker.C:
		}
	}
}
