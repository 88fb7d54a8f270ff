package service

import (
	"context"
	"time"
	"xeroreports/internal/audit"
	"xeroreports/internal/reports"
)

func (s *Service) ListFiles() ([]reports.FileInfo, error) {
	return s.files.List()
}

// FilePath resolves a downloaded file by name, names that escape the download dir are rejected.
func (s *Service) FilePath(name string) (string, error) {
	return s.files.Path(name)
}

func (s *Service) CleanupFiles(maxAge time.Duration) (int, error) {
	removed, err := s.files.Cleanup(maxAge)
	if err != nil {
		s.tel.ReportWarning(report_service_cleanup, err)
	}
	return removed, err
}

func (s *Service) Logs(ctx context.Context, status string, limit int) ([]audit.Entry, error) {
	return s.audit.Logs(ctx, status, limit)
}

func (s *Service) BatchLogs(ctx context.Context, batchID string) ([]audit.Entry, error) {
	return s.audit.Batch(ctx, batchID)
}
