// Package audit records every report attempt in download_logs. Each attempt gets a pending row
// before any UI work starts and exactly one terminal update afterwards, whatever happens in
// between.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime/debug"
	"time"
	"xeroreports/internal/components/chrono"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/db"
	"xeroreports/internal/failure"
	"xeroreports/internal/reports"
)

const (
	report_recorder_record   = "recorder.record"
	report_recorder_finalize = "recorder.finalize"
)

const (
	DefaultLogLimit = 50
	MaxLogLimit     = 500
)

type Attempt struct {
	// ClientID is zero for attempts that are not tied to a registered client.
	ClientID   int64
	BatchID    string
	TenantName string
	Report     reports.Kind
}

type Entry struct {
	ID             int64      `json:"id"`
	ClientID       *int64     `json:"client_id,omitempty"`
	BatchID        string     `json:"batch_id,omitempty"`
	TenantName     string     `json:"tenant_name"`
	ReportType     string     `json:"report_type"`
	Status         string     `json:"status"`
	FilePath       string     `json:"file_path,omitempty"`
	FileName       string     `json:"file_name,omitempty"`
	FileSize       int64      `json:"file_size,omitempty"`
	ErrorKind      string     `json:"error_kind,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ScreenshotPath string     `json:"screenshot_path,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func entryFromRow(row db.DownloadLog) Entry {
	e := Entry{
		ID:             row.ID,
		BatchID:        row.BatchID.String,
		TenantName:     row.TenantName,
		ReportType:     row.ReportType,
		Status:         row.Status,
		FilePath:       row.FilePath.String,
		FileName:       row.FileName.String,
		FileSize:       row.FileSize.Int64,
		ErrorKind:      row.ErrorKind.String,
		ErrorMessage:   row.ErrorMessage.String,
		ScreenshotPath: row.ScreenshotPath.String,
		StartedAt:      time.Unix(row.StartedAt, 0),
	}
	if row.ClientID.Valid {
		id := row.ClientID.Int64
		e.ClientID = &id
	}
	if row.CompletedAt.Valid {
		completed := time.Unix(row.CompletedAt.Int64, 0)
		e.CompletedAt = &completed
	}
	return e
}

func entriesFromRows(rows []db.DownloadLog) []Entry {
	out := make([]Entry, len(rows))
	for i, row := range rows {
		out[i] = entryFromRow(row)
	}
	return out
}

type Recorder struct {
	qry   *db.Queries
	clock chrono.API
	tel   telemetry.API
}

func NewRecorder(qry *db.Queries, clock chrono.API, tel telemetry.API) Recorder {
	return Recorder{
		qry:   qry,
		clock: clock,
		tel:   telemetry.NewScopedAPI("audit", tel),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Record wraps one attempt. A panic inside fn is recovered, recorded as a failure of kind
// panic and returned as failure.ErrPanic.
func (r Recorder) Record(
	ctx context.Context,
	attempt Attempt,
	fn func(ctx context.Context) (reports.Result, error),
) (res reports.Result, err error) {
	id, err := r.qry.CreateDownloadLog(ctx, db.CreateDownloadLogParams{
		ClientID:   sql.NullInt64{Int64: attempt.ClientID, Valid: attempt.ClientID != 0},
		BatchID:    nullString(attempt.BatchID),
		TenantName: attempt.TenantName,
		ReportType: string(attempt.Report),
		StartedAt:  r.clock.Now().Unix(),
	})
	if err != nil {
		r.tel.ReportBroken(report_recorder_record, err)
		return reports.Result{}, fmt.Errorf("create download log: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", failure.ErrPanic, p)
			res = reports.Result{}
			r.tel.ReportBroken(report_recorder_record, err, string(debug.Stack()))
		}
		r.finalize(ctx, id, res, err)
	}()

	return fn(ctx)
}

func (r Recorder) finalize(ctx context.Context, id int64, res reports.Result, runErr error) {
	ctx = context.WithoutCancel(ctx)

	params := db.CompleteDownloadLogParams{
		ID:          id,
		CompletedAt: sql.NullInt64{Int64: r.clock.Now().Unix(), Valid: true},
	}
	if runErr == nil {
		params.Status = db.STATUS_SUCCESS
		params.FilePath = nullString(res.FilePath)
		params.FileName = nullString(res.FileName)
		params.FileSize = sql.NullInt64{Int64: res.FileSize, Valid: res.FilePath != ""}
	} else {
		params.Status = db.STATUS_FAILED
		params.ErrorKind = nullString(string(failure.KindOf(runErr)))
		params.ErrorMessage = nullString(runErr.Error())
		params.ScreenshotPath = nullString(failure.Screenshot(runErr))
	}

	updated, err := r.qry.CompleteDownloadLog(ctx, params)
	if err != nil {
		r.tel.ReportBroken(report_recorder_finalize, err, id)
		return
	}
	if updated == 0 {
		r.tel.ReportWarning(report_recorder_finalize, "log already terminal", id)
	}
}

func (r Recorder) Get(ctx context.Context, id int64) (Entry, error) {
	row, err := r.qry.GetDownloadLog(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: download log %d", failure.ErrNotFound, id)
	}
	if err != nil {
		return Entry{}, err
	}
	return entryFromRow(row), nil
}

// Logs lists attempts newest first, optionally filtered by status.
func (r Recorder) Logs(ctx context.Context, status string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}

	var rows []db.DownloadLog
	var err error
	switch status {
	case "":
		rows, err = r.qry.ListDownloadLogs(ctx, int64(limit))
	case db.STATUS_PENDING, db.STATUS_SUCCESS, db.STATUS_FAILED:
		rows, err = r.qry.ListDownloadLogsByStatus(ctx, db.ListDownloadLogsByStatusParams{
			Status: status,
			Limit:  int64(limit),
		})
	default:
		return nil, fmt.Errorf("%w: unknown status %q", failure.ErrInvalidInput, status)
	}
	if err != nil {
		return nil, err
	}
	return entriesFromRows(rows), nil
}

func (r Recorder) Batch(ctx context.Context, batchID string) ([]Entry, error) {
	rows, err := r.qry.ListDownloadLogsByBatch(ctx, nullString(batchID))
	if err != nil {
		return nil, err
	}
	return entriesFromRows(rows), nil
}
