// Package notify tells the outside world about finished report attempts and batches.
package notify

import (
	"context"
	"errors"
	"time"
)

const (
	EVENT_REPORT_SUCCEEDED = "report.succeeded"
	EVENT_REPORT_FAILED    = "report.failed"
	EVENT_BATCH_FINISHED   = "batch.finished"
)

type Event struct {
	Event      string    `json:"event"`
	BatchID    string    `json:"batch_id,omitempty"`
	Report     string    `json:"report_type"`
	Tenant     string    `json:"tenant_name"`
	FileName   string    `json:"file_name,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	Screenshot string    `json:"screenshot,omitempty"`
	At         time.Time `json:"at"`
}

type BatchSummary struct {
	Event     string    `json:"event"`
	BatchID   string    `json:"batch_id"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Results   []Event   `json:"results"`
	At        time.Time `json:"at"`
}

// Notifier is told about every attempt and every batch.
//
// note: fault injection point
type Notifier interface {
	ReportAttempt(ctx context.Context, event Event) error
	BatchFinished(ctx context.Context, summary BatchSummary) error
}

type Nop struct{}

func (Nop) ReportAttempt(context.Context, Event) error {
	return nil
}

func (Nop) BatchFinished(context.Context, BatchSummary) error {
	return nil
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) ReportAttempt(ctx context.Context, event Event) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.ReportAttempt(ctx, event))
	}
	return errors.Join(errs...)
}

func (m Multi) BatchFinished(ctx context.Context, summary BatchSummary) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.BatchFinished(ctx, summary))
	}
	return errors.Join(errs...)
}
