package db

import _ "embed"

//go:embed schema.sql
var Schema string

// ReportType values stored in download_logs.report_type.
const (
	REPORT_ACTIVITY_STATEMENT       = "activity_statement"
	REPORT_PAYROLL_ACTIVITY_SUMMARY = "payroll_activity_summary"
)

// Status values stored in download_logs.status.
const (
	STATUS_PENDING = "pending"
	STATUS_SUCCESS = "success"
	STATUS_FAILED  = "failed"
)
