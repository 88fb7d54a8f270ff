package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	scoped := NewScopedAPI("routines", rec)

	scoped.ReportBroken("payroll-summary", "export_button")
	scoped.ReportWarning("activity-statement")
	scoped.ReportDebug("step done")
	scoped.ReportCount("batch.size", 3)

	broken := rec.Reports("broken")
	require.Len(t, broken, 1)
	require.Equal(t, "routines: payroll-summary", broken[0].ID)
	require.Equal(t, []any{"export_button"}, broken[0].Params)

	require.Equal(t, "routines: activity-statement", rec.Reports("warning")[0].ID)
	require.Equal(t, "routines: step done", rec.Reports("debug")[0].ID)
	require.Equal(t, []any{int64(3)}, rec.Reports("count")[0].Params)
}

func TestNestedScope(t *testing.T) {
	rec := &Recorder{}
	scoped := NewScopedAPI("audit", NewScopedAPI("service", rec))

	scoped.ReportWarning("recorder.finalize")
	require.Equal(t, "service.audit: recorder.finalize", rec.Reports(LEVEL_WARNING)[0].ID)
}
