package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
	"xeroreports/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var at = time.Date(2025, time.November, 3, 9, 0, 0, 0, time.UTC)

func summary() BatchSummary {
	return BatchSummary{
		Event:     EVENT_BATCH_FINISHED,
		BatchID:   "ab12cd34",
		Total:     2,
		Completed: 1,
		Failed:    1,
		Results: []Event{
			{Event: EVENT_REPORT_SUCCEEDED, Report: "activity_statement", Tenant: "Acme", FileName: "a.xlsx", At: at},
			{
				Event:     EVENT_REPORT_FAILED,
				Report:    "payroll_activity_summary",
				Tenant:    "Beta",
				ErrorKind: "element_not_found",
				Error:     "export button missing",
				At:        at,
			},
		},
		At: at,
	}
}

func TestWebhook(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]any
	status := http.StatusOK

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		bodies = append(bodies, body)
		code := status
		mu.Unlock()
		w.WriteHeader(code)
	}))
	defer server.Close()

	rec := &telemetry.Recorder{}
	hook := NewWebhook(server.URL, 6000, rec)
	ctx := context.Background()

	err := hook.ReportAttempt(ctx, summary().Results[1])
	require.NoError(t, err)
	err = hook.BatchFinished(ctx, summary())
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, bodies, 2)
	require.Equal(t, EVENT_REPORT_FAILED, bodies[0]["event"])
	require.Equal(t, "element_not_found", bodies[0]["error_kind"])
	require.Equal(t, "ab12cd34", bodies[1]["batch_id"])
	require.EqualValues(t, 2, bodies[1]["total"])
	status = http.StatusInternalServerError
	mu.Unlock()

	err = hook.ReportAttempt(ctx, summary().Results[0])
	require.Error(t, err)
	require.NotEmpty(t, rec.Reports("warning"))
}

type failing struct{ err error }

func (f failing) ReportAttempt(context.Context, Event) error {
	return f.err
}

func (f failing) BatchFinished(context.Context, BatchSummary) error {
	return f.err
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	multi := Multi{Nop{}, failing{boom}, Nop{}}

	require.ErrorIs(t, multi.ReportAttempt(context.Background(), Event{}), boom)
	require.ErrorIs(t, multi.BatchFinished(context.Background(), BatchSummary{}), boom)
	require.NoError(t, Multi{Nop{}}.ReportAttempt(context.Background(), Event{}))
	require.NoError(t, Multi{}.BatchFinished(context.Background(), BatchSummary{}))
}

func TestFormatSummary(t *testing.T) {
	text := formatSummary(summary())
	require.Contains(t, text, "Batch ab12cd34 finished: 1 of 2 reports downloaded, 1 failed.")
	require.Contains(t, text, "OK      Acme / activity_statement: a.xlsx")
	require.Contains(t, text, "FAILED  Beta / payroll_activity_summary: [element_not_found] export button missing")
}

func TestEmail(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	smtpServer, err := testcontainers.GenericContainer(
		context.Background(),
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "haravich/fake-smtp-server",
				ExposedPorts: []string{"1025:1025", "1080:1080"},
				WaitingFor:   wait.ForLog("smtp://0.0.0.0:1025"),
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		err := smtpServer.Terminate(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	}()

	mailer := NewEmail(SmtpConfig{
		Server:       "localhost",
		Port:         1025,
		EmailAddress: "reports@example.com",
		Password:     "default",
		To:           []string{"bookkeeper@example.com"},
	})
	require.NoError(t, mailer.ReportAttempt(context.Background(), Event{}))
	require.NoError(t, mailer.BatchFinished(context.Background(), summary()))

	res, err := resty.New().R().Get("http://127.0.0.1:1080/messages/1.plain")
	require.NoError(t, err)
	require.Contains(t, res.String(), "Batch ab12cd34 finished")
}
