package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("xeroreports/internal/notify")

type SmtpConfig struct {
	Server       string   `json:"server"`
	Port         int      `json:"port"`
	EmailAddress string   `json:"email_address"`
	Password     string   `json:"password"`
	To           []string `json:"to"`
}

// Email mails a summary of each finished batch, single attempts are not mailed.
type Email struct {
	config SmtpConfig
}

func NewEmail(config SmtpConfig) Email {
	return Email{config: config}
}

func (Email) ReportAttempt(context.Context, Event) error {
	return nil
}

func formatSummary(summary BatchSummary) string {
	var b strings.Builder
	fmt.Fprintf(
		&b,
		"Batch %s finished: %d of %d reports downloaded, %d failed.\n\n",
		summary.BatchID, summary.Completed, summary.Total, summary.Failed,
	)
	for _, r := range summary.Results {
		if r.Event == EVENT_REPORT_SUCCEEDED {
			fmt.Fprintf(&b, "OK      %s / %s: %s\n", r.Tenant, r.Report, r.FileName)
			continue
		}
		fmt.Fprintf(&b, "FAILED  %s / %s: [%s] %s\n", r.Tenant, r.Report, r.ErrorKind, r.Error)
	}
	return b.String()
}

func (e Email) BatchFinished(ctx context.Context, summary BatchSummary) error {
	_, span := tracer.Start(ctx, "BatchFinished")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Xero Reports <%s>", e.config.EmailAddress)
	mail.To = e.config.To
	mail.Subject = fmt.Sprintf("Xero reports: %d/%d downloaded", summary.Completed, summary.Total)
	mail.Text = []byte(formatSummary(summary))

	addr := fmt.Sprintf("%s:%d", e.config.Server, e.config.Port)
	err := mail.Send(addr, smtp.PlainAuth("", e.config.EmailAddress, e.config.Password, e.config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
