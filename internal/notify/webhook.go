package notify

import (
	"context"
	"fmt"
	"time"
	"xeroreports/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Webhook posts every event as JSON to a url, n8n style.
type Webhook struct {
	url    string
	client *resty.Client
}

// NewWebhook limits outgoing posts to perMinute, zero means 30.
func NewWebhook(url string, perMinute int, tel telemetry.API) Webhook {
	if perMinute <= 0 {
		perMinute = 30
	}

	client := resty.New()
	client.SetTimeout(15 * time.Second)
	client.SetRetryCount(2)
	client.SetHeader("content-type", "application/json")

	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})
	telemetry.InstrumentResty(client, telemetry.NewScopedAPI("webhook", tel))

	return Webhook{url: url, client: client}
}

func (w Webhook) post(ctx context.Context, body any) error {
	res, err := w.client.R().
		SetContext(ctx).
		SetBody(body).
		Post(w.url)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("webhook responded %s", res.Status())
	}
	return nil
}

func (w Webhook) ReportAttempt(ctx context.Context, event Event) error {
	return w.post(ctx, event)
}

func (w Webhook) BatchFinished(ctx context.Context, summary BatchSummary) error {
	return w.post(ctx, summary)
}
