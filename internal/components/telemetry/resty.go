package telemetry

import (
	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
)

// InstrumentResty reports the requests client sends. Successful round trips are debug output,
// error statuses are warnings and transport failures are breakage.
func InstrumentResty(client *resty.Client, tel API) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		tel.ReportDebug(report_resty_request, req.Method, req.URL)
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		req := res.Request
		if res.IsError() {
			tel.ReportWarning(report_resty_response, req.Method, req.URL, res.Status(), res.Time().String())
			return nil
		}
		tel.ReportDebug(report_resty_response, req.Method, req.URL, res.Status(), res.Time().String())
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		tel.ReportBroken(report_resty_response, err, req.Method, req.URL, req.Attempt)
	})
}
