package cmd

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

type apiError struct {
	RequestID string `json:"request_id"`
	Error     struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		Screenshot string `json:"screenshot"`
	} `json:"error"`
}

type apiClient struct {
	http *resty.Client
}

// do sends body as JSON and decodes a successful response into out, either may be nil.
func (c apiClient) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().
		SetContext(ctx).
		SetError(&apiError{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if !res.IsError() {
		return nil
	}

	apiErr, ok := res.Error().(*apiError)
	if !ok || apiErr.Error.Code == "" {
		return fmt.Errorf("server responded %s", res.Status())
	}
	msg := fmt.Sprintf("%s: %s (request %s)", apiErr.Error.Code, apiErr.Error.Message, apiErr.RequestID)
	if apiErr.Error.Screenshot != "" {
		msg += "\nscreenshot: " + apiErr.Error.Screenshot
	}
	return fmt.Errorf("%s", msg)
}
