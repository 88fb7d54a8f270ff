package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"xeroreports/internal/failure"
)

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Report     string `json:"report,omitempty"`
	Tenant     string `json:"tenant,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
}

func statusFor(kind failure.Kind) int {
	switch kind {
	case failure.KindBusy, failure.KindInvalidState, failure.KindModeConflict:
		return http.StatusConflict
	case failure.KindElementNotFound,
		failure.KindTenantSwitchMismatch,
		failure.KindMaterializationTimeout,
		failure.KindLoginIncomplete,
		failure.KindNoCookies,
		failure.KindProbeFailed:
		return http.StatusUnprocessableEntity
	case failure.KindSessionAbsent, failure.KindSessionCorrupt:
		return http.StatusUnauthorized
	case failure.KindLaunch, failure.KindNotStarted:
		return http.StatusServiceUnavailable
	case failure.KindInvalidInput:
		return http.StatusBadRequest
	case failure.KindNotFound:
		return http.StatusNotFound
	case failure.KindTimeout:
		return http.StatusGatewayTimeout
	case failure.KindCancelled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func errorBody(err error) responseError {
	kind := failure.KindOf(err)
	body := responseError{
		Code:    string(kind),
		Message: err.Error(),
	}

	var step *failure.StepError
	if errors.As(err, &step) {
		body.Report = step.Report
		body.Tenant = step.Tenant
		body.Screenshot = step.Screenshot
	}
	var mismatch *failure.TenantMismatchError
	if errors.As(err, &mismatch) && body.Tenant == "" {
		body.Tenant = mismatch.Requested
	}
	if kind == failure.KindInternal || kind == failure.KindPanic {
		body.Message = "internal server error"
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
