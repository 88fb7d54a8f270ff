// Package api exposes the service over JSON HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"xeroreports/internal/components/assert"
	"xeroreports/internal/components/telemetry"
	"xeroreports/internal/failure"
	"xeroreports/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	report_handler_request = "handler.request"
	report_handler_failure = "handler.failure"
)

const HEADER_REQUEST_ID = "x-request-id"

type requestIDKeyType int

var requestIDKey requestIDKeyType

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type Handler struct {
	svc *service.Service
	tel telemetry.API
}

func NewHandler(svc *service.Service, tel telemetry.API) *Handler {
	assert.NotNil(svc, "service")
	assert.NotNil(tel, "tel")
	return &Handler{svc: svc, tel: telemetry.NewScopedAPI("api", tel)}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.requestIDMiddleware)

	r.HandleFunc("/api/health", h.health).Methods("GET")

	r.HandleFunc("/api/browser/start", h.browserStart).Methods("POST")
	r.HandleFunc("/api/browser/stop", h.browserStop).Methods("POST")
	r.HandleFunc("/api/browser/restart", h.browserRestart).Methods("POST")

	r.HandleFunc("/api/auth/setup", h.authSetup).Methods("POST")
	r.HandleFunc("/api/auth/complete", h.authComplete).Methods("POST")
	r.HandleFunc("/api/auth/restore", h.authRestore).Methods("POST")
	r.HandleFunc("/api/auth/status", h.authStatus).Methods("GET")
	r.HandleFunc("/api/auth/tenants", h.listTenants).Methods("GET")
	r.HandleFunc("/api/auth/switch-tenant", h.switchTenant).Methods("POST")
	r.HandleFunc("/api/auth/session", h.deleteSession).Methods("DELETE")
	r.HandleFunc("/api/auth/logout", h.logout).Methods("POST")

	r.HandleFunc("/api/reports/activity-statement", h.activityStatement).Methods("POST")
	r.HandleFunc("/api/reports/payroll-activity-summary", h.payrollSummary).Methods("POST")
	r.HandleFunc("/api/reports/batch", h.batch).Methods("POST")
	r.HandleFunc("/api/reports/files", h.listFiles).Methods("GET")
	r.HandleFunc("/api/reports/download/{filename}", h.downloadFile).Methods("GET")
	r.HandleFunc("/api/reports/logs", h.logs).Methods("GET")
	r.HandleFunc("/api/reports/cleanup", h.cleanup).Methods("POST")

	r.HandleFunc("/api/clients", h.listClients).Methods("GET")
	r.HandleFunc("/api/clients", h.createClient).Methods("POST")
	r.HandleFunc("/api/clients/{id}", h.getClient).Methods("GET")
	r.HandleFunc("/api/clients/{id}", h.updateClient).Methods("PUT")
	r.HandleFunc("/api/clients/{id}", h.deleteClient).Methods("DELETE")

	return r
}

// Routes is the router wrapped with tracing.
func (h *Handler) Routes() http.Handler {
	return otelhttp.NewHandler(h.Router(), "xeroreports")
}

func (h *Handler) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HEADER_REQUEST_ID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HEADER_REQUEST_ID, id)

		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
		h.tel.ReportDebug(report_handler_request, id, r.Method, r.URL.Path, time.Since(start).String())
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody(err)
	status := statusFor(failure.Kind(body.Code))
	if status >= http.StatusInternalServerError {
		h.tel.ReportBroken(report_handler_failure, r.Method, r.URL.Path, err)
	} else {
		h.tel.ReportDebug(report_handler_failure, r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorResponse{RequestID: requestID(r.Context()), Error: body})
}

func (h *Handler) invalid(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	h.fail(w, r, fmt.Errorf("%w: %s", failure.ErrInvalidInput, fmt.Sprintf(format, args...)))
}

// respond writes v, or the failure when err is set.
func respond[T any](h *Handler, w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// decode reads an optional JSON body, an empty body leaves target untouched.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(target)
	if err != nil {
		h.invalid(w, r, "invalid JSON payload: %v", err)
		return false
	}
	return true
}

func queryBool(r *http.Request, key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", failure.ErrInvalidInput, key)
	}
	return value, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", failure.ErrInvalidInput, key)
	}
	return value, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid client id %q", failure.ErrInvalidInput, raw)
	}
	return id, nil
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health(r.Context()))
}

func (h *Handler) browserStart(w http.ResponseWriter, r *http.Request) {
	headless, err := queryBool(r, "headless", true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.svc.BrowserStart(r.Context(), headless)
	respond(h, w, r, state, err)
}

func (h *Handler) browserStop(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.BrowserStop(r.Context())
	respond(h, w, r, state, err)
}

func (h *Handler) browserRestart(w http.ResponseWriter, r *http.Request) {
	headless, err := queryBool(r, "headless", true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.svc.BrowserRestart(r.Context(), headless)
	respond(h, w, r, state, err)
}

func (h *Handler) authSetup(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AuthSetup(r.Context())
	respond(h, w, r, res, err)
}

func (h *Handler) authComplete(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AuthComplete(r.Context())
	respond(h, w, r, res, err)
}

func (h *Handler) authRestore(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AuthRestore(r.Context())
	respond(h, w, r, res, err)
}

func (h *Handler) authStatus(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AuthStatus(r.Context())
	respond(h, w, r, res, err)
}

type tenantsResponse struct {
	Tenants any `json:"tenants"`
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.svc.ListTenants(r.Context())
	respond(h, w, r, tenantsResponse{Tenants: tenants}, err)
}

type switchTenantRequest struct {
	TenantName      string `json:"tenant_name"`
	TenantShortcode string `json:"tenant_shortcode"`
}

func (h *Handler) switchTenant(w http.ResponseWriter, r *http.Request) {
	var req switchTenantRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.SwitchTenant(r.Context(), req.TenantName, req.TenantShortcode)
	respond(h, w, r, res, err)
}

type okResponse struct {
	Ok bool `json:"ok"`
}

func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteSession(r.Context())
	respond(h, w, r, okResponse{Ok: true}, err)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Logout(r.Context())
	respond(h, w, r, okResponse{Ok: true}, err)
}

func (h *Handler) activityStatement(w http.ResponseWriter, r *http.Request) {
	var req service.ActivityStatementRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.DownloadActivityStatement(r.Context(), req)
	respond(h, w, r, res, err)
}

func (h *Handler) payrollSummary(w http.ResponseWriter, r *http.Request) {
	var req service.PayrollRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.DownloadPayrollSummary(r.Context(), req)
	respond(h, w, r, res, err)
}

func (h *Handler) batch(w http.ResponseWriter, r *http.Request) {
	var req service.BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.BatchDownload(r.Context(), req)
	respond(h, w, r, res, err)
}

type filesResponse struct {
	Files any `json:"files"`
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.ListFiles()
	respond(h, w, r, filesResponse{Files: files}, err)
}

func (h *Handler) downloadFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	path, err := h.svc.FilePath(name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("content-disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

type logsResponse struct {
	Logs any `json:"logs"`
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if batchID := strings.TrimSpace(query.Get("batch_id")); batchID != "" {
		logs, err := h.svc.BatchLogs(r.Context(), batchID)
		respond(h, w, r, logsResponse{Logs: logs}, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logs, err := h.svc.Logs(r.Context(), strings.TrimSpace(query.Get("status")), limit)
	respond(h, w, r, logsResponse{Logs: logs}, err)
}

type cleanupResponse struct {
	Removed int `json:"removed"`
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "max_age_days")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	removed, err := h.svc.CleanupFiles(time.Duration(days) * 24 * time.Hour)
	respond(h, w, r, cleanupResponse{Removed: removed}, err)
}

type clientsResponse struct {
	Clients []service.Client `json:"clients"`
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := queryBool(r, "active_only", false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	clients, err := h.svc.ListClients(r.Context(), activeOnly)
	respond(h, w, r, clientsResponse{Clients: clients}, err)
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var input service.ClientInput
	if !h.decode(w, r, &input) {
		return
	}
	client, err := h.svc.CreateClient(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	client, err := h.svc.GetClient(r.Context(), id)
	respond(h, w, r, client, err)
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var update service.ClientUpdate
	if !h.decode(w, r, &update) {
		return
	}
	client, err := h.svc.UpdateClient(r.Context(), id, update)
	respond(h, w, r, client, err)
}

func (h *Handler) deleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	err = h.svc.DeleteClient(r.Context(), id)
	respond(h, w, r, okResponse{Ok: true}, err)
}
