package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jonny/switchyard/internal/domain/model"
	"github.com/jonny/switchyard/internal/domain/port/inbound"
	"github.com/jonny/switchyard/internal/domain/port/outbound"
	"github.com/jonny/switchyard/internal/domain/service"
	"github.com/jonny/switchyard/pkg/apierror"
)

// Dispatcher routes and invokes a request end to end.
type Dispatcher interface {
	Dispatch(ctx context.Context, reqCtx model.RequestContext, payload []byte) (service.DispatchResult, error)
}

// Handler serves the admin API.
type Handler struct {
	rules      inbound.RulePort
	router     inbound.RoutingPort
	ops        inbound.OperationsPort
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewHandler wires the admin API. dispatcher may be nil, in which case
// POST /api/v1/dispatch is not registered.
func NewHandler(rules inbound.RulePort, router inbound.RoutingPort, ops inbound.OperationsPort, dispatcher Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{rules: rules, router: router, ops: ops, dispatcher: dispatcher, logger: logger}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/rules", h.listRules)
	mux.HandleFunc("POST /api/v1/rules", h.createRule)
	mux.HandleFunc("GET /api/v1/rules/{id}", h.getRule)
	mux.HandleFunc("PUT /api/v1/rules/{id}", h.updateRule)
	mux.HandleFunc("DELETE /api/v1/rules/{id}", h.deleteRule)

	mux.HandleFunc("POST /api/v1/route", h.route)
	if h.dispatcher != nil {
		mux.HandleFunc("POST /api/v1/dispatch", h.dispatch)
	}

	mux.HandleFunc("POST /api/v1/diagnostics", h.runDiagnostics)
	mux.HandleFunc("GET /api/v1/diagnostics/latest", h.latestDiagnostics)
	mux.HandleFunc("POST /api/v1/repairs", h.runRepair)
	mux.HandleFunc("GET /api/v1/repairs", h.repairHistory)
	mux.HandleFunc("GET /api/v1/repairs/state", h.repairState)
}

func (h *Handler) listRules(w http.ResponseWriter, _ *http.Request) {
	rules := h.rules.List()
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules, "count": len(rules)})
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.rules.Get(r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var rule model.RoutingRule
	if err := decodeBody(r, &rule, false); err != nil {
		writeAPIError(w, apierror.WithDetail(http.StatusBadRequest, "invalid rule body", err.Error()))
		return
	}
	created, err := h.rules.Create(r.Context(), rule)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	var rule model.RoutingRule
	if err := decodeBody(r, &rule, false); err != nil {
		writeAPIError(w, apierror.WithDetail(http.StatusBadRequest, "invalid rule body", err.Error()))
		return
	}
	id := r.PathValue("id")
	if rule.ID != "" && rule.ID != id {
		writeAPIError(w, apierror.BadRequest("rule id in body does not match path"))
		return
	}
	rule.ID = id
	updated, err := h.rules.Update(r.Context(), rule)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.rules.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type routeRequest struct {
	Context model.RequestContext `json:"context"`
	Payload json.RawMessage      `json:"payload,omitempty"`
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeAPIError(w, apierror.WithDetail(http.StatusBadRequest, "invalid route request", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.router.Route(r.Context(), req.Context))
}

type dispatchResponse struct {
	ProviderID   string                `json:"provider_id"`
	Model        string                `json:"model,omitempty"`
	StatusCode   int                   `json:"status_code"`
	UsedFallback bool                  `json:"used_fallback"`
	Decision     model.RoutingDecision `json:"decision"`
	PrimaryError *model.ErrorDetails   `json:"primary_error,omitempty"`
	Body         json.RawMessage       `json:"body,omitempty"`
	BodyText     string                `json:"body_text,omitempty"`
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeAPIError(w, apierror.WithDetail(http.StatusBadRequest, "invalid dispatch request", err.Error()))
		return
	}
	res, err := h.dispatcher.Dispatch(r.Context(), req.Context, req.Payload)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	resp := dispatchResponse{
		ProviderID:   res.ProviderID,
		Model:        res.Result.Model,
		StatusCode:   res.Result.StatusCode,
		UsedFallback: res.UsedFallback,
		Decision:     res.Decision,
		PrimaryError: res.PrimaryError,
	}
	if json.Valid(res.Result.Body) {
		resp.Body = res.Result.Body
	} else {
		resp.BodyText = string(res.Result.Body)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) runDiagnostics(w http.ResponseWriter, r *http.Request) {
	result, err := h.ops.RunDiagnostics(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) latestDiagnostics(w http.ResponseWriter, r *http.Request) {
	result, err := h.ops.LatestDiagnostics(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type repairRequest struct {
	Strategy json.RawMessage `json:"strategy,omitempty"`
}

// runRepair starts a repair pass. A strategy in the body is overlaid on the
// default strategy so partial overrides keep the remaining defaults.
func (h *Handler) runRepair(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeAPIError(w, apierror.WithDetail(http.StatusBadRequest, "invalid repair request", err.Error()))
		return
	}
	var strategy *model.RepairStrategy
	if len(req.Strategy) > 0 && string(req.Strategy) != "null" {
		s := model.DefaultRepairStrategy()
		if err := json.Unmarshal(req.Strategy, &s); err != nil {
			writeAPIError(w, apierror.WithDetail(http.StatusBadRequest, "invalid strategy", err.Error()))
			return
		}
		strategy = &s
	}
	summary, err := h.ops.RunAutoFix(r.Context(), strategy)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type historyResponse struct {
	Items      []model.RepairSummary `json:"items"`
	TotalCount int64                 `json:"total_count"`
	Page       int                   `json:"page"`
	Size       int                   `json:"size"`
}

func (h *Handler) repairHistory(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeAPIError(w, apierror.BadRequest("page must be a non-negative integer"))
		return
	}
	size, err := queryInt(r, "size")
	if err != nil {
		writeAPIError(w, apierror.BadRequest("size must be a non-negative integer"))
		return
	}
	res, err := h.ops.RepairHistory(r.Context(), outbound.PageRequest{Page: page, Size: size})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	items := res.Items
	if items == nil {
		items = []model.RepairSummary{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Items: items, TotalCount: res.TotalCount, Page: res.Page, Size: res.Size})
}

func (h *Handler) repairState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]model.RepairState{"state": h.ops.RepairState()})
}

// providerErrorResponse carries the classified provider failure alongside
// the usual error body.
type providerErrorResponse struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Error   *model.ErrorDetails `json:"error"`
}

// writeDomainError maps domain errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var details *model.ErrorDetails
	switch {
	case errors.Is(err, model.ErrRuleNotFound):
		writeAPIError(w, notFound("rule", err))
	case errors.Is(err, model.ErrNoDiagnostics):
		writeAPIError(w, notFound("diagnostics result", err))
	case errors.Is(err, model.ErrRepairNotFound):
		writeAPIError(w, notFound("repair pass", err))
	case errors.Is(err, model.ErrRuleExists),
		errors.Is(err, model.ErrDuplicateDefaultRule):
		writeAPIError(w, apierror.Conflict(err.Error()))
	case errors.Is(err, model.ErrInvalidRule),
		errors.Is(err, model.ErrMalformedCondition),
		errors.Is(err, model.ErrInvalidStrategy),
		errors.Is(err, model.ErrInvalidRetryConfig):
		writeAPIError(w, apierror.WithDetail(http.StatusBadRequest, "validation failed", err.Error()))
	case errors.Is(err, model.ErrDiagnosticsInProgress),
		errors.Is(err, model.ErrRepairPassInProgress):
		writeAPIError(w, apierror.Locked(err.Error()))
	case errors.As(err, &details):
		apiErr := apierror.BadGateway("provider request failed")
		writeJSON(w, apiErr.Code, providerErrorResponse{Code: apiErr.Code, Message: apiErr.Message, Error: details})
	default:
		h.logger.ErrorContext(r.Context(), "admin api request failed", "path", r.URL.Path, "error", err)
		writeAPIError(w, apierror.Internal("internal error"))
	}
}

func notFound(resource string, err error) *apierror.Error {
	e := apierror.NotFound(resource)
	e.Detail = err.Error()
	return e
}

// decodeBody decodes a JSON body into v. When optional is set an empty
// body leaves v untouched.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, e *apierror.Error) {
	writeJSON(w, e.Code, e)
}
