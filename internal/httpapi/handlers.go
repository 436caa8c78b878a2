package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/AlvinAlvito/posi-mobile/internal/domain"
	"github.com/AlvinAlvito/posi-mobile/internal/service"
	"github.com/AlvinAlvito/posi-mobile/internal/store"
)

type API struct {
	Svc  *service.BroadcastService
	Auth TokenVerifier
}

func (a *API) Register(r *mux.Router) {
	admin := func(h http.HandlerFunc) http.HandlerFunc { return RequireRole(a.Auth, "admin", h) }
	user := func(h http.HandlerFunc) http.HandlerFunc { return RequireRole(a.Auth, "", h) }

	r.HandleFunc("/admin/broadcasts", admin(a.handleListBroadcasts)).Methods(http.MethodGet)
	r.HandleFunc("/admin/broadcasts", admin(a.handleCreateBroadcast)).Methods(http.MethodPost)
	r.HandleFunc("/admin/broadcasts/{id}/resume", admin(a.handleResume)).Methods(http.MethodPost)
	r.HandleFunc("/admin/broadcasts/{id}/targets", admin(a.handleListTargets)).Methods(http.MethodGet)
	r.HandleFunc("/admin/broadcasts/{id}/retry-targets", admin(a.handleRetryTargets)).Methods(http.MethodPost)

	r.HandleFunc("/devices", user(a.handleRegisterDevice)).Methods(http.MethodPost)
	r.HandleFunc("/devices", user(a.handleRevokeDevice)).Methods(http.MethodDelete)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Message string `json:"message"`
}

// writeErr maps service errors onto status codes: validation and
// schema-capability problems are client errors, unknown store failures are
// dependency errors.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrBroadcastNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Message: err.Error()})
	case errors.Is(err, service.ErrNoRecipients),
		errors.Is(err, service.ErrQueueUnsupported),
		errors.Is(err, service.ErrTargetIDsRequired),
		errors.Is(err, service.ErrNoRetryableTargets),
		errors.Is(err, domain.ErrCompetitionRequired),
		errors.Is(err, domain.ErrSubjectRequired),
		errors.Is(err, domain.ErrMessageRequired):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
	default:
		slog.Error("request failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Message: ErrDependency})
	}
}

func broadcastID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (a *API) handleListBroadcasts(w http.ResponseWriter, r *http.Request) {
	broadcasts, err := a.Svc.ListBroadcasts(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"broadcasts": broadcasts})
}

func (a *API) handleCreateBroadcast(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: ErrInvalidJSON})
		return
	}

	resp, err := a.Svc.CreateBroadcast(r.Context(), identityFrom(r.Context()).ID, req)
	if err != nil {
		writeErr(w, err)
		return
	}

	// Queued broadcasts are accepted for background processing; legacy
	// sends complete before responding.
	status := http.StatusAccepted
	if resp.Status == string(domain.BroadcastSent) {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

func (a *API) handleResume(w http.ResponseWriter, r *http.Request) {
	id, ok := broadcastID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: ErrInvalidID})
		return
	}
	progress, err := a.Svc.Resume(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "broadcast": progress})
}

func (a *API) handleListTargets(w http.ResponseWriter, r *http.Request) {
	id, ok := broadcastID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: ErrInvalidID})
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	resp, err := a.Svc.ListTargets(r.Context(), store.TargetListFilter{
		BroadcastID: id,
		Status:      q.Get("status"),
		Page:        page,
		PageSize:    pageSize,
		Query:       q.Get("q"),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"targets": resp.Targets,
		"pagination": map[string]any{
			"page":       resp.Page,
			"pageSize":   resp.PageSize,
			"total":      resp.Total,
			"totalPages": resp.TotalPages,
		},
	})
}

func (a *API) handleRetryTargets(w http.ResponseWriter, r *http.Request) {
	id, ok := broadcastID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: ErrInvalidID})
		return
	}

	var req struct {
		TargetIDs []int64 `json:"target_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: ErrInvalidJSON})
		return
	}

	retried, progress, err := a.Svc.RetryTargets(r.Context(), id, req.TargetIDs)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "retried": retried, "broadcast": progress})
}

func (a *API) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: ErrInvalidJSON})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
		return
	}
	if err := a.Svc.RegisterDevice(r.Context(), identityFrom(r.Context()).ID, req); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: ErrInvalidJSON})
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "token is required"})
		return
	}
	if err := a.Svc.RevokeDevice(r.Context(), identityFrom(r.Context()).ID, req.Token); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
