package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/wearsync/internal/logging"
	"github.com/dmitrijs2005/wearsync/internal/server/repositories/records"
)

// Handler serves the sync API over a record repository.
type Handler struct {
	repo    records.Repository
	version string
	log     logging.Logger
}

// NewHandler builds a handler. version is reported by the health endpoint.
func NewHandler(repo records.Repository, version string, log logging.Logger) *Handler {
	return &Handler{repo: repo, version: version, log: log}
}

// Routes wires the API onto a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", h.Health)
	r.Post("/data", h.SubmitData)
	r.Get("/data", h.GetData)

	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Info(r.Context(), "request served",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}

// Health reports endpoint liveness for the agent's availability probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		ServerTime: time.Now().UnixMilli(),
		Version:    h.version,
	})
}

// SubmitData receives a record batch from a device and upserts it.
// Re-submitting the same batch after a lost acknowledgement is safe.
func (h *Handler) SubmitData(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, syncResponse{Message: "malformed request body"})
		return
	}
	if req.DeviceID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, syncResponse{Message: "missing device id"})
		return
	}

	n, err := h.repo.Upsert(r.Context(), req.DeviceID, req.Data)
	if err != nil {
		h.log.Error(r.Context(), "failed to store batch", "device_id", req.DeviceID, "error", err)
		writeJSON(w, http.StatusInternalServerError, syncResponse{Message: "storage failure"})
		return
	}

	h.log.Info(r.Context(), "batch received", "device_id", req.DeviceID, "records", n)

	writeJSON(w, http.StatusOK, syncResponse{
		Success:           true,
		Message:           "ok",
		LastSyncTimestamp: time.Now().UnixMilli(),
		SyncedCount:       n,
	})
}

// GetData serves pull-style retrieval for downstream consumers:
// GET /data?device_id=&since=.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, syncResponse{Message: "missing device id"})
		return
	}

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, syncResponse{Message: "invalid since parameter"})
			return
		}
		since = parsed
	}

	recs, err := h.repo.SelectSince(r.Context(), deviceID, since)
	if err != nil {
		h.log.Error(r.Context(), "failed to read records", "device_id", deviceID, "error", err)
		writeJSON(w, http.StatusInternalServerError, syncResponse{Message: "storage failure"})
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Success:           true,
		Message:           "ok",
		LastSyncTimestamp: time.Now().UnixMilli(),
		SyncedCount:       len(recs),
		Data:              recs,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
