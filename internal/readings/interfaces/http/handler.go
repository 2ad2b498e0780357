package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"noise-monitor/internal/observability/metrics"
	readingapp "noise-monitor/internal/readings/application"
	readings "noise-monitor/internal/readings/domain"
	"noise-monitor/internal/readings/interfaces"
)

const (
	source       = "http"
	defaultLimit = 100
	maxLimit     = 5000
	maxBodyBytes = 1 << 20
)

// Handler exposes reading ingest and history endpoints.
type Handler struct {
	ingest *readingapp.IngestService
	store  readings.ReadingStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewHandler constructs a handler.
func NewHandler(ingest *readingapp.IngestService, store readings.ReadingStore, logger zerolog.Logger) (*Handler, error) {
	if ingest == nil {
		return nil, errors.New("readings handler: nil ingest service")
	}
	if store == nil {
		return nil, errors.New("readings handler: nil store")
	}
	return &Handler{ingest: ingest, store: store, logger: logger, now: time.Now}, nil
}

// IngestRoutes serves device writes.
func (h *Handler) IngestRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ingestReadings)
	r.Delete("/{deviceID}/{key}", h.deleteReading)
	return r
}

// DeviceRoutes serves the dashboard data feed.
func (h *Handler) DeviceRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.listDevices)
	r.Get("/{deviceID}/readings", h.listReadings)
	r.Get("/{deviceID}/readings/export.xlsx", h.exportXLSX)
	r.Get("/{deviceID}/readings/export.pdf", h.exportPDF)
	return r
}

type ingestRequest struct {
	interfaces.Payload
	Readings []interfaces.Payload `json:"readings"`
}

type ingestResponse struct {
	Stored int      `json:"stored"`
	Keys   []string `json:"keys"`
}

func (h *Handler) ingestReadings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn().Err(err).Msg("reading ingest: read body error")
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req ingestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		metrics.IncIngest(source, metrics.ResultError)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	payloads := req.Readings
	if len(payloads) == 0 {
		payloads = []interfaces.Payload{req.Payload}
	}

	batch := make([]readings.Measurement, 0, len(payloads))
	for _, p := range payloads {
		m, err := p.ToMeasurement("", "")
		if err != nil {
			metrics.IncIngest(source, metrics.ResultError)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		batch = append(batch, m)
	}

	resp := ingestResponse{Keys: make([]string, 0, len(batch))}
	for _, m := range batch {
		stored, err := h.ingest.Write(r.Context(), m)
		if err != nil {
			metrics.IncIngest(source, metrics.ResultError)
			h.logger.Error().Err(err).Str("device_id", m.DeviceID).Int64("key", stored.Key).Msg("reading ingest failed")
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		metrics.IncIngest(source, metrics.ResultSuccess)
		resp.Stored++
		resp.Keys = append(resp.Keys, readings.FormatKey(stored.Key))
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) deleteReading(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	key, err := readings.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ok, err := h.ingest.Delete(r.Context(), deviceID, key)
	if err != nil {
		h.logger.Error().Err(err).Str("device_id", deviceID).Int64("key", key).Msg("reading delete failed")
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	if !ok {
		http.Error(w, readings.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.Devices(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list devices failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if devices == nil {
		devices = []string{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) (string, []interfaces.ProcessedMeasurement, bool) {
	deviceID := chi.URLParam(r, "deviceID")
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	items, err := h.store.ListLatest(r.Context(), deviceID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("device_id", deviceID).Msg("list readings failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return "", nil, false
	}
	return deviceID, interfaces.Process(items), true
}

func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) {
	_, rows, ok := h.history(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) exportXLSX(w http.ResponseWriter, r *http.Request) {
	deviceID, rows, ok := h.history(w, r)
	if !ok {
		return
	}
	data, err := interfaces.BuildHistoryXLSX(deviceID, rows, h.now())
	if err != nil {
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	writeFile(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", deviceID+"-readings.xlsx", data)
}

func (h *Handler) exportPDF(w http.ResponseWriter, r *http.Request) {
	deviceID, rows, ok := h.history(w, r)
	if !ok {
		return
	}
	data, err := interfaces.BuildHistoryPDF(deviceID, rows, h.now())
	if err != nil {
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	writeFile(w, "application/pdf", deviceID+"-readings.pdf", data)
}

func parseLimit(value string) (int, error) {
	if value == "" {
		return defaultLimit, nil
	}
	limit, err := strconv.Atoi(value)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, readings.ErrMissingDevice),
		errors.Is(err, readings.ErrInvalidDevice),
		errors.Is(err, readings.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, readings.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
