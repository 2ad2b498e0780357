package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	alerting "noise-monitor/internal/alerting/domain"
)

// Handler exposes latch state for dashboards.
type Handler struct {
	latches alerting.LatchStore
	stream  *StreamHandler
	logger  zerolog.Logger
}

// NewHandler constructs a handler.
func NewHandler(latches alerting.LatchStore, broker *SSEBroker, logger zerolog.Logger) (*Handler, error) {
	if latches == nil {
		return nil, alerting.ErrNilStore
	}
	if broker == nil {
		return nil, errors.New("alerts handler: nil broker")
	}
	return &Handler{latches: latches, stream: NewStreamHandler(broker), logger: logger}, nil
}

// Routes mounts the alert endpoints under the caller's prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/stream", h.stream.ServeHTTP)
	r.Get("/{deviceID}", h.get)
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	states, err := h.latches.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list latches failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if states == nil {
		states = []alerting.LatchState{}
	}
	writeJSON(w, http.StatusOK, states)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	alerted, err := h.latches.Get(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, alerting.ErrMissingDevice) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Str("device_id", deviceID).Msg("get latch failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, alerting.LatchState{DeviceID: deviceID, Alerted: alerted})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
