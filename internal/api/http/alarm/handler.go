package alarm

import (
	"encoding/json"
	"net/http"

	"github.com/oshokin/shared-alarm/internal/api/protocol"
	domain "github.com/oshokin/shared-alarm/internal/domain/alarm"
	"github.com/oshokin/shared-alarm/internal/logger"
)

// dispatch serves the multiplexed device operation.
func (h *handler) dispatch(w http.ResponseWriter, r *http.Request) {
	request, err := protocol.DecodeRequest(r.Body)
	if err != nil {
		writeError(w, r, err, "Failed to process request")

		return
	}

	response, err := h.service.Dispatch(r.Context(), request)
	if err != nil {
		writeError(w, r, err, "Failed to process request")

		return
	}

	writeJSON(w, r, http.StatusOK, response)
}

// globalStatus serves the dashboard view.
func (h *handler) globalStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.service.GlobalStatus(r.Context()))
}

// push serves the push-only alarm endpoint.
func (h *handler) push(w http.ResponseWriter, r *http.Request) {
	request, alarmType, err := protocol.DecodePushRequest(r.Body)
	if err != nil {
		writeError(w, r, err, "Failed to send alarm notification")

		return
	}

	response, err := h.service.Push(r.Context(), request, alarmType)
	if err != nil {
		writeError(w, r, err, "Failed to send alarm notification")

		return
	}

	writeJSON(w, r, http.StatusOK, response)
}

// subscribe adds a push token to the alarm topic.
func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	token, err := protocol.DecodeTokenRequest(r.Body)
	if err != nil {
		writeError(w, r, err, "Failed to subscribe to alarm topic")

		return
	}

	response, err := h.service.Subscribe(r.Context(), token)
	if err != nil {
		writeError(w, r, err, "Failed to subscribe to alarm topic")

		return
	}

	writeJSON(w, r, http.StatusOK, response)
}

// unsubscribe removes a push token from the alarm topic.
func (h *handler) unsubscribe(w http.ResponseWriter, r *http.Request) {
	token, err := protocol.DecodeTokenRequest(r.Body)
	if err != nil {
		writeError(w, r, err, "Failed to unsubscribe from alarm topic")

		return
	}

	response, err := h.service.Unsubscribe(r.Context(), token)
	if err != nil {
		writeError(w, r, err, "Failed to unsubscribe from alarm topic")

		return
	}

	writeJSON(w, r, http.StatusOK, response)
}

// writeError renders client errors as 400 with the cause and anything else as
// 500 with a generic message plus details.
func writeError(w http.ResponseWriter, r *http.Request, err error, failure string) {
	if domain.IsClientError(err) {
		writeJSON(w, r, http.StatusBadRequest, &protocol.ErrorResponse{Error: err.Error()})

		return
	}

	logger.ErrorKV(r.Context(), failure, "path", r.URL.Path, "error", err)

	writeJSON(w, r, http.StatusInternalServerError, &protocol.ErrorResponse{
		Error:   failure,
		Details: err.Error(),
	})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WarnKV(r.Context(), "Failed to write response", "path", r.URL.Path, "error", err)
	}
}
