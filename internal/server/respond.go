package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/betbot/signaldesk/internal/analysis"
	"github.com/betbot/signaldesk/internal/normalizer"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// writeServiceError maps analysis errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, analysis.ErrNoAsset),
		errors.Is(err, analysis.ErrInvalidPayload),
		errors.Is(err, normalizer.ErrUnsupportedSource):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analysis.ErrNoSignals),
		errors.Is(err, analysis.ErrNoHistoricalData),
		errors.Is(err, analysis.ErrSignalNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Errorf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
