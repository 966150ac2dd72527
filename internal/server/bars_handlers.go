package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/betbot/signaldesk/internal/normalizer"
)

func (s *Server) handleBarsList(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	q := r.URL.Query()
	start, err := queryTime(q.Get("start"))
	if err != nil {
		writeError(w, 400, fmt.Sprintf("invalid start: %v", err))
		return
	}
	end, err := queryTime(q.Get("end"))
	if err != nil {
		writeError(w, 400, fmt.Sprintf("invalid end: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	bars, err := s.svc.Bars(ctx, symbol, q.Get("interval"), start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"symbol": symbol, "bars": bars, "count": len(bars)})
}

// handleBarsUpload accepts either a raw text/csv body or a multipart form with a "file" field.
func (s *Server) handleBarsUpload(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, 400, fmt.Sprintf("missing csv file: %v", err))
			return
		}
		defer f.Close()
		src = f
	}

	n, err := s.svc.ImportBarsCSV(r.Context(), symbol, r.URL.Query().Get("interval"), src)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "stored": n})
}

func queryTime(v string) (time.Time, error) {
	if strings.TrimSpace(v) == "" {
		return time.Time{}, nil
	}
	return normalizer.ParseTimestamp(v)
}
