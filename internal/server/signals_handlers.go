package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/store"
)

func (s *Server) handleSignalsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.SignalFilter{
		Asset:    strings.TrimSpace(q.Get("asset")),
		Provider: strings.TrimSpace(q.Get("provider")),
		Limit:    500,
	}
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		st, ok := domain.ParseSignalStatus(v)
		if !ok {
			writeError(w, 400, fmt.Sprintf("unknown status %q", v))
			return
		}
		f.Status = st
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 5000 {
			f.Limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	sigs, err := s.svc.Signals(ctx, f)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("db list signals: %v", err))
		return
	}
	writeJSON(w, 200, map[string]any{"signals": sigs, "count": len(sigs)})
}

func (s *Server) handleSignalsImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rep, err := s.svc.ImportManual(r.Context(), body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, rep)
}

func (s *Server) handleSignalsSync(w http.ResponseWriter, r *http.Request) {
	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async && s.autoSync != nil {
		writeJSON(w, 202, map[string]any{"queued": s.autoSync.Trigger()})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	rep, err := s.svc.SyncFeeds(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, rep)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	source := strings.ToLower(strings.TrimSpace(pathParam(r, "source")))
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rep, err := s.svc.IngestWebhook(r.Context(), source, body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 202, rep)
}
