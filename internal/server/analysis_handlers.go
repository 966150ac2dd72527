package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/signaldesk/internal/analysis"
	"github.com/betbot/signaldesk/internal/domain"
	"github.com/betbot/signaldesk/internal/store"
)

type runRequest struct {
	Asset        string   `json:"asset"`
	Interval     string   `json:"interval"`
	Start        string   `json:"start,omitempty"`
	End          string   `json:"end,omitempty"`
	ExpiryWindow string   `json:"expiry_window,omitempty"`
	SignalIDs    []string `json:"signal_ids,omitempty"`
}

func (req runRequest) toRequest() (analysis.Request, error) {
	out := analysis.Request{
		Asset:     strings.TrimSpace(req.Asset),
		Interval:  strings.TrimSpace(req.Interval),
		SignalIDs: req.SignalIDs,
	}
	var err error
	if out.Start, err = queryTime(req.Start); err != nil {
		return out, fmt.Errorf("invalid start: %w", err)
	}
	if out.End, err = queryTime(req.End); err != nil {
		return out, fmt.Errorf("invalid end: %w", err)
	}
	if !out.Start.IsZero() && !out.End.IsZero() && out.End.Before(out.Start) {
		return out, fmt.Errorf("end is before start")
	}
	if v := strings.TrimSpace(req.ExpiryWindow); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return out, fmt.Errorf("invalid expiry_window: %w", err)
		}
		out.ExpiryWindow = &d
	}
	return out, nil
}

func (s *Server) handleAnalysisRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, 400, fmt.Sprintf("invalid json: %v", err))
		return
	}
	req, err := body.toRequest()
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()
	rep, err := s.svc.Run(ctx, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, rep)
}

func resultFilter(r *http.Request) (store.ResultFilter, error) {
	q := r.URL.Query()
	f := store.ResultFilter{Asset: strings.TrimSpace(q.Get("asset"))}
	if v := strings.TrimSpace(q.Get("outcome")); v != "" {
		o, ok := domain.ParseOutcome(v)
		if !ok {
			return f, fmt.Errorf("unknown outcome %q", v)
		}
		f.Outcome = o
	}
	if v := strings.TrimSpace(q.Get("run_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid run_id %q", v)
		}
		f.RunID = id
	}
	return f, nil
}

func (s *Server) handleResultsList(w http.ResponseWriter, r *http.Request) {
	f, err := resultFilter(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	results, summary, err := s.svc.Results(ctx, f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, map[string]any{"results": results, "summary": summary})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	f, err := resultFilter(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}
	name := "signal-analysis"
	if f.Asset != "" {
		name += "-" + strings.ToLower(f.Asset)
	}
	name += "-" + time.Now().UTC().Format("20060102") + ".csv"

	var buf bytes.Buffer
	if _, err := s.svc.ExportCSV(r.Context(), &buf, f); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "signalID")
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()
	in, err := s.svc.Insight(ctx, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, 200, in)
}
