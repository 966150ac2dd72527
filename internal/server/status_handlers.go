package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	st, err := s.svc.Status(ctx)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("status: %v", err))
		return
	}
	writeJSON(w, 200, st)
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	n := 50
	if v := strings.TrimSpace(r.URL.Query().Get("n")); v != "" {
		if x, err := strconv.Atoi(v); err == nil && x > 0 && x <= 500 {
			n = x
		}
	}
	writeJSON(w, 200, map[string]any{"notices": s.svc.Notices().Recent(n)})
}
