// Package server exposes the analysis service over HTTP (gin).
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/betbot/signaldesk/internal/analysis"
	"github.com/betbot/signaldesk/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "server")

// maxUploadBytes caps request bodies for signal imports and CSV uploads.
const maxUploadBytes = 10 << 20

type Server struct {
	svc      *analysis.Service
	autoSync *analysis.AutoSync
}

// New builds the HTTP server. autoSync may be nil, in which case
// POST /api/signals/sync always runs synchronously.
func New(svc *analysis.Service, autoSync *analysis.AutoSync) (*Server, error) {
	if svc == nil {
		return nil, errors.New("analysis service is required")
	}
	return &Server{svc: svc, autoSync: autoSync}, nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")

	signals := api.Group("/signals")
	signals.GET("", s.wrap(s.handleSignalsList))
	signals.POST("/import", s.wrap(s.handleSignalsImport))
	signals.POST("/sync", s.wrap(s.handleSignalsSync))

	api.POST("/webhooks/:source", s.wrap(s.handleWebhook))

	bars := api.Group("/bars/:symbol")
	bars.GET("", s.wrap(s.handleBarsList))
	bars.POST("/csv", s.wrap(s.handleBarsUpload))

	an := api.Group("/analysis")
	an.POST("/run", s.wrap(s.handleAnalysisRun))
	an.GET("/results", s.wrap(s.handleResultsList))
	an.GET("/results/:signalID/insight", s.wrap(s.handleInsight))
	an.GET("/export.csv", s.wrap(s.handleExportCSV))

	api.GET("/status", s.wrap(s.handleStatus))
	api.GET("/notices", s.wrap(s.handleNotices))

	return r
}

type paramsKeyType string

const paramsKey paramsKeyType = "signaldesk_path_params"

// wrap adapts net/http handlers to gin, injecting path params into request context.
func (s *Server) wrap(h func(http.ResponseWriter, *http.Request)) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := map[string]string{}
		for _, p := range c.Params {
			m[p.Key] = p.Value
		}
		ctx := context.WithValue(c.Request.Context(), paramsKey, m)
		c.Request = c.Request.WithContext(ctx)
		h(c.Writer, c.Request)
	}
}

func pathParam(r *http.Request, key string) string {
	m, _ := r.Context().Value(paramsKey).(map[string]string)
	return m[key]
}
