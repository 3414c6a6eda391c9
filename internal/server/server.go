// Package server exposes the online recommendation API: per-day feature
// vectors, strategy family metadata, and sized trade recommendations.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/engine"
	"github.com/strategylab/optlabel/internal/features"
	"github.com/strategylab/optlabel/internal/market"
	"github.com/strategylab/optlabel/internal/metrics"
)

type Server struct {
	hist        *market.History
	records     map[string]*features.Record
	recommender *engine.Recommender
	rec         *metrics.Recorder
	logger      *zap.Logger
}

func NewServer(hist *market.History, records []features.Record, recommender *engine.Recommender, rec *metrics.Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	byDate := make(map[string]*features.Record, len(records))
	for i := range records {
		byDate[records[i].Date] = &records[i]
	}
	return &Server{
		hist:        hist,
		records:     byDate,
		recommender: recommender,
		rec:         rec,
		logger:      logger,
	}
}

func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(s.observeMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/api", func(api chi.Router) {
		api.Get("/families", s.handleFamilies)
		api.Get("/features", s.handleFeatures)
		api.Get("/recommendation", s.handleRecommendation)
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
		if s.rec != nil {
			s.rec.Request(r.URL.Path, strconv.Itoa(ww.Status()))
		}
	})
}
