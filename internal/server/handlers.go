package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/strategylab/optlabel/internal/strategy"
)

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes before touching the response so a marshal failure
// can still produce a 500 instead of a truncated 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"response encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	_, _ = w.Write([]byte("\n"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ticker": s.hist.Ticker,
		"days":   len(s.records),
	})
}

func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
	infos := make([]strategy.Info, 0, len(strategy.Families))
	for _, f := range strategy.Families {
		if info, ok := strategy.InfoFor(f); ok {
			infos = append(infos, info)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"families": infos,
		"count":    len(infos),
	})
}

func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date query parameter is required"})
		return
	}
	rec, ok := s.records[date]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no features for " + date})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":     date,
		"features": rec.Map(),
	})
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date query parameter is required"})
		return
	}
	rec, ok := s.records[date]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no features for " + date})
		return
	}
	snap, err := s.hist.Snapshot(date)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}

	recommendation, err := s.recommender.Recommend(r.Context(), rec, snap)
	if err != nil {
		// Never guess a trade. A failed chain means no recommendation today.
		s.logger.Error("recommendation failed", zap.String("date", date), zap.Error(err))
		if s.rec != nil {
			s.rec.Error("recommendation")
		}
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no recommendation for " + date + ": " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recommendation)
}
