package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total            int            `json:"total"`
	ByStatus         map[string]int `json:"by_status"`
	ByConnection     map[string]int `json:"by_connection"`
	AvgRunDurationMS float64        `json:"avg_run_duration_ms"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.tracker.Stats()

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:            stats.Total,
		ByStatus:         stats.CountByStatus,
		ByConnection:     stats.CountByConn,
		AvgRunDurationMS: stats.AvgRunDurationMS,
	})
}
