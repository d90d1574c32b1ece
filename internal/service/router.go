package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"wisefido-guardian/internal/repository"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Acknowledger 报警确认（Guardian 实现）
type Acknowledger interface {
	Acknowledge(ctx context.Context, alertID, actorID string) (bool, error)
}

type acknowledgeRequest struct {
	ActorID string `json:"actor_id"`
}

type acknowledgeResponse struct {
	AlertID string `json:"alert_id"`
	Applied bool   `json:"applied"`
}

// NewRouter 运维接口：健康检查、指标、报警确认
func NewRouter(ack Acknowledger, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/alerts/{alertId}/acknowledge", acknowledgeHandler(ack, logger)).Methods("POST")

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func acknowledgeHandler(ack Acknowledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alertID := mux.Vars(r)["alertId"]

		var req acknowledgeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ActorID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "actor_id is required"})
			return
		}

		applied, err := ack.Acknowledge(r.Context(), alertID, req.ActorID)
		switch {
		case errors.Is(err, repository.ErrAlertNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "alert not found"})
			return
		case errors.Is(err, ErrNotPermitted):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
			return
		case err != nil:
			logger.Error("Failed to acknowledge alert",
				zap.String("alert_id", alertID),
				zap.Error(err),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		writeJSON(w, http.StatusOK, acknowledgeResponse{AlertID: alertID, Applied: applied})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
