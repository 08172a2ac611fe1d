package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Register регистрирует API эндпоинты на роутере
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/sessions", h.CreateSessionHandler).Methods("POST")
	router.HandleFunc("/sessions", h.ListSessionsHandler).Methods("GET")
	router.HandleFunc("/sessions/{id}", h.GetSessionHandler).Methods("GET")
	router.HandleFunc("/sessions/{id}", h.DeleteSessionHandler).Methods("DELETE")
	router.HandleFunc("/sessions/{id}/frames", h.FrameHandler).Methods("POST")
	router.HandleFunc("/sessions/{id}/frames/batch", h.BatchFramesHandler).Methods("POST")
	router.HandleFunc("/sessions/{id}/frames/async", h.AsyncFrameHandler).Methods("POST")
	router.HandleFunc("/sessions/{id}/reset", h.ResetSessionHandler).Methods("POST")
	router.HandleFunc("/sessions/{id}/results/latest", h.LatestResultsHandler).Methods("GET")
	router.HandleFunc("/sessions/{id}/stream", h.StreamHandler).Methods("GET")
	router.HandleFunc("/stream", h.StreamHandler).Methods("GET")
	router.HandleFunc("/health", h.HealthHandler).Methods("GET")
	router.HandleFunc("/stats", h.StatsHandler).Methods("GET")
}

// LoggingMiddleware логирует HTTP запросы
func LoggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).String(),
			}).Debug("request")
		})
	}
}
