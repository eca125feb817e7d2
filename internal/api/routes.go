package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func SetupRoutes(router *mux.Router, handler *Handler) {
	router.HandleFunc("/api/v1/health", handler.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/jobs", handler.ListJobs).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/jobs/{group}/{name}", handler.GetJob).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/jobs/{group}/{name}/trigger", handler.TriggerJob).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/scheduler/start", handler.StartScheduler).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/scheduler/stop", handler.StopScheduler).Methods(http.MethodPost)
}
