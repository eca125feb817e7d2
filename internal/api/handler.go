package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/0xPuncker/jobwire/internal/cron"
	"github.com/0xPuncker/jobwire/internal/listener"
	"github.com/0xPuncker/jobwire/pkg/types"
	"github.com/0xPuncker/jobwire/pkg/utils"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Handler struct {
	logger    *logrus.Logger
	Scheduler *cron.Scheduler
	history   *listener.HistoryListener
}

type JobResponse struct {
	cron.JobInfo
	ModeLabel        string               `json:"mode_label"`
	NextRunIn        string               `json:"next_run_in,omitempty"`
	RecentExecutions []listener.Execution `json:"recent_executions"`
}

type JobsResponse struct {
	Jobs          []JobResponse `json:"jobs"`
	Listeners     []string      `json:"listeners"`
	Running       bool          `json:"running"`
	MaxConcurrent int           `json:"max_concurrent"`
}

// NewHandler serves the scheduler's jobs. history may be nil, in which case
// job responses carry no recent executions.
func NewHandler(scheduler *cron.Scheduler, history *listener.HistoryListener, logger *logrus.Logger) *Handler {
	return &Handler{
		logger:    logger,
		Scheduler: scheduler,
		history:   history,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.Scheduler.ListJobs()

	response := JobsResponse{
		Jobs:          make([]JobResponse, 0, len(jobs)),
		Listeners:     h.Scheduler.ListenerNames(),
		Running:       h.Scheduler.IsRunning(),
		MaxConcurrent: h.Scheduler.MaxConcurrent(),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, h.jobResponse(job))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(response)
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	key := jobKey(r)

	job, err := h.Scheduler.GetJob(key)
	if err != nil {
		h.handleError(w, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.jobResponse(job))
}

func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	key := jobKey(r)

	if err := h.Scheduler.TriggerJob(key); err != nil {
		switch {
		case errors.Is(err, cron.ErrJobNotFound):
			h.handleError(w, err, http.StatusNotFound)
		case errors.Is(err, cron.ErrSchedulerShutdown):
			h.handleError(w, err, http.StatusServiceUnavailable)
		default:
			h.handleError(w, err, http.StatusInternalServerError)
		}
		return
	}

	h.logger.WithFields(logrus.Fields{
		"job_name":  key.Name,
		"job_group": key.Group,
	}).Info("Job triggered manually")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "job triggered",
		"job":    key.String(),
	})
}

func (h *Handler) StartScheduler(w http.ResponseWriter, r *http.Request) {
	if err := h.Scheduler.Start(); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, cron.ErrSchedulerStarted) {
			code = http.StatusConflict
		}
		h.handleError(w, err, code)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "scheduler started successfully",
	})
}

func (h *Handler) StopScheduler(w http.ResponseWriter, r *http.Request) {
	h.Scheduler.Stop()
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "scheduler stopped successfully",
	})
}

func (h *Handler) jobResponse(job cron.JobInfo) JobResponse {
	response := JobResponse{
		JobInfo:          job,
		ModeLabel:        cases.Title(language.English).String(job.Mode),
		RecentExecutions: []listener.Execution{},
	}
	if !job.NextRun.IsZero() {
		response.NextRunIn = utils.FormatDuration(time.Until(job.NextRun))
	}
	if h.history != nil {
		if recent := h.history.Recent(types.NewJobKey(job.Name, job.Group)); recent != nil {
			response.RecentExecutions = recent
		}
	}
	return response
}

func jobKey(r *http.Request) types.JobKey {
	vars := mux.Vars(r)
	return types.NewJobKey(vars["name"], vars["group"])
}

func (h *Handler) handleError(w http.ResponseWriter, err error, code int) {
	h.logger.Error(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router := mux.NewRouter()
	SetupRoutes(router, h)
	router.ServeHTTP(w, r)
}
