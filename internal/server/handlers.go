package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/coinsync/coinsync/internal/core"
)

// AppVersion is injected from main via SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
)

// SetVersionInfo sets the version information reported by /version.
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

type versionResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

type jobStatus struct {
	Job                string                `json:"job"`
	Status             core.CheckpointStatus `json:"status"`
	TotalEntities      int                   `json:"total_entity_count"`
	ProcessedCount     int                   `json:"processed_count"`
	LastProcessedIndex int                   `json:"last_processed_index"`
	FailedCount        int                   `json:"failed_count"`
	StartedAt          time.Time             `json:"started_at"`
	LastCheckpointAt   time.Time             `json:"last_checkpoint_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   AppVersion,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, versionResponse{
		Name:      "coinsync",
		Version:   AppVersion,
		Commit:    AppCommit,
		BuildDate: AppBuildDate,
		GoVersion: runtime.Version(),
	})
}

func (s *Server) handleStatusList(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store is not configured")
		return
	}

	checkpoints, err := s.store.ListCheckpoints(r.Context())
	if err != nil {
		if s.logger != nil {
			s.logger.Error("list checkpoints failed", zap.Error(err))
		}
		s.writeError(w, http.StatusInternalServerError, "failed to list checkpoints")
		return
	}

	statuses := make([]jobStatus, 0, len(checkpoints))
	for job, cp := range checkpoints {
		statuses = append(statuses, toJobStatus(job, cp))
	}
	s.writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleStatusJob(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store is not configured")
		return
	}

	job := chi.URLParam(r, "job")
	checkpoints, err := s.store.ListCheckpoints(r.Context())
	if err != nil {
		if s.logger != nil {
			s.logger.Error("list checkpoints failed", zap.Error(err))
		}
		s.writeError(w, http.StatusInternalServerError, "failed to list checkpoints")
		return
	}

	cp, ok := checkpoints[job]
	if !ok {
		s.writeError(w, http.StatusNotFound, "no checkpoint for job")
		return
	}
	s.writeJSON(w, http.StatusOK, toJobStatus(job, cp))
}

func (s *Server) handleStatusRequests(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "store is not configured")
		return
	}

	job := chi.URLParam(r, "job")
	stats, err := s.store.RequestStats(r.Context(), job)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("request stats failed", zap.String("job", job), zap.Error(err))
		}
		s.writeError(w, http.StatusInternalServerError, "failed to read request stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func toJobStatus(job string, cp *core.Checkpoint) jobStatus {
	return jobStatus{
		Job:                job,
		Status:             cp.Status,
		TotalEntities:      cp.TotalEntities,
		ProcessedCount:     cp.ProcessedCount,
		LastProcessedIndex: cp.LastProcessedIndex,
		FailedCount:        len(cp.FailedIDs),
		StartedAt:          cp.StartedAt,
		LastCheckpointAt:   cp.LastCheckpointAt,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && s.logger != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
