package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tildaslashalef/farmboard/internal/loggy"
	"github.com/tildaslashalef/farmboard/internal/progress"
)

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type upsertRequest struct {
	UserID    string                    `json:"userId"`
	MissionID string                    `json:"missionId"`
	Progress  *progress.MissionProgress `json:"progress"`
}

// EnvCheckResponse is the readiness summary of /api/env-check
type EnvCheckResponse struct {
	Environment string    `json:"environment"`
	Timestamp   time.Time `json:"timestamp"`
	Database    bool      `json:"database"`
	Ready       bool      `json:"ready"`
	Message     string    `json:"message"`
}

// handleGetProgress serves GET /api/progress?userId=
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return
	}

	p, err := s.repo.GetProgress(r.Context(), userID)
	if err != nil {
		loggy.FromContext(r.Context()).Error("Failed to fetch progress", "user_id", userID, "error", err)
		writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "Failed to fetch progress", Message: err.Error()})
		return
	}
	if p == nil {
		writeError(w, r, http.StatusNotFound, errorResponse{Error: "User not found"})
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// handleUpsertProgress serves POST /api/progress
func (s *Server) handleUpsertProgress(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Message: err.Error()})
		return
	}
	if req.UserID == "" || req.MissionID == "" || req.Progress == nil {
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: "userId, missionId, and progress are required"})
		return
	}
	if !req.Progress.Status.Valid() {
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: "invalid progress status", Message: string(req.Progress.Status)})
		return
	}

	if err := s.repo.UpdateMission(r.Context(), req.UserID, req.MissionID, *req.Progress); err != nil {
		loggy.FromContext(r.Context()).Error("Failed to update progress", "user_id", req.UserID, "mission_id", req.MissionID, "error", err)
		writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "Failed to update progress", Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleDeleteProgress serves DELETE /api/progress?userId=&missionId=
func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	missionID := r.URL.Query().Get("missionId")
	if userID == "" || missionID == "" {
		writeError(w, r, http.StatusBadRequest, errorResponse{Error: "userId and missionId are required"})
		return
	}

	if err := s.repo.DeleteMission(r.Context(), userID, missionID); err != nil {
		loggy.FromContext(r.Context()).Error("Failed to delete progress", "user_id", userID, "mission_id", missionID, "error", err)
		writeError(w, r, http.StatusInternalServerError, errorResponse{Error: "Failed to delete progress", Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// handleEnvCheck serves GET /api/env-check
func (s *Server) handleEnvCheck(w http.ResponseWriter, r *http.Request) {
	resp := EnvCheckResponse{
		Environment: s.environment,
		Timestamp:   s.now().UTC(),
	}
	if err := s.repo.Ping(r.Context()); err != nil {
		resp.Message = "database unreachable: " + err.Error()
	} else {
		resp.Database = true
		resp.Ready = true
		resp.Message = "progress store is ready"
	}
	writeJSON(w, http.StatusOK, resp)
}

func handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// writeError tags resp with the request id so failures can be matched to
// server logs
func writeError(w http.ResponseWriter, r *http.Request, status int, resp errorResponse) {
	resp.RequestID = loggy.GetRequestID(r.Context())
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
