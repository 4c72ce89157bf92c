package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/abhisek/skilltune/internal/adaptive"
	"github.com/abhisek/skilltune/internal/performance"
)

type errorResponse struct {
	Error string `json:"error"`
}

type observationRequest struct {
	Correct *bool `json:"correct"`
}

type difficultyRequest struct {
	Difficulty *float64 `json:"difficulty"`
}

type difficultyResponse struct {
	StudentID       string             `json:"studentId"`
	GameID          string             `json:"gameId"`
	Difficulty      float64            `json:"difficulty"`
	SkillDifficulty float64            `json:"skillDifficulty"`
	Record          performance.Record `json:"record"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"mode":    s.svc.Mode(),
		"version": s.version,
	})
}

func (s *Server) getKnowledge(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, s.svc.GetKnowledgeState(r.Context(), vars["studentId"], vars["skillId"]))
}

func (s *Server) postObservation(w http.ResponseWriter, r *http.Request) {
	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Correct == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"correct\": true|false}")
		return
	}
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, s.svc.UpdateKnowledge(r.Context(), vars["studentId"], vars["skillId"], *req.Correct))
}

func (s *Server) resetKnowledge(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ResetAllKnowledgeStates(r.Context()); err != nil {
		s.log.WithError(err).Error("reset knowledge states")
		writeError(w, http.StatusInternalServerError, "failed to reset knowledge states")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getDifficulty(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	studentID, gameID := vars["studentId"], vars["gameId"]
	writeJSON(w, http.StatusOK, difficultyResponse{
		StudentID:       studentID,
		GameID:          gameID,
		Difficulty:      s.svc.GetAdaptiveDifficulty(r.Context(), studentID, gameID),
		SkillDifficulty: s.svc.SkillDifficulty(r.Context(), studentID, gameID),
		Record:          s.svc.PerformanceRecord(r.Context(), studentID, gameID),
	})
}

func (s *Server) putDifficulty(w http.ResponseWriter, r *http.Request) {
	var req difficultyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Difficulty == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"difficulty\": number}")
		return
	}
	vars := mux.Vars(r)
	applied := s.svc.UpdateDifficultySettings(r.Context(), vars["studentId"], vars["gameId"], *req.Difficulty)
	writeJSON(w, http.StatusOK, map[string]float64{"difficulty": applied})
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, s.svc.StartSession(r.Context(), vars["studentId"], vars["gameId"]))
}

func (s *Server) postInteraction(w http.ResponseWriter, r *http.Request) {
	var in adaptive.InteractionData
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := s.svc.RecordInteraction(r.Context(), in)
	if errors.Is(err, adaptive.ErrInvalidInteraction) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.WithError(err).Error("record interaction")
		writeError(w, http.StatusInternalServerError, "failed to record interaction")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.SyncOfflineStates(r.Context())
	if errors.Is(err, adaptive.ErrNoRemote) {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		s.log.WithError(err).Warn("sync offline states")
		writeJSON(w, http.StatusBadGateway, struct {
			errorResponse
			Result any `json:"result"`
		}{errorResponse{err.Error()}, res})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) newGuest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"studentId": performance.NewGuestID()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
