// Package remotetest provides an in-process fake of the remote learning
// store for tests.
package remotetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/abhisek/skilltune/internal/bkt"
	"github.com/abhisek/skilltune/internal/performance"
	"github.com/abhisek/skilltune/internal/remote"
)

// Server is a fake remote store. The zero value is not usable; call
// NewServer.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	states       map[string]bkt.KnowledgeState
	records      map[string]performance.Record
	observations []remote.ObservationPayload
	interactions []remote.InteractionPayload
	failing      map[string]int // route name -> status code
	suggest      *float64
	hits         map[string]int
}

// Route names accepted by Fail and Hits.
const (
	RouteGetPerformance  = "getPerformance"
	RoutePutDifficulty   = "putDifficulty"
	RoutePostInteraction = "postInteraction"
	RouteGetKnowledge    = "getKnowledge"
	RouteSaveKnowledge   = "saveKnowledge"
	RoutePostObservation = "postObservation"
)

// NewServer starts a fake remote store. Its API root is URL() + "/api".
func NewServer() *Server {
	s := &Server{
		states:  make(map[string]bkt.KnowledgeState),
		records: make(map[string]performance.Record),
		failing: make(map[string]int),
		hits:    make(map[string]int),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/performance/{studentId}/{gameId}", s.wrap(RouteGetPerformance, s.getPerformance)).Methods(http.MethodGet)
	api.HandleFunc("/performance/{studentId}/{gameId}/difficulty", s.wrap(RoutePutDifficulty, s.putDifficulty)).Methods(http.MethodPut)
	api.HandleFunc("/game-interaction", s.wrap(RoutePostInteraction, s.postInteraction)).Methods(http.MethodPost)
	api.HandleFunc("/knowledge-state/observation", s.wrap(RoutePostObservation, s.postObservation)).Methods(http.MethodPost)
	api.HandleFunc("/knowledge-state/{studentId}/{skillId}", s.wrap(RouteGetKnowledge, s.getKnowledge)).Methods(http.MethodGet)
	api.HandleFunc("/knowledge-state", s.wrap(RouteSaveKnowledge, s.saveKnowledge)).Methods(http.MethodPost)

	s.Server = httptest.NewServer(r)
	return s
}

// APIURL returns the base URL to hand to remote.NewClient.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// Fail makes route answer with status until Recover is called.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[route] = status
}

// FailAll makes every route answer with status.
func (s *Server) FailAll(status int) {
	for _, r := range []string{
		RouteGetPerformance, RoutePutDifficulty, RoutePostInteraction,
		RouteGetKnowledge, RouteSaveKnowledge, RoutePostObservation,
	} {
		s.Fail(r, status)
	}
}

// Recover clears every failure.
func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.failing)
}

// SuggestDifficulty makes POST /game-interaction return value as
// newDifficulty. Nil stops suggesting.
func (s *Server) SuggestDifficulty(value *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggest = value
}

// PutState seeds a knowledge state.
func (s *Server) PutState(st bkt.KnowledgeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.StudentID+"-"+st.SkillID] = st.Clone()
}

// State returns the stored knowledge state.
func (s *Server) State(studentID, skillID string) (bkt.KnowledgeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[studentID+"-"+skillID]
	return st.Clone(), ok
}

// PutRecord seeds a performance record.
func (s *Server) PutRecord(studentID, gameID string, rec performance.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[studentID+"-"+gameID] = rec.Clone()
}

// Record returns the stored performance record.
func (s *Server) Record(studentID, gameID string) (performance.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[studentID+"-"+gameID]
	return rec.Clone(), ok
}

// Observations returns every observation received.
func (s *Server) Observations() []remote.ObservationPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]remote.ObservationPayload(nil), s.observations...)
}

// Interactions returns every interaction received.
func (s *Server) Interactions() []remote.InteractionPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]remote.InteractionPayload(nil), s.interactions...)
}

// Hits returns how many requests route received, failures included.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// TotalHits returns the number of requests received on any route.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

func (s *Server) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[route]++
		status, failing := s.failing[route]
		s.mu.Unlock()
		if failing {
			http.Error(w, http.StatusText(status), status)
			return
		}
		h(w, r)
	}
}

func (s *Server) getPerformance(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	rec, ok := s.Record(v["studentId"], v["gameId"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) putDifficulty(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	var body struct {
		Difficulty float64 `json:"difficulty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	key := v["studentId"] + "-" + v["gameId"]
	rec, ok := s.records[key]
	if !ok {
		rec = performance.NewRecord()
	}
	rec.CurrentDifficulty = body.Difficulty
	s.records[key] = rec
	s.mu.Unlock()
	writeJSON(w, map[string]any{"success": true, "newDifficulty": body.Difficulty})
}

func (s *Server) postInteraction(w http.ResponseWriter, r *http.Request) {
	var in remote.InteractionPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.interactions = append(s.interactions, in)
	key := in.StudentID + "-" + in.GameID
	rec, ok := s.records[key]
	if !ok {
		rec = performance.NewRecord()
	}
	rec.Interactions = append(rec.Interactions, performance.Interaction{
		Timestamp:         time.Now().UTC(),
		Score:             in.Score / 100,
		TimeSpent:         in.TimeSpent,
		QuestionsAnswered: in.QuestionsAnswered,
		Difficulty:        in.Difficulty,
	})
	s.records[key] = rec
	suggest := s.suggest
	s.mu.Unlock()

	if suggest == nil {
		writeJSON(w, map[string]any{})
		return
	}
	writeJSON(w, map[string]any{"newDifficulty": *suggest})
}

func (s *Server) getKnowledge(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	st, ok := s.State(v["studentId"], v["skillId"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, st)
}

func (s *Server) saveKnowledge(w http.ResponseWriter, r *http.Request) {
	var st bkt.KnowledgeState
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.PutState(st)
	writeJSON(w, st)
}

func (s *Server) postObservation(w http.ResponseWriter, r *http.Request) {
	var obs remote.ObservationPayload
	if err := json.NewDecoder(r.Body).Decode(&obs); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.observations = append(s.observations, obs)
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
