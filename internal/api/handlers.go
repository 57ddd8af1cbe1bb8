package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pbaille/wayfind/internal/journey"
	"github.com/pbaille/wayfind/internal/store"
)

// ProposeTopicRequest is the request body for submitting a topic word
type ProposeTopicRequest struct {
	Word string `json:"word" validate:"required,max=100"`
}

func (s *Server) proposeTopic(w http.ResponseWriter, r *http.Request) {
	var req ProposeTopicRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.svc.ProposeTopic(r.Context(), req.Word)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// StartJourneyRequest is the request body for starting a journey
type StartJourneyRequest struct {
	Word         string   `json:"word" validate:"required,max=100"`
	ChosenOption string   `json:"chosen_option" validate:"required"`
	Options      []string `json:"options"`
	Angles       []string `json:"angles"`
	Styles       []string `json:"styles"`
	Difficulty   string   `json:"difficulty"`
	TopicResult  string   `json:"topic_result"`
}

func (s *Server) startJourney(w http.ResponseWriter, r *http.Request) {
	var req StartJourneyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	j, err := s.svc.StartJourney(r.Context(), journey.StartRequest{
		Word:         req.Word,
		ChosenOption: req.ChosenOption,
		Options:      req.Options,
		Angles:       req.Angles,
		Styles:       req.Styles,
		Difficulty:   req.Difficulty,
		TopicResult:  req.TopicResult,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

func (s *Server) listJourneys(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if query := q.Get("q"); query != "" {
		journeys, err := s.svc.Search(query)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"journeys": journeys,
			"query":    query,
		})
		return
	}

	if recent := q.Get("recent"); recent != "" {
		limit, _ := strconv.Atoi(recent)
		journeys, err := s.svc.Recent(limit)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"journeys": journeys})
		return
	}

	journeys, err := s.svc.List()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"journeys": journeys})
}

// journeyID resolves the path id, which may be a unique prefix
func (s *Server) journeyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := s.svc.ResolveJourneyID(chi.URLParam(r, "journeyID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return "", false
	}
	return id, true
}

func (s *Server) getJourney(w http.ResponseWriter, r *http.Request) {
	id, ok := s.journeyID(w, r)
	if !ok {
		return
	}
	d, err := s.svc.Journey(id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) deleteJourney(w http.ResponseWriter, r *http.Request) {
	id, ok := s.journeyID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Delete(id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) openJourney(w http.ResponseWriter, r *http.Request) {
	id, ok := s.journeyID(w, r)
	if !ok {
		return
	}
	view, err := s.svc.Open(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) journeyGraph(w http.ResponseWriter, r *http.Request) {
	id, ok := s.journeyID(w, r)
	if !ok {
		return
	}
	view, err := s.svc.View(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) createExploration(w http.ResponseWriter, r *http.Request) {
	id, ok := s.journeyID(w, r)
	if !ok {
		return
	}
	n, err := s.svc.CreateNextExploration(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// AddNodeRequest is the request body for a manual node
type AddNodeRequest struct {
	Title   string `json:"title" validate:"max=200"`
	Content string `json:"content" validate:"required"`
}

func (s *Server) addManualNode(w http.ResponseWriter, r *http.Request) {
	id, ok := s.journeyID(w, r)
	if !ok {
		return
	}
	var req AddNodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := s.svc.AddManualNode(r.Context(), id, req.Title, req.Content)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	id, ok := s.journeyID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": s.svc.Notifications(id),
	})
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Node(chi.URLParam(r, "nodeID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) getDialog(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Dialog(chi.URLParam(r, "nodeID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// AskRequest is the request body for a node's question
type AskRequest struct {
	Input string `json:"input" validate:"required"`
}

func (s *Server) askQuestion(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.svc.Ask(r.Context(), chi.URLParam(r, "nodeID"), req.Input)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReflectionRequest is the request body for a reflection. Kind "share" is the
// short in-dialog reflection, "deep" the longer one.
type ReflectionRequest struct {
	Text string `json:"text" validate:"required"`
	Kind string `json:"kind" validate:"omitempty,oneof=share deep"`
}

func (s *Server) addReflection(w http.ResponseWriter, r *http.Request) {
	var req ReflectionRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	nodeID := chi.URLParam(r, "nodeID")

	reflect := s.svc.ShareReflection
	if req.Kind == "deep" {
		reflect = s.svc.DeepReflection
	}
	res, err := reflect(nodeID, req.Text)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) listWords(w http.ResponseWriter, r *http.Request) {
	words := s.svc.Words()
	if words == nil {
		writeError(w, http.StatusNotFound, "word table not configured")
		return
	}
	if r.URL.Query().Get("sample") != "" {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		writeJSON(w, http.StatusOK, map[string]interface{}{"words": words.Sample(rnd)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"words": words.Words()})
}

// AddWordRequest is the request body for adding a word. Frequencies are clamped to 1..100.
type AddWordRequest struct {
	Word      string `json:"word" validate:"required,max=50"`
	Frequency int    `json:"frequency"`
	Category  string `json:"category"`
}

func (s *Server) addWord(w http.ResponseWriter, r *http.Request) {
	words := s.svc.Words()
	if words == nil {
		writeError(w, http.StatusNotFound, "word table not configured")
		return
	}
	var req AddWordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	freq := req.Frequency
	if freq == 0 {
		freq = 50
	}
	if err := words.Add(req.Word, freq, req.Category); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"word": req.Word})
}

// UpdateWordRequest is the request body for changing a word's frequency
type UpdateWordRequest struct {
	Frequency int `json:"frequency" validate:"required"`
}

func (s *Server) updateWord(w http.ResponseWriter, r *http.Request) {
	words := s.svc.Words()
	if words == nil {
		writeError(w, http.StatusNotFound, "word table not configured")
		return
	}
	var req UpdateWordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	word := pathWord(r)
	found, err := words.SetFrequency(word, req.Frequency)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "word not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"word": word})
}

func (s *Server) removeWord(w http.ResponseWriter, r *http.Request) {
	words := s.svc.Words()
	if words == nil {
		writeError(w, http.StatusNotFound, "word table not configured")
		return
	}
	found, err := words.Remove(pathWord(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "word not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathWord(r *http.Request) string {
	word := chi.URLParam(r, "word")
	if unescaped, err := url.PathUnescape(word); err == nil {
		return unescaped
	}
	return word
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) exportData(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Export()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) importData(w http.ResponseWriter, r *http.Request) {
	var snap store.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.svc.Import(&snap); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"journeys": len(snap.Journeys),
		"nodes":    len(snap.Nodes),
	})
}
