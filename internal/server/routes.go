package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/copperline/copperline/internal/engine"
	"github.com/copperline/copperline/internal/store"
	"github.com/go-chi/chi/v5"
)

// resolveContact accepts either a numeric contact id or an external
// UUID in the URL and returns the contact, or nil if absent.
func (s *Server) resolveContact(r *http.Request) (*store.Contact, error) {
	raw := chi.URLParam(r, "contactID")
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return s.db.GetContact(id)
	}
	return s.db.GetContactByUUID(raw)
}

// writeError maps engine errors onto HTTP statuses: validation 400,
// not-found 404, conflict (after internal retries) 409, the rest 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case engine.IsValidation(err):
		status = http.StatusBadRequest
	case engine.IsNotFound(err):
		status = http.StatusNotFound
	case engine.IsConflict(err):
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleEventTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"event_types": engine.EventTypes()})
}

func (s *Server) handleProcessEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactID   int64             `json:"contact_id"`
		ContactUUID string            `json:"contact_uuid"`
		EventType   string            `json:"event_type"`
		Description string            `json:"description"`
		RelatedType string            `json:"related_type"`
		RelatedID   string            `json:"related_id"`
		Context     map[string]string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	contactID := req.ContactID
	if contactID == 0 && req.ContactUUID != "" {
		c, err := s.db.GetContactByUUID(req.ContactUUID)
		if err != nil {
			writeError(w, err)
			return
		}
		if c == nil {
			http.Error(w, `{"error":"contact not found"}`, http.StatusNotFound)
			return
		}
		contactID = c.ID
	}

	evCtx := req.Context
	if evCtx == nil {
		evCtx = map[string]string{}
	}
	if req.Description != "" {
		evCtx["description"] = req.Description
	}
	if req.RelatedType != "" {
		evCtx["related_type"] = req.RelatedType
	}
	if req.RelatedID != "" {
		evCtx["related_id"] = req.RelatedID
	}

	outcome, err := s.engine.ProcessEvent(r.Context(), contactID, req.EventType, evCtx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleAdjustScore(w http.ResponseWriter, r *http.Request) {
	contact, err := s.resolveContact(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if contact == nil {
		http.Error(w, `{"error":"contact not found"}`, http.StatusNotFound)
		return
	}

	var req struct {
		Points int    `json:"points"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	outcome, err := s.engine.AdjustScore(r.Context(), contact.ID, req.Points, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	contact, err := s.resolveContact(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if contact == nil {
		http.Error(w, `{"error":"contact not found"}`, http.StatusNotFound)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.engine.History(r.Context(), contact.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	type entryJSON struct {
		ID          int64  `json:"id"`
		Delta       int    `json:"delta"`
		Reason      string `json:"reason"`
		RuleID      *int64 `json:"rule_id,omitempty"`
		DecayOf     *int64 `json:"decay_of,omitempty"`
		CreatedAt   int64  `json:"created_at"`
		DecayAt     *int64 `json:"decay_at,omitempty"`
		DecayPoints *int   `json:"decay_points,omitempty"`
		Decayed     bool   `json:"decayed"`
	}
	out := make([]entryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON{
			ID: e.ID, Delta: e.Delta, Reason: e.Reason,
			RuleID: e.RuleID, DecayOf: e.DecayOf, CreatedAt: e.CreatedAt,
			DecayAt: e.DecayAt, DecayPoints: e.DecayPoints, Decayed: e.Decayed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, `{"error":"name required"}`, http.StatusBadRequest)
		return
	}

	contact, err := s.db.CreateContact(req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contactJSON(contact))
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	contact, err := s.resolveContact(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if contact == nil {
		http.Error(w, `{"error":"contact not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, contactJSON(contact))
}

func contactJSON(c *store.Contact) map[string]any {
	return map[string]any{
		"id":     c.ID,
		"uuid":   c.UUID,
		"name":   c.Name,
		"email":  c.Email,
		"score":  c.Score,
		"status": c.Status,
	}
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.engine.ListModels()
	if err != nil {
		writeError(w, err)
		return
	}

	type modelJSON struct {
		ID                 int64  `json:"id"`
		Name               string `json:"name"`
		IsActive           bool   `json:"is_active"`
		IsDefault          bool   `json:"is_default"`
		QualifiedThreshold int    `json:"qualified_threshold"`
		CustomerThreshold  int    `json:"customer_threshold"`
	}
	out := make([]modelJSON, 0, len(models))
	for _, m := range models {
		out = append(out, modelJSON{
			ID: m.ID, Name: m.Name, IsActive: m.IsActive, IsDefault: m.IsDefault,
			QualifiedThreshold: m.QualifiedThreshold, CustomerThreshold: m.CustomerThreshold,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	var spec engine.ModelSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	m, err := s.engine.CreateModel(spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         m.ID,
		"name":       m.Name,
		"is_default": m.IsDefault,
	})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	modelID, err := strconv.ParseInt(chi.URLParam(r, "modelID"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid model id"}`, http.StatusBadRequest)
		return
	}

	var spec engine.RuleSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	rule, err := s.engine.CreateRule(modelID, spec)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         rule.ID,
		"model_id":   rule.ModelID,
		"event_type": rule.EventType,
		"points":     rule.Points,
	})
}
