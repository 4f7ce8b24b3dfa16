package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"aiemployee/rulekit/pkg/audit"
	"aiemployee/rulekit/pkg/engine"
	"aiemployee/rulekit/pkg/record"
	"aiemployee/rulekit/pkg/rules"
	"aiemployee/rulekit/pkg/store"
	"aiemployee/rulekit/pkg/telemetry/logging"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

type evaluateRequest struct {
	Record   record.Value      `json:"record"`
	Caller   *rules.Caller     `json:"caller,omitempty"`
	Category string            `json:"category,omitempty"`
	Skill    string            `json:"skill,omitempty"`
	Subject  string            `json:"subject,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type evaluateResponse struct {
	Allowed  bool                      `json:"allowed"`
	Matched  int                       `json:"matched"`
	Results  []engine.EvaluationResult `json:"results"`
	AuditID  string                    `json:"audit_id,omitempty"`
	Duration time.Duration             `json:"duration_ns"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Record.IsNull() {
		respondError(w, http.StatusBadRequest, "record is required", nil)
		return
	}

	opts := []engine.EvalOption{engine.WithCategory(req.Category)}
	var caller rules.Caller
	if req.Caller != nil {
		caller = *req.Caller
		opts = append(opts, engine.WithCaller(caller))
	}

	start := time.Now()
	allowed, results := s.deps.Manager.IsAllowed(r.Context(), req.Record, opts...)
	elapsed := time.Since(start)

	resp := evaluateResponse{
		Allowed:  allowed,
		Matched:  len(engine.Matched(results)),
		Results:  results,
		Duration: elapsed,
	}
	if resp.Results == nil {
		resp.Results = []engine.EvaluationResult{}
	}

	if s.deps.Recorder != nil {
		rec, err := s.deps.Recorder.Record(r.Context(), audit.Entry{
			Skill:    req.Skill,
			Subject:  req.Subject,
			Caller:   caller,
			Results:  results,
			Duration: elapsed,
			Metadata: req.Metadata,
		})
		if err != nil {
			logging.FromContext(r.Context(), s.logger).Warn("failed to record evaluation", "error", err)
		} else if rec != nil {
			resp.AuditID = rec.ID
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{
		Category: q.Get("category"),
		Priority: rules.Priority(q.Get("priority")),
	}
	if v := q.Get("enabled_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid enabled_only", err)
			return
		}
		filter.EnabledOnly = b
	}

	list, err := s.deps.Manager.ListRules(r.Context(), filter)
	if err != nil {
		s.respondInternal(w, r, "failed to list rules", err)
		return
	}
	if list == nil {
		list = []*rules.Rule{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"rules": list,
		"count": len(list),
	})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if err := decodeBody(w, r, &rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	added, err := s.deps.Manager.AddRule(r.Context(), &rule)
	if err != nil {
		s.respondRuleError(w, r, "failed to add rule", err)
		return
	}
	if !added {
		respondError(w, http.StatusConflict, fmt.Sprintf("rule %s already exists", rule.ID), nil)
		return
	}

	stored, _, err := s.deps.Manager.GetRule(r.Context(), rule.ID)
	if err != nil || stored == nil {
		stored = &rule
	}
	respondJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ruleID")

	rule, found, err := s.deps.Manager.GetRule(r.Context(), id)
	if err != nil {
		s.respondInternal(w, r, "failed to get rule", err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "rule not found", nil)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ruleID")

	var rule rules.Rule
	if err := decodeBody(w, r, &rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if rule.ID != "" && rule.ID != id {
		respondError(w, http.StatusBadRequest, "rule id in body does not match path", nil)
		return
	}
	rule.ID = id

	updated, err := s.deps.Manager.UpdateRule(r.Context(), &rule)
	if err != nil {
		s.respondRuleError(w, r, "failed to update rule", err)
		return
	}
	if !updated {
		respondError(w, http.StatusNotFound, "rule not found", nil)
		return
	}

	stored, _, err := s.deps.Manager.GetRule(r.Context(), id)
	if err != nil || stored == nil {
		stored = &rule
	}
	respondJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ruleID")

	deleted, err := s.deps.Manager.DeleteRule(r.Context(), id)
	if err != nil {
		s.respondInternal(w, r, "failed to delete rule", err)
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "rule not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	query, err := parseAuditQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid query", err)
		return
	}

	records, err := s.deps.AuditStorage.Query(r.Context(), query)
	if err != nil {
		s.respondInternal(w, r, "failed to query audit records", err)
		return
	}
	total, err := s.deps.AuditStorage.Count(r.Context(), query)
	if err != nil {
		s.respondInternal(w, r, "failed to count audit records", err)
		return
	}
	if records == nil {
		records = []*audit.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
	})
}

// parseAuditQuery reads start, end (RFC 3339), skill, subject, rule_id,
// allowed, limit and offset.
func parseAuditQuery(r *http.Request) (*audit.Query, error) {
	q := r.URL.Query()
	query := &audit.Query{
		Skill:   q.Get("skill"),
		Subject: q.Get("subject"),
		RuleID:  q.Get("rule_id"),
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start", &query.StartTime}, {"end", &query.EndTime}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		*p.dst = &t
	}

	if v := q.Get("allowed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("allowed: %w", err)
		}
		query.Allowed = &b
	}

	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &query.Limit}, {"offset", &query.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", p.name)
		}
		*p.dst = n
	}

	return query, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(dst)
}

func (s *Server) respondRuleError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var verr *rules.ValidationError
	if errors.As(err, &verr) {
		respondError(w, http.StatusUnprocessableEntity, message, err)
		return
	}
	s.respondInternal(w, r, message, err)
}

func (s *Server) respondInternal(w http.ResponseWriter, r *http.Request, message string, err error) {
	logging.FromContext(r.Context(), s.logger).Error(message, "error", err)
	respondError(w, http.StatusInternalServerError, message, err)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{"error": message}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
