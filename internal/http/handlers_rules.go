package http

import (
	"net/http"

	"pocketbook/internal/core"
	"pocketbook/internal/log"
	"pocketbook/internal/rules"
)

type ruleRequest struct {
	MatchPattern string `json:"match_pattern"`
	CategoryID   string `json:"category_id"`
	Subcategory  string `json:"subcategory"`
}

func (req ruleRequest) rule(id string) core.CategoryRule {
	return core.CategoryRule{
		ID:           id,
		MatchPattern: sanitizeInput(req.MatchPattern),
		CategoryID:   sanitizeInput(req.CategoryID),
		Subcategory:  sanitizeInput(req.Subcategory),
	}
}

type ruleResponse struct {
	Rule    core.CategoryRule `json:"rule"`
	Similar []rules.Similar   `json:"similar_rules,omitempty"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.Rules(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if list == nil {
		list = []core.CategoryRule{}
	}
	NewJSONResponse().Body(map[string]any{"rules": list}).Write(w)
}

// handleCreateRule saves a rule without touching existing transactions.
// Rules with near identical patterns are reported alongside.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	saved, similar, err := s.ledger.AddRule(r.Context(), req.rule(""))
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(ruleResponse{Rule: saved, Similar: similar}).
		Write(w)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	rule := req.rule(r.PathValue("id"))
	if err := s.ledger.UpdateRule(r.Context(), rule); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteRule(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApplyRule confirms a rule: every transaction whose description
// contains the pattern (or is contained by it) gets its category, and the
// rule is saved.
func (s *Server) handleApplyRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCategorize, err)
		return
	}
	rule := req.rule("")
	res, err := s.ledger.ConfirmRule(r.Context(), rule.MatchPattern, rule.CategoryID, rule.Subcategory)
	if err != nil {
		writeError(w, r, log.OpCategorize, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().Body(res).Write(w)
}

// handleCategorize runs the static rule table over every uncategorized
// transaction. Query: dry_run.
func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	dryRun := ParseBoolParam(r.URL.Query(), "dry_run")
	report, err := s.categorize.Run(r.Context(), dryRun)
	if err != nil {
		writeError(w, r, log.OpCategorize, err)
		return
	}
	if !dryRun {
		s.invalidateRollups(r.Context())
	}
	NewJSONResponse().Body(report).Write(w)
}
