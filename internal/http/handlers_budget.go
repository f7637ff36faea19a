package http

import (
	"fmt"
	"net/http"

	"pocketbook/internal/core"
	"pocketbook/internal/log"
	"pocketbook/internal/schedule"
)

// handleRollup serves the month rollup, computing it on a cache miss.
// Entries are keyed on the store's data version so writes made by other
// processes, such as the worker, are never served stale.
func (s *Server) handleRollup(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	version, err := s.budgets.DataVersion(r.Context())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	key := fmt.Sprintf("%s@%d", month, version)
	if cached, ok := s.rollups.Get(key); ok {
		NewJSONResponse().Header("X-Cache", "HIT").Body(cached).Write(w)
		return
	}

	rollup, err := s.budgets.Rollup(r.Context(), month)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	s.rollups.Set(key, rollup)
	NewJSONResponse().Header("X-Cache", "MISS").Body(rollup).Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	list, err := s.budgets.Budgets(r.Context(), month)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if list == nil {
		list = []core.MonthlyBudget{}
	}
	NewJSONResponse().Body(map[string]any{
		"month":   month,
		"budgets": list,
	}).Write(w)
}

// handleSetBudget upserts one allocation. The month comes from the body or,
// when absent there, the month query parameter.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var b core.MonthlyBudget
	if err := decodeJSON(w, r, &b); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if b.Month == (core.Month{}) {
		month, err := ParseMonthParam(r.URL.Query(), s.now())
		if err != nil {
			writeError(w, r, log.OpUpdate, err)
			return
		}
		b.Month = month
	}
	b.CategoryID = sanitizeInput(b.CategoryID)
	b.Subcategory = sanitizeInput(b.Subcategory)

	if err := s.budgets.SetBudget(r.Context(), b); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().Body(b).Write(w)
}

type copyBudgetsRequest struct {
	From core.Month `json:"from"`
	To   core.Month `json:"to"`
}

func (s *Server) handleCopyBudgets(w http.ResponseWriter, r *http.Request) {
	var req copyBudgetsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	n, err := s.budgets.CopyBudgets(r.Context(), req.From, req.To)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().Body(map[string]any{
		"from":   req.From,
		"to":     req.To,
		"copied": n,
	}).Write(w)
}

type poolBody struct {
	Amount core.Money `json:"amount"`
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	amount, err := s.budgets.Pool(r.Context())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(poolBody{Amount: amount}).Write(w)
}

func (s *Server) handleSetPool(w http.ResponseWriter, r *http.Request) {
	var req poolBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if err := s.budgets.SetPool(r.Context(), req.Amount); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().Body(req).Write(w)
}

// handleAnalytics serves the reporting views. Query: month, months (trend
// length, default 6).
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, err := ParseMonthParam(q, s.now())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	months, err := ParseIntParam(q, "months", 6)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if months > 36 {
		months = 36
	}
	a, err := s.budgets.Analytics(r.Context(), month, months)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(a).Write(w)
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	month, err := ParseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	bills, err := s.budgets.Schedule(r.Context(), month)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if bills == nil {
		bills = []schedule.Bill{}
	}
	NewJSONResponse().Body(map[string]any{
		"month": month,
		"bills": bills,
	}).Write(w)
}
