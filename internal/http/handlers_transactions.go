package http

import (
	"fmt"
	"net/http"
	"strings"

	"pocketbook/internal/core"
	"pocketbook/internal/log"
	"pocketbook/internal/services"
	"pocketbook/internal/storage"
)

// handleListTransactions lists the ledger with its working totals.
// Query: month (omitted or "all" lists every month), search, uncategorized,
// include_ignored, limit. Totals cover the non-ignored rows of the month
// range, whatever the other filters.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TransactionFilter{
		IncludeIgnored:    ParseBoolParam(q, "include_ignored"),
		UncategorizedOnly: ParseBoolParam(q, "uncategorized"),
		Search:            sanitizeInput(q.Get("search")),
	}
	var month *core.Month
	if raw := strings.TrimSpace(q.Get("month")); raw != "" && raw != "all" {
		m, err := ParseMonthParam(q, s.now())
		if err != nil {
			writeError(w, r, log.OpList, err)
			return
		}
		month = &m
		filter.From, filter.To = m.Start(), m.End()
	}
	limit, err := ParseIntParam(q, "limit", 0)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	filter.Limit = limit

	entries, err := s.ledger.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	totals, err := s.ledger.Totals(r.Context(), filter)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if entries == nil {
		entries = []services.LedgerEntry{}
	}
	NewJSONResponse().Body(map[string]any{
		"month":        month,
		"transactions": entries,
		"totals":       totals,
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var entry services.ManualEntry
	if err := decodeJSON(w, r, &entry); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	entry.Payee = sanitizeInput(entry.Payee)
	entry.Memo = sanitizeInput(entry.Memo)

	t, err := s.ledger.AddManual(r.Context(), entry)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", fmt.Sprintf("/api/transactions/%s", t.ID)).
		Body(t).
		Write(w)
}

type recategorizeRequest struct {
	CategoryID     string `json:"category_id"`
	Subcategory    string `json:"subcategory"`
	ApplyToSimilar bool   `json:"apply_to_similar"`
}

func (s *Server) handleRecategorize(w http.ResponseWriter, r *http.Request) {
	var req recategorizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCategorize, err)
		return
	}
	res, err := s.ledger.Recategorize(r.Context(), r.PathValue("id"),
		sanitizeInput(req.CategoryID), sanitizeInput(req.Subcategory), req.ApplyToSimilar)
	if err != nil {
		writeError(w, r, log.OpCategorize, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().Body(res).Write(w)
}

type ignoreRequest struct {
	AllFromPayee bool `json:"all_from_payee"`
}

// handleToggleIgnore flips the ignored flag. The body is optional.
func (s *Server) handleToggleIgnore(w http.ResponseWriter, r *http.Request) {
	var req ignoreRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log.OpUpdate, err)
			return
		}
	}
	ignored, updated, err := s.ledger.ToggleIgnore(r.Context(), r.PathValue("id"), req.AllFromPayee)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().Body(map[string]any{
		"ignored": ignored,
		"updated": updated,
	}).Write(w)
}

type memoRequest struct {
	Memo string `json:"memo"`
}

func (s *Server) handleSetMemo(w http.ResponseWriter, r *http.Request) {
	var req memoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	memo := sanitizeInput(req.Memo)
	if err := s.ledger.SetMemo(r.Context(), r.PathValue("id"), memo); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(map[string]string{"memo": memo}).Write(w)
}

type splitsRequest struct {
	Splits []core.Split `json:"splits"`
}

func (s *Server) handleSaveSplits(w http.ResponseWriter, r *http.Request) {
	var req splitsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	for i := range req.Splits {
		req.Splits[i].Memo = sanitizeInput(req.Splits[i].Memo)
	}
	saved, err := s.ledger.SaveSplits(r.Context(), r.PathValue("id"), req.Splits)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().Body(splitsRequest{Splits: saved}).Write(w)
}

// handleRemoveSplits collapses a split back to one row, optionally assigned
// to the category given by the category_id and subcategory query parameters.
func (s *Server) handleRemoveSplits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	err := s.ledger.RemoveSplits(r.Context(), r.PathValue("id"),
		sanitizeInput(q.Get("category_id")), sanitizeInput(q.Get("subcategory")))
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	s.invalidateRollups(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
