package http

import (
	"net/http"

	"pocketbook/internal/core"
	"pocketbook/internal/log"
)

// categoryView is a category with its group.
type categoryView struct {
	core.Category
	Group core.GroupName `json:"group"`
}

// handleListCategories lists categories in display order with their group.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cats, err := s.budgets.Categories(ctx)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	groups, err := s.budgets.Groups(ctx)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	idx := core.NewGroupIndex(groups)

	out := make([]categoryView, len(cats))
	for i, c := range cats {
		out[i] = categoryView{Category: c, Group: idx[c.ID]}
	}
	NewJSONResponse().Body(map[string]any{"categories": out}).Write(w)
}

type categoryRequest struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Subcategories []string `json:"subcategories"`
	Color         string   `json:"color"`
	Icon          string   `json:"icon"`
	SortOrder     int      `json:"sort_order"`
}

func (req categoryRequest) category() core.Category {
	subs := make([]string, 0, len(req.Subcategories))
	for _, label := range req.Subcategories {
		subs = append(subs, sanitizeInput(label))
	}
	return core.Category{
		ID:            sanitizeInput(req.ID),
		Name:          sanitizeInput(req.Name),
		Subcategories: subs,
		Color:         sanitizeInput(req.Color),
		Icon:          sanitizeInput(req.Icon),
		SortOrder:     req.SortOrder,
	}
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	created, err := s.budgets.CreateCategory(r.Context(), req.category())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	c := req.category()
	c.ID = r.PathValue("id")
	if err := s.budgets.UpdateCategory(r.Context(), c); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().Body(c).Write(w)
}

type groupRequest struct {
	Group core.GroupName `json:"group"`
}

func (s *Server) handleAssignGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if err := s.budgets.AssignGroup(r.Context(), r.PathValue("id"), req.Group); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateRollups(r.Context())
	NewJSONResponse().Body(core.GroupAssignment{CategoryID: r.PathValue("id"), Group: req.Group}).Write(w)
}

type orderRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleReorderCategories(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if err := s.budgets.ReorderCategories(r.Context(), req.IDs); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateRollups(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
