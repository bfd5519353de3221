package http

import (
	"fmt"
	"net/http"

	"budgetbeacon/internal/core"
	"budgetbeacon/internal/log"
)

// handleListCategories returns one type's catalog when ?type= is set,
// otherwise both.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	if t := r.URL.Query().Get("type"); t != "" {
		list, err := s.service.Categories(t)
		if err != nil {
			s.fail(w, r, err, log.OpList)
			return
		}
		NewJSONResponse().Data(map[string]any{"type": t, "categories": list}).Write(w)
		return
	}

	catalog := make(map[core.EntryType][]core.Category, 2)
	for _, t := range core.EntryTypes() {
		list, err := s.service.Categories(string(t))
		if err != nil {
			s.fail(w, r, err, log.OpList)
			return
		}
		catalog[t] = list
	}
	NewJSONResponse().Data(catalog).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	category, err := s.service.AddCategory(r.Context(), p.Get("type"), p.Get("name"), p.Get("color"))
	if err != nil {
		s.fail(w, r, err, log.OpCreate)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Message("Category added.", category).Write(w)
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	newName := p.Get("name")
	relinked, err := s.service.RenameCategory(r.Context(), r.PathValue("type"), r.PathValue("name"), newName)
	if err != nil {
		s.fail(w, r, err, log.OpUpdate)
		return
	}
	NewJSONResponse().Message(
		fmt.Sprintf("Category renamed. Updated %d %s.", relinked, plural(relinked, "record", "records")),
		map[string]any{"name": newName, "relinked": relinked},
	).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	entryType := r.PathValue("type")
	relinked, err := s.service.DeleteCategory(r.Context(), entryType, r.PathValue("name"))
	if err != nil {
		s.fail(w, r, err, log.OpDelete)
		return
	}

	fallback := core.Expense.FallbackCategory()
	if t, err := core.ParseEntryType(entryType); err == nil {
		fallback = t.FallbackCategory()
	}
	NewJSONResponse().Message(
		fmt.Sprintf("Category deleted. Moved %d %s to %s.", relinked, plural(relinked, "record", "records"), fallback),
		map[string]any{"relinked": relinked, "fallback": fallback},
	).Write(w)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
