package http

import (
	"fmt"
	"net/http"

	"budgetbeacon/internal/log"
)

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	rules := s.service.RecurringRules()
	NewJSONResponse().Data(map[string]any{
		"rules": rules,
		"count": len(rules),
	}).Write(w)
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RemoveRecurringRule(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err, log.OpDelete)
		return
	}
	NewJSONResponse().Message("Recurring rule removed.", nil).Write(w)
}

func (s *Server) handleSetRecurringActive(active bool) http.HandlerFunc {
	message := "Recurring rule paused."
	if active {
		message = "Recurring rule resumed."
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rule, err := s.service.SetRuleActive(r.Context(), r.PathValue("id"), active)
		if err != nil {
			s.fail(w, r, err, log.OpUpdate)
			return
		}
		NewJSONResponse().Message(message, rule).Write(w)
	}
}

func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	added, err := s.service.MaterializeDue(r.Context())
	if err != nil {
		s.fail(w, r, err, log.OpMaterialize)
		return
	}

	message := "Recurring entries are up to date."
	if added > 0 {
		message = fmt.Sprintf("Added %d recurring %s.", added, plural(added, "entry", "entries"))
	}
	NewJSONResponse().Message(message, map[string]int{"added": added}).Write(w)
}
