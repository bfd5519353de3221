package http

import (
	"net/http"

	"budgetbeacon/internal/core"
	"budgetbeacon/internal/log"
)

// handleState returns the whole State with the revision it was read at.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, revision := s.service.Snapshot()
	NewJSONResponse().Data(map[string]any{
		"state":    state,
		"revision": revision,
		"mode":     s.service.Mode(),
		"today":    s.service.Today(),
	}).Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.service.Settings()).Write(w)
}

// handleUpdateSettings overlays the keys of the body onto the current
// settings. Out-of-range values are clamped, unknown ones fall back.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	settings, err := s.service.UpdateSettings(r.Context(), p.Object())
	if err != nil {
		s.fail(w, r, err, log.OpUpdate)
		return
	}
	NewJSONResponse().Message("Settings saved.", settings).Write(w)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	budget := s.service.State().Budget
	NewJSONResponse().Data(map[string]any{
		"budget":    budget,
		"formatted": budget.Format(s.currency),
	}).Write(w)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	budget, err := s.service.SetBudget(r.Context(), p.Get("budget"))
	if err != nil {
		s.fail(w, r, err, log.OpUpdate)
		return
	}
	NewJSONResponse().Message("Budget goal saved.", map[string]any{
		"budget":    budget,
		"formatted": budget.Format(s.currency),
	}).Write(w)
}

// SummaryResponse is a dashboard summary with its amounts rendered in the
// display currency.
type SummaryResponse struct {
	core.Summary
	Formatted map[string]string `json:"formatted"`
}

// handleSummary serves the dashboard totals. Summaries are cached per state
// revision, scope and day.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	scope := ParseScope(r.URL.Query())
	if scope == "" {
		scope = s.service.Settings().DataScope
	}

	revision := s.service.Revision()
	summary, hit := s.summaries.Get(revision, scope, s.service.Today(), func() core.Summary {
		return s.service.Summary(scope)
	})

	cacheStatus := "MISS"
	if hit {
		cacheStatus = "HIT"
	}
	NewJSONResponse().
		Header("X-Cache", cacheStatus).
		Data(SummaryResponse{
			Summary: summary,
			Formatted: map[string]string{
				"income":     summary.Income.Format(s.currency),
				"expense":    summary.Expense.Format(s.currency),
				"balance":    summary.Balance.Format(s.currency),
				"budget":     summary.Budget.Format(s.currency),
				"budgetLeft": summary.BudgetLeft.Format(s.currency),
			},
		}).
		Write(w)
}

func (s *Server) handleSampleStatus(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]bool{"loaded": s.service.HasSampleEntries()}).Write(w)
}

func (s *Server) handleLoadSamples(w http.ResponseWriter, r *http.Request) {
	added, err := s.service.LoadSampleEntries(r.Context())
	if err != nil {
		s.fail(w, r, err, log.OpCreate)
		return
	}
	NewJSONResponse().Message("Sample data loaded.", map[string]int{"added": added}).Write(w)
}

func (s *Server) handleClearSamples(w http.ResponseWriter, r *http.Request) {
	removed, err := s.service.ClearSampleEntries(r.Context())
	if err != nil {
		s.fail(w, r, err, log.OpDelete)
		return
	}
	message := "Sample data removed."
	if removed == 0 {
		message = "No sample data to remove."
	}
	NewJSONResponse().Message(message, map[string]int{"removed": removed}).Write(w)
}

// handleSync pushes the State through the adapter. A failed sync is still a
// 200: the body says what happened.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res := s.service.Sync(r.Context())
	if !res.OK {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Sync failed",
			log.FieldMode, string(res.Mode),
			"message", res.Message)
	}
	NewJSONResponse().Message(res.Message, res).Write(w)
}

func (s *Server) handleGetOnboarding(w http.ResponseWriter, r *http.Request) {
	seen, err := s.service.OnboardingSeen(r.Context())
	if err != nil {
		s.fail(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Data(map[string]bool{"seen": seen}).Write(w)
}

func (s *Server) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CompleteOnboarding(r.Context()); err != nil {
		s.fail(w, r, err, log.OpUpdate)
		return
	}
	NewJSONResponse().Message("Onboarding completed.", map[string]bool{"seen": true}).Write(w)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.Metrics()).Write(w)
}
