package http

import (
	"errors"
	"net/http"

	"budgetbeacon/internal/core"
	"budgetbeacon/internal/log"
)

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries := s.service.Entries(ParseEntryFilter(r.URL.Query()))
	NewJSONResponse().Data(map[string]any{
		"entries": entries,
		"count":   len(entries),
	}).Write(w)
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	in := p.EntryInput()

	entry, err := s.service.AddEntry(r.Context(), in)
	if err != nil {
		s.fail(w, r, err, log.OpCreate)
		return
	}

	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogEntryCreated(r.Context(), entry.ID, string(entry.Type), entry.Category, entry.Amount.String())

	message := "Entry saved."
	if in.Recurring {
		message = "Entry saved. Recurring rule created."
	}
	NewJSONResponse().Status(http.StatusCreated).Message(message, entry).Write(w)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}

	entry, err := s.service.UpdateEntry(r.Context(), r.PathValue("id"), p.EntryInput())
	if err != nil {
		s.fail(w, r, err, log.OpUpdate)
		return
	}
	NewJSONResponse().Message("Entry updated.", entry).Write(w)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteEntry(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err, log.OpDelete)
		return
	}
	NewJSONResponse().Message("Entry deleted.", nil).Write(w)
}

// parseBody reads and parses the request body, writing the error response
// itself when that fails.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r, s.maxBody)
	if err := p.Parse(); err != nil {
		switch {
		case errors.Is(err, ErrBodyTooLarge):
			ErrorResponse(http.StatusRequestEntityTooLarge, "Request body is too large.").Write(w)
		case errors.Is(err, core.ErrNotAnObject):
			DomainError(err).Write(w)
		default:
			log.FromContext(r.Context()).DebugContext(r.Context(), "Parse body error",
				log.FieldError, err.Error(),
				log.FieldPath, r.URL.Path)
			BadRequestError("Invalid request format.").Write(w)
		}
		return nil, false
	}
	return p, true
}

// fail writes the response for a service error. Server-side failures are
// logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, operation string) {
	resp := DomainError(err)
	if resp.statusCode >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentSession, operation, nil)
	}
	resp.Write(w)
}
