package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbeacon/internal/backend"
	"budgetbeacon/internal/core"
	"budgetbeacon/internal/services"
)

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		check   func(t *testing.T, p *RequestBodyParser)
	}{
		{
			name: "json with numbers and bools",
			body: `{"amount": 12.30, "recurring": true, "category": "  Dining\u0007 "}`,
			check: func(t *testing.T, p *RequestBodyParser) {
				assert.True(t, p.IsJSON())
				assert.Equal(t, "12.30", p.Get("amount"))
				assert.True(t, p.Bool("recurring"))
				assert.Equal(t, "Dining", p.Get("category"))
			},
		},
		{
			name: "form values",
			body: "type=income&recurring=on&amount=5",
			check: func(t *testing.T, p *RequestBodyParser) {
				assert.False(t, p.IsJSON())
				assert.Equal(t, "income", p.Get("type"))
				assert.True(t, p.Bool("recurring"))
				assert.Equal(t, map[string]any{"type": "income", "recurring": "on", "amount": "5"}, p.Object())
			},
		},
		{
			name: "empty body",
			body: "",
			check: func(t *testing.T, p *RequestBodyParser) {
				assert.Equal(t, "", p.Get("type"))
				assert.Empty(t, p.Object())
			},
		},
		{
			name:    "json array",
			body:    `[1]`,
			wantErr: true,
		},
		{
			name:    "broken json",
			body:    `{"a":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			p := NewRequestBodyParser(req, 0)
			err := p.Parse()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestRequestBodyParser_TooLarge(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"note":"`+strings.Repeat("x", 64)+`"}`))
	p := NewRequestBodyParser(req, 32)
	assert.ErrorIs(t, p.Parse(), ErrBodyTooLarge)
}

func TestRequestBodyParser_EntryInput(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(
		`{"type":"expense","category":"Internet","amount":"40","note":"fiber","recurring":true,"frequency":"monthly","startDate":"2024-04-01"}`))
	p := NewRequestBodyParser(req, 0)
	require.NoError(t, p.Parse())

	assert.Equal(t, services.EntryInput{
		Type:      "expense",
		Category:  "Internet",
		Amount:    "40",
		Note:      "fiber",
		Recurring: true,
		Frequency: "monthly",
		StartDate: "2024-04-01",
	}, p.EntryInput())
}

func TestParseEntryFilterAndScope(t *testing.T) {
	q := url.Values{"type": {"INCOME"}, "category": {"Salary"}, "q": {" bonus "}, "scope": {"ALL"}}
	assert.Equal(t, core.EntryFilter{Type: core.Income, Category: "Salary", Search: "bonus"}, ParseEntryFilter(q))
	assert.Equal(t, core.ScopeAll, ParseScope(q))

	assert.Equal(t, core.EntryFilter{}, ParseEntryFilter(url.Values{"type": {"transfer"}}))
	assert.Equal(t, core.DataScope(""), ParseScope(url.Values{}))
	assert.Equal(t, core.ScopeMonth, ParseScope(url.Values{"scope": {"week"}}))
}

func TestDomainError(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{core.ErrInvalidAmount, http.StatusUnprocessableEntity, "Enter a valid amount."},
		{fmt.Errorf("wrapped: %w", core.ErrEntryNotFound), http.StatusNotFound, "Entry not found."},
		{core.ErrCategoryExists, http.StatusConflict, "Category already exists."},
		{fmt.Errorf("%w: disk full", backend.ErrPersistFailed), http.StatusServiceUnavailable, "Could not save data. Changes are kept until the next save."},
		{&services.LoadError{Reason: "invalid JSON"}, http.StatusBadRequest, "Could not import backup file."},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			rr := httptest.NewRecorder()
			DomainError(tt.err).Write(rr)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q,"tone":"error"}`, tt.message), rr.Body.String())
		})
	}
}

func TestJSONResponseBuilder_Message(t *testing.T) {
	rr := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusCreated).Header("X-Test", "1").Message("Entry saved.", map[string]int{"n": 1}).Write(rr)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("X-Test"))
	assert.JSONEq(t, `{"message":"Entry saved.","tone":"success","data":{"n":1}}`, rr.Body.String())
}
