package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/http/response"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

func TestRenderDomainError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "ошибка валидации даёт 400",
			err:            apperr.Validation("tier must be one of: pro, team, enterprise"),
			wantStatusCode: http.StatusBadRequest,
			wantError:      "tier must be one of: pro, team, enterprise",
		},
		{
			name:           "запрет действия даёт 403",
			err:            apperr.Forbidden("admin cannot demote themselves"),
			wantStatusCode: http.StatusForbidden,
			wantError:      "admin cannot demote themselves",
		},
		{
			name:           "конфликт даёт 409",
			err:            apperr.Conflict("user already has an active trial"),
			wantStatusCode: http.StatusConflict,
			wantError:      "user already has an active trial",
		},
		{
			name:           "отсутствие сущности даёт 404",
			err:            apperr.NotFound("user not found"),
			wantStatusCode: http.StatusNotFound,
			wantError:      "user not found",
		},
		{
			name:           "обёрнутая доменная ошибка разворачивается через errors.As",
			err:            fmt.Errorf("trial.Grant: %w", apperr.Conflict("user already has an active trial")),
			wantStatusCode: http.StatusConflict,
			wantError:      "user already has an active trial",
		},
		{
			name:           "неизвестная ошибка даёт 500 без деталей",
			err:            errors.New("pq: connection refused"),
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/users/u1/trial", nil)
			w := httptest.NewRecorder()

			response.RenderDomainError(w, req, tt.err)

			assert.Equal(t, tt.wantStatusCode, w.Code)

			var resp response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, response.StatusError, resp.Status)
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestRenderDomainError_Ineligible(t *testing.T) {
	result := models.EligibilityResult{
		Eligible: false,
		Reason:   "trial already used",
		RecentTrials: []models.TrialBrief{
			{Tier: "pro", Status: models.TrialStatusExpired},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/users/u1/trial", nil)
	w := httptest.NewRecorder()

	response.RenderDomainError(w, req, fmt.Errorf("trial.Grant: %w", apperr.Ineligible(result)))

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Status string                   `json:"status"`
		Error  string                   `json:"error"`
		Data   models.EligibilityResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, response.StatusError, resp.Status)
	assert.Equal(t, apperr.CodeIneligible, resp.Error)
	assert.False(t, resp.Data.Eligible)
	assert.Equal(t, "trial already used", resp.Data.Reason)
	require.Len(t, resp.Data.RecentTrials, 1)
	assert.Equal(t, "pro", resp.Data.RecentTrials[0].Tier)
}
