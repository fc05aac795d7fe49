package campaigntoggle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// MockService реализует интерфейс campaigntoggle.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Toggle(ctx context.Context, id int) (*models.Campaign, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Campaign), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCampaignToggleHandler(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное включение кампании",
			id:   "1",
			setupMock: func(m *MockService) {
				m.On("Toggle", mock.Anything, 1).
					Return(&models.Campaign{ID: 1, IsActive: true}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"is_active":true`,
		},
		{
			name: "другая кампания уже активна",
			id:   "2",
			setupMock: func(m *MockService) {
				m.On("Toggle", mock.Anything, 2).
					Return(nil, apperr.Conflict("another campaign is already active"))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `another campaign is already active`,
		},
		{
			name: "кампания не найдена",
			id:   "99",
			setupMock: func(m *MockService) {
				m.On("Toggle", mock.Anything, 99).
					Return(nil, apperr.NotFound("campaign not found"))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `campaign not found`,
		},
		{
			name:           "некорректный id в URL",
			id:             "abc",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid campaign id`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodPost, "/admin/campaigns/"+tt.id+"/toggle", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
