package campaignlist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/codescribe-ai/trial-engine/internal/models"
)

// MockService реализует интерфейс campaignlist.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, limit, offset int) ([]*models.Campaign, error) {
	args := m.Called(ctx, limit, offset)
	if res := args.Get(0); res != nil {
		return res.([]*models.Campaign), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCampaignListHandler(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:  "список с пагинацией по умолчанию",
			query: "",
			setupMock: func(m *MockService) {
				m.On("List", mock.Anything, 10, 0).
					Return([]*models.Campaign{{ID: 1, Name: "launch-week"}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"list_count":1`,
		},
		{
			name:  "явные limit и offset",
			query: "?limit=5&offset=20",
			setupMock: func(m *MockService) {
				m.On("List", mock.Anything, 5, 20).
					Return([]*models.Campaign{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"list_count":0`,
		},
		{
			name:  "некорректный limit заменяется значением по умолчанию",
			query: "?limit=abc",
			setupMock: func(m *MockService) {
				m.On("List", mock.Anything, 10, 0).
					Return([]*models.Campaign{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:  "ошибка сервиса",
			query: "",
			setupMock: func(m *MockService) {
				m.On("List", mock.Anything, 10, 0).
					Return(nil, errors.New("db unavailable"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `internal error`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodGet, "/admin/campaigns"+tt.query, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
