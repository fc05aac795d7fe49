package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

const testSecret = "webhook-secret"

// MockService реализует интерфейс webhook.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Convert(ctx context.Context, userUID string) (*models.Trial, error) {
	args := m.Called(ctx, userUID)
	if res := args.Get(0); res != nil {
		return res.(*models.Trial), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler(t *testing.T) {
	purchase := `{"event":"subscription.purchased","object":{"user_uid":"user-1","plan":"pro"}}`

	tests := []struct {
		name           string
		body           string
		signature      string
		setupMock      func(*MockService)
		expectedStatus int
	}{
		{
			name:      "покупка конвертирует активный период",
			body:      purchase,
			signature: sign(purchase),
			setupMock: func(m *MockService) {
				m.On("Convert", mock.Anything, "user-1").
					Return(&models.Trial{ID: 1, Status: models.TrialStatusConverted}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:      "покупка без активного периода — no-op",
			body:      purchase,
			signature: sign(purchase),
			setupMock: func(m *MockService) {
				m.On("Convert", mock.Anything, "user-1").
					Return(nil, apperr.NotFound("no active trial for user"))
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "неверная подпись",
			body:           purchase,
			signature:      "bogus",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "отсутствует подпись",
			body:           purchase,
			signature:      "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "незнакомое событие игнорируется",
			body:           `{"event":"invoice.created","object":{}}`,
			signature:      sign(`{"event":"invoice.created","object":{}}`),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "событие покупки без user_uid",
			body:           `{"event":"subscription.purchased","object":{}}`,
			signature:      sign(`{"event":"subscription.purchased","object":{}}`),
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService, testSecret)

			req := httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(tt.body))
			if tt.signature != "" {
				req.Header.Set("X-Api-Signature", tt.signature)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}
