// Package webhook реализует HTTP-обработчик событий биллинга.
//
// Биллинг уведомляет о покупке платной подписки; активный пробный период
// пользователя при этом помечается конвертированным. Подлинность запроса
// проверяется HMAC-подписью в заголовке X-Api-Signature.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/codescribe-ai/trial-engine/internal/apperr"
	"github.com/codescribe-ai/trial-engine/internal/lib/sl"
	"github.com/codescribe-ai/trial-engine/internal/models"
)

// Service описывает интерфейс конвертации пробного периода.
type Service interface {
	Convert(ctx context.Context, userUID string) (*models.Trial, error)
}

type Handler struct {
	log           *slog.Logger // Логгер для записи информации и ошибок
	service       Service
	webhookSecret string // Секрет для проверки подписи
}

func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload — тело события биллинга.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		UserUID string `json:"user_uid"` // пользователь, купивший подписку
		Plan    string `json:"plan"`     // купленный тариф
	} `json:"object"`
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Api-Signature")
	if signature == "" || !h.verifySignature(h.webhookSecret, body, signature) {
		log.Error("invalid or missing webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	const SubscriptionPurchased = "subscription.purchased"

	switch strings.ToLower(payload.Event) {
	case SubscriptionPurchased:
		if payload.Object.UserUID == "" {
			log.Error("webhook payload without user_uid")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, err := h.service.Convert(r.Context(), payload.Object.UserUID); err != nil {
			// У купившего может не быть активного периода, это не ошибка.
			var domain *apperr.Error
			if errors.As(err, &domain) && domain.Code == apperr.CodeNotFound {
				log.Info("purchase without active trial", sl.UID(payload.Object.UserUID))
				break
			}
			log.Error("failed to convert trial", sl.UID(payload.Object.UserUID), sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	default:
		log.Info("ignored webhook event", slog.String("event", payload.Event))
	}

	log.Info("webhook processed successfully", slog.String("event", payload.Event))
	w.WriteHeader(http.StatusOK)
}
