package rabbitmq

import (
	"github.com/codescribe-ai/trial-engine/internal/models"
	"github.com/streadway/amqp"
)

// Notifier публикует уведомления о пробных периодах в обменник.
// Реализует интерфейсы Notifier сервисов выдачи и фонового обхода.
type Notifier struct {
	ch *amqp.Channel
}

// NewNotifier создает новый экземпляр Notifier.
func NewNotifier(ch *amqp.Channel) *Notifier {
	return &Notifier{ch: ch}
}

// TrialGranted публикует уведомление о выдаче пробного периода.
func (n *Notifier) TrialGranted(msg models.TrialNotification) error {
	return PublishMessage(n.ch, Exchange, RoutingKeyTrialGranted, msg)
}

// TrialExpired публикует уведомление об истечении пробного периода.
func (n *Notifier) TrialExpired(msg models.TrialNotification) error {
	return PublishMessage(n.ch, Exchange, RoutingKeyTrialExpired, msg)
}
