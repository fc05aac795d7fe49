// Package rabbitmq содержит подключение к RabbitMQ, настройку обменника
// и очередей уведомлений, публикацию и потребление сообщений.
//
// Через очередь проходят только письма-уведомления: выдача пробного
// периода считается завершённой в момент фиксации транзакции в базе,
// сбой публикации уведомления не откатывает выдачу.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Exchange — обменник уведомлений движка пробных периодов.
const Exchange = "notifications"

// Ключи маршрутизации уведомлений.
const (
	RoutingKeyTrialGranted = "trial.granted"
	RoutingKeyTrialExpired = "trial.expired"
)

// Имена очередей уведомлений.
const (
	QueueTrialGranted = "notifications.trial_granted"
	QueueTrialExpired = "notifications.trial_expired"
)

// QueueConfig связывает очередь с ключом маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// NotificationQueues возвращает очереди, которые обслуживает
// notification-sender.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueTrialGranted, RoutingKey: RoutingKeyTrialGranted},
		{QueueName: QueueTrialExpired, RoutingKey: RoutingKeyTrialExpired},
	}
}

// Connect подключается к RabbitMQ с повторными попытками.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал, объявляет обменник уведомлений
// и привязывает к нему переданные очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			Exchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
