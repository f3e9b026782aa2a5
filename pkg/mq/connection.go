package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "events"

	// 路由键
	RoutingScheduleCreated  = "schedule.created"
	RoutingScheduleDeleted  = "schedule.deleted"
	RoutingHabitCreated     = "habit.created"
	RoutingCompletionLogged = "completion.logged"
	RoutingReminderDue      = "reminder.due"
)

// 启动时 broker 可能尚未就绪，按线性退避重试
const (
	dialAttempts = 5
	dialBackoff  = time.Second
)

// NewConnection dials RabbitMQ, retrying while the broker comes up.
func NewConnection(url string) (*amqp091.Connection, error) {
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err := amqp091.Dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt < dialAttempts {
			time.Sleep(time.Duration(attempt) * dialBackoff)
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", dialAttempts, lastErr)
}

// DeclareExchange declares the events exchange.
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
