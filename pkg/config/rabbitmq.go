package config

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	rabbitMaxRetries = 10
	rabbitRetryDelay = 3 * time.Second
)

// ConnectRabbitMQ dials the broker with retry logic
func ConnectRabbitMQ(cfg RabbitMQConfig) (*amqp.Connection, error) {
	var err error
	for i := 0; i < rabbitMaxRetries; i++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(cfg.URL())
		if err == nil {
			logrus.WithField("host", cfg.Host).Info("Successfully connected to RabbitMQ")
			return conn, nil
		}

		if i < rabbitMaxRetries-1 {
			logrus.WithError(err).Warnf("Failed to connect to RabbitMQ (attempt %d/%d), retrying in %v", i+1, rabbitMaxRetries, rabbitRetryDelay)
			time.Sleep(rabbitRetryDelay)
		}
	}
	return nil, fmt.Errorf("connect to RabbitMQ after %d attempts: %w", rabbitMaxRetries, err)
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
}
