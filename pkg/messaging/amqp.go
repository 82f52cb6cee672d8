package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"realsync-server/pkg/engine"
	"realsync-server/pkg/metrics"
)

// AMQPMessage is the envelope published for every emitted alert or
// suggestion. Exactly one of Alert and Suggestion is set.
type AMQPMessage struct {
	SessionID  string             `json:"session_id"`
	Kind       string             `json:"kind"` // alert, suggestion
	Alert      *engine.Alert      `json:"alert,omitempty"`
	Suggestion *engine.Suggestion `json:"suggestion,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
}

// AMQPConfig holds AMQP publisher configuration
type AMQPConfig struct {
	URL          string
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Durable      bool
	AutoDelete   bool
}

// AMQPPublisher ships alerts and suggestions to the persistence layer
// over AMQP. Delivery is fire-and-forget: a failed publish is logged and
// dropped, never retried on the signal path. It implements
// engine.Subscriber.
type AMQPPublisher struct {
	logger    *logrus.Logger
	config    AMQPConfig
	conn      *amqp.Connection
	channel   *amqp.Channel
	connected bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
}

// NewAMQPPublisher creates a publisher. Queues default to durable and
// persistent; the routing key defaults to the queue name.
func NewAMQPPublisher(logger *logrus.Logger, config AMQPConfig) *AMQPPublisher {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}
	config.Durable = true
	config.AutoDelete = false

	return &AMQPPublisher{
		logger:   logger,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Connect establishes the connection, channel, and queue. The dial is
// bounded so a dead broker cannot hang startup.
func (p *AMQPPublisher) Connect() error {
	p.connMutex.Lock()
	defer p.connMutex.Unlock()

	if p.connected {
		return nil
	}
	if p.config.URL == "" || p.config.QueueName == "" {
		p.logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, AMQP publishing will be disabled")
		return fmt.Errorf("AMQP URL or queue name not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connChan := make(chan struct {
		conn *amqp.Connection
		err  error
	}, 1)
	go func() {
		conn, err := amqp.Dial(p.config.URL)
		select {
		case <-ctx.Done():
			if conn != nil {
				conn.Close()
			}
		case connChan <- struct {
			conn *amqp.Connection
			err  error
		}{conn, err}:
		}
	}()

	var conn *amqp.Connection
	var err error
	select {
	case result := <-connChan:
		conn = result.conn
		err = result.err
	case <-ctx.Done():
		return fmt.Errorf("connection to AMQP server timed out after 5 seconds")
	}
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP server: %w", err)
	}
	p.conn = conn

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	p.channel = channel

	_, err = channel.QueueDeclare(
		p.config.QueueName,
		p.config.Durable,
		p.config.AutoDelete,
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare AMQP queue: %w", err)
	}

	p.connected = true
	metrics.SetAMQPConnectionStatus(true)
	p.logger.WithFields(logrus.Fields{
		"url":   p.config.URL,
		"queue": p.config.QueueName,
	}).Info("Connected to AMQP server")

	// Fresh stop channel in case this is a reconnect.
	p.stopChan = make(chan struct{})
	go p.monitorConnection()

	return nil
}

// Disconnect closes the AMQP connection
func (p *AMQPPublisher) Disconnect() {
	p.connMutex.Lock()
	defer p.connMutex.Unlock()

	if !p.connected {
		return
	}

	close(p.stopChan)
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}

	p.connected = false
	metrics.SetAMQPConnectionStatus(false)
	p.logger.Info("Disconnected from AMQP server")
}

// IsConnected returns the connection status
func (p *AMQPPublisher) IsConnected() bool {
	p.connMutex.RLock()
	defer p.connMutex.RUnlock()
	return p.connected
}

// OnAlert implements engine.Subscriber.
func (p *AMQPPublisher) OnAlert(sessionID string, alert *engine.Alert) {
	msg := AMQPMessage{
		SessionID: sessionID,
		Kind:      "alert",
		Alert:     alert,
		Timestamp: time.Now(),
	}
	go p.publish(sessionID, msg)
}

// OnSuggestion implements engine.Subscriber.
func (p *AMQPPublisher) OnSuggestion(sessionID string, suggestion *engine.Suggestion) {
	msg := AMQPMessage{
		SessionID:  sessionID,
		Kind:       "suggestion",
		Suggestion: suggestion,
		Timestamp:  time.Now(),
	}
	go p.publish(sessionID, msg)
}

// publish sends one envelope with a bounded wait. Failures are logged and
// counted, not surfaced.
func (p *AMQPPublisher) publish(sessionID string, msg AMQPMessage) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logrus.Fields{
				"session_id": sessionID,
				"recover":    r,
			}).Error("Recovered from panic in AMQP publish")
		}
	}()

	if !p.IsConnected() {
		metrics.RecordAMQPPublish(p.config.QueueName, "dropped")
		p.logger.WithField("session_id", sessionID).Debug("AMQP not connected, dropping message")
		return
	}

	body, err := json.Marshal(msg)
	if err != nil {
		metrics.RecordAMQPPublish(p.config.QueueName, "error")
		p.logger.WithError(err).Error("Failed to marshal AMQP message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	publishChan := make(chan error, 1)
	go func() {
		p.connMutex.RLock()
		defer p.connMutex.RUnlock()

		if !p.connected || p.channel == nil {
			select {
			case <-ctx.Done():
			case publishChan <- fmt.Errorf("lost AMQP connection before publishing"):
			}
			return
		}

		err := p.channel.Publish(
			p.config.ExchangeName,
			p.config.RoutingKey,
			false, // Mandatory
			false, // Immediate
			amqp.Publishing{
				ContentType:  "application/json",
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				Expiration:   "43200000", // 12 hours
			},
		)
		select {
		case <-ctx.Done():
		case publishChan <- err:
		}
	}()

	select {
	case err := <-publishChan:
		if err != nil {
			metrics.RecordAMQPPublish(p.config.QueueName, "error")
			p.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to publish to AMQP")
			return
		}
	case <-ctx.Done():
		metrics.RecordAMQPPublish(p.config.QueueName, "timeout")
		p.logger.WithField("session_id", sessionID).Warn("Publishing to AMQP timed out")
		return
	}

	metrics.RecordAMQPPublish(p.config.QueueName, "success")
	p.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"kind":       msg.Kind,
	}).Debug("Published message to AMQP")
}

// monitorConnection watches for broker-side closes and reconnects with
// exponential backoff.
func (p *AMQPPublisher) monitorConnection() {
	closeChan := make(chan *amqp.Error)

	p.connMutex.RLock()
	if p.conn != nil {
		p.conn.NotifyClose(closeChan)
	}
	p.connMutex.RUnlock()

	for {
		select {
		case <-p.stopChan:
			return
		case closeErr := <-closeChan:
			p.connMutex.Lock()
			p.connected = false
			p.connMutex.Unlock()
			metrics.SetAMQPConnectionStatus(false)

			p.logger.WithError(closeErr).Warn("AMQP connection closed, attempting to reconnect")

			for attempt := 1; attempt <= 10; attempt++ {
				p.logger.WithField("attempt", attempt).Info("Reconnecting to AMQP server")

				if err := p.Connect(); err == nil {
					p.logger.Info("Successfully reconnected to AMQP server")
					break
				} else {
					p.logger.WithError(err).WithField("attempt", attempt).Error("Failed to reconnect to AMQP server")
				}

				backoff := time.Duration(1<<uint(attempt-1)) * time.Second
				if backoff > 30*time.Second {
					backoff = 30 * time.Second
				}
				time.Sleep(backoff)
			}
		}
	}
}
