// Package bus owns the NSQ plumbing: a publisher handle injected into the
// components that emit messages, and a consumer runner that enforces the
// one-message-in-flight discipline the job consumers rely on.
package bus

import (
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"
)

// Publisher is the narrow publish surface components depend on.
type Publisher interface {
	Publish(topic string, body []byte) error
}

type NSQPublisher struct {
	producer *nsq.Producer
}

func NewNSQPublisher(producer *nsq.Producer) *NSQPublisher {
	return &NSQPublisher{producer: producer}
}

func (p *NSQPublisher) Publish(topic string, body []byte) error {
	return p.producer.Publish(topic, body)
}

// StartConsumer subscribes handler to topic on the given channel with an
// in-flight limit of one, so jobs on a topic are processed strictly in
// delivery order and provider rate limits stay deterministic. The returned
// consumer must be stopped by the caller on shutdown.
func StartConsumer(topic, channel, lookupd string, handler nsq.Handler) (*nsq.Consumer, error) {
	cfg := nsq.NewConfig()
	cfg.MaxInFlight = 1
	cfg.MaxAttempts = 0 // broker-level redelivery is reserved for process crashes

	consumer, err := nsq.NewConsumer(topic, channel, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer for %s/%s: %w", topic, channel, err)
	}
	consumer.AddHandler(handler)

	if err := consumer.ConnectToNSQLookupd(lookupd); err != nil {
		consumer.Stop()
		return nil, fmt.Errorf("connect consumer %s/%s to lookupd: %w", topic, channel, err)
	}

	slog.Info("consumer connected", "topic", topic, "channel", channel)
	return consumer, nil
}
