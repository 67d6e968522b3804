// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package bus

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
)

// Subscriber wraps a durable JetStream subscriber. The queue group
// load-balances intake across processor instances; the durable consumer
// resumes where the previous instance stopped.
type Subscriber struct {
	subscriber message.Subscriber
	config     SubscriberConfig
	logger     watermill.LoggerAdapter
}

// NewSubscriber creates a durable queue subscriber.
func NewSubscriber(cfg SubscriberConfig, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Subscriber reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
		// Live intake handles new messages only; the backlog sweep owns
		// everything that predates this consumer.
		natsgo.DeliverNew(),
	}

	autoProvision := true
	if cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(cfg.StreamName))
		autoProvision = false
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    autoProvision,
			AckAsync:         false, // synchronous acks for at-least-once
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Subscriber{
		subscriber: sub,
		config:     cfg,
		logger:     logger,
	}, nil
}

// Subscribe returns the message channel for a topic. The channel closes
// on context cancellation or Close.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.subscriber.Subscribe(ctx, topic)
}

// Close shuts down the subscriber.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}

// MessageHandler is a fluent API for consuming one topic. Messages are
// acked on handler success and nacked for redelivery on error.
type MessageHandler struct {
	subscribe func(ctx context.Context, topic string) (<-chan *message.Message, error)
	topic     string
	handler   func(ctx context.Context, msg *message.Message) error
	logger    watermill.LoggerAdapter
}

// NewMessageHandler creates a handler for the given topic.
func (s *Subscriber) NewMessageHandler(topic string) *MessageHandler {
	return &MessageHandler{
		subscribe: s.Subscribe,
		topic:     topic,
		logger:    s.logger,
	}
}

// Handle sets the processing function.
func (h *MessageHandler) Handle(fn func(ctx context.Context, msg *message.Message) error) *MessageHandler {
	h.handler = fn
	return h
}

// Run consumes until context cancellation or channel close. Handler
// errors are logged and the message nacked; the loop keeps going.
func (h *MessageHandler) Run(ctx context.Context) error {
	messages, err := h.subscribe(ctx, h.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", h.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := h.processMessage(ctx, msg); err != nil {
				h.logger.Error("Message processing failed", err, watermill.LogFields{
					"message_uuid": msg.UUID,
					"topic":        h.topic,
				})
			}
		}
	}
}

func (h *MessageHandler) processMessage(ctx context.Context, msg *message.Message) error {
	if h.handler == nil {
		msg.Ack()
		return nil
	}
	if err := h.handler(ctx, msg); err != nil {
		msg.Nack()
		return err
	}
	msg.Ack()
	return nil
}

// IntakeHandler deserializes intake envelopes before handing them to
// the processing function.
type IntakeHandler struct {
	handler    *MessageHandler
	serializer *Serializer
}

// NewIntakeHandler creates a handler for the intake topic.
func (s *Subscriber) NewIntakeHandler() *IntakeHandler {
	return &IntakeHandler{
		handler:    s.NewMessageHandler(IntakeTopic),
		serializer: NewSerializer(),
	}
}

// Handle sets the intake processing function. Undecodable envelopes are
// returned as errors and nacked for redelivery until MaxDeliver drops
// them.
func (h *IntakeHandler) Handle(fn func(ctx context.Context, m *IntakeMessage) error) *IntakeHandler {
	h.handler.Handle(func(ctx context.Context, msg *message.Message) error {
		m, err := h.serializer.UnmarshalIntake(msg.Payload)
		if err != nil {
			return fmt.Errorf("decode intake message: %w", err)
		}
		return fn(ctx, m)
	})
	return h
}

// Run starts consuming intake messages.
func (h *IntakeHandler) Run(ctx context.Context) error {
	return h.handler.Run(ctx)
}
