// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

func newTestHandler(topic string, msgs ...*message.Message) *MessageHandler {
	ch := make(chan *message.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)

	return &MessageHandler{
		subscribe: func(ctx context.Context, t string) (<-chan *message.Message, error) {
			return ch, nil
		},
		topic:  topic,
		logger: watermill.NopLogger{},
	}
}

func waitAcked(t *testing.T, msg *message.Message) {
	t.Helper()
	select {
	case <-msg.Acked():
	case <-msg.Nacked():
		t.Fatal("message was nacked, want acked")
	case <-time.After(time.Second):
		t.Fatal("message neither acked nor nacked")
	}
}

func waitNacked(t *testing.T, msg *message.Message) {
	t.Helper()
	select {
	case <-msg.Nacked():
	case <-msg.Acked():
		t.Fatal("message was acked, want nacked")
	case <-time.After(time.Second):
		t.Fatal("message neither acked nor nacked")
	}
}

func TestMessageHandler_AcksOnSuccess(t *testing.T) {
	msg := message.NewMessage(watermill.NewUUID(), []byte("payload"))
	h := newTestHandler("intake.messages", msg)

	var handled int
	h.Handle(func(ctx context.Context, m *message.Message) error {
		handled++
		return nil
	})

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if handled != 1 {
		t.Errorf("handled = %d, want 1", handled)
	}
	waitAcked(t, msg)
}

func TestMessageHandler_NacksOnError(t *testing.T) {
	msg := message.NewMessage(watermill.NewUUID(), []byte("payload"))
	h := newTestHandler("intake.messages", msg)

	h.Handle(func(ctx context.Context, m *message.Message) error {
		return errors.New("transient failure")
	})

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitNacked(t, msg)
}

func TestMessageHandler_ContinuesAfterError(t *testing.T) {
	bad := message.NewMessage(watermill.NewUUID(), []byte("bad"))
	good := message.NewMessage(watermill.NewUUID(), []byte("good"))
	h := newTestHandler("intake.messages", bad, good)

	h.Handle(func(ctx context.Context, m *message.Message) error {
		if string(m.Payload) == "bad" {
			return errors.New("boom")
		}
		return nil
	})

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitNacked(t, bad)
	waitAcked(t, good)
}

func TestMessageHandler_NilHandlerAcks(t *testing.T) {
	msg := message.NewMessage(watermill.NewUUID(), []byte("payload"))
	h := newTestHandler("intake.messages", msg)

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitAcked(t, msg)
}

func TestMessageHandler_StopsOnContextCancel(t *testing.T) {
	ch := make(chan *message.Message)
	h := &MessageHandler{
		subscribe: func(ctx context.Context, topic string) (<-chan *message.Message, error) {
			return ch, nil
		},
		topic:  "intake.messages",
		logger: watermill.NopLogger{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestIntakeHandler_DecodesEnvelope(t *testing.T) {
	s := NewSerializer()
	env := validIntakeMessage()
	data, err := s.MarshalIntake(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	msg := message.NewMessage(env.MessageID, data)
	h := &IntakeHandler{
		handler:    newTestHandler(IntakeTopic, msg),
		serializer: s,
	}

	var got *IntakeMessage
	h.Handle(func(ctx context.Context, m *IntakeMessage) error {
		got = m
		return nil
	})

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitAcked(t, msg)
	if got == nil || got.ExternalID != env.ExternalID {
		t.Fatalf("decoded envelope = %+v, want external ID %q", got, env.ExternalID)
	}
}

func TestIntakeHandler_NacksUndecodable(t *testing.T) {
	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	h := &IntakeHandler{
		handler:    newTestHandler(IntakeTopic, msg),
		serializer: NewSerializer(),
	}

	h.Handle(func(ctx context.Context, m *IntakeMessage) error {
		t.Fatal("handler must not run for undecodable payload")
		return nil
	})

	if err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	waitNacked(t, msg)
}
