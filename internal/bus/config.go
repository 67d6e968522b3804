// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package bus is the NATS JetStream messaging layer: live message
// intake from the collectors and best-effort event notifications for
// downstream consumers (map frontend, alerting).
package bus

import (
	"time"
)

// Topic and stream layout. Collectors publish raw messages to the
// intake topic; the processor publishes one notice per written event to
// a per-conflict topic under the events stream.
const (
	IntakeStreamName = "ARGUS_INTAKE"
	IntakeTopic      = "intake.messages"

	EventStreamName  = "ARGUS_EVENTS"
	EventTopicPrefix = "events."
)

// PublisherConfig holds publisher connection settings.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool //nolint:revive // ID is correct per Go conventions
}

// DefaultPublisherConfig returns production defaults for a publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig holds subscriber connection settings.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration

	// StreamName binds the subscriber to an existing stream. Required for
	// wildcard topics because stream names cannot contain wildcards and
	// auto-provisioning would try to create one named after the topic.
	StreamName string
}

// DefaultSubscriberConfig returns production defaults for the intake
// subscriber.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      "argus-processor",
		QueueGroup:       "processors",
		SubscribersCount: 4,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StreamName:       IntakeStreamName,
	}
}

// StreamConfig defines a JetStream stream's settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultIntakeStreamConfig returns the intake stream configuration.
func DefaultIntakeStreamConfig(retentionDays int) StreamConfig {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return StreamConfig{
		Name:            IntakeStreamName,
		Subjects:        []string{"intake.>"},
		MaxAge:          time.Duration(retentionDays) * 24 * time.Hour,
		MaxBytes:        10 * 1024 * 1024 * 1024, // 10GB
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// DefaultEventStreamConfig returns the event notification stream
// configuration.
func DefaultEventStreamConfig(retentionDays int) StreamConfig {
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return StreamConfig{
		Name:            EventStreamName,
		Subjects:        []string{"events.>"},
		MaxAge:          time.Duration(retentionDays) * 24 * time.Hour,
		MaxBytes:        5 * 1024 * 1024 * 1024, // 5GB
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns embedded server defaults. Port 0 lets the
// OS choose, which suits tests; production pins the standard port.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   1 << 30,
		JetStreamMaxStore: 10 << 30,
	}
}
