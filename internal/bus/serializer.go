// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package bus

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Serializer handles envelope encoding for the wire.
type Serializer struct{}

// NewSerializer creates a serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// MarshalIntake validates and encodes an intake message.
func (s *Serializer) MarshalIntake(m *IntakeMessage) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("validate intake message: %w", err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal intake message: %w", err)
	}
	return data, nil
}

// UnmarshalIntake decodes an intake message and validates it.
func (s *Serializer) UnmarshalIntake(data []byte) (*IntakeMessage, error) {
	var m IntakeMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal intake message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// MarshalNotice validates and encodes an event notice.
func (s *Serializer) MarshalNotice(e *EventNotice) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate event notice: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event notice: %w", err)
	}
	return data, nil
}

// UnmarshalNotice decodes an event notice.
func (s *Serializer) UnmarshalNotice(data []byte) (*EventNotice, error) {
	var e EventNotice
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal event notice: %w", err)
	}
	return &e, nil
}
