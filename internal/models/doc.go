// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

// Package models defines the data model shared by the processing pipeline
// and the persistent store: sources, messages, conflicts, events, and
// geocode cache entries.
package models
