// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMessagesProcessed(t *testing.T) {
	before := testutil.ToFloat64(MessagesProcessed.WithLabelValues("events_written"))
	MessagesProcessed.WithLabelValues("events_written").Inc()
	after := testutil.ToFloat64(MessagesProcessed.WithLabelValues("events_written"))

	if after != before+1 {
		t.Errorf("expected counter to increment, before=%v after=%v", before, after)
	}
}

func TestRecordClassification(t *testing.T) {
	before := testutil.ToFloat64(ClassifierDecisions.WithLabelValues("airstrike", "true"))
	RecordClassification("airstrike", true)
	after := testutil.ToFloat64(ClassifierDecisions.WithLabelValues("airstrike", "true"))
	if after != before+1 {
		t.Errorf("expected relevant airstrike decision recorded, before=%v after=%v", before, after)
	}

	// Empty event types collapse into the "none" label.
	before = testutil.ToFloat64(ClassifierDecisions.WithLabelValues("none", "false"))
	RecordClassification("", false)
	after = testutil.ToFloat64(ClassifierDecisions.WithLabelValues("none", "false"))
	if after != before+1 {
		t.Errorf("expected none/false decision recorded, before=%v after=%v", before, after)
	}
}

func TestObserveDBQuery(t *testing.T) {
	start := time.Now().Add(-10 * time.Millisecond)
	ObserveDBQuery("select", "messages", start)

	count := testutil.CollectAndCount(DBQueryDuration)
	if count == 0 {
		t.Error("expected at least one duration series after observation")
	}
}

func TestBacklogDepthGauge(t *testing.T) {
	BacklogDepth.Set(42)
	if got := testutil.ToFloat64(BacklogDepth); got != 42 {
		t.Errorf("expected gauge 42, got %v", got)
	}
	BacklogDepth.Set(0)
}
