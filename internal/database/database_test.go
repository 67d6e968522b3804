// Argus - OSINT Conflict Event Processing and Mapping
// Copyright 2026 Argus Watch (arguswatch)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arguswatch/argus

package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arguswatch/argus/internal/config"
	"github.com/arguswatch/argus/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedConflictAndSource(t *testing.T, db *DB) (*models.Conflict, *models.Source) {
	t.Helper()
	ctx := context.Background()

	conflict := &models.Conflict{
		Name:       "Israel-Iran",
		ShortCode:  "israel-iran",
		RegionBias: "Middle East",
		Keywords:   []string{"IDF", "IRGC", "Sidon"},
		IsActive:   true,
	}
	if err := db.UpsertConflict(ctx, conflict); err != nil {
		t.Fatalf("UpsertConflict: %v", err)
	}

	source := &models.Source{
		Platform:          models.PlatformTelegram,
		Identifier:        "field_reports",
		ReliabilityTier:   "high",
		DefaultConflictID: conflict.ID,
		FilterRules:       models.FilterRules{Exempt: true, GeoWeight: 1.5},
	}
	if err := db.UpsertSource(ctx, source); err != nil {
		t.Fatalf("UpsertSource: %v", err)
	}
	return conflict, source
}

func seedMessage(t *testing.T, db *DB, src *models.Source, externalID string, ts time.Time) int64 {
	t.Helper()
	id, inserted, err := db.IngestMessage(context.Background(), &models.Message{
		SourceID:   src.ID,
		Platform:   src.Platform,
		ExternalID: externalID,
		Text:       "Drone strike reported near Sidon",
		ReceivedAt: time.Now().UTC(),
		Timestamp:  ts,
	})
	if err != nil {
		t.Fatalf("IngestMessage: %v", err)
	}
	if !inserted {
		t.Fatalf("expected fresh insert for %s", externalID)
	}
	return id
}

func TestIngestMessage_Dedup(t *testing.T) {
	db := newTestDB(t)
	_, src := seedConflictAndSource(t, db)
	ctx := context.Background()

	msg := &models.Message{
		SourceID:   src.ID,
		Platform:   src.Platform,
		ExternalID: "tg-1001",
		Text:       "first delivery",
		ReceivedAt: time.Now().UTC(),
		Timestamp:  time.Now().UTC(),
	}
	id1, inserted, err := db.IngestMessage(ctx, msg)
	if err != nil || !inserted {
		t.Fatalf("first ingest: id=%d inserted=%v err=%v", id1, inserted, err)
	}

	// Same platform identity delivered again: deduplicated.
	id2, inserted, err := db.IngestMessage(ctx, msg)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if inserted {
		t.Error("duplicate delivery must not insert")
	}
	if id2 != id1 {
		t.Errorf("duplicate must return the existing id, got %d want %d", id2, id1)
	}
}

func TestGetUnprocessedMessages_OrderAndFilters(t *testing.T) {
	db := newTestDB(t)
	_, src := seedConflictAndSource(t, db)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	late := seedMessage(t, db, src, "tg-late", base.Add(time.Hour))
	early := seedMessage(t, db, src, "tg-early", base)
	mid := seedMessage(t, db, src, "tg-mid", base.Add(30*time.Minute))

	msgs, err := db.GetUnprocessedMessages(ctx, 10, time.Hour)
	if err != nil {
		t.Fatalf("GetUnprocessedMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	// Oldest first.
	if msgs[0].ID != early || msgs[1].ID != mid || msgs[2].ID != late {
		t.Errorf("unexpected order: %d, %d, %d", msgs[0].ID, msgs[1].ID, msgs[2].ID)
	}
	// Source rides along with decoded filter rules.
	if msgs[0].Source == nil || !msgs[0].Source.FilterRules.Exempt {
		t.Error("expected source with filter rules attached")
	}

	// Processed and freshly-claimed messages disappear from the sweep.
	if err := db.InsertEventsMarkProcessed(ctx, early, nil); err != nil {
		t.Fatalf("InsertEventsMarkProcessed: %v", err)
	}
	if ok, err := db.ClaimMessage(ctx, mid, time.Hour); err != nil || !ok {
		t.Fatalf("ClaimMessage: ok=%v err=%v", ok, err)
	}

	msgs, err = db.GetUnprocessedMessages(ctx, 10, time.Hour)
	if err != nil {
		t.Fatalf("GetUnprocessedMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != late {
		t.Errorf("expected only the unclaimed unprocessed message, got %+v", msgs)
	}
}

func TestClaimMessage_Exclusive(t *testing.T) {
	db := newTestDB(t)
	_, src := seedConflictAndSource(t, db)
	ctx := context.Background()
	id := seedMessage(t, db, src, "tg-claim", time.Now().UTC())

	ok, err := db.ClaimMessage(ctx, id, time.Hour)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}

	// A second claimant loses while the claim is fresh.
	ok, err = db.ClaimMessage(ctx, id, time.Hour)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Error("fresh claim must block other claimants")
	}

	// Release makes it claimable again.
	if err := db.ReleaseMessage(ctx, id); err != nil {
		t.Fatalf("ReleaseMessage: %v", err)
	}
	ok, err = db.ClaimMessage(ctx, id, time.Hour)
	if err != nil || !ok {
		t.Errorf("claim after release: ok=%v err=%v", ok, err)
	}
}

func TestClaimMessage_StaleClaimReclaimable(t *testing.T) {
	db := newTestDB(t)
	_, src := seedConflictAndSource(t, db)
	ctx := context.Background()
	id := seedMessage(t, db, src, "tg-stale", time.Now().UTC())

	if ok, _ := db.ClaimMessage(ctx, id, time.Hour); !ok {
		t.Fatal("initial claim failed")
	}

	// With a zero-length staleness horizon every existing claim counts as
	// dead, so the message is immediately reclaimable.
	time.Sleep(2 * time.Millisecond)
	ok, err := db.ClaimMessage(ctx, id, time.Millisecond)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !ok {
		t.Error("stale claim must be reclaimable")
	}
}

func TestInsertEventsMarkProcessed_Atomic(t *testing.T) {
	db := newTestDB(t)
	conflict, src := seedConflictAndSource(t, db)
	ctx := context.Background()
	id := seedMessage(t, db, src, "tg-events", time.Now().UTC())

	lat, lon := 33.56, 35.37
	now := time.Now().UTC()
	dupID := uuid.NewString()
	events := []models.Event{
		{ID: dupID, MessageID: id, ConflictID: conflict.ID, EventType: "airstrike",
			Latitude: &lat, Longitude: &lon, LocationName: "Sidon",
			GeoConfidence: 0.7, Timestamp: now, CreatedAt: now},
		// Same primary key forces the transaction to fail.
		{ID: dupID, MessageID: id, ConflictID: conflict.ID, EventType: "airstrike",
			Timestamp: now, CreatedAt: now},
	}
	if err := db.InsertEventsMarkProcessed(ctx, id, events); err == nil {
		t.Fatal("expected constraint violation")
	}

	// All-or-nothing: no events landed and the message is still pending.
	got, err := db.GetEventsByMessage(ctx, id)
	if err != nil {
		t.Fatalf("GetEventsByMessage: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("failed transaction must write no events, got %d", len(got))
	}
	msg, err := db.GetMessage(ctx, id)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if msg.Processed {
		t.Error("failed transaction must not mark the message processed")
	}

	// The happy path commits both the events and the flag together.
	events[1].ID = uuid.NewString()
	if err := db.InsertEventsMarkProcessed(ctx, id, events); err != nil {
		t.Fatalf("InsertEventsMarkProcessed: %v", err)
	}
	got, err = db.GetEventsByMessage(ctx, id)
	if err != nil {
		t.Fatalf("GetEventsByMessage: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Latitude == nil || *got[0].Latitude != lat {
		t.Errorf("unexpected coordinates: %+v", got[0])
	}
	// Null coordinates survive the round trip for unresolved locations.
	if got[1].Latitude != nil || got[1].Longitude != nil {
		t.Errorf("expected null coordinates, got %+v", got[1])
	}
	msg, _ = db.GetMessage(ctx, id)
	if !msg.Processed {
		t.Error("message must be processed after commit")
	}
}

func TestInsertEventsMarkProcessed_EmptyEvents(t *testing.T) {
	db := newTestDB(t)
	_, src := seedConflictAndSource(t, db)
	ctx := context.Background()
	id := seedMessage(t, db, src, "tg-irrelevant", time.Now().UTC())

	// Irrelevant messages flip processed without writing events.
	if err := db.InsertEventsMarkProcessed(ctx, id, nil); err != nil {
		t.Fatalf("InsertEventsMarkProcessed: %v", err)
	}
	msg, err := db.GetMessage(ctx, id)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !msg.Processed {
		t.Error("expected processed message")
	}
}

func TestGeocodeCache_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if entry, err := db.GetGeocodeCache(ctx, "sidon|Middle East"); err != nil || entry != nil {
		t.Fatalf("expected clean miss, got %+v, %v", entry, err)
	}

	put := models.GeocodeCacheEntry{
		CacheKey:    "sidon|Middle East",
		PlaceName:   "Sidon",
		Latitude:    33.5606,
		Longitude:   35.3758,
		DisplayName: "Sidon, Lebanon",
		Confidence:  0.68,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.PutGeocodeCache(ctx, put); err != nil {
		t.Fatalf("PutGeocodeCache: %v", err)
	}

	entry, err := db.GetGeocodeCache(ctx, "sidon|Middle East")
	if err != nil {
		t.Fatalf("GetGeocodeCache: %v", err)
	}
	if entry == nil || entry.Latitude != 33.5606 || entry.DisplayName != "Sidon, Lebanon" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	// Concurrent writer race: second insert with the same key is dropped
	// without error.
	put.Latitude = 99
	if err := db.PutGeocodeCache(ctx, put); err != nil {
		t.Fatalf("duplicate PutGeocodeCache: %v", err)
	}
	entry, _ = db.GetGeocodeCache(ctx, "sidon|Middle East")
	if entry.Latitude != 33.5606 {
		t.Errorf("first write must win, got %v", entry.Latitude)
	}
}

func TestConflictRegistry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	active := &models.Conflict{Name: "Sudan", ShortCode: "sudan", Keywords: []string{"Khartoum", "RSF"}, IsActive: true}
	dormant := &models.Conflict{Name: "Dormant", ShortCode: "dormant", IsActive: false}
	for _, c := range []*models.Conflict{active, dormant} {
		if err := db.UpsertConflict(ctx, c); err != nil {
			t.Fatalf("UpsertConflict: %v", err)
		}
	}

	conflicts, err := db.GetActiveConflicts(ctx)
	if err != nil {
		t.Fatalf("GetActiveConflicts: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].ShortCode != "sudan" {
		t.Fatalf("expected only the active conflict, got %+v", conflicts)
	}
	if len(conflicts[0].Keywords) != 2 || conflicts[0].Keywords[0] != "Khartoum" {
		t.Errorf("keywords must round-trip, got %v", conflicts[0].Keywords)
	}

	// Upsert by short code updates in place.
	active.RegionBias = "Sudan"
	active.IsActive = false
	if err := db.UpsertConflict(ctx, active); err != nil {
		t.Fatalf("UpsertConflict update: %v", err)
	}
	conflicts, _ = db.GetActiveConflicts(ctx)
	if len(conflicts) != 0 {
		t.Errorf("deactivated conflict must leave the active set, got %+v", conflicts)
	}
}

func TestSourceRegistry(t *testing.T) {
	db := newTestDB(t)
	conflict, src := seedConflictAndSource(t, db)
	ctx := context.Background()

	got, err := db.GetSource(ctx, src.ID)
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if got == nil || got.DefaultConflictID != conflict.ID {
		t.Fatalf("unexpected source: %+v", got)
	}
	if !got.FilterRules.Exempt || got.FilterRules.GeoWeight != 1.5 {
		t.Errorf("filter rules must round-trip, got %+v", got.FilterRules)
	}

	found, err := db.FindSource(ctx, models.PlatformTelegram, "field_reports")
	if err != nil {
		t.Fatalf("FindSource: %v", err)
	}
	if found == nil || found.ID != src.ID {
		t.Errorf("expected to find seeded source, got %+v", found)
	}

	missing, err := db.FindSource(ctx, models.PlatformX, "nobody")
	if err != nil || missing != nil {
		t.Errorf("expected clean miss, got %+v, %v", missing, err)
	}
}

func TestCountUnprocessed(t *testing.T) {
	db := newTestDB(t)
	_, src := seedConflictAndSource(t, db)
	ctx := context.Background()

	seedMessage(t, db, src, "tg-a", time.Now().UTC())
	id := seedMessage(t, db, src, "tg-b", time.Now().UTC())

	count, err := db.CountUnprocessed(ctx)
	if err != nil || count != 2 {
		t.Fatalf("expected 2 unprocessed, got %d, %v", count, err)
	}

	if err := db.InsertEventsMarkProcessed(ctx, id, nil); err != nil {
		t.Fatalf("InsertEventsMarkProcessed: %v", err)
	}
	count, _ = db.CountUnprocessed(ctx)
	if count != 1 {
		t.Errorf("expected 1 unprocessed, got %d", count)
	}
}
