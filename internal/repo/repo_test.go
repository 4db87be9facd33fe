package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"homeline/internal/config"
	"homeline/internal/db"
	"homeline/internal/domain"
	"homeline/internal/migrate"
	"homeline/internal/repo"
)

func newRepo(t *testing.T) (repo.Repo, *sql.DB) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, conn
}

func insertProperty(t *testing.T, r repo.Repo, id, city, createdAt string) {
	t.Helper()
	err := r.InsertProperty(context.Background(), domain.Property{
		ID:        id,
		Title:     "Listing " + id,
		Address:   "1 Main St",
		City:      city,
		Price:     400000,
		Status:    "draft",
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
}

func TestPropertyRoundTrip(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
	p := domain.Property{
		ID:          "prop-1",
		Title:       "Sunny 3BR apartment",
		Description: "River views",
		Address:     "12 Riverside Ave",
		City:        "Lisbon",
		Price:       500000,
		Bedrooms:    3,
		Bathrooms:   2,
		AreaSqm:     120,
		Images:      []string{"front.jpg", "kitchen.jpg"},
		Status:      "draft",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.InsertProperty(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := r.GetProperty(ctx, "prop-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.City != "Lisbon" || len(got.Images) != 2 || got.Price != 500000 {
		t.Fatalf("property did not round-trip: %+v", got)
	}

	got.Price = 520000
	got.UpdatedAt = now
	if err := r.UpdateProperty(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, err := r.GetProperty(ctx, "prop-1")
	if err != nil || again.Price != 520000 {
		t.Fatalf("update not visible: %v %v", again.Price, err)
	}

	if err := r.DeleteProperty(ctx, "prop-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetProperty(ctx, "prop-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.DeleteProperty(ctx, "prop-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestListPropertiesCursorPagination(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertProperty(t, r, fmt.Sprintf("prop-%d", i), "Lisbon", base.Add(time.Duration(i)*time.Minute).Format(time.RFC3339))
	}
	insertProperty(t, r, "prop-porto", "Porto", base.Format(time.RFC3339))

	first, err := r.ListProperties(ctx, repo.PropertyFilters{City: "Lisbon", Limit: 3})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 3 || first[0].ID != "prop-4" {
		t.Fatalf("expected newest first, got %+v", first)
	}
	last := first[len(first)-1]
	rest, err := r.ListProperties(ctx, repo.PropertyFilters{
		City:            "Lisbon",
		Limit:           10,
		CursorCreatedAt: last.CreatedAt,
		CursorID:        last.ID,
	})
	if err != nil {
		t.Fatalf("list after cursor: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected remaining 2, got %d", len(rest))
	}
	for _, p := range rest {
		if p.CreatedAt >= last.CreatedAt {
			t.Fatalf("cursor leaked newer row %s", p.ID)
		}
	}
}

func TestPipelineConfigPerProperty(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	custom := config.Default()
	custom.Pipeline.QualityThreshold = 60
	if err := r.UpsertPipelineConfig(ctx, "prop-1", custom); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := r.GetPipelineConfig(ctx, "prop-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Pipeline.QualityThreshold != 60 {
		t.Fatalf("expected override, got %d", got.Pipeline.QualityThreshold)
	}

	// Overwrite wins.
	custom.Pipeline.QualityThreshold = 50
	if err := r.UpsertPipelineConfig(ctx, "prop-1", custom); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err = r.GetPipelineConfig(ctx, "prop-1")
	if err != nil || got.Pipeline.QualityThreshold != 50 {
		t.Fatalf("expected overwrite, got %+v %v", got, err)
	}

	if _, err := r.GetPipelineConfig(ctx, "prop-other"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Invalid configs never land in the database.
	bad := config.Default()
	bad.Pipeline.RetryLimit = 0
	if err := r.UpsertPipelineConfig(ctx, "prop-2", bad); err == nil {
		t.Fatalf("invalid config must be rejected")
	}
}

func TestEventsCursors(t *testing.T) {
	r, conn := newRepo(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
	for i := 0; i < 5; i++ {
		_, err := conn.ExecContext(ctx, `INSERT INTO events(ts,type,property_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
			ts, "workflow.suspended", "prop-1", "workflow", "prop-1", "tester", "{}")
		if err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	latest, err := r.LatestEvents(ctx, 2, "prop-1", "", "", "")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(latest) != 2 || latest[0].ID <= latest[1].ID {
		t.Fatalf("expected newest first, got %+v", latest)
	}

	older, err := r.LatestEventsFrom(ctx, 10, latest[1].ID, "prop-1", "", "", "")
	if err != nil {
		t.Fatalf("latest from: %v", err)
	}
	for _, e := range older {
		if e.ID >= latest[1].ID {
			t.Fatalf("cursor leaked event %d", e.ID)
		}
	}

	forward, err := r.EventsAfter(ctx, 10, 0, "prop-1")
	if err != nil {
		t.Fatalf("after: %v", err)
	}
	if len(forward) != 5 || forward[0].ID >= forward[4].ID {
		t.Fatalf("expected ascending delivery order, got %+v", forward)
	}

	maxID, err := r.LatestEventID(ctx, "prop-1")
	if err != nil || maxID != forward[4].ID {
		t.Fatalf("latest id = %d (%v), want %d", maxID, err, forward[4].ID)
	}
}

func TestWebhookCursorPersistence(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	id, err := r.GetWebhookCursor(ctx, "https://hooks.example.com/a")
	if err != nil || id != 0 {
		t.Fatalf("fresh cursor = %d (%v), want 0", id, err)
	}
	if err := r.SetWebhookCursor(ctx, "https://hooks.example.com/a", 7); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := r.SetWebhookCursor(ctx, "https://hooks.example.com/a", 12); err != nil {
		t.Fatalf("advance: %v", err)
	}
	id, err = r.GetWebhookCursor(ctx, "https://hooks.example.com/a")
	if err != nil || id != 12 {
		t.Fatalf("cursor = %d (%v), want 12", id, err)
	}
	// Cursors are independent per URL.
	id, err = r.GetWebhookCursor(ctx, "https://hooks.example.com/b")
	if err != nil || id != 0 {
		t.Fatalf("other cursor = %d (%v), want 0", id, err)
	}
}

func TestAPIKeyLookupByHash(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	plaintext := "hl_deadbeef"
	key := domain.APIKey{
		ID:      "key-1",
		ActorID: "broker-1",
		Name:    "laptop",
		KeyHash: repo.HashAPIKey(plaintext),
	}
	if err := r.InsertAPIKey(ctx, nil, key); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(plaintext))
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if got.ActorID != "broker-1" || got.Name != "laptop" {
		t.Fatalf("unexpected key: %+v", got)
	}
	if _, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("hl_other")); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	keys, err := r.ListAPIKeys(ctx, "broker-1")
	if err != nil || len(keys) != 1 {
		t.Fatalf("list: %v %d", err, len(keys))
	}
	if err := r.DeleteAPIKey(ctx, "key-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	keys, err = r.ListAPIKeys(ctx, "")
	if err != nil || len(keys) != 0 {
		t.Fatalf("expected empty list after delete, got %d (%v)", len(keys), err)
	}
	if err := r.DeleteAPIKey(ctx, "key-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("deleting a revoked key again must report ErrNotFound, got %v", err)
	}
}
