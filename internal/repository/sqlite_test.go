package repository

import (
	"context"
	"testing"
	"time"

	"github.com/mr1hm/go-shelter-finder/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteDB {
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	return db
}

func testShelters() []models.Shelter {
	return []models.Shelter{
		{ID: "1", Name: "東小学校", Address: "寝屋川市太秦元町2-1", Phone: "072-825-9001", Latitude: 34.7666, Longitude: 135.6281, Types: []models.HazardType{models.HazardEarthquake, models.HazardFlood}, TypesInferred: true},
		{ID: "3", Name: "市民会館", Address: "寝屋川市秦町41-1", Latitude: 34.7680, Longitude: 135.6290, Types: []models.HazardType{models.HazardTsunami}},
		{ID: "2", Name: "第一中学校", Address: "寝屋川市高宮新町32-1", Latitude: 34.7650, Longitude: 135.6270, Types: []models.HazardType{models.HazardFlood}},
	}
}

func TestSQLiteDB_ReplaceAndGetShelter(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	if err := db.ReplaceShelters(ctx, "bundled", testShelters()); err != nil {
		t.Fatalf("ReplaceShelters failed: %v", err)
	}

	got, err := db.GetShelter(ctx, "bundled", "1")
	if err != nil {
		t.Fatalf("GetShelter failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected shelter, got nil")
	}
	if got.Name != "東小学校" || got.Phone != "072-825-9001" || got.Source != "bundled" {
		t.Errorf("unexpected shelter %+v", got)
	}
	if len(got.Types) != 2 || got.Types[1] != models.HazardFlood {
		t.Errorf("expected types to round trip, got %v", got.Types)
	}
	if !got.TypesInferred {
		t.Error("expected TypesInferred to round trip")
	}
	if got.Distance != nil {
		t.Error("stored shelters must not carry a distance")
	}

	missing, err := db.GetShelter(ctx, "bundled", "99")
	if err != nil {
		t.Fatalf("GetShelter failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing shelter, got %+v", missing)
	}
}

func TestSQLiteDB_ListShelters_OrderedByPosition(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	db.ReplaceShelters(ctx, "bundled", testShelters())

	results, err := db.ListShelters(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListShelters failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 shelters, got %d", len(results))
	}
	for i, want := range []string{"1", "2", "3"} {
		if results[i].ID != want {
			t.Errorf("position %d: expected id %s, got %s", i, want, results[i].ID)
		}
	}
}

func TestSQLiteDB_ListShelters_WithFilters(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	db.ReplaceShelters(ctx, "bundled", testShelters())
	db.ReplaceShelters(ctx, "file:extra.csv", []models.Shelter{
		{ID: "1", Name: "Extra", Address: "somewhere", Latitude: 35, Longitude: 135, Types: []models.HazardType{models.HazardFlood}},
	})

	// Test source filter
	results, err := db.ListShelters(ctx, Filter{Source: "file:extra.csv"})
	if err != nil {
		t.Fatalf("ListShelters failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 shelter for source, got %d", len(results))
	}

	// Test type filter
	flood := models.HazardFlood
	results, err = db.ListShelters(ctx, Filter{Type: &flood})
	if err != nil {
		t.Fatalf("ListShelters failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 flood shelters, got %d", len(results))
	}

	// Test limit
	results, err = db.ListShelters(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("ListShelters failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 shelters with limit, got %d", len(results))
	}
}

func TestSQLiteDB_ReplaceShelters_DropsOldSnapshot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	db.ReplaceShelters(ctx, "bundled", testShelters())
	if err := db.ReplaceShelters(ctx, "bundled", testShelters()[:1]); err != nil {
		t.Fatalf("ReplaceShelters failed: %v", err)
	}

	results, err := db.ListShelters(ctx, Filter{Source: "bundled"})
	if err != nil {
		t.Fatalf("ListShelters failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected snapshot of 1 shelter, got %d", len(results))
	}

	// Empty snapshot clears the source
	if err := db.ReplaceShelters(ctx, "bundled", nil); err != nil {
		t.Fatalf("ReplaceShelters failed: %v", err)
	}
	results, _ = db.ListShelters(ctx, Filter{})
	if len(results) != 0 {
		t.Errorf("expected no shelters, got %d", len(results))
	}
}

func TestSQLiteDB_SyncStatus(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	syncedAt := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	if err := db.SaveSyncStatus(ctx, models.SyncStatus{Source: "bundled", Shelters: 3, Skipped: 1, SyncedAt: syncedAt}); err != nil {
		t.Fatalf("SaveSyncStatus failed: %v", err)
	}
	// Upsert
	if err := db.SaveSyncStatus(ctx, models.SyncStatus{Source: "bundled", Shelters: 2, Skipped: 0, SyncedAt: syncedAt.Add(time.Hour)}); err != nil {
		t.Fatalf("SaveSyncStatus failed: %v", err)
	}

	statuses, err := db.ListSyncStatus(ctx)
	if err != nil {
		t.Fatalf("ListSyncStatus failed: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	got := statuses[0]
	if got.Shelters != 2 || got.Skipped != 0 {
		t.Errorf("expected upserted counts, got %+v", got)
	}
	if !got.SyncedAt.Equal(syncedAt.Add(time.Hour)) {
		t.Errorf("expected synced_at %v, got %v", syncedAt.Add(time.Hour), got.SyncedAt)
	}
}

func TestSQLiteDB_Settings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()

	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != models.DefaultSettings() {
		t.Errorf("expected defaults before first save, got %+v", got)
	}

	want := models.Settings{Notifications: false, LocationServices: true, OfflineMode: true}
	if err := db.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err = db.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestDecodeSettings_MissingKeysKeepDefaults(t *testing.T) {
	got, err := decodeSettings(`{"offlineMode": true}`)
	if err != nil {
		t.Fatalf("decodeSettings failed: %v", err)
	}
	want := models.Settings{Notifications: true, LocationServices: true, OfflineMode: true}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	if _, err := decodeSettings("not json"); err == nil {
		t.Error("expected error for malformed document")
	}
}

func TestSQLiteDB_ListShelters_Offset(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	db.ReplaceShelters(ctx, "bundled", testShelters())

	results, err := db.ListShelters(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListShelters failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "2" {
		t.Errorf("expected only shelter 2, got %+v", results)
	}
}
