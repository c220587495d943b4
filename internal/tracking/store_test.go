package tracking

import (
	"context"
	"database/sql"
	"testing"

	"github.com/nerrad567/geowatch-core/internal/infrastructure/database"
	"github.com/nerrad567/geowatch-core/migrations"
)

// setupTestDB opens an in-memory database with the production schema and
// seeds two events: evt-1 (active, centered on 0,0, radius 50m, 1 minute
// limit) and evt-done (completed).
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	ctx := context.Background()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	const seed = `
		INSERT INTO events (id, name, center_latitude, center_longitude, radius_meters, max_time_outside_minutes, lifecycle) VALUES
			('evt-1', 'Park Cleanup', 0, 0, 50, 1, 'active'),
			('evt-done', 'Last Year', 0, 0, 50, 1, 'completed');

		INSERT INTO attendance (id, event_id, participant_id, status, check_in_time) VALUES
			('att-1', 'evt-1', 'p-1', 'checked_in', '2026-03-01T09:00:00Z'),
			('att-2', 'evt-1', 'p-2', 'checked_in', '2026-03-01T09:00:00Z'),
			('att-3', 'evt-1', 'p-3', 'checked_out', '2026-03-01T09:00:00Z'),
			('att-4', 'evt-1', 'p-4', 'registered', NULL),
			('att-9', 'evt-done', 'p-1', 'checked_in', '2026-03-01T09:00:00Z');
	`
	if _, err := db.ExecContext(ctx, seed); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	return db.DB
}
