package testutil

import (
	"testing"

	"coursesync/internal/database"
)

// NewTestDatabase opens a migrated in-memory snapshot store that is closed
// when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		t.Fatalf("failed to migrate database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
