package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"gorm.io/gorm"
)

// newTestDB connects to the database named by OUTREACH_TEST_DATABASE_URL and
// resets the schema. Tests are skipped when the variable is unset so the
// suite stays runnable without infrastructure.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	databaseURL := os.Getenv("OUTREACH_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("OUTREACH_TEST_DATABASE_URL not set; start postgres and export it")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)

	db, err := Connect(ctx, databaseURL, 4)
	if err != nil {
		t.Fatalf("connect test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
	})

	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	for _, table := range []string{"outbound_touches", "contacts_master", "job_locks", "system_state"} {
		if err := db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("reset table %s: %v", table, err)
		}
	}
	return db
}
