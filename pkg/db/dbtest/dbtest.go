// Package dbtest opens throwaway SQLite databases carrying the matching schema
// so repositories can be exercised without Postgres.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE customers (
  id TEXT PRIMARY KEY,
  full_name TEXT NOT NULL,
  email TEXT,
  phone TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE personnel (
  id TEXT PRIMARY KEY,
  full_name TEXT NOT NULL,
  email TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
);`,
	`CREATE TABLE customer_requests (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  personnel_id TEXT,
  category TEXT NOT NULL,
  sub_category TEXT,
  min_area REAL,
  max_area REAL,
  min_price TEXT,
  max_price TEXT,
  currency TEXT NOT NULL,
  location_preferences TEXT,
  special_requirements TEXT,
  status TEXT NOT NULL,
  priority TEXT NOT NULL,
  target_date DATETIME,
  last_follow_up_at DATETIME,
  deleted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE properties (
  id TEXT PRIMARY KEY,
  category TEXT NOT NULL,
  sub_category TEXT,
  title TEXT NOT NULL,
  price TEXT,
  currency TEXT NOT NULL,
  area REAL,
  status TEXT NOT NULL,
  city_id TEXT,
  district_id TEXT,
  subdistrict_id TEXT,
  neighborhood_id TEXT,
  published_at DATETIME,
  is_active INTEGER NOT NULL DEFAULT 1,
  sort_order INTEGER NOT NULL DEFAULT 0,
  deleted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE property_attributes (
  id TEXT PRIMARY KEY,
  property_id TEXT NOT NULL,
  key TEXT NOT NULL,
  value TEXT NOT NULL
);`,
	`CREATE TABLE request_property_matches (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL,
  property_id TEXT NOT NULL,
  score REAL NOT NULL,
  breakdown TEXT NOT NULL,
  status TEXT NOT NULL,
  personnel_note TEXT,
  presented_at DATETIME,
  presented_by TEXT,
  customer_feedback TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  deactivated_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE UNIQUE INDEX idx_request_property_matches_active_pair
  ON request_property_matches (request_id, property_id) WHERE is_active = 1;`,
	`CREATE TABLE request_activities (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  recipient_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  body TEXT NOT NULL,
  request_id TEXT,
  match_id TEXT,
  score REAL,
  extra TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE notification_preferences (
  recipient_id TEXT NOT NULL,
  channel TEXT NOT NULL,
  enabled INTEGER NOT NULL,
  updated_at DATETIME,
  PRIMARY KEY (recipient_id, channel)
);`,
}

// Open returns a private in-memory database with every table created.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// A single connection keeps SQLite from reporting table locks when
	// goroutines write concurrently.
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return conn
}
