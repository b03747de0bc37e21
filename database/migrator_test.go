package database

import (
	"testing"
	"testing/fstest"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/002_rates.sql":  {Data: []byte("SELECT 1;")},
		"migrations/001_init.sql":   {Data: []byte("SELECT 1;")},
		"migrations/010_quotes.sql": {Data: []byte("SELECT 1;")},
		"migrations/README.md":      {Data: []byte("notes")},
	}

	tests := []struct {
		name    string
		current int
		want    []int
	}{
		{"new database", 0, []int{1, 2, 10}},
		{"partly migrated", 2, []int{10}},
		{"up to date", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pendingMigrations(fsys, tt.current)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, wanted versions %v", got, tt.want)
			}
			for i, m := range got {
				if m.version != tt.want[i] {
					t.Errorf("got %v, wanted versions %v", got, tt.want)
				}
			}
		})
	}
}

func TestPendingMigrationsRejects(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"no version", fstest.MapFS{"migrations/init.sql": {}}},
		{"duplicate version", fstest.MapFS{"migrations/001_a.sql": {}, "migrations/1_b.sql": {}}},
		{"no directory", fstest.MapFS{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := pendingMigrations(tt.fsys, 0); err == nil {
				t.Errorf("expected an error")
			}
		})
	}
}
