package db

import (
	"strings"
	"testing"

	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/models"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := OpenMemory()
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "default local",
			host:     "127.0.0.1",
			port:     3306,
			database: "atrium",
			want:     "root@tcp(127.0.0.1:3306)/atrium?parseTime=true",
		},
		{
			name:     "custom host and port",
			host:     "10.0.0.5",
			port:     3307,
			database: "atrium_prod",
			want:     "root@tcp(10.0.0.5:3307)/atrium_prod?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.host, tt.port, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DBConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unsupported driver")
	}
}

func TestOpen_MySQLError(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := Open(config.DBConfig{Driver: "mysql", Host: "127.0.0.1", Port: 1, Database: "none"})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}

func TestConnectAdmin_Error(t *testing.T) {
	_, err := ConnectAdmin("127.0.0.1", 1)
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: admin connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: admin connect to")
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 3 {
		t.Errorf("AllModels() returned %d models, want 3", got)
	}
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	gdb := testDB(t)

	for _, table := range []string{"rooms", "session_room_assignments", "room_assignment_rules"} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("table %q not created", table)
		}
	}
}

func TestSeedHQ_FreshDatabase(t *testing.T) {
	gdb := testDB(t)

	if err := SeedHQ(gdb); err != nil {
		t.Fatalf("SeedHQ: %v", err)
	}

	var rooms []models.Room
	if err := gdb.Where("is_hq = ?", true).Find(&rooms).Error; err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 {
		t.Fatalf("hq room count = %d, want 1", len(rooms))
	}
	if rooms[0].Name != "HQ" {
		t.Errorf("hq name = %q, want %q", rooms[0].Name, "HQ")
	}
	if rooms[0].SortOrder != 0 {
		t.Errorf("hq sort order = %d, want 0", rooms[0].SortOrder)
	}
	if rooms[0].ID == "" {
		t.Error("hq room has empty id")
	}
}

func TestSeedHQ_Idempotent(t *testing.T) {
	gdb := testDB(t)

	if err := SeedHQ(gdb); err != nil {
		t.Fatalf("first SeedHQ: %v", err)
	}
	var first models.Room
	if err := gdb.Where("is_hq = ?", true).First(&first).Error; err != nil {
		t.Fatal(err)
	}

	if err := SeedHQ(gdb); err != nil {
		t.Fatalf("second SeedHQ: %v", err)
	}

	var count int64
	if err := gdb.Model(&models.Room{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("room count after reseed = %d, want 1", count)
	}
	var second models.Room
	if err := gdb.Where("is_hq = ?", true).First(&second).Error; err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("hq id changed on reseed: %q -> %q", first.ID, second.ID)
	}
}

func TestSeedHQ_ExistingHQUntouched(t *testing.T) {
	gdb := testDB(t)

	custom := models.Room{ID: "room-custom", Name: "Command Center", IsHQ: true}
	if err := gdb.Create(&custom).Error; err != nil {
		t.Fatal(err)
	}

	if err := SeedHQ(gdb); err != nil {
		t.Fatalf("SeedHQ: %v", err)
	}

	var rooms []models.Room
	if err := gdb.Find(&rooms).Error; err != nil {
		t.Fatal(err)
	}
	if len(rooms) != 1 {
		t.Fatalf("room count = %d, want 1", len(rooms))
	}
	if rooms[0].Name != "Command Center" {
		t.Errorf("existing hq renamed to %q", rooms[0].Name)
	}
}
