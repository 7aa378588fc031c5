package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"alumninet/internal/config"
	"alumninet/internal/db"
	"alumninet/internal/models"

	"gorm.io/gorm"
)

var dbSeq atomic.Int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	gdb, err := db.Connect("sqlite", dsn)
	if err != nil {
		t.Fatalf("connect sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func testConfig() config.Config {
	return config.Config{JWTSecret: "test-secret", Env: "dev", AccessTokenTTLMinutes: 15}
}

func seedStudent(t *testing.T, gdb *gorm.DB, email string) *models.Student {
	t.Helper()
	st := &models.Student{FullName: "Student " + email, Email: email, PasswordHash: "x"}
	if err := gdb.Create(st).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
	return st
}

func seedAlumnus(t *testing.T, gdb *gorm.DB, email string) *models.Alumnus {
	t.Helper()
	al := &models.Alumnus{Name: "Alumnus " + email, Email: email, PasswordHash: "x", GraduationYear: 2015}
	if err := gdb.Create(al).Error; err != nil {
		t.Fatalf("seed alumnus: %v", err)
	}
	return al
}

func mustState(t *testing.T, g *Graph, studentID, alumnusID string) models.LinkState {
	t.Helper()
	st, err := g.State(context.Background(), studentID, alumnusID)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	return st
}
