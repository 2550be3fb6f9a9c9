package db

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewTestDB открывает отдельную SQLite базу в памяти с примененными миграциями
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	orm, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := Migrate(orm); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := orm.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return orm
}
