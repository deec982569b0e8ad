// Package dbtest opens throwaway sqlite databases carrying the credit ledger schema.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/creditledger/internal/migration/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns an isolated in-memory database with the schema applied.
// Row locks are stripped from queries and the pool is pinned to one
// connection, so transactions run strictly one after another.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	stripLocks := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	if err := db.Callback().Query().Before("gorm:query").Register("dbtest:strip_locks", stripLocks); err != nil {
		t.Fatalf("register query callback: %v", err)
	}
	if err := db.Callback().Row().Before("gorm:row").Register("dbtest:strip_locks_row", stripLocks); err != nil {
		t.Fatalf("register row callback: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := schema.Apply(db, schema.SQLite); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}
