package testutil

import (
	"os"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/commercecrafted-backend/internal/data/db"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

var (
	dbOnce sync.Once
	gdb    *gorm.DB
	dbErr  error
)

// Logger is silent unless TEST_LOG_MODE is set.
func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	mode := strings.TrimSpace(os.Getenv("TEST_LOG_MODE"))
	if mode == "" {
		return logger.Nop()
	}
	l, err := logger.New(mode)
	if err != nil {
		tb.Fatalf("init logger: %v", err)
	}
	return l
}

// DB returns a migrated database shared by the package's tests. Tests skip when
// TEST_POSTGRES_DSN is unset.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	dbOnce.Do(func() {
		pg, err := db.NewPostgresService(logger.Nop(), dsn)
		if err != nil {
			dbErr = err
			return
		}
		gdb = pg.DB()
		dbErr = db.AutoMigrateAll(gdb)
	})
	if dbErr != nil {
		tb.Fatalf("init test db: %v", dbErr)
	}
	return gdb
}

// Tx opens a transaction that is rolled back when the test ends.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() { tx.Rollback() })
	return tx
}
