//go:build sqlite_glebarez

package database

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// GetDialect returns the pure-go sqlite dialector, used when cgo-free wasm is unwanted.
func GetDialect(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}
