// Package database is the durable store of tenants, jobs, statistics and
// everything else the relay keeps between restarts.
package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

type Options struct {
	DSN       string
	SecretKey string
	Logger    *log.Logger
	// Now overrides the clock used for buckets and timestamps.
	Now func() time.Time
}

type Store struct {
	db      *gorm.DB
	dialect Dialect
	sealer  *sealer
	now     func() time.Time

	hookMu sync.RWMutex
	hooks  []func(context.Context, JobEvent)
}

// DialectFor reports which driver serves dsn.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// SQLitePath extracts the file path from a sqlite DSN such as
// "sqlite:///data/relay.db", "file:relay.db" or a bare path.
func SQLitePath(dsn string) string {
	p := dsn
	for _, prefix := range []string{"sqlite3://", "sqlite://", "file:"} {
		if strings.HasPrefix(p, prefix) {
			p = strings.TrimPrefix(p, prefix)
			break
		}
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(10000)")
	q.Add("_pragma", "journal_mode(wal)")
	return "file:" + path + "?" + q.Encode()
}

// Open connects to the store. It does not migrate; call Migrate afterwards.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.FromContext(ctx)
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("database: empty dsn")
	}
	dialect := DialectFor(opts.DSN)

	var dialector gorm.Dialector
	switch dialect {
	case DialectPostgres:
		dialector = postgres.Open(opts.DSN)
	default:
		path := SQLitePath(opts.DSN)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dialector = GetDialect(sqliteDSN(path))
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: glogger.New(logger, glogger.Config{
			Colorful:                  true,
			SlowThreshold:             time.Second * 5,
			LogLevel:                  glogger.Error,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
		PrepareStmt:    true,
		TranslateError: true,
		NowFunc:        func() time.Time { return now().UTC() },
	})
	if err != nil {
		return nil, translate(err, "database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dialect == DialectSQLite {
		// a single writer keeps sqlite from returning SQLITE_BUSY under load
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	sl, err := newSealer(opts.SecretKey)
	if err != nil {
		return nil, err
	}
	if sl == nil {
		logger.Warn("SECRET_KEY is empty, session blobs are stored unencrypted")
	}
	logger.Debug("Database connected", "dialect", dialect)
	return &Store{db: db, dialect: dialect, sealer: sl, now: now}, nil
}

func (s *Store) Dialect() Dialect { return s.dialect }

// DB exposes the underlying handle, mostly for tests and maintenance commands.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Now() time.Time { return s.now().UTC() }

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return translate(err, "database")
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) tx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// forUpdate locks selected rows where the dialect supports it.
func (s *Store) forUpdate(tx *gorm.DB) *gorm.DB {
	if s.dialect == DialectPostgres {
		return tx.Clauses(lockingUpdate)
	}
	return tx
}
