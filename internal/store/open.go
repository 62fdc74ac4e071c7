package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	// ErrNoDatabaseURL means no database URL was configured.
	ErrNoDatabaseURL = errors.New("database url is not set")
	// ErrUnsupportedURL means the URL scheme has no driver in this build.
	ErrUnsupportedURL = errors.New("unsupported database url")
)

// Driver names returned by DriverFor.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options controls how Open connects.
type Options struct {
	URL          string
	AuthToken    string
	MaxOpenConns int
	MaxIdleConns int
	SlowQuery    time.Duration
}

// Open connects to the database named by opts.URL and verifies the
// connection. It does not create the schema; call Bootstrap for that.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dialector, driver, err := dialectorFor(opts.URL, opts.AuthToken)
	if err != nil {
		return nil, err
	}

	slow := opts.SlowQuery
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError:         true,
		SkipDefaultTransaction: true,
		Logger: logger.New(slogWriter{}, logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 && driver == DriverSQLite {
		// one writer at a time; the busy timeout covers the rest
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	slog.Info("connected to database", "driver", driver)
	return New(db), nil
}

// DriverFor names the driver Open would use for rawURL.
func DriverFor(rawURL string) (string, error) {
	_, driver, err := dialectorFor(rawURL, "")
	return driver, err
}

func dialectorFor(rawURL, token string) (gorm.Dialector, string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, "", ErrNoDatabaseURL
	}

	scheme := ""
	if i := strings.Index(rawURL, "://"); i > 0 {
		scheme = strings.ToLower(rawURL[:i])
	}

	switch scheme {
	case "postgres", "postgresql":
		dsn, err := postgresDSN(rawURL, token)
		if err != nil {
			return nil, "", err
		}
		return postgres.Open(dsn), DriverPostgres, nil
	case "sqlite", "sqlite3":
		return sqlite.Open(SQLiteDSN(rawURL[len(scheme)+3:])), DriverSQLite, nil
	case "file", "":
		// go-sqlite3 opens file: URIs itself, authority and all.
		return sqlite.Open(SQLiteDSN(rawURL)), DriverSQLite, nil
	default:
		return nil, "", fmt.Errorf("%w: scheme %q", ErrUnsupportedURL, scheme)
	}
}

func postgresDSN(rawURL, token string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	if token != "" {
		if _, hasPassword := u.User.Password(); !hasPassword {
			u.User = url.UserPassword(u.User.Username(), token)
		}
	}
	return u.String(), nil
}

// SQLiteDSN adds the busy timeout and WAL journal to a SQLite path so
// concurrent writers wait on each other instead of failing.
func SQLiteDSN(path string) string {
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		return path
	}
	params := "_busy_timeout=5000&_journal_mode=WAL"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// slogWriter routes gorm's logger output into slog.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...interface{}) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}
