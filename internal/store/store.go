// Package store persists users and signed holdings transactions in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pressly/goose/v3"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/run-bigpig/watchdog/internal/embed"
	"github.com/run-bigpig/watchdog/internal/logger"
	"github.com/run-bigpig/watchdog/internal/models"
	"github.com/run-bigpig/watchdog/internal/pkg/paths"
)

var log = logger.New("store")

var (
	ErrUserExists   = goerr.New("user already exists")
	ErrInvalidInput = goerr.New("invalid input")
)

// Store SQLite-backed user and holdings store
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies migrations
func Open(ctx context.Context, path string) (*Store, error) {
	if _, err := paths.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("path", path))
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}
	// single writer
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info("database ready at %s", path)
	return &Store{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	migrations, err := fs.Sub(embed.Migrations, embed.MigrationsDir)
	if err != nil {
		return goerr.Wrap(err, "failed to load migrations")
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return goerr.Wrap(err, "failed to create migration provider")
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to run migrations")
	}
	for _, r := range results {
		log.Debug("applied migration %s", r.Source.Path)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser registers a user with a bcrypt password hash
func (s *Store) CreateUser(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return goerr.Wrap(ErrInvalidInput, "username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return goerr.Wrap(err, "failed to hash password")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`,
		username, string(hash), s.now().UTC())
	if err != nil {
		return goerr.Wrap(err, "failed to insert user", goerr.V("username", username))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to read insert result")
	}
	if n == 0 {
		return goerr.Wrap(ErrUserExists, "cannot create user", goerr.V("username", username))
	}
	return nil
}

// VerifyCredentials reports whether the password matches. Unknown users are
// not an error.
func (s *Store) VerifyCredentials(ctx context.Context, username, password string) (bool, error) {
	var hash string
	err := s.db.GetContext(ctx, &hash, `SELECT password_hash FROM users WHERE username = ?`, strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to load user", goerr.V("username", username))
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, nil
}

// UserExists reports whether a user is registered
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE username = ?`, strings.TrimSpace(username)); err != nil {
		return false, goerr.Wrap(err, "failed to look up user", goerr.V("username", username))
	}
	return n > 0, nil
}

// RecordTransaction appends a signed quantity; positive buys, negative sells
func (s *Store) RecordTransaction(ctx context.Context, username, symbol string, quantity float64) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if username == "" || symbol == "" {
		return goerr.Wrap(ErrInvalidInput, "username and symbol are required")
	}
	if quantity == 0 {
		return goerr.Wrap(ErrInvalidInput, "quantity must be non-zero", goerr.V("symbol", symbol))
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO holdings (username, ticker, shares, created_at) VALUES (?, ?, ?, ?)`,
		username, symbol, quantity, s.now().UTC())
	if err != nil {
		return goerr.Wrap(err, "failed to record transaction",
			goerr.V("username", username), goerr.V("symbol", symbol), goerr.V("quantity", quantity))
	}
	log.Debug("recorded %s %v %s", username, quantity, symbol)
	return nil
}

// GetPositions net holdings per symbol, only those above zero, ordered by symbol
func (s *Store) GetPositions(ctx context.Context, username string) ([]models.Position, error) {
	positions := []models.Position{}
	err := s.db.SelectContext(ctx, &positions,
		`SELECT ticker, SUM(shares) AS shares
		 FROM holdings
		 WHERE username = ?
		 GROUP BY ticker
		 HAVING SUM(shares) > 0
		 ORDER BY ticker`, username)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load positions", goerr.V("username", username))
	}
	return positions, nil
}

// History all transactions of a user, oldest first
func (s *Store) History(ctx context.Context, username string) ([]models.Transaction, error) {
	txs := []models.Transaction{}
	err := s.db.SelectContext(ctx, &txs,
		`SELECT id, username, ticker, shares, created_at FROM holdings WHERE username = ? ORDER BY id`, username)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load history", goerr.V("username", username))
	}
	return txs, nil
}
