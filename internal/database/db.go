package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool manages database connection pooling
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

// NewConnectionPool creates a new database connection pool
func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// NewDB creates a new database connection with optimized pooling
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "praise.db")

	connStr := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pool := NewConnectionPool(db, 25, 5, 5*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := database.initPreparedStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized with connection pooling",
		"max_open_conns", pool.maxOpenConns,
		"max_idle_conns", pool.maxIdleConns,
		"max_lifetime", pool.maxLifetime)

	return database, nil
}

// migrate creates the necessary tables
func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS organizations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS contributors (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			name TEXT,
			avatar_url TEXT,
			organization_id TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		// Rating history. One row per rated PR; re-rating the same PR
		// replaces the previous row rather than accumulating duplicates.
		`CREATE TABLE IF NOT EXISTS pr_ratings (
			id TEXT PRIMARY KEY,
			pr_id TEXT NOT NULL UNIQUE,
			contributor_id TEXT NOT NULL,
			organization_id TEXT NOT NULL,
			total_score INTEGER NOT NULL,
			rating_level TEXT NOT NULL,
			rating_json TEXT NOT NULL,
			pr_url TEXT,
			pr_number INTEGER,
			repository TEXT,
			pr_created_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_contributors_username ON contributors(username)`,
		`CREATE INDEX IF NOT EXISTS idx_contributors_org ON contributors(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pr_ratings_contributor ON pr_ratings(contributor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pr_ratings_org ON pr_ratings(organization_id)`,
		`CREATE INDEX IF NOT EXISTS idx_pr_ratings_score ON pr_ratings(total_score DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_pr_ratings_created ON pr_ratings(pr_created_at DESC)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}

// initPreparedStatements initializes frequently used prepared statements
func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_rating": `INSERT INTO pr_ratings (
			id, pr_id, contributor_id, organization_id, total_score, rating_level,
			rating_json, pr_url, pr_number, repository, pr_created_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pr_id) DO UPDATE SET
			total_score = excluded.total_score,
			rating_level = excluded.rating_level,
			rating_json = excluded.rating_json,
			pr_url = excluded.pr_url,
			pr_number = excluded.pr_number,
			created_at = excluded.created_at`,

		"get_ratings_by_contributor": `SELECT id, pr_id, contributor_id, organization_id,
			total_score, rating_level, rating_json, pr_url, pr_number, repository,
			pr_created_at, created_at
			FROM pr_ratings WHERE contributor_id = ? ORDER BY pr_created_at DESC`,

		"get_ratings_by_org": `SELECT id, pr_id, contributor_id, organization_id,
			total_score, rating_level, rating_json, pr_url, pr_number, repository,
			pr_created_at, created_at
			FROM pr_ratings WHERE organization_id = ? ORDER BY pr_created_at DESC`,

		"get_contributor": `SELECT id, username, name, avatar_url, organization_id, created_at, updated_at
			FROM contributors WHERE id = ?`,

		"get_contributor_by_username": `SELECT id, username, name, avatar_url, organization_id, created_at, updated_at
			FROM contributors WHERE username = ? ORDER BY created_at ASC LIMIT 1`,

		"get_contributors_by_org": `SELECT id, username, name, avatar_url, organization_id, created_at, updated_at
			FROM contributors WHERE organization_id = ? ORDER BY username ASC`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt

		slog.Debug("Prepared statement initialized", "name", name)
	}

	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}

	return stmt, nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the database connection and prepared statements
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}

	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
