package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage persists provider settings and idempotency records
type SQLiteStorage struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// retryOperation executes a database operation with retry logic for SQLITE_BUSY errors
func (s *SQLiteStorage) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				// 10ms, 20ms, 40ms, 80ms
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				log.Printf("SQLite busy, retrying in %v (attempt %d/%d)", backoff, attempt+1, maxRetries+1)
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// NewSQLiteStorage opens (or creates) the database at dbPath
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	storage := &SQLiteStorage{
		db:   db,
		path: dbPath,
	}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := storage.optimizeForMultiProcess(); err != nil {
		log.Printf("Warning: Failed to apply optimizations: %v", err)
	}

	return storage, nil
}

// initSchema creates the necessary tables
func (s *SQLiteStorage) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS provider_settings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		provider_name TEXT NOT NULL,
		config_data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(kind, provider_name)
	);

	CREATE INDEX IF NOT EXISTS idx_kind_provider ON provider_settings(kind, provider_name);

	CREATE TRIGGER IF NOT EXISTS update_provider_settings_updated_at
		AFTER UPDATE ON provider_settings
	BEGIN
		UPDATE provider_settings SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
	END;

	CREATE TABLE IF NOT EXISTS idempotency_records (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_idempotency_expires ON idempotency_records(expires_at);
	`

	_, err := s.db.Exec(query)
	return err
}

// optimizeForMultiProcess applies SQLite optimizations for multi-process access
func (s *SQLiteStorage) optimizeForMultiProcess() error {
	optimizations := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA temp_store = memory;",
	}

	for _, pragma := range optimizations {
		if _, err := s.db.Exec(pragma); err != nil {
			log.Printf("Warning: Failed to execute %s: %v", pragma, err)
		}
	}

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}
	return nil
}

// SaveProviderSettings upserts the settings of one provider
func (s *SQLiteStorage) SaveProviderSettings(kind, providerName string, settings map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return s.retryOperation(func() error {
		query := `
		INSERT INTO provider_settings (kind, provider_name, config_data, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(kind, provider_name)
		DO UPDATE SET
			config_data = excluded.config_data,
			updated_at = CURRENT_TIMESTAMP
		`
		if _, err := s.db.Exec(query, kind, providerName, string(configJSON)); err != nil {
			return fmt.Errorf("failed to save provider settings: %w", err)
		}
		return nil
	}, 3)
}

// LoadProviderSettings returns ErrConfigNotFound when no row exists
func (s *SQLiteStorage) LoadProviderSettings(kind, providerName string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var settings map[string]string
	err := s.retryOperation(func() error {
		var configJSON string
		err := s.db.QueryRow(
			`SELECT config_data FROM provider_settings WHERE kind = ? AND provider_name = ?`,
			kind, providerName,
		).Scan(&configJSON)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s provider %s", ErrConfigNotFound, kind, providerName)
			}
			return fmt.Errorf("failed to load provider settings: %w", err)
		}
		if err := json.Unmarshal([]byte(configJSON), &settings); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		return nil
	}, 3)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// LoadAllProviderSettings returns every stored row keyed by settingsKey(kind, name)
func (s *SQLiteStorage) LoadAllProviderSettings() (map[string]map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT kind, provider_name, config_data FROM provider_settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider settings: %w", err)
	}
	defer rows.Close()

	all := make(map[string]map[string]string)
	for rows.Next() {
		var kind, name, configJSON string
		if err := rows.Scan(&kind, &name, &configJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var settings map[string]string
		if err := json.Unmarshal([]byte(configJSON), &settings); err != nil {
			log.Printf("Warning: skipping malformed settings for %s/%s: %v", kind, name, err)
			continue
		}
		all[settingsKey(kind, name)] = settings
	}
	return all, rows.Err()
}

// DeleteProviderSettings removes the settings of one provider
func (s *SQLiteStorage) DeleteProviderSettings(kind, providerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.retryOperation(func() error {
		result, err := s.db.Exec(`DELETE FROM provider_settings WHERE kind = ? AND provider_name = ?`, kind, providerName)
		if err != nil {
			return fmt.Errorf("failed to delete provider settings: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get affected rows: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s provider %s", ErrConfigNotFound, kind, providerName)
		}
		return nil
	}, 3)
}

// Load returns a stored idempotency record that has not expired
func (s *SQLiteStorage) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.retryOperation(func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT value FROM idempotency_records WHERE key = ? AND expires_at > ?`,
			key, time.Now().UnixNano(),
		).Scan(&value)
	}, 3)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load idempotency record: %w", err)
	}
	return value, true, nil
}

// Save stores an idempotency record for ttl
func (s *SQLiteStorage) Save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Now().Add(ttl).UnixNano()
	return s.retryOperation(func() error {
		_, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_records (key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		`, key, value, expiresAt)
		if err != nil {
			return fmt.Errorf("failed to save idempotency record: %w", err)
		}
		return nil
	}, 3)
}

// CleanupExpired deletes expired idempotency records and returns how many were removed
func (s *SQLiteStorage) CleanupExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	err := s.retryOperation(func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM idempotency_records WHERE expires_at <= ?`, time.Now().UnixNano())
		if err != nil {
			return err
		}
		removed, err = result.RowsAffected()
		return err
	}, 3)
	return removed, err
}

// GetStats returns basic statistics about the stored data
func (s *SQLiteStorage) GetStats() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := map[string]any{"database_path": s.path}

	var settings, records int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM provider_settings`).Scan(&settings); err != nil {
		return nil, fmt.Errorf("failed to count provider settings: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM idempotency_records`).Scan(&records); err != nil {
		return nil, fmt.Errorf("failed to count idempotency records: %w", err)
	}
	stats["provider_settings"] = settings
	stats["idempotency_records"] = records
	return stats, nil
}

// Ping checks the database connection
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
