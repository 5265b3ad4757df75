// Package store persists finished collection runs. Postgres is the system
// of record; Redis keeps a short-lived copy of the latest run per keyword
// for cheap polling. Redis being down degrades to Postgres-only operation.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/engine"
)

type Store struct {
	DB     *sql.DB
	redis  *redis.Client
	logger *log.Logger
}

// RunSummary is the listing row for past runs.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Keyword    string    `json:"keyword"`
	Reason     string    `json:"reason"`
	Items      int       `json:"items"`
	Actions    int       `json:"actions"`
	FinishedAt time.Time `json:"finished_at"`
}

// New connects to Postgres, ensures the schema, and attaches Redis when it
// is reachable.
func New(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	logger := log.New(log.Writer(), "[STORE] ", log.LstdFlags)

	db, err := sql.Open("postgres", postgresDSN(cfg.Postgres))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout(cfg.Postgres.Timeout))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{DB: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rctx, rcancel := context.WithTimeout(ctx, pingTimeout(cfg.Redis.Timeout))
		defer rcancel()
		if err := client.Ping(rctx).Err(); err != nil {
			logger.Printf("redis unavailable (%v), running without cache", err)
			client.Close()
		} else {
			s.redis = client
		}
	}
	return s, nil
}

func postgresDSN(cfg config.PostgresConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)
}

func pingTimeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return 5 * time.Second
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			keyword TEXT NOT NULL,
			reason TEXT NOT NULL,
			low_confidence BOOLEAN NOT NULL DEFAULT FALSE,
			actions_used INT NOT NULL,
			items_collected INT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL,
			result JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS runs_keyword_idx ON runs (keyword, finished_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun persists a finished run and refreshes the per-keyword cache.
func (s *Store) SaveRun(ctx context.Context, result *engine.RunResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO runs (run_id, keyword, reason, low_confidence, actions_used, items_collected, started_at, finished_at, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET result = EXCLUDED.result,
			reason = EXCLUDED.reason, finished_at = EXCLUDED.finished_at`,
		result.RunID, result.Keyword, string(result.Reason), result.LowConfidence,
		result.ActionsUsed, result.ItemsCollected, result.StartedAt, result.FinishedAt, payload)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if s.redis != nil {
		key := "radar:last_run:" + result.Keyword
		if err := s.redis.Set(ctx, key, payload, 24*time.Hour).Err(); err != nil {
			s.logger.Printf("cache write failed for %s: %v", key, err)
		}
	}
	return nil
}

// GetRun fetches one run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (engine.RunResult, bool, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT result FROM runs WHERE run_id = $1`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.RunResult{}, false, nil
	}
	if err != nil {
		return engine.RunResult{}, false, err
	}
	var result engine.RunResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return engine.RunResult{}, false, fmt.Errorf("unmarshal run %s: %w", runID, err)
	}
	return result, true, nil
}

// LatestRun returns the most recent run for a keyword, trying the cache
// before Postgres.
func (s *Store) LatestRun(ctx context.Context, keyword string) (engine.RunResult, bool, error) {
	if s.redis != nil {
		payload, err := s.redis.Get(ctx, "radar:last_run:"+keyword).Bytes()
		if err == nil {
			var result engine.RunResult
			if jerr := json.Unmarshal(payload, &result); jerr == nil {
				return result, true, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Printf("cache read failed for %q: %v", keyword, err)
		}
	}

	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT result FROM runs WHERE keyword = $1 ORDER BY finished_at DESC LIMIT 1`,
		keyword).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.RunResult{}, false, nil
	}
	if err != nil {
		return engine.RunResult{}, false, err
	}
	var result engine.RunResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return engine.RunResult{}, false, err
	}
	return result, true, nil
}

// ListRuns returns recent run summaries, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT run_id, keyword, reason, items_collected, actions_used, finished_at
		FROM runs ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Keyword, &r.Reason, &r.Items, &r.Actions, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateUser registers API credentials. The hash is a bcrypt digest.
func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2)`, email, hash)
	return err
}

// GetUserByEmail returns the stored credentials for login verification.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = $1`, email).Scan(&id, &hash)
	return id, hash, err
}

// Close releases both connections.
func (s *Store) Close() error {
	if s.redis != nil {
		s.redis.Close()
	}
	return s.DB.Close()
}
