package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a rule id does not exist.
var ErrNotFound = errors.New("rule not found")

// Store persists custom redaction rules.
type Store interface {
	List(ctx context.Context) ([]Rule, error)
	Get(ctx context.Context, id int64) (*Rule, error)
	Create(ctx context.Context, rule *Rule) error
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id int64) error
	Close() error
}

// MemoryStore keeps rules in process memory. It is the default when no
// database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	rules  map[int64]Rule
	nextID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rules: make(map[int64]Rule), nextID: 1}
}

func (s *MemoryStore) List(ctx context.Context) ([]Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) Create(ctx context.Context, rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rule.ID = s.nextID
	s.nextID++
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.rules[rule.ID] = *rule
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[rule.ID]
	if !ok {
		return ErrNotFound
	}
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()
	s.rules[rule.ID] = *rule
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// PostgresStore persists rules in PostgreSQL.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Config contains database configuration.
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

const createRulesTable = `
	CREATE TABLE IF NOT EXISTS custom_rules (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		pattern TEXT NOT NULL,
		is_regex BOOLEAN NOT NULL DEFAULT FALSE,
		replacement TEXT NOT NULL DEFAULT '',
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// NewPostgresStore connects to the database and ensures the rules table
// exists.
func NewPostgresStore(config *Config, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	store := &PostgresStore{db: db, logger: logger}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize rules store: %w", err)
	}

	logger.Info("Rules store initialized",
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

func (s *PostgresStore) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createRulesTable); err != nil {
		return fmt.Errorf("failed to create rules table: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Rule, error) {
	var out []Rule
	query := `SELECT id, name, pattern, is_regex, replacement, enabled, created_at, updated_at
		FROM custom_rules ORDER BY id`
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Rule, error) {
	var r Rule
	query := `SELECT id, name, pattern, is_regex, replacement, enabled, created_at, updated_at
		FROM custom_rules WHERE id = $1`
	if err := s.db.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get rule %d: %w", id, err)
	}
	return &r, nil
}

func (s *PostgresStore) Create(ctx context.Context, rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO custom_rules (name, pattern, is_regex, replacement, enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		rule.Name, rule.Pattern, rule.IsRegex, rule.Replacement, rule.Enabled,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		s.logger.Error("Failed to insert rule", zap.Error(err), zap.String("name", rule.Name))
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	s.logger.Debug("Rule created", zap.Int64("id", rule.ID), zap.String("name", rule.Name))
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	query := `UPDATE custom_rules
		SET name = $1, pattern = $2, is_regex = $3, replacement = $4, enabled = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`

	err := s.db.QueryRowContext(ctx, query,
		rule.Name, rule.Pattern, rule.IsRegex, rule.Replacement, rule.Enabled, rule.ID,
	).Scan(&rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update rule %d: %w", rule.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM custom_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
