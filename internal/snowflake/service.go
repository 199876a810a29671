package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"cmdwh/internal/warehouse"
	"cmdwh/pkg/errors"
)

// Service provides Snowflake database operations
type Service struct {
	db        *sql.DB
	config    Config
	connected bool
}

// Config holds Snowflake connection configuration
type Config struct {
	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
	// Stage is the external stage (with '@') the external tables read from and
	// StageURL the storage URL it points at.
	Stage    string
	StageURL string
	// Timeout bounds metadata calls. Materialization uses QueryTimeout, where
	// zero means no limit.
	Timeout      time.Duration
	QueryTimeout time.Duration
}

// NewService creates a new Snowflake service
func NewService(config Config) *Service {
	return &Service{config: config}
}

// NewServiceWithDB wraps an already open handle.
func NewServiceWithDB(db *sql.DB, config Config) *Service {
	return &Service{db: db, config: config, connected: db != nil}
}

// DSN renders the driver connection string.
func (c Config) DSN() (string, error) {
	return gosnowflake.DSN(&gosnowflake.Config{
		Account:     c.Account,
		User:        c.Username,
		Password:    c.Password,
		Database:    c.Database,
		Schema:      c.Schema,
		Warehouse:   c.Warehouse,
		Role:        c.Role,
		Application: "cmdwh",
	})
}

// Connect establishes a connection to Snowflake
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	dsn, err := s.config.DSN()
	if err != nil {
		return errors.ConnectionError("Invalid Snowflake connection settings", err).
			WithContext("account", s.config.Account)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return errors.ConnectionError("Failed to open Snowflake connection", err).
			WithContext("account", s.config.Account).
			WithContext("warehouse", s.config.Warehouse)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := s.getContext(ctx)
	defer cancel()

	if err := s.ping(pingCtx, db); err != nil {
		db.Close()
		return err
	}

	s.db = db
	s.connected = true
	return nil
}

// ping classifies a failed ping as an authentication or connection error.
func (s *Service) ping(ctx context.Context, db *sql.DB) error {
	err := db.PingContext(ctx)
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "authentication") {
		return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
			WithContext("user", s.config.Username).
			WithSuggestions(
				"Verify your username and password",
				"Store the password with 'cmdwh auth login'",
			)
	}
	return errors.ConnectionError("Failed to connect to Snowflake", err).
		WithContext("account", s.config.Account)
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	s.connected = false
	return nil
}

func (s *Service) exec(ctx context.Context, code errors.ErrorCode, name, stmt string) error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before executing SQL")
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		appErr := errors.ObjectError(code, s.Namespace().Qualified(name), err)
		if strings.Contains(err.Error(), "does not exist") {
			appErr.WithSuggestions(
				fmt.Sprintf("Verify stage %s exists and points at %s", s.config.Stage, s.config.StageURL),
				"Ensure the role has USAGE on the stage and CREATE privileges on the schema",
			)
		}
		return appErr
	}
	return nil
}

// Query runs a read and returns every row keyed by column name.
func (s *Service) Query(ctx context.Context, query string) ([]warehouse.Row, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}

	ctx, cancel := s.queryContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.QueryError("Query failed", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.QueryError("Failed to read columns", query, err)
	}

	var result []warehouse.Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		valuePtrs := make([]interface{}, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, errors.QueryError("Failed to scan row", query, err)
		}

		row := make(warehouse.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.QueryError("Failed to read query results", query, err)
	}
	return result, nil
}

// Helper methods

func (s *Service) getContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.QueryTimeout > 0 {
		return context.WithTimeout(ctx, s.config.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

// ValidateConfig validates the Snowflake configuration
func ValidateConfig(config Config) error {
	if config.Account == "" {
		return fmt.Errorf("account is required")
	}
	if config.Username == "" {
		return fmt.Errorf("username is required")
	}
	if config.Password == "" {
		return fmt.Errorf("password is required")
	}
	if config.Warehouse == "" {
		return fmt.Errorf("warehouse is required")
	}
	if config.Database == "" || config.Schema == "" {
		return fmt.Errorf("database and schema are required")
	}
	if !strings.HasPrefix(config.Stage, "@") {
		return fmt.Errorf("stage must start with '@'")
	}
	return nil
}
