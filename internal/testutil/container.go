package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/bissquit/oprisk/internal/pkg/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a postgres testcontainer.
type PostgresContainer struct {
	*tcpostgres.PostgresContainer
	ConnectionString string
}

// NewPostgresContainer creates a new PostgreSQL container for testing.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("oprisk"),
		tcpostgres.WithUsername("oprisk"),
		tcpostgres.WithPassword("oprisk"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{
		PostgresContainer: container,
		ConnectionString:  connStr,
	}, nil
}

// MigratedPool applies the migrations in dir and opens a pool to the container database.
func (c *PostgresContainer) MigratedPool(ctx context.Context, dir string) (*pgxpool.Pool, error) {
	if err := postgres.Migrate(dir, c.ConnectionString); err != nil {
		return nil, err
	}

	pool, err := postgres.Connect(ctx, postgres.Config{
		URL:             c.ConnectionString,
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectAttempts: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to test database: %w", err)
	}
	return pool, nil
}
