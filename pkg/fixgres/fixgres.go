// Package fixgres boots one throwaway PostgreSQL container per test binary
// and hands out isolated schemas on it.
package fixgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type config struct {
	image    string
	dbName   string
	user     string
	password string
}

type Option func(*config)

func WithImage(i string) Option    { return func(c *config) { c.image = i } }
func WithDBName(n string) Option   { return func(c *config) { c.dbName = n } }
func WithUser(u string) Option     { return func(c *config) { c.user = u } }
func WithPassword(p string) Option { return func(c *config) { c.password = p } }

var (
	once       sync.Once
	bootErr    error
	mu         sync.Mutex
	pg         *postgres.PostgresContainer
	connString string
)

func defaults(opts []Option) *config {
	c := &config{
		image:    "docker.io/postgres:16-alpine",
		dbName:   "app",
		user:     "postgres",
		password: "pass",
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Boot starts the shared container. Only the first call's options apply;
// later calls return the first result.
func Boot(ctx context.Context, opts ...Option) error {
	once.Do(func() {
		bootErr = boot(ctx, defaults(opts))
	})
	return bootErr
}

func boot(ctx context.Context, c *config) (err error) {
	// testcontainers panics on some hosts without a reachable docker daemon.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("start postgres container: %v", p)
		}
	}()

	container, err := postgres.Run(ctx,
		c.image,
		postgres.WithDatabase(c.dbName),
		postgres.WithUsername(c.user),
		postgres.WithPassword(c.password),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return fmt.Errorf("start postgres container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(context.Background())
		return fmt.Errorf("connection string: %w", err)
	}

	mu.Lock()
	pg, connString = container, dsn
	mu.Unlock()
	return nil
}

// ConnString returns the admin DSN of the booted container.
func ConnString() string {
	mu.Lock()
	defer mu.Unlock()
	return connString
}

// ShutdownNow terminates the container if one was started.
func ShutdownNow() error {
	mu.Lock()
	defer mu.Unlock()
	if pg == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := pg.Terminate(ctx)
	pg = nil
	return err
}
