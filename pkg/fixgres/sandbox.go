package fixgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"fmt"
	"io/fs"
	"net/url"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
)

// Sandbox is one test's private schema. Every pooled connection of DB has
// the schema first on its search_path.
type Sandbox struct {
	DB     *sql.DB
	DSN    string
	Schema string
	Seed   int64
	Close  func()
}

type sandboxConfig struct {
	migrations fs.FS
	bootOpts   []Option
}

type SandboxOption func(*sandboxConfig)

// WithMigrations applies goose migrations from migFS inside the sandbox schema.
func WithMigrations(migFS fs.FS) SandboxOption {
	return func(c *sandboxConfig) { c.migrations = migFS }
}

// WithBoot forwards container options to the first Boot.
func WithBoot(opts ...Option) SandboxOption {
	return func(c *sandboxConfig) { c.bootOpts = append(c.bootOpts, opts...) }
}

// NewSandbox boots the container on first use and creates a fresh schema.
// The test is skipped under -short or when no container runtime is available.
func NewSandbox(t *testing.T, opts ...SandboxOption) *Sandbox {
	t.Helper()
	if testing.Short() {
		t.Skip("fixgres: postgres sandbox skipped in -short mode")
	}

	cfg := &sandboxConfig{}
	for _, o := range opts {
		o(cfg)
	}

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelBoot()
	if err := Boot(bootCtx, cfg.bootOpts...); err != nil {
		t.Skipf("fixgres: postgres unavailable: %v", err)
	}

	admin, err := sql.Open("pgx", ConnString()) // admin connection (no search_path)
	if err != nil {
		t.Fatalf("open admin: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := fmt.Sprintf("t_%x", time.Now().UnixNano())
	if _, err := admin.ExecContext(ctx, `CREATE SCHEMA "`+schema+`"`); err != nil {
		_ = admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	dsn := withSearchPath(ConnString(), schema)
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = admin.Close()
		t.Fatalf("open sandbox: %v", err)
	}

	sbx := &Sandbox{
		DB:     db,
		DSN:    dsn,
		Schema: schema,
		Seed:   randomSeed(),
	}
	sbx.Close = func() {
		// drop schema with admin handle (it doesn't share the search_path)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Close()
		_, _ = admin.ExecContext(ctx, `DROP SCHEMA IF EXISTS "`+schema+`" CASCADE`)
		_ = admin.Close()
	}
	t.Cleanup(sbx.Close)

	if cfg.migrations != nil {
		p, err := goose.NewProvider(goose.DialectPostgres, db, cfg.migrations)
		if err != nil {
			t.Fatalf("goose provider: %v", err)
		}
		if _, err := p.Up(ctx); err != nil {
			t.Fatalf("goose up in %s: %v", schema, err)
		}
	}
	return sbx
}

func withSearchPath(base, schema string) string {
	u, _ := url.Parse(base)
	q := u.Query()
	q.Set("options", fmt.Sprintf("-csearch_path=%s,public", schema))
	u.RawQuery = q.Encode()
	return u.String()
}

func randomSeed() int64 {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int64(binary.LittleEndian.Uint64(b[:]))
}
