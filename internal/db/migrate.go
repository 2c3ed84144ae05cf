package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type migration struct {
	version string
	stmts   []string
}

// migrations run in order, each inside its own transaction.
// Never reorder or edit an applied migration, append a new one instead.
var migrations = []migration{
	{
		version: "001_create_users_table",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGSERIAL PRIMARY KEY,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);`,
			`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);`,
		},
	},
	{
		version: "002_add_user_profile_fields",
		stmts: []string{
			`ALTER TABLE users ADD COLUMN IF NOT EXISTS avatar_url TEXT;`,
			`ALTER TABLE users ADD COLUMN IF NOT EXISTS bio TEXT;`,
			`ALTER TABLE users ADD COLUMN IF NOT EXISTS goal TEXT;`,
		},
	},
	{
		version: "003_social_follows_feed",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS follows (
				follower_id BIGINT NOT NULL,
				followee_id BIGINT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				UNIQUE (follower_id, followee_id)
			);`,
			`CREATE INDEX IF NOT EXISTS idx_follows_follower_id ON follows(follower_id);`,
			`CREATE INDEX IF NOT EXISTS idx_follows_followee_id ON follows(followee_id);`,
			`CREATE TABLE IF NOT EXISTS activities (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL,
				type TEXT NOT NULL,
				ref_id TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);`,
			`CREATE INDEX IF NOT EXISTS idx_activities_user_id ON activities(user_id);`,
			`CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC, id DESC);`,
		},
	},
	{
		version: "004_social_likes_comments",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS likes (
				user_id BIGINT NOT NULL,
				ref_id TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				UNIQUE (user_id, ref_id)
			);`,
			`CREATE INDEX IF NOT EXISTS idx_likes_user_id ON likes(user_id);`,
			`CREATE INDEX IF NOT EXISTS idx_likes_ref_id ON likes(ref_id);`,
			`CREATE TABLE IF NOT EXISTS comments (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL,
				ref_id TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);`,
			`CREATE INDEX IF NOT EXISTS idx_comments_ref_id ON comments(ref_id);`,
			`CREATE INDEX IF NOT EXISTS idx_comments_created_at ON comments(created_at);`,
		},
	},
}

// RunMigrations applies all pending migrations and records each applied
// version in the schema_migrations table.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := applyMigration(ctx, pool, m); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		log.Debugf("applied migration: %s", m.version)
	}

	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, m migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1)`, m.version,
	); err != nil {
		return fmt.Errorf("mark migration applied: %w", err)
	}

	return tx.Commit(ctx)
}
