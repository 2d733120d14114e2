package dbx

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// bootstrapStatements creates every table/enum/index this repository owns,
// idempotently. The real migration tool is an external collaborator per
// SPEC_FULL.md §3 ("Migration bootstrap subcommand"); this is the minimal
// embedded DDL needed to run the rest of the system standalone.
var bootstrapStatements = []string{
	`DO $$ BEGIN
		CREATE TYPE block_type AS ENUM ('block', 'microblock', 'rollback');
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$;`,

	`CREATE TABLE IF NOT EXISTS blocks_microblocks (
		uid            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		id             TEXT NOT NULL,
		microblock_id  TEXT,
		height         INTEGER NOT NULL,
		time_stamp     BIGINT NOT NULL,
		is_solidified  BOOLEAN NOT NULL,
		block_type     block_type NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS blocks_microblocks_id_idx ON blocks_microblocks(id);`,
	`CREATE INDEX IF NOT EXISTS blocks_microblocks_height_idx ON blocks_microblocks(height);`,

	`CREATE TABLE IF NOT EXISTS blocks_rollbacks (
		uid                  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		max_uid_kept         BIGINT,
		id                   TEXT NOT NULL,
		max_height           INTEGER,
		max_time_stamp       BIGINT,
		deleted_blocks_data  TEXT
	);`,

	`CREATE TABLE IF NOT EXISTS unique_address (
		uid     BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		address TEXT NOT NULL UNIQUE
	);`,

	`CREATE TABLE IF NOT EXISTS unique_assets (
		uid      BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		asset_id TEXT NOT NULL UNIQUE
	);`,
	`INSERT INTO unique_assets(uid, asset_id) OVERRIDING SYSTEM VALUE VALUES (1, 'WAVES')
		ON CONFLICT (asset_id) DO NOTHING;`,
	`SELECT setval(pg_get_serial_sequence('unique_assets', 'uid'),
		GREATEST((SELECT max(uid) FROM unique_assets), 1));`,

	`CREATE TABLE IF NOT EXISTS balance_history (
		uid        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		block_uid  BIGINT NOT NULL REFERENCES blocks_microblocks(uid) ON DELETE CASCADE,
		address_id BIGINT NOT NULL REFERENCES unique_address(uid),
		asset_id   BIGINT NOT NULL REFERENCES unique_assets(uid),
		amount     NUMERIC(100,0) NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS balance_history_lookup_idx
		ON balance_history(block_uid, address_id, asset_id);`,
	`CREATE INDEX IF NOT EXISTS balance_history_pair_idx
		ON balance_history(address_id, asset_id, block_uid);`,

	`CREATE TABLE IF NOT EXISTS balance_history_max_uids_per_height (
		uid                  BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		balance_history_uid  BIGINT NOT NULL,
		asset_id             BIGINT NOT NULL,
		address_id           BIGINT NOT NULL,
		block_uid            BIGINT NOT NULL,
		height               INTEGER NOT NULL,
		amount               NUMERIC(100,0) NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS balance_history_max_uids_per_height_uq
		ON balance_history_max_uids_per_height(asset_id, height, address_id);`,

	`CREATE TABLE IF NOT EXISTS safe_heights (
		uid        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		table_name TEXT NOT NULL UNIQUE,
		height     INTEGER NOT NULL
	);`,

	`DO $$ BEGIN
		CREATE TYPE distribution_task_state AS ENUM ('new', 'progress', 'done', 'error');
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$;`,

	`CREATE TABLE IF NOT EXISTS asset_distribution_tasks (
		uid           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		asset_uid     BIGINT NOT NULL REFERENCES unique_assets(uid),
		asset_text    TEXT NOT NULL,
		height        INTEGER NOT NULL,
		state         distribution_task_state NOT NULL DEFAULT 'new',
		state_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
		error_message TEXT
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS asset_distribution_tasks_uq
		ON asset_distribution_tasks(asset_uid, height);`,
}

// Bootstrap creates the schema idempotently and the dedicated distribution
// snapshot schema (schemaName, from config), granting usage to readerRole
// when it is non-empty.
func Bootstrap(ctx context.Context, db *bun.DB, schemaName, readerRole string) error {
	for _, stmt := range bootstrapStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "dbx: bootstrap statement failed: %s", stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgIdent(schemaName)); err != nil {
		return errors.Wrap(err, "dbx: create distribution schema")
	}

	if readerRole != "" {
		// GRANT USAGE may fail if the role does not exist in a dev setup;
		// that is non-fatal, the grant is re-attempted per snapshot table.
		_, _ = db.ExecContext(ctx, "GRANT USAGE ON SCHEMA "+pgIdent(schemaName)+" TO "+pgIdent(readerRole))
	}

	return nil
}

// pgIdent double-quotes a Postgres identifier. Schema and role names come
// from trusted configuration, not user input, but quoting keeps the DDL
// correct for mixed-case names.
func pgIdent(name string) string {
	return `"` + name + `"`
}
