package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates the nine stratum tables and their indexes. Every
// table carries the audit quad (own_paths, owner, create_time, update_time).
// The own_paths and sys_code columns are the hot filter paths and get
// prefix-scan-friendly indexes.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS resource_domain (
		id          VARCHAR(36) PRIMARY KEY,
		code        VARCHAR(255) NOT NULL,
		name        VARCHAR(255) NOT NULL,
		note        TEXT NOT NULL DEFAULT '',
		icon        VARCHAR(1000) NOT NULL DEFAULT '',
		sort        BIGINT NOT NULL DEFAULT 0,
		scope_level SMALLINT NOT NULL DEFAULT -1,
		own_paths   VARCHAR(255) NOT NULL DEFAULT '',
		owner       VARCHAR(255) NOT NULL DEFAULT '',
		create_time TIMESTAMPTZ NOT NULL,
		update_time TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_resource_domain_code UNIQUE (code)
	)`,
	`CREATE TABLE IF NOT EXISTS resource_kind (
		id             VARCHAR(36) PRIMARY KEY,
		module         VARCHAR(255) NOT NULL DEFAULT '',
		code           VARCHAR(255) NOT NULL,
		name           VARCHAR(255) NOT NULL,
		note           TEXT NOT NULL DEFAULT '',
		icon           VARCHAR(1000) NOT NULL DEFAULT '',
		sort           BIGINT NOT NULL DEFAULT 0,
		ext_table_name VARCHAR(255) NOT NULL DEFAULT '',
		parent_id      VARCHAR(36) NOT NULL DEFAULT '',
		scope_level    SMALLINT NOT NULL DEFAULT -1,
		own_paths      VARCHAR(255) NOT NULL DEFAULT '',
		owner          VARCHAR(255) NOT NULL DEFAULT '',
		create_time    TIMESTAMPTZ NOT NULL,
		update_time    TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_resource_kind_code UNIQUE (code)
	)`,
	`CREATE TABLE IF NOT EXISTS resource_item (
		id            VARCHAR(36) PRIMARY KEY,
		code          VARCHAR(255) NOT NULL,
		name          VARCHAR(255) NOT NULL,
		rel_kind_id   VARCHAR(36) NOT NULL,
		rel_domain_id VARCHAR(36) NOT NULL,
		scope_level   SMALLINT NOT NULL DEFAULT -1,
		own_paths     VARCHAR(255) NOT NULL DEFAULT '',
		owner         VARCHAR(255) NOT NULL DEFAULT '',
		disabled      BOOLEAN NOT NULL DEFAULT FALSE,
		create_time   TIMESTAMPTZ NOT NULL,
		update_time   TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_resource_item_code UNIQUE (code, rel_kind_id, rel_domain_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resource_item_own_paths ON resource_item (own_paths)`,
	`CREATE TABLE IF NOT EXISTS resource_set (
		id          VARCHAR(36) PRIMARY KEY,
		code        VARCHAR(255) NOT NULL,
		kind        VARCHAR(255) NOT NULL DEFAULT '',
		name        VARCHAR(255) NOT NULL,
		note        TEXT NOT NULL DEFAULT '',
		icon        VARCHAR(1000) NOT NULL DEFAULT '',
		sort        BIGINT NOT NULL DEFAULT 0,
		ext         TEXT NOT NULL DEFAULT '',
		scope_level SMALLINT NOT NULL DEFAULT -1,
		own_paths   VARCHAR(255) NOT NULL DEFAULT '',
		owner       VARCHAR(255) NOT NULL DEFAULT '',
		disabled    BOOLEAN NOT NULL DEFAULT FALSE,
		create_time TIMESTAMPTZ NOT NULL,
		update_time TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_resource_set_code UNIQUE (code)
	)`,
	`CREATE TABLE IF NOT EXISTS set_category (
		id          VARCHAR(36) PRIMARY KEY,
		sys_code    VARCHAR(255) NOT NULL,
		bus_code    VARCHAR(255) NOT NULL DEFAULT '',
		name        VARCHAR(255) NOT NULL,
		icon        VARCHAR(1000) NOT NULL DEFAULT '',
		sort        BIGINT NOT NULL DEFAULT 0,
		ext         TEXT NOT NULL DEFAULT '',
		rel_set_id  VARCHAR(36) NOT NULL,
		scope_level SMALLINT NOT NULL DEFAULT -1,
		own_paths   VARCHAR(255) NOT NULL DEFAULT '',
		owner       VARCHAR(255) NOT NULL DEFAULT '',
		create_time TIMESTAMPTZ NOT NULL,
		update_time TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_set_category_sys_code UNIQUE (rel_set_id, sys_code)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_set_category_sys_code ON set_category (rel_set_id, sys_code varchar_pattern_ops)`,
	`CREATE TABLE IF NOT EXISTS set_item_binding (
		id                VARCHAR(36) PRIMARY KEY,
		sort              BIGINT NOT NULL DEFAULT 0,
		rel_set_id        VARCHAR(36) NOT NULL,
		rel_cate_sys_code VARCHAR(255) NOT NULL,
		rel_item_id       VARCHAR(36) NOT NULL,
		own_paths         VARCHAR(255) NOT NULL DEFAULT '',
		owner             VARCHAR(255) NOT NULL DEFAULT '',
		create_time       TIMESTAMPTZ NOT NULL,
		update_time       TIMESTAMPTZ NOT NULL,
		CONSTRAINT uq_set_item_binding UNIQUE (rel_set_id, rel_cate_sys_code, rel_item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_set_item_binding_item ON set_item_binding (rel_item_id)`,
	`CREATE TABLE IF NOT EXISTS resource_rel (
		id           VARCHAR(36) PRIMARY KEY,
		tag          VARCHAR(255) NOT NULL,
		note         TEXT NOT NULL DEFAULT '',
		from_kind    SMALLINT NOT NULL,
		from_id      VARCHAR(255) NOT NULL,
		to_item_id   VARCHAR(255) NOT NULL,
		to_own_paths VARCHAR(255) NOT NULL DEFAULT '',
		ext          TEXT NOT NULL DEFAULT '',
		own_paths    VARCHAR(255) NOT NULL DEFAULT '',
		owner        VARCHAR(255) NOT NULL DEFAULT '',
		create_time  TIMESTAMPTZ NOT NULL,
		update_time  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resource_rel_from ON resource_rel (tag, from_kind, from_id)`,
	`CREATE INDEX IF NOT EXISTS idx_resource_rel_to ON resource_rel (to_item_id)`,
	`CREATE TABLE IF NOT EXISTS rel_attr (
		id               VARCHAR(36) PRIMARY KEY,
		is_from          BOOLEAN NOT NULL,
		name             VARCHAR(255) NOT NULL,
		value            VARCHAR(2000) NOT NULL DEFAULT '',
		record_only      BOOLEAN NOT NULL DEFAULT FALSE,
		operator         SMALLINT NOT NULL DEFAULT 0,
		rel_kind_attr_id VARCHAR(36) NOT NULL DEFAULT '',
		rel_rel_id       VARCHAR(36) NOT NULL,
		own_paths        VARCHAR(255) NOT NULL DEFAULT '',
		owner            VARCHAR(255) NOT NULL DEFAULT '',
		create_time      TIMESTAMPTZ NOT NULL,
		update_time      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rel_attr_rel ON rel_attr (rel_rel_id)`,
	`CREATE TABLE IF NOT EXISTS rel_env (
		id          VARCHAR(36) PRIMARY KEY,
		kind        SMALLINT NOT NULL,
		value1      VARCHAR(2000) NOT NULL DEFAULT '',
		value2      VARCHAR(2000) NOT NULL DEFAULT '',
		rel_rel_id  VARCHAR(36) NOT NULL,
		own_paths   VARCHAR(255) NOT NULL DEFAULT '',
		owner       VARCHAR(255) NOT NULL DEFAULT '',
		create_time TIMESTAMPTZ NOT NULL,
		update_time TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rel_env_rel ON rel_env (rel_rel_id)`,
}

// ApplySchema creates all stratum tables and indexes if they do not exist.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
