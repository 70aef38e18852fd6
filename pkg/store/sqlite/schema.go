package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Schema versions. Migrations apply in order and each records its version
// in schema_version, so initializeSchema is idempotent and re-runnable.
const (
	versionBase            = 1
	versionRetentionColumn = 2
	versionCascadeRebuild  = 3
	currentSchemaVersion   = versionCascadeRebuild
)

const baseSchema = `
CREATE TABLE IF NOT EXISTS frames (
	frame_id         TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL DEFAULT '',
	project_id       TEXT NOT NULL DEFAULT '',
	parent_frame_id  TEXT REFERENCES frames(frame_id) ON DELETE CASCADE,
	depth            INTEGER NOT NULL DEFAULT 0,
	type             TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT 'active',
	inputs           TEXT,
	outputs          TEXT,
	digest_text      TEXT NOT NULL DEFAULT '',
	digest_json      TEXT,
	retention_policy TEXT NOT NULL DEFAULT 'default',
	created_at       TEXT NOT NULL,
	closed_at        TEXT
);
CREATE INDEX IF NOT EXISTS idx_frames_run_state ON frames(run_id, state);
CREATE INDEX IF NOT EXISTS idx_frames_parent ON frames(parent_frame_id);

CREATE TABLE IF NOT EXISTS events (
	event_id   TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL DEFAULT '',
	frame_id   TEXT NOT NULL REFERENCES frames(frame_id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	event_type TEXT NOT NULL DEFAULT '',
	payload    TEXT,
	ts         TEXT NOT NULL,
	UNIQUE(frame_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_events_frame ON events(frame_id, seq);

CREATE TABLE IF NOT EXISTS anchors (
	anchor_id  TEXT PRIMARY KEY,
	frame_id   TEXT NOT NULL REFERENCES frames(frame_id) ON DELETE CASCADE,
	project_id TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL DEFAULT '',
	text       TEXT NOT NULL DEFAULT '',
	priority   INTEGER NOT NULL DEFAULT 0,
	metadata   TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_anchors_frame ON anchors(frame_id, priority DESC);

CREATE TABLE IF NOT EXISTS frame_embeddings (
	frame_id  TEXT PRIMARY KEY REFERENCES frames(frame_id) ON DELETE CASCADE,
	embedding BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS retrieval_log (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	query_text       TEXT NOT NULL,
	strategy         TEXT NOT NULL,
	results_count    INTEGER NOT NULL DEFAULT 0,
	top_score        REAL,
	latency_ms       REAL NOT NULL DEFAULT 0,
	result_frame_ids TEXT NOT NULL DEFAULT '[]',
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_retrieval_created ON retrieval_log(created_at);

CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);

CREATE VIRTUAL TABLE IF NOT EXISTS frames_fts USING fts5(
	name,
	digest_text,
	inputs,
	outputs,
	content=frames,
	content_rowid=rowid
);
`

// ftsTriggers keep the lexical index mirroring frames(name, digest_text,
// inputs, outputs) on every insert, update, and delete.
var ftsTriggers = []string{
	`CREATE TRIGGER IF NOT EXISTS frames_fts_ai AFTER INSERT ON frames BEGIN
		INSERT INTO frames_fts(rowid, name, digest_text, inputs, outputs)
		VALUES (new.rowid, new.name, new.digest_text, coalesce(new.inputs, ''), coalesce(new.outputs, ''));
	END`,
	`CREATE TRIGGER IF NOT EXISTS frames_fts_ad AFTER DELETE ON frames BEGIN
		INSERT INTO frames_fts(frames_fts, rowid, name, digest_text, inputs, outputs)
		VALUES ('delete', old.rowid, old.name, old.digest_text, coalesce(old.inputs, ''), coalesce(old.outputs, ''));
	END`,
	`CREATE TRIGGER IF NOT EXISTS frames_fts_au AFTER UPDATE ON frames BEGIN
		INSERT INTO frames_fts(frames_fts, rowid, name, digest_text, inputs, outputs)
		VALUES ('delete', old.rowid, old.name, old.digest_text, coalesce(old.inputs, ''), coalesce(old.outputs, ''));
		INSERT INTO frames_fts(rowid, name, digest_text, inputs, outputs)
		VALUES (new.rowid, new.name, new.digest_text, coalesce(new.inputs, ''), coalesce(new.outputs, ''));
	END`,
}

// vecTriggers mirror frame_embeddings into the vec0 shadow table. vec0
// does not support UPDATE, so the update trigger deletes and re-inserts.
var vecTriggers = []string{
	`CREATE TRIGGER IF NOT EXISTS frame_emb_ai AFTER INSERT ON frame_embeddings BEGIN
		INSERT INTO frame_embeddings_vec(rowid, embedding) VALUES (new.rowid, new.embedding);
	END`,
	`CREATE TRIGGER IF NOT EXISTS frame_emb_ad AFTER DELETE ON frame_embeddings BEGIN
		DELETE FROM frame_embeddings_vec WHERE rowid = old.rowid;
	END`,
	`CREATE TRIGGER IF NOT EXISTS frame_emb_au AFTER UPDATE ON frame_embeddings BEGIN
		DELETE FROM frame_embeddings_vec WHERE rowid = old.rowid;
		INSERT INTO frame_embeddings_vec(rowid, embedding) VALUES (new.rowid, new.embedding);
	END`,
}

// initializeSchema creates base tables, derived index structures, and
// synchronization triggers, then applies any pending migrations. Safe to
// call on an already-initialized store.
func (s *Store) initializeSchema() error {
	if _, err := s.db.Exec(baseSchema); err != nil {
		return fmt.Errorf("creating base schema: %w", err)
	}

	for _, trigger := range ftsTriggers {
		if _, err := s.db.Exec(trigger); err != nil {
			return fmt.Errorf("creating fts trigger: %w", err)
		}
	}

	if s.dim > 0 {
		createVec := fmt.Sprintf(
			`CREATE VIRTUAL TABLE IF NOT EXISTS frame_embeddings_vec USING vec0(embedding float[%d])`,
			s.dim,
		)
		if _, err := s.db.Exec(createVec); err != nil {
			return fmt.Errorf("creating vec0 table: %w", err)
		}
		for _, trigger := range vecTriggers {
			if _, err := s.db.Exec(trigger); err != nil {
				return fmt.Errorf("creating vec trigger: %w", err)
			}
		}
	}

	return s.migrate()
}

// migrate applies pending migrations in version order. Each migration is
// additive except the cascade rebuild, which runs as a guarded
// single-transaction table swap.
func (s *Store) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return err
	}

	if version < versionBase {
		if err := s.recordVersion(versionBase); err != nil {
			return err
		}
		version = versionBase
	}

	if version < versionRetentionColumn {
		// Older databases predate the retention column. The ALTER fails
		// harmlessly when the column already exists (fresh schema).
		_, _ = s.db.Exec(`ALTER TABLE frames ADD COLUMN retention_policy TEXT NOT NULL DEFAULT 'default'`)
		if err := s.recordVersion(versionRetentionColumn); err != nil {
			return err
		}
		version = versionRetentionColumn
	}

	// The retention index lives here rather than in baseSchema because
	// databases that predate the retention column must add it first.
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_frames_retention ON frames(retention_policy, created_at)`); err != nil {
		return fmt.Errorf("creating retention index: %w", err)
	}

	if version < versionCascadeRebuild {
		for _, table := range []string{"events", "anchors"} {
			needs, err := s.needsCascadeRebuild(table)
			if err != nil {
				return err
			}
			if needs {
				if err := s.rebuildWithCascade(table); err != nil {
					return fmt.Errorf("rebuilding %s with cascade: %w", table, err)
				}
			}
		}
		if err := s.recordVersion(versionCascadeRebuild); err != nil {
			return err
		}
	}

	s.logger.Debug("schema migrations applied", zap.Int("version", currentSchemaVersion))

	return nil
}

func (s *Store) schemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func (s *Store) recordVersion(version int) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO schema_version(version, applied_at) VALUES (?, datetime('now'))`,
		version,
	)
	if err != nil {
		return fmt.Errorf("recording schema version %d: %w", version, err)
	}
	return nil
}

// needsCascadeRebuild inspects the table's foreign keys and reports
// whether any reference to frames lacks an ON DELETE CASCADE rule.
func (s *Store) needsCascadeRebuild(table string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA foreign_key_list(%s)`, table))
	if err != nil {
		return false, fmt.Errorf("listing foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, seq                   int
			refTable, from, to        string
			onUpdate, onDelete, match string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return false, fmt.Errorf("scanning foreign key row: %w", err)
		}
		if refTable == "frames" && onDelete != "CASCADE" {
			return true, nil
		}
	}
	return false, rows.Err()
}

// rebuildWithCascade swaps a dependent table for a replacement whose
// foreign key carries ON DELETE CASCADE: create replacement, copy rows,
// drop original, rename, rebuild indexes, re-check integrity. The whole
// swap happens in one transaction; any failure rolls it back and the
// original table stays visible.
func (s *Store) rebuildWithCascade(table string) error {
	ctx := context.Background()

	// The pragma toggle and the swap must share one connection; pragma
	// state is per connection, not per pool.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Foreign key enforcement cannot change inside a transaction, so it
	// is suspended around the swap and always restored.
	if _, err := conn.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		return err
	}
	defer func() {
		_, _ = conn.ExecContext(ctx, `PRAGMA foreign_keys = ON`)
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var ddl string
	var indexes []string
	switch table {
	case "events":
		ddl = `CREATE TABLE events_rebuild (
			event_id   TEXT PRIMARY KEY,
			run_id     TEXT NOT NULL DEFAULT '',
			frame_id   TEXT NOT NULL REFERENCES frames(frame_id) ON DELETE CASCADE,
			seq        INTEGER NOT NULL,
			event_type TEXT NOT NULL DEFAULT '',
			payload    TEXT,
			ts         TEXT NOT NULL,
			UNIQUE(frame_id, seq)
		)`
		indexes = []string{`CREATE INDEX IF NOT EXISTS idx_events_frame ON events(frame_id, seq)`}
	case "anchors":
		ddl = `CREATE TABLE anchors_rebuild (
			anchor_id  TEXT PRIMARY KEY,
			frame_id   TEXT NOT NULL REFERENCES frames(frame_id) ON DELETE CASCADE,
			project_id TEXT NOT NULL DEFAULT '',
			type       TEXT NOT NULL DEFAULT '',
			text       TEXT NOT NULL DEFAULT '',
			priority   INTEGER NOT NULL DEFAULT 0,
			metadata   TEXT,
			created_at TEXT NOT NULL
		)`
		indexes = []string{`CREATE INDEX IF NOT EXISTS idx_anchors_frame ON anchors(frame_id, priority DESC)`}
	default:
		return fmt.Errorf("no rebuild recipe for table %q", table)
	}

	if _, err := tx.Exec(ddl); err != nil {
		return fmt.Errorf("creating replacement table: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s_rebuild SELECT * FROM %s`, table, table)); err != nil {
		return fmt.Errorf("copying rows: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE %s`, table)); err != nil {
		return fmt.Errorf("dropping original table: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf(`ALTER TABLE %s_rebuild RENAME TO %s`, table, table)); err != nil {
		return fmt.Errorf("renaming replacement table: %w", err)
	}
	for _, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}
	}

	// Re-check referential integrity before the swap becomes visible.
	rows, err := tx.Query(fmt.Sprintf(`PRAGMA foreign_key_check(%s)`, table))
	if err != nil {
		return fmt.Errorf("checking foreign keys: %w", err)
	}
	violated := rows.Next()
	if err := rows.Close(); err != nil {
		return err
	}
	if violated {
		return fmt.Errorf("foreign key check failed after rebuilding %s", table)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rebuild: %w", err)
	}

	s.logger.Info("rebuilt table with cascade constraint", zap.String("table", table))
	return nil
}
