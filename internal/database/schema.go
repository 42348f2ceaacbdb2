package database

import "context"

// schemaSQL is the full relational schema for the control plane: users,
// media files, tasks, transcripts, the speaker identity engine's tables,
// the vector index, system settings, and topic suggestions. Kept as a Go
// string constant rather than a go:embed'd .sql file since no schema.sql
// ships in this tree; startup checks pg_tables and applies the schema
// only if it's missing.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id          BIGSERIAL PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	role        TEXT NOT NULL DEFAULT 'user',
	active      BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS media_files (
	id                    BIGSERIAL PRIMARY KEY,
	external_id           TEXT NOT NULL UNIQUE,
	user_id               BIGINT NOT NULL REFERENCES users(id),
	filename              TEXT NOT NULL,
	blob_key              TEXT NOT NULL,
	byte_size             BIGINT NOT NULL DEFAULT 0,
	duration              DOUBLE PRECISION,
	content_type          TEXT NOT NULL DEFAULT '',
	title                 TEXT NOT NULL DEFAULT '',
	author                TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	source_url            TEXT NOT NULL DEFAULT '',
	status                TEXT NOT NULL DEFAULT 'pending',
	file_hash             TEXT NOT NULL DEFAULT '',
	recovery_attempts     INTEGER NOT NULL DEFAULT 0,
	force_delete_eligible BOOLEAN NOT NULL DEFAULT false,
	last_error_message    TEXT NOT NULL DEFAULT '',
	upload_time           TIMESTAMPTZ NOT NULL DEFAULT now(),
	task_started_at       TIMESTAMPTZ,
	completed_at          TIMESTAMPTZ,
	last_recovery_attempt TIMESTAMPTZ,
	waveform_data         JSONB,
	thumbnail_path        TEXT NOT NULL DEFAULT '',
	metadata_raw          JSONB,
	metadata_important    JSONB
);
CREATE INDEX IF NOT EXISTS idx_media_files_status ON media_files(status);
CREATE INDEX IF NOT EXISTS idx_media_files_user ON media_files(user_id);
CREATE INDEX IF NOT EXISTS idx_media_files_hash ON media_files(file_hash);

CREATE TABLE IF NOT EXISTS tasks (
	id               TEXT PRIMARY KEY,
	user_id          BIGINT NOT NULL REFERENCES users(id),
	media_file_id    BIGINT REFERENCES media_files(id),
	type             TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	progress         DOUBLE PRECISION NOT NULL DEFAULT 0,
	result           JSONB,
	error_message    TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_media_file ON tasks(media_file_id);
CREATE INDEX IF NOT EXISTS idx_tasks_type ON tasks(type);

CREATE TABLE IF NOT EXISTS transcript_segments (
	id            BIGSERIAL PRIMARY KEY,
	media_file_id BIGINT NOT NULL REFERENCES media_files(id),
	speaker_id    BIGINT,
	start_time    DOUBLE PRECISION NOT NULL,
	end_time      DOUBLE PRECISION NOT NULL,
	text          TEXT NOT NULL DEFAULT '',
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_segments_media_file ON transcript_segments(media_file_id);
CREATE INDEX IF NOT EXISTS idx_segments_speaker ON transcript_segments(speaker_id);

CREATE TABLE IF NOT EXISTS speaker_profiles (
	id                     BIGSERIAL PRIMARY KEY,
	user_id                BIGINT NOT NULL REFERENCES users(id),
	name                   TEXT NOT NULL,
	description            TEXT NOT NULL DEFAULT '',
	embedding_count        INTEGER NOT NULL DEFAULT 0,
	last_embedding_update  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_speaker_profiles_user ON speaker_profiles(user_id);

CREATE TABLE IF NOT EXISTS speakers (
	id              BIGSERIAL PRIMARY KEY,
	media_file_id   BIGINT NOT NULL REFERENCES media_files(id),
	user_id         BIGINT NOT NULL REFERENCES users(id),
	name            TEXT NOT NULL DEFAULT '',
	display_name    TEXT NOT NULL DEFAULT '',
	suggested_name  TEXT NOT NULL DEFAULT '',
	confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	verified        BOOLEAN NOT NULL DEFAULT false,
	profile_id      BIGINT REFERENCES speaker_profiles(id)
);
CREATE INDEX IF NOT EXISTS idx_speakers_media_file ON speakers(media_file_id);
CREATE INDEX IF NOT EXISTS idx_speakers_profile ON speakers(profile_id);

CREATE TABLE IF NOT EXISTS speaker_matches (
	speaker1_id BIGINT NOT NULL REFERENCES speakers(id),
	speaker2_id BIGINT NOT NULL REFERENCES speakers(id),
	confidence  DOUBLE PRECISION NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (speaker1_id, speaker2_id),
	CHECK (speaker1_id < speaker2_id)
);

CREATE TABLE IF NOT EXISTS system_settings (
	key         TEXT PRIMARY KEY,
	value       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS topic_suggestions (
	id                    BIGSERIAL PRIMARY KEY,
	media_file_id         BIGINT NOT NULL REFERENCES media_files(id),
	suggested_tags        JSONB NOT NULL DEFAULT '[]',
	suggested_collections JSONB NOT NULL DEFAULT '[]',
	status                TEXT NOT NULL DEFAULT 'pending',
	user_decisions        JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_topic_suggestions_media_file ON topic_suggestions(media_file_id);

-- Vector index ( open-question resolution): one table holding
-- both speaker embeddings and profile centroid embeddings, discriminated
-- by document_type, queried with a SQL pre-filter followed by Go-side
-- cosine similarity rather than a dedicated vector extension (none of
-- the retrieved example repos depend on one).
CREATE TABLE IF NOT EXISTS embeddings (
	id            BIGSERIAL PRIMARY KEY,
	document_type TEXT NOT NULL,
	document_id   BIGINT NOT NULL,
	user_id       BIGINT NOT NULL REFERENCES users(id),
	vector        DOUBLE PRECISION[] NOT NULL,
	dim           INTEGER NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_embeddings_lookup ON embeddings(document_type, user_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_embeddings_document ON embeddings(document_type, document_id);

-- Full-text topic/summary index: replaces the OpenSearch
-- summary index with Postgres tsvector, searched via ts_rank.
ALTER TABLE media_files ADD COLUMN IF NOT EXISTS search_vector tsvector
	GENERATED ALWAYS AS (to_tsvector('english', coalesce(title, '') || ' ' || coalesce(description, ''))) STORED;
CREATE INDEX IF NOT EXISTS idx_media_files_search ON media_files USING GIN (search_vector);
`

// InitSchema applies the full schema on a fresh database. It checks
// whether the "users" table exists as a proxy for whether the schema
// has already been loaded; if missing, it executes schemaSQL once.
func (db *DB) InitSchema(ctx context.Context) error {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'users')`,
	).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		db.log.Debug().Msg("schema already initialized, skipping")
		return nil
	}

	db.log.Info().Msg("fresh database detected — applying schema")
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return err
	}
	db.log.Info().Msg("schema applied successfully")
	return nil
}
