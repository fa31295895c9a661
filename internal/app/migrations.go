// migrations.go — SQL-миграции, встроенные в код для упрощения деплоя.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"scorebot/internal/db/postgres"
)

// runMigrations выполняет все SQL-миграции по порядку.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Members},
		{2, migration002Teams},
		{3, migration003Activities},
		{4, migration004Scores},
		{5, migration005Timers},
		{6, migration006Reviewer},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255),
    first_name VARCHAR(255) NOT NULL,
    last_name VARCHAR(255),
    role VARCHAR(64),
    is_admin BOOLEAN DEFAULT FALSE,
    is_banned BOOLEAN DEFAULT FALSE,
    total_score DOUBLE PRECISION DEFAULT 0,
    activities_completed INTEGER DEFAULT 0,
    joined_at TIMESTAMP DEFAULT NOW(),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_user_id ON members(user_id);
CREATE INDEX IF NOT EXISTS idx_members_username ON members(username);
CREATE INDEX IF NOT EXISTS idx_members_total_score ON members(total_score DESC);
`

var migration002Teams = `
CREATE TABLE IF NOT EXISTS teams (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) UNIQUE NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    captain_id BIGINT NOT NULL REFERENCES members(user_id),
    total_score DOUBLE PRECISION DEFAULT 0,
    activities_completed INTEGER DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS team_members (
    team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES members(user_id),
    joined_at TIMESTAMP DEFAULT NOW(),
    PRIMARY KEY (team_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_team_members_user_id ON team_members(user_id);
`

var migration003Activities = `
CREATE TABLE IF NOT EXISTS activities (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) UNIQUE NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    sub_activities TEXT[] NOT NULL DEFAULT '{}',
    is_active BOOLEAN DEFAULT TRUE,
    created_by BIGINT NOT NULL,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activities_is_active ON activities(is_active);
`

// Слабые ссылки на субъектов: у оценки нет FOREIGN KEY на members/teams,
// удаление субъекта не трогает его оценки. Уникальность (субъект,
// активность, подактивность) держат два частичных индекса.
var migration004Scores = `
CREATE TABLE IF NOT EXISTS scores (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    team_id BIGINT,
    activity_id BIGINT NOT NULL,
    sub_activity TEXT NOT NULL DEFAULT '',
    value DOUBLE PRECISION NOT NULL,
    max_possible DOUBLE PRECISION NOT NULL DEFAULT 100,
    normalized_score INTEGER NOT NULL,
    context VARCHAR(20) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    awarded_by BIGINT NOT NULL,
    chat_id BIGINT NOT NULL,
    message_id BIGINT,
    comment TEXT NOT NULL DEFAULT '',
    evidence_url TEXT NOT NULL DEFAULT '',
    rejection_reason TEXT NOT NULL DEFAULT '',
    reviewed_by BIGINT,
    reviewed_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    CHECK (value >= 0),
    CHECK (max_possible >= 1),
    CHECK ((user_id IS NULL) <> (team_id IS NULL))
);
CREATE UNIQUE INDEX IF NOT EXISTS uniq_scores_user
    ON scores(user_id, activity_id, sub_activity) WHERE user_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uniq_scores_team
    ON scores(team_id, activity_id, sub_activity) WHERE team_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_scores_status ON scores(status);
CREATE INDEX IF NOT EXISTS idx_scores_activity_id ON scores(activity_id);
CREATE INDEX IF NOT EXISTS idx_scores_created_at ON scores(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_scores_chat_id ON scores(chat_id);
`

// Имя таймера можно переиспользовать после срабатывания — уникальность
// держится только среди несработавших.
var migration005Timers = `
CREATE TABLE IF NOT EXISTS timers (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    activity_id BIGINT NOT NULL DEFAULT 0,
    ends_at TIMESTAMP NOT NULL,
    chat_id BIGINT NOT NULL,
    created_by BIGINT NOT NULL,
    fired BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uniq_timers_name_activity
    ON timers(name, activity_id) WHERE fired = FALSE;
CREATE INDEX IF NOT EXISTS idx_timers_ends_at ON timers(ends_at) WHERE fired = FALSE;
`

var migration006Reviewer = `
CREATE TABLE IF NOT EXISTS reviewer_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT REFERENCES members(user_id),
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMP DEFAULT NOW(),
    expires_at TIMESTAMP,
    last_activity TIMESTAMP DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_reviewer_sessions_user_id ON reviewer_sessions(user_id);
CREATE TABLE IF NOT EXISTS reviewer_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMP DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_reviewer_attempts_user_time
    ON reviewer_login_attempts(user_id, attempt_time DESC);
`
