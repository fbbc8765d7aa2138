package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

// ErrMigrationFailed wraps any failure while changing the schema.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// migrationLockKey serialises migrations across API instances starting together.
const migrationLockKey int64 = 0x4c4d535f6d6967 // "LMS_mig"

// Migration is one schema step. Versions start at 1 and have no gaps.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Migrator applies the embedded migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	table      string
}

func NewMigrator(conn *Connection) *Migrator {
	migs := GetMigrations()
	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })
	return &Migrator{conn: conn, migrations: migs, table: "schema_migrations"}
}

// Migrate applies pending migrations. Each runs in its own transaction that
// first takes an advisory lock, so two instances never apply the same version.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	for _, mig := range m.migrations {
		mig := mig
		err := m.conn.InTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
				return err
			}
			var done bool
			q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE version = $1)", m.table)
			if err := tx.QueryRow(ctx, q, mig.Version).Scan(&done); err != nil || done {
				return err
			}
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.table), mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

// Rollback reverts the newest applied migration; with none applied it does nothing.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.ensureTable(ctx); err != nil {
		return err
	}
	return m.conn.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
			return err
		}
		var last int
		q := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", m.table)
		if err := tx.QueryRow(ctx, q).Scan(&last); err != nil || last == 0 {
			return err
		}
		mig, ok := m.find(last)
		if !ok || mig.DownSQL == "" {
			return fmt.Errorf("%w: no down step for version %d", ErrMigrationFailed, last)
		}
		if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
			return fmt.Errorf("%w: revert %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.table), last)
		return err
	})
}

func (m *Migrator) find(version int) (Migration, bool) {
	for _, mig := range m.migrations {
		if mig.Version == version {
			return mig, true
		}
	}
	return Migration{}, false
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, m.table))
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrMigrationFailed, m.table, err)
	}
	return nil
}

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_profiles_and_catalog", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_enrollments", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_lesson_progress_and_attendance", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PROFILES AND CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS user_profiles (
    id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL DEFAULT '',
    full_name VARCHAR(200) NOT NULL DEFAULT '',
    role VARCHAR(20) NOT NULL DEFAULT 'user',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('user', 'admin'))
);

CREATE TABLE IF NOT EXISTS courses (
    id VARCHAR(64) PRIMARY KEY,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    total_days INTEGER NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    passing_score NUMERIC(5,2) NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_days CHECK (total_days BETWEEN 7 AND 30),
    CONSTRAINT valid_course_status CHECK (status IN ('active', 'inactive', 'archived')),
    CONSTRAINT valid_passing_score CHECK (passing_score >= 0 AND passing_score <= 100)
);

CREATE TABLE IF NOT EXISTS lessons (
    id VARCHAR(64) PRIMARY KEY,
    course_id VARCHAR(64) NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    day_number INTEGER NOT NULL,
    type VARCHAR(10) NOT NULL,
    title VARCHAR(200) NOT NULL DEFAULT '',
    content_url TEXT NOT NULL DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0,
    questions JSONB NOT NULL DEFAULT '[]'::jsonb,

    CONSTRAINT valid_lesson_type CHECK (type IN ('video', 'pdf', 'quiz')),
    CONSTRAINT valid_day_number CHECK (day_number >= 1)
);

CREATE INDEX IF NOT EXISTS idx_lessons_course_day ON lessons(course_id, day_number, position);

-- At most one quiz (gate) per course day
CREATE UNIQUE INDEX IF NOT EXISTS uq_lessons_quiz_per_day
    ON lessons(course_id, day_number) WHERE type = 'quiz';
`

const migration001Down = `
DROP TABLE IF EXISTS lessons;
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS user_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS enrollments (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES user_profiles(id) ON DELETE CASCADE,
    course_id VARCHAR(64) NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    status VARCHAR(20) NOT NULL DEFAULT 'enrolled',
    progress INTEGER NOT NULL DEFAULT 0,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,
    dropped_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_enrollment_status CHECK (status IN ('enrolled', 'completed', 'dropped')),
    CONSTRAINT valid_progress CHECK (progress BETWEEN 0 AND 100),
    CONSTRAINT completed_at_matches_status CHECK ((status = 'completed') = (completed_at IS NOT NULL))
);

-- One active enrollment per (user, course); history rows stay
CREATE UNIQUE INDEX IF NOT EXISTS uq_enrollments_active
    ON enrollments(user_id, course_id) WHERE status IN ('enrolled', 'completed');

CREATE INDEX IF NOT EXISTS idx_enrollments_user_course
    ON enrollments(user_id, course_id, enrolled_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS enrollments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: LESSON PROGRESS AND ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS lesson_progress (
    user_id UUID NOT NULL REFERENCES user_profiles(id) ON DELETE CASCADE,
    lesson_id VARCHAR(64) NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    video_watched BOOLEAN NOT NULL DEFAULT FALSE,
    pdf_viewed BOOLEAN NOT NULL DEFAULT FALSE,
    quiz_passed BOOLEAN NOT NULL DEFAULT FALSE,
    quiz_score NUMERIC(5,1),
    quiz_attempts INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, lesson_id),
    CONSTRAINT valid_quiz_score CHECK (quiz_score IS NULL OR (quiz_score >= 0 AND quiz_score <= 100)),
    CONSTRAINT valid_quiz_attempts CHECK (quiz_attempts >= 0)
);

CREATE TABLE IF NOT EXISTS attendance (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES user_profiles(id) ON DELETE CASCADE,
    course_id VARCHAR(64) NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    day_number INTEGER NOT NULL,
    status VARCHAR(10) NOT NULL,
    date DATE NOT NULL,
    marked_by UUID,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_attendance_status CHECK (status IN ('present', 'absent', 'late', 'excused')),
    CONSTRAINT valid_attendance_day CHECK (day_number >= 1),
    CONSTRAINT uq_attendance_user_course_day UNIQUE (user_id, course_id, day_number)
);
`

const migration003Down = `
DROP TABLE IF EXISTS attendance;
DROP TABLE IF EXISTS lesson_progress;
`
