package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/okian/matchd/internal/domain/model"
	_ "modernc.org/sqlite" // sqlite driver
)

// Supported SQL drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	_ ProfileStore = (*SQLStore)(nil)
	_ ActionLog    = (*SQLStore)(nil)
	_ MatchStore   = (*SQLStore)(nil)
)

// SQLStore implements the collaborator interfaces over the profiles,
// match_actions and matches tables. Timestamps are stored as unix
// milliseconds so the same queries run on postgres and sqlite.
type SQLStore struct {
	db *sqlx.DB
}

type profileRow struct {
	UserID     string `db:"user_id"`
	Scene      string `db:"scene"`
	Role       string `db:"role"`
	Attributes string `db:"attributes"`
	Active     bool   `db:"is_active"`
	UpdatedAt  int64  `db:"updated_at"`
}

type actionRow struct {
	ID           string `db:"id"`
	UserID       string `db:"user_id"`
	TargetUserID string `db:"target_user_id"`
	Scene        string `db:"scene"`
	ActionType   string `db:"action_type"`
	CreatedAt    int64  `db:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT    NOT NULL,
	scene      TEXT    NOT NULL,
	role       TEXT    NOT NULL,
	attributes TEXT    NOT NULL DEFAULT '{}',
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at BIGINT  NOT NULL,
	PRIMARY KEY (user_id, scene)
);
CREATE TABLE IF NOT EXISTS match_actions (
	id             TEXT   PRIMARY KEY,
	user_id        TEXT   NOT NULL,
	target_user_id TEXT   NOT NULL,
	scene          TEXT   NOT NULL,
	action_type    TEXT   NOT NULL,
	created_at     BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_match_actions_user_scene ON match_actions (user_id, scene);
CREATE INDEX IF NOT EXISTS idx_match_actions_created_at ON match_actions (created_at);
CREATE TABLE IF NOT EXISTS matches (
	id               TEXT    PRIMARY KEY,
	user_id          TEXT    NOT NULL,
	other_user_id    TEXT    NOT NULL,
	scene            TEXT    NOT NULL,
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	last_activity_at BIGINT  NOT NULL
);`

// OpenSQL connects to driver at dsn and verifies the connection.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer at a time; in-memory databases are per connection
		db.SetMaxOpenConns(1)
	}
	return NewSQLStore(db), nil
}

// NewSQLStore wraps an existing connection pool.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// DB exposes the underlying pool.
func (s *SQLStore) DB() *sqlx.DB { return s.db }

// Close closes the connection pool.
func (s *SQLStore) Close() error { return s.db.Close() }

// EnsureSchema creates the tables and indexes the store reads and writes.
// Existing tables are left untouched.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertProfile inserts or replaces a profile.
func (s *SQLStore) UpsertProfile(ctx context.Context, p model.CandidateProfile) error {
	attrs, err := json.Marshal(p.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	row := profileRow{
		UserID:     p.UserID,
		Scene:      string(p.Scene),
		Role:       string(p.Role),
		Attributes: string(attrs),
		Active:     p.Active,
		UpdatedAt:  p.UpdatedAt.UnixMilli(),
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO profiles (user_id, scene, role, attributes, is_active, is_deleted, updated_at)
		VALUES (:user_id, :scene, :role, :attributes, :is_active, FALSE, :updated_at)
		ON CONFLICT (user_id, scene) DO UPDATE SET
			role = excluded.role,
			attributes = excluded.attributes,
			is_active = excluded.is_active,
			is_deleted = FALSE,
			updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *SQLStore) GetProfile(ctx context.Context, userID string, scene model.Scene) (model.CandidateProfile, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT user_id, scene, role, attributes, is_active, updated_at
		FROM profiles
		WHERE user_id = ? AND scene = ? AND is_active = TRUE AND is_deleted = FALSE`), userID, string(scene))
	if errors.Is(err, sql.ErrNoRows) {
		return model.CandidateProfile{}, fmt.Errorf("%w: user %s has no %s profile", model.ErrNotFound, userID, scene)
	}
	if err != nil {
		return model.CandidateProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return row.toProfile()
}

func (s *SQLStore) QueryActiveCandidates(ctx context.Context, scene model.Scene, targetRole model.Role, excludeUserID string, limit int) ([]model.CandidateProfile, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	query := `
		SELECT user_id, scene, role, attributes, is_active, updated_at
		FROM profiles
		WHERE scene = ? AND is_active = TRUE AND is_deleted = FALSE AND user_id <> ?`
	args := []any{string(scene), excludeUserID}
	if targetRole != "" {
		query += ` AND role = ?`
		args = append(args, string(targetRole))
	}
	query += ` ORDER BY updated_at DESC, user_id ASC LIMIT ?`
	args = append(args, limit)

	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	out := make([]model.CandidateProfile, 0, len(rows))
	for _, r := range rows {
		p, err := r.toProfile()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLStore) ActiveUsers(ctx context.Context, scene model.Scene, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	var ids []string
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(`
		SELECT user_id FROM profiles
		WHERE scene = ? AND is_active = TRUE AND is_deleted = FALSE
		ORDER BY updated_at DESC, user_id ASC LIMIT ?`), string(scene), limit)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return ids, nil
}

func (s *SQLStore) Stats(ctx context.Context) (model.Statistics, error) {
	var row struct {
		Profiles int `db:"active_profiles"`
		Users    int `db:"active_users"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS active_profiles, COUNT(DISTINCT user_id) AS active_users
		FROM profiles WHERE is_active = TRUE AND is_deleted = FALSE`)
	if err != nil {
		return model.Statistics{}, fmt.Errorf("count profiles: %w", err)
	}
	return model.Statistics{ActiveUsers: row.Users, ActiveProfiles: row.Profiles}, nil
}

func (s *SQLStore) GetActedTargets(ctx context.Context, userID string, scene model.Scene) (map[string]struct{}, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(`
		SELECT DISTINCT target_user_id FROM match_actions WHERE user_id = ? AND scene = ?`),
		userID, string(scene))
	if err != nil {
		return nil, fmt.Errorf("get acted targets: %w", err)
	}
	acted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		acted[id] = struct{}{}
	}
	return acted, nil
}

func (s *SQLStore) Record(ctx context.Context, action model.Action) error {
	if action.UserID == "" || action.TargetUserID == "" {
		return ErrInvalidAction
	}
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO match_actions (id, user_id, target_user_id, scene, action_type, created_at)
		VALUES (:id, :user_id, :target_user_id, :scene, :action_type, :created_at)`, actionRow{
		ID:           action.ID,
		UserID:       action.UserID,
		TargetUserID: action.TargetUserID,
		Scene:        string(action.Scene),
		ActionType:   string(action.Type),
		CreatedAt:    action.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM match_actions WHERE created_at < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete actions: %w", err)
	}
	return affected(res)
}

func (s *SQLStore) DeactivateStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE matches SET is_active = FALSE
		WHERE is_active = TRUE AND last_activity_at < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("deactivate matches: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (r profileRow) toProfile() (model.CandidateProfile, error) {
	attrs := model.Attributes{}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return model.CandidateProfile{}, fmt.Errorf("decode attributes of %s/%s: %w", r.UserID, r.Scene, err)
		}
	}
	return model.CandidateProfile{
		UserID:     r.UserID,
		Scene:      model.Scene(r.Scene),
		Role:       model.Role(r.Role),
		Active:     r.Active,
		Attributes: attrs,
		UpdatedAt:  time.UnixMilli(r.UpdatedAt),
	}, nil
}
