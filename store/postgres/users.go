package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrEmailTaken is returned by Save when another user in the same table holds
// the email.
var ErrEmailTaken = errors.New("email already registered")

// UserStore is a goAccount.UserStore over one user table. The caller owns db.
type UserStore struct {
	db     *sql.DB
	table  string
	quoted string

	selectByID    string
	selectByEmail string
	upsert        string
}

var _ goAccount.UserStore = (*UserStore)(nil)

const userColumns = `id, email, user_type, role_id, password_hash, enabled, verified,
  login_type, reset_token, verification_token, last_login, last_refresh`

// NewUserStore returns a store over table.
func NewUserStore(db *sql.DB, table string) (*UserStore, error) {
	if db == nil {
		return nil, errors.New("postgres: nil db")
	}
	if !validIdent(table) {
		return nil, fmt.Errorf("postgres: invalid table name %q", table)
	}
	t := ident(table)
	return &UserStore{
		db:            db,
		table:         table,
		quoted:        t,
		selectByID:    `SELECT ` + userColumns + ` FROM ` + t + ` WHERE id = $1`,
		selectByEmail: `SELECT ` + userColumns + ` FROM ` + t + ` WHERE lower(email) = lower($1)`,
		upsert: `INSERT INTO ` + t + ` (` + userColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  user_type = EXCLUDED.user_type,
  role_id = EXCLUDED.role_id,
  password_hash = EXCLUDED.password_hash,
  enabled = EXCLUDED.enabled,
  verified = EXCLUDED.verified,
  login_type = EXCLUDED.login_type,
  reset_token = EXCLUDED.reset_token,
  verification_token = EXCLUDED.verification_token,
  last_login = EXCLUDED.last_login,
  last_refresh = EXCLUDED.last_refresh`,
	}, nil
}

// FindByID returns the user with id.
func (s *UserStore) FindByID(ctx context.Context, id string) (goAccount.UserRecord, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.selectByID, id))
	if err != nil {
		return goAccount.UserRecord{}, s.lookupErr(err, id)
	}
	return u, nil
}

// FindByEmail returns the user whose email matches case-insensitively.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (goAccount.UserRecord, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.selectByEmail, strings.TrimSpace(email)))
	if err != nil {
		return goAccount.UserRecord{}, s.lookupErr(err, email)
	}
	return u, nil
}

// Save inserts u or overwrites every column of an existing row. It is meant
// for account creation and admin tooling; engine flows use the narrow
// updates below.
func (s *UserStore) Save(ctx context.Context, u goAccount.UserRecord) error {
	if u.ID == "" {
		return errors.New("save user: empty id")
	}
	_, err := s.db.ExecContext(ctx, s.upsert,
		u.ID, u.Email, u.UserType, u.RoleID, u.PasswordHash, u.Enabled, u.Verified,
		u.LoginType, u.ResetToken, u.VerificationToken,
		nullTime(u.LastLogin), nullTime(u.LastRefresh),
	)
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("save user %s: %w", u.ID, ErrEmailTaken)
	}
	return fmt.Errorf("%w: save user in %s: %v", goAccount.ErrStoreUnavailable, s.table, err)
}

// RecordLogin sets last_login of id.
func (s *UserStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, "record login", `UPDATE `+s.quoted+` SET last_login = $2 WHERE id = $1`, id, nullTime(at))
}

// RecordRefresh sets last_refresh of id.
func (s *UserStore) RecordRefresh(ctx context.Context, id string, at time.Time) error {
	return s.updateOne(ctx, "record refresh", `UPDATE `+s.quoted+` SET last_refresh = $2 WHERE id = $1`, id, nullTime(at))
}

// SetEnabled sets enabled of id.
func (s *UserStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return s.updateOne(ctx, "set enabled", `UPDATE `+s.quoted+` SET enabled = $2 WHERE id = $1`, id, enabled)
}

// SetRole sets role_id of id.
func (s *UserStore) SetRole(ctx context.Context, id, roleID string) error {
	return s.updateOne(ctx, "set role", `UPDATE `+s.quoted+` SET role_id = $2 WHERE id = $1`, id, roleID)
}

// SetPasswordHash sets password_hash of id.
func (s *UserStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	return s.updateOne(ctx, "set password", `UPDATE `+s.quoted+` SET password_hash = $2 WHERE id = $1`, id, hash)
}

// SwapPasswordHash sets password_hash of id while it still equals current.
// A missing row also reports ErrUserChanged.
func (s *UserStore) SwapPasswordHash(ctx context.Context, id, current, next string) error {
	n, err := s.exec(ctx, "swap password",
		`UPDATE `+s.quoted+` SET password_hash = $3 WHERE id = $1 AND password_hash = $2`, id, current, next)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("swap password of %s: %w", id, goAccount.ErrUserChanged)
	}
	return nil
}

// SetOneTimeToken writes token to the column used by purpose.
func (s *UserStore) SetOneTimeToken(ctx context.Context, id string, purpose goAccount.OneTimePurpose, token string) error {
	col := oneTimeColumn(purpose)
	return s.updateOne(ctx, "set "+col, `UPDATE `+s.quoted+` SET `+col+` = $2 WHERE id = $1`, id, token)
}

// CompleteOneTime clears the purpose's token column and applies change in
// one statement guarded on the column still holding token.
func (s *UserStore) CompleteOneTime(ctx context.Context, id string, purpose goAccount.OneTimePurpose, token string, change goAccount.OneTimeChange) error {
	if token == "" {
		return goAccount.ErrTokenInvalidOrExpired
	}
	col := oneTimeColumn(purpose)
	n, err := s.exec(ctx, "complete "+col, `UPDATE `+s.quoted+` SET `+col+` = '',
  password_hash = CASE WHEN $3 = '' THEN password_hash ELSE $3 END,
  verified = verified OR $4
WHERE id = $1 AND `+col+` = $2`, id, token, change.PasswordHash, change.MarkVerified)
	if err != nil {
		return err
	}
	if n == 0 {
		return goAccount.ErrTokenInvalidOrExpired
	}
	return nil
}

func oneTimeColumn(p goAccount.OneTimePurpose) string {
	if p.IsVerification() {
		return "verification_token"
	}
	return "reset_token"
}

// updateOne runs a single-row update and maps zero rows to ErrUserNotFound.
func (s *UserStore) updateOne(ctx context.Context, op, query, id string, arg any) error {
	n, err := s.exec(ctx, op, query, id, arg)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", goAccount.ErrUserNotFound, id)
	}
	return nil
}

func (s *UserStore) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %s in %s: %v", goAccount.ErrStoreUnavailable, op, s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %s in %s: %v", goAccount.ErrStoreUnavailable, op, s.table, err)
	}
	return n, nil
}

func (s *UserStore) lookupErr(err error, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", goAccount.ErrUserNotFound, key)
	}
	return fmt.Errorf("%w: query %s: %v", goAccount.ErrStoreUnavailable, s.table, err)
}

func scanUser(row *sql.Row) (goAccount.UserRecord, error) {
	var (
		u                      goAccount.UserRecord
		lastLogin, lastRefresh sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.UserType, &u.RoleID, &u.PasswordHash, &u.Enabled, &u.Verified,
		&u.LoginType, &u.ResetToken, &u.VerificationToken, &lastLogin, &lastRefresh,
	)
	if err != nil {
		return goAccount.UserRecord{}, err
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	if lastRefresh.Valid {
		u.LastRefresh = lastRefresh.Time
	}
	return u, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}
