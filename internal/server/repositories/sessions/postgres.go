// Package sessions provides the PostgreSQL repository for login sessions and
// their threat state.
package sessions

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/server/models"
)

// LockdownThreshold is the threat level at which a session locks down.
const LockdownThreshold = 3

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	query :=
		`INSERT INTO sessions (user_id, token, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, threat_level, is_locked_down, created_at`
	err := r.db.QueryRowContext(ctx, query, s.UserID, s.Token, s.ExpiresAt).
		Scan(&s.ID, &s.ThreatLevel, &s.IsLockedDown, &s.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return s, nil
}

// GetByToken loads the session together with the owner's username.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	query :=
		`SELECT s.id, s.user_id, u.username, s.token, s.expires_at, s.threat_level, s.is_locked_down, s.created_at
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = $1`
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&s.ID, &s.UserID, &s.UserName, &s.Token, &s.ExpiresAt, &s.ThreatLevel, &s.IsLockedDown, &s.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return s, nil
}

// AddThreat raises the threat level in one statement, so concurrent reports
// can neither lose increments nor skip the lockdown transition. Lockdown is
// sticky for the life of the session.
func (r *PostgresRepository) AddThreat(ctx context.Context, sessionID string, severity int) (*models.SessionStatus, error) {
	query :=
		`UPDATE sessions
		 SET threat_level = threat_level + $2,
		     is_locked_down = is_locked_down OR threat_level + $2 >= $3
		 WHERE id = $1
		 RETURNING threat_level, is_locked_down, expires_at`
	st := &models.SessionStatus{}
	err := r.db.QueryRowContext(ctx, query, sessionID, severity, LockdownThreshold).
		Scan(&st.ThreatLevel, &st.IsLockedDown, &st.ExpiresAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return st, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return dbx.MapError(err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return dbx.MapError(err)
	}
	return nil
}
