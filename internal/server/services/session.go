package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/dmitrijs2005/securevault/internal/server/auth"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/sessions"
)

// DefaultThreatSeverity is used when a report carries no severity.
const DefaultThreatSeverity = 1

// SessionService resolves session tokens and runs the threat state machine.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	logger      logging.Logger
	now         func() time.Time
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, logger logging.Logger) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		audit:       audit,
		logger:      logger.With("module", "session"),
		now:         time.Now,
	}
}

// Authenticate resolves token. Missing, unknown and expired tokens are all
// ErrorUnauthorized; sessions are never extended.
func (s *SessionService) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, common.ErrorUnauthorized
	}
	sess, err := s.repomanager.Sessions(s.db).GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// no owner to attribute an audit record to
			s.logger.Warn(ctx, "unknown session token")
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !sess.ExpiresAt.After(s.now()) {
		if err := s.audit.Record(ctx, sess.UserName, EventSessionExpired, nil); err != nil {
			return nil, err
		}
		return nil, common.ErrorUnauthorized
	}
	return sess, nil
}

// Status reports the threat state of the session.
func (s *SessionService) Status(ctx context.Context, sess *models.Session) models.SessionStatus {
	return sess.Status()
}

// ReportThreat adds severity to the session's threat level in one atomic
// statement. Reaching sessions.LockdownThreshold locks the session down for
// good. A nil severity counts as DefaultThreatSeverity.
func (s *SessionService) ReportThreat(ctx context.Context, sess *models.Session, event, details string, severity *int) (*models.SessionStatus, error) {
	if event == "" {
		return nil, fmt.Errorf("%w: event required", common.ErrorValidation)
	}
	sev := DefaultThreatSeverity
	if severity != nil {
		sev = *severity
	}
	if sev < 0 {
		return nil, fmt.Errorf("%w: severity must not be negative", common.ErrorValidation)
	}

	meta := map[string]any{"severity": sev}
	if details != "" {
		meta["details"] = details
	}
	if err := s.audit.Record(ctx, sess.UserName, EventThreatPrefix+event, meta); err != nil {
		return nil, err
	}

	st, err := s.repomanager.Sessions(s.db).AddThreat(ctx, sess.ID, sev)
	if err != nil {
		return nil, err
	}
	if st.IsLockedDown && !sess.IsLockedDown {
		s.logger.Warn(ctx, "session locked down", "user", sess.UserName, "threat_level", st.ThreatLevel)
	}
	return st, nil
}

func createSession(ctx context.Context, repo sessions.Repository, user *models.User, expiresAt time.Time) (*models.Session, error) {
	token, err := auth.NewSessionToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	sess, err := repo.Create(ctx, &models.Session{
		UserID:    user.ID,
		UserName:  user.UserName,
		Token:     token,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return sess, nil
}
