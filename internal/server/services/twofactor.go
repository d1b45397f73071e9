package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/otpx"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/repomanager"
)

// TwoFactorService enrols and enables the time-based second factor.
type TwoFactorService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
	now         func() time.Time
}

func NewTwoFactorService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService) *TwoFactorService {
	return &TwoFactorService{db: db, repomanager: m, audit: audit, now: time.Now}
}

// Setup generates a secret and keeps it as pending until Enable confirms a
// code. Calling Setup again replaces the pending secret.
func (s *TwoFactorService) Setup(ctx context.Context, sess *models.Session) (*otpx.Enrolment, error) {
	enr, err := otpx.Enrol(common.AppName, sess.UserName)
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.Users(s.db).SetTempTwoFactorSecret(ctx, sess.UserID, enr.Secret); err != nil {
		return nil, err
	}
	return enr, nil
}

// Enable verifies code against the pending secret and switches 2FA on.
func (s *TwoFactorService) Enable(ctx context.Context, sess *models.Session, code string) error {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, sess.UserID)
	if err != nil {
		return err
	}
	if user.TempTwoFactorSecret == "" {
		return fmt.Errorf("%w: no pending 2FA setup", common.ErrorValidation)
	}
	if !otpx.Verify(user.TempTwoFactorSecret, code, s.now()) {
		return fmt.Errorf("%w: invalid code", common.ErrorValidation)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).EnableTwoFactor(ctx, sess.UserID); err != nil {
			return err
		}
		return s.audit.record(ctx, tx, sess.UserName, Event2FAEnabled, nil)
	})
}
