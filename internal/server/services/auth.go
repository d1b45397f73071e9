package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/dmitrijs2005/securevault/internal/otpx"
	"github.com/dmitrijs2005/securevault/internal/server/auth"
	"github.com/dmitrijs2005/securevault/internal/server/config"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/repomanager"
)

// RegisterInput carries the client-built key material of a new account.
type RegisterInput struct {
	UserName             string
	Salt                 string
	AuthHash             string
	EncryptedVaultKey    string
	RecoverySalt         string
	RecoveryVaultKey     string
	EncryptedRecoveryKey string
}

// SaltInfo is everything a client needs before it can derive keys.
type SaltInfo struct {
	Salt                 string
	RecoverySalt         string
	RecoveryVaultKey     string
	EncryptedVaultKey    string
	EncryptedRecoveryKey string
}

// LoginResult is either a pending second factor (TwoFactorRequired) or an
// established session with the wrapped keys.
type LoginResult struct {
	TwoFactorRequired    bool
	UserName             string
	Session              *models.Session
	EncryptedVaultKey    string
	EncryptedRecoveryKey string
	TwoFactorEnabled     bool
	TrustToken           string
}

// LoginInput is the first login step.
type LoginInput struct {
	UserName    string
	AuthHash    string
	Fingerprint string
	TrustToken  string
}

// TwoFactorLoginInput is the second login step.
type TwoFactorLoginInput struct {
	UserName    string
	Code        string
	AuthHash    string
	Fingerprint string
	TrustDevice bool
	DeviceName  string
}

// ResetInput replaces the password branch after recovery.
type ResetInput struct {
	UserName             string
	Salt                 string
	AuthHash             string
	EncryptedVaultKey    string
	EncryptedRecoveryKey string
}

// AuthService runs registration, the login handshake, recovery resets and
// account deletion.
type AuthService struct {
	db                         *sql.DB
	repomanager                repomanager.RepositoryManager
	audit                      *AuditService
	logger                     logging.Logger
	jwtSecret                  []byte
	sessionValidityDuration    time.Duration
	trustTokenValidityDuration time.Duration
	now                        func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService, logger logging.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                         db,
		repomanager:                m,
		audit:                      audit,
		logger:                     logger.With("module", "auth"),
		jwtSecret:                  []byte(cfg.SecretKey),
		sessionValidityDuration:    cfg.SessionValidityDuration,
		trustTokenValidityDuration: cfg.TrustTokenValidityDuration,
		now:                        time.Now,
	}
}

// Register stores a new account. The recovery fields are optional.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if in.UserName == "" || in.Salt == "" || in.AuthHash == "" || in.EncryptedVaultKey == "" {
		return nil, fmt.Errorf("%w: missing registration fields", common.ErrorValidation)
	}

	user := &models.User{
		UserName:             in.UserName,
		Salt:                 in.Salt,
		AuthHash:             in.AuthHash,
		EncryptedVaultKey:    in.EncryptedVaultKey,
		RecoverySalt:         in.RecoverySalt,
		RecoveryVaultKey:     in.RecoveryVaultKey,
		EncryptedRecoveryKey: in.EncryptedRecoveryKey,
	}

	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		u, err := s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("error creating user: %w", err)
		}
		if err := s.audit.record(ctx, tx, in.UserName, EventRegistrationSuccess, nil); err != nil {
			return nil, err
		}
		return u, nil
	})
}

// GetSalt returns the salts and wrapped keys of username. Unknown users are
// ErrorNotFound; account existence is observable.
func (s *AuthService) GetSalt(ctx context.Context, username string) (*SaltInfo, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username required", common.ErrorValidation)
	}
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		return nil, err
	}
	return &SaltInfo{
		Salt:                 user.Salt,
		RecoverySalt:         user.RecoverySalt,
		RecoveryVaultKey:     user.RecoveryVaultKey,
		EncryptedVaultKey:    user.EncryptedVaultKey,
		EncryptedRecoveryKey: user.EncryptedRecoveryKey,
	}, nil
}

// Login checks the auth hash. With two-factor enabled it either accepts a
// valid trust token for the presented fingerprint or reports the second
// factor as pending.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.UserName == "" || in.AuthHash == "" {
		return nil, fmt.Errorf("%w: missing credentials", common.ErrorValidation)
	}

	user, err := s.checkCredentials(ctx, in.UserName, in.AuthHash)
	if err != nil {
		return nil, err
	}

	if user.TwoFactorEnabled {
		trusted, err := s.isTrusted(ctx, user, in.Fingerprint, in.TrustToken)
		if err != nil {
			return nil, err
		}
		if !trusted {
			if err := s.audit.Record(ctx, user.UserName, EventLogin2FAPending, nil); err != nil {
				return nil, err
			}
			return &LoginResult{TwoFactorRequired: true, UserName: user.UserName}, nil
		}
	}

	if err := s.audit.Record(ctx, user.UserName, EventLoginSuccess, nil); err != nil {
		return nil, err
	}

	return s.openSession(ctx, user)
}

// LoginTwoFactor re-validates the hash and checks the time-based code. With
// TrustDevice set it also issues a trust token for the fingerprint.
func (s *AuthService) LoginTwoFactor(ctx context.Context, in TwoFactorLoginInput) (*LoginResult, error) {
	if in.UserName == "" || in.Code == "" || in.AuthHash == "" {
		return nil, fmt.Errorf("%w: missing parameters", common.ErrorValidation)
	}

	user, err := s.checkCredentials(ctx, in.UserName, in.AuthHash)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		if err := s.audit.Record(ctx, user.UserName, EventLoginFailure, map[string]any{"reason": "2FA not enabled"}); err != nil {
			return nil, err
		}
		return nil, common.ErrorUnauthorized
	}

	if !otpx.Verify(user.TwoFactorSecret, in.Code, s.now()) {
		if err := s.audit.Record(ctx, user.UserName, EventLogin2FAFailure, nil); err != nil {
			return nil, err
		}
		return nil, common.ErrorUnauthorized
	}

	if err := s.audit.Record(ctx, user.UserName, EventLoginSuccess2FA, nil); err != nil {
		return nil, err
	}

	res, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if in.TrustDevice && in.Fingerprint != "" {
		tok, err := s.trustDevice(ctx, user, in.Fingerprint, in.DeviceName)
		if err != nil {
			return nil, err
		}
		res.TrustToken = tok
	}

	return res, nil
}

// ResetPassword replaces the password branch of the key hierarchy. The
// recovery branch is left as it is, so the recovery key keeps working.
// Open sessions of the account are closed.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetInput) error {
	if in.UserName == "" || in.Salt == "" || in.AuthHash == "" || in.EncryptedVaultKey == "" {
		return fmt.Errorf("%w: missing required fields", common.ErrorValidation)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)
		user, err := users.GetUserByLogin(ctx, in.UserName)
		if err != nil {
			return err
		}
		if err := users.UpdatePassword(ctx, user.ID, in.Salt, in.AuthHash, in.EncryptedVaultKey, in.EncryptedRecoveryKey); err != nil {
			return err
		}
		if err := s.repomanager.Sessions(tx).DeleteByUser(ctx, user.ID); err != nil {
			return err
		}
		return s.audit.record(ctx, tx, user.UserName, EventPasswordReset, nil)
	})
}

// DeleteAccount removes the session's account after re-proof of the master
// password and, when enabled, the second factor.
func (s *AuthService) DeleteAccount(ctx context.Context, sess *models.Session, username, authHash, code string) error {
	if username == "" || authHash == "" {
		return fmt.Errorf("%w: missing parameters", common.ErrorValidation)
	}
	if sess.UserName != username {
		return s.deleteRefused(ctx, sess.UserName, "Username mismatch", common.ErrorUnauthorized)
	}

	users := s.repomanager.Users(s.db)
	user, err := users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.deleteRefused(ctx, sess.UserName, "User not found", common.ErrorUnauthorized)
		}
		return err
	}
	if !hashEqual(user.AuthHash, authHash) {
		return s.deleteRefused(ctx, user.UserName, "Invalid hash", common.ErrorUnauthorized)
	}
	if user.TwoFactorEnabled {
		if code == "" {
			return s.deleteRefused(ctx, user.UserName, "2FA code required",
				fmt.Errorf("%w: 2FA code required", common.ErrorValidation))
		}
		if !otpx.Verify(user.TwoFactorSecret, code, s.now()) {
			return s.deleteRefused(ctx, user.UserName, "Invalid 2FA code", common.ErrorUnauthorized)
		}
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).Delete(ctx, user.ID); err != nil {
			return err
		}
		return s.audit.record(ctx, tx, user.UserName, EventAccountDeleted, map[string]any{"method": "confirm"})
	})
}

// deleteRefused records a refused deletion and returns cause, or the audit
// error if the record could not be written.
func (s *AuthService) deleteRefused(ctx context.Context, username, reason string, cause error) error {
	if err := s.audit.Record(ctx, username, EventAccountDeleteFailure, map[string]any{"reason": reason}); err != nil {
		return err
	}
	return cause
}

// Logout ends the session.
func (s *AuthService) Logout(ctx context.Context, sess *models.Session) error {
	if err := s.repomanager.Sessions(s.db).Delete(ctx, sess.Token); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return s.audit.Record(ctx, sess.UserName, EventLogout, nil)
}

// --- helpers below ---

func hashEqual(stored, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1
}

// checkCredentials audits the precise failure reason while callers only ever
// see ErrorUnauthorized.
func (s *AuthService) checkCredentials(ctx context.Context, username, authHash string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, username)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		if err := s.audit.Record(ctx, username, EventLoginFailure, map[string]any{"reason": "User not found"}); err != nil {
			return nil, err
		}
		return nil, common.ErrorUnauthorized
	}

	if !hashEqual(user.AuthHash, authHash) {
		if err := s.audit.Record(ctx, username, EventLoginFailure, map[string]any{"reason": "Invalid hash"}); err != nil {
			return nil, err
		}
		return nil, common.ErrorUnauthorized
	}

	return user, nil
}

// isTrusted reports whether the presented trust token bypasses the second
// factor. Expired tokens are deleted.
func (s *AuthService) isTrusted(ctx context.Context, user *models.User, fingerprint, token string) (bool, error) {
	if fingerprint == "" || token == "" {
		return false, nil
	}

	repo := s.repomanager.TrustTokens(s.db)
	stored, err := repo.Find(ctx, user.ID, fingerprint)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	if !hashEqual(stored.Token, token) {
		return false, nil
	}

	verr := auth.VerifyTrustToken(token, user.ID, fingerprint, s.jwtSecret)
	if !stored.ExpiresAt.After(s.now()) || errors.Is(verr, common.ErrTokenExpired) {
		if err := repo.Delete(ctx, stored.ID, user.ID); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return false, err
		}
		s.logger.Info(ctx, "expired trust token removed", "user", user.UserName)
		return false, nil
	}
	if verr != nil {
		s.logger.Warn(ctx, "trust token rejected", "user", user.UserName, "error", verr)
		return false, nil
	}

	if err := s.audit.Record(ctx, user.UserName, EventLoginTrustedBypass, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AuthService) trustDevice(ctx context.Context, user *models.User, fingerprint, deviceName string) (string, error) {
	tok, err := auth.GenerateTrustToken(user.ID, fingerprint, s.jwtSecret, s.trustTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	if deviceName == "" {
		deviceName = "Unknown Device"
	}
	_, err = s.repomanager.TrustTokens(s.db).Upsert(ctx, &models.TrustToken{
		UserID:      user.ID,
		Fingerprint: fingerprint,
		Token:       tok,
		DeviceName:  deviceName,
		ExpiresAt:   s.now().Add(s.trustTokenValidityDuration),
	})
	if err != nil {
		return "", err
	}
	return tok, nil
}

func (s *AuthService) openSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	sess, err := createSession(ctx, s.repomanager.Sessions(s.db), user, s.now().Add(s.sessionValidityDuration))
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		UserName:             user.UserName,
		Session:              sess,
		EncryptedVaultKey:    user.EncryptedVaultKey,
		EncryptedRecoveryKey: user.EncryptedRecoveryKey,
		TwoFactorEnabled:     user.TwoFactorEnabled,
	}, nil
}
