// Package services contains server-side business logic. Services hold a
// *sql.DB and a RepositoryManager and bind repositories per call, either to
// the pool or to a transaction opened with dbx.WithTx.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/repomanager"
)

// Audit events written by the server.
const (
	EventRegistrationSuccess   = "REGISTRATION_SUCCESS"
	EventLoginFailure          = "LOGIN_FAILURE"
	EventLoginTrustedBypass    = "LOGIN_TRUSTED_BYPASS"
	EventLogin2FAPending       = "LOGIN_2FA_PENDING"
	EventLoginSuccess          = "LOGIN_SUCCESS"
	EventLogin2FAFailure       = "LOGIN_2FA_FAILURE"
	EventLoginSuccess2FA       = "LOGIN_SUCCESS_2FA"
	EventPasswordReset         = "PASSWORD_RESET_RECOVERY"
	Event2FAEnabled            = "2FA_ENABLED"
	EventThreatPrefix          = "THREAT_DETECTED: "
	EventDeviceTrustRevoked    = "DEVICE_TRUST_REVOKED"
	EventDeviceTrustWipeAll    = "DEVICE_TRUST_WIPE_ALL"
	EventAccountDeleted        = "ACCOUNT_DELETED"
	EventAccountDeleteFailure  = "ACCOUNT_DELETE_FAILURE"
	EventSessionExpired        = "SESSION_EXPIRED"
	EventVaultCreated          = "VAULT_CREATED"
	EventVaultAccess           = "VAULT_ACCESS"
	EventItemCreated           = "ITEM_CREATED"
	EventItemUpdated           = "ITEM_UPDATED"
	EventItemDeleted           = "ITEM_DELETED"
	EventVaultExported         = "VAULT_EXPORTED"
	EventPasskeyLogin          = "LOGIN_PASSKEY_SUCCESS"
	EventPasskeyRegistered     = "PASSKEY_REGISTERED"
	EventPasskeyRevoked        = "PASSKEY_REVOKED"
	EventPasskeyCloneSuspected = "PASSKEY_CLONE_SUSPECTED"
	EventLogout                = "LOGOUT"
)

const (
	// RecentAuditLimit caps Recent.
	RecentAuditLimit  = 50
	maxClientEventLen = 64
)

// AuditService appends to and reads the per-user audit trail. Writes are
// synchronous; callers record before they respond.
type AuditService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAuditService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AuditService {
	return &AuditService{db: db, repomanager: m, logger: logger.With("module", "audit")}
}

// Record appends one event. A failed insert is ErrorInternal.
func (s *AuditService) Record(ctx context.Context, username, event string, metadata map[string]any) error {
	return s.record(ctx, s.db, username, event, metadata)
}

func (s *AuditService) record(ctx context.Context, db dbx.DBTX, username, event string, metadata map[string]any) error {
	err := s.repomanager.AuditLogs(db).Insert(ctx, &models.AuditEntry{
		UserName: username,
		Event:    event,
		Metadata: metadata,
	})
	if err != nil {
		s.logger.Error(ctx, "audit insert failed", "event", event, "error", err)
		return fmt.Errorf("%w: audit: %v", common.ErrorInternal, err)
	}
	s.logger.Debug(ctx, "audit", "user", username, "event", event)
	return nil
}

// Recent returns the newest entries for username, newest first.
func (s *AuditService) Recent(ctx context.Context, username string) ([]models.AuditEntry, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username required", common.ErrorValidation)
	}
	return s.repomanager.AuditLogs(s.db).Recent(ctx, username, RecentAuditLimit)
}

// RecordClientEvent stores an event observed by the client, such as
// PASSWORD_VIEWED. It is always attributed to the session's user.
func (s *AuditService) RecordClientEvent(ctx context.Context, sess *models.Session, event string, metadata map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" || len(event) > maxClientEventLen {
		return fmt.Errorf("%w: event must be 1-%d characters", common.ErrorValidation, maxClientEventLen)
	}
	return s.Record(ctx, sess.UserName, event, metadata)
}
