package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/securevault/internal/dbx"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/repositories/repomanager"
)

// TrustedDevice is a trust token as shown to its owner.
type TrustedDevice struct {
	ID          string
	DeviceName  string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	IsCurrent   bool
}

// TrustService lists and revokes trusted devices.
type TrustService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	audit       *AuditService
}

func NewTrustService(db *sql.DB, m repomanager.RepositoryManager, audit *AuditService) *TrustService {
	return &TrustService{db: db, repomanager: m, audit: audit}
}

// List marks the device whose fingerprint equals the caller's as current.
func (s *TrustService) List(ctx context.Context, sess *models.Session, fingerprint string) ([]TrustedDevice, error) {
	tokens, err := s.repomanager.TrustTokens(s.db).ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]TrustedDevice, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, TrustedDevice{
			ID:          t.ID,
			DeviceName:  t.DeviceName,
			Fingerprint: t.Fingerprint,
			ExpiresAt:   t.ExpiresAt,
			CreatedAt:   t.CreatedAt,
			IsCurrent:   fingerprint != "" && t.Fingerprint == fingerprint,
		})
	}
	return out, nil
}

// Revoke deletes one of the caller's tokens. Foreign ids are ErrorNotFound.
func (s *TrustService) Revoke(ctx context.Context, sess *models.Session, id string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.TrustTokens(tx).Delete(ctx, id, sess.UserID); err != nil {
			return err
		}
		return s.audit.record(ctx, tx, sess.UserName, EventDeviceTrustRevoked, map[string]any{"tokenId": id})
	})
}

// RevokeAll deletes every trust token of the caller and returns how many
// there were.
func (s *TrustService) RevokeAll(ctx context.Context, sess *models.Session) (int64, error) {
	return dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (int64, error) {
		n, err := s.repomanager.TrustTokens(tx).DeleteAll(ctx, sess.UserID)
		if err != nil {
			return 0, err
		}
		if err := s.audit.record(ctx, tx, sess.UserName, EventDeviceTrustWipeAll, map[string]any{"count": n}); err != nil {
			return 0, err
		}
		return n, nil
	})
}
