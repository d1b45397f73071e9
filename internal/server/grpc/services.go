package grpc

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/breach"
	"github.com/dmitrijs2005/securevault/internal/otpx"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/dmitrijs2005/securevault/internal/server/services"
	"github.com/go-webauthn/webauthn/protocol"
)

// The interfaces below are the slices of the service layer the handlers use.

type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	GetSalt(ctx context.Context, username string) (*services.SaltInfo, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	LoginTwoFactor(ctx context.Context, in services.TwoFactorLoginInput) (*services.LoginResult, error)
	ResetPassword(ctx context.Context, in services.ResetInput) error
	DeleteAccount(ctx context.Context, sess *models.Session, username, authHash, code string) error
	Logout(ctx context.Context, sess *models.Session) error
}

type SessionService interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
	Status(ctx context.Context, sess *models.Session) models.SessionStatus
	ReportThreat(ctx context.Context, sess *models.Session, event, details string, severity *int) (*models.SessionStatus, error)
}

type TwoFactorService interface {
	Setup(ctx context.Context, sess *models.Session) (*otpx.Enrolment, error)
	Enable(ctx context.Context, sess *models.Session, code string) error
}

type TrustService interface {
	List(ctx context.Context, sess *models.Session, fingerprint string) ([]services.TrustedDevice, error)
	Revoke(ctx context.Context, sess *models.Session, id string) error
	RevokeAll(ctx context.Context, sess *models.Session) (int64, error)
}

type VaultService interface {
	CreateVault(ctx context.Context, sess *models.Session, name, icon, encryptedSubKey, iv string) (*models.Vault, error)
	ListVaults(ctx context.Context, sess *models.Session) ([]models.Vault, error)
	ListItems(ctx context.Context, sess *models.Session, vaultID string) ([]models.Item, error)
	CreateItem(ctx context.Context, sess *models.Session, vaultID string, in services.ItemInput) (*models.Item, error)
	UpdateItem(ctx context.Context, sess *models.Session, id string, in services.ItemInput) (*models.Item, error)
	DeleteItem(ctx context.Context, sess *models.Session, id string) error
}

type AuditService interface {
	Recent(ctx context.Context, username string) ([]models.AuditEntry, error)
	RecordClientEvent(ctx context.Context, sess *models.Session, event string, metadata map[string]any) error
}

type PasskeyService interface {
	RegisterOptions(ctx context.Context, sess *models.Session) (string, *protocol.CredentialCreation, error)
	RegisterVerify(ctx context.Context, sess *models.Session, ceremonyID string, response []byte, wrappedKey, deviceName string) (*models.Passkey, error)
	LoginOptions(ctx context.Context, username string) (string, *protocol.CredentialAssertion, error)
	LoginVerify(ctx context.Context, ceremonyID string, response []byte) (*services.PasskeyLoginResult, error)
	List(ctx context.Context, sess *models.Session) ([]models.Passkey, error)
	Revoke(ctx context.Context, sess *models.Session, id string) error
}

type BreachService interface {
	Range(ctx context.Context, prefix string) ([]breach.Entry, error)
}

type BackupService interface {
	Export(ctx context.Context, sess *models.Session) (*services.Export, error)
}

// Services bundles the dependencies of GRPCServer.
type Services struct {
	Auth      AuthService
	Sessions  SessionService
	TwoFactor TwoFactorService
	Trust     TrustService
	Vaults    VaultService
	Audit     AuditService
	Passkeys  PasskeyService
	Breach    BreachService
	Backup    BackupService
}
