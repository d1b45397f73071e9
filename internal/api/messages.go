package api

import (
	"encoding/json"
	"time"
)

type PingRequest struct{}

type PingResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type RegisterRequest struct {
	Username             string `json:"username" validate:"required,max=128"`
	Salt                 string `json:"salt" validate:"required"`
	AuthHash             string `json:"authHash" validate:"required"`
	EncryptedVaultKey    string `json:"encryptedVaultKey" validate:"required"`
	RecoverySalt         string `json:"recoverySalt,omitempty"`
	RecoveryVaultKey     string `json:"recoveryVaultKey,omitempty"`
	EncryptedRecoveryKey string `json:"encryptedRecoveryKey,omitempty"`
}

type RegisterResponse struct {
	UserID string `json:"userId"`
}

type GetSaltRequest struct {
	Username string `json:"username" validate:"required"`
}

type GetSaltResponse struct {
	Salt                 string `json:"salt"`
	RecoverySalt         string `json:"recoverySalt,omitempty"`
	RecoveryVaultKey     string `json:"recoveryVaultKey,omitempty"`
	EncryptedVaultKey    string `json:"encryptedVaultKey"`
	EncryptedRecoveryKey string `json:"encryptedRecoveryKey,omitempty"`
}

type LoginRequest struct {
	Username    string `json:"username" validate:"required"`
	AuthHash    string `json:"authHash" validate:"required"`
	Fingerprint string `json:"fingerprint,omitempty"`
	TrustToken  string `json:"trustToken,omitempty"`
}

// LoginResponse is either a pending second factor or an open session.
type LoginResponse struct {
	TwoFactorRequired    bool      `json:"twoFactorRequired,omitempty"`
	Username             string    `json:"username"`
	SessionToken         string    `json:"sessionToken,omitempty"`
	ExpiresAt            time.Time `json:"expiresAt"`
	EncryptedVaultKey    string    `json:"encryptedVaultKey,omitempty"`
	EncryptedRecoveryKey string    `json:"encryptedRecoveryKey,omitempty"`
	TwoFactorEnabled     bool      `json:"twoFactorEnabled,omitempty"`
	TrustToken           string    `json:"trustToken,omitempty"`
}

type LoginTwoFactorRequest struct {
	Username    string `json:"username" validate:"required"`
	Code        string `json:"code" validate:"required,numeric,len=6"`
	AuthHash    string `json:"authHash" validate:"required"`
	Fingerprint string `json:"fingerprint,omitempty"`
	TrustDevice bool   `json:"trustDevice,omitempty"`
	DeviceName  string `json:"deviceName,omitempty" validate:"max=128"`
}

type ResetPasswordRequest struct {
	Username             string `json:"username" validate:"required"`
	Salt                 string `json:"salt" validate:"required"`
	AuthHash             string `json:"authHash" validate:"required"`
	EncryptedVaultKey    string `json:"encryptedVaultKey" validate:"required"`
	EncryptedRecoveryKey string `json:"encryptedRecoveryKey,omitempty"`
}

type DeleteAccountRequest struct {
	Username string `json:"username" validate:"required"`
	AuthHash string `json:"authHash" validate:"required"`
	Code     string `json:"code,omitempty" validate:"omitempty,numeric,len=6"`
}

type Empty struct{}

type SetupTwoFactorResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode []byte `json:"qrCode"`
}

type EnableTwoFactorRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

type SessionStatus struct {
	ThreatLevel  int       `json:"threatLevel"`
	IsLockedDown bool      `json:"isLockedDown"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type ReportThreatRequest struct {
	Event    string `json:"event" validate:"required,max=64"`
	Details  string `json:"details,omitempty" validate:"max=512"`
	Severity *int   `json:"severity,omitempty" validate:"omitempty,min=0,max=10"`
}

type ListTrustedDevicesRequest struct {
	Fingerprint string `json:"fingerprint,omitempty"`
}

type TrustedDevice struct {
	ID          string    `json:"id"`
	DeviceName  string    `json:"deviceName"`
	Fingerprint string    `json:"fingerprint"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
	IsCurrent   bool      `json:"isCurrent"`
}

type ListTrustedDevicesResponse struct {
	Devices []TrustedDevice `json:"devices"`
}

type IDRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

type RevokeAllResponse struct {
	Count int64 `json:"count"`
}

type CreateVaultRequest struct {
	Name            string `json:"name" validate:"required,max=128"`
	Icon            string `json:"icon,omitempty" validate:"max=64"`
	EncryptedSubKey string `json:"encryptedSubKey" validate:"required"`
	IV              string `json:"iv" validate:"required"`
}

type Vault struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Icon            string    `json:"icon"`
	EncryptedSubKey string    `json:"encryptedSubKey"`
	IV              string    `json:"iv"`
	CreatedAt       time.Time `json:"createdAt"`
}

type ListVaultsResponse struct {
	Vaults []Vault `json:"vaults"`
}

type ListItemsRequest struct {
	VaultID string `json:"vaultId,omitempty" validate:"omitempty,uuid"`
}

type Item struct {
	ID            string    `json:"id"`
	VaultID       string    `json:"vaultId"`
	EncryptedData string    `json:"encryptedData"`
	IV            string    `json:"iv"`
	BlindIndex    string    `json:"blindIndex,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type ListItemsResponse struct {
	Items []Item `json:"items"`
}

type CreateItemRequest struct {
	VaultID       string `json:"vaultId" validate:"required,uuid"`
	EncryptedData string `json:"encryptedData" validate:"required"`
	IV            string `json:"iv" validate:"required"`
	BlindIndex    string `json:"blindIndex,omitempty" validate:"omitempty,hexadecimal"`
}

type UpdateItemRequest struct {
	ID            string `json:"id" validate:"required,uuid"`
	EncryptedData string `json:"encryptedData" validate:"required"`
	IV            string `json:"iv" validate:"required"`
	BlindIndex    string `json:"blindIndex,omitempty" validate:"omitempty,hexadecimal"`
}

type AuditEntry struct {
	Event     string         `json:"event"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type RecentAuditResponse struct {
	Entries []AuditEntry `json:"entries"`
}

type RecordEventRequest struct {
	Event    string         `json:"event" validate:"required,max=64"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CeremonyResponse carries WebAuthn options as produced by the relying party.
type CeremonyResponse struct {
	CeremonyID string          `json:"ceremonyId"`
	Options    json.RawMessage `json:"options"`
}

type PasskeyRegisterVerifyRequest struct {
	CeremonyID string          `json:"ceremonyId" validate:"required"`
	Response   json.RawMessage `json:"response" validate:"required"`
	WrappedKey string          `json:"wrappedKey" validate:"required"`
	DeviceName string          `json:"deviceName,omitempty" validate:"max=128"`
}

type PasskeyLoginOptionsRequest struct {
	Username string `json:"username" validate:"required"`
}

type PasskeyLoginVerifyRequest struct {
	CeremonyID string          `json:"ceremonyId" validate:"required"`
	Response   json.RawMessage `json:"response" validate:"required"`
}

type PasskeyLoginResponse struct {
	LoginResponse
	WrappedKey string `json:"wrappedKey"`
}

type Passkey struct {
	ID         string     `json:"id"`
	DeviceName string     `json:"deviceName"`
	Transports []string   `json:"transports,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

type ListPasskeysResponse struct {
	Passkeys []Passkey `json:"passkeys"`
}

type BreachRangeRequest struct {
	Prefix string `json:"prefix" validate:"required,len=5,hexadecimal"`
}

type BreachEntry struct {
	Suffix string `json:"suffix"`
	Count  int    `json:"count"`
}

type BreachRangeResponse struct {
	Entries []BreachEntry `json:"entries"`
}

type ExportResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
	Vaults    int       `json:"vaults"`
	Items     int       `json:"items"`
}
