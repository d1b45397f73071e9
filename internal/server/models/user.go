// Package models defines server-side data models persisted in the database.
package models

import "time"

// User holds only values derived on the client. Salts are hex text; the
// wrapped keys use the "nonce:ciphertext" framing.
type User struct {
	ID                   string
	UserName             string
	Salt                 string
	AuthHash             string
	EncryptedVaultKey    string
	RecoverySalt         string
	RecoveryVaultKey     string
	EncryptedRecoveryKey string
	TwoFactorEnabled     bool
	TwoFactorSecret      string
	TempTwoFactorSecret  string
	CreatedAt            time.Time
}
