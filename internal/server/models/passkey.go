package models

import "time"

type Passkey struct {
	ID             string
	UserID         string
	CredentialID   []byte
	PublicKey      []byte
	AAGUID         []byte
	Counter        uint32
	Transports     []string
	DeviceName     string
	WrappedKey     string
	BackupEligible bool
	BackupState    bool
	CreatedAt      time.Time
	LastUsedAt     *time.Time
}
