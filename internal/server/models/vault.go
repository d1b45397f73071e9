package models

import "time"

type Vault struct {
	ID              string
	UserID          string
	Name            string
	Icon            string
	EncryptedSubKey string
	IV              string
	CreatedAt       time.Time
}

// Item is an opaque encrypted bundle. BlindIndex is empty when the client
// did not supply one.
type Item struct {
	ID            string
	VaultID       string
	EncryptedData string
	IV            string
	BlindIndex    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
