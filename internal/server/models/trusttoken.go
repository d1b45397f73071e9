package models

import "time"

// TrustToken marks a device fingerprint as trusted for second-factor bypass.
type TrustToken struct {
	ID          string
	UserID      string
	Fingerprint string
	Token       string
	DeviceName  string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
