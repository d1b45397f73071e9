package models

import "time"

type Session struct {
	ID           string
	UserID       string
	UserName     string
	Token        string
	ExpiresAt    time.Time
	ThreatLevel  int
	IsLockedDown bool
	CreatedAt    time.Time
}

// SessionStatus is the threat state reported to clients.
type SessionStatus struct {
	ThreatLevel  int
	IsLockedDown bool
	ExpiresAt    time.Time
}

func (s *Session) Status() SessionStatus {
	return SessionStatus{ThreatLevel: s.ThreatLevel, IsLockedDown: s.IsLockedDown, ExpiresAt: s.ExpiresAt}
}
