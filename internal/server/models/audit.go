package models

import "time"

type AuditEntry struct {
	ID        int64
	UserName  string
	Event     string
	Metadata  map[string]any
	CreatedAt time.Time
}
