// Package vault holds the client-side item model: the encrypted bundle
// format, per-item access policy, password strength and generation.
package vault

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/cryptox"
	"github.com/dmitrijs2005/securevault/internal/keyring"
)

// MaxHistory caps the number of previous passwords kept in a bundle.
const MaxHistory = 10

const (
	CorruptSite     = "ERROR DECRYPTING"
	CorruptUsername = "---"
)

const (
	TypeLogin = "login"
	TypeNote  = "note"
	TypeCard  = "card"
)

// HistoryEntry is a previous password.
type HistoryEntry struct {
	Password  string    `json:"password"`
	ChangedAt time.Time `json:"changedAt"`
}

// Bundle is the plaintext of a vault item. The server only ever sees it
// encrypted.
type Bundle struct {
	Site      string         `json:"site"`
	Username  string         `json:"username"`
	Password  string         `json:"password"`
	Notes     string         `json:"notes,omitempty"`
	Category  string         `json:"category,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Type      string         `json:"type,omitempty"`
	Policy    Policy         `json:"policy"`
	History   []HistoryEntry `json:"history,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// WithRevision returns b stamped with now. If prev had a different password
// it is pushed to the head of the history, which is trimmed to MaxHistory.
func (b Bundle) WithRevision(prev *Bundle, now time.Time) Bundle {
	out := b
	out.UpdatedAt = now
	if b.Type == "" {
		out.Type = TypeLogin
	}
	history := append([]HistoryEntry(nil), b.History...)
	if prev != nil {
		history = append([]HistoryEntry(nil), prev.History...)
		if prev.Password != "" && prev.Password != b.Password {
			history = append([]HistoryEntry{{Password: prev.Password, ChangedAt: now}}, history...)
		}
	}
	if len(history) > MaxHistory {
		history = history[:MaxHistory]
	}
	out.History = history
	return out
}

// Record is an item as stored by the server.
type Record struct {
	ID            string
	VaultID       string
	EncryptedData string
	IV            string
	BlindIndex    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is a decrypted record. Corrupt items carry placeholder values.
type Item struct {
	ID      string
	VaultID string
	Bundle
	Corrupt bool
}

// Sealer encrypts and decrypts bundles with a vault's sub-key.
type Sealer struct {
	e      *cryptox.Engine
	subKey *keyring.Key
}

func NewSealer(e *cryptox.Engine, subKey *keyring.Key) *Sealer {
	return &Sealer{e: e, subKey: subKey}
}

// Seal encrypts the full bundle.
func (s *Sealer) Seal(b Bundle) (cryptox.Sealed, error) {
	pt, err := json.Marshal(b)
	if err != nil {
		return cryptox.Sealed{}, fmt.Errorf("marshal bundle: %w", err)
	}
	defer common.WipeByteArray(pt)

	var out cryptox.Sealed
	err = s.subKey.Use(func(k []byte) error {
		var serr error
		out, serr = s.e.EncryptData(pt, k)
		return serr
	})
	return out, err
}

// Open decrypts one bundle.
func (s *Sealer) Open(sealed cryptox.Sealed) (Bundle, error) {
	var b Bundle
	err := s.subKey.Use(func(k []byte) error {
		pt, err := s.e.DecryptData(sealed, k)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(pt)
		if err := json.Unmarshal(pt, &b); err != nil {
			return fmt.Errorf("%w: bad bundle", common.ErrorDecryption)
		}
		return nil
	})
	return b, err
}

// OpenAll decrypts a listing. A record that fails to decrypt becomes a
// placeholder item so the rest of the listing stays usable.
func (s *Sealer) OpenAll(records []Record) []Item {
	items := make([]Item, 0, len(records))
	for _, r := range records {
		b, err := s.Open(cryptox.Sealed{Data: r.EncryptedData, IV: r.IV})
		if err != nil {
			items = append(items, Item{
				ID:      r.ID,
				VaultID: r.VaultID,
				Bundle:  Bundle{Site: CorruptSite, Username: CorruptUsername, UpdatedAt: r.UpdatedAt},
				Corrupt: true,
			})
			continue
		}
		items = append(items, Item{ID: r.ID, VaultID: r.VaultID, Bundle: b})
	}
	return items
}

// BlindIndex returns the equality token for (site, username) in this vault.
func (s *Sealer) BlindIndex(site, username string) (string, error) {
	var out string
	err := s.subKey.Use(func(k []byte) error {
		ik, err := s.e.BlindIndexKey(k)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(ik)
		out = s.e.BlindIndex(ik, site, username)
		return nil
	})
	return out, err
}

// FindDuplicate returns the first non-corrupt item with the same site and
// username, ignoring case and the item with exceptID.
func FindDuplicate(items []Item, site, username, exceptID string) (Item, bool) {
	site = strings.TrimSpace(site)
	username = strings.TrimSpace(username)
	for _, it := range items {
		if it.Corrupt || it.ID == exceptID {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(it.Site), site) &&
			strings.EqualFold(strings.TrimSpace(it.Username), username) {
			return it, true
		}
	}
	return Item{}, false
}
