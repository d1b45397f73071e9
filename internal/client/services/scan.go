package services

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/breach"
	"github.com/dmitrijs2005/securevault/internal/vault"
)

// WeakScore is the strength score below which a password is reported weak.
const WeakScore = 3

// Finding is the scan result for one item.
type Finding struct {
	Item     vault.Item
	Breaches int
	Strength vault.Strength
	// Reused counts other items with the same password.
	Reused int
}

// ScanReport summarises a security scan.
type ScanReport struct {
	Findings []Finding
	Breached int
	Weak     int
	Reused   int
}

// Scan checks every decrypted item against the breach range API and for
// weak or reused passwords. Each distinct password is looked up once.
// Corrupt items and items without a password are skipped.
func Scan(ctx context.Context, r breach.Ranger, items []vault.Item) (ScanReport, error) {
	uses := make(map[string]int)
	for _, it := range items {
		if !it.Corrupt && it.Password != "" {
			uses[it.Password]++
		}
	}

	counts := make(map[string]int, len(uses))
	var rep ScanReport
	for _, it := range items {
		if it.Corrupt || it.Password == "" {
			continue
		}
		n, seen := counts[it.Password]
		if !seen {
			var err error
			n, err = breach.HashCount(ctx, r, it.Password)
			if err != nil {
				return ScanReport{}, err
			}
			counts[it.Password] = n
		}

		f := Finding{
			Item:     it,
			Breaches: n,
			Strength: vault.PasswordStrength(it.Password),
			Reused:   uses[it.Password] - 1,
		}
		if f.Breaches > 0 {
			rep.Breached++
		}
		if f.Strength.Score < WeakScore {
			rep.Weak++
		}
		if f.Reused > 0 {
			rep.Reused++
		}
		rep.Findings = append(rep.Findings, f)
	}
	return rep, nil
}
