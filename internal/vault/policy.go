package vault

import (
	"fmt"
	"time"
)

// Policy is the per-item access policy stored inside the encrypted bundle.
// It is evaluated on the client against the local clock.
type Policy struct {
	RequireAuth  bool       `json:"requireAuth,omitempty"`
	TimeLock     *TimeLock  `json:"timeLock,omitempty"`
	LockedUntil  *time.Time `json:"lockedUntil,omitempty"`
	AutoWipe     bool       `json:"autoWipe,omitempty"`
	IsHoneyToken bool       `json:"isHoneyToken,omitempty"`
}

// TimeLock is a daily "HH:MM" window. A window with Start after End wraps
// past midnight.
type TimeLock struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Action int

const (
	ActionView Action = iota
	ActionCopy
)

func (a Action) String() string {
	if a == ActionCopy {
		return "copy"
	}
	return "view"
}

// HoneyTokenEvent is reported when a honey-token item is touched.
const HoneyTokenEvent = "HONEY_TOKEN_ACCESSED"

// ThreatReport is a signal the client must forward to the server.
type ThreatReport struct {
	Event    string
	Details  string
	Severity int
}

// Decision is the outcome of evaluating a policy.
type Decision struct {
	Allowed      bool
	Reason       string
	NeedsReproof bool
	WipeAfter    bool
	Threat       *ThreatReport
}

// Evaluate decides whether action may proceed. reproved reports whether the
// user has just re-entered the master password. A honey token raises a
// threat report on every attempt, allowed or not.
func Evaluate(p Policy, action Action, now time.Time, reproved bool) Decision {
	var d Decision
	if p.IsHoneyToken {
		sev := 1
		if action == ActionCopy {
			sev = 2
		}
		d.Threat = &ThreatReport{
			Event:    HoneyTokenEvent,
			Details:  fmt.Sprintf("honey token %s", action),
			Severity: sev,
		}
	}

	if p.LockedUntil != nil && now.Before(*p.LockedUntil) {
		d.Reason = fmt.Sprintf("locked until %s", p.LockedUntil.Local().Format(time.RFC3339))
		return d
	}

	if p.TimeLock != nil {
		inside, err := p.TimeLock.Contains(now)
		if err != nil {
			d.Reason = err.Error()
			return d
		}
		if !inside {
			d.Reason = fmt.Sprintf("available only between %s and %s", p.TimeLock.Start, p.TimeLock.End)
			return d
		}
	}

	if p.RequireAuth && !reproved {
		d.NeedsReproof = true
		d.Reason = "master password required"
		return d
	}

	d.Allowed = true
	d.WipeAfter = action == ActionCopy && p.AutoWipe
	return d
}

// Contains reports whether now's local wall-clock time falls in the window.
// Equal bounds mean no restriction.
func (t TimeLock) Contains(now time.Time) (bool, error) {
	start, err := parseClock(t.Start)
	if err != nil {
		return false, err
	}
	end, err := parseClock(t.End)
	if err != nil {
		return false, err
	}
	now = now.Local()
	cur := now.Hour()*60 + now.Minute()
	switch {
	case start == end:
		return true, nil
	case start < end:
		return cur >= start && cur < end, nil
	default:
		return cur >= start || cur < end, nil
	}
}

func parseClock(s string) (int, error) {
	ts, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time lock %q", s)
	}
	return ts.Hour()*60 + ts.Minute(), nil
}
