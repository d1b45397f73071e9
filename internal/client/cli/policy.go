package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/vault"
)

// ErrPolicyDenied wraps the reason an item's policy refused access.
var ErrPolicyDenied = errors.New("access denied by item policy")

const (
	eventPasswordViewed = "PASSWORD_VIEWED"
	eventPasswordCopied = "PASSWORD_COPIED"
)

// authorize evaluates the item policy for action against the local clock. Honey
// token threats are reported before anything else, and a lockdown they
// trigger refuses the access. When the policy asks for
// the master password it is read and verified, then the policy is evaluated
// again. It reports whether the clipboard must be wiped afterwards.
func (a *App) authorize(ctx context.Context, it vault.Item, action vault.Action) (bool, error) {
	d := vault.Evaluate(it.Policy, action, a.now(), false)
	if d.Threat != nil {
		a.reportThreat(ctx, d.Threat)
		if a.lockedDown.Load() {
			return false, ErrLockedDown
		}
	}

	if d.NeedsReproof {
		pw, err := getPassword(a.out, "This item requires your master password: ")
		if err != nil {
			return false, err
		}
		err = a.auth.VerifyPassword(ctx, a.session, pw)
		common.WipeByteArray(pw)
		if err != nil {
			return false, err
		}
		d = vault.Evaluate(it.Policy, action, a.now(), true)
	}

	if !d.Allowed {
		return false, fmt.Errorf("%w: %s", ErrPolicyDenied, d.Reason)
	}

	event := eventPasswordViewed
	if action == vault.ActionCopy {
		event = eventPasswordCopied
	}
	if _, err := a.client.RecordEvent(ctx, &api.RecordEventRequest{
		Event:    event,
		Metadata: map[string]any{"itemId": it.ID, "vaultId": it.VaultID},
	}); err != nil {
		a.logger.Warn(ctx, "record event", "event", event, "err", err)
	}
	return d.WipeAfter, nil
}

// reportThreat forwards t to the server and applies the returned status.
// Failures are logged only.
func (a *App) reportThreat(ctx context.Context, t *vault.ThreatReport) {
	sev := t.Severity
	st, err := a.client.ReportThreat(ctx, &api.ReportThreatRequest{
		Event:    t.Event,
		Details:  t.Details,
		Severity: &sev,
	})
	if err != nil {
		a.logger.Warn(ctx, "report threat", "event", t.Event, "err", err)
		return
	}
	a.applyStatus(st.ThreatLevel, st.IsLockedDown)
}
