package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/client/services"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/vault"
)

// hostname is a test seam for os.Hostname.
var hostname = os.Hostname

// askUsername takes the username from args or prompts, offering the last
// used one.
func (a *App) askUsername(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	u, err := GetTextOr(a.reader, "Enter username", a.auth.LastUsername(ctx), a.out)
	if err != nil {
		return "", err
	}
	if u == "" {
		return "", fmt.Errorf("%w: username is required", common.ErrorValidation)
	}
	return u, nil
}

// askNewPassword reads a password twice and warns about weak ones.
func (a *App) askNewPassword() ([]byte, error) {
	pw, err := getPassword(a.out, "New master password: ")
	if err != nil {
		return nil, err
	}
	again, err := getPassword(a.out, "Repeat master password: ")
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(again)

	if len(pw) == 0 || !bytes.Equal(pw, again) {
		common.WipeByteArray(pw)
		return nil, fmt.Errorf("%w: passwords are empty or do not match", common.ErrorValidation)
	}
	if s := vault.PasswordStrength(string(pw)); s.Score < services.WeakScore {
		fmt.Fprintf(a.out, "Warning: password strength is %s.\n", s.Label)
	}
	return pw, nil
}

func (a *App) register(ctx context.Context, args []string) error {
	username, err := a.askUsername(ctx, args)
	if err != nil {
		return err
	}
	pw, err := a.askNewPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	recoveryKey, err := a.auth.Register(ctx, username, pw)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Account created.")
	fmt.Fprintln(a.out, "Recovery key (write it down and keep it offline; it is the only way back in):")
	fmt.Fprintln(a.out, "  "+formatRecoveryKey(recoveryKey))
	fmt.Fprintln(a.out, "Use 'login' to unlock your vault.")
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	username, err := a.askUsername(ctx, args)
	if err != nil {
		return err
	}
	pw, err := getPassword(a.out, "Master password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	s, pending, err := a.auth.Login(ctx, username, pw)
	if errors.Is(err, services.ErrTwoFactorRequired) {
		s, err = a.completeTwoFactor(ctx, pending)
	}
	if err != nil {
		return err
	}

	a.startLocked(ctx, s)
	fmt.Fprintf(a.out, "Unlocked as %s.\n", s.Username())
	return nil
}

func (a *App) completeTwoFactor(ctx context.Context, p *services.PendingLogin) (*services.Session, error) {
	code, err := getSimpleText(a.reader, "Enter the 6 digit code from your authenticator app", a.out)
	if err != nil {
		p.Discard()
		return nil, err
	}
	trust, err := Confirm(a.reader, "Trust this device for 30 days?", a.out)
	if err != nil {
		p.Discard()
		return nil, err
	}
	var name string
	if trust {
		def, _ := hostname()
		if name, err = GetTextOr(a.reader, "Device name", def, a.out); err != nil {
			p.Discard()
			return nil, err
		}
	}

	s, err := a.auth.CompleteTwoFactor(ctx, p, code, trust, name)
	if err != nil {
		p.Discard()
		return nil, err
	}
	return s, nil
}

func (a *App) recover(ctx context.Context, args []string) error {
	username, err := a.askUsername(ctx, args)
	if err != nil {
		return err
	}
	rk, err := getSimpleText(a.reader, "Enter your recovery key", a.out)
	if err != nil {
		return err
	}
	pw, err := a.askNewPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if err := a.auth.Recover(ctx, username, rk, pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Master password changed. Every open session was closed; log in again.")
	return nil
}

func (a *App) logout(ctx context.Context, _ []string) error {
	err := a.auth.Logout(ctx, a.session)
	a.clearLocked()
	if err != nil {
		a.logger.Warn(ctx, "server logout failed", "err", err)
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) deleteAccount(ctx context.Context, _ []string) error {
	username := a.session.Username()
	typed, err := getSimpleText(a.reader, fmt.Sprintf("This deletes every vault and item. Type %q to confirm", username), a.out)
	if err != nil {
		return err
	}
	if typed != username {
		fmt.Fprintln(a.out, "Cancelled.")
		return nil
	}

	pw, err := getPassword(a.out, "Master password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	var code string
	if a.session.TwoFactorEnabled() {
		if code, err = getSimpleText(a.reader, "Enter the 6 digit code", a.out); err != nil {
			return err
		}
	}

	if err := a.auth.DeleteAccount(ctx, a.session, pw, code); err != nil {
		return err
	}
	a.clearLocked()
	fmt.Fprintln(a.out, "Account deleted.")
	return nil
}

func (a *App) recoveryKey(ctx context.Context, _ []string) error {
	pw, err := getPassword(a.out, "Master password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	rk, err := a.auth.RevealRecoveryKey(ctx, a.session, pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Recovery key:", formatRecoveryKey(rk))
	return nil
}

func (a *App) twoFactorSetup(ctx context.Context, _ []string) error {
	resp, err := a.client.SetupTwoFactor(ctx, &api.Empty{})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Add this account to your authenticator app:")
	fmt.Fprintln(a.out, "  secret:", resp.Secret)
	fmt.Fprintln(a.out, "  uri:   ", resp.URI)
	fmt.Fprintln(a.out, "Then confirm with: 2fa enable <code>")
	return nil
}

func (a *App) twoFactorEnable(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("2fa enable", "<code>")
	}
	if _, err := a.client.EnableTwoFactor(ctx, &api.EnableTwoFactorRequest{Code: args[0]}); err != nil {
		return err
	}
	a.session = a.session.WithTwoFactor(true)
	fmt.Fprintln(a.out, "Two-factor authentication enabled.")
	return nil
}

func (a *App) passkeysList(ctx context.Context, _ []string) error {
	resp, err := a.client.ListPasskeys(ctx, &api.Empty{})
	if err != nil {
		return err
	}
	if len(resp.Passkeys) == 0 {
		fmt.Fprintln(a.out, "No passkeys.")
		return nil
	}
	for _, p := range resp.Passkeys {
		used := "never"
		if p.LastUsedAt != nil {
			used = p.LastUsedAt.Local().Format(timeLayout)
		}
		fmt.Fprintf(a.out, "%s  %-24s created %s  last used %s\n", p.ID, p.DeviceName, p.CreatedAt.Local().Format(timeLayout), used)
	}
	return nil
}

func (a *App) passkeysRevoke(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("passkeys revoke", "<id>")
	}
	if _, err := a.client.RevokePasskey(ctx, &api.IDRequest{ID: args[0]}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Passkey revoked.")
	return nil
}

func (a *App) passkeysBind(ctx context.Context, args []string) error {
	name := strings.Join(args, " ")
	if name == "" {
		name, _ = hostname()
	}
	pk, err := a.auth.BindPasskey(ctx, a.session, a.manualAuthenticator, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Passkey %s bound as %q.\n", pk.ID, pk.DeviceName)
	return nil
}

func (a *App) passkeysLogin(ctx context.Context, args []string) error {
	username, err := a.askUsername(ctx, args)
	if err != nil {
		return err
	}
	s, err := a.auth.LoginWithPasskey(ctx, username, a.manualAuthenticator)
	if err != nil {
		return err
	}
	a.startLocked(ctx, s)
	fmt.Fprintf(a.out, "Unlocked as %s.\n", s.Username())
	return nil
}

// manualAuthenticator hands the ceremony options to an external
// authenticator tool and reads back its JSON response and PRF output.
func (a *App) manualAuthenticator(_ context.Context, options json.RawMessage) (json.RawMessage, []byte, error) {
	fmt.Fprintln(a.out, "Pass these options to your authenticator:")
	fmt.Fprintln(a.out, string(options))

	resp, err := getSimpleText(a.reader, "Paste the authenticator response (single line JSON)", a.out)
	if err != nil {
		return nil, nil, err
	}
	if !json.Valid([]byte(resp)) {
		return nil, nil, fmt.Errorf("%w: response is not valid JSON", common.ErrorValidation)
	}

	prfHex, err := getSimpleText(a.reader, "Paste the PRF output (hex)", a.out)
	if err != nil {
		return nil, nil, err
	}
	prf, err := hex.DecodeString(strings.TrimSpace(prfHex))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: PRF output is not hex", common.ErrorValidation)
	}
	return json.RawMessage(resp), prf, nil
}

func (a *App) devicesList(ctx context.Context, _ []string) error {
	resp, err := a.client.ListTrustedDevices(ctx, &api.ListTrustedDevicesRequest{Fingerprint: a.fingerprint})
	if err != nil {
		return err
	}
	if len(resp.Devices) == 0 {
		fmt.Fprintln(a.out, "No trusted devices.")
		return nil
	}
	for _, d := range resp.Devices {
		mark := " "
		if d.IsCurrent {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %-24s expires %s\n", mark, d.ID, d.DeviceName, d.ExpiresAt.Local().Format(timeLayout))
	}
	return nil
}

func (a *App) devicesRevoke(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError("devices revoke", "<id>")
	}
	if _, err := a.client.RevokeTrustedDevice(ctx, &api.IDRequest{ID: args[0]}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Device revoked.")
	return nil
}

func (a *App) devicesRevokeAll(ctx context.Context, _ []string) error {
	ok, err := Confirm(a.reader, "Revoke every trusted device? Each will need a 2FA code again.", a.out)
	if err != nil || !ok {
		return err
	}
	resp, err := a.client.RevokeAllTrustedDevices(ctx, &api.Empty{})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Revoked %d device(s).\n", resp.Count)
	return nil
}

const timeLayout = "2006-01-02 15:04"

// formatRecoveryKey groups the key in blocks of eight for transcription.
func formatRecoveryKey(k string) string {
	var groups []string
	for len(k) > 8 {
		groups = append(groups, k[:8])
		k = k[8:]
	}
	groups = append(groups, k)
	return strings.Join(groups, " ")
}
