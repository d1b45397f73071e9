package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/securevault/internal/common"
)

func (a *App) buildCommands() commandTable {
	cmds := []command{
		{name: "register", usage: "[username]", help: "create an account", run: a.register},
		{name: "login", usage: "[username]", help: "unlock your vault", run: a.login},
		{name: "recover", usage: "[username]", help: "set a new master password with the recovery key", run: a.recover},
		{name: "logout", help: "close the session and wipe keys", session: true, run: a.logout},
		{name: "delete-account", help: "permanently delete the account", session: true, run: a.deleteAccount},
		{name: "recovery-key", help: "show the recovery key", session: true, reveal: true, run: a.recoveryKey},

		{name: "2fa setup", help: "start TOTP enrolment", session: true, run: a.twoFactorSetup},
		{name: "2fa enable", usage: "<code>", help: "confirm TOTP enrolment", session: true, run: a.twoFactorEnable},

		{name: "passkeys list", help: "list bound passkeys", session: true, run: a.passkeysList},
		{name: "passkeys revoke", usage: "<id>", help: "remove a passkey", session: true, run: a.passkeysRevoke},
		{name: "passkeys bind", usage: "[device name]", help: "bind a hardware authenticator", session: true, run: a.passkeysBind},
		{name: "passkeys login", usage: "[username]", help: "unlock with a hardware authenticator", run: a.passkeysLogin},

		{name: "devices list", help: "list trusted devices", session: true, run: a.devicesList},
		{name: "devices revoke", usage: "<id>", help: "revoke a trusted device", session: true, run: a.devicesRevoke},
		{name: "devices revoke-all", help: "revoke every trusted device", session: true, run: a.devicesRevokeAll},

		{name: "status", help: "show session and threat status", run: a.status},
		{name: "report", usage: "<event> [severity] [details]", help: "report a security event", session: true, run: a.report},
		{name: "audit", help: "show recent security events", session: true, run: a.audit},
		{name: "scan", help: "check passwords for breaches, weakness and reuse", session: true, run: a.scan},

		{name: "vault create", usage: "<name> [icon]", help: "create a vault", session: true, run: a.vaultCreate},
		{name: "vault list", help: "list vaults", session: true, run: a.vaultList},
		{name: "vault use", usage: "<name|id>", help: "switch vault", session: true, run: a.vaultUse},

		{name: "item add", usage: "[login|note|card]", help: "add an item", session: true, run: a.itemAdd},
		{name: "item list", usage: "[filter]", help: "list items in the current vault", session: true, run: a.itemList},
		{name: "item show", usage: "<n|id>", help: "reveal an item", session: true, reveal: true, run: a.itemShow},
		{name: "item copy", usage: "<n|id>", help: "copy a password to the clipboard", session: true, reveal: true, run: a.itemCopy},
		{name: "item edit", usage: "<n|id>", help: "edit an item", session: true, run: a.itemEdit},
		{name: "item delete", usage: "<n|id>", help: "delete an item", session: true, run: a.itemDelete},

		{name: "generate", usage: "[length]", help: "generate a strong password", run: a.generate},
		{name: "export", usage: "[save]", help: "export the encrypted vault", session: true, run: a.export},
		{name: "bench", help: "time key derivation profiles", run: a.bench},
	}
	for i := range cmds {
		cmds[i].run = a.serialized(cmds[i].run)
	}
	return newCommandTable(cmds...)
}

// serialized runs fn under mu. An unauthorized answer makes the app
// re-check the session, which locks it when the server has dropped it.
func (a *App) serialized(fn func(ctx context.Context, args []string) error) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, args []string) error {
		a.mu.Lock()
		defer a.mu.Unlock()

		err := fn(ctx, args)
		if err != nil && errors.Is(err, common.ErrorUnauthorized) {
			a.refreshStatusLocked(ctx)
		}
		return err
	}
}
