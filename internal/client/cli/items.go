package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/securevault/internal/breach"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/vault"
)

func (a *App) vaultCreate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("vault create", "<name> [icon]")
	}
	var icon string
	if len(args) > 1 {
		icon = args[1]
	}
	ov, err := a.vaults.CreateVault(ctx, a.session, args[0], icon)
	if err != nil {
		return err
	}
	if err := a.useLocked(ctx, ov); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Vault %q created and selected.\n", ov.Info.Name)
	return nil
}

func (a *App) vaultList(ctx context.Context, _ []string) error {
	list, err := a.vaults.ListVaults(ctx)
	if err != nil {
		return err
	}
	for _, v := range list {
		mark := " "
		if a.current != nil && a.current.Info.ID == v.ID {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %-20s %s\n", mark, v.ID, v.Name, v.Icon)
	}
	return nil
}

func (a *App) vaultUse(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("vault use", "<name|id>")
	}
	want := strings.Join(args, " ")
	list, err := a.vaults.ListVaults(ctx)
	if err != nil {
		return err
	}
	for _, v := range list {
		if v.ID == want || strings.EqualFold(v.Name, want) {
			ov, err := a.vaults.OpenVault(ctx, a.session, v)
			if err != nil {
				return err
			}
			if err := a.useLocked(ctx, ov); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Using vault %q (%d items).\n", v.Name, len(a.items))
			return nil
		}
	}
	return fmt.Errorf("%w: no vault %q", common.ErrorNotFound, want)
}

// findItem resolves a list number (1-based) or an item id.
func (a *App) findItem(args []string, usage string) (vault.Item, error) {
	if len(args) != 1 {
		return vault.Item{}, errors.New(usage)
	}
	if a.current == nil {
		return vault.Item{}, errors.New("no vault selected; use vault use <name>")
	}
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 || n > len(a.items) {
			return vault.Item{}, fmt.Errorf("%w: no item #%d", common.ErrorNotFound, n)
		}
		return a.items[n-1], nil
	}
	for _, it := range a.items {
		if it.ID == args[0] {
			return it, nil
		}
	}
	return vault.Item{}, fmt.Errorf("%w: no item %s", common.ErrorNotFound, args[0])
}

func (a *App) itemList(ctx context.Context, args []string) error {
	if err := a.reloadLocked(ctx); err != nil {
		return err
	}
	filter := strings.ToLower(strings.Join(args, " "))
	shown := 0
	for i, it := range a.items {
		if filter != "" && !matches(it, filter) {
			continue
		}
		shown++
		fmt.Fprintf(a.out, "%3d. %-28s %-24s %-6s %s\n", i+1, it.Site, it.Username, it.Type, flags(it))
	}
	if shown == 0 {
		fmt.Fprintln(a.out, "No items.")
	}
	return nil
}

func matches(it vault.Item, filter string) bool {
	if strings.Contains(strings.ToLower(it.Site), filter) ||
		strings.Contains(strings.ToLower(it.Username), filter) ||
		strings.Contains(strings.ToLower(it.Category), filter) {
		return true
	}
	for _, t := range it.Tags {
		if strings.EqualFold(t, filter) {
			return true
		}
	}
	return false
}

// flags summarises an item's policy for list output. Honey tokens are not
// flagged.
func flags(it vault.Item) string {
	if it.Corrupt {
		return "[corrupt]"
	}
	var f []string
	p := it.Policy
	if p.RequireAuth {
		f = append(f, "auth")
	}
	if p.TimeLock != nil {
		f = append(f, "hours "+p.TimeLock.Start+"-"+p.TimeLock.End)
	}
	if p.LockedUntil != nil {
		f = append(f, "until "+p.LockedUntil.Local().Format(timeLayout))
	}
	if p.AutoWipe {
		f = append(f, "autowipe")
	}
	if len(f) == 0 {
		return ""
	}
	return "[" + strings.Join(f, ", ") + "]"
}

func (a *App) itemShow(ctx context.Context, args []string) error {
	it, err := a.findItem(args, "usage: item show <n|id>")
	if err != nil {
		return err
	}
	if it.Corrupt {
		return common.ErrorDecryption
	}
	if _, err := a.authorize(ctx, it, vault.ActionView); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Site:     %s\n", it.Site)
	fmt.Fprintf(a.out, "Username: %s\n", it.Username)
	fmt.Fprintf(a.out, "Password: %s\n", it.Password)
	if it.Notes != "" {
		fmt.Fprintf(a.out, "Notes:    %s\n", it.Notes)
	}
	if it.Category != "" {
		fmt.Fprintf(a.out, "Category: %s\n", it.Category)
	}
	if len(it.Tags) > 0 {
		fmt.Fprintf(a.out, "Tags:     %s\n", strings.Join(it.Tags, ", "))
	}
	if it.Password != "" {
		fmt.Fprintf(a.out, "Strength: %s\n", vault.PasswordStrength(it.Password).Label)
	}
	if !it.UpdatedAt.IsZero() {
		fmt.Fprintf(a.out, "Updated:  %s\n", it.UpdatedAt.Local().Format(timeLayout))
	}
	if len(it.History) > 0 {
		fmt.Fprintf(a.out, "History:  %d previous password(s)\n", len(it.History))
	}
	return nil
}

func (a *App) itemCopy(ctx context.Context, args []string) error {
	it, err := a.findItem(args, "usage: item copy <n|id>")
	if err != nil {
		return err
	}
	if it.Corrupt {
		return common.ErrorDecryption
	}
	wipe, err := a.authorize(ctx, it, vault.ActionCopy)
	if err != nil {
		return err
	}
	if err := a.wiper.Copy(it.Password, wipe); err != nil {
		return err
	}
	if wipe {
		fmt.Fprintf(a.out, "Password copied. The clipboard is cleared in %s.\n", a.config.ClipboardWipeDelay)
	} else {
		fmt.Fprintln(a.out, "Password copied.")
	}
	return nil
}

func (a *App) itemAdd(ctx context.Context, args []string) error {
	kind := vault.TypeLogin
	if len(args) > 0 {
		kind = args[0]
	}
	switch kind {
	case vault.TypeLogin, vault.TypeNote, vault.TypeCard:
	default:
		return usageError("item add", "[login|note|card]")
	}
	if a.current == nil {
		return errors.New("no vault selected; use vault use <name>")
	}

	b, err := a.askBundle(ctx, vault.Bundle{Type: kind}, false)
	if err != nil {
		return err
	}
	it, err := a.vaults.AddItem(ctx, a.current, b)
	if err != nil {
		return err
	}
	if err := a.reloadLocked(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Item %s added.\n", it.ID)
	return nil
}

func (a *App) itemEdit(ctx context.Context, args []string) error {
	it, err := a.findItem(args, "usage: item edit <n|id>")
	if err != nil {
		return err
	}
	if it.Corrupt {
		return common.ErrorDecryption
	}
	// Edits go through the view policy.
	if _, err := a.authorize(ctx, it, vault.ActionView); err != nil {
		return err
	}

	b, err := a.askBundle(ctx, it.Bundle, true)
	if err != nil {
		return err
	}
	if _, err := a.vaults.UpdateItem(ctx, a.current, it, b); err != nil {
		return err
	}
	if err := a.reloadLocked(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Item updated.")
	return nil
}

func (a *App) itemDelete(ctx context.Context, args []string) error {
	it, err := a.findItem(args, "usage: item delete <n|id>")
	if err != nil {
		return err
	}
	ok, err := Confirm(a.reader, fmt.Sprintf("Delete %s (%s)?", it.Site, it.Username), a.out)
	if err != nil || !ok {
		return err
	}
	if err := a.vaults.DeleteItem(ctx, a.current, it.ID); err != nil {
		return err
	}
	if err := a.reloadLocked(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Item deleted.")
	return nil
}

// askBundle prompts for every bundle field, using cur as defaults. An empty
// password generates one when adding and keeps the current one when editing.
func (a *App) askBundle(ctx context.Context, cur vault.Bundle, editing bool) (vault.Bundle, error) {
	b := cur
	var err error

	siteLabel, userLabel, pwLabel := "Site", "Username", "Password (empty to generate)"
	switch b.Type {
	case vault.TypeNote:
		siteLabel, userLabel, pwLabel = "Title", "Label", "Secret (optional)"
	case vault.TypeCard:
		siteLabel, userLabel, pwLabel = "Card name", "Card number", "CVV / PIN"
	}
	if editing {
		pwLabel = "New " + strings.ToLower(pwLabel) + " (empty to keep)"
	}

	if b.Site, err = GetTextOr(a.reader, siteLabel, cur.Site, a.out); err != nil {
		return b, err
	}
	if strings.TrimSpace(b.Site) == "" {
		return b, fmt.Errorf("%w: %s is required", common.ErrorValidation, strings.ToLower(siteLabel))
	}
	if b.Username, err = GetTextOr(a.reader, userLabel, cur.Username, a.out); err != nil {
		return b, err
	}

	pw, err := getPassword(a.out, pwLabel+": ")
	if err != nil {
		return b, err
	}
	switch {
	case len(pw) > 0:
		b.Password = string(pw)
		common.WipeByteArray(pw)
	case editing:
	case b.Type == vault.TypeLogin:
		if b.Password, err = vault.GeneratePassword(vault.DefaultPasswordLength); err != nil {
			return b, err
		}
		fmt.Fprintln(a.out, "Generated a password.")
	}

	if b.Password != "" && b.Type == vault.TypeLogin {
		a.printPasswordHealth(ctx, b.Password)
	}

	if b.Type == vault.TypeNote {
		notes, err := GetMultiline(a.reader, "Note text", a.out)
		if err != nil {
			return b, err
		}
		if notes != "" || !editing {
			b.Notes = notes
		}
	} else if b.Notes, err = GetTextOr(a.reader, "Notes", cur.Notes, a.out); err != nil {
		return b, err
	}

	if b.Category, err = GetTextOr(a.reader, "Category", cur.Category, a.out); err != nil {
		return b, err
	}
	tags, err := GetTextOr(a.reader, "Tags (comma separated)", strings.Join(cur.Tags, ", "), a.out)
	if err != nil {
		return b, err
	}
	b.Tags = SplitList(tags)

	if b.Policy, err = a.askPolicy(cur.Policy); err != nil {
		return b, err
	}
	return b, nil
}

func (a *App) askPolicy(cur vault.Policy) (vault.Policy, error) {
	p := cur
	var err error

	if p.RequireAuth, err = a.askBool("Require master password to reveal", cur.RequireAuth); err != nil {
		return p, err
	}
	if p.AutoWipe, err = a.askBool("Clear clipboard after copy", cur.AutoWipe); err != nil {
		return p, err
	}
	if p.IsHoneyToken, err = a.askBool("Honey token (alert on access)", cur.IsHoneyToken); err != nil {
		return p, err
	}

	var window string
	if cur.TimeLock != nil {
		window = cur.TimeLock.Start + "-" + cur.TimeLock.End
	}
	window, err = GetTextOr(a.reader, "Allowed hours HH:MM-HH:MM (none to clear)", window, a.out)
	if err != nil {
		return p, err
	}
	if p.TimeLock, err = parseTimeLock(window); err != nil {
		return p, err
	}

	var until string
	if cur.LockedUntil != nil {
		until = cur.LockedUntil.Local().Format(timeLayout)
	}
	until, err = GetTextOr(a.reader, "Locked until YYYY-MM-DD [HH:MM] (none to clear)", until, a.out)
	if err != nil {
		return p, err
	}
	if p.LockedUntil, err = parseLockedUntil(until); err != nil {
		return p, err
	}
	return p, nil
}

func (a *App) askBool(prompt string, cur bool) (bool, error) {
	def := "n"
	if cur {
		def = "y"
	}
	s, err := GetTextOr(a.reader, prompt+" (y/n)", def, a.out)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(s) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return false, fmt.Errorf("%w: answer y or n", common.ErrorValidation)
}

// parseTimeLock accepts "HH:MM-HH:MM". Empty input and "none" mean no lock.
func parseTimeLock(s string) (*vault.TimeLock, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("%w: allowed hours must look like 09:00-17:00", common.ErrorValidation)
	}
	tl := &vault.TimeLock{Start: strings.TrimSpace(start), End: strings.TrimSpace(end)}
	if _, err := tl.Contains(time.Now()); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return tl, nil
}

// parseLockedUntil accepts a local date or date and time.
func parseLockedUntil(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	for _, layout := range []string{timeLayout, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("%w: unrecognised date %q", common.ErrorValidation, s)
}

// printPasswordHealth shows strength and the breach count. Breach lookup
// failures are reported but do not block saving.
func (a *App) printPasswordHealth(ctx context.Context, password string) {
	s := vault.PasswordStrength(password)
	fmt.Fprintf(a.out, "Strength: %s (%d/5)\n", s.Label, s.Score)

	n, err := breach.HashCount(ctx, a.client, password)
	switch {
	case err != nil:
		fmt.Fprintln(a.out, "Breach check unavailable:", err)
	case n > 0:
		fmt.Fprintf(a.out, "Warning: this password appears in %d known breaches.\n", n)
	default:
		fmt.Fprintln(a.out, "Not found in known breaches.")
	}
}

func (a *App) generate(_ context.Context, args []string) error {
	length := vault.DefaultPasswordLength
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 8 || n > 128 {
			return fmt.Errorf("%w: length must be between 8 and 128", common.ErrorValidation)
		}
		length = n
	}
	pw, err := vault.GeneratePassword(length)
	if err != nil {
		return err
	}
	s := vault.PasswordStrength(pw)
	fmt.Fprintln(a.out, pw)
	fmt.Fprintf(a.out, "Strength: %s\n", s.Label)
	return nil
}
