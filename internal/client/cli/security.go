package cli

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/securevault/internal/api"
	"github.com/dmitrijs2005/securevault/internal/client/config"
	"github.com/dmitrijs2005/securevault/internal/client/services"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/cryptox"
	"github.com/dmitrijs2005/securevault/internal/filex"
	"github.com/dmitrijs2005/securevault/internal/netx"
)

// ExportDir is created under the working directory by "export save".
const ExportDir = "exports"

func (a *App) status(ctx context.Context, _ []string) error {
	if a.session == nil {
		fmt.Fprintln(a.out, "Not logged in.")
		return nil
	}
	a.refreshStatusLocked(ctx)
	if a.session == nil {
		return nil
	}

	fmt.Fprintf(a.out, "User:        %s\n", a.session.Username())
	if a.current != nil {
		fmt.Fprintf(a.out, "Vault:       %s (%d items)\n", a.current.Info.Name, len(a.items))
	}
	fmt.Fprintf(a.out, "Threat:      %d\n", a.threat.Load())
	fmt.Fprintf(a.out, "Lockdown:    %t\n", a.lockedDown.Load())
	fmt.Fprintf(a.out, "2FA:         %t\n", a.session.TwoFactorEnabled())
	if exp := a.session.ExpiresAt(); !exp.IsZero() {
		fmt.Fprintf(a.out, "Expires:     %s (in %s)\n", exp.Local().Format(timeLayout), exp.Sub(a.now()).Round(time.Minute))
	}
	if a.wiper.Pending() {
		fmt.Fprintln(a.out, "Clipboard:   wipe pending")
	}
	return nil
}

func (a *App) report(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("report", "<event> [severity] [details]")
	}
	event, severity := strings.ToUpper(args[0]), 1
	rest := args[1:]
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			if n < 0 {
				return fmt.Errorf("%w: severity must not be negative", common.ErrorValidation)
			}
			severity = n
			rest = rest[1:]
		}
	}

	st, err := a.client.ReportThreat(ctx, &api.ReportThreatRequest{
		Event:    event,
		Details:  strings.Join(rest, " "),
		Severity: &severity,
	})
	if err != nil {
		return err
	}
	a.applyStatus(st.ThreatLevel, st.IsLockedDown)
	fmt.Fprintf(a.out, "Reported. Threat level %d, lockdown %t.\n", st.ThreatLevel, st.IsLockedDown)
	return nil
}

func (a *App) audit(ctx context.Context, _ []string) error {
	resp, err := a.client.RecentAudit(ctx, &api.Empty{})
	if err != nil {
		return err
	}
	if len(resp.Entries) == 0 {
		fmt.Fprintln(a.out, "No events.")
		return nil
	}
	for _, e := range resp.Entries {
		fmt.Fprintf(a.out, "%s  %-28s %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Event, formatMetadata(e.Metadata))
	}
	return nil
}

func formatMetadata(md map[string]any) string {
	if len(md) == 0 {
		return ""
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, md[k]))
	}
	return strings.Join(parts, " ")
}

func (a *App) scan(ctx context.Context, _ []string) error {
	if err := a.reloadLocked(ctx); err != nil {
		return err
	}
	rep, err := services.Scan(ctx, a.client, a.items)
	if err != nil {
		return err
	}

	for _, f := range rep.Findings {
		var problems []string
		if f.Breaches > 0 {
			problems = append(problems, fmt.Sprintf("seen in %d breaches", f.Breaches))
		}
		if f.Strength.Score < services.WeakScore {
			problems = append(problems, "weak ("+f.Strength.Label+")")
		}
		if f.Reused > 0 {
			problems = append(problems, fmt.Sprintf("reused by %d other item(s)", f.Reused))
		}
		if len(problems) == 0 {
			continue
		}
		fmt.Fprintf(a.out, "%-28s %-24s %s\n", f.Item.Site, f.Item.Username, strings.Join(problems, "; "))
	}
	fmt.Fprintf(a.out, "Checked %d item(s): %d breached, %d weak, %d reused.\n", len(rep.Findings), rep.Breached, rep.Weak, rep.Reused)
	return nil
}

func (a *App) export(ctx context.Context, args []string) error {
	save := len(args) > 0 && args[0] == "save"
	if len(args) > 0 && !save {
		return usageError("export", "[save]")
	}
	if save && a.lockedDown.Load() {
		return ErrLockedDown
	}

	resp, err := a.client.Export(ctx, &api.Empty{})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported %d vault(s) and %d item(s). Items stay encrypted with your keys.\n", resp.Vaults, resp.Items)

	if !save {
		fmt.Fprintf(a.out, "Download (valid until %s):\n%s\n", resp.ExpiresAt.Local().Format(timeLayout), resp.URL)
		return nil
	}

	data, err := netx.DownloadPresigned(ctx, a.http, resp.URL)
	if err != nil {
		return err
	}
	dir, err := filex.EnsureSubDir(ExportDir)
	if err != nil {
		return err
	}
	file, err := filex.WriteFileAtomic(dir, path.Base(resp.Key), data)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Saved to", file)
	return nil
}

// benchProfiles are timed by the bench command.
var benchProfiles = []struct {
	name   string
	params cryptox.Params
}{
	{config.ProfileModerate, cryptox.ModerateParams},
	{config.ProfileInteractive, cryptox.InteractiveParams},
}

func (a *App) bench(_ context.Context, _ []string) error {
	salt := strings.Repeat("00", cryptox.SaltSize)
	for _, p := range benchProfiles {
		e, err := cryptox.Initialize(p.params)
		if err != nil {
			return err
		}
		start := time.Now()
		key, err := e.DeriveKey([]byte("benchmark password"), salt, "bench")
		if err != nil {
			return err
		}
		common.WipeByteArray(key)
		elapsed := time.Since(start)

		current := ""
		if p.name == a.config.KDFProfile || (a.config.KDFProfile == "" && p.name == config.ProfileModerate) {
			current = " (current)"
		}
		fmt.Fprintf(a.out, "%-12s t=%d m=%dMiB p=%d  %s%s\n", p.name, p.params.Time, p.params.MemoryKiB/1024, p.params.Threads, elapsed.Round(time.Millisecond), current)
	}
	return nil
}
