package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/securevault/internal/flagx"
)

// parseFlags populates Config fields from the short flags listed in the
// package documentation. Unknown arguments are filtered out first with
// flagx.FilterArgs. Parse errors panic.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-l", "-w", "-f", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	poll := fs.Int("i", int(cfg.StatusPollInterval.Seconds()), "session status poll interval (in seconds)")
	idle := fs.Int("l", int(cfg.IdleLockWindow.Seconds()), "idle auto-lock window (in seconds)")
	wipe := fs.Int("w", int(cfg.ClipboardWipeDelay.Seconds()), "clipboard wipe delay (in seconds)")
	fs.StringVar(&cfg.StateDBPath, "f", cfg.StateDBPath, "local state database file")
	fs.StringVar(&cfg.KDFProfile, "k", cfg.KDFProfile, "key derivation profile (moderate|interactive)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.StatusPollInterval = time.Duration(*poll) * time.Second
	cfg.IdleLockWindow = time.Duration(*idle) * time.Second
	cfg.ClipboardWipeDelay = time.Duration(*wipe) * time.Second
}
