package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
)

// command is one REPL entry. Names may be two words ("item add"); the
// longest match wins.
type command struct {
	name  string
	usage string
	help  string
	// session commands need an unlocked session.
	session bool
	// reveal commands disclose secrets and are refused during lockdown.
	reveal bool
	run    func(ctx context.Context, args []string) error
}

type commandTable map[string]command

func newCommandTable(cmds ...command) commandTable {
	t := make(commandTable, len(cmds))
	for _, c := range cmds {
		t[c.name] = c
	}
	return t
}

// lookup resolves the command for the given words and returns its
// remaining arguments.
func (t commandTable) lookup(words []string) (command, []string, bool) {
	if len(words) >= 2 {
		if c, ok := t[words[0]+" "+words[1]]; ok {
			return c, words[2:], true
		}
	}
	if len(words) >= 1 {
		if c, ok := t[words[0]]; ok {
			return c, words[1:], true
		}
	}
	return command{}, nil, false
}

// sorted returns commands in name order, for help output.
func (t commandTable) sorted() []command {
	out := make([]command, 0, len(t))
	for _, c := range t {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// subcommands lists the second words registered under group, used when a
// group name is typed on its own.
func (t commandTable) subcommands(group string) []string {
	var subs []string
	for name := range t {
		if rest, ok := strings.CutPrefix(name, group+" "); ok {
			subs = append(subs, rest)
		}
	}
	sort.Strings(subs)
	return subs
}

// gateFunc decides whether cmd may run now.
type gateFunc func(cmd command) error

// runREPL reads commands line by line and dispatches them through table.
// gate runs before every command. The loop ends on EOF, on "exit" or
// "quit", or when ctx is cancelled between commands. Command errors are
// printed and the loop continues.
//
// Lines come from r, the same reader command prompts use, so piped input is
// consumed in order.
func runREPL(ctx context.Context, table commandTable, gate gateFunc, promptFn func() string, r *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "%s> ", promptFn())
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}

		switch words[0] {
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		case "help":
			printHelp(w, table)
			continue
		}

		cmd, args, ok := table.lookup(words)
		if !ok {
			if subs := table.subcommands(words[0]); len(subs) > 0 {
				fmt.Fprintf(w, "Usage: %s <%s>\n", words[0], strings.Join(subs, "|"))
			} else {
				fmt.Fprintln(w, "Unknown command:", words[0])
			}
			continue
		}

		if gate != nil {
			if err := gate(cmd); err != nil {
				fmt.Fprintln(w, "Error:", err)
				continue
			}
		}
		if err := cmd.run(ctx, args); err != nil {
			fmt.Fprintln(w, "Error:", err)
		}
	}
}

func printHelp(w io.Writer, table commandTable) {
	fmt.Fprintln(w, "Available commands:")
	for _, c := range table.sorted() {
		usage := c.name
		if c.usage != "" {
			usage += " " + c.usage
		}
		fmt.Fprintf(w, "  %-28s %s\n", usage, c.help)
	}
	fmt.Fprintf(w, "  %-28s %s\n", "help", "show this list")
	fmt.Fprintf(w, "  %-28s %s\n", "exit", "leave the program")
}

// usageError reports wrong arguments for cmd.
func usageError(name, usage string) error {
	return fmt.Errorf("usage: %s %s", name, usage)
}
