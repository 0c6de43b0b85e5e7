// Command lyceumctl runs one-shot calendar and timetable operations against
// the configured database and prints the result as JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/Ignas/schooltool.lyceum/internal/app"
	"github.com/Ignas/schooltool.lyceum/pkg/config"
	"github.com/Ignas/schooltool.lyceum/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("lyceumctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	verbose := global.Bool("v", false, "log debug output to stderr")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(stderr)
		return 2
	}

	cmd, ok := commands[global.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", global.Arg(0))
		usage(stderr)
		return 2
	}
	act, err := cmd.prepare(global.Args()[1:], stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "%s: %v\n", cmd.name, err)
		}
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	logr := logger.CLI(*verbose)
	defer logr.Sync() //nolint:errcheck

	a, err := app.New(cfg, logr)
	if err != nil {
		logr.Sugar().Errorw("startup failed", "error", err)
		return 1
	}
	defer a.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), app.Deadline)
	defer cancel()
	if err := act(ctx, a, stdout); err != nil {
		logr.Sugar().Errorw(cmd.name+" failed", "error", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: lyceumctl [-v] <command> [flags]")
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-18s %s\n", name, commands[name].summary)
	}
}
