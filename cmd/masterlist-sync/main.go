// Package main provides the masterlist-sync entrypoint.
//
// Usage:
//
//	masterlist-sync [--config file.yaml] [--log-level debug] <command>
//
// Commands:
//   - sync: fetch the artifact and propagate it if it changed
//   - redeploy: force the dependent service to reload
//
// Exit codes:
//   - 0: success
//   - 1: unexpected error or interrupted
//   - 2: invalid configuration
//   - 3: artifact could not be fetched
//   - 5: parameter or blob store failure
//   - 6: dependent service could not be notified
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pagopa/pn-mandate/internal/syncer"
)

// Exit codes
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitInvalidConfig = 2
	ExitSourceError   = 3
	ExitStorageError  = 5
	ExitNotifyError   = 6
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(ExitGeneralError)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "masterlist-sync",
		Usage:          "Keep a copy of the CSCA master list and redeploy its consumer when it changes",
		Version:        commit,
		ExitErrHandler: exitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"MLSYNC_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides the configuration)",
			},
		},
		Commands: []*cli.Command{
			syncCommand(),
			redeployCommand(),
		},
	}
}

// exitCode maps a failure to the process exit code.
func exitCode(err error) int {
	switch syncer.Classify(err) {
	case syncer.ClassNone:
		return ExitSuccess
	case syncer.ClassConfiguration:
		return ExitInvalidConfig
	case syncer.ClassFetchFatal, syncer.ClassFetchExhausted:
		return ExitSourceError
	case syncer.ClassStore:
		return ExitStorageError
	case syncer.ClassNotifier:
		return ExitNotifyError
	default:
		return ExitGeneralError
	}
}

// exit converts err into a cli.ExitCoder carrying the mapped code.
func exit(err error) error {
	if err == nil {
		return nil
	}
	return cli.Exit(fmt.Sprintf("Error: %v", err), exitCode(err))
}

// exitErrHandler preserves exit codes from cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitGeneralError)
}
