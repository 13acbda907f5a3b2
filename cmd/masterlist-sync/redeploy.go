package main

import (
	"github.com/urfave/cli/v2"

	"github.com/pagopa/pn-mandate/internal/syncer"
)

func redeployCommand() *cli.Command {
	return &cli.Command{
		Name:   "redeploy",
		Usage:  "Force the dependent service to reload the artifact without syncing",
		Action: redeployAction,
	}
}

func redeployAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return exit(err)
	}
	if err := cfg.ValidateNotify(); err != nil {
		return exit(err)
	}

	logger, err := newLogger(c.App.ErrWriter, cfg)
	if err != nil {
		return exit(err)
	}
	defer logger.Sync()

	ctx, cancel := signalContext(c.Context, logger)
	defer cancel()

	w := newWiring(cfg, logger)
	defer w.Close()

	notifier, err := w.notifier(ctx)
	if err != nil {
		return exit(err)
	}
	s, err := syncer.NewRefresher(cfg, notifier, syncer.WithLogger(logger))
	if err != nil {
		return exit(err)
	}

	res, err := s.Refresh(ctx)
	if err != nil {
		return exit(err)
	}
	return printJSON(c.App.Writer, res)
}
