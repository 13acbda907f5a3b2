package main

import (
	"context"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pagopa/pn-mandate/internal/fingerprint"
	"github.com/pagopa/pn-mandate/internal/syncer"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Fetch the artifact and propagate it if its fingerprint changed",
		Action: syncAction,
	}
}

func syncAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return exit(err)
	}
	// Reject a bad configuration before any client is built.
	if err := cfg.Validate(); err != nil {
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

	s, err := w.syncer(ctx)
	if err != nil {
		return exit(err)
	}

	out, err := s.Run(ctx)
	if err != nil {
		return exit(err)
	}
	return printJSON(c.App.Writer, out)
}

func (w *wiring) syncer(ctx context.Context) (*syncer.Syncer, error) {
	params, err := w.params(ctx)
	if err != nil {
		return nil, err
	}
	blobs, err := w.blobs(ctx)
	if err != nil {
		return nil, err
	}
	notifier, err := w.notifier(ctx)
	if err != nil {
		return nil, err
	}

	w.log.Debug("sync configured",
		zap.String("source", w.cfg.Source.URL),
		zap.String("bucket", w.cfg.Blob.Bucket),
		zap.String("object", w.cfg.Blob.Object),
		zap.String("notify", w.cfg.Notify.Kind),
	)

	return syncer.New(w.cfg, syncer.Deps{
		Fetcher:      w.fetcher(),
		Fingerprints: fingerprint.NewService(params),
		Blobs:        blobs,
		Notifier:     notifier,
	}, syncer.WithLogger(w.log))
}
