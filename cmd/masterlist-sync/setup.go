package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	// Bucket URL schemes accepted for blob.bucket and fingerprint.store_url.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/pagopa/pn-mandate/internal/awsconf"
	"github.com/pagopa/pn-mandate/internal/config"
	mlhttp "github.com/pagopa/pn-mandate/internal/http"
	mllog "github.com/pagopa/pn-mandate/internal/log"
	"github.com/pagopa/pn-mandate/internal/notify"
	"github.com/pagopa/pn-mandate/internal/store"
)

// loadConfig reads the configuration file, if any, then applies MLSYNC_
// environment overrides and the --log-level flag.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.LoadFromFile(path)
		if err != nil {
			return config.Config{}, asConfigError(err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, asConfigError(err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

func asConfigError(err error) error {
	var ce *config.Error
	if errors.As(err, &ce) {
		return err
	}
	return &config.Error{Err: err}
}

func newLogger(w io.Writer, cfg config.Config) (*zap.Logger, error) {
	logger, err := mllog.New(w, cfg.LogLevel)
	if err != nil {
		return nil, asConfigError(err)
	}
	return logger, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("received signal, shutting down", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// isBucketURL reports whether name is a gocloud bucket URL rather than a
// plain S3 bucket name.
func isBucketURL(name string) bool {
	return strings.Contains(name, "://")
}

// wiring builds the collaborators described by a configuration. AWS
// clients are only created when something needs them.
type wiring struct {
	cfg     config.Config
	log     *zap.Logger
	buckets *store.Buckets
	aws     *awsconf.Clients
	closers []io.Closer

	loadAWS func(ctx context.Context, settings config.AWSConfig) (*awsconf.Clients, error)
}

func newWiring(cfg config.Config, logger *zap.Logger) *wiring {
	return &wiring{
		cfg:     cfg,
		log:     logger,
		buckets: store.NewBuckets(),
		loadAWS: awsconf.Load,
	}
}

func (w *wiring) awsClients(ctx context.Context) (*awsconf.Clients, error) {
	if w.aws != nil {
		return w.aws, nil
	}
	clients, err := w.loadAWS(ctx, w.cfg.AWS)
	if err != nil {
		return nil, err
	}
	w.log.Debug("aws configuration loaded", zap.String("region", clients.Region()))
	w.aws = clients
	return clients, nil
}

func (w *wiring) fetcher() *mlhttp.Client {
	src := w.cfg.Source
	return mlhttp.NewClient(mlhttp.Options{
		Timeout:      src.Timeout,
		MaxAttempts:  src.MaxAttempts,
		RetryBackoff: src.RetryBackoff,
		MaxBodySize:  src.MaxSize,
		UserAgent:    src.UserAgent,
		Logger:       w.log,
	})
}

func (w *wiring) params(ctx context.Context) (store.ParamStore, error) {
	if url := w.cfg.Fingerprint.StoreURL; url != "" {
		bkt, err := w.buckets.Bucket(ctx, url)
		if err != nil {
			return nil, err
		}
		return store.NewBucketParams(bkt, ""), nil
	}

	clients, err := w.awsClients(ctx)
	if err != nil {
		return nil, err
	}
	return store.NewSSMParams(clients.SSM()), nil
}

func (w *wiring) blobs(ctx context.Context) (store.BlobStore, error) {
	if isBucketURL(w.cfg.Blob.Bucket) {
		return w.buckets, nil
	}

	clients, err := w.awsClients(ctx)
	if err != nil {
		return nil, err
	}
	return store.NewS3Blobs(clients.S3()), nil
}

func (w *wiring) notifier(ctx context.Context) (notify.Notifier, error) {
	n := w.cfg.Notify
	switch n.Kind {
	case config.NotifyECS:
		clients, err := w.awsClients(ctx)
		if err != nil {
			return nil, err
		}
		return notify.NewECS(clients.ECS(), n.Cluster), nil
	case config.NotifyWebhook:
		wh, err := notify.NewWebhook(notify.WebhookConfig{
			URL:     n.WebhookURL,
			Headers: n.Headers,
			Timeout: n.Timeout,
		})
		if err != nil {
			return nil, &config.Error{Err: err}
		}
		w.closers = append(w.closers, wh)
		return wh, nil
	default:
		return nil, nil
	}
}

// Close releases the opened buckets and any notifier connections.
func (w *wiring) Close() error {
	var errs *multierror.Error
	if err := w.buckets.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	for _, c := range w.closers {
		if err := c.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	w.closers = nil
	return errs.ErrorOrNil()
}

// printJSON writes v to w as a single indented JSON document.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
