package syncer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pagopa/pn-mandate/internal/config"
	"github.com/pagopa/pn-mandate/internal/fingerprint"
	mlhttp "github.com/pagopa/pn-mandate/internal/http"
	"github.com/pagopa/pn-mandate/internal/notify"
	"github.com/pagopa/pn-mandate/internal/store"
)

// Fetcher downloads the artifact. *http.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*mlhttp.FetchResult, error)
}

// FingerprintStore keeps the fingerprint of the last synced version.
// *fingerprint.Service implements it.
type FingerprintStore interface {
	ReadStored(ctx context.Context, key string) (fingerprint.Fingerprint, bool, error)
	WriteStored(ctx context.Context, key string, fp fingerprint.Fingerprint) error
}

// Deps are the collaborators of a Syncer. Notifier may be nil when
// notification is disabled.
type Deps struct {
	Fetcher      Fetcher
	Fingerprints FingerprintStore
	Blobs        store.BlobStore
	Notifier     notify.Notifier
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.log = l
		}
	}
}

// Syncer runs the fetch, compare and propagate sequence.
type Syncer struct {
	cfg      config.Config
	deps     Deps
	log      *zap.Logger
	syncable bool
}

// New validates cfg and deps and returns a Syncer ready to Run.
// Problems are reported as a *config.Error before any I/O happens.
func New(cfg config.Config, deps Deps, opts ...Option) (*Syncer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var missing []string
	if deps.Fetcher == nil {
		missing = append(missing, "fetcher")
	}
	if deps.Fingerprints == nil {
		missing = append(missing, "fingerprint store")
	}
	if deps.Blobs == nil {
		missing = append(missing, "blob store")
	}
	if cfg.Notify.Enabled() && deps.Notifier == nil {
		missing = append(missing, "notifier")
	}
	if len(missing) > 0 {
		return nil, missingDeps(missing)
	}

	return newSyncer(cfg, deps, true, opts), nil
}

// NewRefresher returns a Syncer that can only Refresh. Only the notifier
// settings of cfg are validated.
func NewRefresher(cfg config.Config, notifier notify.Notifier, opts ...Option) (*Syncer, error) {
	if err := cfg.ValidateNotify(); err != nil {
		return nil, err
	}
	if notifier == nil {
		return nil, missingDeps([]string{"notifier"})
	}
	return newSyncer(cfg, Deps{Notifier: notifier}, false, opts), nil
}

func newSyncer(cfg config.Config, deps Deps, syncable bool, opts []Option) *Syncer {
	s := &Syncer{
		cfg:      cfg,
		deps:     deps,
		log:      zap.NewNop(),
		syncable: syncable,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func missingDeps(missing []string) error {
	return &config.Error{
		Missing: missing,
		Err:     fmt.Errorf("%v: %w", missing, config.ErrMissing),
	}
}

// run tracks the state of a single Run call.
type run struct {
	s     *Syncer
	state State
}

func (r *run) to(next State) {
	r.s.log.Debug("sync state",
		zap.String("from", string(r.state)),
		zap.String("to", string(next)),
	)
	r.state = next
}

func (r *run) fail(err error) (*Outcome, error) {
	r.s.log.Error("sync failed",
		zap.String("state", string(r.state)),
		zap.Stringer("class", Classify(err)),
		zap.Error(err),
	)
	r.to(StateError)
	return nil, err
}

// Run performs one synchronization. The artifact is uploaded, then the
// fingerprint recorded, then the dependent service notified; a failure
// stops the sequence. When the artifact is unchanged nothing is written.
func (s *Syncer) Run(ctx context.Context) (*Outcome, error) {
	if !s.syncable {
		return nil, missingDeps([]string{"fetcher", "fingerprint store", "blob store"})
	}
	r := &run{s: s, state: StateStart}

	r.to(StateFetching)
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}
	res, err := s.deps.Fetcher.Fetch(ctx, s.cfg.Source.URL)
	if err != nil {
		return r.fail(err)
	}

	fp := fingerprint.Digest(res.Body)
	out := &Outcome{
		Fingerprint: fp,
		FileSize:    int64(len(res.Body)),
	}

	r.to(StateComparing)
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}
	stored, ok, err := s.deps.Fingerprints.ReadStored(ctx, s.cfg.Fingerprint.Parameter)
	if err != nil {
		return r.fail(err)
	}
	if ok && stored == fp {
		r.to(StateUnchangedDone)
		out.Status = StatusNotModified
		s.log.Info("artifact unchanged",
			zap.Stringer("fingerprint", fp),
			zap.Int64("size", out.FileSize),
		)
		return out, nil
	}

	r.to(StatePropagating)
	s.log.Info("artifact changed",
		zap.Stringer("fingerprint", fp),
		zap.String("previous", string(stored)),
		zap.Int64("size", out.FileSize),
		zap.String("size_human", config.FormatBytes(out.FileSize)),
	)

	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}
	blob := s.cfg.Blob
	if err := s.deps.Blobs.Put(ctx, blob.Bucket, blob.Object, res.Body, blob.ContentType); err != nil {
		return r.fail(store.Wrap("put", blob.Bucket+"/"+blob.Object, err))
	}

	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}
	if err := s.deps.Fingerprints.WriteStored(ctx, s.cfg.Fingerprint.Parameter, fp); err != nil {
		return r.fail(err)
	}

	if s.cfg.Notify.Enabled() {
		if err := ctx.Err(); err != nil {
			return r.fail(err)
		}
		ack, err := s.trigger(ctx)
		if err != nil {
			return r.fail(err)
		}
		out.ServiceARN = ack.ServiceARN
		out.DeploymentID = ack.DeploymentID
	}

	r.to(StateDone)
	out.Status = StatusSuccess
	s.log.Info("artifact propagated",
		zap.Stringer("fingerprint", fp),
		zap.String("service_arn", out.ServiceARN),
		zap.String("deployment_id", out.DeploymentID),
	)
	return out, nil
}

// Refresh asks the dependent service to reload without syncing.
func (s *Syncer) Refresh(ctx context.Context) (*RefreshResult, error) {
	if !s.cfg.Notify.Enabled() {
		return nil, &config.Error{Err: errors.New("notify.kind is none")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ack, err := s.trigger(ctx)
	if err != nil {
		s.log.Error("refresh failed", zap.String("service", s.cfg.Notify.Service), zap.Error(err))
		return nil, err
	}

	s.log.Info("refresh triggered",
		zap.String("service", s.cfg.Notify.Service),
		zap.String("service_arn", ack.ServiceARN),
		zap.String("deployment_id", ack.DeploymentID),
	)
	return &RefreshResult{
		Cluster:      s.cfg.Notify.Cluster,
		Service:      s.cfg.Notify.Service,
		ServiceARN:   ack.ServiceARN,
		DeploymentID: ack.DeploymentID,
		Status:       ack.Status,
	}, nil
}

func (s *Syncer) trigger(ctx context.Context) (*notify.Ack, error) {
	service := s.cfg.Notify.Service
	if s.cfg.Notify.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Notify.Timeout)
		defer cancel()
	}

	ack, err := s.deps.Notifier.TriggerRefresh(ctx, service)
	if err != nil {
		return nil, notify.Wrap(service, err)
	}
	if ack == nil {
		ack = &notify.Ack{}
	}
	return ack, nil
}
