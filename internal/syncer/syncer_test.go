package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gocloud.dev/blob/memblob"

	"github.com/pagopa/pn-mandate/internal/config"
	"github.com/pagopa/pn-mandate/internal/fingerprint"
	mlhttp "github.com/pagopa/pn-mandate/internal/http"
	"github.com/pagopa/pn-mandate/internal/notify"
	"github.com/pagopa/pn-mandate/internal/store"
)

// sha256("hello")
const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

// journal records the order of side effects across fakes.
type journal struct {
	calls []string
}

func (j *journal) add(call string) {
	j.calls = append(j.calls, call)
}

type fakeFetcher struct {
	j     *journal
	body  []byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*mlhttp.FetchResult, error) {
	f.calls++
	f.j.add("fetch")
	if f.err != nil {
		return nil, f.err
	}
	return &mlhttp.FetchResult{Body: f.body, Size: int64(len(f.body))}, nil
}

type fakeFingerprints struct {
	j        *journal
	stored   fingerprint.Fingerprint
	has      bool
	readErr  error
	writeErr error
	writes   int
}

func (f *fakeFingerprints) ReadStored(ctx context.Context, key string) (fingerprint.Fingerprint, bool, error) {
	f.j.add("read")
	if f.readErr != nil {
		return "", false, f.readErr
	}
	return f.stored, f.has, nil
}

func (f *fakeFingerprints) WriteStored(ctx context.Context, key string, fp fingerprint.Fingerprint) error {
	f.j.add("write_fingerprint")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.stored, f.has = fp, true
	return nil
}

type fakeBlobs struct {
	j           *journal
	err         error
	puts        int
	data        []byte
	contentType string
}

func (f *fakeBlobs) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	f.j.add("put_blob")
	if f.err != nil {
		return f.err
	}
	f.puts++
	f.data = data
	f.contentType = contentType
	return nil
}

type fakeNotifier struct {
	j     *journal
	err   error
	calls int
}

func (f *fakeNotifier) TriggerRefresh(ctx context.Context, service string) (*notify.Ack, error) {
	f.j.add("notify")
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &notify.Ack{ServiceARN: "arn:aws:ecs:svc/" + service, DeploymentID: "dep-1"}, nil
}

type fixture struct {
	j     *journal
	fetch *fakeFetcher
	fps   *fakeFingerprints
	blobs *fakeBlobs
	notif *fakeNotifier
}

func newFixture(body string) *fixture {
	j := &journal{}
	return &fixture{
		j:     j,
		fetch: &fakeFetcher{j: j, body: []byte(body)},
		fps:   &fakeFingerprints{j: j},
		blobs: &fakeBlobs{j: j},
		notif: &fakeNotifier{j: j},
	}
}

func (f *fixture) deps() Deps {
	return Deps{Fetcher: f.fetch, Fingerprints: f.fps, Blobs: f.blobs, Notifier: f.notif}
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Source.URL = "https://example.com/masterlist.zip"
	cfg.Fingerprint.Parameter = "/csca/sha256"
	cfg.Blob.Bucket = "artifacts"
	cfg.Blob.Object = "csca/masterlist.zip"
	cfg.Notify.Cluster = "cluster"
	cfg.Notify.Service = "mandate"
	return cfg
}

func mustNew(t *testing.T, cfg config.Config, deps Deps, opts ...Option) *Syncer {
	t.Helper()
	s, err := New(cfg, deps, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func assertCalls(t *testing.T, j *journal, want ...string) {
	t.Helper()
	if len(j.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, j.calls)
	}
	for i := range want {
		if j.calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, j.calls)
		}
	}
}

func TestRunFirstVersion(t *testing.T) {
	f := newFixture("hello")
	s := mustNew(t, testConfig(), f.deps())

	out, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Status != StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", out.Status)
	}
	if out.Fingerprint != helloDigest || out.FileSize != 5 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if out.ServiceARN != "arn:aws:ecs:svc/mandate" || out.DeploymentID != "dep-1" {
		t.Errorf("expected notifier ack in outcome, got %+v", out)
	}
	assertCalls(t, f.j, "fetch", "read", "put_blob", "write_fingerprint", "notify")

	if string(f.blobs.data) != "hello" || f.blobs.contentType != "application/zip" {
		t.Errorf("unexpected blob %q (%s)", f.blobs.data, f.blobs.contentType)
	}
	if f.fps.stored != helloDigest {
		t.Errorf("expected recorded fingerprint %s, got %s", helloDigest, f.fps.stored)
	}
}

func TestRunUnchanged(t *testing.T) {
	f := newFixture("hello")
	f.fps.stored, f.fps.has = helloDigest, true
	s := mustNew(t, testConfig(), f.deps())

	out, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if out.Status != StatusNotModified {
		t.Errorf("expected NOT_MODIFIED, got %s", out.Status)
	}
	if out.Fingerprint != helloDigest || out.FileSize != 5 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if out.ServiceARN != "" || out.DeploymentID != "" {
		t.Errorf("expected no service fields, got %+v", out)
	}
	assertCalls(t, f.j, "fetch", "read")
}

func TestRunChanged(t *testing.T) {
	f := newFixture("hello!")
	f.fps.stored, f.fps.has = helloDigest, true
	s := mustNew(t, testConfig(), f.deps())

	out, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusSuccess || out.Fingerprint == helloDigest || out.FileSize != 6 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if f.fps.stored != out.Fingerprint {
		t.Errorf("expected recorded fingerprint %s, got %s", out.Fingerprint, f.fps.stored)
	}
}

func TestRunIdempotent(t *testing.T) {
	f := newFixture("hello")
	s := mustNew(t, testConfig(), f.deps())
	ctx := context.Background()

	first, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}

	if first.Status != StatusSuccess || second.Status != StatusNotModified {
		t.Errorf("expected SUCCESS then NOT_MODIFIED, got %s then %s", first.Status, second.Status)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Error("expected same fingerprint on both runs")
	}
	if f.blobs.puts != 1 || f.fps.writes != 1 || f.notif.calls != 1 {
		t.Errorf("expected exactly one write of each kind, got blobs=%d fingerprints=%d notifications=%d",
			f.blobs.puts, f.fps.writes, f.notif.calls)
	}
}

func TestRunNotificationDisabled(t *testing.T) {
	f := newFixture("hello")
	cfg := testConfig()
	cfg.Notify.Kind = config.NotifyNone
	deps := f.deps()
	deps.Notifier = nil
	s := mustNew(t, cfg, deps)

	out, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusSuccess {
		t.Errorf("expected SUCCESS, got %s", out.Status)
	}
	if out.ServiceARN != "" || out.DeploymentID != "" {
		t.Errorf("expected no service fields, got %+v", out)
	}
	assertCalls(t, f.j, "fetch", "read", "put_blob", "write_fingerprint")
}

func TestRunFetchFailure(t *testing.T) {
	f := newFixture("")
	fetchErr := &mlhttp.FetchError{Kind: mlhttp.Fatal, URL: "u", Attempts: 1, Err: errors.New("404")}
	f.fetch.err = fetchErr
	s := mustNew(t, testConfig(), f.deps())

	_, err := s.Run(context.Background())
	if err != fetchErr {
		t.Fatalf("expected fetch error returned unchanged, got %v", err)
	}
	if Classify(err) != ClassFetchFatal {
		t.Errorf("expected fetch_fatal, got %s", Classify(err))
	}
	assertCalls(t, f.j, "fetch")
}

func TestRunReadFailure(t *testing.T) {
	f := newFixture("hello")
	f.fps.readErr = &store.Error{Op: "get", Key: "/csca/sha256", Err: errors.New("throttled")}
	s := mustNew(t, testConfig(), f.deps())

	_, err := s.Run(context.Background())
	if Classify(err) != ClassStore {
		t.Fatalf("expected store error, got %v", err)
	}
	assertCalls(t, f.j, "fetch", "read")
}

func TestRunBlobFailure(t *testing.T) {
	f := newFixture("hello")
	f.blobs.err = errors.New("access denied")
	s := mustNew(t, testConfig(), f.deps())

	_, err := s.Run(context.Background())

	var se *store.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *store.Error, got %v", err)
	}
	if se.Key != "artifacts/csca/masterlist.zip" {
		t.Errorf("unexpected key %s", se.Key)
	}
	assertCalls(t, f.j, "fetch", "read", "put_blob")
	if f.fps.writes != 0 {
		t.Error("fingerprint must not be written after a failed upload")
	}
}

func TestRunFingerprintWriteFailure(t *testing.T) {
	f := newFixture("hello")
	f.fps.writeErr = &store.Error{Op: "put", Key: "/csca/sha256", Err: errors.New("throttled")}
	s := mustNew(t, testConfig(), f.deps())

	_, err := s.Run(context.Background())
	if Classify(err) != ClassStore {
		t.Fatalf("expected store error, got %v", err)
	}
	assertCalls(t, f.j, "fetch", "read", "put_blob", "write_fingerprint")
}

func TestRunNotifierFailure(t *testing.T) {
	f := newFixture("hello")
	cause := errors.New("service not found")
	f.notif.err = cause
	s := mustNew(t, testConfig(), f.deps())

	_, err := s.Run(context.Background())

	var ne *notify.Error
	if !errors.As(err, &ne) || ne.Service != "mandate" {
		t.Fatalf("expected *notify.Error for mandate, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if Classify(err) != ClassNotifier {
		t.Errorf("expected notifier class, got %s", Classify(err))
	}
	if f.fps.stored != helloDigest {
		t.Error("fingerprint is recorded before notification")
	}
}

func TestRunCanceledBeforeStart(t *testing.T) {
	f := newFixture("hello")
	s := mustNew(t, testConfig(), f.deps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx)
	if Classify(err) != ClassCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
	if len(f.j.calls) != 0 {
		t.Errorf("expected no calls, got %v", f.j.calls)
	}
}

type cancelingBlobs struct {
	fakeBlobs
	cancel context.CancelFunc
}

func (c *cancelingBlobs) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	err := c.fakeBlobs.Put(ctx, bucket, key, data, contentType)
	c.cancel()
	return err
}

func TestRunCanceledBetweenWrites(t *testing.T) {
	f := newFixture("hello")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	blobs := &cancelingBlobs{fakeBlobs: fakeBlobs{j: f.j}, cancel: cancel}
	deps := f.deps()
	deps.Blobs = blobs
	s := mustNew(t, testConfig(), deps)

	_, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	assertCalls(t, f.j, "fetch", "read", "put_blob")
}

func TestNewConfigurationErrors(t *testing.T) {
	f := newFixture("hello")

	cfg := testConfig()
	cfg.Source.URL = ""
	_, err := New(cfg, f.deps())
	var ce *config.Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *config.Error, got %v", err)
	}
	if Classify(err) != ClassConfiguration {
		t.Errorf("expected configuration class, got %s", Classify(err))
	}

	deps := f.deps()
	deps.Notifier = nil
	_, err = New(testConfig(), deps)
	if !errors.As(err, &ce) || len(ce.Missing) != 1 || ce.Missing[0] != "notifier" {
		t.Errorf("expected missing notifier, got %v", err)
	}

	_, err = New(testConfig(), Deps{})
	if !errors.As(err, &ce) || len(ce.Missing) != 4 {
		t.Errorf("expected four missing dependencies, got %v", err)
	}

	if len(f.j.calls) != 0 {
		t.Errorf("expected no I/O, got %v", f.j.calls)
	}
}

func TestRunLogsStateTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture("hello")
	s := mustNew(t, testConfig(), f.deps(), WithLogger(zap.New(core)))

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var states []string
	for _, entry := range logs.FilterMessage("sync state").All() {
		states = append(states, entry.ContextMap()["to"].(string))
	}
	want := []string{"FETCHING", "COMPARING", "PROPAGATING", "DONE"}
	if len(states) != len(want) {
		t.Fatalf("expected states %v, got %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("expected states %v, got %v", want, states)
		}
	}
}

func TestRunErrorStateLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	f := newFixture("hello")
	f.blobs.err = errors.New("boom")
	s := mustNew(t, testConfig(), f.deps(), WithLogger(zap.New(core)))

	_, _ = s.Run(context.Background())

	failed := logs.FilterMessage("sync failed").All()
	if len(failed) != 1 {
		t.Fatalf("expected one failure entry, got %d", len(failed))
	}
	fields := failed[0].ContextMap()
	if fields["state"] != "PROPAGATING" || fields["class"] != "store" {
		t.Errorf("unexpected failure fields %v", fields)
	}
}

func TestOutcomeJSON(t *testing.T) {
	b, err := json.Marshal(&Outcome{Status: StatusNotModified, Fingerprint: helloDigest, FileSize: 5})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"status":"NOT_MODIFIED","fingerprint":"` + helloDigest + `","fileSize":5}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}
}

func TestRefresh(t *testing.T) {
	f := newFixture("")
	cfg := config.Default()
	cfg.Notify.Cluster = "cluster"
	cfg.Notify.Service = "mandate"

	s, err := NewRefresher(cfg, f.notif)
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}

	res, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Cluster != "cluster" || res.Service != "mandate" || res.DeploymentID != "dep-1" {
		t.Errorf("unexpected result %+v", res)
	}
	assertCalls(t, f.j, "notify")

	if _, err := s.Run(context.Background()); Classify(err) != ClassConfiguration {
		t.Errorf("expected Run on a refresher to be a configuration error, got %v", err)
	}
}

func TestNewRefresherRequiresNotifier(t *testing.T) {
	cfg := config.Default()
	cfg.Notify.Kind = config.NotifyNone
	if _, err := NewRefresher(cfg, &fakeNotifier{j: &journal{}}); Classify(err) != ClassConfiguration {
		t.Errorf("expected configuration error for kind none, got %v", err)
	}

	cfg = config.Default()
	cfg.Notify.Cluster = "c"
	cfg.Notify.Service = "s"
	if _, err := NewRefresher(cfg, nil); Classify(err) != ClassConfiguration {
		t.Errorf("expected configuration error for nil notifier, got %v", err)
	}
}

// The remaining tests run the real fetcher and fingerprint service against
// an httptest server and an in-memory bucket.

func noSleep(context.Context, time.Duration) error { return nil }

func realDeps(t *testing.T, f *fixture) (Deps, *fingerprint.Service) {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { bucket.Close() })

	fps := fingerprint.NewService(store.NewBucketParams(bucket, ""))
	client := mlhttp.NewClient(mlhttp.Options{RetryBackoff: time.Millisecond, Sleep: noSleep})
	return Deps{Fetcher: client, Fingerprints: fps, Blobs: f.blobs, Notifier: f.notif}, fps
}

func TestRunRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	f := newFixture("")
	deps, fps := realDeps(t, f)
	cfg := testConfig()
	cfg.Source.URL = server.URL

	out, err := mustNew(t, cfg, deps).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
	if out.Status != StatusSuccess || out.Fingerprint != helloDigest {
		t.Errorf("unexpected outcome %+v", out)
	}

	stored, ok, err := fps.ReadStored(context.Background(), cfg.Fingerprint.Parameter)
	if err != nil || !ok || stored != helloDigest {
		t.Errorf("expected recorded %s, got %q ok=%v err=%v", helloDigest, stored, ok, err)
	}
}

func TestRunRetryBound(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := newFixture("")
	deps, _ := realDeps(t, f)
	cfg := testConfig()
	cfg.Source.URL = server.URL

	_, err := mustNew(t, cfg, deps).Run(context.Background())
	if Classify(err) != ClassFetchExhausted {
		t.Fatalf("expected fetch_exhausted, got %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", hits.Load())
	}
	if f.blobs.puts != 0 || f.notif.calls != 0 {
		t.Error("expected no writes")
	}
}

func TestRunNotFoundIsFatal(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	f := newFixture("")
	deps, _ := realDeps(t, f)
	cfg := testConfig()
	cfg.Source.URL = server.URL

	_, err := mustNew(t, cfg, deps).Run(context.Background())
	if Classify(err) != ClassFetchFatal {
		t.Fatalf("expected fetch_fatal, got %v", err)
	}
	if !errors.Is(err, mlhttp.ErrNotFound) {
		t.Errorf("expected ErrNotFound in chain, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", hits.Load())
	}
}
