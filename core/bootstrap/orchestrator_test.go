package bootstrap_test

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certdesk/core/bootstrap"
	"github.com/dmitrymomot/certdesk/core/logger"
)

// journal records collaborator calls in order.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, name)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

func (j *journal) count(name string) int {
	n := 0
	for _, c := range j.list() {
		if c == name {
			n++
		}
	}
	return n
}

// step is a phase fake that fails its first `fails` calls.
type step struct {
	name  string
	j     *journal
	mu    sync.Mutex
	fails int
	err   error
}

func (s *step) run() error {
	s.j.add(s.name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails != 0 {
		if s.fails > 0 {
			s.fails--
		}
		if s.err != nil {
			return s.err
		}
		return errors.New(s.name + " failed")
	}
	return nil
}

type fakeMigrator struct{ *step }

func (f fakeMigrator) RunPendingMigrations(context.Context) error { return f.run() }

type fakeSetup struct{ *step }

func (f fakeSetup) PerformSetup(context.Context) error { return f.run() }

type fakeSchema struct{ *step }

func (f fakeSchema) Compile(context.Context) error { return f.run() }

type fakeTimer struct {
	name string
	j    *journal
}

func (f fakeTimer) InitTimer(context.Context) { f.j.add(f.name) }

type fakeFetcher struct {
	*step
	timer fakeTimer
}

func (f fakeFetcher) Fetch(context.Context) error   { return f.run() }
func (f fakeFetcher) InitTimer(ctx context.Context) { f.timer.InitTimer(ctx) }

type fakeServer struct {
	*step
	shutdowns int
}

func (f *fakeServer) Listen() (net.Addr, error) {
	if err := f.run(); err != nil {
		return nil, err
	}
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 3000}, nil
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.j.add("shutdown")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

type harness struct {
	j       *journal
	migrate *step
	setup   *step
	schema  *step
	fetch   *step
	server  *fakeServer
	sigs    chan os.Signal
	logs    *syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newHarness() *harness {
	j := &journal{}
	return &harness{
		j:       j,
		migrate: &step{name: "migrate", j: j},
		setup:   &step{name: "setup", j: j},
		schema:  &step{name: "schema", j: j},
		fetch:   &step{name: "fetch", j: j},
		server:  &fakeServer{step: &step{name: "listen", j: j}},
		sigs:    make(chan os.Signal, 1),
		logs:    &syncBuffer{},
	}
}

func (h *harness) orchestrator(t *testing.T, opts ...bootstrap.Option) *bootstrap.Orchestrator {
	t.Helper()
	deps := bootstrap.Dependencies{
		Migrator:     fakeMigrator{h.migrate},
		Setup:        fakeSetup{h.setup},
		Schema:       fakeSchema{h.schema},
		IPRanges:     fakeFetcher{step: h.fetch, timer: fakeTimer{name: "ipranges-timer", j: h.j}},
		Certificates: fakeTimer{name: "certificate-timer", j: h.j},
		Server:       h.server,
	}
	base := []bootstrap.Option{
		bootstrap.WithRetryDelay(time.Millisecond),
		bootstrap.WithSignalSource(func() (<-chan os.Signal, func()) { return h.sigs, func() {} }),
		bootstrap.WithLogger(logger.New(logger.WithOutput(h.logs), logger.WithLevel(-8))),
	}
	o, err := bootstrap.New(deps, append(base, opts...)...)
	require.NoError(t, err)
	return o
}

func runAsync(ctx context.Context, o *bootstrap.Orchestrator) <-chan error {
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	return done
}

func waitListening(t *testing.T, o *bootstrap.Orchestrator) {
	t.Helper()
	require.Eventually(t, func() bool {
		return o.State() == bootstrap.StateListening
	}, 5*time.Second, time.Millisecond)
}

func TestOrchestratorHappyPath(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t)
	assert.Equal(t, bootstrap.StateCold, o.State())

	done := runAsync(context.Background(), o)
	waitListening(t, o)

	assert.Equal(t, []string{
		"migrate", "setup", "schema", "fetch",
		"certificate-timer", "ipranges-timer", "listen",
	}, h.j.list())
	assert.Contains(t, h.logs.String(), "IP Ranges fetch is enabled")
	assert.Contains(t, h.logs.String(), "listening on port 3000 ...")

	h.sigs <- syscall.SIGTERM

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after SIGTERM")
	}

	assert.Equal(t, bootstrap.StateStopped, o.State())
	assert.Equal(t, 1, h.server.shutdowns)
	assert.Contains(t, h.logs.String(), "received SIGTERM")
	assert.Contains(t, h.logs.String(), "Stopping.")
}

func TestOrchestratorRestartsWholeChain(t *testing.T) {
	h := newHarness()
	h.schema.fails = 3
	o := h.orchestrator(t)

	done := runAsync(context.Background(), o)
	waitListening(t, o)

	calls := h.j.list()
	assert.Equal(t, 4, h.j.count("migrate"))
	assert.Equal(t, 4, h.j.count("schema"))
	assert.Equal(t, 1, h.j.count("fetch"))

	// every attempt starts with migrations
	attempts := 0
	for i, c := range calls {
		if c == "migrate" {
			attempts++
			if i > 0 {
				assert.Equal(t, "schema", calls[i-1], "attempt %d should follow a failed schema compile", attempts)
			}
		}
	}
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 3, strings.Count(h.logs.String(), `msg="compile schema: schema failed"`))

	h.sigs <- syscall.SIGTERM
	require.NoError(t, <-done)
}

func TestOrchestratorRetryDelay(t *testing.T) {
	h := newHarness()
	h.migrate.fails = 2
	o := h.orchestrator(t, bootstrap.WithRetryDelay(50*time.Millisecond))

	start := time.Now()
	done := runAsync(context.Background(), o)
	waitListening(t, o)

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	h.sigs <- syscall.SIGTERM
	require.NoError(t, <-done)
}

func TestOrchestratorFetchFailureIsSwallowed(t *testing.T) {
	h := newHarness()
	h.fetch.fails = -1 // always
	o := h.orchestrator(t)

	done := runAsync(context.Background(), o)
	waitListening(t, o)

	assert.Equal(t, 1, h.j.count("migrate"))
	assert.Equal(t, 1, h.j.count("listen"))
	assert.Contains(t, h.logs.String(), "IP Ranges fetch failed, continuing anyway")

	h.sigs <- syscall.SIGTERM
	require.NoError(t, <-done)
}

func TestOrchestratorFetchDisabled(t *testing.T) {
	h := newHarness()
	h.server.fails = 2
	o := h.orchestrator(t, bootstrap.WithIPRangesFetch(false))

	done := runAsync(context.Background(), o)
	waitListening(t, o)

	assert.Zero(t, h.j.count("fetch"))
	assert.Equal(t, 3, h.j.count("listen"))
	assert.Equal(t, 3, strings.Count(h.logs.String(), "IP Ranges fetch is disabled by environment variable"))

	// timers are armed once even though the listener failed twice
	assert.Equal(t, 1, h.j.count("certificate-timer"))
	assert.Equal(t, 1, h.j.count("ipranges-timer"))

	h.sigs <- syscall.SIGTERM
	require.NoError(t, <-done)
}

func TestOrchestratorContextCancelledWhileRetrying(t *testing.T) {
	h := newHarness()
	h.migrate.fails = -1
	o := h.orchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, o)

	require.Eventually(t, func() bool { return h.j.count("migrate") >= 3 }, 5*time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, bootstrap.StateStopped, o.State())
	assert.Zero(t, h.j.count("listen"))
	assert.Zero(t, h.server.shutdowns)
}

func TestOrchestratorContextCancelledWhileServing(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, o)
	waitListening(t, o)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.server.shutdowns)
}

func TestOrchestratorRunTwice(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(t)

	done := runAsync(context.Background(), o)
	waitListening(t, o)

	assert.ErrorIs(t, o.Run(context.Background()), bootstrap.ErrAlreadyRunning)

	h.sigs <- syscall.SIGTERM
	require.NoError(t, <-done)
}

func TestNewMissingDependency(t *testing.T) {
	h := newHarness()
	deps := bootstrap.Dependencies{
		Migrator: fakeMigrator{h.migrate},
		Setup:    fakeSetup{h.setup},
	}

	o, err := bootstrap.New(deps)
	assert.ErrorIs(t, err, bootstrap.ErrMissingDependency)
	assert.Nil(t, o)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "cold", bootstrap.StateCold.String())
	assert.Equal(t, "fetching_ranges", bootstrap.StateFetchingRanges.String())
	assert.Equal(t, "stopped", bootstrap.StateStopped.String())
	assert.Equal(t, "unknown", bootstrap.State(99).String())
}
