package certificate_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/certdesk/core/certificate"
	"github.com/dmitrymomot/certdesk/pkg/shell"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pemCertificate(t *testing.T, notAfter time.Time) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example.com"},
		DNSNames:     []string{"example.com"},
		NotBefore:    notAfter.Add(-90 * 24 * time.Hour),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

type fakeStore struct {
	mu       sync.Mutex
	certs    []certificate.Certificate
	before   time.Time
	provider string
	expiry   map[int64]time.Time
	listErr  error
}

func (s *fakeStore) ListExpiring(_ context.Context, provider string, before time.Time) ([]certificate.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider, s.before = provider, before
	return s.certs, s.listErr
}

func (s *fakeStore) SetExpiry(_ context.Context, id int64, expiresOn time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expiry == nil {
		s.expiry = map[int64]time.Time{}
	}
	s.expiry[id] = expiresOn
	return nil
}

// certbotRunner imitates certbot by writing a fresh chain into the live dir.
type certbotRunner struct {
	t        *testing.T
	liveDir  string
	notAfter time.Time
	failFor  string
	block    chan struct{}

	mu       sync.Mutex
	commands []string
}

func (r *certbotRunner) Exec(_ context.Context, command string, _ shell.Options) (shell.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, command)
	r.mu.Unlock()

	if r.block != nil {
		<-r.block
	}

	for _, name := range []string{"npm-1", "npm-2", "npm-3"} {
		if !strings.Contains(command, `--cert-name "`+name+`"`) {
			continue
		}
		if name == r.failFor {
			return shell.Result{ExitCode: 1}, &shell.ExitError{Command: command, ExitCode: 1, Stderr: "challenge failed"}
		}
		dir := filepath.Join(r.liveDir, name)
		require.NoError(r.t, os.MkdirAll(dir, 0o755))
		require.NoError(r.t, os.WriteFile(filepath.Join(dir, "fullchain.pem"), pemCertificate(r.t, r.notAfter), 0o644))
	}
	return shell.Result{}, nil
}

type countingReloader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingReloader) Reload(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func newManager(t *testing.T, store certificate.Store, runner shell.Runner, reloader certificate.Reloader) (*certificate.Manager, certificate.Config) {
	t.Helper()
	cfg := certificate.DefaultConfig()
	cfg.LiveDir = t.TempDir()
	return certificate.NewManager(cfg, store, runner,
		certificate.WithReloader(reloader),
		certificate.WithClock(func() time.Time { return now }),
	), cfg
}

func TestRenewCommand(t *testing.T) {
	m := certificate.NewManager(certificate.DefaultConfig(), &fakeStore{}, &certbotRunner{})
	assert.Equal(t,
		`certbot renew --force-renewal --config "/etc/letsencrypt.ini" --work-dir "/tmp/letsencrypt-lib" --logs-dir "/tmp/letsencrypt-log" --cert-name "npm-7" --preferred-challenges "dns,http" --no-random-sleep-on-renew --disable-hook-validation`,
		m.RenewCommand(7),
	)
	assert.Equal(t, "/etc/letsencrypt/live/npm-7/fullchain.pem", m.FullchainPath(7))
}

func TestReadExpiry(t *testing.T) {
	dir := t.TempDir()
	notAfter := now.Add(90 * 24 * time.Hour)

	path := filepath.Join(dir, "fullchain.pem")
	require.NoError(t, os.WriteFile(path, pemCertificate(t, notAfter), 0o644))

	got, err := certificate.ReadExpiry(path)
	require.NoError(t, err)
	assert.True(t, got.Equal(notAfter))

	_, err = certificate.ReadExpiry(filepath.Join(dir, "missing.pem"))
	assert.ErrorIs(t, err, certificate.ErrCertificateNotFound)

	bad := filepath.Join(dir, "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a pem"), 0o644))
	_, err = certificate.ReadExpiry(bad)
	assert.ErrorIs(t, err, certificate.ErrInvalidCertificate)
}

func TestRenewExpiring(t *testing.T) {
	ctx := context.Background()
	notAfter := now.Add(90 * 24 * time.Hour)

	t.Run("nothing to renew", func(t *testing.T) {
		store := &fakeStore{}
		reloader := &countingReloader{}
		runner := &certbotRunner{t: t}
		m, _ := newManager(t, store, runner, reloader)

		n, err := m.RenewExpiring(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, certificate.ProviderLetsEncrypt, store.provider)
		assert.True(t, store.before.Equal(now.Add(30*24*time.Hour)))
		assert.Zero(t, reloader.calls)
		assert.Empty(t, runner.commands)
	})

	t.Run("renews and stores expiry", func(t *testing.T) {
		store := &fakeStore{certs: []certificate.Certificate{{ID: 1}, {ID: 2}}}
		reloader := &countingReloader{}
		runner := &certbotRunner{t: t, notAfter: notAfter}
		m, cfg := newManager(t, store, runner, reloader)
		runner.liveDir = cfg.LiveDir

		n, err := m.RenewExpiring(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, runner.commands, 2)
		assert.True(t, store.expiry[1].Equal(notAfter))
		assert.True(t, store.expiry[2].Equal(notAfter))
		assert.Equal(t, 1, reloader.calls)
	})

	t.Run("one failure does not stop the sweep", func(t *testing.T) {
		store := &fakeStore{certs: []certificate.Certificate{{ID: 1}, {ID: 2}, {ID: 3}}}
		reloader := &countingReloader{}
		runner := &certbotRunner{t: t, notAfter: notAfter, failFor: "npm-2"}
		m, cfg := newManager(t, store, runner, reloader)
		runner.liveDir = cfg.LiveDir

		n, err := m.RenewExpiring(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, certificate.ErrRenewalFailed)

		var exitErr *shell.ExitError
		assert.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 2, n)
		assert.Len(t, runner.commands, 3)
		assert.NotContains(t, store.expiry, int64(2))
		assert.Equal(t, 1, reloader.calls)
	})

	t.Run("list error", func(t *testing.T) {
		store := &fakeStore{listErr: errors.New("db down")}
		m, _ := newManager(t, store, &certbotRunner{t: t}, &countingReloader{})

		_, err := m.RenewExpiring(ctx)
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("overlapping sweep is skipped", func(t *testing.T) {
		store := &fakeStore{certs: []certificate.Certificate{{ID: 1}}}
		runner := &certbotRunner{t: t, notAfter: notAfter, block: make(chan struct{})}
		m, cfg := newManager(t, store, runner, &countingReloader{})
		runner.liveDir = cfg.LiveDir

		done := make(chan error, 1)
		go func() {
			_, err := m.RenewExpiring(ctx)
			done <- err
		}()

		require.Eventually(t, func() bool {
			runner.mu.Lock()
			defer runner.mu.Unlock()
			return len(runner.commands) == 1
		}, time.Second, time.Millisecond)

		_, err := m.RenewExpiring(ctx)
		assert.ErrorIs(t, err, certificate.ErrRenewalInProgress)

		close(runner.block)
		require.NoError(t, <-done)
	})
}

func TestInitTimer(t *testing.T) {
	store := &fakeStore{}
	cfg := certificate.DefaultConfig()
	cfg.RenewalInterval = 10 * time.Millisecond
	m := certificate.NewManager(cfg, store, &certbotRunner{t: t})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.InitTimer(ctx)
	m.InitTimer(ctx)

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.provider == certificate.ProviderLetsEncrypt
	}, time.Second, 5*time.Millisecond)
}
