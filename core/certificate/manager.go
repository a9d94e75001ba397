package certificate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"

	"github.com/dmitrymomot/certdesk/core/logger"
	"github.com/dmitrymomot/certdesk/pkg/shell"
)

// Reloader applies renewed certificates to the running proxy.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Manager renews expiring certificates on a timer.
type Manager struct {
	cfg      Config
	store    Store
	runner   shell.Runner
	reloader Reloader
	logger   *slog.Logger
	now      func() time.Time

	processing atomic.Bool
	armOnce    sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithReloader reloads nginx after a sweep renewed at least one certificate.
func WithReloader(r Reloader) ManagerOption {
	return func(m *Manager) {
		m.reloader = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager.
func NewManager(cfg Config, store Store, runner shell.Runner, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg,
		store:  store,
		runner: runner,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(logger.Component("ssl"))
	return m
}

// InitTimer starts the periodic sweep. Only the first call arms the timer;
// the goroutine stops when ctx is done.
func (m *Manager) InitTimer(ctx context.Context) {
	if m.cfg.RenewalInterval <= 0 {
		return
	}
	m.armOnce.Do(func() {
		m.logger.InfoContext(ctx, "Let's Encrypt Renewal Timer initialized", logger.Duration(m.cfg.RenewalInterval))
		go m.loop(ctx)
	})
}

func (m *Manager) loop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.RenewalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.RenewExpiring(ctx); err != nil && !errors.Is(err, ErrRenewalInProgress) {
				m.logger.ErrorContext(ctx, "Certificate renewal sweep failed", logger.Error(err))
			}
		}
	}
}

// RenewExpiring renews every certificate that expires within the renewal
// window. Each certificate is attempted even if an earlier one failed.
// It returns the number of renewed certificates.
func (m *Manager) RenewExpiring(ctx context.Context) (int, error) {
	if !m.processing.CompareAndSwap(false, true) {
		return 0, ErrRenewalInProgress
	}
	defer m.processing.Store(false)

	m.logger.InfoContext(ctx, "Renewing SSL certs expiring within 30 days ...")

	certs, err := m.store.ListExpiring(ctx, ProviderLetsEncrypt, m.now().Add(m.cfg.RenewBefore))
	if err != nil {
		return 0, fmt.Errorf("list expiring certificates: %w", err)
	}
	if len(certs) == 0 {
		m.logger.InfoContext(ctx, "Completed SSL cert renew process")
		return 0, nil
	}

	var (
		renewed int
		errs    []error
	)
	for _, c := range certs {
		if err := m.Renew(ctx, c); err != nil {
			m.logger.ErrorContext(ctx, "Certificate renewal failed",
				logger.ID("certificate_id", strconv.FormatInt(c.ID, 10)),
				logger.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		renewed++
	}

	if renewed > 0 && m.reloader != nil {
		if err := m.reloader.Reload(ctx); err != nil {
			errs = append(errs, fmt.Errorf("reload nginx: %w", err))
		}
	}

	m.logger.InfoContext(ctx, "Completed SSL cert renew process", logger.Count("renewed", renewed), logger.Count("failed", len(certs)-renewed))
	if len(errs) > 0 {
		return renewed, errors.Join(append([]error{ErrRenewalFailed}, errs...)...)
	}
	return renewed, nil
}

// Renew runs certbot for one certificate and stores the new expiry.
func (m *Manager) Renew(ctx context.Context, c Certificate) error {
	m.logger.InfoContext(ctx, "Renewing Let'sEncrypt certificate", logger.ID("certificate_id", strconv.FormatInt(c.ID, 10)))

	if _, err := m.runner.Exec(ctx, m.RenewCommand(c.ID), shell.Options{Env: shell.Environ()}); err != nil {
		return err
	}

	expiresOn, err := ReadExpiry(m.FullchainPath(c.ID))
	if err != nil {
		return err
	}
	if err := m.store.SetExpiry(ctx, c.ID, expiresOn); err != nil {
		return fmt.Errorf("store expiry: %w", err)
	}
	return nil
}

// RenewCommand builds the certbot invocation for the certificate.
func (m *Manager) RenewCommand(id int64) string {
	return fmt.Sprintf(
		`%s renew --force-renewal --config %q --work-dir %q --logs-dir %q --cert-name %q --preferred-challenges "dns,http" --no-random-sleep-on-renew --disable-hook-validation`,
		m.cfg.Binary, m.cfg.ConfigFile, m.cfg.WorkDir, m.cfg.LogsDir, CertName(id),
	)
}

// FullchainPath returns the location certbot writes the renewed chain to.
func (m *Manager) FullchainPath(id int64) string {
	return filepath.Join(m.cfg.LiveDir, CertName(id), "fullchain.pem")
}

// CertName is the certbot lineage name for a certificate id.
func CertName(id int64) string {
	return "npm-" + strconv.FormatInt(id, 10)
}

// ReadExpiry returns NotAfter of the leaf certificate in a PEM chain.
func ReadExpiry(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrCertificateNotFound, path)
		}
		return time.Time{}, err
	}

	cert, err := certcrypto.ParsePEMCertificate(data)
	if err != nil {
		return time.Time{}, errors.Join(ErrInvalidCertificate, err)
	}
	return cert.NotAfter.UTC(), nil
}
