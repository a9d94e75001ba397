package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/certdesk/core/logger"
)

// BcryptCost is the work factor for the initial admin password hash.
const BcryptCost = 13

// Config controls first-run defaults.
type Config struct {
	AdminEmail     string `env:"INITIAL_ADMIN_EMAIL" envDefault:"admin@example.com"`
	AdminPassword  string `env:"INITIAL_ADMIN_PASSWORD" envDefault:"changeme"`
	CredentialsDir string `env:"CERTBOT_CREDENTIALS_DIR" envDefault:"/etc/letsencrypt/credentials"`
}

// Admin is the account created on an empty database.
type Admin struct {
	Email        string
	Name         string
	Nickname     string
	PasswordHash string
	Roles        []string
}

// Setting is a key/value row seeded when missing.
type Setting struct {
	ID          string
	Name        string
	Description string
	Value       string
	Meta        map[string]any
}

// DNSCertificate is a Let's Encrypt certificate issued through a DNS challenge.
type DNSCertificate struct {
	ID          int64
	Provider    string
	Credentials string
}

// Store is the persistence used by setup.
type Store interface {
	CountActiveUsers(ctx context.Context) (int, error)
	CreateAdmin(ctx context.Context, admin Admin) error
	EnsureSetting(ctx context.Context, s Setting) (bool, error)
	ListDNSCertificates(ctx context.Context) ([]DNSCertificate, error)
}

// PluginProvisioner installs certbot plugins in batch.
type PluginProvisioner interface {
	InstallAll(ctx context.Context, keys []string) error
}

// DefaultSettings are seeded on every boot if absent.
var DefaultSettings = []Setting{
	{
		ID:          "default-site",
		Name:        "Default Site",
		Description: "What to show when Nginx is hit with an unknown Host",
		Value:       "congratulations",
		Meta:        map[string]any{},
	},
}

// Setup prepares a fresh or existing installation on every boot.
type Setup struct {
	store       Store
	provisioner PluginProvisioner
	cfg         Config
	logger      *slog.Logger
}

// New creates a Setup. A nil logger discards output.
func New(store Store, provisioner PluginProvisioner, cfg Config, log *slog.Logger) *Setup {
	if log == nil {
		log = logger.Nop()
	}
	return &Setup{
		store:       store,
		provisioner: provisioner,
		cfg:         cfg,
		logger:      log.With(logger.Component("setup")),
	}
}

// PerformSetup creates the initial admin, seeds default settings, and
// installs the certbot plugins used by existing DNS-challenge certificates.
func (s *Setup) PerformSetup(ctx context.Context) error {
	if err := s.defaultUser(ctx); err != nil {
		return err
	}
	if err := s.defaultSettings(ctx); err != nil {
		return err
	}
	return s.certbotPlugins(ctx)
}

func (s *Setup) defaultUser(ctx context.Context) error {
	n, err := s.store.CountActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}

	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		return ErrAdminCredentialsRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), BcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := Admin{
		Email:        s.cfg.AdminEmail,
		Name:         "Administrator",
		Nickname:     "Admin",
		PasswordHash: string(hash),
		Roles:        []string{"admin"},
	}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	s.logger.InfoContext(ctx, "Initial admin setup completed", slog.String("email", admin.Email))
	return nil
}

func (s *Setup) defaultSettings(ctx context.Context) error {
	for _, setting := range DefaultSettings {
		created, err := s.store.EnsureSetting(ctx, setting)
		if err != nil {
			return fmt.Errorf("ensure setting %s: %w", setting.ID, err)
		}
		if created {
			s.logger.InfoContext(ctx, "Default settings added", slog.String("setting", setting.ID))
		}
	}
	return nil
}

func (s *Setup) certbotPlugins(ctx context.Context) error {
	certs, err := s.store.ListDNSCertificates(ctx)
	if err != nil {
		return fmt.Errorf("list dns certificates: %w", err)
	}
	if len(certs) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(certs))
	plugins := make([]string, 0, len(certs))
	for _, c := range certs {
		if _, ok := seen[c.Provider]; ok || c.Provider == "" {
			continue
		}
		seen[c.Provider] = struct{}{}
		plugins = append(plugins, c.Provider)
	}

	if err := s.provisioner.InstallAll(ctx, plugins); err != nil {
		return err
	}

	var errs []error
	for _, c := range certs {
		if err := s.writeCredentials(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Added Certbot plugins", slog.Any("plugins", plugins))
	return nil
}

// writeCredentials stores the DNS provider credentials for certbot.
// Existing files are left untouched.
func (s *Setup) writeCredentials(c DNSCertificate) error {
	path := CredentialsPath(s.cfg.CredentialsDir, c.ID)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteCredentials, err)
	}
	if err := os.WriteFile(path, []byte(c.Credentials+"\n"), 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteCredentials, err)
	}
	return nil
}

// CredentialsPath returns the credentials file for certificate id.
func CredentialsPath(dir string, id int64) string {
	return filepath.Join(dir, "credentials-"+strconv.FormatInt(id, 10))
}
