package setup_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/certdesk/core/certbot"
	"github.com/dmitrymomot/certdesk/core/setup"
)

type fakeStore struct {
	users       int
	countErr    error
	admins      []setup.Admin
	settings    map[string]setup.Setting
	certs       []setup.DNSCertificate
	listCertErr error
}

func (f *fakeStore) CountActiveUsers(context.Context) (int, error) {
	return f.users, f.countErr
}

func (f *fakeStore) CreateAdmin(_ context.Context, a setup.Admin) error {
	f.admins = append(f.admins, a)
	f.users++
	return nil
}

func (f *fakeStore) EnsureSetting(_ context.Context, s setup.Setting) (bool, error) {
	if f.settings == nil {
		f.settings = map[string]setup.Setting{}
	}
	if _, ok := f.settings[s.ID]; ok {
		return false, nil
	}
	f.settings[s.ID] = s
	return true, nil
}

func (f *fakeStore) ListDNSCertificates(context.Context) ([]setup.DNSCertificate, error) {
	return f.certs, f.listCertErr
}

type fakeProvisioner struct {
	calls [][]string
	err   error
}

func (f *fakeProvisioner) InstallAll(_ context.Context, keys []string) error {
	f.calls = append(f.calls, keys)
	return f.err
}

func testConfig(t *testing.T) setup.Config {
	t.Helper()
	return setup.Config{
		AdminEmail:     "admin@example.com",
		AdminPassword:  "changeme",
		CredentialsDir: filepath.Join(t.TempDir(), "credentials"),
	}
}

func TestPerformSetupFreshInstall(t *testing.T) {
	store := &fakeStore{}
	prov := &fakeProvisioner{}
	s := setup.New(store, prov, testConfig(t), nil)

	require.NoError(t, s.PerformSetup(context.Background()))

	require.Len(t, store.admins, 1)
	admin := store.admins[0]
	assert.Equal(t, "admin@example.com", admin.Email)
	assert.Equal(t, []string{"admin"}, admin.Roles)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("changeme")))

	assert.Contains(t, store.settings, "default-site")
	assert.Empty(t, prov.calls, "no dns certificates, no provisioning")

	t.Run("second boot is idempotent", func(t *testing.T) {
		require.NoError(t, s.PerformSetup(context.Background()))
		assert.Len(t, store.admins, 1)
		assert.Len(t, store.settings, 1)
	})
}

func TestPerformSetupMissingAdminCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminPassword = ""
	s := setup.New(&fakeStore{}, &fakeProvisioner{}, cfg, nil)

	assert.ErrorIs(t, s.PerformSetup(context.Background()), setup.ErrAdminCredentialsRequired)
}

func TestPerformSetupStoreError(t *testing.T) {
	storeErr := errors.New("connection reset")
	s := setup.New(&fakeStore{countErr: storeErr}, &fakeProvisioner{}, testConfig(t), nil)

	assert.ErrorIs(t, s.PerformSetup(context.Background()), storeErr)
}

func TestPerformSetupInstallsDNSPlugins(t *testing.T) {
	cfg := testConfig(t)
	store := &fakeStore{
		users: 1,
		certs: []setup.DNSCertificate{
			{ID: 1, Provider: "cloudflare", Credentials: "dns_cloudflare_api_token = abc"},
			{ID: 2, Provider: "route53", Credentials: "[default]"},
			{ID: 3, Provider: "cloudflare", Credentials: "dns_cloudflare_api_token = def"},
		},
	}
	prov := &fakeProvisioner{}
	s := setup.New(store, prov, cfg, nil)

	existing := setup.CredentialsPath(cfg.CredentialsDir, 3)
	require.NoError(t, os.MkdirAll(cfg.CredentialsDir, 0o700))
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o600))

	require.NoError(t, s.PerformSetup(context.Background()))

	require.Len(t, prov.calls, 1)
	assert.Equal(t, []string{"cloudflare", "route53"}, prov.calls[0])

	data, err := os.ReadFile(setup.CredentialsPath(cfg.CredentialsDir, 1))
	require.NoError(t, err)
	assert.Equal(t, "dns_cloudflare_api_token = abc\n", string(data))

	info, err := os.Stat(setup.CredentialsPath(cfg.CredentialsDir, 2))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err = os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestPerformSetupProvisioningFailure(t *testing.T) {
	store := &fakeStore{
		users: 1,
		certs: []setup.DNSCertificate{{ID: 7, Provider: "ovh"}},
	}
	prov := &fakeProvisioner{err: certbot.NewSomePluginsFailedError()}
	cfg := testConfig(t)
	s := setup.New(store, prov, cfg, nil)

	err := s.PerformSetup(context.Background())
	assert.ErrorIs(t, err, certbot.ErrSomePluginsFailed)

	_, statErr := os.Stat(setup.CredentialsPath(cfg.CredentialsDir, 7))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCredentialsPath(t *testing.T) {
	assert.Equal(t, "/etc/letsencrypt/credentials/credentials-42", setup.CredentialsPath("/etc/letsencrypt/credentials", 42))
}
