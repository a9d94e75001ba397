package backend

import (
	"github.com/dmitrymomot/certdesk/core/certificate"
	"github.com/dmitrymomot/certdesk/core/ipranges"
	"github.com/dmitrymomot/certdesk/core/server"
	"github.com/dmitrymomot/certdesk/core/setup"
	"github.com/dmitrymomot/certdesk/integration/database/pg"
)

// ListenAddr is the fixed address the backend binds to.
const ListenAddr = ":3000"

// Config aggregates every setting the backend reads from the environment.
type Config struct {
	DB          pg.Config
	Server      server.Config
	Setup       setup.Config
	IPRanges    ipranges.Config
	Certificate certificate.Config

	AppName  string `env:"APP_NAME" envDefault:"certdesk"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	// IPRangesFetch is kept raw: only the exact value "false" disables the fetch.
	IPRangesFetch  string `env:"IP_RANGES_FETCH_ENABLED" envDefault:"true"`
	CertbotVenvDir string `env:"CERTBOT_VENV_DIR" envDefault:"/opt/certbot"`
	NginxBinary    string `env:"NGINX_BINARY" envDefault:"nginx"`
}

// IPRangesFetchEnabled reports whether the boot chain fetches IP ranges.
func (c Config) IPRangesFetchEnabled() bool {
	return c.IPRangesFetch != "false"
}
