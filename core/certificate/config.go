package certificate

import "time"

// Config holds renewal settings.
type Config struct {
	LiveDir         string        `env:"CERTBOT_LIVE_DIR" envDefault:"/etc/letsencrypt/live"`
	ConfigFile      string        `env:"CERTBOT_CONFIG_FILE" envDefault:"/etc/letsencrypt.ini"`
	WorkDir         string        `env:"CERTBOT_WORK_DIR" envDefault:"/tmp/letsencrypt-lib"`
	LogsDir         string        `env:"CERTBOT_LOGS_DIR" envDefault:"/tmp/letsencrypt-log"`
	Binary          string        `env:"CERTBOT_BINARY" envDefault:"certbot"`
	RenewalInterval time.Duration `env:"CERTBOT_RENEWAL_INTERVAL" envDefault:"1h"`
	RenewBefore     time.Duration `env:"CERTBOT_RENEW_BEFORE" envDefault:"720h"`
}

// DefaultConfig returns the same values as the env defaults.
func DefaultConfig() Config {
	return Config{
		LiveDir:         "/etc/letsencrypt/live",
		ConfigFile:      "/etc/letsencrypt.ini",
		WorkDir:         "/tmp/letsencrypt-lib",
		LogsDir:         "/tmp/letsencrypt-log",
		Binary:          "certbot",
		RenewalInterval: time.Hour,
		RenewBefore:     30 * 24 * time.Hour,
	}
}
