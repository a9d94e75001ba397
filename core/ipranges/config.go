package ipranges

import "time"

// Config holds the IP range sources and the rendered include location.
type Config struct {
	CloudFrontURL   string        `env:"IP_RANGES_CLOUDFRONT_URL" envDefault:"https://ip-ranges.amazonaws.com/ip-ranges.json"`
	CloudflareV4URL string        `env:"IP_RANGES_CLOUDFLARE_V4_URL" envDefault:"https://www.cloudflare.com/ips-v4"`
	CloudflareV6URL string        `env:"IP_RANGES_CLOUDFLARE_V6_URL" envDefault:"https://www.cloudflare.com/ips-v6"`
	OutputPath      string        `env:"IP_RANGES_OUTPUT_PATH" envDefault:"/etc/nginx/conf.d/include/ip_ranges.conf"`
	RefreshInterval time.Duration `env:"IP_RANGES_REFRESH_INTERVAL" envDefault:"6h"`
	RequestTimeout  time.Duration `env:"IP_RANGES_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxRetries      uint64        `env:"IP_RANGES_MAX_RETRIES" envDefault:"2"`
}

// DefaultConfig returns the same values as the env defaults.
func DefaultConfig() Config {
	return Config{
		CloudFrontURL:   "https://ip-ranges.amazonaws.com/ip-ranges.json",
		CloudflareV4URL: "https://www.cloudflare.com/ips-v4",
		CloudflareV6URL: "https://www.cloudflare.com/ips-v6",
		OutputPath:      "/etc/nginx/conf.d/include/ip_ranges.conf",
		RefreshInterval: 6 * time.Hour,
		RequestTimeout:  30 * time.Second,
		MaxRetries:      2,
	}
}
