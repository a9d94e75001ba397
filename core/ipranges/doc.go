// Package ipranges downloads the public CDN address ranges (CloudFront and
// Cloudflare) and renders them as an nginx include of set_real_ip_from
// directives, so the proxy trusts X-Forwarded-For only from those networks.
//
// The Fetcher serves two roles during startup: Fetch is the best-effort boot
// phase, and InitTimer arms a background refresh that refetches on an
// interval and reloads nginx afterwards.
//
//	f := ipranges.New(cfg, reloader, ipranges.WithLogger(log))
//	if err := f.Fetch(ctx); err != nil {
//		log.Warn("IP Ranges fetch failed, continuing anyway", logger.Error(err))
//	}
//	f.InitTimer(ctx)
package ipranges
