// Package certificate keeps Let's Encrypt certificates issued through
// certbot renewed before they expire.
//
// The Manager implements the startup timer contract: InitTimer arms an
// hourly sweep that selects certificates expiring within the renewal
// window, runs certbot renew for each through a shell.Runner, reads the new
// expiry from the renewed fullchain.pem and stores it. nginx is reloaded
// once per sweep when at least one certificate changed.
//
//	m := certificate.NewManager(cfg, certificate.NewPostgresStore(pool), shell.NewRunner(),
//		certificate.WithReloader(reloader),
//		certificate.WithLogger(log),
//	)
//	m.InitTimer(ctx)
//
// Sweeps never overlap: a sweep that starts while another is running
// returns ErrRenewalInProgress.
package certificate
