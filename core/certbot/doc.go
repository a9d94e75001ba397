// Package certbot installs optional certbot DNS plugins.
//
// The Registry is loaded once from the embedded certbot-dns-plugins.json.
// The Installer turns a registry entry into a pip invocation inside the
// certbot virtualenv, and the Provisioner runs the Installer over a list of
// keys one at a time:
//
//	inst := certbot.NewInstaller(certbot.DefaultRegistry(), shell.NewRunner())
//	prov := certbot.NewProvisioner(inst, log)
//	if err := prov.InstallAll(ctx, []string{"cloudflare", "route53"}); err != nil {
//		// errors.Is(err, certbot.ErrSomePluginsFailed)
//	}
//
// Version specs may contain {{certbot-version}}; it is replaced with a shell
// subexpression that prints the installed certbot version, so plugins are
// pinned to the certbot release present on the host.
package certbot
