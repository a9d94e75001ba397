// Package shell runs external commands through /bin/sh and captures their output.
//
// A Runner receives the complete environment for the child process; callers
// build it with MergeEnv so the process environment and overrides are layered
// explicitly:
//
//	env := shell.MergeEnv(shell.Environ(), map[string]string{"FOO": "1"})
//	res, err := runner.Exec(ctx, "certbot --version", shell.Options{Env: env})
//	var exitErr *shell.ExitError
//	if errors.As(err, &exitErr) {
//		log.Error("command failed", "code", exitErr.ExitCode, "stderr", exitErr.Stderr)
//	}
package shell
