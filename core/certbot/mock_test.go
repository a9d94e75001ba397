package certbot_test

import (
	"context"
	"strings"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/certdesk/pkg/shell"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Exec(ctx context.Context, command string, opts shell.Options) (shell.Result, error) {
	args := m.Called(ctx, command, opts)
	return args.Get(0).(shell.Result), args.Error(1)
}

// recordingRunner records commands and fails those containing a marker.
type recordingRunner struct {
	mu       sync.Mutex
	commands []string
	envs     []map[string]string
	failOn   string
}

func (r *recordingRunner) Exec(_ context.Context, command string, opts shell.Options) (shell.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	r.envs = append(r.envs, opts.Env)
	if r.failOn != "" && strings.Contains(command, r.failOn) {
		return shell.Result{ExitCode: 1, Stderr: "pip failed"}, &shell.ExitError{Command: command, ExitCode: 1, Stderr: "pip failed"}
	}
	return shell.Result{Stdout: "ok"}, nil
}

func (r *recordingRunner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

const testRegistry = `{
	"alpha": {"package_name": "certbot-dns-alpha", "version": ">={{certbot-version}}", "dependencies": "acme=={{certbot-version}}"},
	"bravo": {"package_name": "certbot-dns-bravo", "version": "~=1.0", "dependencies": ""},
	"charlie": {"package_name": "certbot-dns-charlie", "version": "", "dependencies": "requests", "env": {"FOO": "1"}},
	"delta": {"package_name": "certbot-dns-delta", "version": "", "dependencies": "", "env": "not-a-map"},
	"echo": {"package_name": "certbot-dns-echo", "version": "", "dependencies": "", "env": ["FOO", "1"]}
}`
