package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// DefaultShell is the interpreter used for command strings.
const DefaultShell = "/bin/sh"

// Result is the captured outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Options controls a single Exec call.
type Options struct {
	// Env is the full environment of the child. Nil means an empty environment.
	Env map[string]string
	// Dir is the working directory. Empty means the current one.
	Dir string
}

// Runner executes shell command strings.
type Runner interface {
	Exec(ctx context.Context, command string, opts Options) (Result, error)
}

// ExitError reports a command that could not be started or exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Stdout)
	}
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("command exited with code %d: %s", e.ExitCode, msg)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	shell string
}

// NewRunner returns a Runner backed by /bin/sh.
func NewRunner() *ExecRunner {
	return &ExecRunner{shell: DefaultShell}
}

// Exec runs command via "sh -c" and waits for it to finish.
func (r *ExecRunner) Exec(ctx context.Context, command string, opts Options) (Result, error) {
	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	cmd.Env = EnvList(opts.Env)
	cmd.Dir = opts.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return res, nil
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}

	return res, &ExitError{
		Command:  command,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Err:      err,
	}
}

// Environ returns the current process environment as a map.
func Environ() map[string]string {
	return ParseEnv(os.Environ())
}

// ParseEnv converts KEY=VALUE pairs to a map. Later duplicates win.
func ParseEnv(pairs []string) map[string]string {
	env := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// MergeEnv layers overrides on top of base and returns a new map.
// Later layers take precedence; inputs are never modified.
func MergeEnv(base map[string]string, overrides ...map[string]string) map[string]string {
	size := len(base)
	for _, o := range overrides {
		size += len(o)
	}

	out := make(map[string]string, size)
	for k, v := range base {
		out[k] = v
	}
	for _, o := range overrides {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

// EnvList renders env as sorted KEY=VALUE pairs.
func EnvList(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}
