package analysis

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner lets us stub external CLI commands in tests. env == nil inherits the
// parent environment.
type Runner interface {
	Run(ctx context.Context, name string, env []string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, env []string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if env != nil {
		cmd.Env = env
	}
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// NewExecRunner returns the real subprocess runner.
func NewExecRunner() Runner { return execRunner{} }
