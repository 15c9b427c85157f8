package validator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/buildmend/mend/internal/source"
)

// Command describes one shell-free command invocation.
type Command struct {
	Cmd  string   `json:"cmd"`
	Args []string `json:"args,omitempty"`
}

// Config controls how a CommandValidator materializes and builds a tree.
type Config struct {
	// Install runs before Build when set (e.g. npm install). An install
	// failure is reported as a build failure, not an infrastructure error,
	// since broken manifests are part of what the pipeline repairs.
	Install *Command
	Build   Command
	Timeout time.Duration
	Env     map[string]string
}

// DefaultConfig builds a Next.js project the way its dev tooling would.
func DefaultConfig() *Config {
	return &Config{
		Install: &Command{Cmd: "npm", Args: []string{"install", "--no-audit", "--no-fund"}},
		Build:   Command{Cmd: "npm", Args: []string{"run", "build"}},
		Timeout: 5 * time.Minute,
	}
}

// CommandValidator materializes the tree into a fresh temporary directory,
// runs the configured commands there, and removes the directory on every
// exit path. Each Validate call gets its own directory, so concurrent
// sessions never share a workspace.
type CommandValidator struct {
	cfg *Config
}

// NewCommandValidator creates a validator; nil config uses DefaultConfig.
func NewCommandValidator(cfg *Config) *CommandValidator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &CommandValidator{cfg: cfg}
}

func (v *CommandValidator) Validate(ctx context.Context, tree source.Tree) (*Result, error) {
	workDir, err := os.MkdirTemp("", "mend-build-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := tree.Write(workDir); err != nil {
		return nil, fmt.Errorf("materialize tree: %w", err)
	}

	if v.cfg.Install != nil {
		output, runErr, infraErr := v.run(ctx, workDir, *v.cfg.Install)
		if infraErr != nil {
			return nil, fmt.Errorf("install: %w", infraErr)
		}
		if runErr != nil {
			return failure(output), nil
		}
	}

	output, runErr, infraErr := v.run(ctx, workDir, v.cfg.Build)
	if infraErr != nil {
		return nil, fmt.Errorf("build: %w", infraErr)
	}
	if runErr != nil {
		return failure(output), nil
	}
	return &Result{Success: true, RawOutput: output}, nil
}

// run executes one command, returning combined output, a command failure
// (non-zero exit), and an infrastructure failure (could not run at all).
func (v *CommandValidator) run(ctx context.Context, dir string, c Command) (string, error, error) {
	timeout := v.cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Cmd, c.Args...)
	cmd.Dir = dir

	env := os.Environ()
	for k, val := range v.cfg.Env {
		env = append(env, k+"="+val)
	}
	cmd.Env = env

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()
	if err == nil {
		return combined.String(), nil, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) || ctx.Err() != nil {
		// The tool ran and failed (or was killed by the timeout): that is a
		// build failure with output to classify, not an infra problem.
		return combined.String(), err, nil
	}
	return combined.String(), nil, err
}

func failure(output string) *Result {
	res := &Result{Success: false, RawOutput: output}
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Error:") || strings.Contains(trimmed, "error ") {
			res.Errors = append(res.Errors, trimmed)
		}
	}
	return res
}
