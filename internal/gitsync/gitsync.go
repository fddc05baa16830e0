// Package gitsync keeps a repository working copy in step with its upstream:
// a plain fetch followed by a pruning fetch that forces local branch refs to
// the remote state. Both run the external git binary and block until it
// exits.
package gitsync

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/remarkbridge/internal/report"
	"github.com/remarkbridge/internal/tracker"
)

// Runner executes one git invocation in a working copy and returns its
// combined output.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// Synchronizer fetches and prunes repository working copies.
type Synchronizer struct {
	runner Runner
	logger zerolog.Logger
}

// New returns a Synchronizer spawning the given git binary.
func New(gitBin string, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{runner: execRunner{bin: gitBin}, logger: logger}
}

// NewWithRunner returns a Synchronizer with a custom runner; tests use this
// to substitute the subprocess.
func NewWithRunner(runner Runner, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{runner: runner, logger: logger}
}

// Synchronize fetches upstream refs and then prunes stale ones. A failing
// fetch aborts before the prune step. Failures are reported on the delivery
// log with the full captured output; they do not raise to the caller.
func (s *Synchronizer) Synchronize(ctx context.Context, repo tracker.Repository, rep *report.Log) bool {
	if !s.run(ctx, repo, rep, "fetch", "origin") {
		return false
	}
	return s.run(ctx, repo, rep, "fetch", "--prune", "--prune-tags", "origin", "+refs/heads/*:refs/heads/*")
}

func (s *Synchronizer) run(ctx context.Context, repo tracker.Repository, rep *report.Log, args ...string) bool {
	out, err := s.runner.Run(ctx, repo.RootPath, args...)
	if err != nil {
		rep.Errorf("git %s failed in %s: %v: %s", strings.Join(args, " "), repo.RootPath, err, strings.TrimSpace(string(out)))
		return false
	}
	s.logger.Debug().
		Str("repository", repo.RootPath).
		Str("output", strings.TrimSpace(string(out))).
		Msgf("git %s", strings.Join(args, " "))
	return true
}

// execRunner spawns git with stdout and stderr captured into a temporary
// file that is removed on every exit path. The call blocks until the process
// exits; there is deliberately no timeout.
type execRunner struct {
	bin string
}

func (r execRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	capture, err := os.CreateTemp("", "remarkbridge-git-*")
	if err != nil {
		return nil, err
	}
	defer os.Remove(capture.Name())
	defer capture.Close()

	cmd := exec.Command(r.bin, args...)
	cmd.Dir = dir
	cmd.Stdout = capture
	cmd.Stderr = capture

	runErr := cmd.Run()

	if _, err := capture.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	out, readErr := io.ReadAll(capture)
	if readErr != nil {
		return out, readErr
	}
	return out, runErr
}
