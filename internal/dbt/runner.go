// Package dbt runs the external transformation tool against the populated
// staging schema. The tool is opaque: the runner only builds its command
// line, streams its output into the log and reports its exit status.
package dbt

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// stderrTail bounds how many trailing stderr lines an ExitError keeps.
	stderrTail = 20

	// maxLineBytes bounds one logged line; the rest of a longer line is
	// read and discarded.
	maxLineBytes = 64 * 1024

	defaultWaitDelay = 10 * time.Second
)

// Config locates the tool and its project.
type Config struct {
	Binary      string
	ProjectDir  string
	ProfilesDir string
	WorkDir     string   // empty means the current directory
	Env         []string // appended to the process environment

	// WaitDelay bounds how long Run waits for the output streams after the
	// tool exits or is killed. Children that inherited the streams cannot
	// hold Run open past it. Zero means 10s.
	WaitDelay time.Duration
}

// ExitError reports a tool invocation that exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  []string // last lines of standard error
}

func (e *ExitError) Error() string {
	msg := "dbt: " + e.Command + " exited with status " + strconv.Itoa(e.Code)
	if len(e.Stderr) > 0 {
		msg += ": " + e.Stderr[len(e.Stderr)-1]
	}
	return msg
}

// Runner invokes the tool.
type Runner struct {
	cfg Config
	log logrus.FieldLogger
}

// New returns a Runner for cfg.
func New(cfg Config, log logrus.FieldLogger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Args returns the argument list for subcommand.
func (r *Runner) Args(subcommand string) []string {
	args := strings.Fields(subcommand)
	if r.cfg.ProfilesDir != "" {
		args = append(args, "--profiles-dir", r.cfg.ProfilesDir)
	}
	if r.cfg.ProjectDir != "" {
		args = append(args, "--project-dir", r.cfg.ProjectDir)
	}
	return args
}

// Run executes one subcommand (e.g. "run" or "test") and blocks until it
// exits. Standard output is logged at info level and standard error at warn
// level, line by line, as it is produced.
func (r *Runner) Run(ctx context.Context, subcommand string) error {
	args := r.Args(subcommand)
	command := strings.Join(append([]string{r.cfg.Binary}, args...), " ")
	log := r.log.WithFields(logrus.Fields{"step": "dbt " + subcommand})
	log.WithField("command", command).Info("starting")
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.cfg.Binary, args...)
	cmd.Dir = r.cfg.WorkDir
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	cmd.WaitDelay = r.cfg.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = defaultWaitDelay
	}

	// exec copies into the pipe writers itself, so WaitDelay governs the
	// copy and Wait returns even when a grandchild keeps the stream open.
	stdout, stdoutW := io.Pipe()
	stderr, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "dbt: start %s", command)
	}

	var tail []string
	var g errgroup.Group
	g.Go(func() error {
		return pump(stdout, func(line string) { log.Info(line) })
	})
	g.Go(func() error {
		return pump(stderr, func(line string) {
			log.Warn(line)
			tail = append(tail, line)
			if len(tail) > stderrTail {
				tail = tail[1:]
			}
		})
	})
	waitErr := cmd.Wait()
	stdoutW.Close()
	stderrW.Close()
	pumpErr := g.Wait()

	elapsed := time.Since(start).Round(time.Millisecond).String()
	if waitErr != nil {
		var ee *exec.ExitError
		if errors.As(waitErr, &ee) && ctx.Err() == nil {
			err := &ExitError{Command: command, Code: ee.ExitCode(), Stderr: tail}
			log.WithFields(logrus.Fields{"exit_code": err.Code, "elapsed": elapsed}).Error("failed")
			return err
		}
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "dbt: %s interrupted", command)
		}
		return errors.Wrapf(waitErr, "dbt: %s", command)
	}
	if pumpErr != nil {
		return errors.Wrap(pumpErr, "dbt: read output")
	}
	log.WithField("elapsed", elapsed).Info("finished")
	return nil
}

// RunSteps runs subcommands in order and stops at the first failure.
func (r *Runner) RunSteps(ctx context.Context, subcommands ...string) error {
	for _, s := range subcommands {
		if err := r.Run(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// pump emits rd line by line until EOF. Lines longer than maxLineBytes are
// cut and marked; reading never stops early, so the writer cannot block on
// a full pipe.
func pump(rd io.Reader, emit func(string)) error {
	br := bufio.NewReader(rd)
	var line []byte
	truncated := false
	flush := func() {
		s := strings.TrimRight(string(line), "\r")
		if truncated {
			s += " [truncated]"
		}
		if s != "" {
			emit(s)
		}
		line, truncated = line[:0], false
	}
	for {
		frag, err := br.ReadSlice('\n')
		complete := err == nil
		if complete {
			frag = frag[:len(frag)-1]
		}
		if room := maxLineBytes - len(line); len(frag) > room {
			if room > 0 {
				line = append(line, frag[:room]...)
			}
			truncated = true
		} else {
			line = append(line, frag...)
		}
		switch {
		case complete:
			flush()
		case err == bufio.ErrBufferFull:
		case err == io.EOF:
			flush()
			return nil
		default:
			flush()
			return err
		}
	}
}
