package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// CommandOption configures NewCommand.
type CommandOption func(*commandConfig)

type commandConfig struct {
	dir     string
	env     []string
	framing Framing
	logger  *slog.Logger
	grace   time.Duration
}

// WithDir sets the working directory of the spawned process.
func WithDir(dir string) CommandOption {
	return func(c *commandConfig) { c.dir = dir }
}

// WithEnv appends environment variables (KEY=VALUE) to the spawned process.
func WithEnv(env ...string) CommandOption {
	return func(c *commandConfig) { c.env = append(c.env, env...) }
}

// WithFraming overrides the default header framing.
func WithFraming(f Framing) CommandOption {
	return func(c *commandConfig) { c.framing = f }
}

// WithCommandLogger receives the process's stderr, one record per line.
func WithCommandLogger(l *slog.Logger) CommandOption {
	return func(c *commandConfig) { c.logger = l }
}

// NewCommand returns a Factory that spawns name with args and speaks to it
// over stdin/stdout. Closing the transport closes stdin, waits briefly for
// the process to exit, and kills it otherwise.
func NewCommand(name string, args []string, opts ...CommandOption) Factory {
	cfg := commandConfig{framing: HeaderFraming, grace: 2 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}

	return func(ctx context.Context) (Transport, error) {
		// The process outlives the ctx passed to the factory; it is bound to
		// the transport instead.
		cmd := exec.Command(name, args...)
		cmd.Dir = cfg.dir
		if len(cfg.env) > 0 {
			cmd.Env = append(cmd.Environ(), cfg.env...)
		}

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
		// Output pipes are owned here, not by cmd, so Wait never closes stdout
		// under the reader; it sees EOF once the child exits.
		stdout, stdoutW, err := os.Pipe()
		if err != nil {
			_ = stdin.Close()
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		stderr, stderrW, err := os.Pipe()
		if err != nil {
			_ = stdin.Close()
			closeAll(stdout, stdoutW)
			return nil, fmt.Errorf("stderr pipe: %w", err)
		}
		cmd.Stdout = stdoutW
		cmd.Stderr = stderrW

		if err := ctx.Err(); err != nil {
			_ = stdin.Close()
			closeAll(stdout, stdoutW, stderr, stderrW)
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			_ = stdin.Close()
			closeAll(stdout, stdoutW, stderr, stderrW)
			return nil, fmt.Errorf("start %s: %w", name, err)
		}
		// The child holds its own copies of the write ends.
		closeAll(stdoutW, stderrW)

		p := &process{cmd: cmd, stdin: stdin, stdout: stdout, grace: cfg.grace, exited: make(chan struct{})}
		go p.drainStderr(stderr, cfg.logger)
		go p.monitor()

		return NewStream(stdout, stdin, p, cfg.framing), nil
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

type process struct {
	cmd   *exec.Cmd
	stdin  io.WriteCloser
	stdout *os.File
	grace  time.Duration

	exited  chan struct{}
	waitErr error
	once    sync.Once
}

func (p *process) monitor() {
	p.waitErr = p.cmd.Wait()
	close(p.exited)
}

func (p *process) drainStderr(r io.ReadCloser, logger *slog.Logger) {
	defer r.Close()
	if logger == nil {
		_, _ = io.Copy(io.Discard, r)
		return
	}
	buf := make([]byte, 4096)
	var line []byte
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				logger.Debug("stderr", slog.String("line", string(line)))
				line = line[:0]
				continue
			}
			line = append(line, b)
		}
		if err != nil {
			if len(line) > 0 {
				logger.Debug("stderr", slog.String("line", string(line)))
			}
			return
		}
	}
}

func (p *process) Close() error {
	var err error
	p.once.Do(func() {
		_ = p.stdin.Close()
		select {
		case <-p.exited:
		case <-time.After(p.grace):
			if p.cmd.Process != nil {
				_ = p.cmd.Process.Kill()
			}
			<-p.exited
		}
		// Unblocks a Read still waiting on a grandchild holding stdout open.
		_ = p.stdout.Close()
		var exitErr *exec.ExitError
		if p.waitErr != nil && !errors.As(p.waitErr, &exitErr) {
			err = p.waitErr
		}
	})
	return err
}
