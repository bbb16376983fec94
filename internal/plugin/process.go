package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alucardeht/amgp/internal/registry"
)

var (
	ErrNotExecutable     = errors.New("plugin is not executable")
	ErrProcessNotRunning = errors.New("plugin process not running")
)

// Process is an external component executable. It satisfies
// registry.Component once started.
type Process struct {
	path   string
	config Config

	cmd    *exec.Cmd
	remote *Remote
	cancel context.CancelFunc

	state     atomic.Value
	startedAt time.Time
	lastError error

	mu       sync.RWMutex
	stopOnce sync.Once
}

func NewProcess(path string, config Config) *Process {
	p := &Process{path: path, config: config}
	p.state.Store(StateStopped)
	return p
}

// Opener returns a registry.OpenFunc that starts each candidate as a
// plugin process.
func Opener(config Config) registry.OpenFunc {
	return func(ctx context.Context, path string) (registry.Component, error) {
		p := NewProcess(path, config)
		if err := p.Start(ctx); err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Start launches the executable. The process outlives ctx; it is stopped by
// Close.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.getState() == StateReady {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(p.path)
	if err != nil {
		return fmt.Errorf("stat plugin: %w", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s", ErrNotExecutable, p.path)
	}

	p.state.Store(StateStarting)
	p.stopOnce = sync.Once{}

	p.cmd = exec.Command(p.path, p.config.Args...)
	p.cmd.Dir = filepath.Dir(p.path)
	p.cmd.Env = os.Environ()
	p.cmd.Stderr = os.Stderr

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return p.fail(fmt.Errorf("failed to get stdin pipe: %w", err))
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return p.fail(fmt.Errorf("failed to get stdout pipe: %w", err))
	}

	if err := p.cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return p.fail(fmt.Errorf("failed to start %s: %w", p.path, err))
	}
	p.startedAt = time.Now()

	connCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	client := newStdioClient(connCtx, filepath.Base(p.path), stdin, stdout, p.config.RequestTimeout)
	p.remote = NewRemote(client, p.config)

	p.state.Store(StateReady)
	log.Info("plugin started", "path", p.path, "pid", p.cmd.Process.Pid)
	return nil
}

func (p *Process) fail(err error) error {
	p.state.Store(StateError)
	p.lastError = err
	return err
}

func (p *Process) ready() (*Remote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.getState() != StateReady || p.remote == nil {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotRunning, p.path)
	}
	return p.remote, nil
}

func (p *Process) Identity(ctx context.Context) (registry.Identity, error) {
	r, err := p.ready()
	if err != nil {
		return registry.Identity{}, err
	}
	return r.Identity(ctx)
}

func (p *Process) Capabilities(ctx context.Context) (map[string]registry.Capability, error) {
	r, err := p.ready()
	if err != nil {
		return nil, err
	}
	return r.Capabilities(ctx)
}

func (p *Process) Ping(ctx context.Context) (string, error) {
	r, err := p.ready()
	if err != nil {
		return "", err
	}
	return r.Ping(ctx)
}

// Invalidate drops the cached capability listing of a running plugin.
func (p *Process) Invalidate() {
	if r, err := p.ready(); err == nil {
		r.Invalidate()
	}
}

// Close asks the plugin to shut down, then interrupts it and finally kills
// it if it has not exited within StopTimeout.
func (p *Process) Close() error {
	var err error
	p.stopOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.getState() == StateStopped {
			return
		}

		if p.remote != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), p.stopTimeout())
			if shutdownErr := p.remote.client.Shutdown(shutdownCtx); shutdownErr != nil {
				log.Debug("plugin shutdown request failed", "path", p.path, "error", shutdownErr)
			}
			cancel()
			p.remote.Close()
		}
		if p.cancel != nil {
			p.cancel()
		}

		if p.cmd != nil && p.cmd.Process != nil {
			done := make(chan error, 1)
			go func() {
				done <- p.cmd.Wait()
			}()

			select {
			case <-done:
			case <-time.After(p.stopTimeout()):
				if sigErr := p.cmd.Process.Signal(os.Interrupt); sigErr != nil {
					err = sigErr
				}
				select {
				case <-done:
				case <-time.After(p.stopTimeout()):
					p.cmd.Process.Kill()
					<-done
				}
			}
		}

		p.state.Store(StateStopped)
		p.remote = nil
		p.cmd = nil
		log.Info("plugin stopped", "path", p.path)
	})
	return err
}

func (p *Process) stopTimeout() time.Duration {
	if p.config.StopTimeout > 0 {
		return p.config.StopTimeout
	}
	return DefaultConfig().StopTimeout
}

func (p *Process) State() State {
	return p.getState()
}

func (p *Process) getState() State {
	return p.state.Load().(State)
}

func (p *Process) Path() string {
	return p.path
}

func (p *Process) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		Path:  p.path,
		State: p.getState(),
	}

	if p.remote != nil {
		clientStats := p.remote.client.Stats()
		stats.RequestCount = clientStats.RequestCount
		stats.ErrorCount = clientStats.ErrorCount
		stats.LastRequest = clientStats.LastRequest
		stats.Breaker = p.remote.BreakerState()
	}

	if !p.startedAt.IsZero() {
		stats.StartedAt = p.startedAt
		if p.getState() == StateReady {
			stats.Uptime = time.Since(p.startedAt)
		}
	}

	if p.lastError != nil {
		stats.LastErrorMsg = p.lastError.Error()
	}

	return stats
}
