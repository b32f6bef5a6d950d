// Package worker implements scf.Backend on top of an external process.
//
// Every solver owns one worker process. Requests and responses are single
// JSON lines on the worker's stdin and stdout; matrices are exchanged as
// .npy files inside a temporary directory owned by the solver. A worker
// answers every request with a Response and exits after "close" or when
// its stdin is closed.
package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/leapstack-labs/scfdata/internal/sample"
	"github.com/leapstack-labs/scfdata/internal/scf"
	"github.com/leapstack-labs/scfdata/pkg/core"
	"gonum.org/v1/gonum/mat"
)

// ErrClosed is returned when a request is sent to a closed solver.
var ErrClosed = errors.New("worker closed")

// Config configures the worker process.
type Config struct {
	// Command is the worker argv, e.g. ["python3", "scf_worker.py"].
	Command []string
	// Env is appended to the current environment.
	Env []string
	// Dir is the working directory of the worker.
	Dir    string
	Logger *slog.Logger
}

// Backend starts one worker process per solver.
type Backend struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and returns a Backend.
func New(cfg Config) (*Backend, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, errors.New("worker command is not configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Backend{cfg: cfg, logger: logger}, nil
}

// NewSolver starts a worker and initializes it for mol.
// The process is killed when ctx is done.
func (b *Backend) NewSolver(ctx context.Context, mol *scf.Molecule, functional string) (scf.Solver, error) {
	tmp, err := os.MkdirTemp("", "scfdata-worker-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create worker directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, b.cfg.Command[0], b.cfg.Command[1:]...)
	cmd.Dir = b.cfg.Dir
	cmd.Env = append(os.Environ(), b.cfg.Env...)
	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = os.RemoveAll(tmp)
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = os.RemoveAll(tmp)
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(tmp)
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	s := &Solver{
		cmd:    cmd,
		stdin:  stdin,
		reader: bufio.NewReader(stdout),
		stderr: stderr,
		dir:    tmp,
		logger: b.logger.With("molecule", mol.Name, "pid", cmd.Process.Pid),
	}
	s.logger.Debug("worker started")

	if _, err := s.call(ctx, Request{Op: OpInit, Molecule: toWire(mol), Functional: functional}); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to initialize worker for %s: %w", mol.Name, err), s.Close())
	}
	return s, nil
}

// Solver is a handle to one running worker.
type Solver struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	stderr *tailBuffer
	dir    string
	seq    int
	closed bool
	logger *slog.Logger
}

func (s *Solver) call(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", req.Op, err)
	}
	if _, err := s.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w%s", req.Op, err, s.stderr.suffix())
	}

	raw, err := s.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w%s", req.Op, err, s.stderr.suffix())
	}

	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("invalid %s response %q: %w", req.Op, bytes.TrimSpace(raw), err)
	}
	if !resp.OK {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("worker %s: %s", req.Op, msg)
	}
	return &resp, nil
}

func (s *Solver) tempPath(name string) string {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()
	return filepath.Join(s.dir, fmt.Sprintf("%03d_%s.npy", n, name))
}

// fetch asks the worker to write a matrix and reads it back.
func (s *Solver) fetch(ctx context.Context, req Request) (*mat.Dense, error) {
	req.Out = s.tempPath(req.Op)
	if _, err := s.call(ctx, req); err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(req.Out) }()
	return sample.ReadMatrix(req.Out)
}

// put writes m for the worker to read and returns its path.
func (s *Solver) put(name string, m mat.Matrix) (string, error) {
	path := s.tempPath(name)
	if err := sample.WriteMatrix(path, m); err != nil {
		return "", err
	}
	return path, nil
}

// Overlap implements scf.Solver.
func (s *Solver) Overlap(ctx context.Context) (*mat.Dense, error) {
	return s.fetch(ctx, Request{Op: OpOverlap})
}

// HCore implements scf.Solver.
func (s *Solver) HCore(ctx context.Context) (*mat.Dense, error) {
	return s.fetch(ctx, Request{Op: OpHCore})
}

// Density implements scf.Solver.
func (s *Solver) Density(ctx context.Context) (*mat.Dense, error) {
	return s.fetch(ctx, Request{Op: OpDensity})
}

// InitGuess implements scf.Solver.
func (s *Solver) InitGuess(ctx context.Context, scheme string) (*mat.Dense, error) {
	return s.fetch(ctx, Request{Op: OpInitGuess, Scheme: scheme})
}

// Fock implements scf.Solver.
func (s *Solver) Fock(ctx context.Context, dm mat.Matrix) (*mat.Dense, error) {
	req := Request{Op: OpFock}
	if dm != nil {
		path, err := s.put("dm", dm)
		if err != nil {
			return nil, err
		}
		defer func() { _ = os.Remove(path) }()
		req.DM = path
	}
	return s.fetch(ctx, req)
}

// Run implements scf.Solver.
func (s *Solver) Run(ctx context.Context, dm0 mat.Matrix) (core.Status, error) {
	req := Request{Op: OpRun, InitGuess: scf.DefaultGuess}
	if dm0 != nil {
		path, err := s.put("dm0", dm0)
		if err != nil {
			return core.Status{}, err
		}
		defer func() { _ = os.Remove(path) }()
		req.InitGuess = ""
		req.DM0 = path
	}

	resp, err := s.call(ctx, req)
	if err != nil {
		return core.Status{}, err
	}
	s.logger.Debug("SCF finished", "converged", resp.Converged, "cycles", resp.Cycles)
	return core.Status{Converged: resp.Converged, Iterations: resp.Cycles}, nil
}

// Close stops the worker and removes its temporary directory.
// It is safe to call more than once.
func (s *Solver) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	line, _ := json.Marshal(Request{Op: OpClose})
	if _, err := s.stdin.Write(append(line, '\n')); err != nil && !errors.Is(err, os.ErrClosed) {
		s.logger.Debug("worker did not accept close", "error", err)
	}
	if err := s.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		errs = append(errs, fmt.Errorf("failed to close worker stdin: %w", err))
	}
	if err := s.cmd.Wait(); err != nil {
		s.logger.Debug("worker exited", "error", err, "stderr", s.stderr.String())
	}
	if err := os.RemoveAll(s.dir); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove worker directory: %w", err))
	}
	return errors.Join(errs...)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.limit {
		b.buf = b.buf[len(b.buf)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf))
}

func (b *tailBuffer) suffix() string {
	if s := b.String(); s != "" {
		return ": " + s
	}
	return ""
}

var _ scf.Backend = (*Backend)(nil)
