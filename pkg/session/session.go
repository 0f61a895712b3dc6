package session

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/emulator"
	"github.com/beachshare/beach/pkg/timeline"
)

// Status mirrors the teacher's session.Status enum (running/exited), kept
// as a string for direct JSON round-tripping through info.json.
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
)

// Config describes how to spawn a session's command.
type Config struct {
	Name           string
	Command        []string
	Cwd            string
	Cols, Rows     int
	ScrollbackRows int
	IsSpawned      bool
}

// Info is the on-disk/JSON-facing session summary (spec's ambient session
// registry — not part of the core sync engine's data model).
type Info struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Command   []string  `json:"command"`
	Cwd       string    `json:"cwd"`
	Pid       int       `json:"pid"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	ExitedAt  time.Time `json:"exited_at,omitempty"`
}

// OutputCallback observes raw PTY bytes as they arrive, in addition to
// (not instead of) the grid/timeline pipeline every session always
// maintains. Unifies the teacher's two historical competing streaming
// paths (DirectOutputCallback for buffer-diff consumers, RawPTYCallback
// for passthrough consumers) into the one path this architecture still
// needs: optional raw observers such as an asciinema-format recorder.
type OutputCallback func(sessionID string, data []byte)

// Session owns one PTY-backed terminal: the authoritative cache.Grid, the
// emulator.Adapter driving it, and the timeline.Stream every subscription
// reads from. Grounded on amantus-ai-vibetunnel/linux/pkg/session's
// control-directory/info.json/ps-based-liveness conventions, restructured
// to drive this module's sync engine instead of a flat TerminalBuffer.
type Session struct {
	ID   string
	Name string

	mu      sync.RWMutex
	info    Info
	ptmx    *os.File
	cmd     *exec.Cmd
	path    string
	manager *Manager

	Grid     *cache.Grid
	Adapter  *emulator.Adapter
	Timeline *timeline.Stream

	drainDone chan struct{}
}

func newSession(controlPath string, cfg Config, m *Manager) (*Session, error) {
	return newSessionWithID(controlPath, uuid.NewString(), cfg, m)
}

func newSessionWithID(controlPath, id string, cfg Config, m *Manager) (*Session, error) {
	if cfg.Cols == 0 {
		cfg.Cols = 80
	}
	if cfg.Rows == 0 {
		cfg.Rows = 24
	}
	if cfg.ScrollbackRows == 0 {
		cfg.ScrollbackRows = 10000
	}

	grid := cache.NewGrid(cfg.Cols, cfg.Rows, cfg.ScrollbackRows)
	s := &Session{
		ID:   id,
		Name: cfg.Name,
		path: filepath.Join(controlPath, id),
		info: Info{
			ID:        id,
			Name:      cfg.Name,
			Command:   cfg.Command,
			Cwd:       cfg.Cwd,
			Status:    string(StatusRunning),
			StartedAt: time.Now(),
		},
		manager:  m,
		Grid:     grid,
		Adapter:  emulator.NewAdapter(grid),
		Timeline: timeline.NewStream(0),
	}

	if err := os.MkdirAll(s.path, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if err := s.writeInfo(); err != nil {
		return nil, err
	}
	return s, nil
}

func loadSession(controlPath, id string, m *Manager) (*Session, error) {
	path := filepath.Join(controlPath, id)
	data, err := os.ReadFile(filepath.Join(path, "info.json"))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	grid := cache.NewGrid(80, 24, 10000)
	s := &Session{
		ID:       info.ID,
		Name:     info.Name,
		path:     path,
		info:     info,
		manager:  m,
		Grid:     grid,
		Adapter:  emulator.NewAdapter(grid),
		Timeline: timeline.NewStream(0),
	}
	return s, nil
}

func (s *Session) Path() string { return s.path }

func (s *Session) writeInfo() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.info, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.path, "info.json"), data, 0o644)
}

// Start spawns the session's command behind a PTY and begins the pump
// goroutine that feeds PTY output into the emulator adapter and the
// timeline.
func (s *Session) Start() error {
	s.mu.Lock()
	cmdline := s.info.Command
	cwd := s.info.Cwd
	s.mu.Unlock()

	if len(cmdline) == 0 {
		cmdline = []string{"/bin/sh"}
	}
	cmd := exec.Command(cmdline[0], cmdline[1:]...)
	if cwd != "" {
		cmd.Dir = cwd
	}

	cols, rows := s.Grid.Dims()
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	if err != nil {
		return fmt.Errorf("start pty: %w", err)
	}

	s.mu.Lock()
	s.ptmx = ptmx
	s.cmd = cmd
	s.info.Pid = cmd.Process.Pid
	s.drainDone = make(chan struct{})
	s.mu.Unlock()

	go s.pump()
	go s.waitExit()
	return s.writeInfo()
}

// pump reads PTY bytes, feeds the adapter (which mutates the grid and
// queues CacheUpdates), drains the adapter's queue onto the timeline, and
// fans raw bytes out to any registered OutputCallback.
func (s *Session) pump() {
	defer close(s.drainDone)
	go s.drainAdapter()

	buf := make([]byte, 32*1024)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			_, _ = s.Adapter.Write(chunk)
			if s.manager != nil {
				s.manager.NotifyOutput(s.ID, chunk)
			}
		}
		if err != nil {
			if err != io.EOF {
				// PTY read errors beyond EOF mean the slave side is gone;
				// nothing further to drain.
			}
			s.Adapter.Close()
			return
		}
	}
}

func (s *Session) drainAdapter() {
	for {
		updates := s.Adapter.Drain()
		if updates == nil {
			return
		}
		for _, u := range updates {
			s.Timeline.Record(u)
		}
	}
}

func (s *Session) waitExit() {
	_ = s.cmd.Wait()
	s.mu.Lock()
	s.info.Status = string(StatusExited)
	s.info.ExitedAt = time.Now()
	s.mu.Unlock()
	_ = s.writeInfo()
}

// Write sends input bytes to the PTY (the command's stdin).
func (s *Session) Write(data []byte) error {
	s.mu.RLock()
	ptmx := s.ptmx
	s.mu.RUnlock()
	if ptmx == nil {
		return fmt.Errorf("session %s has no active pty", s.ID)
	}
	_, err := ptmx.Write(data)
	return err
}

// Resize applies a new size to both the PTY and the grid, per spec §4.6.6.
func (s *Session) Resize(cols, rows int) error {
	s.mu.RLock()
	ptmx := s.ptmx
	s.mu.RUnlock()
	s.Grid.Resize(cols, rows)
	s.Adapter.Resize(cols, rows)
	if ptmx == nil {
		return nil
	}
	return pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
}

// Alive reports whether the session's process is still running.
func (s *Session) Alive() bool {
	s.mu.RLock()
	pid := s.info.Pid
	status := s.info.Status
	s.mu.RUnlock()
	if status == string(StatusExited) || pid == 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// Info returns a copy of the session's current summary.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// UpdateStatus reconciles in-memory status with whether the process is
// still alive, matching the teacher's ps-based liveness check.
func (s *Session) UpdateStatus() error {
	s.mu.RLock()
	pid := s.info.Pid
	status := s.info.Status
	s.mu.RUnlock()

	if status == string(StatusExited) || pid == 0 {
		return nil
	}
	if err := syscall.Kill(pid, 0); err != nil {
		s.mu.Lock()
		s.info.Status = string(StatusExited)
		s.info.ExitedAt = time.Now()
		s.mu.Unlock()
		return s.writeInfo()
	}
	return nil
}

// Stop terminates the session's process and closes the PTY.
func (s *Session) Stop() error {
	s.mu.RLock()
	ptmx := s.ptmx
	cmd := s.cmd
	s.mu.RUnlock()

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	if ptmx != nil {
		return ptmx.Close()
	}
	return nil
}
