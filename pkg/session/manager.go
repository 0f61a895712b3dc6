// Package session is the ambient session registry sitting above the sync
// engine: it owns one *Session (PTY + cache.Grid + emulator.Adapter +
// timeline.Stream) per terminal, persists Info to a control directory the
// way a restarted daemon can rediscover live sessions, and reaps exited or
// zombied processes. Grounded on
// amantus-ai-vibetunnel/linux/pkg/session/manager.go's control-directory
// layout and ps-based liveness check.
package session

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

// Manager owns the registry of running and on-disk sessions rooted at a
// single control directory.
type Manager struct {
	controlPath         string
	runningSessions     map[string]*Session
	mutex               sync.RWMutex
	doNotAllowColumnSet bool

	callbackMutex sync.RWMutex
	callbacks     map[string][]OutputCallback
}

// NewManager creates a Manager rooted at controlPath, creating it on first
// session write if it does not yet exist.
func NewManager(controlPath string) *Manager {
	return &Manager{
		controlPath:     controlPath,
		runningSessions: make(map[string]*Session),
		callbacks:       make(map[string][]OutputCallback),
	}
}

// SetDoNotAllowColumnSet disables resize handling for all sessions (used
// when the host is itself running inside a fixed-size terminal).
func (m *Manager) SetDoNotAllowColumnSet(value bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.doNotAllowColumnSet = value
}

// GetDoNotAllowColumnSet reports the current resize-disable flag.
func (m *Manager) GetDoNotAllowColumnSet() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.doNotAllowColumnSet
}

// CreateSession spawns a new session with a generated ID.
func (m *Manager) CreateSession(config Config) (*Session, error) {
	if err := os.MkdirAll(m.controlPath, 0o755); err != nil {
		return nil, fmt.Errorf("create control directory: %w", err)
	}
	sess, err := newSession(m.controlPath, config, m)
	if err != nil {
		return nil, err
	}
	return m.startAndRegister(sess, config)
}

// CreateSessionWithID spawns a new session using a caller-supplied ID,
// used when a client reconnects to a session it already knows the ID of.
func (m *Manager) CreateSessionWithID(id string, config Config) (*Session, error) {
	if err := os.MkdirAll(m.controlPath, 0o755); err != nil {
		return nil, fmt.Errorf("create control directory: %w", err)
	}
	sess, err := newSessionWithID(m.controlPath, id, config, m)
	if err != nil {
		return nil, err
	}
	return m.startAndRegister(sess, config)
}

func (m *Manager) startAndRegister(sess *Session, config Config) (*Session, error) {
	if !config.IsSpawned {
		if err := sess.Start(); err != nil {
			if removeErr := os.RemoveAll(sess.Path()); removeErr != nil {
				log.Printf("[ERROR] failed to remove session path after start failure: %v", removeErr)
			}
			return nil, err
		}
	}

	m.mutex.Lock()
	m.runningSessions[sess.ID] = sess
	m.mutex.Unlock()
	return sess, nil
}

// GetSession returns a running session from the in-memory registry, or
// loads its persisted Info from disk if this Manager instance never
// started it (e.g. after a daemon restart).
func (m *Manager) GetSession(id string) (*Session, error) {
	m.mutex.RLock()
	if sess, ok := m.runningSessions[id]; ok {
		m.mutex.RUnlock()
		return sess, nil
	}
	m.mutex.RUnlock()
	return loadSession(m.controlPath, id, m)
}

// FindSession resolves a session by exact ID, exact name, or ID prefix.
func (m *Manager) FindSession(nameOrID string) (*Session, error) {
	sessions, err := m.ListSessions()
	if err != nil {
		return nil, err
	}
	for _, info := range sessions {
		if info.ID == nameOrID || info.Name == nameOrID || strings.HasPrefix(info.ID, nameOrID) {
			return m.GetSession(info.ID)
		}
	}
	return nil, fmt.Errorf("session not found: %s", nameOrID)
}

// ListSessions scans the control directory, refreshes liveness for any
// session not already marked exited, and returns summaries sorted newest
// first.
func (m *Manager) ListSessions() ([]Info, error) {
	entries, err := os.ReadDir(m.controlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Info{}, nil
		}
		return nil, err
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sess, err := loadSession(m.controlPath, entry.Name(), m)
		if err != nil {
			if os.Getenv("BEACH_DEBUG") != "" {
				log.Printf("[DEBUG] failed to load session %s: %v", entry.Name(), err)
			}
			continue
		}
		if sess.info.Status != string(StatusExited) {
			if err := sess.UpdateStatus(); err != nil {
				log.Printf("[WARN] failed to update session status for %s: %v", sess.ID, err)
			}
		}
		infos = append(infos, sess.info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.After(infos[j].StartedAt)
	})
	return infos, nil
}

// CleanupExitedSessions refreshes every session's status without removing
// anything from disk; use RemoveExitedSessions for actual reaping.
func (m *Manager) CleanupExitedSessions() error {
	return m.UpdateAllSessionStatuses()
}

// RemoveExitedSessions deletes the control directory of every session
// whose process is no longer alive, reaping zombies along the way.
func (m *Manager) RemoveExitedSessions() error {
	sessions, err := m.ListSessions()
	if err != nil {
		return err
	}

	var errs []error
	for _, info := range sessions {
		shouldRemove := info.Pid == 0

		if info.Pid != 0 {
			cmd := exec.Command("ps", "-p", strconv.Itoa(info.Pid), "-o", "stat=")
			output, err := cmd.Output()
			if err != nil {
				shouldRemove = true
			} else if stat := strings.TrimSpace(string(output)); strings.HasPrefix(stat, "Z") {
				shouldRemove = true
				var status syscall.WaitStatus
				if _, err := syscall.Wait4(info.Pid, &status, syscall.WNOHANG, nil); err != nil {
					log.Printf("[WARN] failed to reap zombie process %d: %v", info.Pid, err)
				}
			}
		}

		if shouldRemove {
			if err := m.RemoveSession(info.ID); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", info.ID, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// UpdateAllSessionStatuses refreshes liveness for every known session.
func (m *Manager) UpdateAllSessionStatuses() error {
	sessions, err := m.ListSessions()
	if err != nil {
		return err
	}
	for _, info := range sessions {
		sess, err := m.GetSession(info.ID)
		if err != nil {
			continue
		}
		if err := sess.UpdateStatus(); err != nil {
			log.Printf("[WARN] failed to update session status for %s: %v", info.ID, err)
		}
	}
	return nil
}

// RemoveSession stops tracking a session and deletes its control
// directory.
func (m *Manager) RemoveSession(id string) error {
	m.mutex.Lock()
	if sess, ok := m.runningSessions[id]; ok {
		_ = sess.Stop()
	}
	delete(m.runningSessions, id)
	m.mutex.Unlock()

	m.callbackMutex.Lock()
	delete(m.callbacks, id)
	m.callbackMutex.Unlock()

	return os.RemoveAll(filepath.Join(m.controlPath, id))
}

// RegisterOutputCallback registers an observer of a session's raw PTY
// bytes, invoked synchronously from the session's pump goroutine. Callers
// needing to do non-trivial work (writing to disk, network I/O) must
// hand off to their own goroutine — this mirrors the teacher's
// raw-passthrough callback, the faster of its two historical callback
// paths, now the only one since every buffer-diff consumer reads from
// pkg/timeline instead.
func (m *Manager) RegisterOutputCallback(sessionID string, cb OutputCallback) {
	m.callbackMutex.Lock()
	defer m.callbackMutex.Unlock()
	m.callbacks[sessionID] = append(m.callbacks[sessionID], cb)
}

// UnregisterOutputCallbacks removes every callback registered for a
// session.
func (m *Manager) UnregisterOutputCallbacks(sessionID string) {
	m.callbackMutex.Lock()
	defer m.callbackMutex.Unlock()
	delete(m.callbacks, sessionID)
}

// NotifyOutput dispatches raw PTY bytes to every callback registered for
// sessionID.
func (m *Manager) NotifyOutput(sessionID string, data []byte) {
	m.callbackMutex.RLock()
	callbacks := m.callbacks[sessionID]
	m.callbackMutex.RUnlock()
	for _, cb := range callbacks {
		cb(sessionID, data)
	}
}
