// Package backend supervises the MagLock session backend as a child process
// and gates the single "backend ready" notification to the UI window.
package backend

import (
	"bufio"
	"os/exec"
	"strings"
	"sync"

	"MagLock/logger"
)

// readyMarker is the literal the backend prints on stdout once it can accept
// requests. Seeing it anywhere in the stream is the sole readiness signal;
// no health check or timer is used.
const readyMarker = "MAGLOCK-BACKEND-READY"

// Supervisor owns the backend child process and the ready-signal state for
// the shell window. Construct exactly one per shell; all bridge handlers
// share it by reference.
type Supervisor struct {
	mu           sync.Mutex
	cmd          *exec.Cmd
	backendReady bool
	windowLoaded bool
	delivered    bool

	notify func()
}

// NewSupervisor builds a Supervisor. notify is invoked, with no lock held,
// each time the ready signal is due for the current window context.
func NewSupervisor(notify func()) *Supervisor {
	return &Supervisor{notify: notify}
}

// Start launches the backend. In dev mode no process is spawned: an
// externally managed backend (wails dev, a debugger session) is assumed to
// be reachable already, so the backend side of the ready gate opens
// immediately and only the window load remains.
//
// In production the executable at exePath is spawned with stdout and stderr
// captured. Readiness is signalled only by the marker line.
func (s *Supervisor) Start(devMode bool, exePath string) error {
	if devMode {
		logger.Info("Dev mode: assuming an externally managed backend")
		s.markBackendReady()
		return nil
	}

	cmd := exec.Command(exePath)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	logger.Info("Backend started (pid %d)", cmd.Process.Pid)

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			logger.Debug("backend: %s", line)
			if strings.Contains(line, readyMarker) {
				s.markBackendReady()
			}
		}
	}()

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			logger.Warn("backend: %s", scanner.Text())
		}
	}()

	go func() {
		err := cmd.Wait()

		s.mu.Lock()
		sawMarker := s.backendReady
		s.cmd = nil
		s.mu.Unlock()

		if !sawMarker {
			// Died before ever serving. Fatal for this session's readiness;
			// no auto-restart.
			logger.WithError(err, "Backend exited before signalling ready")
			return
		}
		// Readiness already sent stays sent. The shell does not recover a
		// lost backend.
		if err != nil {
			logger.WithError(err, "Backend exited")
		} else {
			logger.Warn("Backend exited cleanly while shell still running")
		}
	}()

	return nil
}

func (s *Supervisor) markBackendReady() {
	s.mu.Lock()
	if s.backendReady {
		s.mu.Unlock()
		return
	}
	s.backendReady = true
	logger.Info("Backend reports ready")
	s.mu.Unlock()

	s.deliverIfReady()
}

// WindowLoaded records that the UI document finished loading. It fires on
// every load, including reloads: a reload produces a fresh window context
// that has never seen the ready event, so delivery is re-armed for it.
func (s *Supervisor) WindowLoaded() {
	s.mu.Lock()
	s.windowLoaded = true
	s.delivered = false
	s.mu.Unlock()

	s.deliverIfReady()
}

// deliverIfReady sends the ready notification when both gate conditions
// hold, at most once per window load, whichever condition arrived last.
func (s *Supervisor) deliverIfReady() {
	s.mu.Lock()
	due := s.backendReady && s.windowLoaded && !s.delivered
	if due {
		s.delivered = true
	}
	s.mu.Unlock()

	if due && s.notify != nil {
		s.notify()
	}
}

// Stop kills the backend child, if any. Called synchronously from shell
// shutdown; the OS default termination signal is the only grace given.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}
	logger.Info("Stopping backend (pid %d)", cmd.Process.Pid)
	if err := cmd.Process.Kill(); err != nil {
		logger.WithError(err, "Failed to kill backend")
	}
}
