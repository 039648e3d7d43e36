// Package flasher drives the external esptool binary to write firmware to a
// lock controller over a serial port, translating its streamed text output
// into structured progress and a terminal result.
package flasher

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"MagLock/logger"
)

const flashBaudRate = "115200"

// Write offsets for the ESP32 image layout.
const (
	bootloaderOffset = "0x1000"
	partitionsOffset = "0x8000"
	firmwareOffset   = "0x10000"
)

var (
	// ErrFlashInFlight is returned when a flash is requested for a port that
	// already has a live flashing subprocess.
	ErrFlashInFlight = errors.New("a flash is already in progress on this port")

	// ErrNoFirmware is returned when the request names no firmware image.
	ErrNoFirmware = errors.New("no firmware image selected")
)

// Files names the images to write. FirmwarePath is required; BootloaderPath
// and PartitionsPath are optional and their (offset, file) pairs are omitted
// from the tool invocation when empty.
type Files struct {
	FirmwarePath   string `json:"firmwarePath"`
	BootloaderPath string `json:"bootloaderPath"`
	PartitionsPath string `json:"partitionsPath"`
}

// Result is the terminal outcome of one flash job.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func failure(format string, args ...interface{}) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Service runs flash jobs. At most one job may be live per port; the live
// subprocess handle in the active map is the only lock. Progress percentages
// go to the emit sink in subprocess output order, always before the Result.
type Service struct {
	mu     sync.Mutex
	active map[string]*exec.Cmd

	locate func() (string, error)
	emit   func(percent int)
}

// NewService builds a Service. locate resolves the esptool path per host
// (see ToolPath); emit receives progress percentages.
func NewService(locate func() (string, error), emit func(percent int)) *Service {
	if emit == nil {
		emit = func(int) {}
	}
	return &Service{
		active: make(map[string]*exec.Cmd),
		locate: locate,
		emit:   emit,
	}
}

// buildArgs assembles the fixed esptool argument template. The device must
// already be in bootloader mode: reset before and after is disabled so the
// tool never touches DTR/RTS.
func buildArgs(port string, files Files) ([]string, error) {
	if files.FirmwarePath == "" {
		return nil, ErrNoFirmware
	}

	args := []string{
		"--port", port,
		"--baud", flashBaudRate,
		"--before", "no-reset",
		"--after", "no-reset",
		"write-flash",
	}
	if files.BootloaderPath != "" {
		args = append(args, bootloaderOffset, files.BootloaderPath)
	}
	if files.PartitionsPath != "" {
		args = append(args, partitionsOffset, files.PartitionsPath)
	}
	args = append(args, firmwareOffset, files.FirmwarePath)
	return args, nil
}

// acquire registers a pending job for the port, rejecting if one is live.
// The *exec.Cmd is filled in by the caller once the subprocess starts.
func (s *Service) acquire(port string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[port]; busy {
		return ErrFlashInFlight
	}
	s.active[port] = nil
	return nil
}

func (s *Service) setCmd(port string, cmd *exec.Cmd) {
	s.mu.Lock()
	s.active[port] = cmd
	s.mu.Unlock()
}

func (s *Service) release(port string) {
	s.mu.Lock()
	delete(s.active, port)
	s.mu.Unlock()
}

// Flash writes the given images to the controller on port, blocking until
// the tool subprocess exits. Progress events are emitted along the way; the
// returned Result is always the last thing produced for the job.
func (s *Service) Flash(port string, files Files) Result {
	// Single-flight check comes first: a second job must never spawn a
	// subprocess that fights the live one for the port.
	if err := s.acquire(port); err != nil {
		logger.Warn("Rejected flash on %s: %v", port, err)
		return failure("%v", err)
	}
	defer s.release(port)

	args, err := buildArgs(port, files)
	if err != nil {
		return failure("%v", err)
	}

	tool, err := s.locate()
	if err != nil {
		logger.WithError(err, "Flash tool resolution failed")
		return failure("%v", err)
	}

	logger.Info("Flashing %s with %s %v", port, tool, args)

	cmd := exec.Command(tool, args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return failure("failed to capture flasher output: %v", err)
	}

	if err := cmd.Start(); err != nil {
		logger.WithError(err, "Failed to start %s", tool)
		return failure("failed to start flashing tool: %v", err)
	}
	s.setCmd(port, cmd)

	lastPct := -1
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if pct, ok := parseProgress(line); ok {
			lastPct = pct
			s.emit(pct)
		} else {
			logger.Debug("esptool: %s", line)
		}
	}

	if err := cmd.Wait(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		stderr := stderrBuf.String()
		logger.Error("Flash on %s failed (exit %d): %s", port, exitCode, stderr)
		return failure("flashing failed (exit code %d): %s. Is the device in bootloader mode?", exitCode, stderr)
	}

	// The parser may never see an exact 100 line; a clean exit is the
	// authoritative completion signal.
	if lastPct != 100 {
		s.emit(100)
	}
	logger.Info("Flash on %s completed", port)
	return Result{Success: true, Message: "Firmware written successfully"}
}

// Abort kills the live flashing subprocess on port, if any. This is an
// emergency path, not a cancel verb: interrupting a write mid-flash can
// leave the device unbootable. The pending Flash call still resolves as a
// failure through its non-zero exit.
func (s *Service) Abort(port string) bool {
	s.mu.Lock()
	cmd := s.active[port]
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return false
	}
	logger.Warn("Killing in-flight flash on %s", port)
	if err := cmd.Process.Kill(); err != nil {
		logger.WithError(err, "Failed to kill flasher process on %s", port)
		return false
	}
	return true
}
