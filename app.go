package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"MagLock/backend"
	"MagLock/flasher"
	"MagLock/logger"
	"MagLock/serialport"
)

// Event channel names on the shell-to-UI bridge.
const (
	eventBackendReady  = "backend:ready"
	eventFlashProgress = "flash:progress"
	eventAboutOpen     = "about:open"
)

// App is the bridge bound into the UI webview. It owns the one Supervisor
// and the one flasher Service for the shell's lifetime.
type App struct {
	ctx        context.Context
	supervisor *backend.Supervisor
	flasher    *flasher.Service
}

// NewApp creates a new App application struct
func NewApp() *App {
	return &App{}
}

// backendExecutable resolves the backend binary sitting next to the shell.
func backendExecutable(exeDir, platform string) string {
	name := "maglock-backend"
	if platform == "windows" {
		name += ".exe"
	}
	return filepath.Join(exeDir, name)
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	env := runtime.Environment(ctx)
	devMode := env.BuildType != "production"
	logger.Info("Shell starting (%s/%s, build type %s)", env.Platform, env.Arch, env.BuildType)

	exeDir := ""
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	} else {
		logger.WithError(err, "Failed to resolve shell executable path")
	}

	a.supervisor = backend.NewSupervisor(func() {
		runtime.EventsEmit(a.ctx, eventBackendReady)
	})

	a.flasher = flasher.NewService(
		func() (string, error) {
			return flasher.ToolPath(env.Platform, env.Arch, env.BuildType, exeDir)
		},
		func(pct int) {
			runtime.EventsEmit(a.ctx, eventFlashProgress, pct)
		},
	)

	if err := a.supervisor.Start(devMode, backendExecutable(exeDir, env.Platform)); err != nil {
		// The window still opens; the UI just never gets backend:ready.
		logger.WithError(err, "Failed to start backend")
	}
}

func (a *App) domReady(ctx context.Context) {
	a.supervisor.WindowLoaded()
}

func (a *App) shutdown(ctx context.Context) {
	a.supervisor.Stop()
}

// emitAboutRequested forwards the host-menu About action to the UI.
func (a *App) emitAboutRequested() {
	if a == nil || a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventAboutOpen)
}

// ==========================================================
// BOUND METHODS
// ==========================================================

// ListSerialPorts re-enumerates serial devices on every call. With
// filterToKnownDevices set, only controller-compatible USB bridges are
// returned.
func (a *App) ListSerialPorts(filterToKnownDevices bool) []serialport.Record {
	return serialport.List(filterToKnownDevices)
}

// FlashDevice writes the given firmware images to the controller on port.
// Progress arrives on the flash:progress event stream; the returned Result
// is terminal and always follows the last progress event.
func (a *App) FlashDevice(port string, files flasher.Files) flasher.Result {
	return a.flasher.Flash(port, files)
}

// AbortFlash kills an in-flight flashing subprocess. Emergency use only:
// interrupting a write can brick the controller. The original FlashDevice
// call still resolves, as a failure.
func (a *App) AbortFlash(port string) bool {
	return a.flasher.Abort(port)
}

// OpenFirmwareDialog shows the native file picker for a firmware image.
// Returns the selected path, or an empty string on cancel.
func (a *App) OpenFirmwareDialog() string {
	filename, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Select Firmware Image",
		Filters: []runtime.FileFilter{
			{DisplayName: "Firmware Images (*.bin)", Pattern: "*.bin"},
		},
	})
	if err != nil {
		logger.WithError(err, "Firmware dialog failed")
		return ""
	}
	return filename
}

// ControllerStatus is a lightweight presence snapshot for the status bar.
type ControllerStatus struct {
	Connected  bool   `json:"connected"`
	Port       string `json:"port"`
	PortLocked bool   `json:"portLocked"`
}

// GetControllerStatus reports whether a controller-compatible serial port is
// attached and whether another application is holding it.
func (a *App) GetControllerStatus() ControllerStatus {
	status := ControllerStatus{}

	ports := serialport.List(true)
	if len(ports) == 0 {
		return status
	}

	status.Connected = true
	status.Port = ports[0].Path

	probe := serialport.Probe(ports[0].Path)
	status.PortLocked = probe.Locked
	return status
}
