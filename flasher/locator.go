package flasher

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"MagLock/logger"
)

// toolDirs maps a supported (GOOS, GOARCH) pair to the bundled esptool
// subdirectory. Anything not in this table is unsupported and must fail
// before any filesystem or process call.
var toolDirs = map[[2]string]string{
	{"windows", "amd64"}: "esptool-win32-x64",
	{"darwin", "amd64"}:  "esptool-darwin-x64",
	{"darwin", "arm64"}:  "esptool-darwin-arm64",
	{"linux", "amd64"}:   "esptool-linux-x64",
	{"linux", "arm64"}:   "esptool-linux-arm64",
}

// ToolPath resolves the absolute path of the esptool binary for the given
// host. In a production build the bundled-tools root sits next to the shell
// executable; in a dev build it is the repo-local tools directory. On linux a
// system-wide esptool found on PATH is preferred over the bundled copy.
func ToolPath(goos, goarch, buildType, exeDir string) (string, error) {
	dir, ok := toolDirs[[2]string{goos, goarch}]
	if !ok {
		return "", fmt.Errorf("firmware flashing is not supported on %s/%s", goos, goarch)
	}

	if goos == "linux" {
		if system, err := exec.LookPath("esptool"); err == nil {
			logger.Info("Using system esptool at %s", system)
			return system, nil
		}
	}

	name := "esptool"
	if goos == "windows" {
		name = "esptool.exe"
	}

	root := "tools"
	if buildType == "production" {
		root = filepath.Join(exeDir, "tools")
	}
	return filepath.Join(root, dir, name), nil
}
