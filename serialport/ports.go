package serialport

import (
	"runtime"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"MagLock/logger"
)

// Record describes one serial port visible to the OS.
type Record struct {
	Path      string `json:"path"`
	VendorID  string `json:"vendorId"`
	ProductID string `json:"productId"`
	Product   string `json:"product"`
	IsUSB     bool   `json:"isUsb"`
}

// USB vendor IDs of the USB-to-serial bridges found on supported lock
// controller boards.
var knownVendorIDs = []string{
	"10C4", // Silicon Labs CP210x
	"1A86", // WCH CH340
	"303A", // Espressif native USB
	"067B", // Prolific
}

func isKnownControllerVID(vid string) bool {
	v := strings.ToUpper(strings.TrimSpace(vid))
	if v == "" {
		return false
	}
	// Match substring so we handle both "10C4" and "VID_10C4".
	for _, known := range knownVendorIDs {
		if strings.Contains(v, known) {
			return true
		}
	}
	return false
}

// normalizePath rewrites the device path to the form the flashing tool needs.
// On darwin each physical port has a blocking "tty." node and a non-blocking
// "cu." node; esptool requires the callout ("cu.") variant.
func normalizePath(goos, path string) string {
	if goos == "darwin" && strings.HasPrefix(path, "/dev/tty.") {
		return "/dev/cu." + strings.TrimPrefix(path, "/dev/tty.")
	}
	return path
}

// List enumerates serial ports, re-querying the OS on every call. With
// filterToKnown set, only ports whose USB vendor ID is on the controller
// allow-list are returned; everything else is dropped outright.
//
// Enumeration failure is not fatal: it is logged and an empty list returned.
func List(filterToKnown bool) []Record {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		logger.WithError(err, "Serial port enumeration failed")
		return []Record{}
	}

	records := []Record{}
	for _, p := range ports {
		if filterToKnown && (!p.IsUSB || !isKnownControllerVID(p.VID)) {
			continue
		}
		records = append(records, Record{
			Path:      normalizePath(runtime.GOOS, p.Name),
			VendorID:  p.VID,
			ProductID: p.PID,
			Product:   p.Product,
			IsUSB:     p.IsUSB,
		})
	}
	return records
}

// isPortLockedError checks if a serial open error indicates the port is held
// by another application.
func isPortLockedError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	// Windows: "Access is denied", "The process cannot access the file"
	// Linux/Mac: "resource busy", "device or resource busy"
	return strings.Contains(errStr, "access") ||
		strings.Contains(errStr, "denied") ||
		strings.Contains(errStr, "busy") ||
		strings.Contains(errStr, "in use") ||
		strings.Contains(errStr, "cannot access")
}

// ProbeResult classifies a port after a brief open attempt.
type ProbeResult struct {
	Path   string `json:"path"`
	Free   bool   `json:"free"`
	Locked bool   `json:"locked"`
}

// Probe briefly opens the port to detect whether another application
// (a serial monitor, an IDE) is holding it. The open is immediately closed;
// nothing is read or written.
func Probe(path string) ProbeResult {
	result := ProbeResult{Path: path}

	mode := &serial.Mode{BaudRate: 115200}
	s, err := serial.Open(path, mode)
	if err != nil {
		if isPortLockedError(err) {
			result.Locked = true
		}
		return result
	}
	_ = s.Close()
	result.Free = true
	return result
}
